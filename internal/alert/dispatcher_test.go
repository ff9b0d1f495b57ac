package alert

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"crisisgo/internal/config"
	"crisisgo/internal/location"
	"crisisgo/internal/models"
	"crisisgo/internal/storage"
	"crisisgo/internal/trigger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func seedContacts(t *testing.T, store storage.Store, userID int64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := store.CreateContact(context.Background(), userID, models.ContactInput{
			Name:  "Contact",
			Phone: "555-000" + string(rune('0'+i)),
		})
		require.NoError(t, err)
	}
}

func rowsFor(t *testing.T, store storage.Store, userID int64, dispatchID string) []models.AlertLog {
	t.Helper()
	logs, err := store.ListAlertLogs(context.Background(), userID)
	require.NoError(t, err)
	var out []models.AlertLog
	for _, l := range logs {
		if l.DispatchID == dispatchID {
			out = append(out, l)
		}
	}
	return out
}

func TestManualDispatchWithZeroContacts(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := storage.NewMemoryStore()
	d := NewDispatcher(store, NewLogNotifier(zap.NewNop()), location.Unsupported{}, zap.NewNop())

	res, err := d.Dispatch(context.Background(), 1, trigger.Manual(""))
	require.NoError(t, err)
	assert.Equal(t, 0, res.ContactsNotified)
	assert.Equal(t, models.StatusSent, res.Status)
	assert.NotEmpty(t, res.DispatchID)

	rows := rowsFor(t, store, 1, res.DispatchID)
	require.Len(t, rows, 2)
	assert.Equal(t, models.StatusSent, rows[0].Status)
	assert.Equal(t, "Alert sent to 0 emergency contacts", *rows[0].Message)
	assert.Equal(t, models.StatusTriggered, rows[1].Status)
	assert.Equal(t, res.AlertID, rows[1].ID)
	assert.Equal(t, trigger.ManualMessage, *rows[1].Message)
	assert.Nil(t, rows[1].Location)

	st := d.Status()
	assert.Equal(t, StateSafe, st.Status)
	require.NotNil(t, st.LastAlert)
}

func TestDispatchNotifiesEveryContact(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := storage.NewMemoryStore()
	seedContacts(t, store, 1, 5)
	seedContacts(t, store, 2, 2)

	var calls atomic.Int64
	notifier := NotifierFunc(func(ctx context.Context, n Notification) error {
		calls.Add(1)
		assert.Equal(t, int64(1), n.UserID)
		assert.Equal(t, models.AlertKeyboard, n.AlertType)
		assert.NotNil(t, n.Location)
		return nil
	})
	pos := location.Position{Lat: 1, Lng: 2, Accuracy: 3}
	d := NewDispatcher(store, notifier, location.Static{Position: pos}, zap.NewNop(), WithConcurrency(2))

	res, err := d.Dispatch(context.Background(), 1, trigger.Intent{Source: models.AlertKeyboard, Message: trigger.KeyboardMessage})
	require.NoError(t, err)
	assert.Equal(t, int64(5), calls.Load())
	assert.Equal(t, 5, res.ContactsNotified)
	assert.Equal(t, models.StatusSent, res.Status)

	rows := rowsFor(t, store, 1, res.DispatchID)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alert sent to 5 emergency contacts", *rows[0].Message)
	require.NotNil(t, rows[1].Location)
	assert.JSONEq(t, `{"lat":1,"lng":2,"accuracy":3}`, *rows[1].Location)
}

func TestDeliveryFailureAndPanicRecordFailedRow(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := storage.NewMemoryStore()
	seedContacts(t, store, 1, 3)

	notifier := NotifierFunc(func(ctx context.Context, n Notification) error {
		switch n.Contact.ID {
		case 1:
			return errors.New("sms gateway down")
		case 2:
			panic("boom")
		}
		return nil
	})
	d := NewDispatcher(store, notifier, nil, zap.NewNop())

	res, err := d.Dispatch(context.Background(), 1, trigger.Manual("help"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, res.Status)
	assert.Equal(t, 1, res.ContactsNotified)

	rows := rowsFor(t, store, 1, res.DispatchID)
	require.Len(t, rows, 2)
	assert.Equal(t, models.StatusFailed, rows[0].Status)
	msg := *rows[0].Message
	assert.True(t, strings.HasPrefix(msg, "Failed to send alert: "))
	assert.Contains(t, msg, "sms gateway down")
	assert.Contains(t, msg, "panic: boom")
	assert.Equal(t, StateSafe, d.Status().Status)
}

func TestDispatchKeepsProvidedLocation(t *testing.T) {
	store := storage.NewMemoryStore()
	locator := location.LocatorFunc(func(context.Context) (location.Position, error) {
		t.Error("locator must not be consulted")
		return location.Position{}, nil
	})
	d := NewDispatcher(store, nil, locator, zap.NewNop())

	pos := &location.Position{Lat: 9, Lng: 8}
	res, err := d.Dispatch(context.Background(), 1, trigger.Intent{Source: models.AlertVoice, Message: trigger.VoiceMessage, Location: pos})
	require.NoError(t, err)

	rows := rowsFor(t, store, 1, res.DispatchID)
	require.Len(t, rows, 2)
	assert.JSONEq(t, pos.Encode(), *rows[0].Location)
}

func TestDispatchIgnoresSlowLocator(t *testing.T) {
	store := storage.NewMemoryStore()
	locator := location.LocatorFunc(func(ctx context.Context) (location.Position, error) {
		<-ctx.Done()
		return location.Position{}, ctx.Err()
	})
	d := NewDispatcher(store, nil, locator, zap.NewNop(), WithLocateTimeout(10*time.Millisecond))

	res, err := d.Dispatch(context.Background(), 1, trigger.Manual(""))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, res.Status)
	rows := rowsFor(t, store, 1, res.DispatchID)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[1].Location)
}

func TestStatusIsSendingDuringDelivery(t *testing.T) {
	store := storage.NewMemoryStore()
	seedContacts(t, store, 1, 1)

	entered := make(chan struct{})
	release := make(chan struct{})
	notifier := NotifierFunc(func(ctx context.Context, n Notification) error {
		close(entered)
		<-release
		return nil
	})
	d := NewDispatcher(store, notifier, nil, zap.NewNop())
	assert.Equal(t, StateSafe, d.Status().Status)
	assert.Nil(t, d.Status().LastAlert)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := d.Dispatch(context.Background(), 1, trigger.Manual(""))
		assert.NoError(t, err)
	}()

	<-entered
	assert.Equal(t, StateSending, d.Status().Status)
	close(release)
	<-done
	assert.Equal(t, StateSafe, d.Status().Status)
}

func TestOverlappingDispatchesStaySendingUntilLastFinishes(t *testing.T) {
	store := storage.NewMemoryStore()
	seedContacts(t, store, 1, 1)
	seedContacts(t, store, 2, 1)

	entered := make(chan int64, 2)
	release := map[int64]chan struct{}{1: make(chan struct{}), 2: make(chan struct{})}
	notifier := NotifierFunc(func(ctx context.Context, n Notification) error {
		entered <- n.UserID
		<-release[n.UserID]
		return nil
	})
	d := NewDispatcher(store, notifier, nil, zap.NewNop())

	done := map[int64]chan struct{}{1: make(chan struct{}), 2: make(chan struct{})}
	for _, userID := range []int64{1, 2} {
		userID := userID
		go func() {
			defer close(done[userID])
			_, err := d.Dispatch(context.Background(), userID, trigger.Manual(""))
			assert.NoError(t, err)
		}()
	}
	<-entered
	<-entered

	close(release[1])
	<-done[1]
	assert.Equal(t, StateSending, d.Status().Status)
	assert.NotNil(t, d.Status().LastAlert)

	close(release[2])
	<-done[2]
	assert.Equal(t, StateSafe, d.Status().Status)
}

func TestCancelledRequestStillRecordsOutcomeOnSQLStore(t *testing.T) {
	store, err := storage.New(&config.Config{Storage: config.StorageConfig{Driver: "sqlite3", DSN: ":memory:"}})
	require.NoError(t, err)
	defer store.Close()
	seedContacts(t, store, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifier := NotifierFunc(func(nctx context.Context, n Notification) error {
		cancel()
		return nctx.Err()
	})
	d := NewDispatcher(store, notifier, nil, zap.NewNop())

	res, err := d.Dispatch(ctx, 1, trigger.Manual(""))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, res.Status)
	assert.Equal(t, 1, res.ContactsNotified)

	rows := rowsFor(t, store, 1, res.DispatchID)
	require.Len(t, rows, 2)
	assert.Equal(t, models.StatusSent, rows[0].Status)
	assert.Equal(t, models.StatusTriggered, rows[1].Status)
}

func TestDispatchRejectsUnknownSource(t *testing.T) {
	d := NewDispatcher(storage.NewMemoryStore(), nil, nil, zap.NewNop())
	_, err := d.Dispatch(context.Background(), 1, trigger.Intent{Source: "sms"})
	require.Error(t, err)
}

type failingLogStore struct {
	storage.Store
}

func (failingLogStore) CreateAlertLog(context.Context, models.AlertLog) (*models.AlertLog, error) {
	return nil, errors.New("disk full")
}

func TestDispatchReturnsTriggeredRowError(t *testing.T) {
	d := NewDispatcher(failingLogStore{Store: storage.NewMemoryStore()}, nil, nil, zap.NewNop())
	_, err := d.Dispatch(context.Background(), 1, trigger.Manual(""))
	require.Error(t, err)
	assert.Equal(t, StateSafe, d.Status().Status)
}
