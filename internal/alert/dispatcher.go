package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"crisisgo/internal/location"
	"crisisgo/internal/models"
	"crisisgo/internal/storage"
	"crisisgo/internal/trigger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type State string

const (
	StateSafe    State = "safe"
	StateAlert   State = "alert"
	StateSending State = "sending"
)

type Status struct {
	Status    State      `json:"status"`
	LastAlert *time.Time `json:"lastAlert"`
}

type Result struct {
	AlertID          int64              `json:"alertId"`
	DispatchID       string             `json:"dispatchId"`
	ContactsNotified int                `json:"contactsNotified"`
	Status           models.AlertStatus `json:"status"`
}

// Store is the subset of storage the dispatcher writes to.
type Store interface {
	storage.ContactStore
	storage.AlertLogStore
}

type Option func(*Dispatcher)

func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

func WithLocateTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.locateTimeout = timeout
		}
	}
}

// Dispatcher turns an intent into delivered notifications and log rows.
// Each dispatch writes exactly one triggered row and one terminal row.
type Dispatcher struct {
	store         Store
	notifier      Notifier
	locator       location.Locator
	logger        *zap.Logger
	concurrency   int
	locateTimeout time.Duration
	now           func() time.Time
	newID         func() string

	mu        sync.RWMutex
	state     State
	inFlight  int
	lastAlert time.Time
}

func NewDispatcher(store Store, notifier Notifier, locator location.Locator, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locator == nil {
		locator = location.Unsupported{}
	}
	d := &Dispatcher{
		store:         store,
		notifier:      notifier,
		locator:       locator,
		logger:        logger,
		concurrency:   4,
		locateTimeout: location.DispatchTimeout,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         func() string { return uuid.NewString() },
		state:         StateSafe,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st := Status{Status: d.state}
	if !d.lastAlert.IsZero() {
		last := d.lastAlert
		st.LastAlert = &last
	}
	return st
}

func (d *Dispatcher) begin() {
	d.mu.Lock()
	d.inFlight++
	if d.state != StateSending {
		d.state = StateAlert
	}
	d.mu.Unlock()
}

func (d *Dispatcher) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// finish returns to safe only once no other dispatch is in flight.
func (d *Dispatcher) finish() {
	d.mu.Lock()
	d.inFlight--
	if d.inFlight <= 0 {
		d.inFlight = 0
		d.state = StateSafe
	}
	d.lastAlert = d.now()
	d.mu.Unlock()
}

// Dispatch records the intent, notifies every contact and records the
// outcome. Delivery failures end up in a failed row, not in the returned
// error; only storage failures on the triggered row are returned.
// Once accepted, a dispatch runs to completion even if ctx is cancelled.
func (d *Dispatcher) Dispatch(ctx context.Context, userID int64, intent trigger.Intent) (*Result, error) {
	if !intent.Source.Valid() {
		return nil, fmt.Errorf("invalid alert type: %q", intent.Source)
	}
	ctx = context.WithoutCancel(ctx)
	d.begin()
	defer d.finish()

	pos := intent.Location
	if pos == nil {
		p, err := location.Resolve(ctx, d.locator, d.locateTimeout)
		if err != nil {
			d.logger.Warn("location unavailable, dispatching without it", zap.Error(err))
		} else {
			pos = &p
		}
	}
	var encodedLocation *string
	if pos != nil {
		enc := pos.Encode()
		encodedLocation = &enc
	}

	d.setState(StateSending)
	dispatchID := d.newID()
	message := intent.Message
	triggered, err := d.store.CreateAlertLog(ctx, models.AlertLog{
		UserID:     userID,
		DispatchID: dispatchID,
		AlertType:  intent.Source,
		Status:     models.StatusTriggered,
		Location:   encodedLocation,
		Message:    &message,
		Timestamp:  d.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("record triggered alert: %w", err)
	}

	notified, deliveryErr := d.deliver(ctx, userID, dispatchID, intent, pos)

	terminal := models.AlertLog{
		UserID:     userID,
		DispatchID: dispatchID,
		AlertType:  intent.Source,
		Location:   encodedLocation,
	}
	var text string
	if deliveryErr == "" {
		terminal.Status = models.StatusSent
		text = fmt.Sprintf("Alert sent to %d emergency contacts", notified)
	} else {
		terminal.Status = models.StatusFailed
		text = "Failed to send alert: " + deliveryErr
	}
	terminal.Message = &text
	terminal.Timestamp = d.now()
	if _, err := d.store.CreateAlertLog(ctx, terminal); err != nil {
		d.logger.Error("record alert outcome failed",
			zap.String("dispatch_id", dispatchID),
			zap.String("status", string(terminal.Status)),
			zap.Error(err),
		)
	}

	d.logger.Info("alert dispatched",
		zap.String("dispatch_id", dispatchID),
		zap.Int64("user_id", userID),
		zap.String("alert_type", string(intent.Source)),
		zap.String("status", string(terminal.Status)),
		zap.Int("contacts_notified", notified),
	)
	return &Result{
		AlertID:          triggered.ID,
		DispatchID:       dispatchID,
		ContactsNotified: notified,
		Status:           terminal.Status,
	}, nil
}

// deliver fans out to all contacts and returns how many were reached and a
// joined description of every failure ("" when none).
func (d *Dispatcher) deliver(ctx context.Context, userID int64, dispatchID string, intent trigger.Intent, pos *location.Position) (int, string) {
	contacts, err := d.store.ListContacts(ctx, userID)
	if err != nil {
		return 0, fmt.Sprintf("list contacts: %v", err)
	}

	var (
		notified atomic.Int64
		mu       sync.Mutex
		failures []string
		g        errgroup.Group
	)
	g.SetLimit(d.concurrency)
	now := d.now()
	for _, contact := range contacts {
		contact := contact
		g.Go(func() error {
			err := d.notifyOne(ctx, Notification{
				DispatchID: dispatchID,
				UserID:     userID,
				AlertType:  intent.Source,
				Message:    intent.Message,
				Location:   pos,
				Contact:    contact,
				Timestamp:  now,
			})
			if err != nil {
				d.logger.Warn("notify contact failed",
					zap.String("dispatch_id", dispatchID),
					zap.Int64("contact_id", contact.ID),
					zap.Error(err),
				)
				mu.Lock()
				failures = append(failures, err.Error())
				mu.Unlock()
				return nil
			}
			notified.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(notified.Load()), strings.Join(failures, "; ")
}

func (d *Dispatcher) notifyOne(ctx context.Context, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("contact %d: panic: %v", n.Contact.ID, r)
		}
	}()
	if d.notifier == nil {
		return nil
	}
	return d.notifier.Notify(ctx, n)
}
