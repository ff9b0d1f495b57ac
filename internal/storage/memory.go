package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"crisisgo/internal/models"
)

// MemoryStore keeps every collection in process memory.
type MemoryStore struct {
	mu sync.RWMutex

	contacts  map[int64]models.Contact
	alertLogs []models.AlertLog
	settings  map[int64]models.UserSettings

	nextContactID  int64
	nextAlertLogID int64
	nextSettingsID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contacts: make(map[int64]models.Contact),
		settings: make(map[int64]models.UserSettings),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) ListContacts(_ context.Context, userID int64) ([]models.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Contact, 0)
	for _, c := range m.contacts {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) CreateContact(_ context.Context, userID int64, in models.ContactInput) (*models.Contact, error) {
	if err := validateContact(in); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextContactID++
	c := models.Contact{
		ID:           m.nextContactID,
		UserID:       userID,
		Name:         in.Name,
		Phone:        in.Phone,
		Email:        in.Email,
		Relationship: in.Relationship,
		IsPrimary:    in.IsPrimary,
	}
	m.contacts[c.ID] = c
	return &c, nil
}

func (m *MemoryStore) UpdateContact(_ context.Context, userID, id int64, patch models.ContactPatch) (*models.Contact, error) {
	if err := validateContactPatch(patch); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contacts[id]
	if !ok || c.UserID != userID {
		return nil, ErrNotFound
	}
	patch.Apply(&c)
	m.contacts[id] = c
	return &c, nil
}

func (m *MemoryStore) DeleteContact(_ context.Context, userID, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contacts[id]
	if !ok || c.UserID != userID {
		return false, nil
	}
	delete(m.contacts, id)
	return true, nil
}

func (m *MemoryStore) CreateAlertLog(_ context.Context, row models.AlertLog) (*models.AlertLog, error) {
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextAlertLogID++
	row.ID = m.nextAlertLogID
	m.alertLogs = append(m.alertLogs, row)
	return &row, nil
}

func (m *MemoryStore) ListAlertLogs(_ context.Context, userID int64) ([]models.AlertLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.AlertLog, 0)
	for _, row := range m.alertLogs {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) LatestAlertLog(ctx context.Context, userID int64, dispatchID string) (*models.AlertLog, error) {
	rows, err := m.ListAlertLogs(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.DispatchID == dispatchID {
			return &row, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetUserSettings(_ context.Context, userID int64) (*models.UserSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.settingsLocked(userID)
	return &s, nil
}

func (m *MemoryStore) UpdateUserSettings(_ context.Context, userID int64, patch models.SettingsPatch) (*models.UserSettings, error) {
	if err := validateSettingsPatch(patch); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.settingsLocked(userID)
	patch.Apply(&s)
	m.settings[userID] = s
	return &s, nil
}

// settingsLocked returns the user's row, creating the default one if absent.
// Callers hold m.mu.
func (m *MemoryStore) settingsLocked(userID int64) models.UserSettings {
	s, ok := m.settings[userID]
	if !ok {
		m.nextSettingsID++
		s = models.DefaultSettings(userID)
		s.ID = m.nextSettingsID
		m.settings[userID] = s
	}
	return s
}

func sortNewestFirst(rows []models.AlertLog) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Timestamp.Equal(rows[j].Timestamp) {
			return rows[i].Timestamp.After(rows[j].Timestamp)
		}
		return rows[i].ID > rows[j].ID
	})
}
