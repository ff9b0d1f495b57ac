package storage

import (
	"context"
	"errors"
	"fmt"

	"crisisgo/internal/config"
	"crisisgo/internal/models"
)

var (
	// ErrNotFound is returned when a user-scoped row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned when required fields are missing.
	ErrInvalid = errors.New("invalid input")
)

type ContactStore interface {
	ListContacts(ctx context.Context, userID int64) ([]models.Contact, error)
	CreateContact(ctx context.Context, userID int64, in models.ContactInput) (*models.Contact, error)
	// UpdateContact never creates; an unknown id yields ErrNotFound.
	UpdateContact(ctx context.Context, userID, id int64, patch models.ContactPatch) (*models.Contact, error)
	DeleteContact(ctx context.Context, userID, id int64) (bool, error)
}

type AlertLogStore interface {
	CreateAlertLog(ctx context.Context, row models.AlertLog) (*models.AlertLog, error)
	// ListAlertLogs returns newest first.
	ListAlertLogs(ctx context.Context, userID int64) ([]models.AlertLog, error)
	LatestAlertLog(ctx context.Context, userID int64, dispatchID string) (*models.AlertLog, error)
}

type SettingsStore interface {
	// GetUserSettings creates the default row on first access.
	GetUserSettings(ctx context.Context, userID int64) (*models.UserSettings, error)
	UpdateUserSettings(ctx context.Context, userID int64, patch models.SettingsPatch) (*models.UserSettings, error)
}

type Store interface {
	ContactStore
	AlertLogStore
	SettingsStore
	Close() error
}

// New builds the store selected by cfg.Storage.Driver. SQL drivers are
// migrated before the store is returned.
func New(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if cfg.Storage.Driver == "memory" {
		return NewMemoryStore(), nil
	}
	db, err := Open(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, cfg.Storage.Driver); err != nil {
		db.Close()
		return nil, err
	}
	return NewSQLStore(db, cfg.Storage.Driver), nil
}

func validateContact(in models.ContactInput) error {
	if in.Name == "" || in.Phone == "" {
		return fmt.Errorf("name and phone are required: %w", ErrInvalid)
	}
	return nil
}

func validateContactPatch(p models.ContactPatch) error {
	if (p.Name != nil && *p.Name == "") || (p.Phone != nil && *p.Phone == "") {
		return fmt.Errorf("name and phone cannot be empty: %w", ErrInvalid)
	}
	return nil
}

func validateSettingsPatch(p models.SettingsPatch) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalid)
	}
	return nil
}
