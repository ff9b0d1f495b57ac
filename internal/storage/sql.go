package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crisisgo/internal/models"
)

// SQLStore implements Store on database/sql for sqlite3, mysql and postgres.
type SQLStore struct {
	db     *sql.DB
	driver string
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: strings.ToLower(driver)}
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if s.driver == "postgres" {
		var id int64
		if err := s.db.QueryRowContext(ctx, s.rebind(query)+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const contactColumns = `id, user_id, name, phone, email, relationship, is_primary`

func scanContact(row interface{ Scan(...any) error }) (*models.Contact, error) {
	var (
		c            models.Contact
		email        sql.NullString
		relationship sql.NullString
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Phone, &email, &relationship, &c.IsPrimary); err != nil {
		return nil, err
	}
	c.Email = nullToPtr(email)
	c.Relationship = nullToPtr(relationship)
	return &c, nil
}

func (s *SQLStore) ListContacts(ctx context.Context, userID int64) ([]models.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+contactColumns+` FROM emergency_contacts WHERE user_id = ? ORDER BY id ASC`),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]models.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

func (s *SQLStore) CreateContact(ctx context.Context, userID int64, in models.ContactInput) (*models.Contact, error) {
	if err := validateContact(in); err != nil {
		return nil, err
	}
	id, err := s.insert(ctx,
		`INSERT INTO emergency_contacts (user_id, name, phone, email, relationship, is_primary) VALUES (?, ?, ?, ?, ?, ?)`,
		userID, in.Name, in.Phone, ptrToNull(in.Email), ptrToNull(in.Relationship), in.IsPrimary,
	)
	if err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	return &models.Contact{
		ID:           id,
		UserID:       userID,
		Name:         in.Name,
		Phone:        in.Phone,
		Email:        in.Email,
		Relationship: in.Relationship,
		IsPrimary:    in.IsPrimary,
	}, nil
}

func (s *SQLStore) getContact(ctx context.Context, userID, id int64) (*models.Contact, error) {
	c, err := scanContact(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+contactColumns+` FROM emergency_contacts WHERE id = ? AND user_id = ?`),
		id, userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

func (s *SQLStore) UpdateContact(ctx context.Context, userID, id int64, patch models.ContactPatch) (*models.Contact, error) {
	if err := validateContactPatch(patch); err != nil {
		return nil, err
	}
	c, err := s.getContact(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(c)
	if _, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE emergency_contacts SET name = ?, phone = ?, email = ?, relationship = ?, is_primary = ? WHERE id = ? AND user_id = ?`),
		c.Name, c.Phone, ptrToNull(c.Email), ptrToNull(c.Relationship), c.IsPrimary, id, userID,
	); err != nil {
		return nil, fmt.Errorf("update contact: %w", err)
	}
	return c, nil
}

func (s *SQLStore) DeleteContact(ctx context.Context, userID, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM emergency_contacts WHERE id = ? AND user_id = ?`),
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("delete contact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("contact rows affected: %w", err)
	}
	return affected > 0, nil
}

const alertLogColumns = `id, user_id, dispatch_id, alert_type, status, location, message, timestamp`

func scanAlertLog(row interface{ Scan(...any) error }) (*models.AlertLog, error) {
	var (
		l        models.AlertLog
		location sql.NullString
		message  sql.NullString
	)
	if err := row.Scan(&l.ID, &l.UserID, &l.DispatchID, &l.AlertType, &l.Status, &location, &message, &l.Timestamp); err != nil {
		return nil, err
	}
	l.Location = nullToPtr(location)
	l.Message = nullToPtr(message)
	l.Timestamp = l.Timestamp.UTC()
	return &l, nil
}

func (s *SQLStore) CreateAlertLog(ctx context.Context, row models.AlertLog) (*models.AlertLog, error) {
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now().UTC()
	}
	id, err := s.insert(ctx,
		`INSERT INTO alert_logs (user_id, dispatch_id, alert_type, status, location, message, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.UserID, row.DispatchID, string(row.AlertType), string(row.Status), ptrToNull(row.Location), ptrToNull(row.Message), row.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("create alert log: %w", err)
	}
	row.ID = id
	return &row, nil
}

func (s *SQLStore) ListAlertLogs(ctx context.Context, userID int64) ([]models.AlertLog, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+alertLogColumns+` FROM alert_logs WHERE user_id = ? ORDER BY timestamp DESC, id DESC`),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list alert logs: %w", err)
	}
	defer rows.Close()

	logs := make([]models.AlertLog, 0)
	for rows.Next() {
		l, err := scanAlertLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

func (s *SQLStore) LatestAlertLog(ctx context.Context, userID int64, dispatchID string) (*models.AlertLog, error) {
	l, err := scanAlertLog(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+alertLogColumns+` FROM alert_logs WHERE user_id = ? AND dispatch_id = ? ORDER BY timestamp DESC, id DESC LIMIT 1`),
		userID, dispatchID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("latest alert log: %w", err)
	}
	return l, nil
}

const settingsColumns = `id, user_id, ai_tone, auto_escalation, context_awareness, voice_mode, language, theme, accent_color`

func (s *SQLStore) loadSettings(ctx context.Context, userID int64) (*models.UserSettings, error) {
	var us models.UserSettings
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+settingsColumns+` FROM user_settings WHERE user_id = ?`),
		userID,
	).Scan(&us.ID, &us.UserID, &us.AITone, &us.AutoEscalation, &us.ContextAwareness, &us.VoiceMode, &us.Language, &us.Theme, &us.AccentColor)
	if err != nil {
		return nil, err
	}
	return &us, nil
}

func (s *SQLStore) GetUserSettings(ctx context.Context, userID int64) (*models.UserSettings, error) {
	us, err := s.loadSettings(ctx, userID)
	if err == nil {
		return us, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	def := models.DefaultSettings(userID)
	id, err := s.insert(ctx,
		`INSERT INTO user_settings (user_id, ai_tone, auto_escalation, context_awareness, voice_mode, language, theme, accent_color) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		def.UserID, def.AITone, def.AutoEscalation, def.ContextAwareness, def.VoiceMode, def.Language, def.Theme, def.AccentColor,
	)
	if err != nil {
		// lost a race on the unique user_id; the other writer's row wins
		if us, lerr := s.loadSettings(ctx, userID); lerr == nil {
			return us, nil
		}
		return nil, fmt.Errorf("create settings: %w", err)
	}
	def.ID = id
	return &def, nil
}

func (s *SQLStore) UpdateUserSettings(ctx context.Context, userID int64, patch models.SettingsPatch) (*models.UserSettings, error) {
	if err := validateSettingsPatch(patch); err != nil {
		return nil, err
	}
	us, err := s.GetUserSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	patch.Apply(us)
	if _, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE user_settings SET ai_tone = ?, auto_escalation = ?, context_awareness = ?, voice_mode = ?, language = ?, theme = ?, accent_color = ? WHERE user_id = ?`),
		us.AITone, us.AutoEscalation, us.ContextAwareness, us.VoiceMode, us.Language, us.Theme, us.AccentColor, userID,
	); err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	return us, nil
}

func nullToPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func ptrToNull(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
