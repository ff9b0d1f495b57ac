package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"crisisgo/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the SQL database described by cfg.
func Open(cfg config.StorageConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "sqlite3":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if cfg.DSN == ":memory:" {
			// every pooled connection would otherwise see its own empty database
			db.SetMaxOpenConns(1)
		}
	case "mysql":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
				cfg.Username,
				cfg.Password,
				cfg.Host,
				cfg.Port,
				cfg.DBName,
				cfg.Params,
			)
		}
		if !strings.Contains(dsn, "parseTime=") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
				if strings.HasSuffix(dsn, "?") {
					sep = ""
				}
			}
			dsn += sep + "parseTime=true"
		}
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	case "postgres":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s %s",
				cfg.Host,
				cfg.Port,
				cfg.Username,
				cfg.Password,
				cfg.DBName,
				cfg.Params,
			)
		}
		db, err = sql.Open("postgres", strings.TrimSpace(dsn))
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS emergency_contacts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				name TEXT NOT NULL,
				phone TEXT NOT NULL,
				email TEXT,
				relationship TEXT,
				is_primary BOOLEAN NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_contacts_user ON emergency_contacts(user_id)`,
			`CREATE TABLE IF NOT EXISTS alert_logs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				dispatch_id TEXT NOT NULL,
				alert_type TEXT NOT NULL,
				status TEXT NOT NULL,
				location TEXT,
				message TEXT,
				timestamp DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_alert_logs_user ON alert_logs(user_id, timestamp DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_alert_logs_dispatch ON alert_logs(dispatch_id)`,
			`CREATE TABLE IF NOT EXISTS user_settings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL UNIQUE,
				ai_tone TEXT NOT NULL DEFAULT 'calm',
				auto_escalation BOOLEAN NOT NULL DEFAULT 1,
				context_awareness BOOLEAN NOT NULL DEFAULT 1,
				voice_mode TEXT NOT NULL DEFAULT 'always',
				language TEXT NOT NULL DEFAULT 'en',
				theme TEXT NOT NULL DEFAULT 'dark',
				accent_color TEXT NOT NULL DEFAULT '#99CC00'
			)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS emergency_contacts (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				user_id BIGINT NOT NULL,
				name VARCHAR(255) NOT NULL,
				phone VARCHAR(64) NOT NULL,
				email VARCHAR(255),
				relationship VARCHAR(255),
				is_primary TINYINT(1) NOT NULL DEFAULT 0,
				PRIMARY KEY (id),
				INDEX idx_contacts_user (user_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS alert_logs (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				user_id BIGINT NOT NULL,
				dispatch_id VARCHAR(64) NOT NULL,
				alert_type VARCHAR(32) NOT NULL,
				status VARCHAR(32) NOT NULL,
				location TEXT,
				message TEXT,
				timestamp DATETIME(6) NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_alert_logs_user (user_id, timestamp),
				INDEX idx_alert_logs_dispatch (dispatch_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS user_settings (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				user_id BIGINT NOT NULL,
				ai_tone VARCHAR(32) NOT NULL DEFAULT 'calm',
				auto_escalation TINYINT(1) NOT NULL DEFAULT 1,
				context_awareness TINYINT(1) NOT NULL DEFAULT 1,
				voice_mode VARCHAR(32) NOT NULL DEFAULT 'always',
				language VARCHAR(16) NOT NULL DEFAULT 'en',
				theme VARCHAR(32) NOT NULL DEFAULT 'dark',
				accent_color VARCHAR(16) NOT NULL DEFAULT '#99CC00',
				PRIMARY KEY (id),
				UNIQUE KEY uniq_settings_user (user_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	case "postgres":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS emergency_contacts (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL,
				name TEXT NOT NULL,
				phone TEXT NOT NULL,
				email TEXT,
				relationship TEXT,
				is_primary BOOLEAN NOT NULL DEFAULT FALSE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_contacts_user ON emergency_contacts(user_id)`,
			`CREATE TABLE IF NOT EXISTS alert_logs (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL,
				dispatch_id TEXT NOT NULL,
				alert_type TEXT NOT NULL,
				status TEXT NOT NULL,
				location TEXT,
				message TEXT,
				timestamp TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_alert_logs_user ON alert_logs(user_id, timestamp DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_alert_logs_dispatch ON alert_logs(dispatch_id)`,
			`CREATE TABLE IF NOT EXISTS user_settings (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL UNIQUE,
				ai_tone TEXT NOT NULL DEFAULT 'calm',
				auto_escalation BOOLEAN NOT NULL DEFAULT TRUE,
				context_awareness BOOLEAN NOT NULL DEFAULT TRUE,
				voice_mode TEXT NOT NULL DEFAULT 'always',
				language TEXT NOT NULL DEFAULT 'en',
				theme TEXT NOT NULL DEFAULT 'dark',
				accent_color TEXT NOT NULL DEFAULT '#99CC00'
			)`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
