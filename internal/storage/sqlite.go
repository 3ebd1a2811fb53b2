package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"matchpoller/internal/model"
	"matchpoller/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database. The schema is a
// single-row state table seeded by the migrations with default values.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// LoadSession returns the persisted session state.
func (s *SQLite) LoadSession(ctx context.Context) (model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT enabled, base_url, access_token, interval_ms, radius_km,
		        consent_enabled_at_ms, consent_window_ms, consent_notification_sent
		 FROM session WHERE id = 1`,
	)

	var (
		enabled, consentSent    int
		baseURL, token          string
		intervalMs, consentAtMs int64
		consentWindowMs         int64
		radiusKm                float64
	)
	err := row.Scan(&enabled, &baseURL, &token, &intervalMs, &radiusKm,
		&consentAtMs, &consentWindowMs, &consentSent)
	if err != nil {
		return model.Session{}, fmt.Errorf("scan session: %w", err)
	}

	sess := model.Session{
		Enabled:     enabled == 1,
		BaseURL:     baseURL,
		AccessToken: token,
		Interval:    time.Duration(intervalMs) * time.Millisecond,
		RadiusKm:    radiusKm,
		Consent: model.ConsentWindow{
			Window:   time.Duration(consentWindowMs) * time.Millisecond,
			Notified: consentSent == 1,
		},
	}
	if consentAtMs > 0 {
		sess.Consent.EnabledAt = time.UnixMilli(consentAtMs)
	}
	return sess, nil
}

// SaveSession persists the full session state.
func (s *SQLite) SaveSession(ctx context.Context, sess model.Session) error {
	var consentAtMs int64
	if !sess.Consent.EnabledAt.IsZero() {
		consentAtMs = sess.Consent.EnabledAt.UnixMilli()
	}
	now := time.Now().UTC().Format(timeLayout)

	_, err := s.db.ExecContext(ctx,
		`UPDATE session SET enabled = ?, base_url = ?, access_token = ?,
		        interval_ms = ?, radius_km = ?, consent_enabled_at_ms = ?,
		        consent_window_ms = ?, consent_notification_sent = ?, updated_at = ?
		 WHERE id = 1`,
		boolToInt(sess.Enabled), sess.BaseURL, sess.AccessToken,
		sess.Interval.Milliseconds(), sess.RadiusKm, consentAtMs,
		sess.Consent.Window.Milliseconds(), boolToInt(sess.Consent.Notified), now,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// LastActiveCount returns the persisted active-count baseline, if any.
func (s *SQLite) LastActiveCount(ctx context.Context) (int, bool, error) {
	var count sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_active_count FROM session WHERE id = 1`,
	).Scan(&count)
	if err != nil {
		return 0, false, fmt.Errorf("scan last active count: %w", err)
	}
	if !count.Valid {
		return 0, false, nil
	}
	return int(count.Int64), true, nil
}

// SaveLastActiveCount persists a new active-count baseline.
func (s *SQLite) SaveLastActiveCount(ctx context.Context, count int) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`UPDATE session SET last_active_count = ?, updated_at = ? WHERE id = 1`,
		count, now,
	)
	if err != nil {
		return fmt.Errorf("update last active count: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
