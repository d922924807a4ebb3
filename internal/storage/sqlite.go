//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"wastebot/internal/waste"
	"wastebot/pkg/logx"
)

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS snapshot (
			id       INTEGER PRIMARY KEY CHECK (id = 1),
			saved_at TEXT NOT NULL,
			payload  TEXT NOT NULL
		)`)
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) SaveSnapshot(ctx context.Context, events []waste.Event, at time.Time) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	payload, err := json.Marshal(events)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshot(id, saved_at, payload) VALUES(1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at, payload = excluded.payload`,
		at.Format(time.RFC3339Nano), string(payload),
	)
	return err
}

func (s *sqliteStore) LoadSnapshot(ctx context.Context) ([]waste.Event, time.Time, error) {
	if s == nil || s.db == nil {
		return nil, time.Time{}, ErrDisabled
	}

	var savedAt, payload string
	err := s.db.QueryRowContext(ctx, `SELECT saved_at, payload FROM snapshot WHERE id = 1`).
		Scan(&savedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}

	var events []waste.Event
	if err := json.Unmarshal([]byte(payload), &events); err != nil {
		s.log.Warn("snapshot row corrupt; ignoring", logx.Err(err))
		return nil, time.Time{}, nil
	}
	at, err := time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		at = time.Time{}
	}
	return events, at, nil
}
