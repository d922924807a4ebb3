// Package storage caches the last published pickup snapshot so a restart
// can serve data before the first refresh cycle completes. It never keeps
// history: one snapshot, replaced on every save.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"wastebot/internal/waste"
	"wastebot/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the snapshot cache.
//
// Driver values:
//   - "file": dependency-free JSON snapshot file
//   - "sqlite": SQLite database file (sqlite build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the minimal persistence API used by the refresh session.
type Store interface {
	SaveSnapshot(ctx context.Context, events []waste.Event, at time.Time) error
	LoadSnapshot(ctx context.Context) (events []waste.Event, at time.Time, err error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
