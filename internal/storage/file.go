package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"wastebot/internal/waste"
	"wastebot/pkg/logx"
)

// fileStore is the dependency-free backend: one JSON document, replaced
// atomically (write temp file, rename over the old one).
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
}

type snapshotDoc struct {
	SavedAt time.Time     `json:"saved_at"`
	Events  []waste.Event `json:"events"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) SaveSnapshot(ctx context.Context, events []waste.Event, at time.Time) error {
	if s == nil {
		return ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := json.Marshal(snapshotDoc{SavedAt: at, Events: events})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) LoadSnapshot(ctx context.Context) ([]waste.Event, time.Time, error) {
	if s == nil {
		return nil, time.Time{}, ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, err
	}

	var doc snapshotDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		// A torn or corrupt cache is not worth failing startup over.
		s.log.Warn("snapshot cache corrupt; ignoring", logx.String("path", s.path), logx.Err(err))
		return nil, time.Time{}, nil
	}
	return doc.Events, doc.SavedAt, nil
}

func (s *fileStore) Close() error { return nil }
