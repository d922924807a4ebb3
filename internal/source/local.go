package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wastebot/internal/ics"
	"wastebot/internal/waste"
	"wastebot/pkg/logx"
)

// LocalCalendars reads ICS files from disk (e.g. feeds downloaded out of
// band). Relative paths are resolved against Root. It never touches the
// network.
type LocalCalendars struct {
	Paths    []string
	Root     string // application root for relative paths
	Zone     *time.Location
	Horizon  time.Duration
	Classify func(string) waste.Type
	Log      logx.Logger

	Now func() time.Time
}

func (s *LocalCalendars) Name() string { return "ical-local" }

func (s *LocalCalendars) Produce(ctx context.Context) ([]waste.Occurrence, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	var out []waste.Occurrence
	for _, path := range s.Paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		resolved := path
		if !filepath.IsAbs(resolved) && s.Root != "" {
			resolved = filepath.Join(s.Root, resolved)
		}

		f, err := os.Open(resolved)
		if err != nil {
			s.Log.Warn("ics file unreadable", logx.String("path", resolved), logx.Err(err))
			continue
		}
		occs, err := ics.Extract(f, s.Zone, now, s.Horizon, s.Classify)
		_ = f.Close()
		if err != nil {
			s.Log.Warn("ics file malformed", logx.String("path", resolved), logx.Err(err))
			continue
		}
		out = append(out, occs...)
	}
	return out, nil
}
