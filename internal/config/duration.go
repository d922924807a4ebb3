package config

import (
	"fmt"
	"strings"
	"time"
)

// parseDuration parses an optional Go duration string. Empty means 0;
// negative values are rejected. path names the field in errors.
func parseDuration(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// durationOrDefault backs the accessors on an already validated Config:
// omitted or unparseable values fall back to def.
func durationOrDefault(raw string, def time.Duration) time.Duration {
	d, err := parseDuration("", raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
