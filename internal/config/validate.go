package config

import (
	"fmt"
	"strings"

	"wastebot/internal/recurrence"
)

// Validate checks everything that must be structurally sound before a
// config is committed. Per-item source problems (a bad date, an
// unreachable URL) are deliberately NOT validation errors: those degrade
// at refresh time instead of blocking a reload.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}

	if cfg.Refresh != "" {
		if _, err := ParseSchedule(cfg.Refresh); err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
	}
	if _, err := parseDuration("reeval", cfg.Reeval); err != nil {
		return err
	}
	if _, err := parseDuration("fetch_timeout", cfg.FetchTimeout); err != nil {
		return err
	}
	if _, err := parseDuration("cycle_timeout", cfg.CycleTimeout); err != nil {
		return err
	}

	if h := cfg.RemindAtHour; h != nil && (*h < 0 || *h > 23) {
		return fmt.Errorf("remind_at_hour must be in 0..23, got %d", *h)
	}
	if l := cfg.LeadHoursBefore; l != nil && *l < 0 {
		return fmt.Errorf("lead_hours_before must be >= 0, got %d", *l)
	}
	if cfg.HorizonDays < 0 {
		return fmt.Errorf("horizon_days must be >= 0")
	}

	for i, r := range cfg.Sources.Rules {
		if r.Type == "" {
			return fmt.Errorf("sources.rules[%d]: type required", i)
		}
		if err := recurrence.Validate(r.RRule); err != nil {
			return fmt.Errorf("sources.rules[%d]: %w", i, err)
		}
	}

	if st := cfg.Storage; st != nil {
		switch strings.ToLower(strings.TrimSpace(st.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("storage.driver %q unknown", st.Driver)
		}
		if _, err := parseDuration("storage.busy_timeout", st.BusyTimeout); err != nil {
			return err
		}
	}

	if srv := cfg.Server; srv != nil && srv.Enabled {
		for _, f := range []struct {
			name, raw string
		}{
			{"server.read_timeout", srv.ReadTimeout},
			{"server.write_timeout", srv.WriteTimeout},
			{"server.idle_timeout", srv.IdleTimeout},
		} {
			if _, err := parseDuration(f.name, f.raw); err != nil {
				return err
			}
		}
	}

	if n := cfg.Notify; n != nil && n.Enabled && n.Telegram != nil {
		if strings.TrimSpace(n.Telegram.Token) == "" {
			return fmt.Errorf("notify.telegram.token required when telegram sink is configured")
		}
		if n.Telegram.ChatID == 0 {
			return fmt.Errorf("notify.telegram.chat_id required when telegram sink is configured")
		}
	}

	return nil
}
