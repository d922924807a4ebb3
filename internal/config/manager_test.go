package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"wastebot/internal/recurrence"
	"wastebot/internal/waste"
)

func recurrenceSpec(freq string) recurrence.Spec {
	return recurrence.Spec{Freq: freq, ByWeekday: []string{"MO"}}
}

func writeConfig(t *testing.T, name, content string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return NewManager(path)
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.json", `{
		"timezone": "Europe/Berlin",
		"refresh": "30m",
		"show_count": 3,
		"sources": {
			"ical_urls": ["https://example.org/abfall.ics"],
			"items": [{"type": "glass", "dates": ["2024-06-20"]}]
		},
		"logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}}
	}`)

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ShowCount != 3 || len(cfg.Sources.ICalURLs) != 1 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.yaml", `
timezone: Europe/Berlin
refresh: "1h"
sources:
  ical_files:
    - calendars/abfuhr.ics
  rules:
    - type: organic
      rrule:
        freq: weekly
        byweekday: [TU]
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
`)

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Sources.Rules) != 1 || cfg.Sources.Rules[0].Type != waste.TypeOrganic {
		t.Fatalf("rules not decoded: %+v", cfg.Sources)
	}
	if cfg.Sources.Rules[0].RRule.ByWeekday[0] != "TU" {
		t.Fatalf("rrule not decoded: %+v", cfg.Sources.Rules[0])
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.json", `{"no_such_key": true}`)
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.json", `{"timezone":"UTC"} {"timezone":"UTC"}`)
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	cfg := &Config{}
	if got := cfg.MaxEventsOrDefault(); got != DefaultMaxEvents {
		t.Fatalf("MaxEvents default = %d", got)
	}
	if got := cfg.ShowCountOrDefault(); got != DefaultShowCount {
		t.Fatalf("ShowCount default = %d", got)
	}
	if !cfg.GroupSameDayOrDefault() {
		t.Fatal("GroupSameDay should default to true")
	}
	if cfg.RemindHour() != DefaultRemindHour || cfg.LeadHours() != DefaultLeadHours {
		t.Fatal("reminder defaults wrong")
	}
	if cfg.Horizon() != 180*24*time.Hour {
		t.Fatalf("Horizon default = %v", cfg.Horizon())
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Europe/Berlin" {
		t.Fatalf("Location default = %v, %v", loc, err)
	}

	off := false
	cfg.GroupSameDay = &off
	if cfg.GroupSameDayOrDefault() {
		t.Fatal("explicit false must win over the default")
	}
}

func TestDurationAccessors(t *testing.T) {
	t.Parallel()
	cfg := &Config{}
	if got := cfg.ReevalInterval(); got != 5*time.Minute {
		t.Fatalf("ReevalInterval default = %v", got)
	}
	if got := cfg.FetchTimeoutOrDefault(); got != DefaultFetchTimeout {
		t.Fatalf("FetchTimeout default = %v", got)
	}
	if got := cfg.CycleTimeoutOrDefault(); got != DefaultCycleTimeout {
		t.Fatalf("CycleTimeout default = %v", got)
	}

	cfg.Reeval = "90s"
	cfg.FetchTimeout = "3s"
	if cfg.ReevalInterval() != 90*time.Second || cfg.FetchTimeoutOrDefault() != 3*time.Second {
		t.Fatal("configured durations not honored")
	}

	st := &StorageConfig{BusyTimeout: "250ms"}
	if got := st.BusyTimeoutOrZero(); got != 250*time.Millisecond {
		t.Fatalf("BusyTimeout = %v", got)
	}
	if got := (&StorageConfig{}).BusyTimeoutOrZero(); got != 0 {
		t.Fatalf("omitted BusyTimeout = %v, want 0", got)
	}

	srv := &ServerConfig{ReadTimeout: "10s", IdleTimeout: "2m"}
	read, write, idle := srv.Timeouts()
	if read != 10*time.Second || write != 0 || idle != 2*time.Minute {
		t.Fatalf("Timeouts() = %v, %v, %v", read, write, idle)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	hour := 25
	bad := []*Config{
		{Timezone: "Not/AZone"},
		{Refresh: "sometimes"},
		{RemindAtHour: &hour},
		{Sources: SourcesConfig{Rules: []RuleConfig{{Type: "organic", RRule: recurrenceSpec("hourly")}}}},
		{Storage: &StorageConfig{Driver: "postgres"}},
	}
	for i, cfg := range bad {
		if err := Validate(cfg); err == nil {
			t.Fatalf("bad[%d]: expected validation error", i)
		}
	}

	good := &Config{
		Timezone: "UTC",
		Refresh:  "45m",
		Sources: SourcesConfig{
			Rules: []RuleConfig{{Type: "paper", RRule: recurrenceSpec("weekly")}},
		},
	}
	if err := Validate(good); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestScheduleParsing(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		kind ScheduleKind
		mins int64
	}{
		{raw: "15 * * * *", kind: ScheduleCron},
		{raw: "@hourly", kind: ScheduleCron},
		{raw: "cron:0 6 * * *", kind: ScheduleCron},
		{raw: "55m", kind: ScheduleInterval, mins: 55},
		{raw: "interval:45s", kind: ScheduleInterval},
		{raw: "01:30", kind: ScheduleInterval, mins: 90},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q): %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if tt.mins > 0 && got.Every.Minutes() != float64(tt.mins) {
				t.Fatalf("Every = %v, want %dm", got.Every, tt.mins)
			}
		})
	}

	if _, err := ParseSchedule("not-a-schedule"); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if _, err := ParseSchedule(""); err == nil {
		t.Fatal("expected error for empty schedule")
	}
}
