package config

import (
	"time"

	"wastebot/internal/recurrence"
	"wastebot/internal/waste"
)

// Config is the whole daemon configuration, read from one JSON or YAML
// file. All duration fields are Go duration strings (e.g. "30s", "1h").
// It is consumed read-only per refresh cycle; reloads swap the whole value.
type Config struct {
	// Timezone all day-bucketing and reminder math happens in.
	// Default "Europe/Berlin".
	Timezone string `json:"timezone,omitempty"`

	// Refresh triggers a full aggregation cycle. Accepts a cron expression
	// ("15 * * * *", "@hourly"), a Go duration ("55m") or HH:MM ("01:00").
	// Default "1h".
	Refresh string `json:"refresh,omitempty"`

	// Reeval is how often due state is re-checked between refreshes so an
	// event can enter its lead window without new data. Default "5m".
	Reeval string `json:"reeval,omitempty"`

	// HorizonDays bounds recurrence expansion and event retention.
	// Default 180 (about six months).
	HorizonDays int `json:"horizon_days,omitempty"`

	// MaxEvents caps the merged list. Default 200.
	MaxEvents int `json:"max_events,omitempty"`

	// ShowCount caps the rows returned by the next-pickups view. Default 5.
	ShowCount int `json:"show_count,omitempty"`

	// GroupSameDay unions duplicate days in the view. Pointer so an
	// explicit false is distinguishable from "omitted" (default true).
	GroupSameDay *bool `json:"group_same_day,omitempty"`

	// RemindAtHour is the local hour pickups anchor to (default 20, i.e.
	// bins out by 20:00 the evening before an early-morning collection).
	RemindAtHour *int `json:"remind_at_hour,omitempty"`

	// LeadHoursBefore is the due window in hours before RemindAtHour.
	// Default 12.
	LeadHoursBefore *int `json:"lead_hours_before,omitempty"`

	FetchTimeout string `json:"fetch_timeout,omitempty"` // per source, default "12s"
	CycleTimeout string `json:"cycle_timeout,omitempty"` // whole cycle, default "30s"

	Sources SourcesConfig `json:"sources"`

	// Types overrides/extends the built-in display table.
	Types map[waste.Type]waste.TypeInfo `json:"types,omitempty"`

	// Keywords are extra classifier rows, tried before the built-ins.
	Keywords []KeywordConfig `json:"keywords,omitempty"`

	Notify  *NotifyConfig  `json:"notify,omitempty"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Server  *ServerConfig  `json:"server,omitempty"`
	Logging LoggingConfig  `json:"logging"`
}

type SourcesConfig struct {
	ICalURLs  []string `json:"ical_urls,omitempty"`
	ICalFiles []string `json:"ical_files,omitempty"`
	// AppRoot resolves relative ICalFiles entries. Default: the working
	// directory of the daemon.
	AppRoot string         `json:"app_root,omitempty"`
	Items   []ManualConfig `json:"items,omitempty"`
	Rules   []RuleConfig   `json:"rules,omitempty"`
}

type ManualConfig struct {
	Type  waste.Type `json:"type"`
	Dates []string   `json:"dates"`
}

type RuleConfig struct {
	Type  waste.Type      `json:"type"`
	RRule recurrence.Spec `json:"rrule"`
}

type KeywordConfig struct {
	Keyword string     `json:"keyword"`
	Type    waste.Type `json:"type"`
}

// NotifyConfig controls the async alert pipeline. If the whole section is
// omitted, alerts go to the log sink only.
type NotifyConfig struct {
	Enabled    bool                `json:"enabled"`
	Workers    int                 `json:"workers,omitempty"`
	QueueSize  int                 `json:"queue_size,omitempty"`
	RatePerSec int                 `json:"rate_per_sec,omitempty"`
	Telegram   *TelegramSinkConfig `json:"telegram,omitempty"`
}

type TelegramSinkConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

// StorageConfig controls the snapshot cache.
//
// Driver values:
//   - "file": dependency-free JSON snapshot file
//   - "sqlite": SQLite database file (sqlite build tag)
//
// If Driver is empty or "none", the cache is disabled.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// ServerConfig controls the HTTP API (snapshot + SSE push channel).
//
// Prefer binding to localhost; set a token if you bind anywhere else.
type ServerConfig struct {
	Enabled      bool   `json:"enabled"`
	Addr         string `json:"addr,omitempty"`  // default "127.0.0.1:8321"
	Token        string `json:"token,omitempty"` // optional bearer token
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ---- Derived accessors (defaults live here, not scattered at call sites) ----

const (
	DefaultTimezone     = "Europe/Berlin"
	DefaultRefresh      = "1h"
	DefaultReeval       = "5m"
	DefaultHorizonDays  = 180
	DefaultMaxEvents    = 200
	DefaultShowCount    = 5
	DefaultRemindHour   = 20
	DefaultLeadHours    = 12
	DefaultFetchTimeout = 12 * time.Second
	DefaultCycleTimeout = 30 * time.Second
	DefaultServerAddr   = "127.0.0.1:8321"
)

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	tz := c.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	return time.LoadLocation(tz)
}

func (c *Config) Horizon() time.Duration {
	days := c.HorizonDays
	if days <= 0 {
		days = DefaultHorizonDays
	}
	return time.Duration(days) * 24 * time.Hour
}

func (c *Config) MaxEventsOrDefault() int {
	if c.MaxEvents > 0 {
		return c.MaxEvents
	}
	return DefaultMaxEvents
}

func (c *Config) ShowCountOrDefault() int {
	if c.ShowCount > 0 {
		return c.ShowCount
	}
	return DefaultShowCount
}

func (c *Config) GroupSameDayOrDefault() bool {
	if c.GroupSameDay == nil {
		return true
	}
	return *c.GroupSameDay
}

func (c *Config) RemindHour() int {
	if c.RemindAtHour == nil {
		return DefaultRemindHour
	}
	return *c.RemindAtHour
}

func (c *Config) LeadHours() int {
	if c.LeadHoursBefore == nil {
		return DefaultLeadHours
	}
	return *c.LeadHoursBefore
}

// ReevalInterval is the parsed re-evaluation cadence.
func (c *Config) ReevalInterval() time.Duration {
	return durationOrDefault(c.Reeval, 5*time.Minute)
}

func (c *Config) FetchTimeoutOrDefault() time.Duration {
	return durationOrDefault(c.FetchTimeout, DefaultFetchTimeout)
}

func (c *Config) CycleTimeoutOrDefault() time.Duration {
	return durationOrDefault(c.CycleTimeout, DefaultCycleTimeout)
}

// BusyTimeout is the parsed sqlite busy timeout; zero means the driver
// default.
func (s *StorageConfig) BusyTimeoutOrZero() time.Duration {
	return durationOrDefault(s.BusyTimeout, 0)
}

// Timeouts returns the parsed HTTP server timeouts; zero means unset.
func (s *ServerConfig) Timeouts() (read, write, idle time.Duration) {
	return durationOrDefault(s.ReadTimeout, 0),
		durationOrDefault(s.WriteTimeout, 0),
		durationOrDefault(s.IdleTimeout, 0)
}

// TypeTable merges the built-in display table with config overrides.
func (c *Config) TypeTable() waste.TypeTable {
	table := waste.DefaultTypeTable()
	for t, info := range c.Types {
		table[t] = info
	}
	return table
}

// ClassifierRules converts configured keywords into classifier rows.
func (c *Config) ClassifierRules() []waste.KeywordRule {
	rules := make([]waste.KeywordRule, 0, len(c.Keywords))
	for _, k := range c.Keywords {
		rules = append(rules, waste.KeywordRule{Keyword: k.Keyword, Type: k.Type})
	}
	return rules
}
