// Package recurrence expands rule-based pickup schedules ("second Tuesday
// of every month") into concrete calendar days within a bounded horizon.
package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"wastebot/internal/waste"
)

// DefaultHorizon bounds forward expansion (and event retention) to six months.
const DefaultHorizon = 6 * 30 * 24 * time.Hour

// Spec describes a recurrence rule. Owned by configuration; read-only here.
type Spec struct {
	Freq       string   `json:"freq"`                 // "daily" | "weekly" | "monthly"
	Interval   int      `json:"interval,omitempty"`   // every n-th period; default 1
	ByWeekday  []string `json:"byweekday,omitempty"`  // "MO".."SU"
	ByMonthDay []int    `json:"bymonthday,omitempty"` // 1..31, negative from month end
	ByMonth    []int    `json:"bymonth,omitempty"`    // 1..12
	BySetPos   []int    `json:"bysetpos,omitempty"`   // n-th occurrence within the period
}

var weekdays = map[string]rrule.Weekday{
	"MO": rrule.MO,
	"TU": rrule.TU,
	"WE": rrule.WE,
	"TH": rrule.TH,
	"FR": rrule.FR,
	"SA": rrule.SA,
	"SU": rrule.SU,
}

func frequency(s string) (rrule.Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "monthly":
		// The original schedules default to monthly; keep that.
		return rrule.MONTHLY, nil
	case "weekly":
		return rrule.WEEKLY, nil
	case "daily":
		return rrule.DAILY, nil
	default:
		return 0, fmt.Errorf("unsupported frequency %q", s)
	}
}

// Validate reports whether the spec could be expanded at all, without
// expanding it. Used by config validation.
func Validate(spec Spec) error {
	_, err := Expand(spec, time.UTC, time.Unix(0, 0), time.Hour)
	return err
}

// Expand returns all days the spec produces in [startOfDay(now), now+horizon],
// ascending. Expansion is deterministic for a fixed (spec, now, horizon).
func Expand(spec Spec, loc *time.Location, now time.Time, horizon time.Duration) ([]waste.Date, error) {
	if loc == nil {
		loc = time.UTC
	}
	if horizon <= 0 {
		horizon = DefaultHorizon
	}

	freq, err := frequency(spec.Freq)
	if err != nil {
		return nil, err
	}

	local := now.In(loc)
	start := waste.DateOf(local).In(loc)

	opt := rrule.ROption{
		Freq:    freq,
		Dtstart: start,
	}
	if spec.Interval > 0 {
		opt.Interval = spec.Interval
	}
	for _, w := range spec.ByWeekday {
		wd, ok := weekdays[strings.ToUpper(strings.TrimSpace(w))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", w)
		}
		opt.Byweekday = append(opt.Byweekday, wd)
	}
	opt.Bymonthday = append(opt.Bymonthday, spec.ByMonthDay...)
	opt.Bymonth = append(opt.Bymonth, spec.ByMonth...)
	opt.Bysetpos = append(opt.Bysetpos, spec.BySetPos...)

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence: %w", err)
	}

	days := make([]waste.Date, 0, 32)
	var prev waste.Date
	for _, t := range rule.Between(start, local.Add(horizon), true) {
		d := waste.DateOf(t.In(loc))
		// Between yields ascending instants; collapse same-day duplicates.
		if len(days) > 0 && d == prev {
			continue
		}
		days = append(days, d)
		prev = d
	}
	return days, nil
}
