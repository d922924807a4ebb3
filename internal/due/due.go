// Package due derives display state from the published pickup timeline and
// the live clock. It is read-only: safe to call repeatedly and concurrently
// over the same snapshot.
package due

import (
	"fmt"
	"time"

	"wastebot/internal/waste"
)

// Class classifies how close a pickup is.
type Class string

const (
	ClassFuture       Class = "future"
	ClassTomorrow     Class = "tomorrow"
	ClassToday        Class = "today"
	ClassDue          Class = "due"
	ClassOverdueGrace Class = "overdue-grace"
)

// State is a derived badge for one event day. Never persisted.
type State struct {
	Class Class  `json:"class"`
	Label string `json:"label"`
}

// Row is one display entry of the next-pickups view.
type Row struct {
	Day   waste.Date   `json:"day"`
	Types []waste.Type `json:"types"`
	State State        `json:"state"`
}

// Alert is the one-shot "bins out" message for the first qualifying pickup.
type Alert struct {
	Types []waste.Type `json:"types"`
	At    time.Time    `json:"at"` // the reminder instant (day at remindAtHour)
}

// overdueGraceHours is how far past the reminder instant the badge keeps
// showing "due" before falling back to plain day counting.
const overdueGraceHours = 12.0

// alertCutoffHours is the stricter lower bound for raising an alert.
// Asymmetric with the badge window on purpose.
const alertCutoffHours = -3.0

func hoursUntil(day waste.Date, now time.Time, remindAtHour int) float64 {
	anchor := day.At(remindAtHour, now.Location())
	return anchor.Sub(now).Hours()
}

// Badge computes the display state for an event on day, evaluated at now.
//
// Inside the lead window (hoursUntil ≤ lead and ≥ −12) the badge is "due",
// or overdue-grace once the reminder instant has passed, and the label says
// whether the pickup day is now's day. Outside the window it degrades to a
// plain day count.
func Badge(day waste.Date, now time.Time, remindAtHour, leadHoursBefore int) State {
	h := hoursUntil(day, now, remindAtHour)

	if h <= float64(leadHoursBefore) && h >= -overdueGraceHours {
		label := "tomorrow"
		cls := ClassDue
		if day == waste.DateOf(now) {
			label = "today"
		}
		if h < 0 {
			cls = ClassOverdueGrace
		}
		return State{Class: cls, Label: label}
	}

	switch days := waste.DateOf(now).DaysUntil(day); days {
	case 0:
		return State{Class: ClassToday, Label: "today"}
	case 1:
		return State{Class: ClassTomorrow, Label: "tomorrow"}
	default:
		return State{Class: ClassFuture, Label: fmt.Sprintf("%dd", days)}
	}
}

// NextPickups returns the display rows: events on or after today, at most
// limit of them. groupSameDay unions duplicate days as a safeguard against
// a stale unmerged list; a properly merged snapshot passes through as-is.
func NextPickups(events []waste.Event, now time.Time, groupSameDay bool, limit, remindAtHour, leadHoursBefore int) []Row {
	today := waste.DateOf(now)

	rows := make([]Row, 0, limit)
	for _, ev := range events {
		if ev.Day.Before(today) || len(ev.Types) == 0 {
			continue
		}
		if groupSameDay && len(rows) > 0 && rows[len(rows)-1].Day == ev.Day {
			last := &rows[len(rows)-1]
			for _, typ := range ev.Types {
				if !hasType(last.Types, typ) {
					last.Types = append(last.Types, typ)
				}
			}
			continue
		}
		rows = append(rows, Row{
			Day:   ev.Day,
			Types: append([]waste.Type(nil), ev.Types...),
			State: Badge(ev.Day, now, remindAtHour, leadHoursBefore),
		})
	}

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// FirstDue scans rows in order and returns the single alert for the first
// pickup inside the strict window (hoursUntil ≤ lead and > −3), or ok=false.
//
// At most one alert per call; repeated calls re-raise for the same event,
// so the caller's evaluation cadence bounds how often that happens.
func FirstDue(rows []Row, now time.Time, remindAtHour, leadHoursBefore int) (Alert, bool) {
	for _, row := range rows {
		h := hoursUntil(row.Day, now, remindAtHour)
		if h <= float64(leadHoursBefore) && h > alertCutoffHours {
			return Alert{
				Types: append([]waste.Type(nil), row.Types...),
				At:    row.Day.At(remindAtHour, now.Location()),
			}, true
		}
	}
	return Alert{}, false
}

func hasType(types []waste.Type, t waste.Type) bool {
	for _, have := range types {
		if have == t {
			return true
		}
	}
	return false
}
