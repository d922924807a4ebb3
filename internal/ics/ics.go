// Package ics extracts pickup occurrences from iCalendar data.
//
// Only VEVENT entries are read: the event's start (truncated to a day in
// the configured zone) plus its summary text. Everything else in a feed is
// ignored.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/apognu/gocal"

	"wastebot/internal/waste"
)

// Extract parses a single calendar and returns one occurrence per event.
//
// Parsing is bounded to [startOfDay(now), now+horizon] so recurring feed
// entries expand only inside the retention window. Events without a start
// or with an unclassifiable empty summary are skipped.
func Extract(r io.Reader, loc *time.Location, now time.Time, horizon time.Duration, classify func(string) waste.Type) ([]waste.Occurrence, error) {
	if loc == nil {
		loc = time.UTC
	}

	local := now.In(loc)
	start := waste.DateOf(local).In(loc)
	end := local.Add(horizon)

	p := gocal.NewParser(r)
	p.Start, p.End = &start, &end
	// A malformed VEVENT drops only that event; the rest of the feed
	// still parses.
	p.Strict.Mode = gocal.StrictModeFailEvent
	if err := p.Parse(); err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	out := make([]waste.Occurrence, 0, len(p.Events))
	for _, ev := range p.Events {
		if ev.Start == nil {
			continue
		}
		summary := strings.TrimSpace(ev.Summary)
		typ := classify(summary)
		if typ == "" {
			continue
		}
		out = append(out, waste.Occurrence{
			Day:  waste.DateOf(ev.Start.In(loc)),
			Type: typ,
		})
	}
	return out, nil
}
