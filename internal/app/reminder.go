package app

import (
	"context"
	"strings"
	"time"

	"wastebot/internal/due"
	"wastebot/internal/eventbus"
	"wastebot/internal/notify"
	"wastebot/internal/waste"
	"wastebot/pkg/logx"
)

// reminderLoop re-evaluates due state whenever a new snapshot is published
// and on a fixed cadence in between, so a pickup can enter its lead window
// without fresh data.
func (a *App) reminderLoop(ctx context.Context) {
	log := a.logs.Logger().With(logx.String("comp", "reminder"))

	sub, unsub := a.bus.Subscribe(4)
	defer unsub()

	for {
		timer := time.NewTimer(a.cfgm.Get().ReevalInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case m, ok := <-sub:
			timer.Stop()
			if !ok {
				return
			}
			if m.Type != eventbus.EventsUpdated {
				continue
			}
		case <-timer.C:
		}

		a.evaluate(ctx, log)
	}
}

func (a *App) evaluate(ctx context.Context, log logx.Logger) {
	cfg := a.cfgm.Get()
	loc, err := cfg.Location()
	if err != nil {
		log.Warn("invalid timezone, skipping evaluation", logx.Err(err))
		return
	}
	now := time.Now().In(loc)

	rows := due.NextPickups(a.session.Events(), now, cfg.GroupSameDayOrDefault(),
		cfg.ShowCountOrDefault(), cfg.RemindHour(), cfg.LeadHours())

	alert, ok := due.FirstDue(rows, now, cfg.RemindHour(), cfg.LeadHours())
	if !ok {
		return
	}

	text := alertText(alert, now, cfg.TypeTable())
	log.Info("pickup due",
		logx.Time("at", alert.At),
		logx.String("types", joinTypes(alert.Types)))

	a.bus.Publish(eventbus.Message{Type: eventbus.AlertRaised, Time: now, Data: alert})

	if err := a.notif.Notify(ctx, notify.Message{Text: text, Priority: 5}); err != nil {
		switch err {
		case notify.ErrDisabled:
			// log sink output above is the reminder in that case
		default:
			log.Warn("reminder enqueue failed", logx.Err(err))
		}
	}
}

func alertText(alert due.Alert, now time.Time, types waste.TypeTable) string {
	labels := make([]string, 0, len(alert.Types))
	for _, typ := range alert.Types {
		labels = append(labels, types.Label(typ))
	}

	day := waste.Date{Year: alert.At.Year(), Month: alert.At.Month(), Day: alert.At.Day()}
	when := day.String()
	switch waste.DateOf(now).DaysUntil(day) {
	case 0:
		when = "today"
	case 1:
		when = "tomorrow"
	}

	return "Bins out! Pickup " + when + ": " + strings.Join(labels, ", ")
}

func joinTypes(types []waste.Type) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ",")
}
