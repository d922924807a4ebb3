package source

import (
	"context"
	"time"

	"wastebot/internal/recurrence"
	"wastebot/internal/waste"
	"wastebot/pkg/logx"
)

// Rule pairs a recurrence spec with the type it collects.
type Rule struct {
	Type waste.Type
	Spec recurrence.Spec
}

// RecurrenceRules expands configured rules into concrete days within the
// horizon. A malformed rule is logged and skipped; the rest still expand.
type RecurrenceRules struct {
	Rules   []Rule
	Zone    *time.Location
	Horizon time.Duration
	Log     logx.Logger

	Now func() time.Time
}

func (s *RecurrenceRules) Name() string { return "rules" }

func (s *RecurrenceRules) Produce(ctx context.Context) ([]waste.Occurrence, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	var out []waste.Occurrence
	for _, rule := range s.Rules {
		if rule.Type == "" {
			continue
		}
		days, err := recurrence.Expand(rule.Spec, s.Zone, now, s.Horizon)
		if err != nil {
			s.Log.Warn("recurrence rule skipped", logx.String("type", string(rule.Type)), logx.Err(err))
			continue
		}
		for _, day := range days {
			out = append(out, waste.Occurrence{Day: day, Type: rule.Type})
		}
	}
	return out, nil
}
