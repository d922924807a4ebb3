package source

import (
	"context"

	"wastebot/internal/waste"
	"wastebot/pkg/logx"
)

// ManualItem is an explicitly configured pickup series: a canonical type
// plus a list of ISO dates. No classification is involved.
type ManualItem struct {
	Type  waste.Type
	Dates []string
}

// ManualDates emits occurrences for operator-entered dates.
type ManualDates struct {
	Items []ManualItem
	Log   logx.Logger
}

func (s *ManualDates) Name() string { return "manual" }

func (s *ManualDates) Produce(ctx context.Context) ([]waste.Occurrence, error) {
	var out []waste.Occurrence
	for _, item := range s.Items {
		if item.Type == "" {
			continue
		}
		for _, raw := range item.Dates {
			day, err := waste.ParseDate(raw)
			if err != nil {
				s.Log.Warn("manual date skipped", logx.String("type", string(item.Type)), logx.Err(err))
				continue
			}
			out = append(out, waste.Occurrence{Day: day, Type: item.Type})
		}
	}
	return out, nil
}
