// Package source turns heterogeneous schedule sources (remote ICS feeds,
// local ICS files, manual date lists, recurrence rules) into a uniform
// stream of pickup occurrences.
package source

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"wastebot/internal/waste"
	"wastebot/pkg/logx"
)

// Source produces occurrences from one configured schedule source.
//
// Produce must tolerate partially bad input: a single malformed entry is
// logged and skipped, the rest is still returned. A returned error means
// the whole source contributed nothing this cycle.
type Source interface {
	Name() string
	Produce(ctx context.Context) ([]waste.Occurrence, error)
}

// DefaultFetchTimeout bounds a single source so one unreachable feed
// cannot stall a refresh cycle.
const DefaultFetchTimeout = 12 * time.Second

// Collect fans out across all sources concurrently and returns the
// concatenation of their outputs. Sources share no state; a failing source
// is logged and contributes an empty list without affecting the others.
func Collect(ctx context.Context, log logx.Logger, timeout time.Duration, sources ...Source) []waste.Occurrence {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	results := make([][]waste.Occurrence, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic in source",
						logx.String("source", src.Name()),
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())))
				}
			}()
			sctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			occs, err := src.Produce(sctx)
			if err != nil {
				log.Warn("source failed; skipping this cycle",
					logx.String("source", src.Name()), logx.Err(err))
				return
			}
			results[i] = occs
		}(i, src)
	}
	wg.Wait()

	var total int
	for _, r := range results {
		total += len(r)
	}
	out := make([]waste.Occurrence, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}
