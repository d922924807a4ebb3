package aggregate

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"wastebot/internal/config"
	"wastebot/internal/eventbus"
	"wastebot/internal/source"
	"wastebot/internal/storage"
	"wastebot/internal/waste"
	"wastebot/pkg/logx"
)

// Session is the long-lived aggregation worker. It recomputes the full
// pickup timeline from scratch on every cycle (periodic, on config change,
// on demand) and publishes each result atomically: consumers either see
// the previous complete snapshot or the new one, never a partial build.
type Session struct {
	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store

	mu  sync.Mutex
	cfg *config.Config

	snap atomic.Value // []waste.Event

	applyCh   chan *config.Config
	refreshCh chan struct{}

	readyOnce sync.Once
	ready     chan struct{}

	// Now is the injectable clock; nil means time.Now.
	Now func() time.Time
}

func NewSession(cfg *config.Config, bus eventbus.Bus, store storage.Store, log logx.Logger) *Session {
	s := &Session{
		log:       log,
		bus:       bus,
		store:     store,
		cfg:       cfg,
		applyCh:   make(chan *config.Config, 1),
		refreshCh: make(chan struct{}, 1),
		ready:     make(chan struct{}),
	}
	s.snap.Store([]waste.Event{})
	return s
}

// Events returns the last published snapshot. Safe for concurrent use;
// callers must treat the slice as immutable.
func (s *Session) Events() []waste.Event {
	evs, _ := s.snap.Load().([]waste.Event)
	return evs
}

// Ready is closed after the first cycle has published.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// Apply hands a reloaded config to the session; the next cycle runs with
// it immediately. Never blocks: only the latest pending config matters.
func (s *Session) Apply(cfg *config.Config) {
	for {
		select {
		case s.applyCh <- cfg:
			return
		default:
			select {
			case <-s.applyCh:
			default:
			}
		}
	}
}

// TriggerRefresh requests an extra cycle (e.g. from an API call).
func (s *Session) TriggerRefresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

func (s *Session) config() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Session) setConfig(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Session) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run blocks until ctx is done. It restores the cached snapshot, runs an
// immediate cycle, then re-runs per the configured schedule and on every
// Apply/TriggerRefresh.
func (s *Session) Run(ctx context.Context) {
	s.restoreCache(ctx)
	s.RefreshNow(ctx)

	for {
		tick, stop := s.armTrigger()

		select {
		case <-ctx.Done():
			stop()
			return
		case cfg := <-s.applyCh:
			stop()
			s.setConfig(cfg)
			s.log.Info("configuration changed; refreshing")
			s.RefreshNow(ctx)
		case <-tick:
			stop()
			s.RefreshNow(ctx)
		case <-s.refreshCh:
			stop()
			s.RefreshNow(ctx)
		}
	}
}

// armTrigger sets up the time-based trigger for one wait round. Cron
// schedules run through robfig/cron (honoring the configured zone);
// intervals through a plain timer.
func (s *Session) armTrigger() (<-chan struct{}, func()) {
	cfg := s.config()

	raw := config.DefaultRefresh
	if cfg != nil && cfg.Refresh != "" {
		raw = cfg.Refresh
	}
	sched, err := config.ParseSchedule(raw)
	if err != nil {
		// Validation should have caught this; fall back rather than spin.
		s.log.Warn("invalid refresh schedule; using default", logx.String("refresh", raw), logx.Err(err))
		sched = config.Schedule{Kind: config.ScheduleInterval, Every: time.Hour}
	}

	tick := make(chan struct{}, 1)
	fire := func() {
		select {
		case tick <- struct{}{}:
		default:
		}
	}

	switch sched.Kind {
	case config.ScheduleCron:
		loc := time.Local
		if cfg != nil {
			if l, err := cfg.Location(); err == nil {
				loc = l
			}
		}
		c := cron.New(cron.WithLocation(loc))
		if _, err := c.AddFunc(sched.Cron, fire); err != nil {
			s.log.Warn("cron schedule rejected; using hourly interval", logx.String("cron", sched.Cron), logx.Err(err))
			t := time.AfterFunc(time.Hour, fire)
			return tick, func() { t.Stop() }
		}
		c.Start()
		return tick, func() { c.Stop() }
	default:
		t := time.AfterFunc(sched.Every, fire)
		return tick, func() { t.Stop() }
	}
}

// restoreCache pre-populates the snapshot from storage so consumers have
// data while the first cycle is still fetching.
func (s *Session) restoreCache(ctx context.Context) {
	if s.store == nil {
		return
	}
	events, at, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		s.log.Warn("snapshot cache load failed", logx.Err(err))
		return
	}
	if len(events) == 0 {
		return
	}
	s.snap.Store(events)
	s.log.Info("snapshot cache restored", logx.Int("events", len(events)), logx.Time("saved_at", at))
}

// RefreshNow runs one full aggregation cycle and publishes the result.
// On catastrophic failure an EMPTY list is published so downstream never
// observes stale or undefined state.
func (s *Session) RefreshNow(ctx context.Context) {
	cfg := s.config()
	if cfg == nil {
		return
	}

	started := s.now()
	events := s.runCycle(ctx, cfg)

	s.snap.Store(events)
	if s.store != nil {
		if err := s.store.SaveSnapshot(ctx, events, s.now()); err != nil {
			s.log.Warn("snapshot cache save failed", logx.Err(err))
		}
	}
	s.bus.Publish(eventbus.Message{Type: eventbus.EventsUpdated, Data: events})
	s.readyOnce.Do(func() { close(s.ready) })

	s.log.Info("refresh cycle complete",
		logx.Int("events", len(events)),
		logx.Duration("took", s.now().Sub(started)))
}

// runCycle builds the adapters from cfg, fans out, merges. Any panic or
// setup failure degrades to an empty list for this cycle.
func (s *Session) runCycle(ctx context.Context, cfg *config.Config) (events []waste.Event) {
	events = []waste.Event{}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("refresh cycle panicked; publishing empty list", logx.Any("panic", r))
			events = []waste.Event{}
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		s.log.Error("timezone unusable; publishing empty list", logx.Err(err))
		return events
	}

	cycleTimeout := cfg.CycleTimeoutOrDefault()
	fetchTimeout := cfg.FetchTimeoutOrDefault()

	cctx, cancel := context.WithTimeout(ctx, cycleTimeout)
	defer cancel()

	now := s.now()
	occs := source.Collect(cctx, s.log, fetchTimeout, s.buildSources(cfg, loc, fetchTimeout)...)

	today := waste.DateOf(now.In(loc))
	return Merge(occs, today, cfg.MaxEventsOrDefault())
}

func (s *Session) buildSources(cfg *config.Config, loc *time.Location, fetchTimeout time.Duration) []source.Source {
	classifier := waste.NewClassifier(cfg.ClassifierRules()...)
	horizon := cfg.Horizon()
	now := s.now

	manual := make([]source.ManualItem, 0, len(cfg.Sources.Items))
	for _, it := range cfg.Sources.Items {
		manual = append(manual, source.ManualItem{Type: it.Type, Dates: it.Dates})
	}
	rules := make([]source.Rule, 0, len(cfg.Sources.Rules))
	for _, r := range cfg.Sources.Rules {
		rules = append(rules, source.Rule{Type: r.Type, Spec: r.RRule})
	}

	return []source.Source{
		&source.RemoteCalendars{
			URLs:     cfg.Sources.ICalURLs,
			Zone:     loc,
			Horizon:  horizon,
			Classify: classifier.Classify,
			Client:   &http.Client{Timeout: fetchTimeout},
			Log:      s.log,
			Now:      now,
		},
		&source.LocalCalendars{
			Paths:    cfg.Sources.ICalFiles,
			Root:     cfg.Sources.AppRoot,
			Zone:     loc,
			Horizon:  horizon,
			Classify: classifier.Classify,
			Log:      s.log,
			Now:      now,
		},
		&source.ManualDates{Items: manual, Log: s.log},
		&source.RecurrenceRules{Rules: rules, Zone: loc, Horizon: horizon, Log: s.log, Now: now},
	}
}
