package notify

import (
	"context"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"wastebot/internal/eventbus"
	"wastebot/pkg/logx"

	"golang.org/x/time/rate"
)

type job struct {
	m Message
}

// Service implements the async delivery pipeline:
// queue + worker pool + rate limit + retry.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log   logx.Logger
	sinks []Sink
	bus   eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue    chan job
	stopDone chan struct{}

	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus, sinks ...Sink) *Service {
	s := &Service{
		log:   log,
		bus:   bus,
		sinks: sinks,
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Apply swaps in a new configuration. Queue and worker count of a running
// service are fixed until restart; rate and retry settings take effect on
// the next send.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}

	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.queue != nil {
		// already running
		s.mu.Unlock()
		return
	}
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}

	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	s.stopDone = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	workers := s.cfg.Workers
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		i := i
		s.workerWG.Add(1)
		go func() {
			defer s.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in notifier worker",
						logx.Int("worker", i),
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())))
				}
			}()
			s.workerLoop()
		}()
	}
}

// Stop stops intake and drains the queue best-effort until ctx deadline.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q := s.queue
	done := s.stopDone
	cancel := s.runCancel
	if q == nil {
		s.mu.Unlock()
		return
	}
	s.accepting = false
	s.mu.Unlock()

	// Wait for in-flight enqueues to finish, then close the queue so the
	// workers can drain it.
	ch := make(chan struct{})
	go func() {
		s.sendWG.Wait()
		close(ch)
	}()
	select {
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		return
	case <-ch:
	}

	func() {
		defer func() { _ = recover() }()
		close(q)
	}()

	go func() {
		s.workerWG.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
	case <-done:
		if cancel != nil {
			cancel()
		}
	}

	s.mu.Lock()
	s.queue = nil
	s.stopDone = nil
	s.runCancel = nil
	s.runCtx = nil
	s.mu.Unlock()
}

// Notify enqueues a reminder. It never blocks: a full queue returns
// ErrQueueFull and the message is dropped.
func (s *Service) Notify(ctx context.Context, m Message) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	select {
	case q <- job{m: m}:
		return nil
	default:
		s.publish(eventbus.NotifyDropped, m, ErrQueueFull)
		return ErrQueueFull
	}
}

func (s *Service) workerLoop() {
	s.mu.Lock()
	q := s.queue
	runCtx := s.runCtx
	s.mu.Unlock()

	for j := range q {
		if runCtx != nil {
			select {
			case <-runCtx.Done():
				return
			default:
			}
		}
		s.sendWithRetry(runCtx, j)
	}
}

func (s *Service) sendWithRetry(runCtx context.Context, j job) {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	sinks := s.sinks
	log := s.log
	s.mu.Unlock()

	if len(sinks) == 0 {
		return
	}

	text := prefixForPriority(j.m.Priority) + j.m.Text
	if text == "" {
		return
	}

	maxAttempts := 1 + cfg.RetryMax

	for _, sink := range sinks {
		var lastErr error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			if lim != nil {
				wctx := runCtx
				if wctx == nil {
					wctx = context.Background()
				}
				if err := lim.Wait(wctx); err != nil {
					return
				}
			}

			// Bound per-send call so a stuck sink can't hang a worker.
			callCtx := runCtx
			if callCtx == nil {
				callCtx = context.Background()
			}
			callCtx, cancel := context.WithTimeout(callCtx, 10*time.Second)
			err := sink.Send(callCtx, text)
			cancel()
			if err == nil {
				s.publish(eventbus.NotifySent, j.m, nil)
				lastErr = nil
				break
			}
			lastErr = err
			log.Debug("reminder send failed",
				logx.String("sink", sink.Name()),
				logx.Err(err),
				logx.Int("attempt", attempt),
				logx.Int("max", maxAttempts))

			if attempt >= maxAttempts {
				break
			}

			delay := retryDelay(cfg, attempt)
			if delay <= 0 {
				continue
			}
			t := time.NewTimer(delay)
			rc := runCtx
			if rc == nil {
				rc = context.Background()
			}
			select {
			case <-t.C:
			case <-rc.Done():
				if !t.Stop() {
					<-t.C
				}
				return
			}
		}
		if lastErr != nil {
			log.Warn("reminder delivery gave up",
				logx.String("sink", sink.Name()),
				logx.Err(lastErr))
			s.publish(eventbus.NotifyFailed, j.m, lastErr)
		}
	}
}

func (s *Service) publish(typ string, m Message, err error) {
	if s.bus == nil {
		return
	}
	data := map[string]any{"text": m.Text, "priority": m.Priority}
	if err != nil {
		data["error"] = err.Error()
	}
	s.bus.Publish(eventbus.Message{Type: typ, Time: time.Now(), Data: data})
}

func retryDelay(cfg Config, attempt int) time.Duration {
	base := cfg.RetryBase
	maxD := cfg.RetryMaxDelay

	// Exponential backoff: base * 2^(attempt-1), with 0.7..1.3 jitter.
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxD {
			d = maxD
			break
		}
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	d = time.Duration(float64(d) * (0.7 + rng.Float64()*0.6))
	if d < 0 {
		return 0
	}
	if d > maxD {
		d = maxD
	}
	return d
}
