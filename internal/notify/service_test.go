package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wastebot/pkg/logx"
)

type stubSink struct {
	mu    sync.Mutex
	sent  []string
	fails int // fail the first N sends
}

func (s *stubSink) Name() string { return "stub" }

func (s *stubSink) Send(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 {
		s.fails--
		return errors.New("boom")
	}
	s.sent = append(s.sent, text)
	return nil
}

func (s *stubSink) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestServiceDelivers(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	svc := New(Config{Enabled: true, Workers: 1, RatePerSec: 100}, logx.Nop(), nil, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop(context.Background())

	if err := svc.Notify(ctx, Message{Text: "Restmüll tomorrow"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	waitFor(t, func() bool { return len(sink.texts()) == 1 })
	if got := sink.texts()[0]; got != "Restmüll tomorrow" {
		t.Fatalf("sent %q", got)
	}
}

func TestServicePriorityPrefix(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	svc := New(Config{Enabled: true, Workers: 1, RatePerSec: 100}, logx.Nop(), nil, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop(context.Background())

	if err := svc.Notify(ctx, Message{Text: "bins out", Priority: 5}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	waitFor(t, func() bool { return len(sink.texts()) == 1 })
	if got := sink.texts()[0]; got != "⚠️ bins out" {
		t.Fatalf("sent %q", got)
	}
}

func TestServiceRetries(t *testing.T) {
	t.Parallel()

	sink := &stubSink{fails: 2}
	svc := New(Config{
		Enabled:    true,
		Workers:    1,
		RatePerSec: 100,
		RetryMax:   3,
		RetryBase:  time.Millisecond,
	}, logx.Nop(), nil, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop(context.Background())

	if err := svc.Notify(ctx, Message{Text: "eventually"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	waitFor(t, func() bool { return len(sink.texts()) == 1 })
}

func TestServiceDisabled(t *testing.T) {
	t.Parallel()

	svc := New(Config{Enabled: false}, logx.Nop(), nil, &stubSink{})
	svc.Start(context.Background())
	if err := svc.Notify(context.Background(), Message{Text: "x"}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestServiceStoppedRejects(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	svc := New(Config{Enabled: true, Workers: 1, RatePerSec: 100}, logx.Nop(), nil, sink)
	svc.Start(context.Background())
	svc.Stop(context.Background())

	if err := svc.Notify(context.Background(), Message{Text: "late"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestServiceStopDrains(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	svc := New(Config{Enabled: true, Workers: 2, RatePerSec: 1000}, logx.Nop(), nil, sink)

	ctx := context.Background()
	svc.Start(ctx)
	for i := 0; i < 5; i++ {
		if err := svc.Notify(ctx, Message{Text: "msg"}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}
	svc.Stop(context.Background())
	if got := len(sink.texts()); got != 5 {
		t.Fatalf("drained %d messages, want 5", got)
	}
}
