// Package notify delivers pickup reminders to external sinks through an
// async queue with a worker pool, rate limiting and retries.
package notify

import (
	"context"
	"errors"
	"time"

	"wastebot/pkg/logx"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

// Message is one outbound reminder.
type Message struct {
	Text     string
	Priority int
}

// Sink is a delivery backend. Send is called from worker goroutines and
// must honor ctx cancellation.
type Sink interface {
	Name() string
	Send(ctx context.Context, text string) error
}

// Config tunes the delivery pipeline.
type Config struct {
	Enabled    bool
	Workers    int
	QueueSize  int
	RatePerSec int

	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

func prefixForPriority(p int) string {
	switch {
	case p >= 8:
		return "🚨 "
	case p >= 5:
		return "⚠️ "
	default:
		return ""
	}
}

// LogSink writes reminders to the application log. Always available, used
// when no external sink is configured.
type LogSink struct {
	Log logx.Logger
}

func (s LogSink) Name() string { return "log" }

func (s LogSink) Send(_ context.Context, text string) error {
	s.Log.Info("reminder", logx.String("text", text))
	return nil
}
