// Package server exposes the read-only HTTP API: the current pickup
// snapshot, the next-pickups view and a live SSE stream of bus messages.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"wastebot/internal/eventbus"
	"wastebot/internal/waste"
	"wastebot/pkg/logx"
)

// Config controls the optional API listener.
type Config struct {
	Enabled bool
	Addr    string
	Token   string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8321"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 120 * time.Second
	}
	// WriteTimeout stays zero: it would sever long-lived SSE streams.
	return c
}

// SnapshotFunc returns the current merged pickup list.
type SnapshotFunc func() []waste.Event

// ViewParams are the presentation settings the view endpoints need,
// captured per request so config reloads take effect immediately.
type ViewParams struct {
	Location     *time.Location
	ShowCount    int
	GroupSameDay bool
	RemindAtHour int
	LeadHours    int
	Types        waste.TypeTable
}

// ViewFunc returns the current presentation settings.
type ViewFunc func() ViewParams

// Server manages lifecycle for the API listener.
type Server struct {
	mu   sync.Mutex
	log  logx.Logger
	srv  *http.Server
	ln   net.Listener
	addr string

	cfg      Config
	bus      eventbus.Bus
	snapshot SnapshotFunc
	view     ViewFunc
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus, snapshot SnapshotFunc, view ViewFunc) *Server {
	return &Server{
		log:      log.With(logx.String("comp", "api")),
		cfg:      cfg.withDefaults(),
		bus:      bus,
		snapshot: snapshot,
		view:     view,
	}
}

// Start binds the listener and serves in the background. Disabled or
// failed binds are logged, not fatal: the rest of the app keeps running.
func (s *Server) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled || s.srv != nil {
		return
	}

	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.log.Warn("api listen failed", logx.String("addr", s.cfg.Addr), logx.Err(err))
		return
	}

	s.srv = srv
	s.ln = ln
	s.addr = ln.Addr().String()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("api server error", logx.Err(err))
		}
	}()
	s.log.Info("api listening", logx.String("addr", s.addr))
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv == nil {
		return
	}
	srv := s.srv
	ln := s.ln
	s.srv = nil
	s.ln = nil
	s.addr = ""

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("api shutdown error", logx.Err(err))
	}
	if ln != nil {
		_ = ln.Close()
	}
}

// Addr reports the actual listen address if running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/events", s.auth(s.handleEvents))
	mux.HandleFunc("GET /api/next", s.auth(s.handleNext))
	mux.HandleFunc("GET /api/stream", s.auth(s.handleStream))
	return mux
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	token := s.cfg.Token
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
