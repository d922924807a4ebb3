// Package app wires configuration, aggregation, alerting, storage and the
// HTTP API into one daemon lifecycle.
package app

import (
	"context"
	"sync"
	"time"

	"wastebot/internal/aggregate"
	"wastebot/internal/config"
	"wastebot/internal/eventbus"
	"wastebot/internal/notify"
	"wastebot/internal/server"
	"wastebot/internal/storage"
	"wastebot/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	bus     eventbus.Bus
	store   storage.Store
	session *aggregate.Session
	notif   *notify.Service
	api     *server.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	store, err := storage.Open(storageConfig(cfg), logSvc.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	session := aggregate.NewSession(cfg, bus, store, logSvc.Logger().With(logx.String("comp", "aggregate")))

	notifLog := logSvc.Logger().With(logx.String("comp", "notifier"))
	sinks := []notify.Sink{notify.LogSink{Log: notifLog}}
	if tg := telegramConfig(cfg); tg != nil {
		sink, err := notify.NewTelegramSink(*tg)
		if err != nil {
			logSvc.Close()
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	notif := notify.New(notifyConfig(cfg), notifLog, bus, sinks...)

	api := server.New(serverConfig(cfg), logSvc.Logger(), bus, session.Events, viewFunc(cfgm))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		session: session,
		notif:   notif,
		api:     api,
	}, nil
}

// Session exposes the refresh session, mainly for tests.
func (a *App) Session() *aggregate.Session { return a.session }

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})

	a.notif.Start(runCtx)
	a.api.Start()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.session.Run(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.reminderLoop(runCtx)
	}()

	// Hot reload fan-out.
	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(newCfg)
			}
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	// Signal readiness to systemd once the first snapshot is out.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		select {
		case <-runCtx.Done():
		case <-a.session.Ready():
			notifyReady(a.log)
		}
	}()

	a.log.Info("app started")
	return nil
}

func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	a.notif.Apply(notifyConfig(cfg))
	a.session.Apply(cfg)

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel == nil {
		return nil
	}
	a.log.Info("stopping")
	notifyStopping(a.log)
	a.cancel()

	stopCtx := ctx
	if _, ok := stopCtx.Deadline(); !ok {
		var cancel context.CancelFunc
		stopCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	a.api.Stop(stopCtx)
	a.notif.Stop(stopCtx)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-stopCtx.Done():
		a.log.Warn("shutdown deadline reached")
	case <-done:
	}

	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("stopped")
	return a.logs.Close()
}

// ---- config mapping helpers ----

func storageConfig(cfg *config.Config) storage.Config {
	if cfg.Storage == nil {
		return storage.Config{}
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeoutOrZero(),
	}
}

func notifyConfig(cfg *config.Config) notify.Config {
	if cfg.Notify == nil {
		return notify.Config{}
	}
	return notify.Config{
		Enabled:    cfg.Notify.Enabled,
		Workers:    cfg.Notify.Workers,
		QueueSize:  cfg.Notify.QueueSize,
		RatePerSec: cfg.Notify.RatePerSec,
	}
}

func telegramConfig(cfg *config.Config) *notify.TelegramConfig {
	if cfg.Notify == nil || cfg.Notify.Telegram == nil {
		return nil
	}
	return &notify.TelegramConfig{
		Token:  cfg.Notify.Telegram.Token,
		ChatID: cfg.Notify.Telegram.ChatID,
	}
}

func serverConfig(cfg *config.Config) server.Config {
	if cfg.Server == nil {
		return server.Config{}
	}
	read, write, idle := cfg.Server.Timeouts()
	return server.Config{
		Enabled:      cfg.Server.Enabled,
		Addr:         cfg.Server.Addr,
		Token:        cfg.Server.Token,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}
}

// viewFunc builds the per-request view settings from the live config so
// hot reloads affect the API without a restart.
func viewFunc(cfgm *config.Manager) server.ViewFunc {
	return func() server.ViewParams {
		cfg := cfgm.Get()
		loc, err := cfg.Location()
		if err != nil {
			loc = time.UTC
		}
		return server.ViewParams{
			Location:     loc,
			ShowCount:    cfg.ShowCountOrDefault(),
			GroupSameDay: cfg.GroupSameDayOrDefault(),
			RemindAtHour: cfg.RemindHour(),
			LeadHours:    cfg.LeadHours(),
			Types:        cfg.TypeTable(),
		}
	}
}
