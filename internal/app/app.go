// Package app wires the process together: config, logging, store,
// clients, engine, scheduler and HTTP server, with explicit
// construction instead of ambient singletons.
package app

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"

	"rmndr/internal/bot"
	"rmndr/internal/config"
	"rmndr/internal/logging"
	"rmndr/internal/messenger"
	"rmndr/internal/nlp"
	"rmndr/internal/scheduler"
	"rmndr/internal/server"
	"rmndr/internal/store"
	"rmndr/internal/token"
)

type App struct {
	cfgMgr *config.Manager
	log    zerolog.Logger

	jobs  store.Store
	sched *scheduler.Service
	srv   *server.Server

	watchCancel context.CancelFunc
}

// New loads configuration and constructs every component. Nothing is
// started yet.
func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logging.New(cfg.Log)
	mgr.SetLogger(log)

	jobs, err := store.Open(store.Config{
		Path:        cfg.Store.Path,
		BusyTimeout: cfg.Store.BusyTimeout.Std(),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	msgr := messenger.New(messenger.Config{
		APIBase:     cfg.Messenger.APIBase,
		AccessToken: cfg.Messenger.AccessToken,
		Timeout:     cfg.Messenger.Timeout.Std(),
		SendPerSec:  cfg.Messenger.SendPerSec,
		SendBurst:   cfg.Messenger.SendBurst,
	}, log)

	nlpClient := nlp.NewClient(nlp.Config{
		APIBase: cfg.NLP.APIBase,
		Token:   cfg.NLP.Token,
		Version: cfg.NLP.Version,
		Timeout: cfg.NLP.Timeout.Std(),
	}, log)
	resolver := nlp.NewResolver(nlpClient, msgr, log)

	codec := token.NewCodec(cfg.Token.Secret)

	sched := scheduler.New(scheduler.Config{
		Workers:   cfg.Scheduler.Workers,
		Tick:      cfg.Scheduler.Tick.Std(),
		QueueSize: cfg.Scheduler.QueueSize,
		RetryMax:  cfg.Scheduler.RetryMax,
	}, jobs, msgr.SendText, log)

	engine := bot.NewEngine(msgr, resolver, jobs, sched, codec, log)

	srv := server.New(server.Config{
		Listen:      cfg.Server.Listen,
		VerifyToken: cfg.Server.VerifyToken,
		AppSecret:   cfg.Server.AppSecret,
	}, engine, log)

	return &App{
		cfgMgr: mgr,
		log:    log,
		jobs:   jobs,
		sched:  sched,
		srv:    srv,
	}, nil
}

// Start brings up the scheduler and HTTP listener and begins watching
// the config file. It returns once everything is running.
func (a *App) Start(ctx context.Context) error {
	if err := a.sched.Start(ctx); err != nil {
		return err
	}

	go func() {
		if err := a.srv.Start(); err != nil {
			a.log.Error().Err(err).Msg("http server exited")
		}
	}()

	watchCtx, cancel := context.WithCancel(context.Background())
	a.watchCancel = cancel
	go func() {
		if err := a.cfgMgr.Watch(watchCtx); err != nil && watchCtx.Err() == nil {
			a.log.Warn().Err(err).Msg("config watch stopped")
		}
	}()
	go a.applyConfigUpdates(watchCtx)

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info().Msg("rmndr started")
	return nil
}

// applyConfigUpdates consumes reloads; only the log level is applied
// live, everything else takes effect on restart.
func (a *App) applyConfigUpdates(ctx context.Context) {
	sub := a.cfgMgr.Subscribe(1)
	defer a.cfgMgr.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			lvl := logging.ParseLevel(cfg.Log.Level, zerolog.InfoLevel)
			zerolog.SetGlobalLevel(lvl)
			a.log.Info().Str("level", lvl.String()).Msg("log level applied")
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if a.watchCancel != nil {
		a.watchCancel()
	}
	if err := a.srv.Shutdown(ctx); err != nil {
		a.log.Warn().Err(err).Msg("http shutdown")
	}
	if err := a.sched.Stop(ctx); err != nil {
		a.log.Warn().Err(err).Msg("scheduler stop")
	}
	if err := a.jobs.Close(); err != nil {
		a.log.Warn().Err(err).Msg("store close")
	}
	a.log.Info().Msg("rmndr stopped")
	return nil
}
