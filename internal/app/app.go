// Package app wires the services together: config, logging, transport,
// session registry, analytics, notifier, announcer and the command router.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rosterbot/internal/analytics"
	"rosterbot/internal/announce"
	"rosterbot/internal/command"
	"rosterbot/internal/config"
	"rosterbot/internal/docstore"
	"rosterbot/internal/eventbus"
	"rosterbot/internal/notify"
	rtsup "rosterbot/internal/runtime/supervisor"
	"rosterbot/internal/sendlog"
	"rosterbot/internal/session"
	"rosterbot/internal/transport"
	"rosterbot/internal/transport/telegram"
	"rosterbot/pkg/logx"
)

const cleanupInterval = 24 * time.Hour

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	adapter   *telegram.Adapter
	registry  *session.Registry
	stats     *analytics.Service
	sends     sendlog.Store
	notif     *notify.Service
	announcer *announce.Service
	channels  *channelSet
	router    *command.Router

	updates chan transport.Update

	mu  sync.Mutex
	loc *time.Location
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
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("component", "app"))

	bus := eventbus.New()

	appStore, err := docstore.New(cfg.Applications.Path)
	if err != nil {
		return nil, fmt.Errorf("applications store: %w", err)
	}
	registry, err := session.New(appStore, log, cfg.Applications.DeadlineDaysOrDefault())
	if err != nil {
		return nil, fmt.Errorf("applications store: %w", err)
	}

	statsStore, err := docstore.New(cfg.Analytics.Path)
	if err != nil {
		return nil, fmt.Errorf("analytics store: %w", err)
	}
	stats, err := analytics.New(statsStore, log)
	if err != nil {
		return nil, fmt.Errorf("analytics store: %w", err)
	}

	sendCfg, err := mapSendLogConfig(cfg)
	if err != nil {
		return nil, err
	}
	sends, err := sendlog.Open(sendCfg, log)
	if err != nil {
		return nil, fmt.Errorf("send log: %w", err)
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log)
	if err != nil {
		return nil, err
	}

	notif := notify.New(adapter, registry, stats, bus, log)
	channels := newChannelSet(cfg.ScheduledChannels)
	announcer := announce.New(adapter, registry, notif, sends, bus, log)

	a := &App{
		cfgPath:   cfgPath,
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		adapter:   adapter,
		registry:  registry,
		stats:     stats,
		sends:     sends,
		notif:     notif,
		announcer: announcer,
		channels:  channels,
		updates:   make(chan transport.Update, 256),
		loc:       loc,
	}

	a.router = command.NewRouter(command.Deps{
		Messenger: adapter,
		Registry:  registry,
		Stats:     stats,
		Alerter:   notif,
		Announcer: announcer,
		Channels:  channels,
		Sends:     sends,
		Bus:       bus,
		Settings:  a.settings,
	}, log)

	return a, nil
}

func (a *App) settings() command.Settings {
	return mapSettings(a.cfgm.Get(), a.location())
}

func (a *App) location() *time.Location {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loc
}

func (a *App) setLocation(loc *time.Location) {
	a.mu.Lock()
	a.loc = loc
	a.mu.Unlock()
}

// Done is closed when the run context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("component", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	cfg := a.cfgm.Get()
	loc := a.location()

	ncfg, err := mapNotifyConfig(cfg, loc)
	if err != nil {
		return err
	}
	a.notif.Start(a.sup.Context(), ncfg)

	if err := a.announcer.Start(a.sup.Context(), mapAnnounceConfig(cfg, loc, a.channels.Channels())); err != nil {
		return err
	}
	// Channel mutations from admin commands reschedule the announcer.
	a.channels.onChange = func(chs []announce.Channel) {
		cur := a.cfgm.Get()
		if err := a.announcer.Restart(a.sup.Context(), mapAnnounceConfig(cur, a.location(), chs)); err != nil {
			a.log.Error("announcer reschedule failed", logx.Err(err))
		}
	}

	a.sup.Go0("commands.dispatch", func(c context.Context) {
		a.router.DispatchLoop(c, a.updates)
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	a.sup.Go0("store.cleanup", func(c context.Context) {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-ticker.C:
				a.runCleanup()
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
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
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyConfig applies a hot-reloaded configuration. The notifier and
// announcer are restarted because their watch and job sets depend on it;
// storage paths cannot change without a process restart.
func (a *App) applyConfig(ctx context.Context, prev, newCfg *config.Config) {
	loc, err := newCfg.Location()
	if err != nil {
		a.log.Warn("invalid timezone in reloaded config; keeping previous", logx.Err(err))
		loc = a.location()
	}
	a.setLocation(loc)

	a.logs.Apply(mapLoggingConfig(newCfg))
	a.registry.SetDeadlineDays(newCfg.Applications.DeadlineDaysOrDefault())

	if prev != nil {
		if prev.Applications.Path != newCfg.Applications.Path ||
			prev.Analytics.Path != newCfg.Analytics.Path ||
			prev.SendLog != newCfg.SendLog {
			a.log.Warn("storage config changed; restart required for changes to take effect")
		}
	}

	if ncfg, err := mapNotifyConfig(newCfg, loc); err != nil {
		a.log.Warn("invalid notifications config; keeping previous", logx.Err(err))
	} else {
		a.notif.Restart(ctx, ncfg)
	}

	a.channels.Reset(newCfg.ScheduledChannels)
	if err := a.announcer.Restart(ctx, mapAnnounceConfig(newCfg, loc, a.channels.Channels())); err != nil {
		a.log.Warn("announcer restart failed", logx.Err(err))
	}

	a.log.Info("config reloaded")
}

// runCleanup prunes expired sessions and old analytics buckets.
func (a *App) runCleanup() {
	cfg := a.cfgm.Get()

	if removed, err := a.registry.Cleanup(cfg.Applications.RetentionDaysOrDefault()); err != nil {
		a.log.Warn("session cleanup failed", logx.Err(err))
	} else if removed > 0 {
		a.log.Info("expired sessions pruned", logx.Int("removed", removed))
	}

	if removed, err := a.stats.Cleanup(cfg.Analytics.MonthsToKeepOrDefault()); err != nil {
		a.log.Warn("analytics cleanup failed", logx.Err(err))
	} else if removed > 0 {
		a.log.Info("old analytics buckets pruned", logx.Int("removed", removed))
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	// Bound each shutdown step so one component can't stall the stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
	}

	step("announcer", 2*time.Second, func(c context.Context) error { a.announcer.Stop(c); return nil })
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("sendlog", time.Second, func(c context.Context) error {
		if a.sends != nil {
			return a.sends.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}
