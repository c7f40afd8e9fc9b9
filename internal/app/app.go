package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"remindbot/internal/bot"
	"remindbot/internal/config"
	"remindbot/internal/eventbus"
	"remindbot/internal/notifier"
	"remindbot/internal/observability"
	"remindbot/internal/reminder"
	rtsup "remindbot/internal/runtime/supervisor"
	"remindbot/internal/storage"
	"remindbot/internal/task/engine"
	"remindbot/internal/task/scheduler"
	kit "remindbot/internal/transport"
	telegram "remindbot/internal/transport/telegram/adapter"
	logx "remindbot/pkg/logx"
)

// App owns every long-lived component and their start/stop order.
type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store   storage.Store
	adapter *telegram.Adapter
	engine  *engine.Service
	sched   *scheduler.Service
	notif   *notifier.Service
	rem     *reminder.Service
	ctrl    *bot.Controller
	metrics *observability.Metrics
	obs     *observability.Server

	applied settings
	updates chan kit.Update
}

// NewApp loads .env and the config file and builds the component graph.
// Nothing runs until Start.
func NewApp(cfgPath string) (*App, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	st, err := mapSettings(cfg)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(st.logging)
	appLog := log.With(logx.String("comp", "app"))

	ad, err := telegram.New(st.adapter, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(st.storage, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	eng := engine.New(st.engine, log.With(logx.String("comp", "engine")), bus)
	sched := scheduler.New(eng, log.With(logx.String("comp", "scheduler")))
	notif := notifier.New(st.notifier, ad, log.With(logx.String("comp", "notifier")))
	rem := reminder.New(st.reminder, store, sched, notif, bus, log.With(logx.String("comp", "reminder")))
	ctrl := bot.New(st.bot, ad, rem, log.With(logx.String("comp", "bot")))
	metrics := observability.NewMetrics(sched.Armed)
	obs := observability.NewServer(st.observ, metrics.Registry(), log.With(logx.String("comp", "observability")))

	appLog.Info("app configured",
		logx.String("config", cfgPath),
		logx.String("db", st.storage.Path),
		logx.String("sweep", st.sweepDesc),
		logx.Int("delivery_retry_max", st.retryMax),
	)

	return &App{
		cfgm:    cfgm,
		log:     appLog,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		engine:  eng,
		sched:   sched,
		notif:   notif,
		rem:     rem,
		ctrl:    ctrl,
		metrics: metrics,
		obs:     obs,
		applied: st,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the app supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	run := a.sup.Context()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, err := mapSettings(cfg)
		return err
	})

	a.sup.Go("metrics.events", func(c context.Context) error { return a.metrics.Run(c, a.bus) })
	a.engine.Start(run)
	a.sched.Start(run)

	if _, err := a.rem.Restore(run); err != nil {
		return err
	}
	if err := a.sched.StartSweep(a.applied.sweep, a.sweep); err != nil {
		return err
	}

	a.obs.Start(run)

	if err := a.adapter.Start(run, a.updates); err != nil {
		return err
	}
	a.sup.Go("bot.dispatch", func(c context.Context) error { return a.ctrl.Run(c, a.updates) })
	a.sup.Go0("telegram.menu", func(c context.Context) {
		mctx, cancel := context.WithTimeout(c, 10*time.Second)
		defer cancel()
		if err := a.ctrl.PublishMenu(mctx); err != nil {
			a.log.Warn("menu update failed", logx.Err(err))
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.apply(c, cfg)
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started")
	return nil
}

func (a *App) sweep(ctx context.Context) error {
	_, err := a.rem.Sweep(ctx)
	return err
}

// apply pushes a reloaded config into the live components. Token, storage
// and executor sizing need a restart.
func (a *App) apply(ctx context.Context, cfg *config.Config) {
	st, err := mapSettings(cfg)
	if err != nil {
		a.log.Warn("invalid config; keeping previous", logx.Err(err))
		return
	}
	prev := a.applied
	a.applied = st

	a.logs.Apply(st.logging)
	a.engine.SetRetryMax(st.retryMax)
	a.rem.Apply(st.reminder)
	a.notif.Apply(st.notifier)
	a.ctrl.Apply(st.bot)
	a.obs.Reconfigure(ctx, st.observ)

	if st.sweep != prev.sweep {
		if err := a.sched.StartSweep(st.sweep, a.sweep); err != nil {
			a.log.Warn("sweep reschedule failed", logx.Err(err))
		}
	}

	var restart []string
	if st.adapter != prev.adapter {
		restart = append(restart, "telegram")
	}
	if st.storage != prev.storage {
		restart = append(restart, "storage")
	}
	if st.engine.Workers != prev.engine.Workers || st.engine.QueueSize != prev.engine.QueueSize || st.engine.HistorySize != prev.engine.HistorySize {
		restart = append(restart, "executor")
	}
	if len(restart) > 0 {
		slices.Sort(restart)
		a.log.Warn("config changed sections that need a restart", logx.Any("sections", restart))
	}
}

// Stop shuts components down input-first: no new updates, then no new
// fires, then the executor drains. Rows of undelivered reminders stay in
// the store for Restore.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			limit = min(limit, time.Until(dl))
		}
		if limit <= 0 {
			a.log.Warn("stop step skipped: no time left", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("adapter", 3*time.Second, a.adapter.Stop)
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("engine", 5*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	step("observability", 2*time.Second, func(c context.Context) error { a.obs.Stop(c); return nil })
	step("supervisor", 3*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}

// SweepOnce runs one retention sweep against the configured database
// without starting the bot.
func SweepOnce(ctx context.Context, cfgPath string) (int64, error) {
	if err := config.LoadEnv(); err != nil {
		return 0, err
	}
	// Parse skips Validate: a sweep does not need a bot token.
	cfg, err := config.NewManager(cfgPath).Parse()
	if err != nil {
		return 0, err
	}
	st, err := mapSettings(cfg)
	if err != nil {
		return 0, err
	}
	logSvc, log := logx.New(st.logging)
	defer logSvc.Close()

	store, err := storage.Open(st.storage, log.With(logx.String("comp", "storage")))
	if err != nil {
		return 0, err
	}
	defer store.Close()

	rem := reminder.New(st.reminder, store, nil, nil, nil, log.With(logx.String("comp", "reminder")))
	return rem.Sweep(ctx)
}
