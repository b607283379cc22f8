package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"polytask/internal/config"
	"polytask/internal/eventbus"
	"polytask/internal/notifier"
	"polytask/internal/reminder"
	"polytask/internal/runtime/supervisor"
	"polytask/internal/storage"
	kit "polytask/internal/transport"
	"polytask/internal/transport/telegram"
	logx "polytask/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
)

type App struct {
	cfgm *config.Manager
	cfg  *config.Config

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store storage.Store
	notif *notifier.Service
	loop  *reminder.Loop

	sup *supervisor.Supervisor
}

// Options tweak construction. The zero value is the production setup.
type Options struct {
	// AllowMissingConfig runs on defaults plus environment when the file is absent.
	AllowMissingConfig bool
	// Clock overrides the reminder loop clock.
	Clock reminder.Clock
}

// New loads the config and builds every component. Nothing runs until Start.
func New(cfgPath string, opt Options) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfgm.AllowMissing(opt.AllowMissingConfig)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	return build(cfgm, cfg, opt)
}

func build(cfgm *config.Manager, cfg *config.Config, opt Options) (*App, error) {
	r, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	logs, root := logx.New(cfg.Logging.LogConfig())
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	bus := eventbus.New()

	st, err := storage.Open(mapStorageConfig(cfg, r), root.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logs.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	var sender kit.Sender
	if strings.TrimSpace(cfg.Telegram.Token) != "" {
		tg, err := telegram.New(mapTelegramConfig(cfg, r), root.With(logx.String("comp", "telegram")))
		if err != nil {
			_ = st.Close()
			_ = logs.Close()
			return nil, fmt.Errorf("telegram: %w", err)
		}
		sender = tg
	}
	notif := notifier.New(mapNotifierConfig(cfg, r), sender, root.With(logx.String("comp", "notifier")), bus)

	loop, err := reminder.NewLoop(reminder.Deps{
		Settings: mapReminderSettings(cfg, r),
		Tasks:    st,
		Notifier: notif,
		Clock:    opt.Clock,
		Log:      root,
		Bus:      bus,
	})
	if err != nil {
		_ = st.Close()
		_ = logs.Close()
		return nil, err
	}

	return &App{
		cfgm:  cfgm,
		cfg:   cfg,
		log:   log,
		logs:  logs,
		bus:   bus,
		store: st,
		notif: notif,
		loop:  loop,
	}, nil
}

func (a *App) Config() *config.Config { return a.cfg }
func (a *App) Logger() logx.Logger { return a.log }
func (a *App) Store() storage.Store { return a.store }
func (a *App) Notifier() *notifier.Service { return a.notif }
func (a *App) Loop() *reminder.Loop { return a.loop }
func (a *App) Location() *time.Location { return a.loop.Settings().Location }
func (a *App) Bus() eventbus.Bus { return a.bus }
func (a *App) Supervisor() *supervisor.Supervisor { return a.sup }

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start launches the reminder loop and the background plumbing.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	if !a.notif.Configured() {
		a.log.Warn("telegram token or chat id missing; reminders will be logged and skipped")
	}

	a.sup.Go("reminder.loop", a.loop.Run)
	a.sup.Go("eventbus.log", a.logEvents)
	a.sup.Go("config.reload", a.applyReloads)
	a.sup.GoRestart("config.watch", a.cfgm.Watch, supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	a.sup.Go("systemd.watchdog", func(c context.Context) error { return watchdog(c, a.log) })

	sdNotify(a.log, daemon.SdNotifyReady)
	a.log.Info("app started",
		logx.String("config", a.cfgm.Path()),
		logx.String("storage", a.cfg.Storage.Path),
		logx.Bool("telegram", a.notif.Configured()),
		logx.Bool("weekly_report", a.loop.WeeklyEnabled()))
	return nil
}

// logEvents mirrors bus events into the debug log.
func (a *App) logEvents(ctx context.Context) error {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if !a.log.Enabled(logx.LevelDebug) {
				continue
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time), logx.Any("data", e.Data))
		}
	}
}

// applyReloads applies logging changes live. Other sections are read once,
// so changing them only logs that a restart is needed.
func (a *App) applyReloads(ctx context.Context) error {
	sub := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfg
	for {
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-sub:
			if !ok {
				return nil
			}
			ch := config.SummarizeChange(last, next)
			last = next
			if ch.Empty() {
				a.log.Debug("config reload had no effective changes")
				continue
			}
			a.logs.Apply(next.Logging.LogConfig())
			fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Attrs...)
			a.log.Info("config reloaded", fields...)
			if ch.RestartRequired {
				a.log.Warn("some changes take effect after a restart", logx.String("changed", strings.Join(ch.Sections, ",")))
			}
		}
	}
}

// Stop shuts everything down. Each step is bounded so one stalled component
// cannot hold up the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if a.sup != nil {
		sdNotify(a.log, daemon.SdNotifyStopping)
		a.sup.Cancel()
		a.step(ctx, "supervisor", 3*time.Second, a.sup.Wait)
	}
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.store.Close() })

	c := a.notif.Counters()
	a.log.Info("stopped",
		logx.Int64("sent", int64(c.Sent)),
		logx.Int64("skipped", int64(c.Skipped)),
		logx.Int64("failed", int64(c.Failed)))
	return a.logs.Close()
}

// Close releases resources of an app that was never started (CLI use).
func (a *App) Close() error {
	err := a.store.Close()
	return errors.Join(err, a.logs.Close())
}

func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < max {
			max = rem
		}
	}
	if max <= 0 {
		a.log.Warn("stop step skipped: deadline exceeded", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
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
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
