package reminder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"polytask/internal/eventbus"
	logx "polytask/pkg/logx"

	"github.com/robfig/cron/v3"
)

var ErrAlreadyStarted = errors.New("reminder: loop already started")

// maxWake caps how long Run sleeps between Steps so timed actions are never
// late by more than this.
const maxWake = time.Second

// Deps wires a Loop. Tasks and Notifier are required.
type Deps struct {
	Settings Settings
	Tasks    TaskSource
	Notifier Notifier
	Cache    *Cache
	Clock    Clock
	Log      logx.Logger
	Bus      eventbus.Bus
}

// Status is a point-in-time view of the loop.
type Status struct {
	Started       bool
	CacheEntries  int
	WeeklyEnabled bool
	NextScan      time.Time
	NextEvict     time.Time
	NextWeekly    time.Time
	LastScanAt    time.Time
	LastScan      ScanReport
	LastScanErr   string
	Scans         uint64
	Evicted       uint64
	Reports       uint64
}

// Loop runs scan, eviction and the weekly report on one goroutine, so the
// actions never overlap.
type Loop struct {
	settings Settings
	clock    Clock
	log      logx.Logger
	bus      eventbus.Bus

	cache    *Cache
	scanner  *Scanner
	reporter *Reporter
	weekly   cron.Schedule // nil when the weekly report is disabled

	started atomic.Bool

	mu          sync.Mutex
	initialized bool
	nextScan    time.Time
	nextEvict   time.Time
	nextWeekly  time.Time
	lastScanAt  time.Time
	lastScan    ScanReport
	lastScanErr string
	scans       uint64
	evicted     uint64
	reports     uint64
}

// NewLoop validates deps and builds a Loop. An invalid weekly day or time is
// logged and disables only the weekly report.
func NewLoop(d Deps) (*Loop, error) {
	if d.Tasks == nil {
		return nil, errors.New("reminder: task source is required")
	}
	if d.Notifier == nil {
		return nil, errors.New("reminder: notifier is required")
	}
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "reminder"))

	s := d.Settings.WithDefaults()
	if maxTick := s.Tolerance / 2; s.TickInterval > maxTick {
		log.Warn("tick interval too coarse for tolerance; clamping",
			logx.Duration("tick_interval", s.TickInterval),
			logx.Duration("tolerance", s.Tolerance),
			logx.Duration("clamped_to", maxTick))
		s.TickInterval = maxTick
	}

	cache := d.Cache
	if cache == nil {
		cache = NewCache()
	}
	clock := d.Clock
	if clock == nil {
		clock = RealClock{}
	}

	l := &Loop{
		settings: s,
		clock:    clock,
		log:      log,
		bus:      d.Bus,
		cache:    cache,
		scanner:  NewScanner(s, d.Tasks, d.Notifier, cache, log, d.Bus),
		reporter: NewReporter(d.Tasks, d.Notifier, s.Location, log, d.Bus),
	}

	sched, err := weeklySchedule(s.WeeklyReportDay, s.WeeklyReportTime, s.Location)
	if err != nil {
		log.Error("weekly report disabled: invalid configuration",
			logx.String("day", s.WeeklyReportDay),
			logx.String("time", s.WeeklyReportTime),
			logx.Err(err))
	} else {
		l.weekly = sched
	}
	return l, nil
}

func (l *Loop) Settings() Settings { return l.settings }

func (l *Loop) Cache() *Cache { return l.cache }

func (l *Loop) WeeklyEnabled() bool { return l.weekly != nil }

// Step runs every action that is due at now. The first call schedules an
// immediate scan and computes the first weekly slot strictly after now.
func (l *Loop) Step(ctx context.Context, now time.Time) {
	l.mu.Lock()
	if !l.initialized {
		l.initialized = true
		l.nextScan = now
		l.nextEvict = now.Add(l.settings.EvictInterval)
		if l.weekly != nil {
			l.nextWeekly = l.weekly.Next(now)
			l.log.Info("weekly report scheduled", logx.Time("next", l.nextWeekly))
		}
	}
	doScan := !now.Before(l.nextScan)
	if doScan {
		l.nextScan = advance(l.nextScan, l.settings.TickInterval, now)
	}
	doEvict := !now.Before(l.nextEvict)
	if doEvict {
		l.nextEvict = advance(l.nextEvict, l.settings.EvictInterval, now)
	}
	doWeekly := l.weekly != nil && !now.Before(l.nextWeekly)
	if doWeekly {
		// One report per slot, however many slots a clock jump skipped.
		l.nextWeekly = l.weekly.Next(now)
	}
	l.mu.Unlock()

	if doScan {
		l.guard("scan", func() { l.scan(ctx, now) })
	}
	if doEvict {
		l.guard("evict", func() { l.evict(now) })
	}
	if doWeekly {
		l.guard("weekly report", func() { l.report(ctx, now) })
	}
}

// Run drives Step from the clock until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	wake := l.settings.TickInterval
	if wake > maxWake {
		wake = maxWake
	}
	ticker := l.clock.NewTicker(wake)
	defer ticker.Stop()

	l.log.Info("reminder loop started",
		logx.Int("reminder_minutes", l.settings.ReminderMinutes),
		logx.Duration("tick_interval", l.settings.TickInterval),
		logx.Duration("tolerance", l.settings.Tolerance),
		logx.Bool("weekly_enabled", l.WeeklyEnabled()))

	l.Step(ctx, l.clock.Now())
	for {
		select {
		case <-ctx.Done():
			l.log.Info("reminder loop stopped")
			return ctx.Err()
		case <-ticker.C():
			l.Step(ctx, l.clock.Now())
		}
	}
}

func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		Started:       l.started.Load(),
		CacheEntries:  l.cache.Len(),
		WeeklyEnabled: l.weekly != nil,
		NextScan:      l.nextScan,
		NextEvict:     l.nextEvict,
		NextWeekly:    l.nextWeekly,
		LastScanAt:    l.lastScanAt,
		LastScan:      l.lastScan,
		LastScanErr:   l.lastScanErr,
		Scans:         l.scans,
		Evicted:       l.evicted,
		Reports:       l.reports,
	}
}

func (l *Loop) scan(ctx context.Context, now time.Time) {
	rep, err := l.scanner.Scan(ctx, now)
	if err != nil && !errors.Is(err, context.Canceled) {
		l.log.Error("scan failed", logx.Err(err))
	}
	l.mu.Lock()
	l.scans++
	l.lastScanAt = now
	l.lastScan = rep
	l.lastScanErr = ""
	if err != nil {
		l.lastScanErr = err.Error()
	}
	l.mu.Unlock()
}

func (l *Loop) evict(now time.Time) {
	n := l.cache.EvictOlderThan(now, l.settings.CacheTTL)
	l.mu.Lock()
	l.evicted += uint64(n)
	l.mu.Unlock()
	if n == 0 {
		return
	}
	l.log.Debug("cache evicted", logx.Int("removed", n), logx.Int("remaining", l.cache.Len()))
	if l.bus != nil {
		l.bus.Publish(eventbus.Event{Type: eventbus.TypeCacheEvicted, Time: now, Data: n})
	}
}

func (l *Loop) report(ctx context.Context, now time.Time) {
	if _, err := l.reporter.Report(ctx, now); err != nil {
		l.log.Error("weekly report failed", logx.Err(err))
	}
	l.mu.Lock()
	l.reports++
	next := l.nextWeekly
	l.mu.Unlock()
	l.log.Info("next weekly report", logx.Time("at", next))
}

// guard keeps a panicking action from killing the loop.
func (l *Loop) guard(action string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("panic in reminder action", logx.String("action", action), logx.Any("panic", r))
		}
	}()
	fn()
}

// advance moves next forward on its grid until it is after now.
func advance(next time.Time, every time.Duration, now time.Time) time.Time {
	if every <= 0 {
		return now
	}
	next = next.Add(every)
	if !next.After(now) {
		missed := now.Sub(next)/every + 1
		next = next.Add(missed * every)
	}
	return next
}
