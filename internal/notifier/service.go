package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"polytask/internal/eventbus"
	kit "polytask/internal/transport"
	logx "polytask/pkg/logx"

	"golang.org/x/time/rate"
)

// Service sends notifications through a kit.Sender. Safe for concurrent use.
type Service struct {
	log    logx.Logger
	sender kit.Sender
	bus    eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	warnOnce sync.Once

	sent, skipped, failed atomic.Uint64

	hmu     sync.Mutex
	history []HistoryItem
}

// New builds the service. A nil sender or an empty target puts the service
// in skipped mode: every Send returns OutcomeSkipped.
func New(cfg Config, sender kit.Sender, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 3
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	return &Service{
		log:    log,
		sender: sender,
		bus:    bus,
		cfg:    cfg,
		// Up to Burst sends go out back to back; later ones are paced at RatePerSec.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
	}
}

// Configured reports whether sends can actually reach a chat.
func (s *Service) Configured() bool {
	return s.sender != nil && !s.cfg.Target.IsZero()
}

// Send delivers text and reports what happened. It never panics and never
// blocks longer than the configured send timeout.
func (s *Service) Send(ctx context.Context, text string) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	if !s.Configured() {
		s.warnOnce.Do(func() {
			s.log.Warn("telegram not configured; notifications are skipped")
		})
		return s.finish(text, Result{Outcome: OutcomeSkipped, Err: ErrNotConfigured, At: start})
	}
	if strings.TrimSpace(text) == "" {
		return s.finish(text, Result{Outcome: OutcomeSkipped, Err: ErrEmptyText, At: start})
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	if err := s.limiter.Wait(callCtx); err != nil {
		return s.finish(text, Result{Outcome: OutcomeFailed, Err: fmt.Errorf("rate limit wait: %w", err), At: start, Took: time.Since(start)})
	}

	ref, err := s.sendSafe(callCtx, text)
	res := Result{At: start, Took: time.Since(start), MessageID: ref.MessageID}
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
	} else {
		res.Outcome = OutcomeSent
	}
	return s.finish(text, res)
}

func (s *Service) sendSafe(ctx context.Context, text string) (ref kit.MessageRef, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in sender: %v", r)
		}
	}()
	return s.sender.SendText(ctx, s.cfg.Target, text, &kit.SendOptions{
		ParseMode:      s.cfg.ParseMode,
		DisablePreview: true,
	})
}

func (s *Service) finish(text string, res Result) Result {
	item := HistoryItem{At: res.At, Outcome: res.Outcome, Text: text}
	if res.Err != nil {
		item.Error = res.Err.Error()
	}

	var evType string
	switch res.Outcome {
	case OutcomeSent:
		s.sent.Add(1)
		evType = eventbus.TypeNotifySent
		s.log.Debug("notification sent", logx.Int("message_id", res.MessageID), logx.Duration("took", res.Took))
	case OutcomeSkipped:
		s.skipped.Add(1)
		evType = eventbus.TypeNotifySkipped
		if !errors.Is(res.Err, ErrNotConfigured) {
			s.log.Debug("notification skipped", logx.Err(res.Err))
		}
	default:
		s.failed.Add(1)
		evType = eventbus.TypeNotifyFailed
		s.log.Warn("notification failed", logx.Err(res.Err), logx.Duration("took", res.Took))
	}

	s.appendHistory(item)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: evType, Time: res.At, Data: NotificationEvent{
			ChatID:  s.cfg.Target.ChatID,
			Outcome: res.Outcome,
			At:      res.At,
			Error:   item.Error,
		}})
	}
	return res
}

func (s *Service) appendHistory(item HistoryItem) {
	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[len(s.history)-s.cfg.HistorySize:]
	}
	s.hmu.Unlock()
}

// Snapshot returns recent attempts, oldest first.
func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) Counters() Counters {
	return Counters{Sent: s.sent.Load(), Skipped: s.skipped.Load(), Failed: s.failed.Load()}
}
