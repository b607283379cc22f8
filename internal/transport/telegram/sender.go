// Package telegram sends chat messages through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "polytask/internal/transport"
	logx "polytask/pkg/logx"
)

type Config struct {
	Token string
	// APIURL overrides the Bot API root (tests point it at an httptest server).
	APIURL string
	// Timeout bounds a single HTTP call to the Bot API.
	Timeout time.Duration
}

type Sender struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

// New builds a send-only bot. It does not call getMe, so construction never
// touches the network.
func New(cfg Config, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   strings.TrimSpace(cfg.Token),
		URL:     strings.TrimSpace(cfg.APIURL),
		Client:  &http.Client{Timeout: cfg.Timeout},
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &Sender{cfg: cfg, log: log, bot: b}, nil
}

const telegramTextLimit = 4000

// splitTelegramText splits long messages into chunks that are safe to send to
// Telegram, preferring newline boundaries.
func splitTelegramText(s string, limit int) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				// Avoid extremely small chunks.
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}

func (s *Sender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if to.IsZero() {
		return kit.MessageRef{}, errors.New("telegram: chat id is empty")
	}

	chat := &tele.Chat{ID: to.ChatID}
	var first kit.MessageRef
	for i, chunk := range splitTelegramText(text, telegramTextLimit) {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return first, err
			}
		}

		msg, err := s.send(ctx, chat, chunk, to.ThreadID, opt)
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	return first, nil
}

// send posts one chunk. Task titles are user text, so Markdown can be
// malformed; in that case the chunk is resent without formatting.
func (s *Sender) send(ctx context.Context, chat *tele.Chat, chunk string, threadID int, opt *kit.SendOptions) (*tele.Message, error) {
	sendOpt := &tele.SendOptions{
		ParseMode:             tele.ParseMode(opt.ParseMode),
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              threadID,
	}
	msg, err := s.sendCtx(ctx, chat, chunk, sendOpt)
	if err == nil || opt.ParseMode == "" || !isParseError(err) {
		return msg, err
	}
	s.log.Debug("markdown rejected; resending as plain text", logx.Err(err))
	plain := *sendOpt
	plain.ParseMode = tele.ModeDefault
	return s.sendCtx(ctx, chat, chunk, &plain)
}

type sendResult struct {
	msg *tele.Message
	err error
}

// sendCtx runs bot.Send, which takes no context, and stops waiting once ctx
// is done. The abandoned request still ends at the http client timeout.
func (s *Sender) sendCtx(ctx context.Context, chat *tele.Chat, chunk string, opt *tele.SendOptions) (*tele.Message, error) {
	if ctx == nil {
		return s.bot.Send(chat, chunk, opt)
	}
	done := make(chan sendResult, 1)
	go func() {
		msg, err := s.bot.Send(chat, chunk, opt)
		done <- sendResult{msg: msg, err: err}
	}()
	select {
	case r := <-done:
		return r.msg, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func isParseError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "parse entities") || strings.Contains(msg, "parse mode")
}
