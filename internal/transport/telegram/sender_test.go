package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	kit "polytask/internal/transport"
	logx "polytask/pkg/logx"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	requests []map[string]any
	// rejectMarkdown makes the fake answer like Telegram does for broken entities.
	rejectMarkdown bool
	// stall holds every request until it is closed.
	stall chan struct{}
}

func (f *fakeBotAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("unexpected method path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if f.stall != nil {
			select {
			case <-f.stall:
			case <-r.Context().Done():
				return
			}
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		f.mu.Lock()
		f.requests = append(f.requests, body)
		n := len(f.requests)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if f.rejectMarkdown && body["parse_mode"] == "Markdown" {
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities: Can't find end of the entity"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":` + itoa(n) + `,"date":0,"chat":{"id":42,"type":"private"}}}`))
	}
}

func (f *fakeBotAPI) snapshot() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.requests...)
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func newTestSender(t *testing.T, api *fakeBotAPI) *Sender {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	s, err := New(Config{Token: "123:abc", APIURL: srv.URL, Timeout: 2 * time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	return s
}

func TestSendTextDeliversToChat(t *testing.T) {
	api := &fakeBotAPI{}
	s := newTestSender(t, api)

	ref, err := s.SendText(context.Background(), kit.ChatTarget{ChatID: 42}, "*hello*", &kit.SendOptions{ParseMode: "Markdown"})
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if ref.MessageID != 1 || ref.ChatID != 42 {
		t.Fatalf("unexpected ref: %+v", ref)
	}
	reqs := api.snapshot()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if reqs[0]["text"] != "*hello*" || reqs[0]["parse_mode"] != "Markdown" {
		t.Fatalf("unexpected payload: %v", reqs[0])
	}
}

func TestSendTextFallsBackToPlainText(t *testing.T) {
	api := &fakeBotAPI{rejectMarkdown: true}
	s := newTestSender(t, api)

	if _, err := s.SendText(context.Background(), kit.ChatTarget{ChatID: 42}, "fix_the_bug", &kit.SendOptions{ParseMode: "Markdown"}); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	reqs := api.snapshot()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want markdown attempt + plain retry", len(reqs))
	}
	if pm, _ := reqs[1]["parse_mode"].(string); pm != "" {
		t.Fatalf("retry should drop parse mode, got %q", pm)
	}
}

func TestSendTextRequiresChat(t *testing.T) {
	s := newTestSender(t, &fakeBotAPI{})
	if _, err := s.SendText(context.Background(), kit.ChatTarget{}, "x", nil); err == nil {
		t.Fatal("expected error for empty chat target")
	}
}

func TestSendTextHonorsCancelledContext(t *testing.T) {
	api := &fakeBotAPI{}
	s := newTestSender(t, api)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.SendText(ctx, kit.ChatTarget{ChatID: 42}, "x", nil); err == nil {
		t.Fatal("expected context error")
	}
	if n := len(api.snapshot()); n != 0 {
		t.Fatalf("no request expected after cancel, got %d", n)
	}
}

func TestSendTextStopsWaitingAtDeadline(t *testing.T) {
	api := &fakeBotAPI{stall: make(chan struct{})}
	s := newTestSender(t, api)
	t.Cleanup(func() { close(api.stall) })

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := s.SendText(ctx, kit.ChatTarget{ChatID: 42}, "x", &kit.SendOptions{ParseMode: "Markdown"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if took := time.Since(start); took > time.Second {
		t.Fatalf("SendText ignored the deadline: took %v", took)
	}
}

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()
	if got := splitTelegramText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short text split = %v", got)
	}

	long := strings.Repeat("line of text\n", 20)
	chunks := splitTelegramText(long, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len([]rune(c)) > 50 {
			t.Fatalf("chunk exceeds limit: %d", len([]rune(c)))
		}
		if strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk should be trimmed: %q", c)
		}
	}
}

func TestNewRejectsEmptyToken(t *testing.T) {
	if _, err := New(Config{Token: " "}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
}
