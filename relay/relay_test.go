package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cyberorg/sparagliding-meshmap/config"
	"github.com/cyberorg/sparagliding-meshmap/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFormatMessageEscapes(t *testing.T) {
	got := FormatMessage("bob", "test-message with some <script>content</script>")
	want := "<strong>bob</strong> says\n<blockquote>test-message with some &lt;script&gt;content&lt;/script&gt;</blockquote>"
	if got != want {
		t.Errorf("FormatMessage = %q, want %q", got, want)
	}
	if got := FormatMessage("A&B", "hi"); got != "<strong>A&amp;B</strong> says\n<blockquote>hi</blockquote>" {
		t.Errorf("FormatMessage = %q", got)
	}
}

func TestTelegramSend(t *testing.T) {
	var gotPath, gotType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	c := NewTelegramClient(config.TelegramConfig{BotToken: "test-bot-token", ChatID: "test-chat-id", ThreadID: "test-thread-id", APIBase: srv.URL}, time.Second)
	if err := c.Send(context.Background(), "bob", "hi <b>"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/bottest-bot-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if gotBody["chat_id"] != "test-chat-id" || gotBody["message_thread_id"] != "test-thread-id" || gotBody["parse_mode"] != "HTML" {
		t.Errorf("body = %v", gotBody)
	}
	if gotBody["text"] != "<strong>bob</strong> says\n<blockquote>hi &lt;b&gt;</blockquote>" {
		t.Errorf("text = %q", gotBody["text"])
	}
}

func TestTelegramSendOmitsEmptyThread(t *testing.T) {
	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		raw = string(b)
	}))
	defer srv.Close()

	c := NewTelegramClient(config.TelegramConfig{BotToken: "t", ChatID: "c", APIBase: srv.URL}, time.Second)
	if err := c.Send(context.Background(), "a", "b"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if strings.Contains(raw, "message_thread_id") {
		t.Errorf("body should omit empty thread id: %s", raw)
	}
}

func TestTelegramSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("error message"))
	}))
	defer srv.Close()

	c := NewTelegramClient(config.TelegramConfig{BotToken: "t", ChatID: "c", APIBase: srv.URL}, time.Second)
	err := c.Send(context.Background(), "bob", "x")
	if err == nil || err.Error() != "telegram API error: error message" {
		t.Errorf("err = %v", err)
	}
}

func TestQueueNoopWhenUnconfigured(t *testing.T) {
	db := testDB(t)
	q := NewQueue(db, config.RelayConfig{FlyXC: config.FlyXCConfig{APIURL: "http://x"}})
	ctx := context.Background()
	q.SendChatMessage(ctx, "bob", "hello")
	q.SendTrackingPayload(ctx, map[string]string{"test": "data"})

	pending, _ := db.ListPendingOutbox(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0 without credentials", len(pending))
	}
}

func TestQueueEnqueuesWhenConfigured(t *testing.T) {
	db := testDB(t)
	q := NewQueue(db, config.RelayConfig{
		Telegram: config.TelegramConfig{BotToken: "t", ChatID: "c"},
		FlyXC:    config.FlyXCConfig{APIURL: "http://x", APIKey: "test-key"},
	})
	ctx := context.Background()
	q.SendChatMessage(ctx, "bob", "hello")
	q.SendTrackingPayload(ctx, map[string]string{"test": "data"})

	pending, _ := db.ListPendingOutbox(ctx, 10)
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].Kind != KindTelegram || pending[1].Kind != KindFlyXC {
		t.Errorf("kinds = %s, %s", pending[0].Kind, pending[1].Kind)
	}
	if pending[0].JobID == "" || pending[0].JobID == pending[1].JobID {
		t.Error("job ids should be unique")
	}
	if string(pending[1].Payload) != `{"test":"data"}` {
		t.Errorf("payload = %s", pending[1].Payload)
	}
}

func TestDrainerDeliversAndRetries(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	var mu sync.Mutex
	var auth []string
	fail := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		auth = append(auth, r.Header.Get("Authorization"))
		if fail {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	q := NewQueue(db, config.RelayConfig{FlyXC: config.FlyXCConfig{APIURL: srv.URL, APIKey: "test-key"}})
	q.SendTrackingPayload(ctx, TrackingPoint{ID: "!00000001", Latitude: -33, Longitude: 151})

	d := NewDrainer(db, map[string]Deliverer{KindFlyXC: NewFlyXCClient(config.FlyXCConfig{APIURL: srv.URL, APIKey: "test-key"}, time.Second)}, time.Hour, 3)
	if sent := d.Drain(ctx); sent != 0 {
		t.Errorf("sent = %d, want 0 on failure", sent)
	}
	mu.Lock()
	fail = false
	mu.Unlock()
	if sent := d.Drain(ctx); sent != 1 {
		t.Errorf("sent = %d, want 1 after recovery", sent)
	}
	if sent := d.Drain(ctx); sent != 0 {
		t.Errorf("sent = %d, want nothing left", sent)
	}
	if len(auth) != 2 || auth[0] != "Bearer test-key" {
		t.Errorf("auth headers = %v", auth)
	}
}

func TestDrainerAbandonsAfterMaxRetries(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tg := config.TelegramConfig{BotToken: "t", ChatID: "c", APIBase: srv.URL}
	NewQueue(db, config.RelayConfig{Telegram: tg}).SendChatMessage(ctx, "bob", "hello")
	d := NewDrainer(db, map[string]Deliverer{KindTelegram: NewTelegramClient(tg, time.Second)}, time.Hour, 0)

	for i := 0; i < DefaultMaxRetries+2; i++ {
		d.Drain(ctx)
	}
	if calls != DefaultMaxRetries {
		t.Errorf("calls = %d, want %d", calls, DefaultMaxRetries)
	}
	pending, _ := db.ListPendingOutbox(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("abandoned job still pending")
	}
}

func TestDrainerStartStop(t *testing.T) {
	db := testDB(t)
	d := NewDrainer(db, nil, 10*time.Millisecond, 0)
	d.Start()
	time.Sleep(30 * time.Millisecond)
	d.Stop()
	d.Stop()
}
