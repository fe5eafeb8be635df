package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/livetemplate/qmdtutor"
	"github.com/livetemplate/qmdtutor/internal/config"
	"github.com/livetemplate/qmdtutor/internal/progress"
)

// wsTestClient is a helper for WebSocket protocol testing
type wsTestClient struct {
	conn    *websocket.Conn
	t       *testing.T
	timeout time.Duration
}

func newWSTestClient(t *testing.T, server *httptest.Server) *wsTestClient {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return &wsTestClient{conn: conn, t: t, timeout: 3 * time.Second}
}

func (c *wsTestClient) send(msg wsMessage) {
	c.t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		c.t.Fatalf("Failed to marshal message: %v", err)
	}
	c.sendRaw(string(data))
}

func (c *wsTestClient) sendRaw(msg string) {
	c.t.Helper()
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		c.t.Fatalf("Failed to send message: %v", err)
	}
}

// receive reads one message; result is decoded into a generic map.
func (c *wsTestClient) receive() wsMessage {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("Failed to read message: %v", err)
	}
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.t.Fatalf("Failed to decode message %s: %v", data, err)
	}
	return msg
}

func resultField(t *testing.T, msg wsMessage, key string) interface{} {
	t.Helper()
	m, ok := msg.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result is %T, want object", msg.Result)
	}
	return m[key]
}

func TestWebSocketRender(t *testing.T) {
	srv, ts := testServer(t)
	c := newWSTestClient(t, ts)

	c.send(wsMessage{ID: "r1", Action: "render", Document: "---\ntitle: Live\n---\n\n**bold**\n"})
	msg := c.receive()

	if msg.ID != "r1" || msg.Action != "render" {
		t.Fatalf("unexpected reply: %+v", msg)
	}
	if resultField(t, msg, "success") != true {
		t.Fatalf("render failed: %+v", msg.Result)
	}
	page, _ := resultField(t, msg, "page").(string)
	if !strings.Contains(page, "<strong>bold</strong>") {
		t.Errorf("page missing bold text: %s", page)
	}
	id, _ := resultField(t, msg, "previewId").(string)
	if _, ok := srv.previews.Get(id); !ok {
		t.Errorf("preview %q should be cached", id)
	}
}

func TestWebSocketRenderFailure(t *testing.T) {
	_, ts := testServer(t)
	c := newWSTestClient(t, ts)

	c.send(wsMessage{ID: "r2", Action: "render", Document: "no header"})
	msg := c.receive()

	if resultField(t, msg, "success") != false {
		t.Fatalf("expected failure: %+v", msg.Result)
	}
	if resultField(t, msg, "error") == "" {
		t.Error("expected an error message")
	}
}

func TestWebSocketExecute(t *testing.T) {
	_, ts := testServer(t)
	c := newWSTestClient(t, ts)

	c.send(wsMessage{ID: "e1", Action: "execute", Code: "library(dplyr)", Language: "r"})
	msg := c.receive()

	if msg.ID != "e1" || msg.Action != "execute" {
		t.Fatalf("unexpected reply: %+v", msg)
	}
	want := "Loading required package: dplyr\nPackage 'dplyr' loaded successfully"
	if got := resultField(t, msg, "output"); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestWebSocketErrors(t *testing.T) {
	_, ts := testServer(t)
	c := newWSTestClient(t, ts)

	c.sendRaw("{not json")
	if msg := c.receive(); msg.Action != "error" || !strings.Contains(msg.Error, "invalid message") {
		t.Errorf("malformed message: %+v", msg)
	}

	c.send(wsMessage{ID: "x", Action: "explode"})
	msg := c.receive()
	if msg.Action != "error" || msg.ID != "x" || msg.Error != "unknown action: explode" {
		t.Errorf("unknown action: %+v", msg)
	}

	// The connection survives bad input.
	c.send(wsMessage{ID: "ok", Action: "execute", Code: "x <- 1"})
	if msg := c.receive(); msg.ID != "ok" {
		t.Errorf("expected reply to follow-up request, got %+v", msg)
	}
}

func TestWebSocketBroadcastReload(t *testing.T) {
	srv, ts := testServer(t)
	a := newWSTestClient(t, ts)
	b := newWSTestClient(t, ts)

	deadline := time.Now().Add(2 * time.Second)
	for srv.ConnectionCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.ConnectionCount() != 2 {
		t.Fatalf("expected 2 connections, got %d", srv.ConnectionCount())
	}

	srv.BroadcastReload("intro.md")
	for _, c := range []*wsTestClient{a, b} {
		msg := c.receive()
		if msg.Action != "reload" || msg.FilePath != "intro.md" {
			t.Errorf("unexpected broadcast: %+v", msg)
		}
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	_, ts := testServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %v", resp)
	}
}

func TestWatchReloadsLessons(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("a.md", "---\nid: a\ntitle: First\norder: 1\n---\n\n# A\n")

	cat, err := qmdtutor.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	cfg := config.DefaultConfig()
	tracker, err := progress.NewTracker(context.Background(), progress.NewMemoryStore(), cat.IDs())
	if err != nil {
		t.Fatal(err)
	}
	srv := New(cfg, cat, tracker)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	if err := srv.EnableWatch(dir); err != nil {
		t.Fatalf("EnableWatch: %v", err)
	}

	c := newWSTestClient(t, ts)
	deadline := time.Now().Add(2 * time.Second)
	for srv.ConnectionCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	write("b.md", "---\nid: b\ntitle: Second\norder: 2\n---\n\n# B\n")

	msg := c.receive()
	if msg.Action != "reload" || msg.FilePath != "b.md" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if cat.Len() != 2 {
		t.Errorf("catalog should have 2 lessons, got %d", cat.Len())
	}
	if sum := tracker.Summary(); sum.Total != 2 {
		t.Errorf("tracker should know 2 lessons, got %d", sum.Total)
	}
}

func newWSServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	cat, err := qmdtutor.LoadBundled()
	if err != nil {
		t.Fatal(err)
	}
	tracker, err := progress.NewTracker(context.Background(), progress.NewMemoryStore(), cat.IDs())
	if err != nil {
		t.Fatal(err)
	}
	srv := New(cfg, cat, tracker)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts
}

func TestWebSocketRateLimited(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Render.Delay = "0"
	cfg.Render.ExecDelay = "0"
	cfg.API = &config.APIConfig{RateLimit: &config.RateLimitConfig{RequestsPerSecond: 0.01, Burst: 2}}
	c := newWSTestClient(t, newWSServer(t, cfg))

	for _, id := range []string{"a", "b", "c"} {
		c.send(wsMessage{ID: id, Action: "execute", Code: "x <- 1"})
	}

	replies := map[string]wsMessage{}
	for i := 0; i < 3; i++ {
		msg := c.receive()
		replies[msg.ID] = msg
	}
	for _, id := range []string{"a", "b"} {
		if replies[id].Action != "execute" {
			t.Errorf("request %s: unexpected reply %+v", id, replies[id])
		}
	}
	if got := replies["c"]; got.Action != "error" || got.Error != "rate limit exceeded" {
		t.Errorf("request c should be rate limited, got %+v", got)
	}
}

func TestWebSocketQueuesBeyondInFlightLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Render.Delay = "0"
	cfg.Render.ExecDelay = "50ms"
	cfg.API = &config.APIConfig{RateLimit: &config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000}}
	c := newWSTestClient(t, newWSServer(t, cfg))

	n := maxInFlight * 2
	for i := 0; i < n; i++ {
		c.send(wsMessage{ID: fmt.Sprintf("q%d", i), Action: "execute", Code: "x <- 1"})
	}

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		msg := c.receive()
		if msg.Action != "execute" {
			t.Fatalf("unexpected reply: %+v", msg)
		}
		seen[msg.ID] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct replies, got %d", n, len(seen))
	}
}
