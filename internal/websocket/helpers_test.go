// PinkSync Hub - Real-time Room-Scoped Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinksync-hub

package websocket

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/pinksync-hub/internal/auth"
	"github.com/tomtom215/pinksync-hub/internal/hub"
	"github.com/tomtom215/pinksync-hub/internal/logging"
	"github.com/tomtom215/pinksync-hub/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

const testServerID = "pinksync-test"

type testEnv struct {
	hub        *hub.Hub
	dispatcher *hub.Dispatcher
	handler    *Handler
	server     *httptest.Server
	cancel     context.CancelFunc
	hubDone    chan struct{}
}

func testConfig() Config {
	return Config{
		AllowedOrigins:   []string{"http://localhost:3000", "https://app.pinksync.io"},
		AllowEmptyOrigin: true,
		WriteWait:        time.Second,
	}
}

func trustingValidator(t *testing.T) auth.Validator {
	t.Helper()
	v, err := auth.NewCredentialValidator(auth.Config{TrustClientUserID: true})
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func newTestEnv(t *testing.T, cfg Config, v auth.Validator) *testEnv {
	t.Helper()
	if v == nil {
		v = trustingValidator(t)
	}

	h := hub.New(hub.Config{ServerID: testServerID})
	d := hub.NewDispatcher(h, hub.DispatcherConfig{SendTimeout: time.Second})
	handler := NewHandler(h, d, v, NewRandomRecognizer(rand.New(rand.NewSource(1))), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	env := &testEnv{
		hub:        h,
		dispatcher: d,
		handler:    handler,
		server:     httptest.NewServer(handler),
		cancel:     cancel,
		hubDone:    make(chan struct{}),
	}
	go func() {
		defer close(env.hubDone)
		_ = h.RunWithContext(ctx)
	}()

	t.Cleanup(func() {
		env.cancel()
		<-env.hubDone
		env.server.Close()
	})
	return env
}

func (e *testEnv) wsURL(query string) string {
	u := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func (e *testEnv) dial(query string, header http.Header) (*websocket.Conn, *http.Response, error) {
	conn, resp, err := websocket.DefaultDialer.Dial(e.wsURL(query), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// connect dials and consumes connection_established.
func (e *testEnv) connect(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := e.dial(query, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	ev := readEvent(t, conn)
	if ev.Type != models.EventConnectionEstablished {
		t.Fatalf("first frame = %s, want connection_established", ev.Type)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) models.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	ev, err := models.Decode(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return ev
}

// expectSilence asserts no frame arrives within d.
func expectSilence(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(d))
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("unexpected frame %s", data)
	}
}

func send(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	sendRaw(t, conn, string(data))
}

func sendRaw(t *testing.T, conn *websocket.Conn, s string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(s)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// lockedBuffer collects log output written from several goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(b.buf.String(), "\n")
}
