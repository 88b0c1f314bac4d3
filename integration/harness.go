package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/basebuild/server/api"
	"github.com/kasuganosora/basebuild/server/audit"
	"github.com/kasuganosora/basebuild/server/config"
	"github.com/kasuganosora/basebuild/server/game/relay"
	"github.com/kasuganosora/basebuild/server/game/sim"
	"github.com/kasuganosora/basebuild/server/game/world"
	mw "github.com/kasuganosora/basebuild/server/middleware"
	"github.com/kasuganosora/basebuild/server/persist"
	"github.com/kasuganosora/basebuild/server/pubsub"
	"github.com/kasuganosora/basebuild/server/scheduler"
	"github.com/kasuganosora/basebuild/server/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const adminKey = "integration-admin-key"

// TestServer wraps a real HTTP server with every colony subsystem wired
// together. It mirrors the dependency wiring in main.go, except that the
// world only advances when the test calls Step.
type TestServer struct {
	DB     *gorm.DB
	PubSub pubsub.PubSub
	Engine *sim.Engine
	Relay  *relay.Relay
	Ledger *audit.Service
	Sched  *scheduler.Scheduler
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	WSURL  string // ws://127.0.0.1:<port>/ws
}

// NewTestServer creates a fully wired server around an empty floored
// width x height world.
func NewTestServer(t *testing.T, width, height int) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	ps := testutil.SetupTestPubSub(t)
	logger := zap.NewNop()

	eng := sim.New(testutil.NewTestWorld(t, width, height), logger)

	rl := relay.New(ps, pubsub.EventsChannel, 4096, logger)
	rl.SkipWorked = true
	eng.Observe(rl)

	ledger := audit.New(db, audit.Options{FlushInterval: 10 * time.Millisecond}, logger)
	eng.Observe(ledger)

	sched := scheduler.New(logger)

	ctx, cancel := context.WithCancel(context.Background())
	r := api.NewRouter(ctx, api.Deps{
		Engine:    eng,
		Options:   world.Options{},
		Saves:     persist.NewStore(db),
		Ledger:    ledger,
		Scheduler: sched,
		Stream:    rl,
		PubSub:    ps,
		Security: config.SecurityConfig{
			RateLimitRPS:   1000,
			RateLimitBurst: 2000,
		},
		AdminKey: adminKey,
		Logger:   logger,
	})

	server := httptest.NewServer(r)
	ts := &TestServer{
		DB:     db,
		PubSub: ps,
		Engine: eng,
		Relay:  rl,
		Ledger: ledger,
		Sched:  sched,
		Server: server,
		URL:    server.URL,
		WSURL:  "ws" + strings.TrimPrefix(server.URL, "http") + "/ws",
	}
	t.Cleanup(func() {
		server.Close()
		sched.Stop()
		ledger.Stop(context.Background())
		rl.Close()
		cancel()
	})
	return ts
}

// Step advances the world n ticks of dt each.
func (ts *TestServer) Step(n int, dt time.Duration) {
	for i := 0; i < n; i++ {
		ts.Engine.Step(dt)
	}
}

// --- HTTP helpers ---

func (ts *TestServer) do(t *testing.T, method, path string, body any, admin bool) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set(mw.AdminKeyHeader, adminKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a POST request with a JSON body.
func (ts *TestServer) PostJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPost, path, body, false)
}

// Get sends a GET request.
func (ts *TestServer) Get(t *testing.T, path string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodGet, path, nil, false)
}

// Put sends a PUT request with a JSON body.
func (ts *TestServer) Put(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPut, path, body, false)
}

// Admin sends an admin request carrying the admin key.
func (ts *TestServer) Admin(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	return ts.do(t, method, path, body, true)
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// Expect asserts the status code and closes the body.
func Expect(t *testing.T, resp *http.Response, status int) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != status {
		data, _ := io.ReadAll(resp.Body)
		require.Equal(t, status, resp.StatusCode, "body: %s", string(data))
	}
}

// --- WebSocket client ---

// WSClient wraps a gorilla/websocket connection for integration testing.
// A background readLoop feeds readCh so a timed-out wait never poisons the
// connection with a read deadline.
type WSClient struct {
	Conn   *websocket.Conn
	t      *testing.T
	seq    uint64
	readCh chan readResult
}

type readResult struct {
	data []byte
	err  error
}

// ConnectWS dials the event stream, optionally filtered to types, and waits
// for the connected packet.
func (ts *TestServer) ConnectWS(t *testing.T, types ...string) *WSClient {
	t.Helper()
	url := ts.WSURL
	if len(types) > 0 {
		url += "?types=" + strings.Join(types, ",")
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err, "WS dial failed")
	wc := &WSClient{Conn: conn, t: t, readCh: make(chan readResult, 1024)}
	t.Cleanup(func() { conn.Close() })
	go wc.readLoop()
	wc.RecvType("connected", 3*time.Second)
	return wc
}

func (wc *WSClient) readLoop() {
	for {
		_, data, err := wc.Conn.ReadMessage()
		wc.readCh <- readResult{data, err}
		if err != nil {
			return
		}
	}
}

// Send writes a command packet.
func (wc *WSClient) Send(msgType string, payload any) uint64 {
	wc.t.Helper()
	seq := atomic.AddUint64(&wc.seq, 1)
	raw, err := json.Marshal(payload)
	require.NoError(wc.t, err)
	data, err := json.Marshal(map[string]any{
		"seq":     seq,
		"type":    msgType,
		"payload": json.RawMessage(raw),
	})
	require.NoError(wc.t, err)
	require.NoError(wc.t, wc.Conn.WriteMessage(websocket.TextMessage, data))
	return seq
}

// RecvAny reads one message, or fails with a timeout error.
func (wc *WSClient) RecvAny(timeout time.Duration) (map[string]any, error) {
	select {
	case res := <-wc.readCh:
		if res.err != nil {
			return nil, res.err
		}
		var msg map[string]any
		if err := json.Unmarshal(res.data, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case <-time.After(timeout):
		return nil, &timeoutError{}
	}
}

type timeoutError struct{}

func (e *timeoutError) Error() string   { return "read timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

// RecvType reads messages until one with the given type arrives. Skipped
// messages are returned too, in arrival order.
func (wc *WSClient) RecvType(msgType string, timeout time.Duration) (map[string]any, []map[string]any) {
	wc.t.Helper()
	var skipped []map[string]any
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			wc.t.Fatalf("timed out waiting for message type %q", msgType)
		}
		msg, err := wc.RecvAny(remaining)
		if err != nil {
			wc.t.Fatalf("WS recv failed while waiting for %q: %v", msgType, err)
		}
		if msg["type"] == msgType {
			return msg, skipped
		}
		skipped = append(skipped, msg)
	}
}
