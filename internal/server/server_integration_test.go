package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/chatter/internal/app"
	"github.com/nfrund/chatter/internal/identity"
	"github.com/nfrund/chatter/internal/protocol"
	"github.com/nfrund/chatter/internal/registry"
	"github.com/nfrund/chatter/internal/server"
	"github.com/nfrund/chatter/internal/store"
	"github.com/nfrund/chatter/internal/testutils"
)

type harness struct {
	base   string
	oracle *identity.JWTOracle
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := testutils.ConfigForTests(t, map[string]string{
		"SEND_BUFFER":       "64",
		"METRICS_ENABLED":   "true",
		"EVENTS_PER_SECOND": "0",
		"HTTP_RATE_LIMIT":   "0",
	})

	deps, err := app.Build(ctx, cfg, "test")
	require.NoError(t, err)

	reg := registry.New(cfg)
	deps.Register(reg)

	srv := server.New(cfg, reg, app.NewModules(deps))
	require.NoError(t, srv.Boot(ctx))

	ts := httptest.NewServer(srv.E)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		ts.Close()
		_ = deps.Close(shutdownCtx)
	})

	oracle, err := identity.NewJWTOracle(testutils.TestSecret)
	require.NoError(t, err)
	return &harness{base: ts.URL, oracle: oracle}
}

func (h *harness) token(t *testing.T, who string) string {
	t.Helper()
	tok, err := h.oracle.Issue(who, time.Hour)
	require.NoError(t, err)
	return tok
}

func (h *harness) get(t *testing.T, path, token string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, h.base+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func (h *harness) dial(t *testing.T, who string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(h.base, "http") + "/ws?token=" + h.token(t, who)
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	frame, err := protocol.Encode(event, data, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, frame))
}

// readUntil skips frames until one named event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) protocol.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		_, frame, err := conn.Read(ctx)
		require.NoError(t, err, "waiting for %s", event)
		env, err := protocol.Decode(frame)
		require.NoError(t, err)
		if env.Event == event {
			return env
		}
	}
}

func TestServer_HealthIsPublic(t *testing.T) {
	h := newHarness(t)

	code, body := h.get(t, "/api/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	code, _ = h.get(t, "/api/messages", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestServer_RoomMessageVisibleOverRESTAndSocket(t *testing.T) {
	h := newHarness(t)

	alice := h.dial(t, "alice")
	readUntil(t, alice, protocol.EventUpdateUsers)

	send(t, alice, protocol.EventJoinRoom, protocol.JoinRoom{Room: "general"})
	backlog := readUntil(t, alice, protocol.EventRoomHistory)
	assert.JSONEq(t, `[]`, string(backlog.Data))

	send(t, alice, protocol.EventRoomMessage, protocol.RoomMessage{Room: "general", Text: "hi all"})
	env := readUntil(t, alice, protocol.EventRoomMessage)

	var got store.Message
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "alice", got.Author)
	assert.Equal(t, "general", got.Room)
	assert.Equal(t, "hi all", got.Text)

	code, body := h.get(t, "/api/rooms/general/messages", h.token(t, "bob"))
	require.Equal(t, http.StatusOK, code)
	var history []store.Message
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history, 1)
	assert.Equal(t, got.ID, history[0].ID)

	code, body = h.get(t, "/api/online", h.token(t, "bob"))
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"users":["alice"],"count":1}`, string(body))
}

func TestServer_WebsocketRejectsBadToken(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(h.base, "http") + "/ws?token=garbage"
	_, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	h := newHarness(t)

	h.get(t, "/api/health", "")
	conn := h.dial(t, "carol")
	readUntil(t, conn, protocol.EventUpdateUsers)

	code, body := h.get(t, "/metrics", "")
	require.Equal(t, http.StatusOK, code)
	text := string(body)
	assert.Contains(t, text, "chatter_connections_active 1")
	assert.Contains(t, text, "chatter_http_requests_total")
	assert.Contains(t, text, "chatter_outbound_deliveries_total")
}
