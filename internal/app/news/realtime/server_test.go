package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"newsroom.local/gee"
	"newsroom.local/internal/platform/auth"
	"newsroom.local/internal/platform/fanout"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuth 用 ?user= 模拟鉴权中间件
func fakeAuth(ctx *gee.Context) {
	if u := ctx.Query("user"); u != "" {
		ctx.Req = ctx.Req.WithContext(auth.WithIdentity(ctx.Req.Context(), auth.Identity{UserID: u}))
	}
	ctx.Next()
}

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *fanout.Hub, *Server) {
	t.Helper()
	hub := fanout.NewHub(8)
	s := NewServer(hub, opts...)
	engine := gee.New()
	engine.GET("/api/realtime", fakeAuth, s.Handle)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv, hub, s
}

func dial(t *testing.T, srv *httptest.Server, user string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/realtime"
	if user != "" {
		url += "?user=" + user
	}
	return websocket.DefaultDialer.Dial(url, nil)
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestRealtimeDeliversOnlyToIdentity(t *testing.T) {
	srv, hub, _ := newTestServer(t)

	alice, _, err := dial(t, srv, "1")
	require.NoError(t, err)
	defer alice.Close()
	bob, _, err := dial(t, srv, "2")
	require.NoError(t, err)
	defer bob.Close()

	hello := readEvent(t, alice)
	assert.Equal(t, "connection:established", hello["event"])
	readEvent(t, bob)

	require.Eventually(t, func() bool { return hub.Connections("1") == 1 && hub.Connections("2") == 1 }, time.Second, 5*time.Millisecond)

	ev, err := fanout.NewEvent("post", "42", fanout.Updated, map[string]string{"id": "42"})
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Publish("1", ev))

	got := readEvent(t, alice)
	assert.Equal(t, "post:updated", got["event"])
	assert.Equal(t, "42", got["subjectId"])

	// bob 收不到 alice 的事件
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err)
}

func TestRealtimeUnsubscribesOnDisconnect(t *testing.T) {
	srv, hub, _ := newTestServer(t)

	conn, _, err := dial(t, srv, "7")
	require.NoError(t, err)
	readEvent(t, conn)
	require.Eventually(t, func() bool { return hub.Connections("7") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Connections("7") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRealtimeRequiresIdentity(t *testing.T) {
	srv, _, _ := newTestServer(t)

	_, resp, err := dial(t, srv, "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRealtimeConnectionLimit(t *testing.T) {
	srv, hub, _ := newTestServer(t, WithMaxConnectionsPerUser(1))

	first, _, err := dial(t, srv, "3")
	require.NoError(t, err)
	defer first.Close()
	readEvent(t, first)
	require.Eventually(t, func() bool { return hub.Connections("3") == 1 }, time.Second, 5*time.Millisecond)

	_, resp, err := dial(t, srv, "3")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestCloseAll(t *testing.T) {
	srv, hub, s := newTestServer(t)

	conn, _, err := dial(t, srv, "9")
	require.NoError(t, err)
	defer conn.Close()
	readEvent(t, conn)

	s.CloseAll()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return hub.Connections("9") == 0 }, 2*time.Second, 10*time.Millisecond)
}
