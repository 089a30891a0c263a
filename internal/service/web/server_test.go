package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makinje16/AirSignals/internal/shared/globalstate"
	"github.com/makinje16/AirSignals/internal/shared/types"
	"github.com/makinje16/AirSignals/internal/signaling"
)

type testEnv struct {
	server   *httptest.Server
	registry *signaling.Registry
	handler  *Handler
	status   *globalstate.StatusManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, types.SocketConf{
		ReadLimit:        4096,
		PongWaitSeconds:  60,
		WriteWaitSeconds: 5,
	})
}

func newTestEnvWith(t *testing.T, socket types.SocketConf) *testEnv {
	t.Helper()
	registry := signaling.NewRegistry(2, 16)
	status := globalstate.NewStatusManager()
	handler := NewHandler(registry, status, socket)
	srv := httptest.NewServer(NewMux(handler))
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, registry: registry, handler: handler, status: status}
}

func (e *testEnv) dial(t *testing.T, chatID, hostID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/" + chatID + "/" + hostID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWelcome(t *testing.T, conn *websocket.Conn) signaling.Welcome {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var w signaling.Welcome
	require.NoError(t, conn.ReadJSON(&w))
	return w
}

func readRelay(t *testing.T, conn *websocket.Conn) signaling.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var m signaling.Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestServeWs_PairAndRelay(t *testing.T) {
	env := newTestEnv(t)

	anwar := env.dial(t, "555", "Anwar")
	w1 := readWelcome(t, anwar)
	assert.False(t, w1.Polite)
	assert.Equal(t, "Hi Anwar! You connected to the server at chatID: 555", w1.Body)

	malcolm := env.dial(t, "555", "Malcolm")
	w2 := readWelcome(t, malcolm)
	assert.True(t, w2.Polite)

	require.NoError(t, malcolm.WriteMessage(websocket.TextMessage, []byte("Hello this is Malcolm!")))
	got := readRelay(t, anwar)
	assert.Equal(t, signaling.Message{MessageType: signaling.TypeMessage, Body: "Hello this is Malcolm!", SenderID: "Malcolm"}, got)

	require.NoError(t, anwar.WriteJSON(signaling.Message{MessageType: signaling.TypeOffer, Body: "sdp"}))
	got = readRelay(t, malcolm)
	assert.Equal(t, signaling.TypeOffer, got.MessageType)
	assert.Equal(t, "Anwar", got.SenderID)
}

func TestServeWs_QueuedUntilPeerJoins(t *testing.T) {
	env := newTestEnv(t)

	first := env.dial(t, "q", "first")
	readWelcome(t, first)
	require.NoError(t, first.WriteJSON(signaling.Message{MessageType: signaling.TypeOffer, Body: "early-offer"}))

	// the relay happens on the server's read pump; wait until it is queued
	require.Eventually(t, func() bool {
		room, ok := env.registry.Room("q")
		return ok && room.NumWaiting() == 1
	}, 2*time.Second, 10*time.Millisecond)

	second := env.dial(t, "q", "second")
	readWelcome(t, second)
	got := readRelay(t, second)
	assert.Equal(t, "early-offer", got.Body)
	assert.Equal(t, "first", got.SenderID)
}

func TestServeWs_RoomFullIsClosed(t *testing.T) {
	env := newTestEnv(t)
	readWelcome(t, env.dial(t, "full", "a"))
	readWelcome(t, env.dial(t, "full", "b"))

	third := env.dial(t, "full", "c")
	require.NoError(t, third.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := third.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseTryAgainLater), "got %v", err)

	n, err := env.registry.NumClients("full")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestServeWs_PeerCloseLeavesRoom(t *testing.T) {
	env := newTestEnv(t)
	a := env.dial(t, "bye", "a")
	readWelcome(t, a)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	require.NoError(t, a.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	require.Eventually(t, func() bool {
		_, err := env.registry.NumClients("bye")
		return err != nil && env.handler.Hub().Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandleConnectedClients(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/getConnectedClients/555")
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Chat Room does not exist", body["body"])

	readWelcome(t, env.dial(t, "555", "Anwar"))

	resp, err = http.Get(env.server.URL + "/getConnectedClients/555")
	require.NoError(t, err)
	body = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "message", body["type"])
	assert.Equal(t, float64(1), body["numClients"])
}

func TestCORSCrossOriginGet(t *testing.T) {
	env := newTestEnv(t)
	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/getConnectedClients/555", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://app.example")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Content-Length", resp.Header.Get("Access-Control-Expose-Headers"))
	assert.Contains(t, resp.Header.Values("Vary"), "Origin")
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t)
	env.status.Set(globalstate.StatusRunning)
	readWelcome(t, env.dial(t, "s", "a"))

	resp, err := http.Get(env.server.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, StatusResponse{Status: globalstate.StatusRunning, Rooms: 1, Clients: 1}, got)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/getConnectedClients/555", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "43200", resp.Header.Get("Access-Control-Max-Age"))

	// methods other than GET are not granted
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHubCloseAll(t *testing.T) {
	env := newTestEnv(t)
	a := env.dial(t, "x", "a")
	readWelcome(t, a)

	env.handler.Hub().CloseAll(time.Second)

	require.NoError(t, a.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := a.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	require.Eventually(t, func() bool { return env.registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWs_OversizedFrameDropsPeer(t *testing.T) {
	env := newTestEnv(t)
	big := env.dial(t, "limit", "big")
	readWelcome(t, big)

	require.NoError(t, big.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 8192))))

	require.NoError(t, big.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := big.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "got %v", err)

	require.Eventually(t, func() bool {
		_, err := env.registry.NumClients("limit")
		return err != nil && env.handler.Hub().Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServeWs_SilentPeerDroppedAfterPongWait(t *testing.T) {
	env := newTestEnvWith(t, types.SocketConf{
		ReadLimit:        4096,
		PongWaitSeconds:  1,
		WriteWaitSeconds: 1,
	})

	// never reads after the welcome, so pings go unanswered
	silent := env.dial(t, "quiet", "silent")
	readWelcome(t, silent)

	require.Eventually(t, func() bool {
		_, err := env.registry.NumClients("quiet")
		return err != nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestServeWs_PongKeepsPeerAlive(t *testing.T) {
	env := newTestEnvWith(t, types.SocketConf{
		ReadLimit:        4096,
		PongWaitSeconds:  1,
		WriteWaitSeconds: 1,
	})

	alive := env.dial(t, "quiet", "alive")
	readWelcome(t, alive)
	require.NoError(t, alive.SetReadDeadline(time.Time{}))
	// the default ping handler answers with a pong while the reader runs
	go func() {
		for {
			if _, _, err := alive.ReadMessage(); err != nil {
				return
			}
		}
	}()

	time.Sleep(2500 * time.Millisecond)
	n, err := env.registry.NumClients("quiet")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
