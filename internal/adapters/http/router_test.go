package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type health struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
	Timestamp   string `json:"timestamp"`
}

func testConfig() *config.Config {
	return &config.Config{
		Mode:           gin.TestMode,
		Secret:         "test-secret",
		AllowedOrigins: []string{"http://localhost:5173"},
		ReadLimit:      65536,
		PingPeriod:     5 * time.Second,
		SendBuffer:     64,
		ICEServerURLs:  []string{"stun:stun.l.google.com:19302"},
	}
}

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	orch := app.NewOrchestrator(core.NewRegistry(), nil, app.Options{})
	stopped := make(chan struct{})
	go func() {
		orch.Run(ctx)
		close(stopped)
	}()
	srv := httptest.NewServer(SetupRouter(ctx, testConfig(), orch))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-stopped
	})
	return srv
}

func getHealth(t *testing.T, srv *httptest.Server) health {
	t.Helper()
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var h health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	return h
}

type peer struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server) *peer {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &peer{t: t, conn: conn}
}

func (p *peer) send(typ domain.EventType, payload any) {
	p.t.Helper()
	frame, err := domain.Encode(typ, payload)
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, frame))
}

func (p *peer) expect(typ domain.EventType) domain.Envelope {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := p.conn.ReadMessage()
	require.NoError(p.t, err)
	env, err := domain.ParseEnvelope(data)
	require.NoError(p.t, err)
	require.Equal(p.t, typ, env.Type, string(data))
	return env
}

func TestRouter_Liveness(t *testing.T) {
	srv := startServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
}

func TestRouter_HealthOnEmptyServer(t *testing.T) {
	h := getHealth(t, startServer(t))

	require.Equal(t, "ok", h.Status)
	require.Equal(t, 0, h.Rooms)
	_, err := time.Parse(time.RFC3339Nano, h.Timestamp)
	require.NoError(t, err)
}

func TestRouter_ICEServers(t *testing.T) {
	srv := startServer(t)

	resp, err := http.Get(srv.URL + "/ice-servers")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		ICEServers []struct {
			URLs []string `json:"urls"`
		} `json:"iceServers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.ICEServers, 1)
	require.Equal(t, []string{"stun:stun.l.google.com:19302"}, body.ICEServers[0].URLs)
}

func TestRouter_CORS(t *testing.T) {
	srv := startServer(t)

	t.Run("should answer preflight for allowed origin", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/health", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", "GET")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
		require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	})

	t.Run("should refuse websocket from foreign origin", func(t *testing.T) {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
		header := http.Header{"Origin": []string{"https://evil.example"}}
		_, resp, err := websocket.DefaultDialer.Dial(url, header)
		require.Error(t, err)
		require.NotNil(t, resp)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestRouter_PresenceScenario(t *testing.T) {
	req := require.New(t)
	srv := startServer(t)

	a := dial(t, srv)
	a.send(domain.EventJoinRoom, domain.JoinRoom{RoomID: "math101", Name: "Alice"})
	req.JSONEq(`[]`, string(a.expect(domain.EventUsersInRoom).Payload))

	b := dial(t, srv)
	b.send(domain.EventJoinRoom, domain.JoinRoom{RoomID: "math101", Name: "Bob"})
	var users []domain.Participant
	req.NoError(json.Unmarshal(b.expect(domain.EventUsersInRoom).Payload, &users))
	req.Len(users, 1)
	req.Equal("Alice", users[0].Name)
	aliceID := users[0].ID

	var joined domain.Participant
	req.NoError(json.Unmarshal(a.expect(domain.EventUserJoined).Payload, &joined))
	req.Equal("Bob", joined.Name)
	bobID := joined.ID

	a.send(domain.EventOffer, map[string]any{"to": bobID, "sdp": "v=0"})
	var offer map[string]any
	req.NoError(json.Unmarshal(b.expect(domain.EventOffer).Payload, &offer))
	req.Equal(string(aliceID), offer["from"])
	req.Equal("Alice", offer["name"])

	req.NoError(b.conn.Close())
	var left domain.Participant
	req.NoError(json.Unmarshal(a.expect(domain.EventUserLeft).Payload, &left))
	req.Equal(domain.Participant{ID: bobID, Name: "Bob"}, left)
	req.Equal(1, getHealth(t, srv).Rooms)

	req.NoError(a.conn.Close())
	req.Eventually(func() bool { return getHealth(t, srv).Rooms == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestRouter_OversizeFrameClosesConnection(t *testing.T) {
	req := require.New(t)
	srv := startServer(t)
	a := dial(t, srv)
	a.send(domain.EventJoinRoom, domain.JoinRoom{RoomID: "r", Name: "Alice"})
	a.expect(domain.EventUsersInRoom)

	big := `{"type":"chat-message","payload":{"message":"` + strings.Repeat("x", int(testConfig().ReadLimit)) + `"}}`
	req.NoError(a.conn.WriteMessage(websocket.TextMessage, []byte(big)))

	req.NoError(a.conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
	_, _, err := a.conn.ReadMessage()
	req.True(websocket.IsCloseError(err, websocket.CloseMessageTooBig), "got %v", err)
	req.Eventually(func() bool {
		h := getHealth(t, srv)
		return h.Rooms == 0 && h.Connections == 0
	}, 3*time.Second, 10*time.Millisecond)
}
