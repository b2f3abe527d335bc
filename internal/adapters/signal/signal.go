package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	SendBuffer     int
	AllowedOrigins []string
}

type SignalWSController struct {
	Orch *app.Orchestrator

	ctx      context.Context
	opts     Options
	upgrader websocket.Upgrader
}

func NewSignalWSController(ctx context.Context, orch *app.Orchestrator, opts Options) *SignalWSController {
	return &SignalWSController{
		Orch: orch,
		ctx:  ctx,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     OriginChecker(opts.AllowedOrigins),
		},
	}
}

// WsSignalConn is the transport side of one connection.
// It implements core.SignalConnection.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

// Close stops accepting frames; writePump drains the queue, sends a close
// frame and tears the socket down.
func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (ctl *SignalWSController) HandleSignal(c *gin.Context) {
	id := domain.NewConnID()
	logger := log.With().Str("module", "signal").Str("conn", string(id)).Str("client", c.GetString("client_token")).Logger()

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}
	if !ctl.Orch.Register(id, conn) {
		logger.Warn().Msg("orchestrator stopped, refusing connection")
		_ = ws.Close()
		return
	}
	logger.Info().Str("remote", ws.RemoteAddr().String()).Msg("user connected")

	go ctl.writePump(conn, &logger)
	go ctl.readPump(id, conn, &logger)
}

// AllowOrigin reports whether a browser Origin is one of allowed.
func AllowOrigin(allowed []string) func(origin string) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if n, ok := normalizeOrigin(o); ok {
			set[n] = struct{}{}
		}
	}
	return func(origin string) bool {
		n, ok := normalizeOrigin(origin)
		if !ok {
			return false
		}
		_, ok = set[n]
		return ok
	}
}

// OriginChecker is the upgrader policy: requests without Origin (non browser
// clients) pass, browsers need an allowed origin.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	allow := AllowOrigin(allowed)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allow(origin)
	}
}
