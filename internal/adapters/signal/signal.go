package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/cardlobby/internal/app/orch"
	"github.com/dkeye/cardlobby/internal/core"
	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32768
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	return o
}

type SignalWSController struct {
	Orch *orch.Orchestrator
	opts Options
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	return &SignalWSController{Orch: o, opts: opts.withDefaults()}
}

// WsSignalConn is one websocket connection. Writes go through a bounded
// queue drained by the write pump; a full queue is reported, never waited on.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame
	sid  domain.SessionID
	user domain.User

	mu     sync.RWMutex
	closed bool
}

var _ core.SignalConnection = (*WsSignalConn)(nil)

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

// Close never calls back into the lobby; the read pump does the cleanup.
func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and brings the connection into the
// lobby. claimed is the table reference the client cached, if any.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, user domain.User, claimed domain.TableID) {
	sid := domain.SessionID(uuid.NewString())
	logger := log.With().Str("module", "signal").Str("sid", string(sid)).Str("user", string(user.ID)).Logger()
	logger.Info().Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
		sid:  sid,
		user: user,
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := func() {
		cancel()
		conn.Close()
	}

	sess := core.NewPeerSession(domain.NewSession(sid, user, time.Now()), conn)
	go ctl.writePump(ctx, conn)
	ctl.Orch.Connect(sess, stop, claimed)
	go ctl.readPump(ctx, stop, conn)
}
