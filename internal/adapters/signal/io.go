package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(c.sid)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(c.sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, stop func(), c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(c.sid)).Msg("readPump closing")
		stop()
		ctl.Orch.Disconnect(c.sid)
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(c.sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(ctx, c, data)
		}
	}
}

type envelope struct {
	Type  string `json:"type"`
	ReqID string `json:"req_id,omitempty"`
}

// handleSignal runs requests in arrival order, so each session sees its
// replies in the order it asked.
func (ctl *SignalWSController) handleSignal(ctx context.Context, c *WsSignalConn, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, env, domain.ErrInvalidRequest)
		return
	}

	switch env.Type {
	case "ping":
		ctl.handlePing(c, env)
	case "whoami":
		ctl.handleWhoAmI(c, env)
	case "list_tables":
		ctl.handleListTables(c, env, data)
	case "create_table":
		ctl.handleCreateTable(c, env, data)
	case "join":
		ctl.handleJoin(ctx, c, env, data)
	case "leave":
		ctl.handleLeave(ctx, c, env, data)
	case "list_online":
		ctl.handleListOnline(c, env)
	case "invite":
		ctl.handleInvite(ctx, c, env, data)
	case "respond":
		ctl.handleRespond(ctx, c, env, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, env, domain.ErrInvalidRequest)
	}
}

// decode reports a bad payload to the client and returns false.
func (ctl *SignalWSController) decode(c *WsSignalConn, env envelope, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("type", env.Type).Msg("bad payload")
		ctl.sendError(c, env, domain.ErrInvalidRequest)
		return false
	}
	return true
}

func (ctl *SignalWSController) sendAck(c *WsSignalConn, env envelope, payload any) {
	ctl.sendJSON(c, struct {
		Type    string `json:"type"`
		ReqID   string `json:"req_id,omitempty"`
		Op      string `json:"op"`
		Payload any    `json:"payload,omitempty"`
	}{"ack", env.ReqID, env.Type, payload})
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, env envelope, err error) {
	ctl.sendJSON(c, struct {
		Type    string `json:"type"`
		ReqID   string `json:"req_id,omitempty"`
		Op      string `json:"op,omitempty"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}{"error", env.ReqID, env.Type, domain.Code(err), err.Error()})
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("reply dropped")
	}
}
