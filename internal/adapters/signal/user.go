package signal

import "github.com/dkeye/cardlobby/internal/domain"

func (ctl *SignalWSController) handleWhoAmI(conn *WsSignalConn, env envelope) {
	resp := struct {
		Type      string           `json:"type"`
		ReqID     string           `json:"req_id,omitempty"`
		SessionID domain.SessionID `json:"session_id"`
		User      domain.User      `json:"user"`
		TableID   domain.TableID   `json:"table_id,omitempty"`
	}{
		Type:      "whoami",
		ReqID:     env.ReqID,
		SessionID: conn.sid,
		User:      conn.user,
	}
	if id, ok := ctl.Orch.Members.SeatOf(conn.user.ID); ok {
		resp.TableID = id
	}
	ctl.sendJSON(conn, resp)
}
