package signal

func (ctl *SignalWSController) handlePing(conn *WsSignalConn, env envelope) {
	ctl.sendJSON(conn, struct {
		Type  string `json:"type"`
		ReqID string `json:"req_id,omitempty"`
	}{
		Type:  "pong",
		ReqID: env.ReqID,
	})
}
