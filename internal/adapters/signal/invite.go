package signal

import (
	"context"

	"github.com/dkeye/cardlobby/internal/app"
	"github.com/dkeye/cardlobby/internal/domain"
)

func (ctl *SignalWSController) handleListOnline(conn *WsSignalConn, env envelope) {
	ctl.sendAck(conn, env, map[string]any{"peers": ctl.Orch.Peers(conn.user.ID)})
}

func (ctl *SignalWSController) handleInvite(ctx context.Context, conn *WsSignalConn, env envelope, data []byte) {
	var p struct {
		InviteeID domain.UserID   `json:"invitee_id"`
		TableID   domain.TableID  `json:"table_id"`
		Batch     string          `json:"batch"`
		Settings  domain.Settings `json:"settings"`
	}
	if !ctl.decode(conn, env, data, &p) {
		return
	}
	res, err := ctl.Orch.Invite(ctx, conn.user, app.InviteRequest{
		InviteeID: p.InviteeID,
		TableID:   p.TableID,
		Batch:     p.Batch,
		Settings:  p.Settings,
	})
	if err != nil {
		ctl.sendError(conn, env, err)
		return
	}
	ctl.sendAck(conn, env, res)
}

func (ctl *SignalWSController) handleRespond(ctx context.Context, conn *WsSignalConn, env envelope, data []byte) {
	var p struct {
		InvitationID domain.InvitationID `json:"invitation_id"`
		Response     domain.Response     `json:"response"`
	}
	if !ctl.decode(conn, env, data, &p) {
		return
	}
	res, err := ctl.Orch.Respond(ctx, conn.user, conn.sid, p.InvitationID, p.Response)
	if err != nil {
		ctl.sendError(conn, env, err)
		return
	}
	ctl.sendAck(conn, env, res)
}
