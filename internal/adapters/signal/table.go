package signal

import (
	"context"

	"github.com/dkeye/cardlobby/internal/core"
	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type listTablesPayload struct {
	Statuses   []domain.TableStatus `json:"statuses"`
	Network    string               `json:"network"`
	Visibility domain.Visibility    `json:"visibility"`
	MinFee     *decimal.Decimal     `json:"min_fee"`
	MaxFee     *decimal.Decimal     `json:"max_fee"`
	Query      string               `json:"query"`
	Sort       core.TableSort       `json:"sort"`
	Desc       bool                 `json:"desc"`
}

func (ctl *SignalWSController) handleListTables(conn *WsSignalConn, env envelope, data []byte) {
	var p listTablesPayload
	if !ctl.decode(conn, env, data, &p) {
		return
	}
	tables := ctl.Orch.ListTables(core.TableFilter{
		Viewer:     conn.user.ID,
		Statuses:   p.Statuses,
		Network:    p.Network,
		Visibility: p.Visibility,
		MinFee:     p.MinFee,
		MaxFee:     p.MaxFee,
		Query:      p.Query,
		Sort:       p.Sort,
		Desc:       p.Desc,
	})
	ctl.sendAck(conn, env, map[string]any{"tables": tables})
}

func (ctl *SignalWSController) handleCreateTable(conn *WsSignalConn, env envelope, data []byte) {
	var p struct {
		Settings domain.Settings `json:"settings"`
	}
	if !ctl.decode(conn, env, data, &p) {
		return
	}
	table, err := ctl.Orch.CreateTable(conn.user.ID, p.Settings)
	if err != nil {
		ctl.sendError(conn, env, err)
		return
	}
	ctl.sendAck(conn, env, map[string]any{"table": table})
}

func (ctl *SignalWSController) handleJoin(ctx context.Context, conn *WsSignalConn, env envelope, data []byte) {
	var p struct {
		TableID domain.TableID `json:"table_id"`
	}
	if !ctl.decode(conn, env, data, &p) {
		return
	}
	if p.TableID == "" {
		ctl.sendError(conn, env, domain.ErrInvalidRequest)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(conn.sid)).Str("table", string(p.TableID)).Msg("join")
	seat, err := ctl.Orch.Join(ctx, conn.user, conn.sid, p.TableID)
	if err != nil {
		ctl.sendError(conn, env, err)
		return
	}
	ctl.sendAck(conn, env, map[string]any{"seat": seat})
}

// handleLeave leaves the given table, or the current one when none is named.
// The connection stays open.
func (ctl *SignalWSController) handleLeave(ctx context.Context, conn *WsSignalConn, env envelope, data []byte) {
	var p struct {
		TableID domain.TableID `json:"table_id"`
	}
	if !ctl.decode(conn, env, data, &p) {
		return
	}
	if p.TableID == "" {
		p.TableID, _ = ctl.Orch.Members.SeatOf(conn.user.ID)
	}
	log.Info().Str("module", "signal").Str("sid", string(conn.sid)).Str("table", string(p.TableID)).Msg("leave")
	left, err := ctl.Orch.Leave(ctx, conn.user.ID, p.TableID)
	if err != nil {
		ctl.sendError(conn, env, err)
		return
	}
	ctl.sendAck(conn, env, map[string]any{"table_id": p.TableID, "left": left})
}
