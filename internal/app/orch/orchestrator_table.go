package orch

import (
	"context"

	"github.com/dkeye/cardlobby/internal/app"
	"github.com/dkeye/cardlobby/internal/core"
	"github.com/dkeye/cardlobby/internal/domain"
)

func (o *Orchestrator) CreateTable(creator domain.UserID, settings domain.Settings) (domain.TableSummary, error) {
	t, err := o.Tables.Create(creator, settings)
	if err != nil {
		return domain.TableSummary{}, err
	}
	return t.Summary(), nil
}

func (o *Orchestrator) ListTables(filter core.TableFilter) []domain.TableSummary {
	return o.Tables.ListActive(filter)
}

// Table returns a table the viewer is allowed to see.
func (o *Orchestrator) Table(id domain.TableID, viewer domain.UserID) (domain.Table, error) {
	t, ok := o.Tables.Snapshot(id)
	if !ok || !t.VisibleTo(viewer) {
		return domain.Table{}, domain.ErrTableNotFound
	}
	return t, nil
}

func (o *Orchestrator) Join(ctx context.Context, user domain.User, sid domain.SessionID, id domain.TableID) (domain.Seat, error) {
	return o.Members.Join(ctx, app.JoinRequest{
		TableID: id,
		User:    user.ID,
		Meta:    seatMeta(user, sid),
	})
}

func (o *Orchestrator) Leave(ctx context.Context, user domain.UserID, id domain.TableID) (bool, error) {
	return o.Members.Leave(ctx, id, user)
}

// StartTable and FinishTable are the game engine's signals.
func (o *Orchestrator) StartTable(id domain.TableID) (domain.TableSummary, error) {
	t, err := o.Tables.Start(id)
	if err != nil {
		return domain.TableSummary{}, err
	}
	return t.Summary(), nil
}

func (o *Orchestrator) FinishTable(id domain.TableID) (domain.TableSummary, error) {
	t, err := o.Tables.Finish(id)
	if err != nil {
		return domain.TableSummary{}, err
	}
	return t.Summary(), nil
}

func (o *Orchestrator) Invite(ctx context.Context, from domain.User, req app.InviteRequest) (app.InviteResult, error) {
	req.InviterID = from.ID
	req.InviterName = from.Username
	return o.Invites.Invite(ctx, req)
}

func (o *Orchestrator) Respond(ctx context.Context, user domain.User, sid domain.SessionID, id domain.InvitationID, response domain.Response) (app.RespondResult, error) {
	return o.Invites.Respond(ctx, id, user.ID, response, seatMeta(user, sid))
}

// Invitation is visible to its inviter and invitee only.
func (o *Orchestrator) Invitation(id domain.InvitationID, viewer domain.UserID) (domain.Invitation, error) {
	inv, ok := o.Invites.Get(id)
	if !ok || (inv.InviterID != viewer && inv.InviteeID != viewer) {
		return domain.Invitation{}, domain.ErrInvitationNotFound
	}
	return inv, nil
}

func seatMeta(user domain.User, sid domain.SessionID) domain.SeatMeta {
	return domain.SeatMeta{SessionID: sid, Username: user.Username, Avatar: user.Avatar}
}
