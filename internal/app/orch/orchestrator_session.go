package orch

import (
	"context"
	"time"

	"github.com/dkeye/cardlobby/internal/core"
	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/rs/zerolog/log"
)

// Connect brings a new session into the lobby. The resume frame is queued
// before the session is registered, so no broadcast can overtake it. While
// Connect runs, no grace eviction can take the user's seat.
func (o *Orchestrator) Connect(sess core.PeerSession, cancel context.CancelFunc, claimed domain.TableID) core.ResumePayload {
	meta := sess.Meta()
	o.beginConnect(meta.User.ID)
	defer o.endConnect(meta.User.ID)

	resume := o.Resumer.Resume(meta.User.ID, meta.ID, claimed)
	o.Fanout.SendEvent(sess, core.Event{Type: core.EventResume, Payload: resume})

	o.Presence.Register(sess, cancel)
	o.Fanout.SendEvent(sess, core.Event{Type: core.EventLobbyState, Payload: o.LobbyState(meta.User.ID)})
	return resume
}

// Disconnect is safe to call more than once per session.
func (o *Orchestrator) Disconnect(sid domain.SessionID) {
	meta, ok := o.Presence.Unregister(sid)
	if !ok {
		return
	}
	if o.Presence.Online(meta.User.ID) {
		return
	}
	o.scheduleEviction(meta.User.ID)
}

// Kick closes a session's connection; its pumps then disconnect it.
func (o *Orchestrator) Kick(sid domain.SessionID) bool {
	return o.Presence.Cancel(sid)
}

func (o *Orchestrator) LobbyState(viewer domain.UserID) core.LobbyStatePayload {
	return core.LobbyStatePayload{
		Tables:      o.Tables.ListActive(core.TableFilter{Viewer: viewer}),
		Peers:       o.Presence.ListOnline(viewer),
		Invitations: o.Invites.PendingFor(viewer),
	}
}

func (o *Orchestrator) Peers(excluding domain.UserID) []domain.Peer {
	return o.Presence.ListOnline(excluding)
}

func (o *Orchestrator) scheduleEviction(user domain.UserID) {
	if o.grace <= 0 {
		return
	}
	if _, seated := o.Members.SeatOf(user); !seated {
		return
	}
	o.evictMu.Lock()
	defer o.evictMu.Unlock()
	if t, ok := o.evicting[user]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(o.grace, func() { o.evictIdle(user, t) })
	o.evicting[user] = t
	log.Debug().Str("module", "orch").Str("user", string(user)).Dur("grace", o.grace).Msg("eviction scheduled")
}

// evictIdle frees the seat of a user who stayed away for the whole grace
// period. timer is the grace timer that fired; a nil timer skips that check.
// The seat is released under evictMu, so a reconnect either sees it gone or
// keeps it.
func (o *Orchestrator) evictIdle(user domain.UserID, timer *time.Timer) bool {
	o.evictMu.Lock()
	defer o.evictMu.Unlock()
	if timer != nil && o.evicting[user] != timer {
		return false
	}
	delete(o.evicting, user)
	if o.connecting[user] > 0 || o.Presence.Online(user) {
		return false
	}
	table, left := o.Members.EvictIfWaiting(context.Background(), user)
	if left {
		log.Info().Str("module", "orch").Str("user", string(user)).Str("table", string(table)).Msg("seat released after grace")
	}
	return left
}

func (o *Orchestrator) beginConnect(user domain.UserID) {
	o.evictMu.Lock()
	defer o.evictMu.Unlock()
	if t, ok := o.evicting[user]; ok {
		t.Stop()
		delete(o.evicting, user)
	}
	o.connecting[user]++
}

func (o *Orchestrator) endConnect(user domain.UserID) {
	o.evictMu.Lock()
	defer o.evictMu.Unlock()
	if o.connecting[user]--; o.connecting[user] <= 0 {
		delete(o.connecting, user)
	}
}

// PendingEviction reports whether a grace timer is running for user.
func (o *Orchestrator) PendingEviction(user domain.UserID) bool {
	o.evictMu.Lock()
	defer o.evictMu.Unlock()
	_, ok := o.evicting[user]
	return ok
}
