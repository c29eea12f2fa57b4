package app

import (
	"context"
	"sort"

	"github.com/dkeye/cardlobby/internal/core"
	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/rs/zerolog/log"
)

type presenceEntry struct {
	Session core.PeerSession
	Cancel  context.CancelFunc
}

// Presence tracks which sessions are connected right now.
type Presence struct {
	sessions *stripedMap[domain.SessionID, *presenceEntry]
	users    *stripedMap[domain.UserID, map[domain.SessionID]core.PeerSession]
	pub      core.Publisher
}

func NewPresence() *Presence {
	return &Presence{
		sessions: newStripedMap[domain.SessionID, *presenceEntry](),
		users:    newStripedMap[domain.UserID, map[domain.SessionID]core.PeerSession](),
	}
}

// UsePublisher wires the fan-out used for peer_online / peer_offline.
func (p *Presence) UsePublisher(pub core.Publisher) { p.pub = pub }

// Register inserts or refreshes a session. Only the first session of a user
// announces the user as online. Returns false on refresh.
func (p *Presence) Register(sess core.PeerSession, cancel context.CancelFunc) bool {
	meta := sess.Meta()
	fresh := true
	p.sessions.Update(meta.ID, func(cur *presenceEntry, ok bool) (*presenceEntry, bool) {
		if ok {
			fresh = false
		}
		return &presenceEntry{Session: sess, Cancel: cancel}, true
	})

	p.users.Update(meta.User.ID, func(set map[domain.SessionID]core.PeerSession, ok bool) (map[domain.SessionID]core.PeerSession, bool) {
		if !ok {
			set = make(map[domain.SessionID]core.PeerSession)
		}
		first := len(set) == 0
		set[meta.ID] = sess
		if first && fresh {
			p.announce(core.EventPeerOnline, meta)
		}
		return set, true
	})

	if fresh {
		log.Info().Str("module", "app.presence").Str("sid", string(meta.ID)).Str("user", string(meta.User.ID)).Msg("registered session")
	} else {
		log.Debug().Str("module", "app.presence").Str("sid", string(meta.ID)).Msg("refreshed session")
	}
	return fresh
}

// Unregister removes a session. Safe to call more than once.
func (p *Presence) Unregister(sid domain.SessionID) (domain.Session, bool) {
	entry, ok := p.sessions.Delete(sid)
	if !ok {
		return domain.Session{}, false
	}
	meta := entry.Session.Meta()
	p.users.Update(meta.User.ID, func(set map[domain.SessionID]core.PeerSession, ok bool) (map[domain.SessionID]core.PeerSession, bool) {
		if !ok {
			return nil, false
		}
		delete(set, sid)
		if len(set) > 0 {
			return set, true
		}
		p.announce(core.EventPeerOffline, meta)
		return nil, false
	})
	log.Info().Str("module", "app.presence").Str("sid", string(sid)).Str("user", string(meta.User.ID)).Msg("unregistered session")
	return meta, true
}

func (p *Presence) announce(t core.EventType, meta domain.Session) {
	if p.pub == nil {
		return
	}
	user := meta.User.ID
	p.pub.Broadcast(core.Event{Type: t, Payload: core.PeerPayload{Peer: meta.Peer()}}, func(s domain.Session) bool {
		return s.User.ID != user
	})
}

func (p *Presence) Lookup(sid domain.SessionID) (core.PeerSession, bool) {
	if e, ok := p.sessions.Load(sid); ok {
		return e.Session, true
	}
	return nil, false
}

func (p *Presence) Online(user domain.UserID) bool {
	online := false
	p.users.View(user, func(set map[domain.SessionID]core.PeerSession, ok bool) {
		online = ok && len(set) > 0
	})
	return online
}

func (p *Presence) SessionsOf(user domain.UserID) []core.PeerSession {
	var out []core.PeerSession
	p.users.View(user, func(set map[domain.SessionID]core.PeerSession, ok bool) {
		for _, s := range set {
			out = append(out, s)
		}
	})
	return out
}

// Observers returns every connected session.
func (p *Presence) Observers() []core.PeerSession {
	entries := p.sessions.Values()
	out := make([]core.PeerSession, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Session)
	}
	return out
}

// ListOnline returns one peer per online user, excluding the caller.
func (p *Presence) ListOnline(excluding domain.UserID) []domain.Peer {
	seen := make(map[domain.UserID]domain.Peer)
	for _, e := range p.sessions.Values() {
		meta := e.Session.Meta()
		if meta.User.ID == excluding {
			continue
		}
		if prev, ok := seen[meta.User.ID]; ok && !meta.ConnectedAt.Before(prev.Since) {
			continue
		}
		seen[meta.User.ID] = meta.Peer()
	}
	out := make([]domain.Peer, 0, len(seen))
	for _, peer := range seen {
		out = append(out, peer)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// Cancel stops the connection bound to sid, if any.
func (p *Presence) Cancel(sid domain.SessionID) bool {
	e, ok := p.sessions.Load(sid)
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.presence").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func (p *Presence) Count() int { return p.sessions.Len() }
