package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/cardlobby/internal/core"
	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/dkeye/cardlobby/internal/wallet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var ctxBG = context.Background()

// fakeConn records every frame offered to it.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) setFull(full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.full = full
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type received struct {
	Type    core.EventType  `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (c *fakeConn) events() []received {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]received, 0, len(c.frames))
	for _, f := range c.frames {
		var r received
		if err := json.Unmarshal(f, &r); err == nil {
			out = append(out, r)
		}
	}
	return out
}

func (c *fakeConn) types() []core.EventType {
	var out []core.EventType
	for _, r := range c.events() {
		out = append(out, r.Type)
	}
	return out
}

func (c *fakeConn) invitations(t core.EventType) []domain.Invitation {
	var out []domain.Invitation
	for _, r := range c.events() {
		if r.Type != t {
			continue
		}
		var p core.InvitationPayload
		if err := json.Unmarshal(r.Payload, &p); err == nil {
			out = append(out, p.Invitation)
		}
	}
	return out
}

func (c *fakeConn) tableEvents(id domain.TableID) []core.EventType {
	var out []core.EventType
	for _, r := range c.events() {
		switch r.Type {
		case core.EventTableCreated, core.EventTableUpdated, core.EventTableRemoved:
		default:
			continue
		}
		var p core.TablePayload
		if err := json.Unmarshal(r.Payload, &p); err == nil && p.Table.ID == id {
			out = append(out, r.Type)
		}
	}
	return out
}

type lobby struct {
	presence *Presence
	fanout   *Fanout
	tables   *TableRegistry
	members  *Membership
	invites  *Invitations
	ledger   *wallet.Ledger
}

type lobbyOpts struct {
	ttl     time.Duration
	escrow  wallet.Escrow
	limiter *RateLimiter
	policy  Policy
}

func newLobby(t *testing.T, opts lobbyOpts) *lobby {
	t.Helper()
	l := &lobby{ledger: wallet.NewLedger(decimal.NewFromInt(1000))}
	escrow := opts.escrow
	if escrow == nil {
		escrow = l.ledger
	}
	l.presence = NewPresence()
	l.fanout = NewFanout(l.presence, opts.policy)
	l.presence.UsePublisher(l.fanout)
	l.tables = NewTableRegistry(l.fanout, "USD")
	l.members = NewMembership(l.tables, escrow)
	l.invites = NewInvitations(l.tables, l.members, l.presence, l.fanout, InvitationsConfig{
		TTL:       opts.ttl,
		Retention: time.Minute,
		Limiter:   opts.limiter,
	})
	t.Cleanup(l.invites.Close)
	return l
}

func (l *lobby) connect(t *testing.T, user domain.UserID) (*fakeConn, core.PeerSession) {
	t.Helper()
	conn := &fakeConn{}
	u, err := domain.NewUser(string(user), string(user), "")
	require.NoError(t, err)
	sess := core.NewPeerSession(domain.NewSession(domain.SessionID(uuid.NewString()), *u, time.Now()), conn)
	l.presence.Register(sess, nil)
	return conn, sess
}

func (l *lobby) createTable(t *testing.T, creator domain.UserID, fee int64, max int) domain.Table {
	t.Helper()
	tbl, err := l.tables.Create(creator, settings(fee, max))
	require.NoError(t, err)
	return tbl
}

func (l *lobby) join(user domain.UserID, id domain.TableID) (domain.Seat, error) {
	return l.members.Join(ctxBG, JoinRequest{TableID: id, User: user, Meta: domain.SeatMeta{Username: string(user)}})
}

func (l *lobby) occupants(t *testing.T, id domain.TableID) []domain.UserID {
	t.Helper()
	tbl, ok := l.tables.Snapshot(id)
	require.True(t, ok, "table %s should exist", id)
	out := make([]domain.UserID, 0, len(tbl.Occupants))
	for _, o := range tbl.Occupants {
		out = append(out, o.UserID)
	}
	return out
}

func settings(fee int64, max int) domain.Settings {
	return domain.Settings{EntryFee: decimal.NewFromInt(fee), MaxOccupancy: max}
}
