package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/cardlobby/internal/core"
	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const DefaultInviteTTL = 30 * time.Second

// InviteRequest is one "invite peer X" action. TableID is optional; when it
// is empty or no longer a live waiting table, the batch's table is used or
// created from Settings.
type InviteRequest struct {
	InviterID   domain.UserID
	InviterName string
	InviteeID   domain.UserID
	TableID     domain.TableID
	Settings    domain.Settings
	// Batch groups invites that target the same not-yet-created table.
	// Empty means the inviter's default batch.
	Batch string
}

type InviteResult struct {
	TableID      domain.TableID      `json:"table_id"`
	InvitationID domain.InvitationID `json:"invitation_id"`
	// Delivered is false when the invitee was offline and the invite dropped.
	Delivered bool `json:"delivered"`
	Created   bool `json:"created"`
}

type RespondResult struct {
	Invitation domain.Invitation `json:"invitation"`
	Seat       *domain.Seat      `json:"seat,omitempty"`
}

type InvitationsConfig struct {
	TTL       time.Duration
	Retention time.Duration
	Limiter   *RateLimiter
}

type inviteEntry struct {
	mu    sync.Mutex
	inv   domain.Invitation
	timer *time.Timer
}

// Invitations owns invitation state and the per-inviter batch table. The
// batch table is what guarantees one created table per batch, however many
// invites race for it.
type Invitations struct {
	tables   *TableRegistry
	members  *Membership
	presence *Presence
	pub      core.Publisher
	limiter  *RateLimiter

	ttl       time.Duration
	retention time.Duration
	now       func() time.Time

	entries    *stripedMap[domain.InvitationID, *inviteEntry]
	batches    *stripedMap[string, domain.TableID]
	batchOwner *stripedMap[domain.TableID, string]
	inviters   keyedLocks
}

func NewInvitations(tables *TableRegistry, members *Membership, presence *Presence, pub core.Publisher, cfg InvitationsConfig) *Invitations {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultInviteTTL
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Minute
	}
	c := &Invitations{
		tables:     tables,
		members:    members,
		presence:   presence,
		pub:        pub,
		limiter:    cfg.Limiter,
		ttl:        cfg.TTL,
		retention:  cfg.Retention,
		now:        time.Now,
		entries:    newStripedMap[domain.InvitationID, *inviteEntry](),
		batches:    newStripedMap[string, domain.TableID](),
		batchOwner: newStripedMap[domain.TableID, string](),
	}
	tables.OnRemoved(c.onTableRemoved)
	tables.OnStatus(c.onTableStatus)
	return c
}

func batchKey(inviter domain.UserID, batch string) string {
	return string(inviter) + "\x00" + batch
}

// Invite never seats the inviter. Taking a seat is always a separate join.
func (c *Invitations) Invite(ctx context.Context, req InviteRequest) (InviteResult, error) {
	if req.InviteeID == "" || req.InviterID == "" {
		return InviteResult{}, domain.ErrInvalidRequest
	}
	if req.InviteeID == req.InviterID {
		return InviteResult{}, domain.ErrSelfInvite
	}
	if !c.limiter.Allow(req.InviterID) {
		return InviteResult{}, domain.ErrRateLimited
	}

	unlock := c.inviters.Lock(string(req.InviterID))
	table, created, err := c.resolveTable(req)
	unlock()
	if err != nil {
		log.Info().Err(err).Str("module", "app.invitations").Str("inviter", string(req.InviterID)).Msg("invite refused")
		return InviteResult{}, err
	}

	now := c.now()
	e := &inviteEntry{inv: domain.Invitation{
		ID:          domain.InvitationID(uuid.NewString()),
		InviterID:   req.InviterID,
		InviterName: req.InviterName,
		InviteeID:   req.InviteeID,
		TableID:     table.ID,
		Settings:    table.Settings,
		Batch:       req.Batch,
		Status:      domain.InvitationPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(c.ttl),
	}}
	res := InviteResult{TableID: table.ID, InvitationID: e.inv.ID, Created: created}
	logger := log.With().Str("module", "app.invitations").Str("invitation", string(e.inv.ID)).Str("table", string(table.ID)).Str("inviter", string(req.InviterID)).Str("invitee", string(req.InviteeID)).Logger()

	if !c.presence.Online(req.InviteeID) {
		e.mu.Lock()
		c.entries.Store(e.inv.ID, e)
		c.resolveLocked(e, domain.InvitationExpired)
		e.mu.Unlock()
		logger.Info().Msg("invitee offline, invitation dropped")
		return res, nil
	}

	e.mu.Lock()
	c.entries.Store(e.inv.ID, e)
	id := e.inv.ID
	e.timer = time.AfterFunc(c.ttl, func() { c.expire(id) })
	inv := e.inv
	e.mu.Unlock()

	res.Delivered = c.pub.SendToUser(req.InviteeID, core.Event{Type: core.EventInvitationReceived, Payload: core.InvitationPayload{Invitation: inv}}) > 0
	logger.Info().Bool("created", created).Bool("delivered", res.Delivered).Msg("invitation sent")
	return res, nil
}

// resolveTable runs under the inviter's lock.
func (c *Invitations) resolveTable(req InviteRequest) (domain.Table, bool, error) {
	if req.TableID != "" {
		if t, ok := c.tables.Snapshot(req.TableID); ok && t.Status == domain.StatusWaiting && t.VisibleTo(req.InviterID) {
			return t, false, nil
		}
	}
	key := batchKey(req.InviterID, req.Batch)
	if id, ok := c.batches.Load(key); ok {
		t, live := c.tables.Snapshot(id)
		switch {
		case live && t.Status == domain.StatusWaiting && c.sameTable(t, req.Settings):
			return t, false, nil
		case live && t.Status == domain.StatusWaiting:
			// new settings start a new table; the old one keeps its invitations
			log.Info().Str("module", "app.invitations").Str("inviter", string(req.InviterID)).Str("table", string(id)).Msg("batch settings changed")
		}
		c.forgetBatch(id)
	}
	t, err := c.tables.Create(req.InviterID, req.Settings)
	if err != nil {
		return domain.Table{}, false, err
	}
	c.batches.Store(key, t.ID)
	c.batchOwner.Store(t.ID, key)
	return t, true, nil
}

// sameTable reports whether a tracked table serves a request. A request
// without settings joins whatever table the batch already has.
func (c *Invitations) sameTable(t domain.Table, want domain.Settings) bool {
	if want.IsZero() {
		return true
	}
	return t.Settings.Matches(want.Normalize(c.tables.currency))
}

func (c *Invitations) forgetBatch(id domain.TableID) {
	key, ok := c.batchOwner.Delete(id)
	if !ok {
		return
	}
	c.batches.DeleteIf(key, func(cur domain.TableID) bool { return cur == id })
}

// Respond resolves an invitation on behalf of its invitee. An accept is
// only a seat once the join behind it succeeds; a failed join is returned
// as is.
func (c *Invitations) Respond(ctx context.Context, id domain.InvitationID, responder domain.UserID, response domain.Response, meta domain.SeatMeta) (RespondResult, error) {
	if !response.Valid() {
		return RespondResult{}, domain.ErrInvalidRequest
	}
	e, ok := c.entries.Load(id)
	if !ok {
		return RespondResult{}, domain.ErrInvitationNotFound
	}

	e.mu.Lock()
	if e.inv.InviteeID != responder {
		e.mu.Unlock()
		return RespondResult{}, domain.ErrNotInvitee
	}
	if e.inv.Resolved() {
		status := e.inv.Status
		e.mu.Unlock()
		if status == domain.InvitationExpired {
			return RespondResult{}, domain.ErrInvitationExpired
		}
		return RespondResult{}, domain.ErrInvitationAlreadyResolved
	}
	if !c.now().Before(e.inv.ExpiresAt) {
		c.resolveLocked(e, domain.InvitationExpired)
		inv := e.inv
		e.mu.Unlock()
		c.notifyResolved(inv, true)
		return RespondResult{}, domain.ErrInvitationExpired
	}
	status := domain.InvitationDeclined
	if response == domain.ResponseAccepted {
		status = domain.InvitationAccepted
	}
	c.resolveLocked(e, status)
	inv := e.inv
	e.mu.Unlock()

	c.notifyResolved(inv, false)
	log.Info().Str("module", "app.invitations").Str("invitation", string(inv.ID)).Str("status", string(inv.Status)).Msg("invitation resolved")
	if status == domain.InvitationDeclined {
		return RespondResult{Invitation: inv}, nil
	}

	seat, err := c.members.Join(ctx, JoinRequest{TableID: inv.TableID, User: responder, Meta: meta, Invited: true})
	if err != nil {
		return RespondResult{Invitation: inv}, err
	}
	return RespondResult{Invitation: inv, Seat: &seat}, nil
}

func (c *Invitations) expire(id domain.InvitationID) {
	e, ok := c.entries.Load(id)
	if !ok {
		return
	}
	e.mu.Lock()
	if e.inv.Resolved() {
		e.mu.Unlock()
		return
	}
	c.resolveLocked(e, domain.InvitationExpired)
	inv := e.inv
	e.mu.Unlock()
	c.notifyResolved(inv, true)
	log.Info().Str("module", "app.invitations").Str("invitation", string(id)).Msg("invitation expired")
}

// resolveLocked moves a pending entry to its final status and swaps the
// expiry timer for a prune timer.
func (c *Invitations) resolveLocked(e *inviteEntry, status domain.InvitationStatus) {
	e.inv.Status = status
	e.inv.ResolvedAt = c.now()
	if e.timer != nil {
		e.timer.Stop()
	}
	id := e.inv.ID
	e.timer = time.AfterFunc(c.retention, func() {
		c.entries.DeleteIf(id, func(cur *inviteEntry) bool { return cur == e })
	})
}

// notifyResolved always tells the inviter. The invitee hears about it only
// when they did not cause it.
func (c *Invitations) notifyResolved(inv domain.Invitation, toInvitee bool) {
	ev := core.Event{Type: core.EventInvitationResolved, Payload: core.InvitationPayload{Invitation: inv}}
	c.pub.SendToUser(inv.InviterID, ev)
	if toInvitee {
		c.pub.SendToUser(inv.InviteeID, ev)
	}
}

func (c *Invitations) onTableRemoved(t domain.Table) {
	c.forgetBatch(t.ID)
	for _, e := range c.entries.Values() {
		e.mu.Lock()
		if e.inv.TableID != t.ID || e.inv.Resolved() {
			e.mu.Unlock()
			continue
		}
		c.resolveLocked(e, domain.InvitationExpired)
		inv := e.inv
		e.mu.Unlock()
		c.notifyResolved(inv, true)
	}
}

func (c *Invitations) onTableStatus(t domain.Table) {
	if t.Status != domain.StatusWaiting {
		c.forgetBatch(t.ID)
	}
}

func (c *Invitations) Get(id domain.InvitationID) (domain.Invitation, bool) {
	e, ok := c.entries.Load(id)
	if !ok {
		return domain.Invitation{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inv, true
}

// HasPending reports whether any unanswered invitation targets the table.
func (c *Invitations) HasPending(id domain.TableID) bool {
	for _, e := range c.entries.Values() {
		e.mu.Lock()
		hit := e.inv.TableID == id && !e.inv.Resolved()
		e.mu.Unlock()
		if hit {
			return true
		}
	}
	return false
}

// PendingFor lists unanswered invitations addressed to user, oldest first.
func (c *Invitations) PendingFor(user domain.UserID) []domain.Invitation {
	out := []domain.Invitation{}
	for _, e := range c.entries.Values() {
		e.mu.Lock()
		if e.inv.InviteeID == user && !e.inv.Resolved() {
			out = append(out, e.inv)
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// BatchTable returns the table currently tracked for an inviter's batch.
func (c *Invitations) BatchTable(inviter domain.UserID, batch string) (domain.TableID, bool) {
	return c.batches.Load(batchKey(inviter, batch))
}

// Close stops every timer. Pending invitations stay pending.
func (c *Invitations) Close() {
	for _, e := range c.entries.Values() {
		e.mu.Lock()
		if e.timer != nil {
			e.timer.Stop()
		}
		e.mu.Unlock()
	}
}
