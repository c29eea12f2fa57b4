// Package orch wires the lobby components together and is the single entry
// point the transports talk to.
package orch

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/cardlobby/internal/app"
	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/dkeye/cardlobby/internal/wallet"
)

type Options struct {
	Escrow   wallet.Escrow
	Policy   app.Policy
	Currency string

	InviteTTL       time.Duration
	InviteRetention time.Duration
	InviteLimit     int
	InviteInterval  time.Duration

	// ResumeGrace is how long a fully disconnected user keeps a seat at a
	// waiting table. Zero or less keeps it until they leave.
	ResumeGrace time.Duration
	Reaper      app.ReaperConfig
}

type Orchestrator struct {
	Presence *app.Presence
	Fanout   *app.Fanout
	Tables   *app.TableRegistry
	Members  *app.Membership
	Invites  *app.Invitations
	Resumer  *app.Resumer
	Reaper   *app.Reaper

	grace time.Duration

	// evicting holds pending grace timers; connecting counts Connect calls
	// in flight per user. Both are guarded by evictMu.
	evictMu    sync.Mutex
	evicting   map[domain.UserID]*time.Timer
	connecting map[domain.UserID]int
}

func New(opts Options) *Orchestrator {
	presence := app.NewPresence()
	fanout := app.NewFanout(presence, opts.Policy)
	presence.UsePublisher(fanout)

	tables := app.NewTableRegistry(fanout, opts.Currency)
	members := app.NewMembership(tables, opts.Escrow)
	invites := app.NewInvitations(tables, members, presence, fanout, app.InvitationsConfig{
		TTL:       opts.InviteTTL,
		Retention: opts.InviteRetention,
		Limiter:   app.NewRateLimiter(opts.InviteLimit, opts.InviteInterval),
	})

	return &Orchestrator{
		Presence:   presence,
		Fanout:     fanout,
		Tables:     tables,
		Members:    members,
		Invites:    invites,
		Resumer:    app.NewResumer(tables, members),
		Reaper:     app.NewReaper(tables, invites, opts.Reaper),
		grace:      opts.ResumeGrace,
		evicting:   make(map[domain.UserID]*time.Timer),
		connecting: make(map[domain.UserID]int),
	}
}

// Run drives the background sweeper until ctx ends.
func (o *Orchestrator) Run(ctx context.Context) error {
	return o.Reaper.Run(ctx)
}

// Close stops every timer the lobby owns.
func (o *Orchestrator) Close() {
	o.Invites.Close()
	o.evictMu.Lock()
	defer o.evictMu.Unlock()
	for user, t := range o.evicting {
		t.Stop()
		delete(o.evicting, user)
	}
}
