package app

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/rs/zerolog/log"
)

type ReaperConfig struct {
	Interval          time.Duration
	FinishedRetention time.Duration
	// EmptyTableTTL bounds how long a table nobody ever sat at may wait for
	// its invitees.
	EmptyTableTTL time.Duration
}

// Reaper periodically removes finished tables past retention and empty
// waiting tables nobody is invited to anymore.
type Reaper struct {
	tables  *TableRegistry
	invites *Invitations
	cfg     ReaperConfig
	now     func() time.Time
}

func NewReaper(tables *TableRegistry, invites *Invitations, cfg ReaperConfig) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &Reaper{tables: tables, invites: invites, cfg: cfg, now: time.Now}
}

func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	log.Info().Str("module", "app.reaper").Dur("interval", r.cfg.Interval).Msg("reaper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.reaper").Msg("reaper stopped")
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep runs one pass and returns how many tables it removed. It also
// forgets invite rate windows that have gone quiet.
func (r *Reaper) Sweep() int {
	now := r.now()
	removed := 0
	for _, t := range r.tables.All() {
		if !r.expired(t, now) {
			continue
		}
		err := r.tables.Remove(t.ID)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, domain.ErrTableNotFound), errors.Is(err, domain.ErrTableNotRemovable):
			// someone got there first
		default:
			log.Error().Err(err).Str("module", "app.reaper").Str("table", string(t.ID)).Msg("remove table")
		}
	}
	if removed > 0 {
		log.Info().Str("module", "app.reaper").Int("removed", removed).Msg("swept tables")
	}
	if r.invites != nil {
		if idle := r.invites.limiter.Sweep(); idle > 0 {
			log.Debug().Str("module", "app.reaper").Int("users", idle).Msg("dropped idle rate limit windows")
		}
	}
	return removed
}

func (r *Reaper) expired(t domain.Table, now time.Time) bool {
	switch t.Status {
	case domain.StatusFinished:
		return now.Sub(t.FinishedAt) >= r.cfg.FinishedRetention
	case domain.StatusWaiting:
		if t.Occupancy() > 0 || r.cfg.EmptyTableTTL <= 0 {
			return false
		}
		if now.Sub(t.CreatedAt) < r.cfg.EmptyTableTTL {
			return false
		}
		return r.invites == nil || !r.invites.HasPending(t.ID)
	}
	return false
}
