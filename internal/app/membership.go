package app

import (
	"context"
	"time"

	"github.com/dkeye/cardlobby/internal/core"
	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/dkeye/cardlobby/internal/wallet"
	"github.com/rs/zerolog/log"
)

// JoinRequest asks for a seat. Invited is set when the join comes from an
// accepted invitation, which is what lets a user into a private table.
type JoinRequest struct {
	TableID domain.TableID
	User    domain.UserID
	Meta    domain.SeatMeta
	Invited bool
}

// Membership is the only writer of occupant lists. It keeps a server-side
// index of where each user sits so reconnects never trust client state.
type Membership struct {
	tables *TableRegistry
	wallet wallet.Escrow
	seats  *stripedMap[domain.UserID, domain.TableID]
	users  keyedLocks
	now    func() time.Time
}

func NewMembership(tables *TableRegistry, escrow wallet.Escrow) *Membership {
	m := &Membership{
		tables: tables,
		wallet: escrow,
		seats:  newStripedMap[domain.UserID, domain.TableID](),
		now:    time.Now,
	}
	tables.OnRemoved(m.forgetTable)
	return m
}

// Join seats req.User or reattaches them if they already hold a seat there.
func (m *Membership) Join(ctx context.Context, req JoinRequest) (domain.Seat, error) {
	unlock := m.users.Lock(string(req.User))
	defer unlock()

	if cur, ok := m.seats.Load(req.User); ok && cur != req.TableID {
		if m.holdsLiveSeat(cur, req.User) {
			return domain.Seat{}, domain.ErrAlreadySeated
		}
		m.seats.DeleteIf(req.User, func(id domain.TableID) bool { return id == cur })
	}

	svc, ok := m.tables.Get(req.TableID)
	if !ok {
		return domain.Seat{}, domain.ErrTableNotFound
	}

	var seat domain.Seat
	err := svc.Exec(func(st *core.TableState) error {
		if st.Removed() {
			return domain.ErrTableNotFound
		}
		before := st.Snapshot()

		if _, ok := st.Occupant(req.User); ok {
			if before.Status == domain.StatusFinished {
				return domain.ErrTableNotJoinable
			}
			occ, _ := st.Reattach(req.User, req.Meta.SessionID)
			m.seats.Store(req.User, req.TableID)
			seat = domain.Seat{TableID: req.TableID, Position: occ.Position, Rejoined: true}
			return nil
		}

		if before.Settings.Visibility == domain.Private && !req.Invited && before.CreatorID != req.User {
			return domain.ErrTableNotFound
		}
		if err := st.CanSeat(req.User); err != nil {
			return err
		}
		if m.wallet != nil {
			if err := m.wallet.Reserve(ctx, req.User, req.TableID, before.Settings.EntryFee); err != nil {
				return err
			}
		}
		occ, err := st.Seat(req.User, req.Meta, m.now())
		if err != nil {
			m.release(ctx, req.User, req.TableID)
			return err
		}
		m.seats.Store(req.User, req.TableID)
		m.tables.UpdateOccupancy(before, st.Snapshot())
		seat = domain.Seat{TableID: req.TableID, Position: occ.Position}
		return nil
	})
	if err != nil {
		log.Info().Err(err).Str("module", "app.membership").Str("table", string(req.TableID)).Str("user", string(req.User)).Msg("join refused")
		return domain.Seat{}, err
	}
	log.Info().Str("module", "app.membership").Str("table", string(req.TableID)).Str("user", string(req.User)).Int("position", seat.Position).Bool("rejoined", seat.Rejoined).Msg("joined")
	return seat, nil
}

// Leave frees user's seat. It reports whether a seat was actually freed, so
// a second call is a no-op. An emptied waiting table is removed.
func (m *Membership) Leave(ctx context.Context, tableID domain.TableID, user domain.UserID) (bool, error) {
	unlock := m.users.Lock(string(user))
	defer unlock()
	return m.leaveLocked(ctx, tableID, user, false)
}

// EvictIfWaiting frees the user's seat only while the table has not started.
// Used when a disconnected user does not come back in time.
func (m *Membership) EvictIfWaiting(ctx context.Context, user domain.UserID) (domain.TableID, bool) {
	unlock := m.users.Lock(string(user))
	defer unlock()
	tableID, ok := m.seats.Load(user)
	if !ok {
		return "", false
	}
	left, err := m.leaveLocked(ctx, tableID, user, true)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.membership").Str("table", string(tableID)).Str("user", string(user)).Msg("evict failed")
		return tableID, false
	}
	return tableID, left
}

func (m *Membership) leaveLocked(ctx context.Context, tableID domain.TableID, user domain.UserID, onlyWaiting bool) (bool, error) {
	atTable := func(id domain.TableID) bool { return id == tableID }
	svc, ok := m.tables.Get(tableID)
	if !ok {
		m.seats.DeleteIf(user, atTable)
		return false, nil
	}

	var (
		left    bool
		removed bool
		gone    domain.Table
	)
	err := svc.Exec(func(st *core.TableState) error {
		if st.Removed() {
			return nil
		}
		before := st.Snapshot()
		if onlyWaiting && before.Status != domain.StatusWaiting {
			return nil
		}
		if _, ok := st.Unseat(user); !ok {
			return nil
		}
		left = true
		m.seats.DeleteIf(user, atTable)
		if before.Status == domain.StatusWaiting {
			m.release(ctx, user, tableID)
		}
		m.tables.UpdateOccupancy(before, st.Snapshot())

		if st.Empty() && st.Status() == domain.StatusWaiting {
			t, err := m.tables.removeLocked(st)
			if err != nil {
				return err
			}
			gone, removed = t, true
		}
		return nil
	})
	if removed {
		m.tables.fireRemoved(gone)
	}
	if err != nil {
		return left, err
	}
	if left {
		log.Info().Str("module", "app.membership").Str("table", string(tableID)).Str("user", string(user)).Bool("table_removed", removed).Msg("left")
	}
	return left, nil
}

// SeatOf returns the table the user currently sits at, as known server-side.
func (m *Membership) SeatOf(user domain.UserID) (domain.TableID, bool) {
	return m.seats.Load(user)
}

func (m *Membership) holdsLiveSeat(id domain.TableID, user domain.UserID) bool {
	t, ok := m.tables.Snapshot(id)
	if !ok || t.Status == domain.StatusFinished {
		return false
	}
	_, seated := t.Occupant(user)
	return seated
}

func (m *Membership) release(ctx context.Context, user domain.UserID, tableID domain.TableID) {
	if m.wallet == nil {
		return
	}
	if err := m.wallet.Release(ctx, user, tableID); err != nil {
		log.Error().Err(err).Str("module", "app.membership").Str("table", string(tableID)).Str("user", string(user)).Msg("release hold")
	}
}

// forgetTable runs after a table is removed. Waiting tables release holds
// seat by seat, so only a finished table can still carry any.
func (m *Membership) forgetTable(t domain.Table) {
	for _, o := range t.Occupants {
		m.seats.DeleteIf(o.UserID, func(id domain.TableID) bool { return id == t.ID })
	}
	if t.Status != domain.StatusFinished || m.wallet == nil {
		return
	}
	if err := m.wallet.Settle(context.Background(), t.ID); err != nil {
		log.Error().Err(err).Str("module", "app.membership").Str("table", string(t.ID)).Msg("settle holds")
	}
}
