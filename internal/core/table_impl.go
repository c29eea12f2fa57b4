package core

import (
	"slices"
	"sync"
	"time"

	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/rs/zerolog/log"
)

// tableImpl is a threadsafe in-memory table.
// It never touches transport resources.
type tableImpl struct {
	mu sync.Mutex
	st TableState
}

func NewTableService(t domain.Table) TableService {
	t.Occupants = slices.Clone(t.Occupants)
	return &tableImpl{st: TableState{table: t}}
}

func (t *tableImpl) ID() domain.TableID { return t.st.table.ID }

func (t *tableImpl) Snapshot() domain.Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.Snapshot()
}

func (t *tableImpl) Exec(fn func(st *TableState) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(&t.st)
}

// TableState is the mutable state of a table. It is only reachable inside
// TableService.Exec and enforces the table invariants itself: capacity,
// contiguous positions and forward-only status.
type TableState struct {
	table   domain.Table
	removed bool
}

func (s *TableState) Snapshot() domain.Table {
	out := s.table
	out.Occupants = slices.Clone(s.table.Occupants)
	if out.Occupants == nil {
		out.Occupants = []domain.Occupant{}
	}
	return out
}

func (s *TableState) Status() domain.TableStatus { return s.table.Status }

func (s *TableState) Removed() bool { return s.removed }

func (s *TableState) Empty() bool { return len(s.table.Occupants) == 0 }

func (s *TableState) Occupant(user domain.UserID) (domain.Occupant, bool) {
	return s.table.Occupant(user)
}

// Seat appends user at the next free position.
func (s *TableState) Seat(user domain.UserID, meta domain.SeatMeta, at time.Time) (domain.Occupant, error) {
	if err := s.CanSeat(user); err != nil {
		return domain.Occupant{}, err
	}
	occ := domain.NewOccupant(user, meta, len(s.table.Occupants), at)
	s.table.Occupants = append(s.table.Occupants, occ)
	log.Debug().Str("module", "core.table").Str("table", string(s.table.ID)).Str("user", string(user)).Int("position", occ.Position).Msg("seated")
	return occ, nil
}

// CanSeat checks whether a new occupant would be accepted right now.
func (s *TableState) CanSeat(user domain.UserID) error {
	if s.removed {
		return domain.ErrTableNotFound
	}
	if _, ok := s.table.Occupant(user); ok {
		return domain.ErrTableNotJoinable
	}
	if s.table.Status != domain.StatusWaiting {
		return domain.ErrTableNotJoinable
	}
	if s.table.Full() {
		return domain.ErrTableFull
	}
	return nil
}

// Reattach points an existing occupant at a new session without changing occupancy.
func (s *TableState) Reattach(user domain.UserID, session domain.SessionID) (domain.Occupant, bool) {
	for i := range s.table.Occupants {
		if s.table.Occupants[i].UserID == user {
			if session != "" {
				s.table.Occupants[i].SessionID = session
			}
			return s.table.Occupants[i], true
		}
	}
	return domain.Occupant{}, false
}

// Unseat removes user and shifts later positions down by one.
func (s *TableState) Unseat(user domain.UserID) (domain.Occupant, bool) {
	idx := slices.IndexFunc(s.table.Occupants, func(o domain.Occupant) bool { return o.UserID == user })
	if idx < 0 {
		return domain.Occupant{}, false
	}
	occ := s.table.Occupants[idx]
	s.table.Occupants = slices.Delete(s.table.Occupants, idx, idx+1)
	for i := idx; i < len(s.table.Occupants); i++ {
		s.table.Occupants[i].Position = i
	}
	log.Debug().Str("module", "core.table").Str("table", string(s.table.ID)).Str("user", string(user)).Msg("unseated")
	return occ, true
}

func (s *TableState) Transition(to domain.TableStatus, at time.Time) error {
	if s.removed {
		return domain.ErrTableNotFound
	}
	if !s.table.Status.CanTransition(to) {
		return domain.ErrInvalidTransition
	}
	s.table.Status = to
	switch to {
	case domain.StatusInProgress:
		s.table.StartedAt = at
	case domain.StatusFinished:
		s.table.FinishedAt = at
	}
	log.Info().Str("module", "core.table").Str("table", string(s.table.ID)).Str("status", string(to)).Msg("status changed")
	return nil
}

// MarkRemoved is only allowed for empty or finished tables.
func (s *TableState) MarkRemoved() error {
	if s.removed {
		return domain.ErrTableNotFound
	}
	if len(s.table.Occupants) > 0 && s.table.Status != domain.StatusFinished {
		return domain.ErrTableNotRemovable
	}
	s.removed = true
	return nil
}
