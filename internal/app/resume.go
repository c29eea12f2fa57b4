package app

import (
	"github.com/dkeye/cardlobby/internal/core"
	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/rs/zerolog/log"
)

// Resumer reconciles a reconnecting session with the seat the server
// remembers for its user. The client's own table reference is only used to
// decide whether the client must drop it.
type Resumer struct {
	tables  *TableRegistry
	members *Membership
}

func NewResumer(tables *TableRegistry, members *Membership) *Resumer {
	return &Resumer{tables: tables, members: members}
}

// Resume never joins and never changes occupancy. It only points the
// existing occupant record at the new session.
func (r *Resumer) Resume(user domain.UserID, session domain.SessionID, claimed domain.TableID) core.ResumePayload {
	logger := log.With().Str("module", "app.resume").Str("user", string(user)).Str("sid", string(session)).Logger()
	out := core.ResumePayload{}

	id, ok := r.members.SeatOf(user)
	if ok {
		if svc, found := r.tables.Get(id); found {
			_ = svc.Exec(func(st *core.TableState) error {
				if st.Removed() {
					return nil
				}
				occ, seated := st.Reattach(user, session)
				if !seated {
					return nil
				}
				summary := st.Snapshot().Summary()
				out.Resumed = true
				out.Table = &summary
				out.Position = occ.Position
				return nil
			})
		}
	}

	if claimed != "" && (!out.Resumed || out.Table.ID != claimed) {
		out.ClearRef = true
	}
	if out.Resumed {
		logger.Info().Str("table", string(out.Table.ID)).Int("position", out.Position).Msg("resumed seat")
	} else {
		logger.Debug().Bool("clear_ref", out.ClearRef).Msg("nothing to resume")
	}
	return out
}
