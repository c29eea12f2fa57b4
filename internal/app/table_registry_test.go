package app

import (
	"testing"
	"time"

	"github.com/dkeye/cardlobby/internal/core"
	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateValidatesAndNeverDeduplicates(t *testing.T) {
	r := NewTableRegistry(nil, "USD")

	_, err := r.Create("alice", settings(0, 4))
	assert.ErrorIs(t, err, domain.ErrInvalidSettings)
	_, err = r.Create("alice", settings(10, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidSettings)

	a, err := r.Create("alice", settings(10, 4))
	require.NoError(t, err)
	b, err := r.Create("alice", settings(10, 4))
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, r.All(), 2)

	assert.Equal(t, domain.StatusWaiting, a.Status)
	assert.Empty(t, a.Occupants)
	assert.Equal(t, "USD", a.Settings.Currency)
	assert.Equal(t, "Table 10", a.Settings.Name)
}

func TestStatusSignals(t *testing.T) {
	r := NewTableRegistry(nil, "USD")
	tbl, err := r.Create("alice", settings(10, 4))
	require.NoError(t, err)

	var seen []domain.TableStatus
	r.OnStatus(func(t domain.Table) { seen = append(seen, t.Status) })

	_, err = r.Finish(tbl.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = r.Start(tbl.ID)
	require.NoError(t, err)
	_, err = r.Start(tbl.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	done, err := r.Finish(tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, done.Status)

	_, err = r.Start("missing")
	assert.ErrorIs(t, err, domain.ErrTableNotFound)
	assert.Equal(t, []domain.TableStatus{domain.StatusInProgress, domain.StatusFinished}, seen)
}

func TestRemoveRules(t *testing.T) {
	l := newLobby(t, lobbyOpts{})
	tbl := l.createTable(t, "alice", 10, 2)
	_, err := l.join("alice", tbl.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, l.tables.Remove(tbl.ID), domain.ErrTableNotRemovable)

	_, err = l.tables.Start(tbl.ID)
	require.NoError(t, err)
	_, err = l.tables.Finish(tbl.ID)
	require.NoError(t, err)
	require.NoError(t, l.tables.Remove(tbl.ID))
	assert.ErrorIs(t, l.tables.Remove(tbl.ID), domain.ErrTableNotFound)

	_, seated := l.members.SeatOf("alice")
	assert.False(t, seated)
}

func TestFilterTables(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id string, fee int64, occ int, status domain.TableStatus, vis domain.Visibility, network string, age int) domain.Table {
		tbl := domain.Table{
			ID:        domain.TableID(id),
			Settings:  domain.Settings{EntryFee: decimal.NewFromInt(fee), MaxOccupancy: 6, Visibility: vis, Network: network},
			CreatorID: "owner",
			Status:    status,
			CreatedAt: base.Add(time.Duration(age) * time.Minute),
		}
		for i := 0; i < occ; i++ {
			tbl.Occupants = append(tbl.Occupants, domain.Occupant{UserID: domain.UserID(string(rune('a' + i))), Position: i})
		}
		return tbl
	}
	tables := []domain.Table{
		mk("t-1", 50, 2, domain.StatusWaiting, domain.Public, "mainnet", 3),
		mk("t-2", 10, 1, domain.StatusInProgress, domain.Public, "testnet", 1),
		mk("t-3", 100, 3, domain.StatusWaiting, domain.Public, "mainnet", 2),
		mk("t-4", 25, 0, domain.StatusWaiting, domain.Private, "mainnet", 0),
	}
	ids := func(rows []domain.TableSummary) []domain.TableID {
		out := make([]domain.TableID, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.ID)
		}
		return out
	}
	lo, hi := decimal.NewFromInt(20), decimal.NewFromInt(60)

	tests := []struct {
		name   string
		filter core.TableFilter
		want   []domain.TableID
	}{
		{"default hides private, oldest first", core.TableFilter{Viewer: "x"}, []domain.TableID{"t-2", "t-3", "t-1"}},
		{"owner sees private", core.TableFilter{Viewer: "owner"}, []domain.TableID{"t-4", "t-2", "t-3", "t-1"}},
		{"status", core.TableFilter{Statuses: []domain.TableStatus{domain.StatusInProgress}}, []domain.TableID{"t-2"}},
		{"network", core.TableFilter{Network: "MainNet"}, []domain.TableID{"t-3", "t-1"}},
		{"fee range", core.TableFilter{Viewer: "owner", MinFee: &lo, MaxFee: &hi}, []domain.TableID{"t-4", "t-1"}},
		{"query fee", core.TableFilter{Query: "10"}, []domain.TableID{"t-2", "t-3"}},
		{"query id", core.TableFilter{Query: "T-3"}, []domain.TableID{"t-3"}},
		{"sort fee desc", core.TableFilter{Sort: core.SortFee, Desc: true}, []domain.TableID{"t-3", "t-1", "t-2"}},
		{"sort occupancy", core.TableFilter{Sort: core.SortOccupancy}, []domain.TableID{"t-2", "t-1", "t-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(FilterTables(tables, tt.filter)))
		})
	}
}
