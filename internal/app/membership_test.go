package app

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/dkeye/cardlobby/internal/core"
	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/dkeye/cardlobby/internal/wallet/walletmock"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestJoinAssignsContiguousPositions(t *testing.T) {
	l := newLobby(t, lobbyOpts{})
	tbl := l.createTable(t, "alice", 10, 4)

	for i, u := range []domain.UserID{"alice", "bob", "carol"} {
		seat, err := l.join(u, tbl.ID)
		require.NoError(t, err)
		assert.Equal(t, i, seat.Position)
		assert.False(t, seat.Rejoined)
	}
	assert.Equal(t, []domain.UserID{"alice", "bob", "carol"}, l.occupants(t, tbl.ID))
}

func TestJoinFullTableReturnsTableFull(t *testing.T) {
	l := newLobby(t, lobbyOpts{})
	tbl := l.createTable(t, "alice", 10, 2)
	_, err := l.join("alice", tbl.ID)
	require.NoError(t, err)
	_, err = l.join("bob", tbl.ID)
	require.NoError(t, err)

	_, err = l.join("carol", tbl.ID)
	assert.ErrorIs(t, err, domain.ErrTableFull)
	assert.Equal(t, []domain.UserID{"alice", "bob"}, l.occupants(t, tbl.ID))
}

func TestConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	l := newLobby(t, lobbyOpts{})
	tbl := l.createTable(t, "host", 5, 4)

	var seated, full atomic.Int32
	var wg conc.WaitGroup
	for i := 0; i < 25; i++ {
		user := domain.UserID(fmt.Sprintf("user-%d", i))
		wg.Go(func() {
			_, err := l.join(user, tbl.ID)
			switch {
			case err == nil:
				seated.Add(1)
			case assert.ErrorIs(t, err, domain.ErrTableFull):
				full.Add(1)
			}
		})
	}
	wg.Wait()

	assert.EqualValues(t, 4, seated.Load())
	assert.EqualValues(t, 21, full.Load())
	snap, _ := l.tables.Snapshot(tbl.ID)
	require.Len(t, snap.Occupants, 4)
	for i, o := range snap.Occupants {
		assert.Equal(t, i, o.Position)
	}
}

func TestJoinUnknownTable(t *testing.T) {
	l := newLobby(t, lobbyOpts{})
	_, err := l.join("alice", "nope")
	assert.ErrorIs(t, err, domain.ErrTableNotFound)
}

func TestJoinAfterStartOnlyForOccupants(t *testing.T) {
	l := newLobby(t, lobbyOpts{})
	tbl := l.createTable(t, "alice", 10, 3)
	_, err := l.join("alice", tbl.ID)
	require.NoError(t, err)
	_, err = l.tables.Start(tbl.ID)
	require.NoError(t, err)

	_, err = l.join("bob", tbl.ID)
	assert.ErrorIs(t, err, domain.ErrTableNotJoinable)

	seat, err := l.join("alice", tbl.ID)
	require.NoError(t, err)
	assert.True(t, seat.Rejoined)
	assert.Len(t, l.occupants(t, tbl.ID), 1)
}

func TestRejoinFinishedTableLeavesOccupantAlone(t *testing.T) {
	l := newLobby(t, lobbyOpts{})
	tbl := l.createTable(t, "alice", 10, 2)
	_, err := l.members.Join(ctxBG, JoinRequest{TableID: tbl.ID, User: "alice", Meta: domain.SeatMeta{SessionID: "s1", Username: "alice"}})
	require.NoError(t, err)
	_, err = l.tables.Start(tbl.ID)
	require.NoError(t, err)
	_, err = l.tables.Finish(tbl.ID)
	require.NoError(t, err)

	_, err = l.members.Join(ctxBG, JoinRequest{TableID: tbl.ID, User: "alice", Meta: domain.SeatMeta{SessionID: "s2", Username: "alice"}})
	assert.ErrorIs(t, err, domain.ErrTableNotJoinable)

	snap, ok := l.tables.Snapshot(tbl.ID)
	require.True(t, ok)
	occ, ok := snap.Occupant("alice")
	require.True(t, ok)
	assert.Equal(t, domain.SessionID("s1"), occ.SessionID)
}

func TestRemovingFinishedTableSettlesHolds(t *testing.T) {
	l := newLobby(t, lobbyOpts{})
	tbl := l.createTable(t, "alice", 50, 3)
	for _, u := range []domain.UserID{"alice", "bob", "carol"} {
		_, err := l.join(u, tbl.ID)
		require.NoError(t, err)
	}
	_, err := l.tables.Start(tbl.ID)
	require.NoError(t, err)
	// leaving a running game keeps the stake in the pot
	_, err = l.members.Leave(ctxBG, tbl.ID, "carol")
	require.NoError(t, err)
	_, err = l.tables.Finish(tbl.ID)
	require.NoError(t, err)

	require.NoError(t, l.tables.Remove(tbl.ID))
	for _, u := range []domain.UserID{"alice", "bob", "carol"} {
		_, held := l.ledger.Held(u, tbl.ID)
		assert.False(t, held, "hold of %s", u)
		assert.True(t, l.ledger.Balance(u).Equal(decimal.NewFromInt(950)), "balance of %s", u)
	}
}

func TestFinishedTableSettlesThroughEscrow(t *testing.T) {
	ctrl := gomock.NewController(t)
	escrow := walletmock.NewMockEscrow(ctrl)
	l := newLobby(t, lobbyOpts{escrow: escrow})
	tbl := l.createTable(t, "alice", 20, 2)

	escrow.EXPECT().Reserve(gomock.Any(), domain.UserID("alice"), tbl.ID, gomock.Any()).Return(nil)
	escrow.EXPECT().Settle(gomock.Any(), tbl.ID).Return(nil).Times(1)

	_, err := l.join("alice", tbl.ID)
	require.NoError(t, err)
	_, err = l.tables.Start(tbl.ID)
	require.NoError(t, err)
	_, err = l.tables.Finish(tbl.ID)
	require.NoError(t, err)
	require.NoError(t, l.tables.Remove(tbl.ID))
}

func TestJoinPrivateTableNeedsInvite(t *testing.T) {
	l := newLobby(t, lobbyOpts{})
	s := settings(10, 3)
	s.Visibility = domain.Private
	tbl, err := l.tables.Create("alice", s)
	require.NoError(t, err)

	_, err = l.join("bob", tbl.ID)
	assert.ErrorIs(t, err, domain.ErrTableNotFound)

	_, err = l.join("alice", tbl.ID)
	require.NoError(t, err)

	_, err = l.members.Join(ctxBG, JoinRequest{TableID: tbl.ID, User: "bob", Invited: true})
	require.NoError(t, err)
}

func TestOneLiveSeatPerUser(t *testing.T) {
	l := newLobby(t, lobbyOpts{})
	t1 := l.createTable(t, "alice", 10, 3)
	t2 := l.createTable(t, "bob", 10, 3)
	_, err := l.join("carol", t1.ID)
	require.NoError(t, err)

	_, err = l.join("carol", t2.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadySeated)

	_, err = l.members.Leave(ctxBG, t1.ID, "carol")
	require.NoError(t, err)
	_, err = l.join("carol", t2.ID)
	require.NoError(t, err)
	id, ok := l.members.SeatOf("carol")
	require.True(t, ok)
	assert.Equal(t, t2.ID, id)
}

func TestLeaveIsIdempotent(t *testing.T) {
	l := newLobby(t, lobbyOpts{})
	tbl := l.createTable(t, "alice", 100, 3)
	_, err := l.join("alice", tbl.ID)
	require.NoError(t, err)
	_, err = l.join("bob", tbl.ID)
	require.NoError(t, err)
	assert.True(t, l.ledger.Balance("bob").Equal(decimal.NewFromInt(900)))

	left, err := l.members.Leave(ctxBG, tbl.ID, "bob")
	require.NoError(t, err)
	assert.True(t, left)
	left, err = l.members.Leave(ctxBG, tbl.ID, "bob")
	require.NoError(t, err)
	assert.False(t, left)

	assert.Equal(t, []domain.UserID{"alice"}, l.occupants(t, tbl.ID))
	assert.True(t, l.ledger.Balance("bob").Equal(decimal.NewFromInt(1000)))
	_, seated := l.members.SeatOf("bob")
	assert.False(t, seated)
}

func TestLastLeaveRemovesWaitingTable(t *testing.T) {
	l := newLobby(t, lobbyOpts{})
	watcher, _ := l.connect(t, "watcher")
	tbl := l.createTable(t, "alice", 10, 2)
	_, err := l.join("alice", tbl.ID)
	require.NoError(t, err)

	left, err := l.members.Leave(ctxBG, tbl.ID, "alice")
	require.NoError(t, err)
	assert.True(t, left)

	_, ok := l.tables.Get(tbl.ID)
	assert.False(t, ok)
	for _, s := range l.tables.ListActive(core.TableFilter{}) {
		assert.NotEqual(t, tbl.ID, s.ID)
	}
	assert.Equal(t, []core.EventType{
		core.EventTableCreated,
		core.EventTableUpdated,
		core.EventTableUpdated,
		core.EventTableRemoved,
	}, watcher.tableEvents(tbl.ID))

	left, err = l.members.Leave(ctxBG, tbl.ID, "alice")
	require.NoError(t, err)
	assert.False(t, left)
}

func TestLeaveInProgressKeepsTable(t *testing.T) {
	l := newLobby(t, lobbyOpts{})
	tbl := l.createTable(t, "alice", 10, 2)
	_, err := l.join("alice", tbl.ID)
	require.NoError(t, err)
	_, err = l.tables.Start(tbl.ID)
	require.NoError(t, err)

	left, err := l.members.Leave(ctxBG, tbl.ID, "alice")
	require.NoError(t, err)
	assert.True(t, left)
	_, ok := l.tables.Get(tbl.ID)
	assert.True(t, ok)
}

func TestEvictIfWaiting(t *testing.T) {
	l := newLobby(t, lobbyOpts{})
	waiting := l.createTable(t, "alice", 10, 3)
	started := l.createTable(t, "bob", 10, 3)
	_, err := l.join("alice", waiting.ID)
	require.NoError(t, err)
	_, err = l.join("carol", waiting.ID)
	require.NoError(t, err)
	_, err = l.join("bob", started.ID)
	require.NoError(t, err)
	_, err = l.tables.Start(started.ID)
	require.NoError(t, err)

	id, left := l.members.EvictIfWaiting(ctxBG, "carol")
	assert.True(t, left)
	assert.Equal(t, waiting.ID, id)

	_, left = l.members.EvictIfWaiting(ctxBG, "bob")
	assert.False(t, left)
	assert.Equal(t, []domain.UserID{"bob"}, l.occupants(t, started.ID))

	_, left = l.members.EvictIfWaiting(ctxBG, "nobody")
	assert.False(t, left)
}

func TestJoinWithEscrow(t *testing.T) {
	ctrl := gomock.NewController(t)
	escrow := walletmock.NewMockEscrow(ctrl)
	l := newLobby(t, lobbyOpts{escrow: escrow})
	tbl := l.createTable(t, "alice", 50, 4)
	fee := decimal.NewFromInt(50)

	escrow.EXPECT().Reserve(gomock.Any(), domain.UserID("alice"), tbl.ID, fee).Return(nil)
	escrow.EXPECT().Reserve(gomock.Any(), domain.UserID("bob"), tbl.ID, fee).
		Return(fmt.Errorf("%w: balance 10", domain.ErrInsufficientFunds))
	escrow.EXPECT().Release(gomock.Any(), domain.UserID("alice"), tbl.ID).Return(nil).Times(1)

	_, err := l.join("alice", tbl.ID)
	require.NoError(t, err)

	_, err = l.join("bob", tbl.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, []domain.UserID{"alice"}, l.occupants(t, tbl.ID))

	// rejoin does not reserve again
	_, err = l.join("alice", tbl.ID)
	require.NoError(t, err)

	_, err = l.members.Leave(ctxBG, tbl.ID, "alice")
	require.NoError(t, err)
	_, err = l.members.Leave(ctxBG, tbl.ID, "alice")
	require.NoError(t, err)
}
