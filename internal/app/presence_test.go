package app

import (
	"testing"
	"time"

	"github.com/dkeye/cardlobby/internal/core"
	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func count(types []core.EventType, want core.EventType) int {
	n := 0
	for _, t := range types {
		if t == want {
			n++
		}
	}
	return n
}

func TestPresenceAnnouncesFirstAndLastSession(t *testing.T) {
	l := newLobby(t, lobbyOpts{})
	watcher, _ := l.connect(t, "watcher")
	self, first := l.connect(t, "alice")
	_, second := l.connect(t, "alice")

	assert.Equal(t, 1, count(watcher.types(), core.EventPeerOnline))
	assert.Equal(t, 0, count(self.types(), core.EventPeerOnline), "no echo to the user itself")

	_, ok := l.presence.Unregister(first.Meta().ID)
	require.True(t, ok)
	assert.Equal(t, 0, count(watcher.types(), core.EventPeerOffline))
	assert.True(t, l.presence.Online("alice"))

	_, ok = l.presence.Unregister(second.Meta().ID)
	require.True(t, ok)
	_, ok = l.presence.Unregister(second.Meta().ID)
	assert.False(t, ok)
	assert.Equal(t, 1, count(watcher.types(), core.EventPeerOffline))
	assert.False(t, l.presence.Online("alice"))
}

func TestPresenceRegisterIsIdempotent(t *testing.T) {
	l := newLobby(t, lobbyOpts{})
	watcher, _ := l.connect(t, "watcher")
	_, sess := l.connect(t, "alice")

	assert.False(t, l.presence.Register(sess, nil))
	assert.Equal(t, 1, count(watcher.types(), core.EventPeerOnline))
	assert.Equal(t, 2, l.presence.Count())
}

func TestListOnline(t *testing.T) {
	l := newLobby(t, lobbyOpts{})
	l.connect(t, "carol")
	l.connect(t, "alice")
	l.connect(t, "bob")
	l.connect(t, "bob")

	peers := l.presence.ListOnline("alice")
	require.Len(t, peers, 2)
	assert.Equal(t, domain.UserID("bob"), peers[0].UserID)
	assert.Equal(t, domain.UserID("carol"), peers[1].UserID)
}

func TestPresenceCancel(t *testing.T) {
	p := NewPresence()
	canceled := false
	u, err := domain.NewUser("alice", "Alice", "")
	require.NoError(t, err)
	sess := core.NewPeerSession(domain.NewSession("s1", *u, time.Now()), &fakeConn{})
	p.Register(sess, func() { canceled = true })

	assert.True(t, p.Cancel("s1"))
	assert.True(t, canceled)
	assert.False(t, p.Cancel("s2"))
}
