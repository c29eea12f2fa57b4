package core

import "github.com/dkeye/cardlobby/internal/domain"

// PeerSession binds a domain.Session and its transport endpoint.
// This is what presence stores and fans out to.
type PeerSession interface {
	Meta() domain.Session
	Signal() SignalConnection
}

type peerSession struct {
	meta   domain.Session
	signal SignalConnection
}

func NewPeerSession(meta domain.Session, signal SignalConnection) PeerSession {
	return &peerSession{meta: meta, signal: signal}
}

func (p *peerSession) Meta() domain.Session     { return p.meta }
func (p *peerSession) Signal() SignalConnection { return p.signal }
