package app

import (
	"errors"

	"github.com/dkeye/cardlobby/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickSession
)

// Policy decides what happens to a session that could not take a frame.
type Policy interface {
	OnBackPressure(sess core.PeerSession, err error) BackpressureAction
}

// SimplePolicy drops frames for closed connections and, when KickSlow is
// set, disconnects sessions whose send buffer is full.
type SimplePolicy struct {
	KickSlow bool
}

func (p SimplePolicy) OnBackPressure(_ core.PeerSession, err error) BackpressureAction {
	if errors.Is(err, core.ErrBackpressure) && p.KickSlow {
		return KickSession
	}
	return DropFrame
}
