package app

import (
	"github.com/dkeye/cardlobby/internal/core"
	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/rs/zerolog/log"
)

// PublishResult reports delivery stats for one event.
type PublishResult struct {
	SentTo  int
	Dropped []core.PeerSession
}

// Fanout pushes events to connected sessions through their non-blocking
// send buffers. Each session's buffer and write pump act as its delivery
// actor, so per-session order follows enqueue order.
type Fanout struct {
	presence *Presence
	policy   Policy
}

var _ core.Publisher = (*Fanout)(nil)

func NewFanout(presence *Presence, policy Policy) *Fanout {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Fanout{presence: presence, policy: policy}
}

func (f *Fanout) Broadcast(ev core.Event, to core.Audience) {
	f.Publish(ev, f.presence.Observers(), to)
}

func (f *Fanout) SendToUser(user domain.UserID, ev core.Event) int {
	return f.Publish(ev, f.presence.SessionsOf(user), nil).SentTo
}

// Publish encodes ev once and offers it to every selected session.
func (f *Fanout) Publish(ev core.Event, sessions []core.PeerSession, to core.Audience) PublishResult {
	res := PublishResult{}
	if len(sessions) == 0 {
		return res
	}
	frame, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Str("type", string(ev.Type)).Msg("encode event")
		return res
	}
	for _, s := range sessions {
		if to != nil && !to(s.Meta()) {
			continue
		}
		if f.Deliver(s, frame) {
			res.SentTo++
		} else {
			res.Dropped = append(res.Dropped, s)
		}
	}
	log.Debug().Str("module", "app.fanout").Str("type", string(ev.Type)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("publish result")
	return res
}

// Deliver offers one frame to one session and applies the backpressure
// policy on failure. It never blocks.
func (f *Fanout) Deliver(s core.PeerSession, frame core.Frame) bool {
	sig := s.Signal()
	if sig == nil {
		return false
	}
	err := sig.TrySend(frame)
	if err == nil {
		return true
	}
	sid := s.Meta().ID
	switch f.policy.OnBackPressure(s, err) {
	case KickSession:
		log.Warn().Err(err).Str("module", "app.fanout").Str("sid", string(sid)).Msg("kicking slow session")
		sig.Close()
	case DropFrame, NoAction:
		log.Debug().Err(err).Str("module", "app.fanout").Str("sid", string(sid)).Msg("frame dropped")
	}
	return false
}

// SendEvent delivers ev to a single session.
func (f *Fanout) SendEvent(s core.PeerSession, ev core.Event) bool {
	frame, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Str("type", string(ev.Type)).Msg("encode event")
		return false
	}
	return f.Deliver(s, frame)
}
