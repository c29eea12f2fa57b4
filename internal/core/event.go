package core

import (
	"encoding/json"

	"github.com/dkeye/cardlobby/internal/domain"
)

type EventType string

const (
	EventTableCreated       EventType = "table_created"
	EventTableUpdated       EventType = "table_updated"
	EventTableRemoved       EventType = "table_removed"
	EventPeerOnline         EventType = "peer_online"
	EventPeerOffline        EventType = "peer_offline"
	EventInvitationReceived EventType = "invitation_received"
	EventInvitationResolved EventType = "invitation_resolved"
	EventResume             EventType = "resume"
	EventLobbyState         EventType = "lobby_state"
)

type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

func (e Event) Encode() (Frame, error) {
	return json.Marshal(e)
}

type TablePayload struct {
	Table domain.TableSummary `json:"table"`
}

type PeerPayload struct {
	Peer domain.Peer `json:"peer"`
}

type InvitationPayload struct {
	Invitation domain.Invitation `json:"invitation"`
}

// ResumePayload tells a reconnecting client where it stands before any
// lobby broadcast reaches it.
type ResumePayload struct {
	Resumed  bool                 `json:"resumed"`
	Table    *domain.TableSummary `json:"table,omitempty"`
	Position int                  `json:"position,omitempty"`
	// ClearRef asks the client to drop its cached table reference.
	ClearRef bool `json:"clear_ref"`
}

type LobbyStatePayload struct {
	Tables      []domain.TableSummary `json:"tables"`
	Peers       []domain.Peer         `json:"peers"`
	Invitations []domain.Invitation   `json:"invitations"`
}

// Audience selects the sessions an event is delivered to. Nil means everyone.
type Audience func(domain.Session) bool

// Publisher delivers events to connected sessions. Delivery is
// fire-and-forget and never blocks the caller.
type Publisher interface {
	Broadcast(ev Event, to Audience)
	SendToUser(user domain.UserID, ev Event) int
}
