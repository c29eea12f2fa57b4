package domain

import "time"

type (
	InvitationID     string
	InvitationStatus string
	Response         string
)

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

const (
	ResponseAccepted Response = "accepted"
	ResponseDeclined Response = "declined"
)

func (r Response) Valid() bool {
	return r == ResponseAccepted || r == ResponseDeclined
}

// Invitation is a directed, time-boxed offer to take a seat at a table.
type Invitation struct {
	ID          InvitationID     `json:"id"`
	InviterID   UserID           `json:"inviter_id"`
	InviterName string           `json:"inviter_name"`
	InviteeID   UserID           `json:"invitee_id"`
	TableID     TableID          `json:"table_id"`
	Settings    Settings         `json:"settings"`
	Batch       string           `json:"batch,omitempty"`
	Status      InvitationStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	ExpiresAt   time.Time        `json:"expires_at"`
	ResolvedAt  time.Time        `json:"resolved_at,omitempty"`
}

func (i Invitation) Resolved() bool { return i.Status != InvitationPending }
