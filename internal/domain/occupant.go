package domain

import "time"

// Occupant is a seat held by a user at a table.
// Positions are contiguous from zero within a table.
type Occupant struct {
	UserID    UserID    `json:"user_id"`
	SessionID SessionID `json:"-"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar,omitempty"`
	Position  int       `json:"position"`
	JoinedAt  time.Time `json:"joined_at"`
}

// SeatMeta is the session data a join carries into the occupant record.
type SeatMeta struct {
	SessionID SessionID
	Username  string
	Avatar    string
}

func NewOccupant(user UserID, meta SeatMeta, position int, at time.Time) Occupant {
	return Occupant{
		UserID:    user,
		SessionID: meta.SessionID,
		Username:  meta.Username,
		Avatar:    meta.Avatar,
		Position:  position,
		JoinedAt:  at,
	}
}

// Seat is returned to a player after a successful join or rejoin.
type Seat struct {
	TableID  TableID `json:"table_id"`
	Position int     `json:"position"`
	Rejoined bool    `json:"rejoined"`
}
