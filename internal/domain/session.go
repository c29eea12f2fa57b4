package domain

import "time"

type SessionID string

// Session is one connected client instance of a user.
type Session struct {
	ID          SessionID `json:"session_id"`
	User        User      `json:"user"`
	ConnectedAt time.Time `json:"connected_at"`
}

func NewSession(id SessionID, user User, at time.Time) Session {
	return Session{ID: id, User: user, ConnectedAt: at}
}

// Peer is what other users see of an online session.
type Peer struct {
	UserID   UserID    `json:"user_id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar,omitempty"`
	Since    time.Time `json:"since"`
}

func (s Session) Peer() Peer {
	return Peer{
		UserID:   s.User.ID,
		Username: s.User.Username,
		Avatar:   s.User.Avatar,
		Since:    s.ConnectedAt,
	}
}
