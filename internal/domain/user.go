// Package domain contains entity without logic, just meta-data
package domain

import (
	"strings"
)

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 36
	MaxAvatarLen   = 256
)

type UserID string

type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// NewUser validates the identity triple handed over by the auth layer.
// The id itself is trusted, only its shape is checked.
func NewUser(id, username, avatar string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > MaxUserIDLen {
		return nil, ErrInvalidUser
	}
	u := &User{ID: UserID(id)}
	if err := u.SetUsername(username); err != nil {
		return nil, err
	}
	if len(avatar) > MaxAvatarLen {
		avatar = ""
	}
	u.Avatar = avatar
	return u, nil
}

func (u *User) SetUsername(username string) error {
	username = strings.TrimSpace(username)
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.Username = username
	return nil
}
