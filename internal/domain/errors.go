package domain

import "errors"

var (
	ErrTableNotFound             = errors.New("table not found")
	ErrTableFull                 = errors.New("table is full")
	ErrTableNotJoinable          = errors.New("table is not joinable")
	ErrTableNotRemovable         = errors.New("table still has occupants")
	ErrInvalidSettings           = errors.New("invalid table settings")
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrAlreadySeated             = errors.New("user already seated at another table")
	ErrInvitationNotFound        = errors.New("invitation not found")
	ErrInvitationExpired         = errors.New("invitation expired")
	ErrInvitationAlreadyResolved = errors.New("invitation already resolved")
	ErrNotInvitee                = errors.New("invitation addressed to another user")
	ErrSelfInvite                = errors.New("cannot invite yourself")
	ErrRateLimited               = errors.New("too many requests")
	ErrInvalidUser               = errors.New("invalid user id")
	ErrUsernameTooLong           = errors.New("username too long")
	ErrUsernameEmpty             = errors.New("username empty")
	ErrInvalidRequest            = errors.New("invalid request")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrTableNotFound, "table_not_found"},
	{ErrTableFull, "table_full"},
	{ErrTableNotJoinable, "table_not_joinable"},
	{ErrTableNotRemovable, "table_not_removable"},
	{ErrInvalidSettings, "invalid_settings"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrAlreadySeated, "already_seated"},
	{ErrInvitationNotFound, "invitation_not_found"},
	{ErrInvitationExpired, "invitation_expired"},
	{ErrInvitationAlreadyResolved, "invitation_already_resolved"},
	{ErrNotInvitee, "not_invitee"},
	{ErrSelfInvite, "self_invite"},
	{ErrRateLimited, "rate_limited"},
	{ErrInvalidUser, "invalid_user"},
	{ErrUsernameTooLong, "invalid_user"},
	{ErrUsernameEmpty, "invalid_user"},
	{ErrInvalidRequest, "invalid_request"},
}

// Code maps an error to the stable reason string sent to clients.
// Unknown errors map to "internal".
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
