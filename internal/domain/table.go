package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	TableID     string
	TableStatus string
	Visibility  string
)

const (
	StatusWaiting    TableStatus = "waiting"
	StatusInProgress TableStatus = "in_progress"
	StatusFinished   TableStatus = "finished"
)

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

const (
	MinOccupancy    = 2
	MaxOccupancy    = 6
	MaxTableNameLen = 48
	MaxNetworkLen   = 24
)

// CanTransition reports whether the status machine allows s -> to.
// The machine only moves forward: waiting -> in_progress -> finished.
func (s TableStatus) CanTransition(to TableStatus) bool {
	switch s {
	case StatusWaiting:
		return to == StatusInProgress
	case StatusInProgress:
		return to == StatusFinished
	default:
		return false
	}
}

func (s TableStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusInProgress, StatusFinished:
		return true
	}
	return false
}

// Settings is what a creator chooses for a table.
type Settings struct {
	Name         string          `json:"name"`
	EntryFee     decimal.Decimal `json:"entry_fee"`
	Currency     string          `json:"currency"`
	MaxOccupancy int             `json:"max_occupancy"`
	Visibility   Visibility      `json:"visibility"`
	Network      string          `json:"network,omitempty"`
}

// Normalize fills defaults and trims free text. It never fixes invalid values.
func (s Settings) Normalize(defaultCurrency string) Settings {
	s.Name = strings.TrimSpace(s.Name)
	s.Currency = strings.ToUpper(strings.TrimSpace(s.Currency))
	if s.Currency == "" {
		s.Currency = defaultCurrency
	}
	if s.Visibility == "" {
		s.Visibility = Public
	}
	s.Network = strings.ToLower(strings.TrimSpace(s.Network))
	return s
}

// IsZero reports whether no settings were given at all.
func (s Settings) IsZero() bool {
	return s.EntryFee.IsZero() && s.MaxOccupancy == 0 && s.Name == "" && s.Network == "" && s.Visibility == "" && s.Currency == ""
}

// Matches reports whether a table created with s satisfies a request for
// want. Both sides must be normalized. An empty name in want matches any name.
func (s Settings) Matches(want Settings) bool {
	if want.Name != "" && want.Name != s.Name {
		return false
	}
	return s.EntryFee.Equal(want.EntryFee) &&
		s.Currency == want.Currency &&
		s.MaxOccupancy == want.MaxOccupancy &&
		s.Visibility == want.Visibility &&
		s.Network == want.Network
}

func (s Settings) Validate() error {
	if !s.EntryFee.IsPositive() {
		return fmt.Errorf("%w: entry fee must be positive", ErrInvalidSettings)
	}
	if s.MaxOccupancy < MinOccupancy || s.MaxOccupancy > MaxOccupancy {
		return fmt.Errorf("%w: max occupancy must be within [%d, %d]", ErrInvalidSettings, MinOccupancy, MaxOccupancy)
	}
	if len(s.Name) > MaxTableNameLen {
		return fmt.Errorf("%w: name too long", ErrInvalidSettings)
	}
	if len(s.Network) > MaxNetworkLen {
		return fmt.Errorf("%w: network too long", ErrInvalidSettings)
	}
	switch s.Visibility {
	case Public, Private:
	default:
		return fmt.Errorf("%w: unknown visibility %q", ErrInvalidSettings, s.Visibility)
	}
	return nil
}

// Table is a point-in-time snapshot of a table. The live state is owned by
// the table's single writer in core; snapshots are safe to share.
type Table struct {
	ID        TableID     `json:"id"`
	Settings  Settings    `json:"settings"`
	CreatorID UserID      `json:"creator_id"`
	Status    TableStatus `json:"status"`
	Occupants []Occupant  `json:"occupants"`

	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

func (t Table) Occupancy() int { return len(t.Occupants) }

func (t Table) Full() bool { return len(t.Occupants) >= t.Settings.MaxOccupancy }

// Pot is the entry fee times the number of seated players.
func (t Table) Pot() decimal.Decimal {
	return t.Settings.EntryFee.Mul(decimal.NewFromInt(int64(len(t.Occupants))))
}

func (t Table) Occupant(user UserID) (Occupant, bool) {
	for _, o := range t.Occupants {
		if o.UserID == user {
			return o, true
		}
	}
	return Occupant{}, false
}

// VisibleTo hides private tables from everyone but the creator and occupants.
func (t Table) VisibleTo(user UserID) bool {
	if t.Settings.Visibility != Private {
		return true
	}
	if t.CreatorID == user {
		return true
	}
	_, ok := t.Occupant(user)
	return ok
}

// TableSummary is the lobby directory row and the payload of table events.
type TableSummary struct {
	ID           TableID         `json:"id"`
	Name         string          `json:"name"`
	EntryFee     decimal.Decimal `json:"entry_fee"`
	Currency     string          `json:"currency"`
	MaxOccupancy int             `json:"max_occupancy"`
	Occupancy    int             `json:"occupancy"`
	Pot          decimal.Decimal `json:"pot"`
	Status       TableStatus     `json:"status"`
	Visibility   Visibility      `json:"visibility"`
	Network      string          `json:"network,omitempty"`
	CreatorID    UserID          `json:"creator_id"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (t Table) Summary() TableSummary {
	return TableSummary{
		ID:           t.ID,
		Name:         t.Settings.Name,
		EntryFee:     t.Settings.EntryFee,
		Currency:     t.Settings.Currency,
		MaxOccupancy: t.Settings.MaxOccupancy,
		Occupancy:    len(t.Occupants),
		Pot:          t.Pot(),
		Status:       t.Status,
		Visibility:   t.Settings.Visibility,
		Network:      t.Settings.Network,
		CreatorID:    t.CreatorID,
		CreatedAt:    t.CreatedAt,
	}
}
