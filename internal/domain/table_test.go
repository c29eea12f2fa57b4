package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() Settings {
	return Settings{Name: "High rollers", EntryFee: decimal.NewFromInt(50), MaxOccupancy: 4}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		ok     bool
	}{
		{"valid", func(*Settings) {}, true},
		{"zero fee", func(s *Settings) { s.EntryFee = decimal.Zero }, false},
		{"negative fee", func(s *Settings) { s.EntryFee = decimal.NewFromInt(-1) }, false},
		{"fractional fee", func(s *Settings) { s.EntryFee = decimal.RequireFromString("0.25") }, true},
		{"occupancy below min", func(s *Settings) { s.MaxOccupancy = 1 }, false},
		{"occupancy at min", func(s *Settings) { s.MaxOccupancy = MinOccupancy }, true},
		{"occupancy at max", func(s *Settings) { s.MaxOccupancy = MaxOccupancy }, true},
		{"occupancy above max", func(s *Settings) { s.MaxOccupancy = 7 }, false},
		{"unknown visibility", func(s *Settings) { s.Visibility = "secret" }, false},
		{"long name", func(s *Settings) { s.Name = string(make([]byte, MaxTableNameLen+1)) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(&s)
			err := s.Normalize("USD").Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidSettings)
		})
	}
}

func TestSettingsNormalize(t *testing.T) {
	s := Settings{Name: "  lobby  ", Currency: " eur ", Network: " MainNet "}.Normalize("USD")
	assert.Equal(t, "lobby", s.Name)
	assert.Equal(t, "EUR", s.Currency)
	assert.Equal(t, "mainnet", s.Network)
	assert.Equal(t, Public, s.Visibility)

	s = Settings{}.Normalize("USD")
	assert.Equal(t, "USD", s.Currency)
}

func TestStatusTransitionsOnlyMoveForward(t *testing.T) {
	all := []TableStatus{StatusWaiting, StatusInProgress, StatusFinished}
	allowed := map[[2]TableStatus]bool{
		{StatusWaiting, StatusInProgress}:  true,
		{StatusInProgress, StatusFinished}: true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]TableStatus{from, to}], from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestTablePotAndVisibility(t *testing.T) {
	tbl := Table{
		ID:        "t1",
		Settings:  Settings{EntryFee: decimal.RequireFromString("12.5"), MaxOccupancy: 3, Visibility: Private},
		CreatorID: "alice",
		Occupants: []Occupant{
			NewOccupant("bob", SeatMeta{Username: "Bob"}, 0, time.Now()),
			NewOccupant("carol", SeatMeta{Username: "Carol"}, 1, time.Now()),
		},
	}
	assert.True(t, tbl.Pot().Equal(decimal.NewFromInt(25)))
	assert.False(t, tbl.Full())

	assert.True(t, tbl.VisibleTo("alice"))
	assert.True(t, tbl.VisibleTo("bob"))
	assert.False(t, tbl.VisibleTo("mallory"))

	tbl.Settings.Visibility = Public
	assert.True(t, tbl.VisibleTo("mallory"))

	sum := tbl.Summary()
	assert.Equal(t, 2, sum.Occupancy)
	assert.True(t, sum.Pot.Equal(decimal.NewFromInt(25)))
}

func TestNewUser(t *testing.T) {
	u, err := NewUser(" u1 ", " Alice ", "https://cdn/a.png")
	require.NoError(t, err)
	assert.Equal(t, UserID("u1"), u.ID)
	assert.Equal(t, "Alice", u.Username)

	_, err = NewUser("", "Alice", "")
	assert.ErrorIs(t, err, ErrInvalidUser)

	_, err = NewUser("u1", "   ", "")
	assert.ErrorIs(t, err, ErrUsernameEmpty)

	_, err = NewUser("u1", string(make([]byte, MaxUsernameLen+1)), "")
	assert.Error(t, err)
}

func TestCode(t *testing.T) {
	assert.Equal(t, "", Code(nil))
	assert.Equal(t, "table_full", Code(ErrTableFull))
	assert.Equal(t, "invalid_settings", Code(validSettingsErr()))
	assert.Equal(t, "internal", Code(errors.New("boom")))
}

func validSettingsErr() error {
	return Settings{}.Validate()
}

func TestSettingsMatches(t *testing.T) {
	base := Settings{EntryFee: decimal.NewFromInt(10), MaxOccupancy: 2}.Normalize("USD")

	assert.True(t, base.Matches(Settings{EntryFee: decimal.RequireFromString("10.00"), MaxOccupancy: 2}.Normalize("usd")))
	assert.False(t, base.Matches(Settings{EntryFee: decimal.NewFromInt(100), MaxOccupancy: 2}.Normalize("USD")))
	assert.False(t, base.Matches(Settings{EntryFee: decimal.NewFromInt(10), MaxOccupancy: 6}.Normalize("USD")))
	assert.False(t, base.Matches(Settings{EntryFee: decimal.NewFromInt(10), MaxOccupancy: 2, Visibility: Private}.Normalize("USD")))

	named := base
	named.Name = "Table 10"
	assert.True(t, named.Matches(base))
	assert.False(t, named.Matches(Settings{Name: "high rollers", EntryFee: decimal.NewFromInt(10), MaxOccupancy: 2}.Normalize("USD")))

	assert.True(t, Settings{}.IsZero())
	assert.False(t, base.IsZero())
}
