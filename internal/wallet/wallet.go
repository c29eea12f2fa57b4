// Package wallet is the boundary to the escrow service. The lobby only asks
// it to hold an entry fee while a player sits at a waiting table, to give
// the hold back when they leave, and to settle what is left once the game
// is over. Ledger is an in-memory stand-in for
// development and tests.
package wallet

//go:generate mockgen -source=wallet.go -destination=walletmock/escrow.go -package=walletmock

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Escrow locks and unlocks entry fees. Reserve must fail with an error
// wrapping domain.ErrInsufficientFunds when the balance is too low.
type Escrow interface {
	Reserve(ctx context.Context, user domain.UserID, table domain.TableID, amount decimal.Decimal) error
	Release(ctx context.Context, user domain.UserID, table domain.TableID) error
	// Settle closes every hold left on a finished table. The stakes belong
	// to the game's payout from then on.
	Settle(ctx context.Context, table domain.TableID) error
}

type holdKey struct {
	user  domain.UserID
	table domain.TableID
}

// Ledger keeps balances and holds in memory. Unknown users start with the
// configured opening balance.
type Ledger struct {
	mu       sync.Mutex
	opening  decimal.Decimal
	balances map[domain.UserID]decimal.Decimal
	holds    map[holdKey]decimal.Decimal
}

var _ Escrow = (*Ledger)(nil)

func NewLedger(opening decimal.Decimal) *Ledger {
	return &Ledger{
		opening:  opening,
		balances: make(map[domain.UserID]decimal.Decimal),
		holds:    make(map[holdKey]decimal.Decimal),
	}
}

func (l *Ledger) balanceLocked(user domain.UserID) decimal.Decimal {
	b, ok := l.balances[user]
	if !ok {
		b = l.opening
		l.balances[user] = b
	}
	return b
}

// Reserve is idempotent per (user, table).
func (l *Ledger) Reserve(_ context.Context, user domain.UserID, table domain.TableID, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := holdKey{user: user, table: table}
	if _, ok := l.holds[k]; ok {
		return nil
	}
	bal := l.balanceLocked(user)
	if bal.LessThan(amount) {
		return fmt.Errorf("%w: balance %s, need %s", domain.ErrInsufficientFunds, bal.String(), amount.String())
	}
	l.balances[user] = bal.Sub(amount)
	l.holds[k] = amount
	log.Debug().Str("module", "wallet").Str("user", string(user)).Str("table", string(table)).Str("amount", amount.String()).Msg("hold placed")
	return nil
}

// Release returns a hold. Releasing a missing hold is a no-op.
func (l *Ledger) Release(_ context.Context, user domain.UserID, table domain.TableID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := holdKey{user: user, table: table}
	amount, ok := l.holds[k]
	if !ok {
		return nil
	}
	delete(l.holds, k)
	l.balances[user] = l.balanceLocked(user).Add(amount)
	log.Debug().Str("module", "wallet").Str("user", string(user)).Str("table", string(table)).Str("amount", amount.String()).Msg("hold released")
	return nil
}

// Settle drops the table's holds without refunding them.
func (l *Ledger) Settle(_ context.Context, table domain.TableID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	settled := 0
	for k := range l.holds {
		if k.table == table {
			delete(l.holds, k)
			settled++
		}
	}
	if settled > 0 {
		log.Debug().Str("module", "wallet").Str("table", string(table)).Int("holds", settled).Msg("holds settled")
	}
	return nil
}

// Deposit credits a user, mostly for seeding balances.
func (l *Ledger) Deposit(user domain.UserID, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[user] = l.balanceLocked(user).Add(amount)
}

func (l *Ledger) Balance(user domain.UserID) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked(user)
}

func (l *Ledger) Held(user domain.UserID, table domain.TableID) (decimal.Decimal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	amount, ok := l.holds[holdKey{user: user, table: table}]
	return amount, ok
}
