package core

import (
	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/shopspring/decimal"
)

// TableService is the single writer of one table.
// All mutations go through Exec, one at a time, so whatever an Exec callback
// emits reaches observers in the order the table processed it.
type TableService interface {
	ID() domain.TableID
	Snapshot() domain.Table
	Exec(fn func(st *TableState) error) error
}

// TableFilter narrows the lobby directory. Zero values match everything.
type TableFilter struct {
	Viewer   domain.UserID
	Statuses []domain.TableStatus
	Network  string
	// Visibility restricts to one visibility; private tables are still only
	// shown to their creator and occupants.
	Visibility domain.Visibility
	MinFee     *decimal.Decimal
	MaxFee     *decimal.Decimal
	// Query matches a substring of the table id or the entry fee.
	Query string
	Sort  TableSort
	Desc  bool
}

type TableSort string

const (
	SortCreated   TableSort = "created"
	SortFee       TableSort = "fee"
	SortOccupancy TableSort = "occupancy"
)

// TableDirectory is the core-facing API of the table registry.
type TableDirectory interface {
	Create(creator domain.UserID, settings domain.Settings) (domain.Table, error)
	Get(id domain.TableID) (TableService, bool)
	UpdateOccupancy(before, after domain.Table)
	Remove(id domain.TableID) error
	ListActive(filter TableFilter) []domain.TableSummary
	Start(id domain.TableID) (domain.Table, error)
	Finish(id domain.TableID) (domain.Table, error)
	// OnRemoved registers a hook called after a table leaves the registry.
	OnRemoved(func(domain.Table))
	// OnStatus registers a hook called after a table changes status.
	OnStatus(func(domain.Table))
}
