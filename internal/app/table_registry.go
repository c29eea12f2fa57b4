package app

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/cardlobby/internal/core"
	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TableRegistry is the authoritative set of live tables. The index is
// lock-striped and every table is its own single writer.
type TableRegistry struct {
	tables   *stripedMap[domain.TableID, core.TableService]
	pub      core.Publisher
	currency string
	now      func() time.Time

	hooksMu   sync.RWMutex
	onRemoved []func(domain.Table)
	onStatus  []func(domain.Table)
}

var _ core.TableDirectory = (*TableRegistry)(nil)

func NewTableRegistry(pub core.Publisher, defaultCurrency string) *TableRegistry {
	return &TableRegistry{
		tables:   newStripedMap[domain.TableID, core.TableService](),
		pub:      pub,
		currency: defaultCurrency,
		now:      time.Now,
	}
}

// Create always makes a fresh table; identical settings are not merged.
func (r *TableRegistry) Create(creator domain.UserID, settings domain.Settings) (domain.Table, error) {
	settings = settings.Normalize(r.currency)
	if err := settings.Validate(); err != nil {
		return domain.Table{}, err
	}
	if settings.Name == "" {
		settings.Name = "Table " + settings.EntryFee.String()
	}
	t := domain.Table{
		ID:        domain.TableID(uuid.NewString()),
		Settings:  settings,
		CreatorID: creator,
		Status:    domain.StatusWaiting,
		Occupants: []domain.Occupant{},
		CreatedAt: r.now(),
	}
	svc := core.NewTableService(t)
	_ = svc.Exec(func(st *core.TableState) error {
		r.tables.Store(t.ID, svc)
		r.emit(core.EventTableCreated, t, t)
		return nil
	})
	log.Info().Str("module", "app.tables").Str("table", string(t.ID)).Str("creator", string(creator)).Str("fee", settings.EntryFee.String()).Int("max", settings.MaxOccupancy).Msg("table created")
	return t, nil
}

func (r *TableRegistry) Get(id domain.TableID) (core.TableService, bool) {
	return r.tables.Load(id)
}

// Snapshot returns the table as it is now.
func (r *TableRegistry) Snapshot(id domain.TableID) (domain.Table, bool) {
	svc, ok := r.tables.Load(id)
	if !ok {
		return domain.Table{}, false
	}
	return svc.Snapshot(), true
}

// UpdateOccupancy is the hook membership calls from inside the table's Exec
// after any join or leave.
func (r *TableRegistry) UpdateOccupancy(before, after domain.Table) {
	r.emit(core.EventTableUpdated, before, after)
}

// Remove deletes an empty or finished table.
func (r *TableRegistry) Remove(id domain.TableID) error {
	svc, ok := r.tables.Load(id)
	if !ok {
		return domain.ErrTableNotFound
	}
	var removed domain.Table
	err := svc.Exec(func(st *core.TableState) error {
		var err error
		removed, err = r.removeLocked(st)
		return err
	})
	if err != nil {
		return err
	}
	r.fireRemoved(removed)
	return nil
}

// removeLocked must run inside the table's Exec. Hooks are fired by the
// caller once the table lock is released.
func (r *TableRegistry) removeLocked(st *core.TableState) (domain.Table, error) {
	if err := st.MarkRemoved(); err != nil {
		return domain.Table{}, err
	}
	t := st.Snapshot()
	r.tables.Delete(t.ID)
	r.emit(core.EventTableRemoved, t, t)
	log.Info().Str("module", "app.tables").Str("table", string(t.ID)).Str("status", string(t.Status)).Msg("table removed")
	return t, nil
}

func (r *TableRegistry) fireRemoved(t domain.Table) {
	r.hooksMu.RLock()
	hooks := r.onRemoved
	r.hooksMu.RUnlock()
	for _, h := range hooks {
		h(t)
	}
}

func (r *TableRegistry) OnRemoved(h func(domain.Table)) {
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	r.onRemoved = append(r.onRemoved, h)
}

func (r *TableRegistry) OnStatus(h func(domain.Table)) {
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	r.onStatus = append(r.onStatus, h)
}

// Start is the external game-start signal.
func (r *TableRegistry) Start(id domain.TableID) (domain.Table, error) {
	return r.transition(id, domain.StatusInProgress)
}

// Finish is the external game-end signal.
func (r *TableRegistry) Finish(id domain.TableID) (domain.Table, error) {
	return r.transition(id, domain.StatusFinished)
}

func (r *TableRegistry) transition(id domain.TableID, to domain.TableStatus) (domain.Table, error) {
	svc, ok := r.tables.Load(id)
	if !ok {
		return domain.Table{}, domain.ErrTableNotFound
	}
	var after domain.Table
	err := svc.Exec(func(st *core.TableState) error {
		before := st.Snapshot()
		if err := st.Transition(to, r.now()); err != nil {
			return err
		}
		after = st.Snapshot()
		r.emit(core.EventTableUpdated, before, after)
		return nil
	})
	if err != nil {
		return domain.Table{}, err
	}
	r.hooksMu.RLock()
	hooks := r.onStatus
	r.hooksMu.RUnlock()
	for _, h := range hooks {
		h(after)
	}
	return after, nil
}

// All returns a snapshot of every live table.
func (r *TableRegistry) All() []domain.Table {
	svcs := r.tables.Values()
	out := make([]domain.Table, 0, len(svcs))
	for _, svc := range svcs {
		out = append(out, svc.Snapshot())
	}
	return out
}

func (r *TableRegistry) ListActive(filter core.TableFilter) []domain.TableSummary {
	return FilterTables(r.All(), filter)
}

// emit sends a table event to everyone who could see the table before or
// after the change. Callers hold the table lock, which keeps per-table order.
func (r *TableRegistry) emit(t core.EventType, before, after domain.Table) {
	if r.pub == nil {
		return
	}
	r.pub.Broadcast(core.Event{Type: t, Payload: core.TablePayload{Table: after.Summary()}}, func(s domain.Session) bool {
		return before.VisibleTo(s.User.ID) || after.VisibleTo(s.User.ID)
	})
}

// FilterTables is the pure lobby directory query.
func FilterTables(tables []domain.Table, f core.TableFilter) []domain.TableSummary {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	network := strings.ToLower(strings.TrimSpace(f.Network))

	out := make([]domain.TableSummary, 0, len(tables))
	for _, t := range tables {
		if !t.VisibleTo(f.Viewer) {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status) {
			continue
		}
		if network != "" && t.Settings.Network != network {
			continue
		}
		if f.Visibility != "" && t.Settings.Visibility != f.Visibility {
			continue
		}
		if f.MinFee != nil && t.Settings.EntryFee.LessThan(*f.MinFee) {
			continue
		}
		if f.MaxFee != nil && t.Settings.EntryFee.GreaterThan(*f.MaxFee) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(string(t.ID)), query) &&
			!strings.Contains(t.Settings.EntryFee.String(), query) {
			continue
		}
		out = append(out, t.Summary())
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		var less, equal bool
		switch f.Sort {
		case core.SortFee:
			c := a.EntryFee.Cmp(b.EntryFee)
			less, equal = c < 0, c == 0
		case core.SortOccupancy:
			less, equal = a.Occupancy < b.Occupancy, a.Occupancy == b.Occupancy
		default:
			less, equal = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		}
		if equal {
			return a.ID < b.ID
		}
		if f.Desc {
			return !less
		}
		return less
	})
	return out
}
