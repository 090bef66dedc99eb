package orders

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/tableside/internal/catalog"
	"github.com/angelmondragon/tableside/internal/tables"
	"github.com/angelmondragon/tableside/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableside/pkg/errors"
	"github.com/angelmondragon/tableside/pkg/logger"
)

const maxChiliNumber = 10

// SnapshotSink receives a snapshot after every state change. Publish must not block.
type SnapshotSink interface {
	Publish(snapshot Snapshot)
}

type StoreParams struct {
	SessionID string
	Catalog   catalog.Reader
	Owner     Identity
	Table     tables.Identity
	Notifier  Notifier
	Sink      SnapshotSink
	Clock     func() time.Time
	Logger    *logger.Logger
}

// Store holds one session's order under construction and the orders it
// submitted. Mutations never fail: misuse becomes a notice and a no-op.
// The current aggregate is replaced, never edited in place, so values
// returned by Current stay stable.
type Store struct {
	sessionID string
	catalog   catalog.Reader
	notifier  Notifier
	sink      SnapshotSink
	clock     func() time.Time
	logg      *logger.Logger

	mu        sync.RWMutex
	owner     Identity
	table     tables.Identity
	current   *Aggregate
	submitted []SubmittedOrder
	version   uint64

	loading atomic.Bool
}

func NewStore(params StoreParams) (*Store, error) {
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog reader is required")
	}
	if strings.TrimSpace(params.SessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Notifier == nil {
		params.Notifier = NewLogNotifier(params.Logger)
	}
	if params.Clock == nil {
		params.Clock = time.Now
	}
	return &Store{
		sessionID: params.SessionID,
		catalog:   params.Catalog,
		notifier:  params.Notifier,
		sink:      params.Sink,
		clock:     params.Clock,
		logg:      params.Logger,
		owner:     params.Owner,
		table:     params.Table,
		submitted: []SubmittedOrder{},
	}, nil
}

func (s *Store) SessionID() string {
	return s.sessionID
}

func (s *Store) newAggregate(now time.Time) *Aggregate {
	agg := &Aggregate{
		Status:    enums.OrderStatusPending,
		DishItems: []DishLine{},
		SetItems:  []SetLine{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	agg.applyOwner(s.owner)
	agg.applyTable(s.table)
	return agg
}

// edit applies fn to a copy of the current aggregate. With create set, a
// missing aggregate is initialized first. It reports whether fn changed anything.
func (s *Store) edit(ctx context.Context, create bool, fn func(agg *Aggregate) (bool, *Notice)) bool {
	s.mu.Lock()
	now := s.clock()
	base := s.current
	initialized := false
	if base == nil {
		if !create {
			s.mu.Unlock()
			return false
		}
		base = s.newAggregate(now)
		initialized = true
	}

	next := base.clone()
	changed, notice := fn(next)
	switch {
	case changed:
		next.UpdatedAt = now
		next.Version = base.Version + 1
		s.current = next
	case initialized:
		s.current = base
	}

	var snapshot *Snapshot
	if changed || initialized {
		s.version++
		snap := s.snapshotLocked(now)
		snapshot = &snap
	}
	s.mu.Unlock()

	if notice != nil {
		s.notify(ctx, *notice)
	}
	if snapshot != nil {
		s.publish(*snapshot)
	}
	return changed
}

// AddDish appends a dish line. A dish already in the order is left as is.
func (s *Store) AddDish(ctx context.Context, dishID int64, quantity int) bool {
	if dishID <= 0 || quantity <= 0 {
		s.notify(ctx, warning("Pick a dish and a quantity of at least 1"))
		return false
	}
	return s.edit(ctx, true, func(agg *Aggregate) (bool, *Notice) {
		if agg.dishIndex(dishID) >= 0 {
			n := warning("This dish is already in your order")
			return false, &n
		}
		agg.DishItems = append(agg.DishItems, DishLine{DishID: dishID, Quantity: quantity})
		return true, nil
	})
}

// AddSet appends a set line. A set already in the order is left as is.
func (s *Store) AddSet(ctx context.Context, setID int64, quantity int) bool {
	if setID <= 0 || quantity <= 0 {
		s.notify(ctx, warning("Pick a set and a quantity of at least 1"))
		return false
	}
	return s.edit(ctx, true, func(agg *Aggregate) (bool, *Notice) {
		if agg.setIndex(setID) >= 0 {
			n := warning("This set is already in your order")
			return false, &n
		}
		agg.SetItems = append(agg.SetItems, SetLine{SetID: setID, Quantity: quantity})
		return true, nil
	})
}

// UpdateDishQuantity sets the quantity of an existing dish line. A quantity
// of zero or less removes the line.
func (s *Store) UpdateDishQuantity(ctx context.Context, dishID int64, quantity int) bool {
	return s.edit(ctx, true, func(agg *Aggregate) (bool, *Notice) {
		idx := agg.dishIndex(dishID)
		if idx < 0 {
			return false, nil
		}
		if quantity <= 0 {
			agg.DishItems = append(agg.DishItems[:idx], agg.DishItems[idx+1:]...)
			return true, nil
		}
		if agg.DishItems[idx].Quantity == quantity {
			return false, nil
		}
		agg.DishItems[idx].Quantity = quantity
		return true, nil
	})
}

// UpdateSetQuantity sets the quantity of an existing set line. A quantity
// of zero or less removes the line.
func (s *Store) UpdateSetQuantity(ctx context.Context, setID int64, quantity int) bool {
	return s.edit(ctx, true, func(agg *Aggregate) (bool, *Notice) {
		idx := agg.setIndex(setID)
		if idx < 0 {
			return false, nil
		}
		if quantity <= 0 {
			agg.SetItems = append(agg.SetItems[:idx], agg.SetItems[idx+1:]...)
			return true, nil
		}
		if agg.SetItems[idx].Quantity == quantity {
			return false, nil
		}
		agg.SetItems[idx].Quantity = quantity
		return true, nil
	})
}

func (s *Store) RemoveDish(ctx context.Context, dishID int64) bool {
	return s.UpdateDishQuantity(ctx, dishID, 0)
}

func (s *Store) RemoveSet(ctx context.Context, setID int64) bool {
	return s.UpdateSetQuantity(ctx, setID, 0)
}

// UpdateTopping replaces the free-text instructions. Without a current
// aggregate this is a no-op.
func (s *Store) UpdateTopping(ctx context.Context, text string) bool {
	return s.edit(ctx, false, func(agg *Aggregate) (bool, *Notice) {
		if agg.Topping == text {
			return false, nil
		}
		agg.Topping = text
		return true, nil
	})
}

func (s *Store) SetTakeAway(ctx context.Context, takeAway bool) bool {
	return s.edit(ctx, true, func(agg *Aggregate) (bool, *Notice) {
		if agg.TakeAway == takeAway {
			return false, nil
		}
		agg.TakeAway = takeAway
		return true, nil
	})
}

// SetChiliNumber sets the spice count, 0 through 10.
func (s *Store) SetChiliNumber(ctx context.Context, chili int) bool {
	if chili < 0 || chili > maxChiliNumber {
		s.notify(ctx, warning(fmt.Sprintf("Spice level must be between 0 and %d", maxChiliNumber)))
		return false
	}
	return s.edit(ctx, true, func(agg *Aggregate) (bool, *Notice) {
		if agg.ChiliNumber == chili {
			return false, nil
		}
		agg.ChiliNumber = chili
		return true, nil
	})
}

// SetTable moves the session to another table. The current aggregate, if
// any, follows.
func (s *Store) SetTable(ctx context.Context, table tables.Identity) {
	s.mu.Lock()
	s.table = table
	s.mu.Unlock()
	s.edit(ctx, false, func(agg *Aggregate) (bool, *Notice) {
		if agg.TableNumber == table.Number && agg.TableToken == table.Token {
			return false, nil
		}
		agg.applyTable(table)
		return true, nil
	})
}

// Clear resets the current aggregate to an empty one with fresh timestamps.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	now := s.clock()
	s.current = s.newAggregate(now)
	s.version++
	snap := s.snapshotLocked(now)
	s.mu.Unlock()
	s.publish(snap)
}

// Current returns a copy of the current aggregate, or nil.
func (s *Store) Current() *Aggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

// currentOrEmpty returns a copy of the current aggregate, or a fresh empty
// one for the present owner and table.
func (s *Store) currentOrEmpty() *Aggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return s.newAggregate(s.clock())
	}
	return s.current.clone()
}

// Summary derives totals and resolved lines from the current aggregate.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	current := s.current.clone()
	s.mu.RUnlock()
	return Summarize(current, s.catalog)
}

// Submitted returns the orders accepted during this session, oldest first.
func (s *Store) Submitted() []SubmittedOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SubmittedOrder{}, s.submitted...)
}

func (s *Store) RemoveSubmitted(ctx context.Context, orderID int64) bool {
	s.mu.Lock()
	idx := -1
	for i, order := range s.submitted {
		if order.ID == orderID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.submitted = append(s.submitted[:idx:idx], s.submitted[idx+1:]...)
	s.version++
	snap := s.snapshotLocked(s.clock())
	s.mu.Unlock()
	s.publish(snap)
	return true
}

func (s *Store) ClearSubmitted(ctx context.Context) {
	s.mu.Lock()
	s.submitted = []SubmittedOrder{}
	s.version++
	snap := s.snapshotLocked(s.clock())
	s.mu.Unlock()
	s.publish(snap)
}

// ApplyStatus moves a submitted order forward in its lifecycle. Backward or
// repeated transitions are rejected with STATE_CONFLICT.
func (s *Store) ApplyStatus(ctx context.Context, orderID int64, status enums.OrderStatus) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").WithDetails(map[string]any{"status": status})
	}
	s.mu.Lock()
	idx := -1
	for i, order := range s.submitted {
		if order.ID == orderID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found in this session").WithDetails(map[string]any{"order_id": orderID})
	}
	currentStatus := s.submitted[idx].Status
	if !currentStatus.CanTransitionTo(status) {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order status transition not allowed").WithDetails(map[string]any{
			"order_id": orderID,
			"from":     currentStatus,
			"to":       status,
		})
	}
	now := s.clock()
	updated := append([]SubmittedOrder{}, s.submitted...)
	updated[idx].Status = status
	updated[idx].UpdatedAt = now
	s.submitted = updated
	s.version++
	snap := s.snapshotLocked(now)
	s.mu.Unlock()

	s.publish(snap)
	s.notify(ctx, Notice{Level: enums.NoticeLevelInfo, Message: fmt.Sprintf("Order #%d is %s", orderID, status)})
	return nil
}

// Loading reports whether a submission is in flight.
func (s *Store) Loading() bool {
	return s.loading.Load()
}

func (s *Store) beginLoading() bool {
	return s.loading.CompareAndSwap(false, true)
}

func (s *Store) endLoading() {
	s.loading.Store(false)
}

// completeSubmission records an accepted order and resets the aggregate.
func (s *Store) completeSubmission(order SubmittedOrder) {
	s.mu.Lock()
	now := s.clock()
	s.submitted = append(append([]SubmittedOrder{}, s.submitted...), order)
	s.current = s.newAggregate(now)
	s.version++
	snap := s.snapshotLocked(now)
	s.mu.Unlock()
	s.publish(snap)
}

// Version grows by one with every state change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(s.clock())
}

func (s *Store) snapshotLocked(now time.Time) Snapshot {
	return Snapshot{
		SessionID: s.sessionID,
		Version:   s.version,
		Current:   s.current.clone(),
		Submitted: append([]SubmittedOrder{}, s.submitted...),
		Table:     s.table,
		TakenAt:   now,
	}
}

// Restore loads a persisted snapshot. Snapshots for another session or older
// than the store's own state are ignored.
func (s *Store) Restore(snapshot Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snapshot.SessionID != s.sessionID || snapshot.Version <= s.version {
		return false
	}
	s.current = snapshot.Current.clone()
	s.submitted = append([]SubmittedOrder{}, snapshot.Submitted...)
	if !snapshot.Table.IsZero() {
		s.table = snapshot.Table
	}
	s.version = snapshot.Version
	return true
}

func (s *Store) notify(ctx context.Context, notice Notice) {
	s.notifier.Notify(ctx, notice)
}

func (s *Store) publish(snapshot Snapshot) {
	if s.sink != nil {
		s.sink.Publish(snapshot)
	}
}

func warning(message string) Notice {
	return Notice{Level: enums.NoticeLevelWarning, Message: message}
}
