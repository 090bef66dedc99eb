package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/tableside/internal/catalog"
	"github.com/angelmondragon/tableside/internal/tables"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recordingNotifier) Notify(ctx context.Context, notice Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
}

func (r *recordingNotifier) all() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

type recordingSink struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

func (r *recordingSink) Publish(snapshot Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snapshot)
}

func (r *recordingSink) last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshots[len(r.snapshots)-1]
}

func testCatalog() *catalog.Cache {
	c := catalog.NewCache()
	c.PutDish(catalog.DishEntry{ID: 7, Name: "Pho", Price: decimal.NewFromInt(45), Description: "beef noodle soup", Image: "pho.jpg"})
	c.PutDish(catalog.DishEntry{ID: 8, Name: "Spring rolls", Price: decimal.RequireFromString("12.50")})
	c.PutDish(catalog.DishEntry{ID: 9, Name: "Iced tea", Price: decimal.NewFromInt(5)})
	c.PutSet(catalog.SetEntry{
		ID:    100,
		Name:  "Lunch set",
		Price: decimal.NewFromInt(60),
		Dishes: []catalog.SetDish{
			{DishID: 7, Quantity: 1, Price: decimal.NewFromInt(45)},
			{DishID: 9, Quantity: 1, Price: decimal.NewFromInt(5)},
		},
	})
	return c
}

var guest = Identity{IsGuest: true, GuestID: 31, Name: "Table guest"}

func newTestStore(t *testing.T) (*Store, *recordingNotifier, *recordingSink) {
	t.Helper()
	notifier := &recordingNotifier{}
	sink := &recordingSink{}
	clock := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	store, err := NewStore(StoreParams{
		SessionID: "guest-31-tbl",
		Catalog:   testCatalog(),
		Owner:     guest,
		Table:     tables.Identity{Number: 4, Token: "tbl"},
		Notifier:  notifier,
		Sink:      sink,
		Clock: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})
	require.NoError(t, err)
	return store, notifier, sink
}
