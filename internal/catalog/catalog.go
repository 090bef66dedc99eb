package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/tableside/pkg/enums"
	"github.com/shopspring/decimal"
)

// DishEntry is the menu record for a single dish.
type DishEntry struct {
	ID          int64            `json:"dish_id"`
	Name        string           `json:"name"`
	Price       decimal.Decimal  `json:"price"`
	Description string           `json:"description"`
	Image       string           `json:"image"`
	Status      enums.DishStatus `json:"status"`
}

// SetDish is one component of a set menu.
type SetDish struct {
	DishID   int64           `json:"dish_id"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// SetEntry is the menu record for a set.
type SetEntry struct {
	ID          int64           `json:"set_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Dishes      []SetDish       `json:"dishes"`
}

// Menu is the full catalog payload returned by the menu endpoint.
type Menu struct {
	Dishes []DishEntry `json:"dishes"`
	Sets   []SetEntry  `json:"sets"`
}

// Reader resolves catalog entries by id.
type Reader interface {
	Dish(id int64) (DishEntry, bool)
	Set(id int64) (SetEntry, bool)
}

// MenuSource loads the menu from upstream.
type MenuSource interface {
	FetchMenu(ctx context.Context) (*Menu, error)
}

// Cache holds dish and set entries keyed by id. Entries are written as
// the menu is loaded or rendered and only read by the order store.
type Cache struct {
	mu     sync.RWMutex
	dishes map[int64]DishEntry
	sets   map[int64]SetEntry
}

func NewCache() *Cache {
	return &Cache{
		dishes: make(map[int64]DishEntry),
		sets:   make(map[int64]SetEntry),
	}
}

func (c *Cache) PutDish(entry DishEntry) {
	c.mu.Lock()
	c.dishes[entry.ID] = entry
	c.mu.Unlock()
}

func (c *Cache) PutSet(entry SetEntry) {
	entry.Dishes = append([]SetDish(nil), entry.Dishes...)
	c.mu.Lock()
	c.sets[entry.ID] = entry
	c.mu.Unlock()
}

// PutMenu stores every entry of menu, replacing existing ids.
func (c *Cache) PutMenu(menu Menu) {
	for _, dish := range menu.Dishes {
		c.PutDish(dish)
	}
	for _, set := range menu.Sets {
		c.PutSet(set)
	}
}

func (c *Cache) Dish(id int64) (DishEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.dishes[id]
	return entry, ok
}

func (c *Cache) Set(id int64) (SetEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.sets[id]
	if !ok {
		return SetEntry{}, false
	}
	entry.Dishes = append([]SetDish(nil), entry.Dishes...)
	return entry, true
}

// Len returns the number of cached dishes and sets.
func (c *Cache) Len() (dishes, sets int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.dishes), len(c.sets)
}

// Load fetches the menu from src and stores it.
func (c *Cache) Load(ctx context.Context, src MenuSource) error {
	if src == nil {
		return fmt.Errorf("menu source is required")
	}
	menu, err := src.FetchMenu(ctx)
	if err != nil {
		return fmt.Errorf("load menu: %w", err)
	}
	if menu == nil {
		return nil
	}
	c.PutMenu(*menu)
	return nil
}
