package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMenu struct {
	menu *Menu
	err  error
}

func (s stubMenu) FetchMenu(ctx context.Context) (*Menu, error) {
	return s.menu, s.err
}

func TestCacheLookups(t *testing.T) {
	c := NewCache()
	c.PutDish(DishEntry{ID: 1, Name: "Pho", Price: decimal.NewFromInt(45)})

	dish, ok := c.Dish(1)
	require.True(t, ok)
	assert.Equal(t, "Pho", dish.Name)

	_, ok = c.Dish(2)
	assert.False(t, ok)
}

func TestCacheSetIsCopied(t *testing.T) {
	c := NewCache()
	dishes := []SetDish{{DishID: 1, Quantity: 2, Price: decimal.NewFromInt(10)}}
	c.PutSet(SetEntry{ID: 9, Name: "Lunch", Dishes: dishes})
	dishes[0].Quantity = 99

	set, ok := c.Set(9)
	require.True(t, ok)
	require.Equal(t, 2, set.Dishes[0].Quantity)

	set.Dishes[0].Quantity = 50
	again, _ := c.Set(9)
	require.Equal(t, 2, again.Dishes[0].Quantity)
}

func TestCacheLoad(t *testing.T) {
	c := NewCache()
	err := c.Load(context.Background(), stubMenu{menu: &Menu{
		Dishes: []DishEntry{{ID: 1}, {ID: 2}},
		Sets:   []SetEntry{{ID: 3}},
	}})
	require.NoError(t, err)
	dishes, sets := c.Len()
	require.Equal(t, 2, dishes)
	require.Equal(t, 1, sets)

	err = c.Load(context.Background(), stubMenu{err: errors.New("offline")})
	require.ErrorContains(t, err, "offline")
	require.Error(t, c.Load(context.Background(), nil))
}
