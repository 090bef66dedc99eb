package orders

import (
	"encoding/json"
	"testing"

	"github.com/angelmondragon/tableside/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableside/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func sampleAggregate() Aggregate {
	return Aggregate{
		TableNumber: 4,
		TableToken:  "tbl",
		Topping:     "extra herbs",
		ChiliNumber: 2,
		DishItems:   []DishLine{{DishID: 7, Quantity: 2}},
		SetItems:    []SetLine{{SetID: 100, Quantity: 1}},
		Status:      enums.OrderStatusProcessing,
	}
}

func TestBuildRequestOwnershipMatchesGuestFlag(t *testing.T) {
	summary := Summary{TotalPrice: decimal.NewFromInt(150)}

	req := BuildCreateOrderRequest(sampleAggregate(), summary, Identity{IsGuest: true, GuestID: 31, UserID: 99, Name: "Table guest"}, "track-1")
	require.True(t, req.IsGuest)
	require.NotNil(t, req.GuestID)
	require.Equal(t, int64(31), *req.GuestID)
	require.Nil(t, req.UserID)

	req = BuildCreateOrderRequest(sampleAggregate(), summary, Identity{GuestID: 31, UserID: 99, Name: "Ana"}, "track-2")
	require.False(t, req.IsGuest)
	require.Nil(t, req.GuestID)
	require.NotNil(t, req.UserID)
	require.Equal(t, int64(99), *req.UserID)
	require.Equal(t, "Ana", req.OrderName)
}

func TestBuildRequestWireShape(t *testing.T) {
	req := BuildCreateOrderRequest(sampleAggregate(), Summary{TotalPrice: decimal.NewFromInt(150)}, guest, "track-1")
	require.Equal(t, enums.OrderStatusPending, req.Status)

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	for _, key := range []string{
		"guest_id", "user_id", "is_guest", "table_number", "status", "total_price",
		"dish_items", "set_items", "topping", "tracking_order", "takeAway",
		"chiliNumber", "table_token", "order_name",
	} {
		require.Contains(t, decoded, key)
	}
	require.Nil(t, decoded["user_id"])
	require.Equal(t, "pending", decoded["status"])
	require.Equal(t, float64(150), decoded["total_price"])
	require.Contains(t, string(raw), `"total_price":150`)
	require.Equal(t, []any{map[string]any{"dish_id": float64(7), "quantity": float64(2)}}, decoded["dish_items"])
}

func TestDisplayNameFallbacks(t *testing.T) {
	require.Equal(t, "Guest 31", displayName(Identity{IsGuest: true, GuestID: 31}))
	require.Equal(t, "a@b.c", displayName(Identity{UserID: 2, Email: "a@b.c"}))
	require.Equal(t, "User 2", displayName(Identity{UserID: 2}))
}

func TestValidateCreateOrderRequest(t *testing.T) {
	valid := BuildCreateOrderRequest(sampleAggregate(), Summary{TotalPrice: decimal.NewFromInt(150)}, guest, "track-1")
	require.NoError(t, ValidateCreateOrderRequest(valid))

	cases := map[string]struct {
		mutate func(r *CreateOrderRequest)
		field  string
	}{
		"both owners": {func(r *CreateOrderRequest) { id := int64(5); r.UserID = &id }, "guest_id"},
		"no owner":    {func(r *CreateOrderRequest) { r.IsGuest = false; r.GuestID = nil }, "user_id"},
		"no items":    {func(r *CreateOrderRequest) { r.DishItems = nil; r.SetItems = nil }, "dish_items"},
		"not pending": {func(r *CreateOrderRequest) { r.Status = enums.OrderStatusCompleted }, "status"},
		"no table":    {func(r *CreateOrderRequest) { r.TableToken = "" }, "table_number"},
		"bad qty":     {func(r *CreateOrderRequest) { r.DishItems = []DishLine{{DishID: 7, Quantity: 0}} }, "dish_items[0].quantity"},
		"dup dish":    {func(r *CreateOrderRequest) { r.DishItems = []DishLine{{7, 1}, {7, 2}} }, "dish_items"},
		"no tracking": {func(r *CreateOrderRequest) { r.TrackingOrder = "" }, "tracking_order"},
		"negative":    {func(r *CreateOrderRequest) { r.TotalPrice = decimal.NewFromInt(-1) }, "total_price"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := BuildCreateOrderRequest(sampleAggregate(), Summary{TotalPrice: decimal.NewFromInt(150)}, guest, "track-1")
			tc.mutate(&req)
			err := ValidateCreateOrderRequest(req)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.Equal(t, pkgerrors.CodeValidation, typed.Code())
			require.Contains(t, typed.Details().(map[string]string), tc.field)
		})
	}
}

func TestTakeAwayNeedsNoTable(t *testing.T) {
	agg := sampleAggregate()
	agg.TakeAway = true
	agg.TableNumber = 0
	agg.TableToken = ""
	req := BuildCreateOrderRequest(agg, Summary{TotalPrice: decimal.NewFromInt(150)}, guest, "track-1")
	require.NoError(t, ValidateCreateOrderRequest(req))
}
