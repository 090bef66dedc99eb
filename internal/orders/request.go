package orders

import (
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/tableside/pkg/enums"
	"github.com/angelmondragon/tableside/pkg/pagination"
	"github.com/angelmondragon/tableside/pkg/validators"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// CreateOrderRequest is the body posted to the order creation endpoint.
// Line items carry ids and quantities only.
type CreateOrderRequest struct {
	GuestID       *int64            `json:"guest_id"`
	UserID        *int64            `json:"user_id"`
	IsGuest       bool              `json:"is_guest"`
	TableNumber   int               `json:"table_number" validate:"gte=0"`
	Status        enums.OrderStatus `json:"status" validate:"required"`
	TotalPrice    decimal.Decimal   `json:"total_price" validate:"gte=0"`
	DishItems     []DishLine        `json:"dish_items" validate:"unique=DishID,dive"`
	SetItems      []SetLine         `json:"set_items" validate:"unique=SetID,dive"`
	Topping       string            `json:"topping" validate:"max=500"`
	TrackingOrder string            `json:"tracking_order" validate:"required"`
	TakeAway      bool              `json:"takeAway"`
	ChiliNumber   int               `json:"chiliNumber" validate:"gte=0,max=10"`
	TableToken    string            `json:"table_token"`
	OrderName     string            `json:"order_name" validate:"required,max=120"`
}

// OrderPage is the paginated order listing.
type OrderPage struct {
	Data       []OrderDetail   `json:"data"`
	Pagination pagination.Meta `json:"pagination"`
}

// BuildCreateOrderRequest serializes agg for submission. Ownership follows
// identity at call time, status is always pending and the total comes from summary.
func BuildCreateOrderRequest(agg Aggregate, summary Summary, identity Identity, tracking string) CreateOrderRequest {
	guestID, userID := identity.ownership()
	return CreateOrderRequest{
		GuestID:       guestID,
		UserID:        userID,
		IsGuest:       identity.IsGuest,
		TableNumber:   agg.TableNumber,
		Status:        enums.OrderStatusPending,
		TotalPrice:    summary.TotalPrice,
		DishItems:     append([]DishLine{}, agg.DishItems...),
		SetItems:      append([]SetLine{}, agg.SetItems...),
		Topping:       agg.Topping,
		TrackingOrder: tracking,
		TakeAway:      agg.TakeAway,
		ChiliNumber:   agg.ChiliNumber,
		TableToken:    agg.TableToken,
		OrderName:     displayName(identity),
	}
}

func displayName(identity Identity) string {
	if name := strings.TrimSpace(identity.Name); name != "" {
		return name
	}
	if email := strings.TrimSpace(identity.Email); email != "" {
		return email
	}
	if identity.IsGuest {
		return fmt.Sprintf("Guest %d", identity.GuestID)
	}
	return fmt.Sprintf("User %d", identity.UserID)
}

const (
	tagOwnerExclusive = "owner_exclusive"
	tagHasItems       = "order_has_items"
	tagPending        = "order_pending"
	tagTableRequired  = "table_required"
)

var registerRules sync.Once

// ValidateCreateOrderRequest checks field tags plus the cross-field rules:
// ownership matches is_guest, at least one line item, status pending, and a
// table unless the order is takeaway.
func ValidateCreateOrderRequest(req CreateOrderRequest) error {
	registerRules.Do(func() {
		validators.RegisterMessage(tagOwnerExclusive, "exactly one of guest_id or user_id must be set, matching is_guest")
		validators.RegisterMessage(tagHasItems, "order must contain at least one dish or set")
		validators.RegisterMessage(tagPending, "new orders must be pending")
		validators.RegisterMessage(tagTableRequired, "table number and token are required unless the order is takeaway")
		validators.RegisterStructRules(createOrderRules, CreateOrderRequest{})
	})
	return validators.Struct(req)
}

func createOrderRules(sl validator.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)

	if req.IsGuest {
		if req.GuestID == nil || *req.GuestID <= 0 || req.UserID != nil {
			sl.ReportError(req.GuestID, "guest_id", "GuestID", tagOwnerExclusive, "")
		}
	} else if req.UserID == nil || *req.UserID <= 0 || req.GuestID != nil {
		sl.ReportError(req.UserID, "user_id", "UserID", tagOwnerExclusive, "")
	}

	if len(req.DishItems) == 0 && len(req.SetItems) == 0 {
		sl.ReportError(req.DishItems, "dish_items", "DishItems", tagHasItems, "")
	}

	if req.Status != enums.OrderStatusPending {
		sl.ReportError(req.Status, "status", "Status", tagPending, "")
	}

	if !req.TakeAway && (req.TableNumber <= 0 || strings.TrimSpace(req.TableToken) == "") {
		sl.ReportError(req.TableNumber, "table_number", "TableNumber", tagTableRequired, "")
	}
}
