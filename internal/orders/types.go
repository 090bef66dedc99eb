package orders

import (
	"time"

	"github.com/angelmondragon/tableside/internal/tables"
	"github.com/angelmondragon/tableside/pkg/enums"
	"github.com/shopspring/decimal"
)

// DishLine references a catalog dish by id. Catalog details are resolved on read.
type DishLine struct {
	DishID   int64 `json:"dish_id" validate:"gt=0"`
	Quantity int   `json:"quantity" validate:"gt=0"`
}

// SetLine references a catalog set by id.
type SetLine struct {
	SetID    int64 `json:"set_id" validate:"gt=0"`
	Quantity int   `json:"quantity" validate:"gt=0"`
}

// Aggregate is the order under construction. ID stays 0 until the server assigns one.
type Aggregate struct {
	ID          int64             `json:"id"`
	IsGuest     bool              `json:"is_guest"`
	GuestID     *int64            `json:"guest_id"`
	UserID      *int64            `json:"user_id"`
	TableNumber int               `json:"table_number"`
	TableToken  string            `json:"table_token"`
	Topping     string            `json:"topping"`
	TakeAway    bool              `json:"takeAway"`
	ChiliNumber int               `json:"chiliNumber"`
	DishItems   []DishLine        `json:"dish_items"`
	SetItems    []SetLine         `json:"set_items"`
	Status      enums.OrderStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Version     uint64            `json:"version"`
}

// IsEmpty reports whether the aggregate has no line items.
func (a *Aggregate) IsEmpty() bool {
	return a == nil || (len(a.DishItems) == 0 && len(a.SetItems) == 0)
}

func (a *Aggregate) clone() *Aggregate {
	if a == nil {
		return nil
	}
	out := *a
	out.DishItems = append([]DishLine{}, a.DishItems...)
	out.SetItems = append([]SetLine{}, a.SetItems...)
	if a.GuestID != nil {
		id := *a.GuestID
		out.GuestID = &id
	}
	if a.UserID != nil {
		id := *a.UserID
		out.UserID = &id
	}
	return &out
}

func (a *Aggregate) dishIndex(dishID int64) int {
	for i, line := range a.DishItems {
		if line.DishID == dishID {
			return i
		}
	}
	return -1
}

func (a *Aggregate) setIndex(setID int64) int {
	for i, line := range a.SetItems {
		if line.SetID == setID {
			return i
		}
	}
	return -1
}

func (a *Aggregate) applyOwner(owner Identity) {
	a.IsGuest = owner.IsGuest
	a.GuestID, a.UserID = owner.ownership()
}

func (a *Aggregate) applyTable(table tables.Identity) {
	a.TableNumber = table.Number
	a.TableToken = table.Token
}

// Identity is the authenticated party placing orders. Exactly one of GuestID
// and UserID is meaningful, picked by IsGuest.
type Identity struct {
	IsGuest bool   `json:"is_guest"`
	GuestID int64  `json:"guest_id,omitempty"`
	UserID  int64  `json:"user_id,omitempty"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

// Valid reports whether the id matching IsGuest is set.
func (i Identity) Valid() bool {
	if i.IsGuest {
		return i.GuestID > 0
	}
	return i.UserID > 0
}

func (i Identity) Role() enums.SessionRole {
	if i.IsGuest {
		return enums.SessionRoleGuest
	}
	return enums.SessionRoleUser
}

// SubjectID is the id the realtime server knows this identity by.
func (i Identity) SubjectID() int64 {
	if i.IsGuest {
		return i.GuestID
	}
	return i.UserID
}

func (i Identity) ownership() (guestID, userID *int64) {
	if !i.Valid() {
		return nil, nil
	}
	id := i.SubjectID()
	if i.IsGuest {
		return &id, nil
	}
	return nil, &id
}

// SubmittedOrder is an order the server accepted during this session.
type SubmittedOrder struct {
	ID        int64              `json:"id"`
	Request   CreateOrderRequest `json:"request"`
	Status    enums.OrderStatus  `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Snapshot is the persisted slice of a session: the current aggregate, the
// submitted list and the table. Version grows with every store change.
type Snapshot struct {
	SessionID string           `json:"session_id"`
	Version   uint64           `json:"version"`
	Current   *Aggregate       `json:"current_order,omitempty"`
	Submitted []SubmittedOrder `json:"submitted"`
	Table     tables.Identity  `json:"table"`
	TakenAt   time.Time        `json:"taken_at"`
}

// CreatedOrder is the server echo for a created order.
type CreatedOrder struct {
	ID        int64             `json:"id"`
	Status    enums.OrderStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// OrderDetail is one row of the paginated order listing.
type OrderDetail struct {
	ID          int64             `json:"id"`
	GuestID     *int64            `json:"guest_id"`
	UserID      *int64            `json:"user_id"`
	IsGuest     bool              `json:"is_guest"`
	TableNumber int               `json:"table_number"`
	Status      enums.OrderStatus `json:"status"`
	TotalPrice  decimal.Decimal   `json:"total_price"`
	Topping     string            `json:"topping"`
	TakeAway    bool              `json:"takeAway"`
	ChiliNumber int               `json:"chiliNumber"`
	OrderName   string            `json:"order_name"`
	DishItems   []DishLine        `json:"dish_items"`
	SetItems    []SetLine         `json:"set_items"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
