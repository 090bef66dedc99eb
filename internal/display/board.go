package display

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/tableside/internal/orders"
	"github.com/angelmondragon/tableside/internal/realtime"
	"github.com/angelmondragon/tableside/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableside/pkg/errors"
	"github.com/angelmondragon/tableside/pkg/logger"
	"github.com/angelmondragon/tableside/pkg/pagination"
)

// OrderLister fetches a page of orders from the order service.
type OrderLister interface {
	ListOrders(ctx context.Context, params pagination.Params) (*orders.OrderPage, error)
}

// Sender delivers a realtime message.
type Sender interface {
	IsConnected() bool
	Send(ctx context.Context, msg realtime.Message) error
}

type BoardParams struct {
	Lister   OrderLister
	Sender   Sender
	PageSize int
	// Ack sends a create_message back to whoever placed a new order.
	Ack     bool
	UserID  int64
	Logger  *logger.Logger
	Clock   func() time.Time
	AckText string
}

// Ack is the message body sent back to an order's originator.
type Ack struct {
	OrderID int64  `json:"order_id"`
	Text    string `json:"text"`
}

// Board keeps the most recently fetched page of orders for a kitchen or
// admin screen and refetches it whenever a new order is announced.
type Board struct {
	lister   OrderLister
	sender   Sender
	pageSize int
	ack      bool
	userID   int64
	ackText  string
	logg     *logger.Logger
	clock    func() time.Time

	refreshMu sync.Mutex

	mu          sync.RWMutex
	page        *orders.OrderPage
	params      pagination.Params
	refreshedAt time.Time
}

func NewBoard(params BoardParams) (*Board, error) {
	if params.Lister == nil {
		return nil, fmt.Errorf("order lister is required")
	}
	if params.Ack && params.Sender == nil {
		return nil, fmt.Errorf("sender is required to acknowledge orders")
	}
	if params.Ack && params.UserID <= 0 {
		return nil, fmt.Errorf("user id is required to acknowledge orders")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Clock == nil {
		params.Clock = time.Now
	}
	if params.AckText == "" {
		params.AckText = "Your order was received by the kitchen"
	}
	return &Board{
		lister:   params.Lister,
		sender:   params.Sender,
		pageSize: pagination.NormalizePageSize(params.PageSize),
		ack:      params.Ack,
		userID:   params.UserID,
		ackText:  params.AckText,
		logg:     params.Logger,
		clock:    params.Clock,
		params:   pagination.Params{Page: 1, PageSize: pagination.NormalizePageSize(params.PageSize)},
	}, nil
}

// Refresh refetches the page the board currently shows.
func (b *Board) Refresh(ctx context.Context) (*orders.OrderPage, error) {
	b.mu.RLock()
	params := b.params
	b.mu.RUnlock()
	return b.Fetch(ctx, params)
}

// Fetch loads the given page and makes it the one the board shows.
// Concurrent fetches are serialized so the newest request wins.
func (b *Board) Fetch(ctx context.Context, params pagination.Params) (*orders.OrderPage, error) {
	if params.PageSize <= 0 {
		params.PageSize = b.pageSize
	}
	params = params.Normalize()

	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()

	page, err := b.lister.ListOrders(ctx, params)
	if err != nil {
		b.logg.Error(b.logg.WithField(ctx, "page", params.Page), "order board refresh failed", err)
		return nil, err
	}
	if page == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order listing returned no page")
	}

	b.mu.Lock()
	b.page = page
	b.params = params
	b.refreshedAt = b.clock()
	b.mu.Unlock()
	return page, nil
}

// Latest returns the last fetched page and when it was fetched. The page is
// nil until the first successful refresh.
func (b *Board) Latest() (*orders.OrderPage, time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.page, b.refreshedAt
}

// HandleMessage reacts to {order,new_order} frames. Other frames are ignored.
func (b *Board) HandleMessage(ctx context.Context, msg realtime.Message) error {
	if !msg.Is(enums.MessageTypeOrder, enums.MessageActionNewOrder) {
		return nil
	}
	var announced newOrder
	if err := msg.Decode(&announced); err != nil {
		return err
	}
	ctx = b.logg.WithOrderID(ctx, announced.OrderID)
	b.logg.Info(ctx, "new order announced")

	if _, err := b.Refresh(ctx); err != nil {
		return err
	}
	if b.ack {
		b.acknowledge(ctx, announced)
	}
	return nil
}

// Attach subscribes the board to a realtime client and returns the unregister func.
func (b *Board) Attach(client interface {
	OnMessage(realtime.MessageHandler) func()
}) func() {
	return client.OnMessage(b.HandleMessage)
}

type newOrder struct {
	OrderID int64 `json:"order_id"`
	Order   struct {
		IsGuest bool   `json:"is_guest"`
		GuestID *int64 `json:"guest_id"`
		UserID  *int64 `json:"user_id"`
	} `json:"order"`
}

func (n newOrder) originator() int64 {
	if n.Order.IsGuest && n.Order.GuestID != nil {
		return *n.Order.GuestID
	}
	if n.Order.UserID != nil {
		return *n.Order.UserID
	}
	if n.Order.GuestID != nil {
		return *n.Order.GuestID
	}
	return 0
}

func (b *Board) acknowledge(ctx context.Context, announced newOrder) {
	to := announced.originator()
	if to <= 0 {
		b.logg.Warn(ctx, "new order has no originator to acknowledge")
		return
	}
	if !b.sender.IsConnected() {
		b.logg.Info(ctx, "realtime not connected; skipping order acknowledgement")
		return
	}
	msg, err := realtime.DirectMessage(enums.SessionRoleUser, b.userID, to, Ack{OrderID: announced.OrderID, Text: b.ackText})
	if err != nil {
		b.logg.Error(ctx, "failed to build order acknowledgement", err)
		return
	}
	if err := b.sender.Send(ctx, msg); err != nil {
		b.logg.Warn(b.logg.WithField(ctx, "error", err.Error()), "order acknowledgement not delivered")
	}
}

// MarshalJSON renders the board state for the HTTP surface.
func (b *Board) MarshalJSON() ([]byte, error) {
	page, at := b.Latest()
	view := struct {
		Orders      []orders.OrderDetail `json:"orders"`
		Pagination  *pagination.Meta     `json:"pagination,omitempty"`
		RefreshedAt *time.Time           `json:"refreshed_at,omitempty"`
	}{Orders: []orders.OrderDetail{}}
	if page != nil {
		view.Orders = append(view.Orders, page.Data...)
		meta := page.Pagination
		view.Pagination = &meta
		view.RefreshedAt = &at
	}
	return json.Marshal(view)
}
