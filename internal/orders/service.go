package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/tableside/internal/realtime"
	"github.com/angelmondragon/tableside/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableside/pkg/errors"
	"github.com/angelmondragon/tableside/pkg/logger"
	"github.com/angelmondragon/tableside/pkg/metrics"
	"github.com/google/uuid"
)

const (
	resultSuccess         = "success"
	resultUnauthenticated = "unauthenticated"
	resultInvalid         = "invalid"
	resultFailed          = "failed"
	resultBusy            = "busy"
)

// OrderCreator posts a new order upstream.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreatedOrder, error)
}

// Pusher is the realtime side of a submission.
type Pusher interface {
	IsConnected() bool
	Send(ctx context.Context, msg realtime.Message) error
}

// IdentitySource reports the authenticated identity, if any.
type IdentitySource interface {
	Identity() (Identity, bool)
}

// StaticIdentity is an IdentitySource fixed for the life of a session.
type StaticIdentity struct {
	Value Identity
}

func (s StaticIdentity) Identity() (Identity, bool) {
	return s.Value, s.Value.Valid()
}

// Service places orders built in a Store.
type Service interface {
	PlaceOrder(ctx context.Context) (*SubmittedOrder, error)
	Loading() bool
}

type ServiceParams struct {
	Store    *Store
	Creator  OrderCreator
	Identity IdentitySource
	Pusher   Pusher
	Login    LoginPrompter
	Mode     enums.ValidationMode
	Metrics  *metrics.OrderMetrics
	Logger   *logger.Logger
	Tracking func() string
}

type service struct {
	store    *Store
	creator  OrderCreator
	identity IdentitySource
	pusher   Pusher
	login    LoginPrompter
	mode     enums.ValidationMode
	metrics  *metrics.OrderMetrics
	logg     *logger.Logger
	tracking func() string
}

func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.Creator == nil {
		return nil, fmt.Errorf("order creator required")
	}
	if params.Identity == nil {
		return nil, fmt.Errorf("identity source required")
	}
	if params.Mode == "" {
		params.Mode = enums.ValidationModeStrict
	}
	if !params.Mode.IsValid() {
		return nil, fmt.Errorf("invalid validation mode %q", params.Mode)
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Tracking == nil {
		params.Tracking = uuid.NewString
	}
	return &service{
		store:    params.Store,
		creator:  params.Creator,
		identity: params.Identity,
		pusher:   params.Pusher,
		login:    params.Login,
		mode:     params.Mode,
		metrics:  params.Metrics,
		logg:     params.Logger,
		tracking: params.Tracking,
	}, nil
}

func (s *service) Loading() bool {
	return s.store.Loading()
}

// PlaceOrder submits the current aggregate. The aggregate is cleared only
// when the server accepted the order; on any failure it is left untouched
// and the error is returned after an error notice. A missing identity
// prompts for login and returns UNAUTHORIZED without a notice, so callers
// should not surface that error to the user again.
func (s *service) PlaceOrder(ctx context.Context) (*SubmittedOrder, error) {
	started := time.Now()
	ctx = s.logg.WithSessionID(ctx, s.store.SessionID())

	if !s.store.beginLoading() {
		s.metrics.ObserveSubmission(resultBusy, time.Since(started))
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an order is already being placed")
	}
	defer s.store.endLoading()

	identity, ok := s.identity.Identity()
	if !ok {
		if s.login != nil {
			s.login.PromptLogin(ctx)
		}
		s.metrics.ObserveSubmission(resultUnauthenticated, time.Since(started))
		s.logg.Info(ctx, "order placement needs login")
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required to place an order")
	}
	ctx = s.logg.WithRole(ctx, identity.Role().String())

	current := s.store.currentOrEmpty()
	summary := Summarize(current, s.store.catalog)
	req := BuildCreateOrderRequest(*current, summary, identity, s.tracking())
	ctx = s.logg.WithField(ctx, "tracking_order", req.TrackingOrder)

	if err := ValidateCreateOrderRequest(req); err != nil {
		s.metrics.IncValidationFailure(string(s.mode))
		if s.mode.Blocks() {
			return nil, s.fail(ctx, resultInvalid, started, err)
		}
		s.logg.Warn(s.logg.WithField(ctx, "validation", pkgerrors.As(err).Details()), "order request failed validation; submitting anyway")
	}

	created, err := s.creator.CreateOrder(ctx, req)
	if err != nil {
		return nil, s.fail(ctx, resultFailed, started, err)
	}
	if created == nil || created.ID <= 0 {
		return nil, s.fail(ctx, resultFailed, started, pkgerrors.New(pkgerrors.CodeDependency, "order service did not return an order id"))
	}
	ctx = s.logg.WithOrderID(ctx, created.ID)

	s.push(ctx, identity, created.ID, req)

	now := time.Now()
	order := SubmittedOrder{
		ID:        created.ID,
		Request:   req,
		Status:    enums.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if created.Status.IsValid() {
		order.Status = created.Status
	}
	if !created.CreatedAt.IsZero() {
		order.CreatedAt = created.CreatedAt
	}
	if !created.UpdatedAt.IsZero() {
		order.UpdatedAt = created.UpdatedAt
	}

	s.store.notify(ctx, Notice{Level: enums.NoticeLevelSuccess, Message: "Your order has been placed"})
	s.store.completeSubmission(order)
	s.metrics.ObserveSubmission(resultSuccess, time.Since(started))
	s.logg.Info(ctx, "order placed")
	return &order, nil
}

// push tells other connected clients about the new order. It is skipped when
// the socket is closed; the order itself already succeeded.
func (s *service) push(ctx context.Context, identity Identity, orderID int64, req CreateOrderRequest) {
	if s.pusher == nil || !s.pusher.IsConnected() {
		s.logg.Info(ctx, "realtime not connected; skipping new order push")
		return
	}
	msg, err := realtime.NewOrderMessage(identity.Role(), orderID, req)
	if err != nil {
		s.logg.Error(ctx, "failed to build new order push", err)
		return
	}
	if err := s.pusher.Send(ctx, msg); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "new order push not delivered")
	}
}

func (s *service) fail(ctx context.Context, result string, started time.Time, err error) error {
	s.metrics.ObserveSubmission(result, time.Since(started))
	s.logg.Error(ctx, "order placement failed", err)
	s.store.notify(ctx, Notice{Level: enums.NoticeLevelError, Message: noticeMessage(err)})
	return err
}

// noticeMessage picks the most useful text for the person ordering.
func noticeMessage(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "Could not place your order. Please try again."
	}
	if typed.Code() == pkgerrors.CodeValidation {
		if details, ok := typed.Details().(map[string]string); ok {
			for _, key := range []string{"dish_items", "guest_id", "user_id", "table_number", "order_name"} {
				if msg, ok := details[key]; ok {
					return msg
				}
			}
		}
	}
	if msg := typed.Message(); msg != "" {
		return msg
	}
	return pkgerrors.MetadataFor(typed.Code()).PublicMessage
}
