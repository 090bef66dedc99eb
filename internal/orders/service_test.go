package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/tableside/internal/realtime"
	"github.com/angelmondragon/tableside/internal/tables"
	"github.com/angelmondragon/tableside/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableside/pkg/errors"
	"github.com/angelmondragon/tableside/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type stubCreator struct {
	mu       sync.Mutex
	requests []CreateOrderRequest
	created  *CreatedOrder
	err      error
	block    chan struct{}
	entered  chan struct{}
}

func (s *stubCreator) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreatedOrder, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.entered != nil {
		close(s.entered)
	}
	if s.block != nil {
		<-s.block
	}
	return s.created, s.err
}

func (s *stubCreator) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type stubPusher struct {
	connected bool
	sent      []realtime.Message
	err       error
}

func (s *stubPusher) IsConnected() bool { return s.connected }

func (s *stubPusher) Send(ctx context.Context, msg realtime.Message) error {
	s.sent = append(s.sent, msg)
	return s.err
}

type serviceFixture struct {
	store    *Store
	notifier *recordingNotifier
	creator  *stubCreator
	pusher   *stubPusher
	prompts  int
	svc      Service
}

func newServiceFixture(t *testing.T, identity Identity, mode enums.ValidationMode) *serviceFixture {
	t.Helper()
	store, notifier, _ := newTestStore(t)
	f := &serviceFixture{
		store:    store,
		notifier: notifier,
		creator:  &stubCreator{created: &CreatedOrder{ID: 501, Status: enums.OrderStatusPending}},
		pusher:   &stubPusher{connected: true},
	}
	svc, err := NewService(ServiceParams{
		Store:    store,
		Creator:  f.creator,
		Identity: StaticIdentity{Value: identity},
		Pusher:   f.pusher,
		Login:    LoginPrompterFunc(func(ctx context.Context) { f.prompts++ }),
		Mode:     mode,
		Metrics:  metrics.NewOrderMetrics(prometheus.NewRegistry()),
		Tracking: func() string { return "track-fixed" },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestPlaceOrderSuccessClearsAggregate(t *testing.T) {
	f := newServiceFixture(t, guest, enums.ValidationModeStrict)
	ctx := context.Background()
	f.store.AddDish(ctx, 7, 2)
	f.store.AddSet(ctx, 100, 1)

	order, err := f.svc.PlaceOrder(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(501), order.ID)
	require.False(t, f.svc.Loading())

	require.Equal(t, 1, f.creator.calls())
	req := f.creator.requests[0]
	require.Equal(t, "track-fixed", req.TrackingOrder)
	require.Equal(t, "150", req.TotalPrice.String())
	require.Equal(t, "Table guest", req.OrderName)

	require.True(t, f.store.Current().IsEmpty())
	require.Len(t, f.store.Submitted(), 1)
	require.Equal(t, int64(501), f.store.Submitted()[0].ID)

	require.Len(t, f.pusher.sent, 1)
	require.True(t, f.pusher.sent[0].Is(enums.MessageTypeOrder, enums.MessageActionNewOrder))
	var payload struct {
		OrderID int64              `json:"order_id"`
		Order   CreateOrderRequest `json:"order"`
	}
	require.NoError(t, f.pusher.sent[0].Decode(&payload))
	require.Equal(t, int64(501), payload.OrderID)
	require.Equal(t, req.DishItems, payload.Order.DishItems)

	notices := f.notifier.all()
	require.Equal(t, enums.NoticeLevelSuccess, notices[len(notices)-1].Level)
}

func TestPlaceOrderFailureKeepsAggregate(t *testing.T) {
	f := newServiceFixture(t, guest, enums.ValidationModeStrict)
	f.creator.err = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("connection reset"), "order service unreachable")
	ctx := context.Background()
	f.store.AddDish(ctx, 7, 2)
	before := f.store.Current()

	_, err := f.svc.PlaceOrder(ctx)
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.False(t, f.svc.Loading())

	after := f.store.Current()
	require.Equal(t, before.DishItems, after.DishItems)
	require.Equal(t, before.Version, after.Version)
	require.Empty(t, f.store.Submitted())
	require.Empty(t, f.pusher.sent)

	notices := f.notifier.all()
	require.Equal(t, Notice{Level: enums.NoticeLevelError, Message: "order service unreachable"}, notices[len(notices)-1])
}

func TestPlaceOrderWithoutIdentityPromptsLogin(t *testing.T) {
	f := newServiceFixture(t, Identity{IsGuest: true}, enums.ValidationModeStrict)
	f.store.AddDish(context.Background(), 7, 1)

	_, err := f.svc.PlaceOrder(context.Background())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	require.Equal(t, 1, f.prompts)
	require.Zero(t, f.creator.calls())
	require.Empty(t, f.notifier.all())
	require.False(t, f.store.Current().IsEmpty())
}

func TestStrictValidationBlocksSubmission(t *testing.T) {
	f := newServiceFixture(t, guest, enums.ValidationModeStrict)
	f.store.Clear(context.Background())

	_, err := f.svc.PlaceOrder(context.Background())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Zero(t, f.creator.calls())

	notices := f.notifier.all()
	require.Equal(t, "order must contain at least one dish or set", notices[len(notices)-1].Message)
}

func TestAdvisoryValidationStillSubmits(t *testing.T) {
	f := newServiceFixture(t, guest, enums.ValidationModeAdvisory)
	f.store.Clear(context.Background())

	_, err := f.svc.PlaceOrder(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, f.creator.calls())
}

func TestPlaceOrderSkipsPushWhenDisconnected(t *testing.T) {
	f := newServiceFixture(t, guest, enums.ValidationModeStrict)
	f.pusher.connected = false
	f.store.AddDish(context.Background(), 7, 1)

	_, err := f.svc.PlaceOrder(context.Background())
	require.NoError(t, err)
	require.Empty(t, f.pusher.sent)
	require.True(t, f.store.Current().IsEmpty())
}

func TestPushFailureDoesNotFailOrder(t *testing.T) {
	f := newServiceFixture(t, guest, enums.ValidationModeStrict)
	f.pusher.err = realtime.ErrNotConnected
	f.store.AddDish(context.Background(), 7, 1)

	_, err := f.svc.PlaceOrder(context.Background())
	require.NoError(t, err)
	require.Len(t, f.store.Submitted(), 1)
}

func TestMissingOrderIDIsAFailure(t *testing.T) {
	f := newServiceFixture(t, guest, enums.ValidationModeStrict)
	f.creator.created = &CreatedOrder{}
	f.store.AddDish(context.Background(), 7, 1)

	_, err := f.svc.PlaceOrder(context.Background())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.False(t, f.store.Current().IsEmpty())
}

func TestConcurrentPlaceOrderIsRejected(t *testing.T) {
	f := newServiceFixture(t, guest, enums.ValidationModeStrict)
	f.creator.block = make(chan struct{})
	f.creator.entered = make(chan struct{})
	f.store.AddDish(context.Background(), 7, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.PlaceOrder(context.Background())
		done <- err
	}()

	select {
	case <-f.creator.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first submission never reached the creator")
	}
	require.True(t, f.svc.Loading())

	_, err := f.svc.PlaceOrder(context.Background())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	close(f.creator.block)
	require.NoError(t, <-done)
	require.False(t, f.svc.Loading())
	require.Equal(t, 1, f.creator.calls())
}

func TestNewServiceValidatesParams(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)

	store, _, _ := newTestStore(t)
	_, err = NewService(ServiceParams{Store: store, Creator: &stubCreator{}, Identity: StaticIdentity{}, Mode: "lenient"})
	require.Error(t, err)
}

func TestPlaceOrderOnEmptyStoreReadsTableUnderLock(t *testing.T) {
	f := newServiceFixture(t, guest, enums.ValidationModeAdvisory)
	ctx := context.Background()
	require.Nil(t, f.store.Current())

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		moves := []tables.Identity{{Number: 9, Token: "nine"}, {Number: 4, Token: "tbl"}}
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
				f.store.SetTable(ctx, moves[i%2])
			}
		}
	}()

	for i := 0; i < 20; i++ {
		_, err := f.svc.PlaceOrder(ctx)
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()

	f.creator.mu.Lock()
	defer f.creator.mu.Unlock()
	for _, req := range f.creator.requests {
		switch req.TableNumber {
		case 4:
			require.Equal(t, "tbl", req.TableToken)
		case 9:
			require.Equal(t, "nine", req.TableToken)
		default:
			t.Fatalf("unexpected table %d", req.TableNumber)
		}
	}
}
