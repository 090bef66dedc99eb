package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/tableside/internal/catalog"
	"github.com/angelmondragon/tableside/internal/orders"
	"github.com/angelmondragon/tableside/internal/persistence"
	"github.com/angelmondragon/tableside/internal/realtime"
	"github.com/angelmondragon/tableside/internal/tables"
	"github.com/angelmondragon/tableside/pkg/auth"
	"github.com/angelmondragon/tableside/pkg/config"
	"github.com/angelmondragon/tableside/pkg/enums"
	"github.com/angelmondragon/tableside/pkg/logger"
	"github.com/angelmondragon/tableside/pkg/metrics"
	"go.uber.org/multierr"
)

// Params wires one login's ordering session.
type Params struct {
	Identity orders.Identity
	Table    tables.Identity
	Catalog  catalog.Reader

	Creator    orders.OrderCreator
	Tokens     auth.TokenFetcher
	TokenCache auth.Cache
	Persister  persistence.Persister

	Notifier orders.Notifier
	Login    orders.LoginPrompter

	Realtime config.RealtimeConfig
	Orders   config.OrdersConfig

	Dialer          realtime.Dialer
	Scheduler       realtime.Scheduler
	Logger          *logger.Logger
	RealtimeMetrics *metrics.RealtimeMetrics
	OrderMetrics    *metrics.OrderMetrics
}

// Session owns everything created for one login. Nothing in it is global;
// Close tears it all down.
type Session struct {
	ID       string
	Store    *orders.Store
	Orders   orders.Service
	Realtime *realtime.Client

	mirror     *persistence.Mirror
	persister  persistence.Persister
	tokens     *auth.TokenSource
	unregister []func()
	logg       *logger.Logger
	closeOnce  sync.Once
}

// ID derives the session key from who is ordering and at which table.
func ID(identity orders.Identity, table tables.Identity) string {
	role := "anonymous"
	if identity.Valid() {
		role = strings.ToLower(identity.Role().String())
	}
	return fmt.Sprintf("%s:%d:%s", role, identity.SubjectID(), table.Token)
}

// Start builds the store, restores any persisted snapshot, and connects the
// realtime client. An identity that is not logged in gets a store and an
// order service but no socket; placing an order then prompts for login.
func Start(ctx context.Context, params Params) (*Session, error) {
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if params.Creator == nil {
		return nil, fmt.Errorf("order creator is required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Notifier == nil {
		params.Notifier = orders.NewLogNotifier(params.Logger)
	}

	s := &Session{
		ID:        ID(params.Identity, params.Table),
		persister: params.Persister,
		logg:      params.Logger,
	}
	ctx = s.logg.WithSessionID(ctx, s.ID)

	var sink orders.SnapshotSink
	if params.Persister != nil {
		mirror, err := persistence.NewMirror(persistence.MirrorParams{
			Persister: params.Persister,
			Logger:    params.Logger,
		})
		if err != nil {
			return nil, err
		}
		s.mirror = mirror
		sink = mirror
	}

	store, err := orders.NewStore(orders.StoreParams{
		SessionID: s.ID,
		Catalog:   params.Catalog,
		Owner:     params.Identity,
		Table:     params.Table,
		Notifier:  params.Notifier,
		Sink:      sink,
		Logger:    params.Logger,
	})
	if err != nil {
		s.closeMirror(ctx)
		return nil, err
	}
	s.Store = store
	s.restore(ctx, params)

	var pusher orders.Pusher
	if params.Identity.Valid() {
		if params.Tokens == nil {
			s.closeMirror(ctx)
			return nil, fmt.Errorf("token fetcher is required")
		}
		client, err := s.openRealtime(params)
		if err != nil {
			s.closeMirror(ctx)
			return nil, err
		}
		s.Realtime = client
		pusher = client
	}

	service, err := orders.NewService(orders.ServiceParams{
		Store:    store,
		Creator:  params.Creator,
		Identity: orders.StaticIdentity{Value: params.Identity},
		Pusher:   pusher,
		Login:    params.Login,
		Mode:     params.Orders.Mode(),
		Metrics:  params.OrderMetrics,
		Logger:   params.Logger,
	})
	if err != nil {
		s.closeMirror(ctx)
		return nil, err
	}
	s.Orders = service

	if s.Realtime != nil {
		s.Realtime.Connect(ctx)
	}
	s.logg.Info(ctx, "ordering session started")
	return s, nil
}

func (s *Session) restore(ctx context.Context, params Params) {
	if params.Persister == nil {
		return
	}
	snapshot, err := params.Persister.Load(ctx, s.ID)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "persisted snapshot unavailable")
		}
		return
	}
	if !s.Store.Restore(snapshot) {
		return
	}
	if !params.Table.IsZero() && snapshot.Table != params.Table {
		s.Store.SetTable(ctx, params.Table)
	}
	s.logg.Info(s.logg.WithField(ctx, "version", snapshot.Version), "session restored from snapshot")
}

func (s *Session) openRealtime(params Params) (*realtime.Client, error) {
	identity := params.Identity
	tokens, err := auth.NewTokenSource(auth.TokenSourceParams{
		Fetcher: params.Tokens,
		Request: auth.TokenRequest{
			UserID: identity.SubjectID(),
			Email:  identity.Email,
			Role:   identity.Role(),
		},
		Skew:   params.Realtime.TokenExpirySkew,
		Cache:  params.TokenCache,
		Logger: params.Logger,
	})
	if err != nil {
		return nil, err
	}
	s.tokens = tokens

	dialer := params.Dialer
	if dialer == nil {
		dialer = realtime.NewDialer(params.Realtime.HandshakeTimeout)
	}
	client, err := realtime.NewClient(realtime.Params{
		BaseURL: params.Realtime.BaseURL,
		Credentials: realtime.Credentials{
			UserID:     identity.SubjectID(),
			Role:       identity.Role(),
			TableToken: params.Table.Token,
			Email:      identity.Email,
		},
		Tokens:               tokens,
		MaxReconnectAttempts: params.Realtime.MaxReconnectAttempts,
		BaseDelay:            params.Realtime.BaseDelay,
		WriteTimeout:         params.Realtime.WriteTimeout,
		Dialer:               dialer,
		Scheduler:            params.Scheduler,
		Logger:               params.Logger,
		Metrics:              params.RealtimeMetrics,
	})
	if err != nil {
		return nil, err
	}
	s.unregister = append(s.unregister, client.OnMessage(s.handleStatusUpdate))
	return client, nil
}

// handleStatusUpdate applies server-driven lifecycle changes to the
// submitted list.
func (s *Session) handleStatusUpdate(ctx context.Context, msg realtime.Message) error {
	if !msg.Is(enums.MessageTypeOrder, enums.MessageActionUpdateStatus) {
		return nil
	}
	var payload realtime.StatusUpdatePayload
	if err := msg.Decode(&payload); err != nil {
		return err
	}
	return s.Store.ApplyStatus(ctx, payload.OrderID, payload.Status)
}

// Close disconnects the socket, drops handlers and flushes the last snapshot.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		for _, unregister := range s.unregister {
			unregister()
		}
		if s.Realtime != nil {
			s.Realtime.Disconnect()
		}
		err = s.closeMirror(ctx)
		s.logg.Info(s.logg.WithSessionID(ctx, s.ID), "ordering session closed")
	})
	return err
}

// Logout closes the session, then deletes its persisted snapshot and the
// realtime token, shared copy included. The next Start begins empty.
func (s *Session) Logout(ctx context.Context) error {
	err := s.Close(ctx)
	if s.persister != nil {
		if delErr := s.persister.Delete(ctx, s.ID); delErr != nil {
			err = multierr.Append(err, fmt.Errorf("delete snapshot: %w", delErr))
		}
	}
	if s.tokens != nil {
		s.tokens.Invalidate(ctx)
	}
	s.logg.Info(s.logg.WithSessionID(ctx, s.ID), "signed out")
	return err
}

func (s *Session) closeMirror(ctx context.Context) error {
	if s.mirror == nil {
		return nil
	}
	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.mirror.Close(flushCtx)
}
