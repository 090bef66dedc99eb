package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/tableside/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableside/pkg/errors"
	"github.com/angelmondragon/tableside/pkg/logger"
)

// TokenRequest is posted to the auth service to mint a realtime token.
type TokenRequest struct {
	UserID int64             `json:"userId"`
	Email  string            `json:"email"`
	Role   enums.SessionRole `json:"role"`
}

// TokenResponse is the auth service reply. ExpiresAt is ISO8601 and may be empty.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	Role      string `json:"role"`
	UserID    int64  `json:"userId"`
	Email     string `json:"email"`
}

// TokenFetcher mints a fresh realtime token.
type TokenFetcher interface {
	FetchRealtimeToken(ctx context.Context, req TokenRequest) (*TokenResponse, error)
}

// Cache shares tokens between processes acting for the same identity.
type Cache interface {
	Load(ctx context.Context, req TokenRequest) (Cached, bool, error)
	Store(ctx context.Context, req TokenRequest, token Cached) error
	Forget(ctx context.Context, req TokenRequest) error
}

// Cached is a token with its resolved expiry. A zero ExpiresAt means single use.
type Cached struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the token can still be used at now, given skew.
func (c Cached) Valid(now time.Time, skew time.Duration) bool {
	if c.Token == "" || c.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(c.ExpiresAt.Add(-skew))
}

// TokenSourceParams configures a TokenSource.
type TokenSourceParams struct {
	Fetcher TokenFetcher
	Request TokenRequest
	Skew    time.Duration
	Cache   Cache
	Clock   func() time.Time
	Logger  *logger.Logger
}

// TokenSource hands out the realtime token, refreshing it lazily when it is
// missing or about to expire. There is no background refresh timer.
type TokenSource struct {
	fetcher TokenFetcher
	req     TokenRequest
	skew    time.Duration
	cache   Cache
	clock   func() time.Time
	logg    *logger.Logger

	mu      sync.Mutex
	current Cached
}

// NewTokenSource validates params and builds a TokenSource.
func NewTokenSource(params TokenSourceParams) (*TokenSource, error) {
	if params.Fetcher == nil {
		return nil, fmt.Errorf("token fetcher is required")
	}
	if params.Request.UserID <= 0 {
		return nil, fmt.Errorf("user id is required")
	}
	if !params.Request.Role.IsValid() {
		return nil, fmt.Errorf("invalid session role %q", params.Request.Role)
	}
	if params.Skew < 0 {
		return nil, fmt.Errorf("token skew must not be negative")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &TokenSource{
		fetcher: params.Fetcher,
		req:     params.Request,
		skew:    params.Skew,
		cache:   params.Cache,
		clock:   clock,
		logg:    logg,
	}, nil
}

// Token returns a usable token, fetching a new one when the cached value expired.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if s.current.Valid(now, s.skew) {
		return s.current.Token, nil
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Load(ctx, s.req)
		switch {
		case err != nil:
			s.logg.Warn(s.logCtx(ctx, err), "shared token cache read failed; fetching a new token")
		case ok && cached.Valid(now, s.skew):
			s.current = cached
			return cached.Token, nil
		}
	}

	resp, err := s.fetcher.FetchRealtimeToken(ctx, s.req)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(resp.Token)
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "auth service returned an empty token")
	}

	expiresAt, err := resolveExpiry(resp.ExpiresAt, token)
	if err != nil {
		return "", err
	}
	s.current = Cached{Token: token, ExpiresAt: expiresAt}
	if s.cache != nil && !expiresAt.IsZero() {
		if err := s.cache.Store(ctx, s.req, s.current); err != nil {
			s.logg.Error(s.logCtx(ctx, nil), "shared token cache write failed", err)
		}
	}
	return token, nil
}

// Invalidate drops the token, including the shared copy, so the next call
// fetches a new one.
func (s *TokenSource) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.current = Cached{}
	s.mu.Unlock()
	if s.cache == nil {
		return
	}
	if err := s.cache.Forget(ctx, s.req); err != nil {
		s.logg.Error(s.logCtx(ctx, nil), "shared token cache delete failed", err)
	}
}

func (s *TokenSource) logCtx(ctx context.Context, err error) context.Context {
	fields := map[string]any{
		"role":    s.req.Role.String(),
		"user_id": s.req.UserID,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	return s.logg.WithFields(ctx, fields)
}

// ExpiresAt reports the expiry of the cached token, zero when unknown.
func (s *TokenSource) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.ExpiresAt
}

func resolveExpiry(raw, token string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "auth service returned an invalid expiresAt")
		}
		return parsed.UTC(), nil
	}
	if exp, ok := ExpiryFromJWT(token); ok {
		return exp, nil
	}
	return time.Time{}, nil
}
