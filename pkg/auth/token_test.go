package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/tableside/pkg/enums"
	"github.com/angelmondragon/tableside/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	calls     int
	responses []*TokenResponse
	err       error
}

func (s *stubFetcher) FetchRealtimeToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	idx := s.calls - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

func newSource(t *testing.T, fetcher TokenFetcher, clock *manualClock, cache Cache) *TokenSource {
	t.Helper()
	src, err := NewTokenSource(TokenSourceParams{
		Fetcher: fetcher,
		Request: TokenRequest{UserID: 7, Email: "guest@table.local", Role: enums.SessionRoleGuest},
		Skew:    5 * time.Second,
		Cache:   cache,
		Clock:   clock.Now,
	})
	require.NoError(t, err)
	return src
}

func TestTokenSourceReusesUntilExpiry(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	fetcher := &stubFetcher{responses: []*TokenResponse{
		{Token: "first", ExpiresAt: "2026-01-01T12:10:00Z"},
		{Token: "second", ExpiresAt: "2026-01-01T12:20:00Z"},
	}}
	src := newSource(t, fetcher, clock, nil)

	token, err := src.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "first", token)

	clock.now = clock.now.Add(9 * time.Minute)
	token, err = src.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "first", token)
	require.Equal(t, 1, fetcher.calls)

	// inside the skew window counts as expired
	clock.now = clock.now.Add(56 * time.Second)
	token, err = src.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "second", token)
	require.Equal(t, 2, fetcher.calls)
}

func TestTokenSourceFallsBackToJWTExpiry(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	exp := clock.now.Add(time.Hour)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("server-secret"))
	require.NoError(t, err)

	fetcher := &stubFetcher{responses: []*TokenResponse{{Token: signed}}}
	src := newSource(t, fetcher, clock, nil)

	_, err = src.Token(context.Background())
	require.NoError(t, err)
	require.True(t, src.ExpiresAt().Equal(exp.Truncate(time.Second)))

	_, err = src.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.calls)
}

func TestTokenSourceWithoutExpiryFetchesEveryTime(t *testing.T) {
	clock := &manualClock{now: time.Now()}
	fetcher := &stubFetcher{responses: []*TokenResponse{{Token: "opaque"}}}
	src := newSource(t, fetcher, clock, nil)

	for i := 0; i < 3; i++ {
		token, err := src.Token(context.Background())
		require.NoError(t, err)
		require.Equal(t, "opaque", token)
	}
	require.Equal(t, 3, fetcher.calls)
}

func TestTokenSourceInvalidateForcesFetch(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	fetcher := &stubFetcher{responses: []*TokenResponse{
		{Token: "first", ExpiresAt: "2026-01-01T13:00:00Z"},
		{Token: "second", ExpiresAt: "2026-01-01T13:00:00Z"},
	}}
	src := newSource(t, fetcher, clock, nil)

	_, err := src.Token(context.Background())
	require.NoError(t, err)
	src.Invalidate(context.Background())
	token, err := src.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "second", token)
}

func TestTokenSourceErrors(t *testing.T) {
	clock := &manualClock{now: time.Now()}

	src := newSource(t, &stubFetcher{err: errors.New("boom")}, clock, nil)
	_, err := src.Token(context.Background())
	require.EqualError(t, err, "boom")

	src = newSource(t, &stubFetcher{responses: []*TokenResponse{{Token: "  "}}}, clock, nil)
	_, err = src.Token(context.Background())
	require.Error(t, err)

	src = newSource(t, &stubFetcher{responses: []*TokenResponse{{Token: "t", ExpiresAt: "tomorrow"}}}, clock, nil)
	_, err = src.Token(context.Background())
	require.Error(t, err)
}

func TestNewTokenSourceValidatesParams(t *testing.T) {
	_, err := NewTokenSource(TokenSourceParams{})
	require.Error(t, err)

	_, err = NewTokenSource(TokenSourceParams{Fetcher: &stubFetcher{}, Request: TokenRequest{UserID: 1, Role: "Admin"}})
	require.Error(t, err)
}

func TestExpiryFromJWTRejectsGarbage(t *testing.T) {
	_, ok := ExpiryFromJWT("not-a-jwt")
	require.False(t, ok)
}

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMockStore() *mockStore {
	return &mockStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) TokenKey(role string, userID int64) string {
	return fmt.Sprintf("tok:%s:%d", strings.ToLower(role), userID)
}

func TestRedisCacheSharesTokensAcrossSources(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := newMockStore()
	cache := &RedisCache{store: store, keyer: store, clock: clock.Now}

	first := &stubFetcher{responses: []*TokenResponse{{Token: "shared", ExpiresAt: "2026-01-01T12:30:00Z"}}}
	_, err := newSource(t, first, clock, cache).Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, store.ttls["tok:guest:7"])

	second := &stubFetcher{responses: []*TokenResponse{{Token: "other", ExpiresAt: "2026-01-01T12:30:00Z"}}}
	token, err := newSource(t, second, clock, cache).Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "shared", token)
	require.Zero(t, second.calls)

	require.NoError(t, cache.Forget(context.Background(), TokenRequest{UserID: 7, Role: enums.SessionRoleGuest}))
	_, ok, err := cache.Load(context.Background(), TokenRequest{UserID: 7, Role: enums.SessionRoleGuest})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInvalidateForgetsSharedToken(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := newMockStore()
	cache := &RedisCache{store: store, keyer: store, clock: clock.Now}
	fetcher := &stubFetcher{responses: []*TokenResponse{
		{Token: "rejected", ExpiresAt: "2026-01-01T12:30:00Z"},
		{Token: "fresh", ExpiresAt: "2026-01-01T12:30:00Z"},
	}}
	src := newSource(t, fetcher, clock, cache)

	_, err := src.Token(context.Background())
	require.NoError(t, err)
	require.Contains(t, store.data, "tok:guest:7")

	src.Invalidate(context.Background())
	require.NotContains(t, store.data, "tok:guest:7")

	other := newSource(t, fetcher, clock, cache)
	token, err := other.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fresh", token)
	require.Equal(t, 2, fetcher.calls)
}

func TestBrokenCacheIsLoggedAndBypassed(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := newMockStore()
	store.err = errors.New("redis down")
	var buf bytes.Buffer
	src, err := NewTokenSource(TokenSourceParams{
		Fetcher: &stubFetcher{responses: []*TokenResponse{{Token: "direct", ExpiresAt: "2026-01-01T12:30:00Z"}}},
		Request: TokenRequest{UserID: 7, Role: enums.SessionRoleGuest},
		Cache:   &RedisCache{store: store, keyer: store, clock: clock.Now},
		Clock:   clock.Now,
		Logger:  logger.New(logger.Options{ServiceName: "auth-test", Output: &buf}),
	})
	require.NoError(t, err)

	token, err := src.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "direct", token)

	src.Invalidate(context.Background())

	logs := buf.String()
	require.Contains(t, logs, "shared token cache read failed")
	require.Contains(t, logs, "shared token cache write failed")
	require.Contains(t, logs, "shared token cache delete failed")
	require.Contains(t, logs, "redis down")
}
