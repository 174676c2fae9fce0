package cache

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Genzhalo/idp-console/internal/auth"
	"github.com/Genzhalo/idp-console/internal/model"
	"github.com/Genzhalo/idp-console/internal/repository"
)

type countingSessions struct {
	auth.Sessions
	lists int
}

func (c *countingSessions) ListTokens(ctx context.Context, userID string) ([]model.UserToken, error) {
	c.lists++
	return c.Sessions.ListTokens(ctx, userID)
}

// blockingSessions holds the first ListTokens call after it has loaded its result
// until release is closed.
type blockingSessions struct {
	auth.Sessions
	fetched chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingSessions) ListTokens(ctx context.Context, userID string) ([]model.UserToken, error) {
	tokens, err := b.Sessions.ListTokens(ctx, userID)
	b.once.Do(func() {
		close(b.fetched)
		<-b.release
	})
	return tokens, err
}

func newTestCache(t *testing.T) (*TokenStore, *countingSessions, *miniredis.Miniredis, string) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := repository.NewMemoryStore()
	userID, err := store.CreateUser(context.Background(), model.User{Email: "operator@example.com"})
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	backing := &countingSessions{Sessions: store}
	return NewTokenStore(backing, client, time.Minute, log), backing, mr, userID
}

func TestListTokensReadsThrough(t *testing.T) {
	cache, backing, mr, userID := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.UpsertToken(ctx, userID, "token-1", "WEB"))

	first, err := cache.ListTokens(ctx, userID)
	require.NoError(t, err)
	second, err := cache.ListTokens(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, []model.UserToken{{Token: "token-1", UsedFor: "WEB"}}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, backing.lists)
	assert.True(t, mr.Exists(tokensKey(userID)))

	mr.FastForward(2 * time.Minute)
	_, err = cache.ListTokens(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, backing.lists)
}

func TestWritesInvalidate(t *testing.T) {
	cache, _, mr, userID := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.UpsertToken(ctx, userID, "token-1", "WEB"))
	_, err := cache.ListTokens(ctx, userID)
	require.NoError(t, err)

	require.NoError(t, cache.RemoveTokens(ctx, userID, []string{"token-1"}))
	assert.False(t, mr.Exists(tokensKey(userID)))

	tokens, err := cache.ListTokens(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestAuthenticatorSeesLogoutThroughCache(t *testing.T) {
	cache, _, _, userID := newTestCache(t)
	ctx := context.Background()
	authenticator := auth.NewAuthenticator("secret", time.Hour, cache)

	user, err := cache.GetUserByID(ctx, userID)
	require.NoError(t, err)
	token, err := authenticator.Issue(ctx, user)
	require.NoError(t, err)
	_, err = authenticator.Authenticate(ctx, token)
	require.NoError(t, err)

	require.NoError(t, authenticator.Revoke(ctx, token))
	_, err = authenticator.Authenticate(ctx, token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestCorruptEntryFallsBack(t *testing.T) {
	cache, backing, mr, userID := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, cache.UpsertToken(ctx, userID, "token-1", "WEB"))
	require.NoError(t, mr.Set(tokensKey(userID), "{not json"))

	tokens, err := cache.ListTokens(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
	assert.Equal(t, 1, backing.lists)
}

func TestLogoutDuringFillIsNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	store := repository.NewMemoryStore()
	userID, err := store.CreateUser(ctx, model.User{Email: "operator@example.com"})
	require.NoError(t, err)
	user, err := store.GetUserByID(ctx, userID)
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	backing := &blockingSessions{Sessions: store, fetched: make(chan struct{}), release: make(chan struct{})}
	cache := NewTokenStore(backing, client, time.Minute, log)
	authenticator := auth.NewAuthenticator("secret", time.Hour, cache)

	token, err := authenticator.Issue(ctx, user)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := cache.ListTokens(ctx, userID)
		done <- err
	}()
	<-backing.fetched

	require.NoError(t, authenticator.Revoke(ctx, token))
	close(backing.release)
	require.NoError(t, <-done)

	assert.False(t, mr.Exists(tokensKey(userID)))
	_, err = authenticator.Authenticate(ctx, token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}
