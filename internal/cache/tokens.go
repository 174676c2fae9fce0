// Package cache keeps each user's live token set in Redis so authenticating a
// request does not hit Postgres every time.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Genzhalo/idp-console/internal/auth"
	"github.com/Genzhalo/idp-console/internal/model"
)

// TokenStore is a read-through cache in front of another auth.Sessions. Writes go
// to the backing store first, then bump the user's generation and drop the cached
// entry. A fill only lands when the generation it read before loading is still
// current, so a set loaded before a logout never reaches the cache.
type TokenStore struct {
	next   auth.Sessions
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Logger
}

var errStaleFill = errors.New("token set changed while loading")

type cachedToken struct {
	Token   string `json:"token"`
	UsedFor string `json:"used_for"`
}

func NewTokenStore(next auth.Sessions, client *redis.Client, ttl time.Duration, log *logrus.Logger) *TokenStore {
	return &TokenStore{next: next, client: client, ttl: ttl, log: log}
}

func (c *TokenStore) GetUserByID(ctx context.Context, id string) (model.User, error) {
	return c.next.GetUserByID(ctx, id)
}

func (c *TokenStore) ListTokens(ctx context.Context, userID string) ([]model.UserToken, error) {
	key := tokensKey(userID)
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []cachedToken
		if err := json.Unmarshal(data, &cached); err == nil {
			tokens := make([]model.UserToken, 0, len(cached))
			for _, token := range cached {
				tokens = append(tokens, model.UserToken{Token: token.Token, UsedFor: token.UsedFor})
			}
			return tokens, nil
		}
		c.log.WithField("user_id", userID).Warn("discarding unreadable token cache entry")
	case errors.Is(err, redis.Nil):
	default:
		c.log.WithError(err).Warn("token cache read failed")
	}

	genKey := generationKey(userID)
	generation, err := c.client.Get(ctx, genKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.WithError(err).Warn("token cache generation read failed")
		return c.next.ListTokens(ctx, userID)
	}

	tokens, err := c.next.ListTokens(ctx, userID)
	if err != nil {
		return nil, err
	}
	cached := make([]cachedToken, 0, len(tokens))
	for _, token := range tokens {
		cached = append(cached, cachedToken{Token: token.Token, UsedFor: token.UsedFor})
	}
	payload, err := json.Marshal(cached)
	if err != nil {
		return nil, err
	}
	if err := c.fill(ctx, key, genKey, generation, payload); err != nil {
		c.log.WithError(err).Warn("token cache write failed")
	}
	return tokens, nil
}

// fill stores payload only while genKey still holds generation.
func (c *TokenStore) fill(ctx context.Context, key, genKey, generation string, payload []byte) error {
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, errStaleFill) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *TokenStore) UpsertToken(ctx context.Context, userID, token, usedFor string) error {
	if err := c.next.UpsertToken(ctx, userID, token, usedFor); err != nil {
		return err
	}
	return c.invalidate(ctx, userID)
}

func (c *TokenStore) RemoveTokens(ctx context.Context, userID string, tokens []string) error {
	if err := c.next.RemoveTokens(ctx, userID, tokens); err != nil {
		return err
	}
	return c.invalidate(ctx, userID)
}

func (c *TokenStore) invalidate(ctx context.Context, userID string) error {
	if err := c.client.Incr(ctx, generationKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate token cache: %w", err)
	}
	if err := c.client.Del(ctx, tokensKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate token cache: %w", err)
	}
	return nil
}

func tokensKey(userID string) string {
	return fmt.Sprintf("user_tokens:%s", userID)
}

func generationKey(userID string) string {
	return fmt.Sprintf("user_tokens_gen:%s", userID)
}
