package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

// TokenStore issues and resolves opaque bearer tokens backed by Redis. A
// token maps to the serialized identity and expires on its own; login
// overwrites nothing and logout deletes exactly one key (last-writer-wins on
// the credential store, per the session contract).
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// Issue mints a token for the identity.
func (s *TokenStore) Issue(ctx context.Context, id authz.Identity) (string, error) {
	payload, err := json.Marshal(id)
	if err != nil {
		return "", fmt.Errorf("auth: marshal identity: %w", err)
	}
	token := uuid.NewString()
	if err := s.client.Set(ctx, tokenKey(token), payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: store token: %w", err)
	}
	return token, nil
}

// Resolve returns the identity bound to the token, refreshing its TTL so an
// active session does not expire mid-use.
func (s *TokenStore) Resolve(ctx context.Context, token string) (*authz.Identity, error) {
	if token == "" {
		return nil, httpx.ErrUnauthorized
	}
	payload, err := s.client.GetEx(ctx, tokenKey(token), s.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, httpx.ErrUnauthorized
		}
		return nil, fmt.Errorf("auth: resolve token: %w", err)
	}
	var id authz.Identity
	if err := json.Unmarshal(payload, &id); err != nil {
		// A token that no longer parses is treated as absent, never
		// half-resolved.
		_ = s.client.Del(ctx, tokenKey(token)).Err()
		return nil, httpx.ErrUnauthorized
	}
	return &id, nil
}

// Revoke invalidates a token. Revoking an unknown token is a no-op.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.client.Del(ctx, tokenKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("auth: revoke token: %w", err)
	}
	return nil
}

// TTL exposes the configured token lifetime.
func (s *TokenStore) TTL() time.Duration {
	return s.ttl
}

func tokenKey(token string) string {
	return "auth:token:" + token
}
