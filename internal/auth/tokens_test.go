package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

func newTestTokenStore(t *testing.T, ttl time.Duration) (*TokenStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTokenStore(client, ttl), srv
}

func TestTokenRoundTrip(t *testing.T) {
	store, _ := newTestTokenStore(t, time.Minute)
	ctx := context.Background()
	issued := authz.Identity{EmployeeID: "EMP01", DisplayName: "Pat", Role: authz.RoleHR, Status: authz.StatusActive}

	token, err := store.Issue(ctx, issued)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	resolved, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, issued, *resolved)
}

func TestResolveRefreshesTTL(t *testing.T) {
	store, srv := newTestTokenStore(t, time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx, authz.Identity{EmployeeID: "EMP01", Role: authz.RoleUser})
	require.NoError(t, err)

	// Let most of the lifetime pass, then resolve: the token survives a
	// further full TTL.
	srv.FastForward(50 * time.Second)
	_, err = store.Resolve(ctx, token)
	require.NoError(t, err)

	srv.FastForward(50 * time.Second)
	_, err = store.Resolve(ctx, token)
	require.NoError(t, err)

	srv.FastForward(2 * time.Minute)
	_, err = store.Resolve(ctx, token)
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestRevokeIsIdempotent(t *testing.T) {
	store, _ := newTestTokenStore(t, time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx, authz.Identity{EmployeeID: "EMP01", Role: authz.RoleUser})
	require.NoError(t, err)
	require.NoError(t, store.Revoke(ctx, token))
	require.NoError(t, store.Revoke(ctx, token))
	require.NoError(t, store.Revoke(ctx, ""))

	_, err = store.Resolve(ctx, token)
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestResolveDropsCorruptToken(t *testing.T) {
	store, srv := newTestTokenStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, srv.Set("auth:token:garbled", "not json"))
	_, err := store.Resolve(ctx, "garbled")
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
	require.False(t, srv.Exists("auth:token:garbled"))
}

func TestRequireAuthAndCapability(t *testing.T) {
	store, _ := newTestTokenStore(t, time.Minute)
	ctx := context.Background()
	mw := Middleware{Tokens: store}

	token, err := store.Issue(ctx, authz.Identity{EmployeeID: "SEC1", Role: authz.RoleSecurity})
	require.NoError(t, err)

	var seen *authz.Identity
	handler := mw.RequireAuth(mw.RequireCapability(authz.CapCheckoutVisitor)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = IdentityFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, "SEC1", seen.EmployeeID)

	// Missing token.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Live token without the capability.
	forbidden := mw.RequireAuth(mw.RequireCapability(authz.CapCreateUser)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})))
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	forbidden.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
