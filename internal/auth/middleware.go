package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

type identityContextKey struct{}

// ContextWithIdentity stores the authenticated identity in context.
func ContextWithIdentity(ctx context.Context, id *authz.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the authenticated identity from context.
func IdentityFromContext(ctx context.Context) *authz.Identity {
	id, _ := ctx.Value(identityContextKey{}).(*authz.Identity)
	return id
}

// Middleware wires bearer-token authentication and capability checks.
type Middleware struct {
	Tokens *TokenStore
	Logger *slog.Logger
}

// RequireAuth resolves the bearer token and installs the identity in the
// request context. Requests without a live token get 401.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		id, err := m.Tokens.Resolve(r.Context(), token)
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}

// RequireCapability gates a route on the static capability table. The server
// re-validates every permission regardless of what the client chose to show.
func (m Middleware) RequireCapability(cap authz.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if id == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Invalid token")
				return
			}
			if !authz.HasCapability(id, cap) {
				if m.Logger != nil {
					m.Logger.Warn("capability denied",
						slog.String("empid", id.EmployeeID),
						slog.String("capability", string(cap)))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "Insufficient privileges")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
