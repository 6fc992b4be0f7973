package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/velia-hr/portal/internal/api/response"
	"github.com/velia-hr/portal/internal/auth"
)

const identityKey contextKey = "identity"

// Authenticator resolves an Authorization header to an Identity.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (*auth.Identity, error)
}

// Auth is middleware that resolves the Authorization bearer credential to an
// Identity. Missing or unknown credentials return 401.
func Auth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			header := r.Header.Get("Authorization")
			if header == "" {
				response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Bearer token is required", requestID)
				return
			}

			identity, err := authenticator.Authenticate(r.Context(), header)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidToken) {
					response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Invalid bearer token", requestID)
					return
				}
				response.Err(w, http.StatusInternalServerError, response.CodeInternal, "Authentication failed", requestID)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity retrieves the authenticated Identity from the request context.
func GetIdentity(ctx context.Context) *auth.Identity {
	if id, ok := ctx.Value(identityKey).(*auth.Identity); ok {
		return id
	}
	return nil
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}
