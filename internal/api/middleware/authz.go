package middleware

import (
	"net/http"

	"github.com/velia-hr/portal/internal/api/response"
	"github.com/velia-hr/portal/internal/role"
)

// RequireRole returns middleware that rejects identities whose role is not in
// the allowed list.
func RequireRole(roles ...role.Role) func(http.Handler) http.Handler {
	allowed := make(map[role.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Bearer token is required", requestID)
				return
			}

			if !allowed[identity.Role] {
				response.Err(w, http.StatusForbidden, response.CodeForbidden, "Insufficient permissions", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission rejects identities whose role lacks any of perms.
func RequirePermission(perms ...role.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Bearer token is required", requestID)
				return
			}

			if !role.Has(identity.Role, perms...) {
				response.Err(w, http.StatusForbidden, response.CodeForbidden, "Insufficient permissions", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
