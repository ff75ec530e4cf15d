package auth

import (
	"log/slog"
	"net/http"
)

// RoleAuthorization provides route middleware that gates handlers on the
// role hierarchy. Services re-check the same preconditions inside their
// transactions; this layer exists to fail fast before any storage work.
type RoleAuthorization struct {
	logger *slog.Logger
}

func NewRoleAuthorization(logger *slog.Logger) *RoleAuthorization {
	return &RoleAuthorization{logger: logger}
}

// RequireRole gates a route on rank(principal.role) >= rank(required).
func (ra *RoleAuthorization) RequireRole(required Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				ra.logger.Warn("authorization check failed: principal not found in context")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !HasRole(principal, required) {
				ra.logger.WarnContext(r.Context(), "access denied: insufficient role",
					"user_id", principal.ID,
					"user_role", principal.Role,
					"required_role", required)
				http.Error(w, "Forbidden: insufficient role", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyRole gates a route on exact role membership, ignoring rank.
func (ra *RoleAuthorization) RequireAnyRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				ra.logger.Warn("authorization check failed: principal not found in context")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !HasAnyRole(principal, roles...) {
				ra.logger.WarnContext(r.Context(), "access denied: role not in allowed set",
					"user_id", principal.ID,
					"user_role", principal.Role)
				http.Error(w, "Forbidden: insufficient role", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (ra *RoleAuthorization) RequireManager() func(http.Handler) http.Handler {
	return ra.RequireRole(RoleManager)
}

func (ra *RoleAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return ra.RequireRole(RoleAdmin)
}
