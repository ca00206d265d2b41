package middleware

import (
	"context"
	"net/http"

	"holidaysri-admin/internal/domain/aggregate"
	"holidaysri-admin/pkg/errors"
)

// RoleAuthMiddleware checks if the user has one of the required roles
func RoleAuthMiddleware(allowedRoles ...aggregate.AdminRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok || role == "" {
				HandleError(w, r, errors.NewUnauthorizedError("User role not found"))
				return
			}

			for _, allowed := range allowedRoles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			HandleError(w, r, errors.NewForbiddenError("Insufficient permissions"))
		})
	}
}

// RequireAdmin allows finance admins and super admins
func RequireAdmin(next http.Handler) http.Handler {
	return RoleAuthMiddleware(aggregate.RoleAdmin, aggregate.RoleSuperAdmin)(next)
}

// GetUserRole reads the role placed in the context by JWTAuthMiddleware
func GetUserRole(ctx context.Context) (aggregate.AdminRole, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	if !ok {
		return "", false
	}
	return aggregate.AdminRole(role), true
}
