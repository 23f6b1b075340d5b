package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/fajarnugraha/identity-service/internal"
	"github.com/fajarnugraha/identity-service/internal/auth"
)

// RequirePermissions gates a route on the principal holding every listed
// permission. Superusers pass without a permission scan; everyone else gets
// the missing codenames echoed back for audit display.
func RequirePermissions(codenames ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok || principal == nil {
				writeAppError(w, apperrors.ErrCouldNotValidate)
				return
			}

			missing := principal.MissingPermissions(codenames...)
			if len(missing) > 0 {
				slog.Warn("access denied: missing permissions",
					"user_id", principal.ID,
					"required_permissions", codenames,
					"missing_permissions", missing)
				writeAppError(w, apperrors.NewForbiddenError(
					fmt.Sprintf("Missing required permissions: %s", strings.Join(missing, ", ")),
					apperrors.ErrCodePermissionDenied))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission passes when the principal holds at least one of the
// listed permissions.
func RequireAnyPermission(codenames ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok || principal == nil {
				writeAppError(w, apperrors.ErrCouldNotValidate)
				return
			}

			if !principal.HasAnyPermission(codenames...) {
				slog.Warn("access denied: missing permissions",
					"user_id", principal.ID,
					"required_any_permission", codenames)
				writeAppError(w, apperrors.NewForbiddenError(
					fmt.Sprintf("Requires one of the permissions: %s", strings.Join(codenames, ", ")),
					apperrors.ErrCodePermissionDenied))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoles gates a route on the principal carrying every listed role
// name. Superusers pass unconditionally.
func RequireRoles(names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok || principal == nil {
				writeAppError(w, apperrors.ErrCouldNotValidate)
				return
			}

			if !principal.IsSuperuser {
				for _, name := range names {
					if !principal.HasRole(name) {
						slog.Warn("access denied: missing role",
							"user_id", principal.ID,
							"required_roles", names)
						writeAppError(w, apperrors.NewForbiddenError(
							fmt.Sprintf("Requires roles: %s", strings.Join(names, ", ")),
							apperrors.ErrCodeRoleRequired))
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyRole passes when the principal carries at least one of the
// listed role names. Superusers pass unconditionally.
func RequireAnyRole(names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok || principal == nil {
				writeAppError(w, apperrors.ErrCouldNotValidate)
				return
			}

			if !principal.IsSuperuser && !principal.HasAnyRole(names...) {
				slog.Warn("access denied: missing role",
					"user_id", principal.ID,
					"required_any_role", names)
				writeAppError(w, apperrors.NewForbiddenError(
					fmt.Sprintf("Requires one of the roles: %s", strings.Join(names, ", ")),
					apperrors.ErrCodeRoleRequired))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
