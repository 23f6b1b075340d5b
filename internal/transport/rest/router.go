package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/fajarnugraha/identity-service/internal/auth"
	"github.com/fajarnugraha/identity-service/internal/rbac"
	"github.com/fajarnugraha/identity-service/internal/transport/middleware"
	"github.com/fajarnugraha/identity-service/internal/transport/swagger"
	"github.com/fajarnugraha/identity-service/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, authHandler *auth.Handler, userHandler *user.Handler, rbacHandler *rbac.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi3.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Auth routes
		if authHandler != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/register", authHandler.Register)
				sr.Post("/login", authHandler.Login)
				sr.Post("/refresh", authHandler.RefreshToken)
				sr.Post("/verify-email", authHandler.VerifyEmail)
				sr.Post("/resend-verification", authHandler.ResendVerification)
				sr.Post("/forgot-password", authHandler.ForgotPassword)
				sr.Post("/reset-password", authHandler.ResetPassword)
			})
		}

		if authHandler != nil {
			// Protected routes that require authentication
			r.Group(func(pr chi.Router) {
				pr.Use(authHandler.AuthMiddleware)
				pr.Use(middleware.PrincipalContext)

				// Account operations available to any authenticated user,
				// including inactive ones (so a deactivated user can still
				// change a leaked password)
				pr.Post("/auth/change-password", authHandler.ChangePassword)
				pr.Get("/auth/me", authHandler.Me)

				// Everything below requires an active account
				pr.Group(func(ar chi.Router) {
					ar.Use(middleware.RequireActive)

					if userHandler != nil {
						// Self-service profile routes
						ar.Get("/users/me", userHandler.GetCurrentUser)
						ar.Patch("/users/me", userHandler.UpdateMyProfile)
					}

					// Admin routes additionally require a verified email
					ar.Group(func(vr chi.Router) {
						vr.Use(middleware.RequireVerified)

						// User management routes
						if userHandler != nil {
							vr.Route("/users", func(ur chi.Router) {
								ur.Group(func(mr chi.Router) {
									mr.Use(middleware.RequirePermissions("user.list"))
									mr.Get("/", userHandler.ListUsers)
								})
								ur.Group(func(mr chi.Router) {
									mr.Use(middleware.RequirePermissions("user.create"))
									mr.Post("/", userHandler.CreateUser)
								})
								ur.Group(func(mr chi.Router) {
									mr.Use(middleware.RequirePermissions("system.stats"))
									mr.Get("/stats", userHandler.GetStats)
								})
								ur.Group(func(mr chi.Router) {
									mr.Use(middleware.RequirePermissions("user.read"))
									mr.Get("/{userID}", userHandler.GetUser)
								})
								ur.Group(func(mr chi.Router) {
									mr.Use(middleware.RequirePermissions("user.update"))
									mr.Patch("/{userID}", userHandler.UpdateUser)
								})
								ur.Group(func(mr chi.Router) {
									mr.Use(middleware.RequirePermissions("user.delete"))
									mr.Delete("/{userID}", userHandler.DeleteUser)
								})

								// Role and permission views for a given user
								if rbacHandler != nil {
									ur.Group(func(mr chi.Router) {
										mr.Use(middleware.RequirePermissions("role.assign"))
										mr.Post("/{userID}/roles", rbacHandler.AssignRoles)
									})
									ur.Group(func(mr chi.Router) {
										mr.Use(middleware.RequirePermissions("role.read"))
										mr.Get("/{userID}/roles", rbacHandler.UserRoles)
									})
									ur.Group(func(mr chi.Router) {
										mr.Use(middleware.RequirePermissions("permission.read"))
										mr.Get("/{userID}/permissions", rbacHandler.UserPermissions)
										mr.Get("/{userID}/permissions/{codename}/check", rbacHandler.CheckPermission)
									})
								}
							})
						}

						// Role management routes
						if rbacHandler != nil {
							vr.Route("/roles", func(rr chi.Router) {
								rr.Group(func(mr chi.Router) {
									mr.Use(middleware.RequirePermissions("system.stats"))
									mr.Get("/stats", rbacHandler.RoleStats)
								})
								rr.Group(func(mr chi.Router) {
									mr.Use(middleware.RequireSuperuser)
									mr.Post("/bulk-assign", rbacHandler.BulkAssignRoles)
								})
								rr.Group(func(mr chi.Router) {
									mr.Use(middleware.RequirePermissions("role.create"))
									mr.Post("/", rbacHandler.CreateRole)
								})
								rr.Group(func(mr chi.Router) {
									mr.Use(middleware.RequirePermissions("role.read"))
									mr.Get("/", rbacHandler.ListRoles)
									mr.Get("/{roleID}", rbacHandler.GetRole)
								})
								rr.Group(func(mr chi.Router) {
									mr.Use(middleware.RequirePermissions("role.update"))
									mr.Patch("/{roleID}", rbacHandler.UpdateRole)
								})
								rr.Group(func(mr chi.Router) {
									mr.Use(middleware.RequirePermissions("role.delete"))
									mr.Delete("/{roleID}", rbacHandler.DeleteRole)
								})
							})

							// Permission catalog routes
							vr.Route("/permissions", func(pm chi.Router) {
								pm.Group(func(mr chi.Router) {
									mr.Use(middleware.RequirePermissions("permission.create"))
									mr.Post("/", rbacHandler.CreatePermission)
								})
								pm.Group(func(mr chi.Router) {
									mr.Use(middleware.RequirePermissions("permission.read"))
									mr.Get("/", rbacHandler.ListPermissions)
									mr.Get("/{permissionID}", rbacHandler.GetPermission)
								})
								pm.Group(func(mr chi.Router) {
									mr.Use(middleware.RequirePermissions("permission.update"))
									mr.Patch("/{permissionID}", rbacHandler.UpdatePermission)
								})
								pm.Group(func(mr chi.Router) {
									mr.Use(middleware.RequirePermissions("permission.delete"))
									mr.Delete("/{permissionID}", rbacHandler.DeletePermission)
								})
							})
						}
					})
				})
			})
		}
	})
}
