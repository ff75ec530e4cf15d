package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/assetops/asset-management/internal/asset"
	"github.com/assetops/asset-management/internal/assignment"
	"github.com/assetops/asset-management/internal/audit"
	"github.com/assetops/asset-management/internal/auth"
	"github.com/assetops/asset-management/internal/transport/middleware"
	"github.com/assetops/asset-management/internal/transport/swagger"
	"github.com/assetops/asset-management/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, authHandler *auth.Handler, assetHandler *asset.Handler, assignmentHandler *assignment.Handler, userHandler *user.Handler, auditHandler *audit.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	rbac := auth.NewRoleAuthorization(logger)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
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
				sr.Post("/login", authHandler.Login)
				sr.Post("/refresh", authHandler.RefreshToken)
				sr.Post("/logout", authHandler.Logout)
			})
		}

		if authHandler != nil {
			// Protected routes that require authentication
			r.Group(func(pr chi.Router) {
				pr.Use(authHandler.AuthMiddleware)

				// Asset routes
				if assetHandler != nil {
					pr.Route("/assets", func(ar chi.Router) {
						ar.Get("/", assetHandler.ListAssets)       // GET /assets
						ar.Get("/next-tag", assetHandler.NextTag)  // GET /assets/next-tag
						ar.Get("/{id}", assetHandler.GetAsset)     // GET /assets/:id

						ar.Group(func(mr chi.Router) {
							mr.Use(rbac.RequireManager())
							mr.Patch("/{id}/status", assetHandler.UpdateStatus) // PATCH /assets/:id/status
							if assignmentHandler != nil {
								mr.Post("/{id}/assign", assignmentHandler.Assign) // POST /assets/:id/assign
								mr.Post("/{id}/return", assignmentHandler.Return) // POST /assets/:id/return
							}
						})

						ar.Group(func(adr chi.Router) {
							adr.Use(rbac.RequireAdmin())
							adr.Post("/", assetHandler.CreateAsset)        // POST /assets
							adr.Delete("/{id}", assetHandler.DeleteAsset)  // DELETE /assets/:id
						})
					})
				}

				// Assignment routes
				if assignmentHandler != nil {
					pr.Route("/assignments", func(sr chi.Router) {
						sr.Get("/", assignmentHandler.ListAssignments)    // GET /assignments
						sr.Get("/{id}", assignmentHandler.GetAssignment)  // GET /assignments/:id
					})
				}

				// User routes
				if userHandler != nil {
					pr.Route("/users", func(ur chi.Router) {
						ur.Get("/me", userHandler.GetMe)     // GET /users/me
						ur.Get("/", userHandler.ListUsers)   // GET /users
						ur.Get("/{id}", userHandler.GetUser) // GET /users/:id
						if assignmentHandler != nil {
							ur.Get("/{id}/assignments", assignmentHandler.ListUserAssignments) // GET /users/:id/assignments
						}

						ur.Group(func(adr chi.Router) {
							adr.Use(rbac.RequireAdmin())
							adr.Post("/", userHandler.CreateUser)                  // POST /users
							adr.Post("/bulk", userHandler.RunBulk)                 // POST /users/bulk
							adr.Post("/{id}/deactivate", userHandler.Deactivate)   // POST /users/:id/deactivate
							adr.Post("/{id}/activate", userHandler.Activate)       // POST /users/:id/activate
							adr.Patch("/{id}/role", userHandler.ChangeRole)        // PATCH /users/:id/role
						})
					})
				}

				// Audit trail (manager and above)
				if auditHandler != nil {
					pr.Group(func(mr chi.Router) {
						mr.Use(rbac.RequireManager())
						mr.Get("/audit", auditHandler.GetHistory) // GET /audit
					})
				}
			})
		}
	})
}
