package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kwiatekh/docpanel-be/internal/api/handlers"
	"github.com/kwiatekh/docpanel-be/internal/auth"
	"github.com/kwiatekh/docpanel-be/internal/services"
	"github.com/kwiatekh/docpanel-be/internal/websocket"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Sessions      *auth.Service
	LoginLimiter  *auth.LoginLimiter
	Hub           *websocket.Hub
	Keys          services.AccessKeyServiceProvider
	Users         services.UserServiceProvider
	Notifications services.NotificationServiceProvider
	Announcements services.AnnouncementServiceProvider
	Files         services.FileServiceProvider
	Audit         services.AuditServiceProvider

	// SecureCookies marks session cookies Secure; set from config.
	SecureCookies bool
}

// NewRouter creates and configures a new Chi router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration for development
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"}, // Adjust for your frontend URL
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(d.Users, d.Sessions, d.Audit, d.SecureCookies)
	notificationHandler := handlers.NewNotificationHandler(d.Notifications)
	announcementHandler := handlers.NewAnnouncementHandler(d.Announcements)
	fileHandler := handlers.NewFileHandler(d.Files)
	adminHandler := handlers.NewAdminHandler(d.Sessions, d.Keys, d.Users, d.Files, d.Announcements, d.Audit, d.SecureCookies)
	wsHandler := handlers.NewWebSocketHandler(d.Hub)

	requireUser := d.Sessions.RequireRole(auth.RoleUser)
	requireAdmin := d.Sessions.RequireRole(auth.RoleAdmin)

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints; logins share the rate limiter.
		r.Post("/register", userHandler.Register)
		r.With(d.LoginLimiter.Middleware).Post("/login", userHandler.Login)
		r.Post("/password-reset/request", userHandler.RequestPasswordReset)
		r.Post("/password-reset/confirm", userHandler.ResetPassword)
		r.Post("/password-reset/recovery", userHandler.RecoveryReset)

		// User session routes
		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/me", userHandler.GetMe)
			r.Post("/me/tutorial-seen", userHandler.MarkTutorialSeen)
			r.Get("/announcements", announcementHandler.GetActive)

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.List)
				r.Post("/read-all", notificationHandler.MarkAllRead)
				r.Post("/{id}/read", notificationHandler.MarkRead)
			})

			r.Route("/files", func(r chi.Router) {
				r.Get("/", fileHandler.ListMine)
				r.Post("/", fileHandler.Track)
			})

			// WebSocket notification feed
			r.Get("/ws", wsHandler.Serve)
		})

		// Admin domain: separate credentials, separate token role.
		r.Route("/admin", func(r chi.Router) {
			r.With(d.LoginLimiter.Middleware).Post("/login", adminHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Post("/logout", adminHandler.Logout)

				r.Route("/keys", func(r chi.Router) {
					r.Get("/", adminHandler.ListKeys)
					r.Post("/", adminHandler.CreateKey)
					r.Post("/{key}/revoke", adminHandler.RevokeKey)
					r.Delete("/{key}", adminHandler.DeleteKey)
				})

				r.Route("/users", func(r chi.Router) {
					r.Get("/", adminHandler.ListUsers)
					r.Route("/{username}", func(r chi.Router) {
						r.Post("/toggle", adminHandler.ToggleUser)
						r.Delete("/", adminHandler.DeleteUser)
						r.Post("/coins", adminHandler.UpdateCoins)
						r.Post("/password", adminHandler.ResetUserPassword)
						r.Get("/logs", adminHandler.UserLogs)
					})
				})

				r.Route("/announcements", func(r chi.Router) {
					r.Get("/", adminHandler.ListAnnouncements)
					r.Post("/", adminHandler.CreateAnnouncement)
					r.Post("/{id}/deactivate", adminHandler.DeactivateAnnouncement)
				})

				r.Get("/stats", adminHandler.OverallStats)
				r.Get("/activity", adminHandler.RecentActivity)
				r.Get("/system", adminHandler.SystemStatus)
			})
		})
	})

	return r
}
