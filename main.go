package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kwiatekh/docpanel-be/internal/api"
	"github.com/kwiatekh/docpanel-be/internal/auth"
	"github.com/kwiatekh/docpanel-be/internal/config"
	"github.com/kwiatekh/docpanel-be/internal/database"
	"github.com/kwiatekh/docpanel-be/internal/logger"
	"github.com/kwiatekh/docpanel-be/internal/monitoring"
	"github.com/kwiatekh/docpanel-be/internal/services"
	"github.com/kwiatekh/docpanel-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	logger.Init()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up WebSocket hub for notification and announcement push
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	keyService := services.NewAccessKeyService(db)
	notificationService := services.NewNotificationService(db, hub)
	announcementService := services.NewAnnouncementService(db, hub)
	fileService := services.NewFileService(db)
	auditService := services.NewAuditService(db)
	userService := services.NewUserService(db, keyService, notificationService, nil, cfg.BcryptCost)

	// Session auth and login rate limiting
	sessions := auth.NewService(cfg.SessionSecret, cfg.AdminUsername, cfg.AdminPassword)
	loginLimiter := auth.NewLoginLimiter(cfg.LoginRateBurst, cfg.LoginRatePerMin)

	// Set up and run the background maintenance sweeps
	maintenance, err := monitoring.NewMaintenance(cfg.MaintenanceSchedule, keyService, announcementService, userService)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid maintenance schedule")
	}
	go maintenance.Run()

	// Set up router
	router := api.NewRouter(api.Deps{
		Sessions:      sessions,
		LoginLimiter:  loginLimiter,
		Hub:           hub,
		Keys:          keyService,
		Users:         userService,
		Notifications: notificationService,
		Announcements: announcementService,
		Files:         fileService,
		Audit:         auditService,
		SecureCookies: cfg.SecureCookies,
	})

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe()")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	maintenance.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
