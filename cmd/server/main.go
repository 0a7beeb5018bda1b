package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/okulcms/be-content-moderation/internal/client"
	"github.com/okulcms/be-content-moderation/internal/config"
	"github.com/okulcms/be-content-moderation/internal/database"
	"github.com/okulcms/be-content-moderation/internal/handler"
	"github.com/okulcms/be-content-moderation/internal/logger"
	"github.com/okulcms/be-content-moderation/internal/middleware"
	"github.com/okulcms/be-content-moderation/internal/repository"
	"github.com/okulcms/be-content-moderation/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting content moderation service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	if err := database.Migrate(cfg.Database.DSN()); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize repositories
	requestRepo := repository.NewChangeRequestRepository(db)
	contentRepo := repository.NewContentRepository(db)
	auditRepo := repository.NewModerationAuditRepository(db)

	// Notification publisher (optional — the workflow runs without it)
	var notifier service.EventPublisher
	if nc, err := nats.Connect(cfg.NATS.URL); err != nil {
		log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("NATS unavailable; moderation events will not be published")
	} else {
		defer nc.Drain()
		pub, err := client.NewNotificationPublisher(nc, log.Logger)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to create notification publisher")
		} else {
			notifier = pub
			log.Info().Str("url", cfg.NATS.URL).Msg("Notification publisher initialized")
		}
	}

	// Identity client (optional — views degrade to id-only identity)
	var identity service.IdentityResolver
	if cfg.Identity.BaseURL != "" {
		identity = client.NewIdentityClient(cfg.Identity.BaseURL)
		log.Info().Str("url", cfg.Identity.BaseURL).Msg("Identity client initialized")
	}

	// Initialize services
	moderationService := service.NewModerationService(requestRepo, contentRepo, auditRepo, notifier, identity, log)
	contentService := service.NewContentService(contentRepo, log)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(moderationService, contentService, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Change request routes
	mux.HandleFunc("/api/v1/change-requests", httpHandler.ListChangeRequests)
	mux.HandleFunc("/api/v1/change-requests/propose", httpHandler.ProposeChange)
	mux.HandleFunc("/api/v1/change-requests/get", httpHandler.GetChangeRequest)
	mux.HandleFunc("/api/v1/change-requests/approve", httpHandler.ApproveChangeRequest)
	mux.HandleFunc("/api/v1/change-requests/reject", httpHandler.RejectChangeRequest)
	mux.HandleFunc("/api/v1/change-requests/audit", httpHandler.GetAuditTrail)

	// Content routes
	mux.HandleFunc("/api/v1/content", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.ListContent(w, r)
		case http.MethodPost:
			httpHandler.CreateContent(w, r)
		case http.MethodPut:
			httpHandler.UpdateContent(w, r)
		case http.MethodDelete:
			httpHandler.DeleteContent(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/content/get", httpHandler.GetContent)

	// Apply middleware, innermost first: RequestID must end up outermost so
	// Logger and Recovery see the request ID in the context.
	var h http.Handler = mux
	h = middleware.Timeout(cfg.Server.WriteTimeout)(h)
	h = middleware.CORS(cfg.Server.AllowedOrigins)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.RequestID(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
