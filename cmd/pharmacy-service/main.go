package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/events"
	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/handler"
	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/service"
	"github.com/pharmacore/pharmacy-backend/pkg/config"
	"github.com/pharmacore/pharmacy-backend/pkg/database"
	"github.com/pharmacore/pharmacy-backend/pkg/httputil"
	"github.com/pharmacore/pharmacy-backend/pkg/logger"
	"github.com/pharmacore/pharmacy-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("pharmacy-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("pharmacy-service", cfg.Server.Environment)
	log.Info().Msg("starting Pharmacy Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := repository.Migrate(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewStockEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	drugRepo := repository.NewDrugRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	seqRepo := repository.NewSequenceRepository(db)

	// Initialize services
	inventoryService := service.NewInventoryService(db, drugRepo, batchRepo, ledgerRepo, seqRepo, publisher, log, cfg.Pharmacy.DispenseRetries)
	stockService := service.NewStockService(drugRepo, batchRepo, log, cfg.Pharmacy.ExpiryAlertDays)

	// Start background alert scanner
	scanner := service.NewAlertScanner(stockService, publisher, cfg.Pharmacy.AlertScanInterval, log)
	scanner.Start(context.Background())
	defer scanner.Stop()

	// Initialize handlers
	drugHandler := handler.NewDrugHandler(inventoryService, log)
	stockHandler := handler.NewStockHandler(inventoryService, log)
	reportHandler := handler.NewReportHandler(inventoryService, stockService, log)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.Actor)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Name", "X-User-Email"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "pharmacy-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/pharmacy", func(r chi.Router) {
		// Drug catalog
		r.Route("/drugs", func(r chi.Router) {
			r.Get("/", drugHandler.List)
			r.Post("/", drugHandler.Create)
			r.Get("/{id}", drugHandler.Get)
			r.Put("/{id}", drugHandler.Update)
			r.Delete("/{id}", drugHandler.Delete)
			r.Get("/{id}/batches", drugHandler.ListBatches)
			r.Post("/{id}/batches", stockHandler.Receive)
			r.Post("/{id}/dispense", stockHandler.Dispense)
		})

		// Batch operations
		r.Route("/batches", func(r chi.Router) {
			r.Post("/{id}/dispense", stockHandler.DispenseFromBatch)
			r.Post("/{id}/adjust", stockHandler.Adjust)
		})

		// Stock views
		r.Get("/stock", reportHandler.Stock)
		r.Get("/stock/{drugId}", reportHandler.StockForDrug)

		// Alerts
		r.Get("/alerts/low-stock", reportHandler.LowStock)
		r.Get("/alerts/expiring", reportHandler.Expiring)

		// Ledger
		r.Get("/ledger", reportHandler.Ledger)

		// Dashboard
		r.Get("/dashboard/stats", reportHandler.Dashboard)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
