package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crestbank/core/internal/admin"
	"github.com/crestbank/core/internal/audit"
	"github.com/crestbank/core/internal/employee"
	"github.com/crestbank/core/internal/infra/postgres"
	infraRedis "github.com/crestbank/core/internal/infra/redis"
	"github.com/crestbank/core/internal/ledger"
	"github.com/crestbank/core/internal/transport/httpapi"
	"github.com/crestbank/core/internal/transport/httpapi/handler"
	"github.com/crestbank/core/internal/transport/httpapi/middleware"
	"github.com/crestbank/core/internal/user"
	"github.com/crestbank/core/internal/views"
	"github.com/crestbank/core/pkg/config"
	"github.com/crestbank/core/pkg/logger"
)

func main() {
	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewDefault(cfg.Env)
	log.Info("Starting CrestBank core API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Initialize database connection pool
	db, err := postgres.NewPool(ctx, postgres.Config{URL: cfg.DatabaseURL})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("Database connection established")

	// Initialize Redis client for the view cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Redis connection established")

	// Initialize repositories
	ledgerRepo := postgres.NewLedgerRepository(db)
	userRepo := postgres.NewUserRepository(db)
	employeeRepo := postgres.NewEmployeeRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	viewsRepo := postgres.NewViewsRepository(db)

	// Initialize services
	recorder := audit.NewRecorder(auditRepo)
	ledgerSvc := ledger.NewService(ledgerRepo, recorder, ledger.Config{
		DefaultCurrency:      cfg.DefaultCurrency,
		SingleAccountPerUser: cfg.SingleAccountPerUser,
	})
	userSvc := user.NewService(userRepo, recorder)
	employeeSvc := employee.NewService(employeeRepo)
	adminSvc := admin.NewService(userRepo, recorder, ledgerSvc, auditRepo)
	viewCache := infraRedis.NewViewCache(redisClient, log)
	viewSvc := views.NewService(viewsRepo, ledgerSvc, viewCache, log)
	jwtSvc := middleware.NewJWTService(cfg.JWTSecret)
	log.Info("Services initialized")

	// Initialize HTTP handlers
	authHandler := handler.NewAuthHandler(userSvc, employeeSvc, jwtSvc)
	profileHandler := handler.NewProfileHandler(userSvc)
	accountHandler := handler.NewAccountHandler(ledgerSvc, viewSvc)
	transactionHandler := handler.NewTransactionHandler(ledgerSvc, viewSvc)
	adminHandler := handler.NewAdminHandler(adminSvc, viewSvc)
	healthHandler := handler.NewHealthHandler(db)

	// Determine allowed origins for CORS
	allowedOrigins := []string{"http://localhost:5173", "http://localhost:3000"}
	if cfg.IsProduction() {
		if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
			allowedOrigins = []string{origins}
		}
	}

	// Create HTTP router
	r := httpapi.NewRouter(httpapi.Config{
		Logger:             log,
		AllowedOrigins:     allowedOrigins,
		AuthHandler:        authHandler,
		ProfileHandler:     profileHandler,
		AccountHandler:     accountHandler,
		TransactionHandler: transactionHandler,
		AdminHandler:       adminHandler,
		HealthHandler:      healthHandler,
		JWTService:         jwtSvc,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	log.Info("Shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped gracefully")
}
