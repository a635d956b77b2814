// Package httpapi is the thin HTTP boundary over the core services. All
// business rules live below it; handlers only decode, authorize, delegate,
// and encode.
package httpapi

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/crestbank/core/internal/transport/httpapi/handler"
	"github.com/crestbank/core/internal/transport/httpapi/middleware"
	"github.com/crestbank/core/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger             *logger.Logger
	AllowedOrigins     []string
	AuthHandler        *handler.AuthHandler
	ProfileHandler     *handler.ProfileHandler
	AccountHandler     *handler.AccountHandler
	TransactionHandler *handler.TransactionHandler
	AdminHandler       *handler.AdminHandler
	HealthHandler      *handler.HealthHandler
	JWTService         *middleware.JWTService
}

// NewRouter creates a new HTTP router
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.RateLimit()) // Rate limiting: 100 req/s with burst of 20

	// Health check endpoints (no authentication required)
	r.Get("/health", handler.GetHealth)
	r.Get("/health/live", handler.GetLiveness)
	if cfg.HealthHandler != nil {
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
		r.Get("/health/detailed", cfg.HealthHandler.GetHealthDetailed)
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public - no authentication required)
		if cfg.AuthHandler != nil {
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/employee/login", cfg.AuthHandler.EmployeeLogin)
		}

		// Customer routes (require a user token)
		r.Group(func(r chi.Router) {
			r.Use(middleware.UserAuth(cfg.JWTService))

			if cfg.ProfileHandler != nil {
				r.Get("/profile", cfg.ProfileHandler.GetProfile)
				r.Put("/profile", cfg.ProfileHandler.UpdateProfile)
				r.Post("/profile/change-password", cfg.ProfileHandler.ChangePassword)
			}

			if cfg.AccountHandler != nil {
				r.Post("/accounts", cfg.AccountHandler.CreateAccount)
				r.Get("/accounts", cfg.AccountHandler.ListAccounts)
				r.Get("/accounts/{id}", cfg.AccountHandler.GetAccount)
				r.Get("/accounts/{id}/statement", cfg.AccountHandler.GetStatement)
				r.Get("/accounts/{id}/mini-statement", cfg.AccountHandler.GetMiniStatement)
			}

			if cfg.TransactionHandler != nil {
				r.Post("/transactions/transfer", cfg.TransactionHandler.Transfer)
				r.Post("/transactions/deposit", cfg.TransactionHandler.Deposit)
				r.Post("/transactions/withdraw", cfg.TransactionHandler.Withdraw)
				r.Get("/transactions/history", cfg.TransactionHandler.History)
				r.Get("/transactions/spending-summary", cfg.TransactionHandler.Spending)
				r.Get("/transactions/by-reference/{ref}", cfg.TransactionHandler.GetTransactionByReference)
				r.Get("/transactions/{id}", cfg.TransactionHandler.GetTransaction)
			}
		})

		// Admin routes (require an employee token)
		if cfg.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.EmployeeAuth(cfg.JWTService))

				r.Get("/dashboard", cfg.AdminHandler.Dashboard)
				r.Get("/balance-sheet", cfg.AdminHandler.BalanceSheet)
				r.Get("/integrity", cfg.AdminHandler.IntegrityCheck)
				r.Get("/flagged-transactions", cfg.AdminHandler.FlaggedTransactions)

				r.Get("/users", cfg.AdminHandler.ListUsers)
				r.Get("/users/{id}", cfg.AdminHandler.GetUser)
				r.Get("/users/{id}/accounts", cfg.AdminHandler.UserAccounts)
				r.Get("/users/{id}/risk-scores", cfg.AdminHandler.UserRiskScores)
				r.Put("/users/{id}/kyc", cfg.AdminHandler.SetKYCStatus)
				r.Put("/users/{id}/active", cfg.AdminHandler.SetUserActive)

				r.Post("/accounts", cfg.AdminHandler.CreateAccount)
				r.Post("/accounts/{id}/freeze", cfg.AdminHandler.ToggleFreeze)
				r.Post("/accounts/{id}/close", cfg.AdminHandler.CloseAccount)

				r.Get("/transactions", cfg.AdminHandler.History)
				r.Post("/transactions/{id}/reverse", cfg.AdminHandler.ReverseTransaction)

				r.Get("/audit-logs", cfg.AdminHandler.AuditLogs)
			})
		}
	})

	return r
}
