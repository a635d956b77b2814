// Package admin hosts the privileged operations employees perform on users
// and accounts. Every mutation here records the acting employee in the
// audit trail.
package admin

import (
	"context"
	"fmt"

	"github.com/crestbank/core/internal/audit"
	"github.com/crestbank/core/internal/ledger"
	"github.com/crestbank/core/internal/user"
)

// Service wires the privileged surface. Ledger mutations delegate to the
// engine so the locking and audit discipline stays in one place.
type Service struct {
	users     user.Repository
	userAudit user.AuditRecorder
	engine    *ledger.Service
	auditLogs audit.Repository
}

// NewService creates a new admin service.
func NewService(users user.Repository, userAudit user.AuditRecorder, engine *ledger.Service, auditLogs audit.Repository) *Service {
	return &Service{
		users:     users,
		userAudit: userAudit,
		engine:    engine,
		auditLogs: auditLogs,
	}
}

// SetKYCStatus records a KYC decision for a user.
func (s *Service) SetKYCStatus(ctx context.Context, userID int64, status user.KYCStatus, employeeID int64) error {
	if !status.Valid() {
		return user.ErrInvalidKYCStatus
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.KYCStatus == status {
		return nil
	}

	return s.withinTx(ctx, func(ctx context.Context) error {
		if err := s.users.SetKYCStatus(ctx, userID, status); err != nil {
			return err
		}
		if err := s.userAudit.UserKYCChanged(ctx, userID, u.KYCStatus, status, &employeeID); err != nil {
			return fmt.Errorf("failed to record kyc change: %w", err)
		}
		return nil
	})
}

// SetUserActive activates or deactivates a user. Deactivation blocks login
// and new accounts; existing accounts keep operating until frozen.
func (s *Service) SetUserActive(ctx context.Context, userID int64, active bool, employeeID int64) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsActive == active {
		return nil
	}

	return s.withinTx(ctx, func(ctx context.Context) error {
		if err := s.users.SetActive(ctx, userID, active); err != nil {
			return err
		}
		if err := s.userAudit.UserActiveChanged(ctx, userID, u.IsActive, active, &employeeID); err != nil {
			return fmt.Errorf("failed to record activation change: %w", err)
		}
		return nil
	})
}

// withinTx runs fn inside one store transaction so the mutation and its
// audit row commit or roll back together.
func (s *Service) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txCtx, err := s.users.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin store transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = s.users.RollbackTx(txCtx)
		}
	}()

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := s.users.CommitTx(txCtx); err != nil {
		return err
	}
	committed = true
	return nil
}

// CreateAccountFor opens an account on a customer's behalf.
func (s *Service) CreateAccountFor(ctx context.Context, userID int64, accountType ledger.AccountType, currency string, employeeID int64) (*ledger.Account, error) {
	return s.engine.CreateAccount(ctx, ledger.CreateAccountParams{
		UserID:      userID,
		Type:        accountType,
		Currency:    currency,
		PerformedBy: &employeeID,
	})
}

// ToggleFreeze flips an account between active and frozen.
func (s *Service) ToggleFreeze(ctx context.Context, accountID int64, employeeID int64) (ledger.AccountStatus, error) {
	return s.engine.ToggleFreeze(ctx, accountID, &employeeID)
}

// CloseAccount closes a zero-balance account.
func (s *Service) CloseAccount(ctx context.Context, accountID int64, employeeID int64) error {
	return s.engine.CloseAccount(ctx, accountID, &employeeID)
}

// ReverseTransaction posts a compensating transaction for a completed one.
func (s *Service) ReverseTransaction(ctx context.Context, transactionID int64, employeeID int64) (*ledger.Result, error) {
	return s.engine.Reverse(ctx, transactionID, &employeeID)
}

// ListUsers returns users matching the filters.
func (s *Service) ListUsers(ctx context.Context, f user.Filters) ([]*user.User, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	return s.users.List(ctx, f)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, userID int64) (*user.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UserAccounts lists a customer's accounts.
func (s *Service) UserAccounts(ctx context.Context, userID int64) ([]*ledger.Account, error) {
	return s.engine.GetAccountsByUser(ctx, userID)
}

// AuditLogs returns audit rows matching the filters, newest first.
func (s *Service) AuditLogs(ctx context.Context, f audit.Filters) ([]*audit.Log, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return s.auditLogs.List(ctx, f)
}
