package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/crestbank/core/internal/ledger"
	"github.com/crestbank/core/internal/user"
)

// Recorder turns domain state transitions into audit rows. It satisfies the
// recorder interfaces of the ledger and user packages.
type Recorder struct {
	repo Repository
}

// NewRecorder creates a Recorder backed by the given repository.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) insert(ctx context.Context, log *Log) error {
	if err := r.repo.Insert(ctx, log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

func snapshot(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// Snapshots are plain maps of strings; marshal cannot fail.
		return nil
	}
	return b
}

// AccountCreated records the creation of a ledger account.
func (r *Recorder) AccountCreated(ctx context.Context, account *ledger.Account, performedBy *int64) error {
	return r.insert(ctx, &Log{
		EntityType: EntityAccount,
		EntityID:   account.ID,
		Action:     ActionCreate,
		NewValue: snapshot(map[string]any{
			"account_number": account.Number,
			"account_type":   account.Type,
			"currency":       account.Currency,
			"status":         account.Status,
		}),
		PerformedBy: performedBy,
	})
}

// AccountStatusChanged records a freeze, unfreeze, or closure.
func (r *Recorder) AccountStatusChanged(ctx context.Context, accountID int64, oldStatus, newStatus ledger.AccountStatus, performedBy *int64) error {
	return r.insert(ctx, &Log{
		EntityType:  EntityAccount,
		EntityID:    accountID,
		Action:      ActionStatusChange,
		OldValue:    snapshot(map[string]any{"status": oldStatus}),
		NewValue:    snapshot(map[string]any{"status": newStatus}),
		PerformedBy: performedBy,
	})
}

// UserCreated records a new user registration.
func (r *Recorder) UserCreated(ctx context.Context, u *user.User, performedBy *int64) error {
	return r.insert(ctx, &Log{
		EntityType: EntityUser,
		EntityID:   u.ID,
		Action:     ActionCreate,
		NewValue: snapshot(map[string]any{
			"username": u.Username,
			"email":    u.Email,
			"role":     u.Role,
		}),
		PerformedBy: performedBy,
	})
}

// UserActiveChanged records activation or deactivation of a user.
func (r *Recorder) UserActiveChanged(ctx context.Context, userID int64, oldActive, newActive bool, performedBy *int64) error {
	return r.insert(ctx, &Log{
		EntityType:  EntityUser,
		EntityID:    userID,
		Action:      ActionStatusChange,
		OldValue:    snapshot(map[string]any{"is_active": oldActive}),
		NewValue:    snapshot(map[string]any{"is_active": newActive}),
		PerformedBy: performedBy,
	})
}

// UserKYCChanged records a KYC verification decision.
func (r *Recorder) UserKYCChanged(ctx context.Context, userID int64, oldStatus, newStatus user.KYCStatus, performedBy *int64) error {
	return r.insert(ctx, &Log{
		EntityType:  EntityUser,
		EntityID:    userID,
		Action:      ActionStatusChange,
		OldValue:    snapshot(map[string]any{"kyc_status": oldStatus}),
		NewValue:    snapshot(map[string]any{"kyc_status": newStatus}),
		PerformedBy: performedBy,
	})
}

var (
	_ ledger.AuditRecorder = (*Recorder)(nil)
	_ user.AuditRecorder   = (*Recorder)(nil)
)
