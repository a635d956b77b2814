package user

import (
	"context"
)

// Filters narrows user listings for admin surfaces.
type Filters struct {
	Search    string // matches username, full name, or email
	KYCStatus *KYCStatus
	Limit     int
}

// Repository defines the interface for user persistence operations.
// BeginTx returns a derived context carrying an open store transaction;
// every method called with that context joins it, so a mutation and its
// audit row commit or roll back together.
type Repository interface {
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error

	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Exists(ctx context.Context, username, email string) (bool, error)
	UpdateProfile(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SetKYCStatus(ctx context.Context, id int64, status KYCStatus) error
	SetActive(ctx context.Context, id int64, active bool) error
	List(ctx context.Context, filters Filters) ([]*User, error)
}

// AuditRecorder receives user state transitions. Implementations write
// rows only after (or atomically with) the committed mutation.
type AuditRecorder interface {
	UserCreated(ctx context.Context, u *User, performedBy *int64) error
	UserActiveChanged(ctx context.Context, userID int64, oldActive, newActive bool, performedBy *int64) error
	UserKYCChanged(ctx context.Context, userID int64, oldStatus, newStatus KYCStatus, performedBy *int64) error
}
