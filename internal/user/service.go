package user

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service handles user business logic
type Service struct {
	repo  Repository
	audit AuditRecorder
}

// NewService creates a new user service
func NewService(repo Repository, audit AuditRecorder) *Service {
	return &Service{
		repo:  repo,
		audit: audit,
	}
}

// RegisterParams are the inputs to Register.
type RegisterParams struct {
	Username    string
	Password    string
	Email       string
	Phone       *string
	FullName    string
	DateOfBirth time.Time
}

// Register creates a new customer in pending KYC state.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*User, error) {
	exists, err := s.repo.Exists(ctx, p.Username, p.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check if user exists: %w", err)
	}
	if exists {
		return nil, ErrAlreadyExists
	}

	u := &User{
		Username:    p.Username,
		Email:       p.Email,
		Phone:       p.Phone,
		FullName:    p.FullName,
		DateOfBirth: p.DateOfBirth,
		KYCStatus:   KYCPending,
		Role:        RoleCustomer,
		IsActive:    true,
	}
	if err := u.SetPassword(p.Password); err != nil {
		return nil, err
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	// The row and its audit record commit together; a failed audit write
	// leaves no user behind.
	err = s.withinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, u); err != nil {
			return err
		}
		if err := s.audit.UserCreated(ctx, u, nil); err != nil {
			return fmt.Errorf("failed to record user creation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return u, nil
}

// withinTx runs fn inside one store transaction, rolling back on any error.
func (s *Service) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txCtx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin store transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = s.repo.RollbackTx(txCtx)
		}
	}()

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := s.repo.CommitTx(txCtx); err != nil {
		return err
	}
	committed = true
	return nil
}

// Authenticate verifies a username/password pair and returns the user.
// Inactive users cannot log in.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Don't reveal whether the username exists
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := u.CheckPassword(password); err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInactive
	}

	return u, nil
}

// GetByID retrieves a user by ID
func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// ProfileUpdate carries the user-editable profile fields; nil leaves the
// field unchanged.
type ProfileUpdate struct {
	FullName *string
	Email    *string
	Phone    *string
}

// UpdateProfile applies the given profile changes.
func (s *Service) UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Phone != nil {
		u.Phone = upd.Phone
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	u.UpdatedAt = time.Now()
	if err := s.repo.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword verifies the old password before setting the new one.
func (s *Service) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := u.CheckPassword(oldPassword); err != nil {
		return err
	}
	if err := u.SetPassword(newPassword); err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, id, u.PasswordHash)
}
