package employee

import (
	"context"
	"errors"
	"fmt"
)

// Service handles employee authentication and lookup.
type Service struct {
	repo Repository
}

// NewService creates a new employee service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate verifies a username/password pair and returns the employee.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Employee, error) {
	e, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}

	if err := e.CheckPassword(password); err != nil {
		return nil, err
	}
	if !e.IsActive {
		return nil, ErrInactive
	}

	return e, nil
}

// GetByID retrieves an employee by ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Employee, error) {
	return s.repo.GetByID(ctx, id)
}
