package employee

import "context"

// Repository defines the persistence operations for employees.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Employee, error)
	GetByUsername(ctx context.Context, username string) (*Employee, error)
}
