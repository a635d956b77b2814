package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/crestbank/core/internal/employee"
)

// EmployeeRepository implements the employee repository interface using
// PostgreSQL
type EmployeeRepository struct {
	db *DB
}

// NewEmployeeRepository creates a new PostgreSQL employee repository
func NewEmployeeRepository(db *DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

const employeeColumns = `id, code, username, password_hash, full_name, email, department, is_active, created_at`

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var e employee.Employee
	err := row.Scan(
		&e.ID,
		&e.Code,
		&e.Username,
		&e.PasswordHash,
		&e.FullName,
		&e.Email,
		&e.Department,
		&e.IsActive,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetByID retrieves an employee by ID
func (r *EmployeeRepository) GetByID(ctx context.Context, id int64) (*employee.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`

	q := getQueryer(ctx, r.db.Pool)
	e, err := scanEmployee(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, employee.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return e, nil
}

// GetByUsername retrieves an employee by username
func (r *EmployeeRepository) GetByUsername(ctx context.Context, username string) (*employee.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE username = $1`

	q := getQueryer(ctx, r.db.Pool)
	e, err := scanEmployee(q.QueryRow(ctx, query, username))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, employee.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return e, nil
}

var _ employee.Repository = (*EmployeeRepository)(nil)
