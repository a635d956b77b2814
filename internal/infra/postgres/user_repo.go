package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/crestbank/core/internal/user"
)

// UserRepository implements the user repository interface using PostgreSQL
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// BeginTx starts a store transaction and returns a context carrying it.
// Subsequent repository calls with that context, including audit writes,
// join the same transaction.
func (r *UserRepository) BeginTx(ctx context.Context) (context.Context, error) {
	return beginTx(ctx, r.db.Pool)
}

// CommitTx commits the transaction carried by the context.
func (r *UserRepository) CommitTx(ctx context.Context) error {
	return commitTx(ctx)
}

// RollbackTx rolls back the transaction carried by the context.
func (r *UserRepository) RollbackTx(ctx context.Context) error {
	return rollbackTx(ctx)
}

const userColumns = `id, username, password_hash, email, phone, full_name, date_of_birth, kyc_status, role, is_active, created_at, updated_at`

// scanUser scans a single user from a row
func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Email,
		&u.Phone,
		&u.FullName,
		&u.DateOfBirth,
		&u.KYCStatus,
		&u.Role,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user and fills in the generated id and timestamps
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (username, password_hash, email, phone, full_name, date_of_birth, kyc_status, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	q := getQueryer(ctx, r.db.Pool)
	err := q.QueryRow(ctx, query,
		u.Username,
		u.PasswordHash,
		u.Email,
		u.Phone,
		u.FullName,
		u.DateOfBirth,
		string(u.KYCStatus),
		string(u.Role),
		u.IsActive,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return user.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", mapPgError(err))
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	q := getQueryer(ctx, r.db.Pool)
	u, err := scanUser(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	q := getQueryer(ctx, r.db.Pool)
	u, err := scanUser(q.QueryRow(ctx, query, username))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// Exists reports whether a user with the username or email already exists
func (r *UserRepository) Exists(ctx context.Context, username, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`

	var exists bool
	q := getQueryer(ctx, r.db.Pool)
	if err := q.QueryRow(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// UpdateProfile writes the user-editable profile fields
func (r *UserRepository) UpdateProfile(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users
		SET full_name = $2, email = $3, phone = $4, updated_at = NOW()
		WHERE id = $1
	`

	q := getQueryer(ctx, r.db.Pool)
	tag, err := q.Exec(ctx, query, u.ID, u.FullName, u.Email, u.Phone)
	if err != nil {
		if isUniqueViolation(err, "") {
			return user.ErrAlreadyExists
		}
		return fmt.Errorf("failed to update profile: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// UpdatePassword writes a new password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`

	q := getQueryer(ctx, r.db.Pool)
	tag, err := q.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// SetKYCStatus writes a KYC decision
func (r *UserRepository) SetKYCStatus(ctx context.Context, id int64, status user.KYCStatus) error {
	query := `UPDATE users SET kyc_status = $2, updated_at = NOW() WHERE id = $1`

	q := getQueryer(ctx, r.db.Pool)
	tag, err := q.Exec(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to set kyc status: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// SetActive flips the activation flag
func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`

	q := getQueryer(ctx, r.db.Pool)
	tag, err := q.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to set active: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// List returns users matching the filters, newest first
func (r *UserRepository) List(ctx context.Context, filters user.Filters) ([]*user.User, error) {
	builder := sq.Select(userColumns).
		From("users").
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar)

	if filters.Search != "" {
		pattern := "%" + filters.Search + "%"
		builder = builder.Where(sq.Or{
			sq.ILike{"username": pattern},
			sq.ILike{"full_name": pattern},
			sq.ILike{"email": pattern},
		})
	}
	if filters.KYCStatus != nil {
		builder = builder.Where(sq.Eq{"kyc_status": string(*filters.KYCStatus)})
	}
	if filters.Limit > 0 {
		builder = builder.Limit(uint64(filters.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	q := getQueryer(ctx, r.db.Pool)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

var _ user.Repository = (*UserRepository)(nil)
