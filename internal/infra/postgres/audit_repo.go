package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/crestbank/core/internal/audit"
)

// AuditRepository implements the audit repository interface using
// PostgreSQL. Inserts participate in any transaction carried by the
// context, so audit rows commit with the mutation they describe.
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new PostgreSQL audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends one audit row
func (r *AuditRepository) Insert(ctx context.Context, log *audit.Log) error {
	query := `
		INSERT INTO system_audit_logs (entity_type, entity_id, action, old_value, new_value, performed_by, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	q := getQueryer(ctx, r.db.Pool)
	err := q.QueryRow(ctx, query,
		string(log.EntityType),
		log.EntityID,
		string(log.Action),
		log.OldValue,
		log.NewValue,
		log.PerformedBy,
		log.IPAddress,
	).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", mapPgError(err))
	}

	return nil
}

// List returns audit rows matching the filters, newest first
func (r *AuditRepository) List(ctx context.Context, filters audit.Filters) ([]*audit.Log, error) {
	builder := sq.Select("id", "entity_type", "entity_id", "action", "old_value", "new_value", "performed_by", "ip_address", "created_at").
		From("system_audit_logs").
		OrderBy("id DESC").
		PlaceholderFormat(sq.Dollar)

	if filters.EntityType != nil {
		builder = builder.Where(sq.Eq{"entity_type": string(*filters.EntityType)})
	}
	if filters.EntityID != nil {
		builder = builder.Where(sq.Eq{"entity_id": *filters.EntityID})
	}
	if filters.Limit > 0 {
		builder = builder.Limit(uint64(filters.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build audit query: %w", err)
	}

	q := getQueryer(ctx, r.db.Pool)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*audit.Log
	for rows.Next() {
		var log audit.Log
		err := rows.Scan(
			&log.ID,
			&log.EntityType,
			&log.EntityID,
			&log.Action,
			&log.OldValue,
			&log.NewValue,
			&log.PerformedBy,
			&log.IPAddress,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}

	return logs, nil
}

var _ audit.Repository = (*AuditRepository)(nil)
