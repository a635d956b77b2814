// Package audit appends immutable who-did-what-when records for users,
// accounts, and transactions. Rows are written within the same store
// transaction as the mutation they describe: an audit row exists iff the
// change committed. Transactions themselves are not duplicated here; the
// transaction table is its own audit record.
package audit

import (
	"context"
	"encoding/json"
	"time"
)

// EntityType identifies the kind of entity an audit row describes.
type EntityType string

const (
	EntityUser        EntityType = "USER"
	EntityAccount     EntityType = "ACCOUNT"
	EntityTransaction EntityType = "TRANSACTION"
)

// ActionType identifies what happened to the entity.
type ActionType string

const (
	ActionCreate       ActionType = "CREATE"
	ActionUpdate       ActionType = "UPDATE"
	ActionStatusChange ActionType = "STATUS_CHANGE"
)

// Log is one append-only audit row. OldValue and NewValue are JSON
// snapshots of the changed subset of fields; either may be nil.
type Log struct {
	ID          int64
	EntityType  EntityType
	EntityID    int64
	Action      ActionType
	OldValue    json.RawMessage
	NewValue    json.RawMessage
	PerformedBy *int64 // user or employee id; nil for system
	IPAddress   *string
	CreatedAt   time.Time
}

// Filters narrows audit log listings.
type Filters struct {
	EntityType *EntityType
	EntityID   *int64
	Limit      int
}

// Repository persists audit rows. Insert participates in any store
// transaction carried by the context.
type Repository interface {
	Insert(ctx context.Context, log *Log) error
	List(ctx context.Context, filters Filters) ([]*Log, error)
}
