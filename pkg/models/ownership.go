package models

import (
	"time"
)

// Ownership is a single row in the ownership ledger. Rows are append-only:
// superseding a record only flips is_current, the history is never deleted.
type Ownership struct {
	ID          int64     `db:"id" json:"id"`
	OwnerID     int64     `db:"owner_id" json:"owner_id"`
	OwnerType   string    `db:"owner_type" json:"owner_type"`
	OwnableID   int64     `db:"ownable_id" json:"ownable_id"`
	OwnableType string    `db:"ownable_type" json:"ownable_type"`
	IsCurrent   bool      `db:"is_current" json:"is_current"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	// Owner and Ownable hold the resolved entities when the caller asked for
	// them. They are never persisted.
	Owner   map[string]any `db:"-" json:"owner,omitempty"`
	Ownable map[string]any `db:"-" json:"ownable,omitempty"`
}

// TableName returns the database table name
func (Ownership) TableName() string {
	return "ownerships"
}

// OwnershipFilters are the optional predicates for listing ledger rows.
// Any subset may be set; they are AND-combined.
type OwnershipFilters struct {
	OwnerID     *int64
	OwnerType   *string
	OwnableID   *int64
	OwnableType *string
	IsCurrent   *bool
}

// OwnershipListResponse is the paginated list payload.
type OwnershipListResponse struct {
	Items      []Ownership `json:"items"`
	TotalCount int         `json:"total_count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
}
