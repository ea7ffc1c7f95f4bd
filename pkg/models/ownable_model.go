package models

import (
	"time"

	"github.com/sowailem/ownable/pkg/database"
)

// OwnableModel describes a tracked entity type: the internal type identifier,
// its externally visible display name, and an optional allow-list of fields
// used when the type's items are serialized into owned_items groups.
type OwnableModel struct {
	ID             int64                    `db:"id" json:"id"`
	ModelClass     string                   `db:"model_class" json:"model_class"`
	Name           string                   `db:"name" json:"name"`
	Description    *string                  `db:"description" json:"description,omitempty"`
	ResponseFields database.JSONB[[]string] `db:"response_fields" json:"response_fields,omitempty"`
	IsActive       bool                     `db:"is_active" json:"is_active"`
	CreatedAt      time.Time                `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time                `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (OwnableModel) TableName() string {
	return "ownable_models"
}

// OwnableModelFilters are the optional predicates for listing descriptors.
type OwnableModelFilters struct {
	IsActive *bool
}

// OwnableModelListResponse is the paginated list payload.
type OwnableModelListResponse struct {
	Items      []OwnableModel `json:"items"`
	TotalCount int            `json:"total_count"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
}
