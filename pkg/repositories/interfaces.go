package repositories

import (
	"context"

	"github.com/sowailem/ownable/pkg/models"
)

// OwnershipRepo defines the interface for ownership ledger operations
type OwnershipRepo interface {
	Give(ctx context.Context, ownerID int64, ownerType string, ownableID int64, ownableType string) (*models.Ownership, error)
	Check(ctx context.Context, ownerID int64, ownerType string, ownableID int64, ownableType string) (bool, error)
	Current(ctx context.Context, ownableType string, ownableID int64) (*models.Ownership, error)
	Remove(ctx context.Context, ownableID int64, ownableType string) (bool, error)
	List(ctx context.Context, filters models.OwnershipFilters, page, pageSize int) ([]models.Ownership, int, error)
	ListCurrentByOwner(ctx context.Context, ownerID int64, ownerType string) ([]models.Ownership, error)
}

// OwnableModelRepo defines the interface for ownable model descriptor operations
type OwnableModelRepo interface {
	Create(ctx context.Context, descriptor *models.OwnableModel) error
	GetByID(ctx context.Context, id int64) (*models.OwnableModel, error)
	GetByModelClass(ctx context.Context, modelClass string) (*models.OwnableModel, error)
	List(ctx context.Context, filters models.OwnableModelFilters, page, pageSize int) ([]models.OwnableModel, int, error)
	ListActive(ctx context.Context) ([]models.OwnableModel, error)
	Update(ctx context.Context, descriptor *models.OwnableModel) error
	Delete(ctx context.Context, id int64) (bool, error)
}
