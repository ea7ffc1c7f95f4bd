// Package owner exposes the ledger verbs as a single facade keyed by entity
// references, for callers embedding the ledger in-process rather than going
// through the HTTP surface.
package owner

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/sowailem/ownable/pkg/entities"
	"github.com/sowailem/ownable/pkg/models"
	"github.com/sowailem/ownable/pkg/services"
)

// Owner is the facade over the ownership service.
type Owner struct {
	service *services.OwnershipService
}

// New creates a new Owner facade
func New(service *services.OwnershipService) *Owner {
	return &Owner{service: service}
}

// Give makes owner the current owner of ownable.
func (o *Owner) Give(ctx context.Context, owner, ownable entities.Ref) (*models.Ownership, error) {
	if err := validateRef(owner, "owner"); err != nil {
		return nil, err
	}
	if err := validateRef(ownable, "ownable"); err != nil {
		return nil, err
	}
	return o.service.Give(ctx, owner.ID, owner.Type, ownable.ID, ownable.Type)
}

// Transfer moves ownable from one owner to another. The from reference is
// recorded for audit, not verified against the ledger.
func (o *Owner) Transfer(ctx context.Context, from, to, ownable entities.Ref) (*models.Ownership, error) {
	if err := validateRef(from, "from_owner"); err != nil {
		return nil, err
	}
	if err := validateRef(to, "to_owner"); err != nil {
		return nil, err
	}
	if err := validateRef(ownable, "ownable"); err != nil {
		return nil, err
	}
	return o.service.Transfer(ctx, services.TransferInput{
		FromOwnerID:   from.ID,
		FromOwnerType: from.Type,
		ToOwnerID:     to.ID,
		ToOwnerType:   to.Type,
		OwnableID:     ownable.ID,
		OwnableType:   ownable.Type,
	})
}

// Check reports whether owner currently owns ownable.
func (o *Owner) Check(ctx context.Context, owner, ownable entities.Ref) (bool, error) {
	if err := validateRef(owner, "owner"); err != nil {
		return false, err
	}
	if err := validateRef(ownable, "ownable"); err != nil {
		return false, err
	}
	return o.service.Check(ctx, owner.ID, owner.Type, ownable.ID, ownable.Type)
}

// Remove clears the current owner of ownable, keeping history.
func (o *Owner) Remove(ctx context.Context, ownable entities.Ref) (bool, error) {
	if err := validateRef(ownable, "ownable"); err != nil {
		return false, err
	}
	return o.service.Remove(ctx, ownable.ID, ownable.Type)
}

// CurrentOwner returns the current ledger row for ownable, or nil when the
// entity has no current owner.
func (o *Owner) CurrentOwner(ctx context.Context, ownable entities.Ref) (*models.Ownership, error) {
	if ownable.IsZero() {
		return nil, nil
	}
	return o.service.Current(ctx, ownable.Type, ownable.ID)
}

// OwnedItems returns everything owner currently owns.
func (o *Owner) OwnedItems(ctx context.Context, owner entities.Ref) ([]entities.OwnedItem, error) {
	if err := validateRef(owner, "owner"); err != nil {
		return nil, err
	}
	return o.service.OwnedItems(ctx, owner.ID, owner.Type)
}

func validateRef(ref entities.Ref, field string) error {
	if ref.IsZero() {
		return httperror.NewHTTPError(http.StatusBadRequest, field+" reference is incomplete")
	}
	return nil
}
