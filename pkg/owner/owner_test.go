package owner_test

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sowailem/ownable/pkg/entities"
	"github.com/sowailem/ownable/pkg/models"
	"github.com/sowailem/ownable/pkg/owner"
	"github.com/sowailem/ownable/pkg/repositories"
	"github.com/sowailem/ownable/pkg/services"
)

type stubRepo struct {
	repositories.OwnershipRepo
	giveCalls int
	removed   bool
}

func (r *stubRepo) Give(ctx context.Context, ownerID int64, ownerType string, ownableID int64, ownableType string) (*models.Ownership, error) {
	r.giveCalls++
	return &models.Ownership{ID: int64(r.giveCalls), OwnerID: ownerID, OwnerType: ownerType, OwnableID: ownableID, OwnableType: ownableType, IsCurrent: true}, nil
}

func (r *stubRepo) Remove(ctx context.Context, ownableID int64, ownableType string) (bool, error) {
	return r.removed, nil
}

func (r *stubRepo) Current(ctx context.Context, ownableType string, ownableID int64) (*models.Ownership, error) {
	return nil, nil
}

func newFacade(repo repositories.OwnershipRepo) *owner.Owner {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return owner.New(services.NewOwnershipService(logger, repo, entities.NewResolver(), nil))
}

func TestGiveRejectsZeroRefs(t *testing.T) {
	repo := &stubRepo{}
	facade := newFacade(repo)

	_, err := facade.Give(context.Background(), entities.Ref{}, entities.Ref{ID: 1, Type: "Post"})
	require.Error(t, err)

	_, err = facade.Give(context.Background(), entities.Ref{ID: 1, Type: "User"}, entities.Ref{Type: "Post"})
	require.Error(t, err)

	assert.Zero(t, repo.giveCalls, "invalid refs must not reach the ledger")
}

func TestGiveAndTransfer(t *testing.T) {
	repo := &stubRepo{}
	facade := newFacade(repo)

	user1 := entities.Ref{ID: 1, Type: "User"}
	user2 := entities.Ref{ID: 2, Type: "User"}
	post := entities.Ref{ID: 7, Type: "Post"}

	ownership, err := facade.Give(context.Background(), user1, post)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ownership.OwnerID)

	ownership, err = facade.Transfer(context.Background(), user1, user2, post)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ownership.OwnerID)
	assert.Equal(t, 2, repo.giveCalls)
}

func TestTransferRejectsZeroFromRef(t *testing.T) {
	repo := &stubRepo{}
	facade := newFacade(repo)

	_, err := facade.Transfer(context.Background(), entities.Ref{}, entities.Ref{ID: 2, Type: "User"}, entities.Ref{ID: 7, Type: "Post"})
	require.Error(t, err)
	assert.Zero(t, repo.giveCalls)
}

func TestCurrentOwnerZeroRefIsNil(t *testing.T) {
	facade := newFacade(&stubRepo{})

	ownership, err := facade.CurrentOwner(context.Background(), entities.Ref{})
	require.NoError(t, err)
	assert.Nil(t, ownership)
}

func TestRemove(t *testing.T) {
	facade := newFacade(&stubRepo{removed: true})

	removed, err := facade.Remove(context.Background(), entities.Ref{ID: 7, Type: "Post"})
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = facade.Remove(context.Background(), entities.Ref{})
	require.Error(t, err)
}
