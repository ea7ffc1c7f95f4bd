package integration

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"testing"

	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sowailem/ownable/pkg/database"
	"github.com/sowailem/ownable/pkg/entities"
	"github.com/sowailem/ownable/pkg/models"
	"github.com/sowailem/ownable/pkg/owner"
	"github.com/sowailem/ownable/pkg/repositories"
	"github.com/sowailem/ownable/pkg/services"
)

// testContext holds shared test wiring
type testContext struct {
	db      database.DB
	facade  *owner.Owner
	service *services.OwnershipService
	ctx     context.Context
}

func setupTestContext(t *testing.T) *testContext {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}
	dbUser := os.Getenv("DB_USER_NAME")
	if dbUser == "" {
		dbUser = "user"
	}
	dbPass := os.Getenv("DB_PASSWORD")
	if dbPass == "" {
		dbPass = "password"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "ownable"
	}

	dsn := "host=" + dbHost + " user=" + dbUser + " password=" + dbPass + " dbname=" + dbName + " sslmode=disable"
	sqlxDB, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")

	zapLogger, _ := zap.NewDevelopment()
	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)
	db := database.NewDatabaseInstance(sqlxDB, logger)

	repo := repositories.NewOwnershipRepository(db, logger)
	service := services.NewOwnershipService(logger, repo, entities.NewResolver(), nil)

	return &testContext{
		db:      db,
		facade:  owner.New(service),
		service: service,
		ctx:     context.Background(),
	}
}

func randomRef(typePattern string) entities.Ref {
	return entities.Ref{
		ID:   rand.Int63n(1<<40) + 1,
		Type: fmt.Sprintf(typePattern, rand.Int63()),
	}
}

// TestOwnershipLifecycle walks the full give, transfer, transfer, remove
// sequence and verifies the ledger keeps full history with no current row.
func TestOwnershipLifecycle(t *testing.T) {
	tc := setupTestContext(t)

	user1 := entities.Ref{ID: 1, Type: "App\\Models\\User"}
	user2 := entities.Ref{ID: 2, Type: "App\\Models\\User"}
	user3 := entities.Ref{ID: 3, Type: "App\\Models\\User"}
	post := randomRef("App\\Models\\Post%d")

	_, err := tc.facade.Give(tc.ctx, user1, post)
	require.NoError(t, err)

	owns, err := tc.facade.Check(tc.ctx, user1, post)
	require.NoError(t, err)
	assert.True(t, owns)

	_, err = tc.facade.Transfer(tc.ctx, user1, user2, post)
	require.NoError(t, err)

	owns, err = tc.facade.Check(tc.ctx, user1, post)
	require.NoError(t, err)
	assert.False(t, owns, "previous owner must lose ownership after transfer")

	owns, err = tc.facade.Check(tc.ctx, user2, post)
	require.NoError(t, err)
	assert.True(t, owns)

	_, err = tc.facade.Transfer(tc.ctx, user2, user3, post)
	require.NoError(t, err)

	removed, err := tc.facade.Remove(tc.ctx, post)
	require.NoError(t, err)
	assert.True(t, removed)

	current, err := tc.facade.CurrentOwner(tc.ctx, post)
	require.NoError(t, err)
	assert.Nil(t, current, "removed entity has no current owner")

	// full history remains queryable: 3 rows, none current
	list, err := tc.service.List(tc.ctx, filtersFor(post), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, list.TotalCount)
	for _, row := range list.Items {
		assert.False(t, row.IsCurrent)
	}
}

// TestOwnedItemsView verifies the reverse view over several owned entities.
func TestOwnedItemsView(t *testing.T) {
	tc := setupTestContext(t)

	ownerRef := randomRef("App\\Models\\User%d")
	first := randomRef("App\\Models\\Post%d")
	second := randomRef("App\\Models\\Badge%d")

	_, err := tc.facade.Give(tc.ctx, ownerRef, first)
	require.NoError(t, err)
	_, err = tc.facade.Give(tc.ctx, ownerRef, second)
	require.NoError(t, err)

	items, err := tc.facade.OwnedItems(tc.ctx, ownerRef)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, first.Type, items[0].OwnableType)
	assert.Equal(t, second.Type, items[1].OwnableType)
}

func filtersFor(ref entities.Ref) (filters models.OwnershipFilters) {
	filters.OwnableID = &ref.ID
	filters.OwnableType = &ref.Type
	return filters
}
