package entities_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sowailem/ownable/pkg/entities"
)

func TestShortName(t *testing.T) {
	cases := map[string]string{
		"App\\Models\\Post": "Post",
		"domain/widget":     "widget",
		"pkg.models.Thing":  "Thing",
		"User":              "User",
		"":                  "",
	}
	for input, want := range cases {
		assert.Equal(t, want, entities.ShortName(input), input)
	}
}

func TestRefIsZero(t *testing.T) {
	assert.True(t, entities.Ref{}.IsZero())
	assert.True(t, entities.Ref{ID: 1}.IsZero())
	assert.True(t, entities.Ref{Type: "User"}.IsZero())
	assert.False(t, entities.Ref{ID: 1, Type: "User"}.IsZero())
}

func TestResolverUnregisteredTypeResolvesNil(t *testing.T) {
	resolver := entities.NewResolver()

	value, err := resolver.Resolve(context.Background(), entities.Ref{ID: 1, Type: "App\\Models\\User"})
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestResolverRegisteredSource(t *testing.T) {
	resolver := entities.NewResolver()
	resolver.Register("App\\Models\\User", entities.SourceFunc(func(ctx context.Context, id int64) (map[string]any, error) {
		return map[string]any{"id": id, "name": "sam"}, nil
	}))

	assert.True(t, resolver.Registered("App\\Models\\User"))
	assert.False(t, resolver.Registered("App\\Models\\Post"))

	value, err := resolver.Resolve(context.Background(), entities.Ref{ID: 7, Type: "App\\Models\\User"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), value["id"])
	assert.Equal(t, "sam", value["name"])
}

func TestResolverSourceError(t *testing.T) {
	resolver := entities.NewResolver()
	resolver.Register("App\\Models\\User", entities.SourceFunc(func(ctx context.Context, id int64) (map[string]any, error) {
		return nil, errors.New("not reachable")
	}))

	_, err := resolver.Resolve(context.Background(), entities.Ref{ID: 7, Type: "App\\Models\\User"})
	require.Error(t, err)
}

func TestEntityRelations(t *testing.T) {
	post := entities.NewEntity(entities.Ref{ID: 5, Type: "App\\Models\\Post"})
	user := entities.NewEntity(entities.Ref{ID: 1, Type: "App\\Models\\User"}).
		WithRelation("post", post).
		WithOwnedItems([]entities.OwnedItem{
			{OwnableType: "App\\Models\\Post", Ownable: map[string]any{"id": 5}},
		})

	assert.True(t, user.RelationLoaded("post"))
	assert.True(t, user.RelationLoaded("owned_items"))
	assert.False(t, user.RelationLoaded("comments"))
	assert.Len(t, user.OwnedItems(), 1)

	var nilEntity *entities.Entity
	assert.False(t, nilEntity.RelationLoaded("post"))
	assert.Nil(t, nilEntity.Relation("post"))
}
