package enrichment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sowailem/ownable/pkg/entities"
	"github.com/sowailem/ownable/pkg/models"
	"github.com/sowailem/ownable/pkg/registry"
)

type stubLookup struct {
	rows map[string]*models.Ownership
	err  error
}

func (s *stubLookup) Current(ctx context.Context, ownableType string, ownableID int64) (*models.Ownership, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rows[fmt.Sprintf("%s:%d", ownableType, ownableID)], nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testSnapshot(descriptors ...models.OwnableModel) *registry.Snapshot {
	return registry.NewSnapshot(descriptors)
}

func descriptor(modelClass, name string, responseFields ...string) models.OwnableModel {
	d := models.OwnableModel{
		ModelClass: modelClass,
		Name:       name,
		IsActive:   true,
	}
	d.ResponseFields.Data = responseFields
	return d
}

func newTestWalker(lookup OwnershipLookup, enabled bool) *Walker {
	return NewWalker(testLogger(), lookup, Config{Enabled: enabled})
}

func TestEnrichDisabled(t *testing.T) {
	walker := newTestWalker(&stubLookup{}, false)
	snap := testSnapshot(descriptor("App\\Models\\Post", "posts"))

	payload := map[string]any{"id": float64(1), "title": "hello"}
	original := entities.NewEntity(entities.Ref{ID: 1, Type: "App\\Models\\Post"})

	out := walker.Enrich(context.Background(), snap, payload, original)

	assert.Equal(t, payload, out)
}

func TestEnrichScalarsPassThrough(t *testing.T) {
	walker := newTestWalker(&stubLookup{}, true)
	snap := testSnapshot()

	for _, payload := range []any{"hello", float64(42), true, nil} {
		out := walker.Enrich(context.Background(), snap, payload, nil)
		assert.Equal(t, payload, out)
	}
}

func TestEnrichAttachesCurrentOwnership(t *testing.T) {
	lookup := &stubLookup{rows: map[string]*models.Ownership{
		"App\\Models\\Post:7": {
			ID:          3,
			OwnerID:     1,
			OwnerType:   "App\\Models\\User",
			OwnableID:   7,
			OwnableType: "App\\Models\\Post",
			IsCurrent:   true,
			CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}}
	walker := newTestWalker(lookup, true)
	snap := testSnapshot(descriptor("App\\Models\\Post", "MyPostAlias"))

	payload := map[string]any{"id": float64(7), "title": "hello"}
	original := entities.NewEntity(entities.Ref{ID: 7, Type: "App\\Models\\Post"})

	out := walker.Enrich(context.Background(), snap, payload, original)

	result, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hello", result["title"])

	ownership, ok := result["ownership"].(map[string]any)
	require.True(t, ok, "ownership key should be attached")
	assert.Equal(t, int64(3), ownership["id"])
	assert.Equal(t, "MyPostAlias", ownership["ownable_type"])
	// no alias registered for the owner type, short name fallback
	assert.Equal(t, "User", ownership["owner_type"])
}

func TestEnrichNoCurrentOwnershipLeavesNodeUnmodified(t *testing.T) {
	walker := newTestWalker(&stubLookup{}, true)
	snap := testSnapshot(descriptor("App\\Models\\Post", "posts"))

	payload := map[string]any{"id": float64(7), "title": "hello"}
	original := entities.NewEntity(entities.Ref{ID: 7, Type: "App\\Models\\Post"})

	out := walker.Enrich(context.Background(), snap, payload, original)

	result := out.(map[string]any)
	_, hasOwnership := result["ownership"]
	assert.False(t, hasOwnership)
	assert.Equal(t, "hello", result["title"])
}

func TestEnrichUntrackedTypeSkipsLookup(t *testing.T) {
	lookup := &stubLookup{err: errors.New("lookup must not be called")}
	walker := newTestWalker(lookup, true)
	snap := testSnapshot(descriptor("App\\Models\\Post", "posts"))

	payload := map[string]any{"id": float64(9)}
	original := entities.NewEntity(entities.Ref{ID: 9, Type: "App\\Models\\Comment"})

	out := walker.Enrich(context.Background(), snap, payload, original)

	result := out.(map[string]any)
	_, hasOwnership := result["ownership"]
	assert.False(t, hasOwnership)
}

func TestEnrichLookupFailureDegradesToPassThrough(t *testing.T) {
	lookup := &stubLookup{err: errors.New("database is down")}
	walker := newTestWalker(lookup, true)
	snap := testSnapshot(descriptor("App\\Models\\Post", "posts"))

	payload := map[string]any{"id": float64(7), "title": "hello"}
	original := entities.NewEntity(entities.Ref{ID: 7, Type: "App\\Models\\Post"})

	out := walker.Enrich(context.Background(), snap, payload, original)

	result := out.(map[string]any)
	_, hasOwnership := result["ownership"]
	assert.False(t, hasOwnership)
	assert.Equal(t, "hello", result["title"])
}

func TestEnrichGroupsAndFiltersOwnedItems(t *testing.T) {
	walker := newTestWalker(&stubLookup{}, true)
	snap := testSnapshot(
		descriptor("App\\Models\\User", "users"),
		descriptor("App\\Models\\Post", "posts", "id", "title"),
	)

	original := entities.NewEntity(entities.Ref{ID: 1, Type: "App\\Models\\User"}).
		WithOwnedItems([]entities.OwnedItem{
			{OwnableType: "App\\Models\\Post", Ownable: map[string]any{"id": float64(1), "title": "first", "content": "secret"}},
			{OwnableType: "App\\Models\\Post", Ownable: map[string]any{"id": float64(2), "title": "second", "content": "secret"}},
		})

	payload := map[string]any{"id": float64(1), "name": "sam"}

	out := walker.Enrich(context.Background(), snap, payload, original)

	result := out.(map[string]any)
	groups, ok := result["owned_items"].([]any)
	require.True(t, ok)
	require.Len(t, groups, 1)

	posts, ok := groups[0].(map[string]any)["posts"].([]any)
	require.True(t, ok)
	require.Len(t, posts, 2)

	first := posts[0].(map[string]any)
	assert.Equal(t, float64(1), first["id"])
	assert.Equal(t, "first", first["title"])
	_, hasContent := first["content"]
	assert.False(t, hasContent, "content should be stripped by response_fields")

	second := posts[1].(map[string]any)
	assert.Equal(t, "second", second["title"])
}

func TestEnrichOwnedItemsGroupOrder(t *testing.T) {
	walker := newTestWalker(&stubLookup{}, true)
	snap := testSnapshot(
		descriptor("App\\Models\\User", "users"),
		descriptor("App\\Models\\Post", "posts"),
	)

	original := entities.NewEntity(entities.Ref{ID: 1, Type: "App\\Models\\User"}).
		WithOwnedItems([]entities.OwnedItem{
			{OwnableType: "App\\Models\\Post", Ownable: map[string]any{"id": float64(1)}},
			{OwnableType: "App\\Models\\Badge", Ownable: map[string]any{"id": float64(2)}},
			{OwnableType: "App\\Models\\Post", Ownable: map[string]any{"id": float64(3)}},
		})

	out := walker.Enrich(context.Background(), snap, map[string]any{"id": float64(1)}, original)

	groups := out.(map[string]any)["owned_items"].([]any)
	require.Len(t, groups, 2)

	// groups keep encounter order, unregistered types fall back to short name
	_, hasPosts := groups[0].(map[string]any)["posts"]
	assert.True(t, hasPosts)
	badges, hasBadges := groups[1].(map[string]any)["Badge"]
	assert.True(t, hasBadges)
	assert.Len(t, badges, 1)

	posts := groups[0].(map[string]any)["posts"].([]any)
	assert.Len(t, posts, 2)
	assert.Equal(t, float64(1), posts[0].(map[string]any)["id"])
	assert.Equal(t, float64(3), posts[1].(map[string]any)["id"])
}

func TestEnrichUnwrapsResponseEnvelope(t *testing.T) {
	lookup := &stubLookup{rows: map[string]*models.Ownership{
		"App\\Models\\Post:7": {ID: 3, OwnerID: 1, OwnerType: "App\\Models\\User", OwnableID: 7, OwnableType: "App\\Models\\Post", IsCurrent: true},
	}}
	walker := newTestWalker(lookup, true)
	snap := testSnapshot(descriptor("App\\Models\\Post", "posts"))

	payload := map[string]any{
		"message": "ok",
		"data":    map[string]any{"id": float64(7), "title": "hello"},
	}
	original := entities.NewEntity(entities.Ref{ID: 7, Type: "App\\Models\\Post"})

	out := walker.Enrich(context.Background(), snap, payload, original)

	envelope := out.(map[string]any)
	_, onEnvelope := envelope["ownership"]
	assert.False(t, onEnvelope, "envelope must not be treated as the entity")

	inner := envelope["data"].(map[string]any)
	ownership, onEntity := inner["ownership"].(map[string]any)
	require.True(t, onEntity, "entity under data should be enriched")
	assert.Equal(t, int64(3), ownership["id"])
	assert.Equal(t, "hello", inner["title"])
}

func TestEnrichUnwrapsEnvelopeAroundList(t *testing.T) {
	lookup := &stubLookup{rows: map[string]*models.Ownership{
		"App\\Models\\Post:1": {ID: 1, OwnerID: 1, OwnerType: "App\\Models\\User", OwnableID: 1, OwnableType: "App\\Models\\Post", IsCurrent: true},
	}}
	walker := newTestWalker(lookup, true)
	snap := testSnapshot(descriptor("App\\Models\\Post", "posts"))

	payload := map[string]any{
		"data": []any{
			map[string]any{"id": float64(1)},
			map[string]any{"id": float64(2)},
		},
	}
	originals := []*entities.Entity{
		entities.NewEntity(entities.Ref{ID: 1, Type: "App\\Models\\Post"}),
		entities.NewEntity(entities.Ref{ID: 2, Type: "App\\Models\\Post"}),
	}

	out := walker.Enrich(context.Background(), snap, payload, originals)

	list := out.(map[string]any)["data"].([]any)
	require.Len(t, list, 2)
	_, firstHas := list[0].(map[string]any)["ownership"]
	_, secondHas := list[1].(map[string]any)["ownership"]
	assert.True(t, firstHas)
	assert.False(t, secondHas)
}

func TestEnrichIDMismatchIsNotTheEntity(t *testing.T) {
	lookup := &stubLookup{err: errors.New("lookup must not be called")}
	walker := newTestWalker(lookup, true)
	snap := testSnapshot(descriptor("App\\Models\\Post", "posts"))

	payload := map[string]any{"id": float64(99), "title": "someone else"}
	original := entities.NewEntity(entities.Ref{ID: 7, Type: "App\\Models\\Post"})

	out := walker.Enrich(context.Background(), snap, payload, original)

	result := out.(map[string]any)
	_, hasOwnership := result["ownership"]
	assert.False(t, hasOwnership)
	assert.Equal(t, "someone else", result["title"])
}

func TestEnrichRewritesEmbeddedOwnershipRecords(t *testing.T) {
	walker := newTestWalker(&stubLookup{}, true)
	snap := testSnapshot(
		descriptor("App\\Models\\User", "MyUserAlias"),
		descriptor("App\\Models\\Post", "MyPostAlias"),
	)

	payload := map[string]any{
		"ownership": map[string]any{
			"id":           float64(1),
			"owner_id":     float64(2),
			"owner_type":   "App\\Models\\User",
			"ownable_id":   float64(3),
			"ownable_type": "App\\Models\\Post",
		},
	}

	out := walker.Enrich(context.Background(), snap, payload, nil)

	record := out.(map[string]any)["ownership"].(map[string]any)
	assert.Equal(t, "MyUserAlias", record["owner_type"])
	assert.Equal(t, "MyPostAlias", record["ownable_type"])
}

func TestEnrichRecursesOnlyIntoLoadedRelations(t *testing.T) {
	lookup := &stubLookup{rows: map[string]*models.Ownership{
		"App\\Models\\Post:5": {ID: 9, OwnerID: 1, OwnerType: "App\\Models\\User", OwnableID: 5, OwnableType: "App\\Models\\Post", IsCurrent: true},
	}}
	walker := newTestWalker(lookup, true)
	snap := testSnapshot(descriptor("App\\Models\\Post", "posts"))

	post := entities.NewEntity(entities.Ref{ID: 5, Type: "App\\Models\\Post"})
	user := entities.NewEntity(entities.Ref{ID: 1, Type: "App\\Models\\User"}).
		WithRelation("post", post)

	payload := map[string]any{
		"id":   float64(1),
		"post": map[string]any{"id": float64(5), "title": "loaded"},
		// this key looks like an entity but no relation was loaded for it
		"other": map[string]any{"id": float64(6), "title": "not loaded"},
	}

	out := walker.Enrich(context.Background(), snap, payload, user)

	result := out.(map[string]any)
	loaded := result["post"].(map[string]any)
	_, hasOwnership := loaded["ownership"]
	assert.True(t, hasOwnership, "loaded relation should be enriched")

	unloaded := result["other"].(map[string]any)
	_, hasOwnership = unloaded["ownership"]
	assert.False(t, hasOwnership, "unloaded relation must not be enriched")
}

func TestEnrichListElementWise(t *testing.T) {
	lookup := &stubLookup{rows: map[string]*models.Ownership{
		"App\\Models\\Post:1": {ID: 1, OwnerID: 1, OwnerType: "App\\Models\\User", OwnableID: 1, OwnableType: "App\\Models\\Post", IsCurrent: true},
	}}
	walker := newTestWalker(lookup, true)
	snap := testSnapshot(descriptor("App\\Models\\Post", "posts"))

	payload := []any{
		map[string]any{"id": float64(1)},
		map[string]any{"id": float64(2)},
	}
	originals := []*entities.Entity{
		entities.NewEntity(entities.Ref{ID: 1, Type: "App\\Models\\Post"}),
		entities.NewEntity(entities.Ref{ID: 2, Type: "App\\Models\\Post"}),
	}

	out := walker.Enrich(context.Background(), snap, payload, originals)

	list := out.([]any)
	require.Len(t, list, 2)
	_, firstHas := list[0].(map[string]any)["ownership"]
	_, secondHas := list[1].(map[string]any)["ownership"]
	assert.True(t, firstHas)
	assert.False(t, secondHas)
}

func TestEnrichMisalignedOriginalsPassThrough(t *testing.T) {
	lookup := &stubLookup{err: errors.New("lookup must not be called")}
	walker := newTestWalker(lookup, true)
	snap := testSnapshot(descriptor("App\\Models\\Post", "posts"))

	payload := []any{map[string]any{"id": float64(1)}}
	originals := []*entities.Entity{
		entities.NewEntity(entities.Ref{ID: 1, Type: "App\\Models\\Post"}),
		entities.NewEntity(entities.Ref{ID: 2, Type: "App\\Models\\Post"}),
	}

	out := walker.Enrich(context.Background(), snap, payload, originals)

	list := out.([]any)
	_, hasOwnership := list[0].(map[string]any)["ownership"]
	assert.False(t, hasOwnership)
}

func TestEnrichBoundsRecursionDepth(t *testing.T) {
	walker := newTestWalker(&stubLookup{}, true)
	snap := testSnapshot()

	// build a chain deeper than the walk bound
	payload := map[string]any{"value": "leaf"}
	for i := 0; i < 100; i++ {
		payload = map[string]any{"nested": payload}
	}

	out := walker.Enrich(context.Background(), snap, any(payload), nil)
	require.NotNil(t, out)
}

func TestEnrichCustomAttachmentKey(t *testing.T) {
	lookup := &stubLookup{rows: map[string]*models.Ownership{
		"App\\Models\\Post:7": {ID: 3, OwnerID: 1, OwnerType: "App\\Models\\User", OwnableID: 7, OwnableType: "App\\Models\\Post", IsCurrent: true},
	}}
	walker := NewWalker(testLogger(), lookup, Config{Enabled: true, AttachmentKey: "current_ownership"})
	snap := testSnapshot(descriptor("App\\Models\\Post", "posts"))

	original := entities.NewEntity(entities.Ref{ID: 7, Type: "App\\Models\\Post"})
	out := walker.Enrich(context.Background(), snap, map[string]any{"id": float64(7)}, original)

	result := out.(map[string]any)
	_, hasDefault := result["ownership"]
	_, hasCustom := result["current_ownership"]
	assert.False(t, hasDefault)
	assert.True(t, hasCustom)
}
