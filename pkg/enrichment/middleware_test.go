package enrichment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sowailem/ownable/pkg/entities"
	"github.com/sowailem/ownable/pkg/models"
	"github.com/sowailem/ownable/pkg/registry"
	"github.com/sowailem/ownable/pkg/repositories"
)

type staticModelRepo struct {
	repositories.OwnableModelRepo
	active []models.OwnableModel
}

func (r *staticModelRepo) ListActive(ctx context.Context) ([]models.OwnableModel, error) {
	return r.active, nil
}

func TestMiddlewareEnrichesJSONResponse(t *testing.T) {
	lookup := &stubLookup{rows: map[string]*models.Ownership{
		"App\\Models\\Post:7": {ID: 3, OwnerID: 1, OwnerType: "App\\Models\\User", OwnableID: 7, OwnableType: "App\\Models\\Post", IsCurrent: true},
	}}
	walker := newTestWalker(lookup, true)
	repo := &staticModelRepo{active: []models.OwnableModel{descriptor("App\\Models\\Post", "posts")}}
	reg := registry.New(repo, nil, testLogger(), registry.Config{})

	e := echo.New()
	handler := func(c echo.Context) error {
		Deposit(c, entities.NewEntity(entities.Ref{ID: 7, Type: "App\\Models\\Post"}))
		return c.JSON(http.StatusOK, map[string]any{"id": 7, "title": "hello"})
	}

	req := httptest.NewRequest(http.MethodGet, "/posts/7", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := Middleware(walker, reg, testLogger())(handler)(c)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hello", body["title"])

	ownership, ok := body["ownership"].(map[string]any)
	require.True(t, ok, "response should carry the attached ownership")
	assert.Equal(t, "posts", ownership["ownable_type"])
}

func TestMiddlewareEnrichesEnvelopedResponse(t *testing.T) {
	lookup := &stubLookup{rows: map[string]*models.Ownership{
		"App\\Models\\Post:7": {ID: 3, OwnerID: 1, OwnerType: "App\\Models\\User", OwnableID: 7, OwnableType: "App\\Models\\Post", IsCurrent: true},
	}}
	walker := newTestWalker(lookup, true)
	repo := &staticModelRepo{active: []models.OwnableModel{descriptor("App\\Models\\Post", "posts")}}
	reg := registry.New(repo, nil, testLogger(), registry.Config{})

	e := echo.New()
	handler := func(c echo.Context) error {
		Deposit(c, entities.NewEntity(entities.Ref{ID: 7, Type: "App\\Models\\Post"}))
		return c.JSON(http.StatusOK, map[string]any{
			"message": "ok",
			"data":    map[string]any{"id": 7, "title": "hello"},
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/posts/7", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := Middleware(walker, reg, testLogger())(handler)(c)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	_, onEnvelope := body["ownership"]
	assert.False(t, onEnvelope, "envelope must stay untouched")

	inner, ok := body["data"].(map[string]any)
	require.True(t, ok)
	ownership, ok := inner["ownership"].(map[string]any)
	require.True(t, ok, "entity under data should carry the attached ownership")
	assert.Equal(t, "posts", ownership["ownable_type"])
}

func TestMiddlewareLeavesNonJSONAlone(t *testing.T) {
	walker := newTestWalker(&stubLookup{}, true)
	repo := &staticModelRepo{}
	reg := registry.New(repo, nil, testLogger(), registry.Config{})

	e := echo.New()
	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "plain text")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := Middleware(walker, reg, testLogger())(handler)(c)
	require.NoError(t, err)
	assert.Equal(t, "plain text", rec.Body.String())
}

func TestMiddlewarePassesErrorsThrough(t *testing.T) {
	walker := newTestWalker(&stubLookup{}, true)
	reg := registry.New(&staticModelRepo{}, nil, testLogger(), registry.Config{})

	e := echo.New()
	handler := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "nope")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := Middleware(walker, reg, testLogger())(handler)(c)
	require.Error(t, err)
}
