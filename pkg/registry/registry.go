// Package registry resolves which entity types are tracked by the ownership
// ledger and how they are named externally. Active descriptors come from the
// ownable_models table merged with the statically configured type list;
// config entries without a matching row are synthesized with a derived short
// name.
package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"

	"github.com/sowailem/ownable/pkg/entities"
	"github.com/sowailem/ownable/pkg/metrics"
	"github.com/sowailem/ownable/pkg/models"
	"github.com/sowailem/ownable/pkg/repositories"
	"github.com/sowailem/ownable/pkg/tracing"
)

const snapshotCacheKey = "ownable:registry:snapshot"

// Config holds the static registry configuration.
type Config struct {
	// OwnableModels are the statically configured type identifiers, tracked
	// even without a descriptor row.
	OwnableModels []string
	// CacheTTL bounds how stale a cached snapshot may get.
	CacheTTL time.Duration
}

// Registry builds request-scoped snapshots of the tracked types.
type Registry struct {
	repo   repositories.OwnableModelRepo
	cache  *redis.Client
	logger ectologger.Logger
	config Config
}

// New creates a registry. The redis client is optional; without it every
// snapshot is rebuilt from the descriptor table.
func New(repo repositories.OwnableModelRepo, cache *redis.Client, logger ectologger.Logger, config Config) *Registry {
	if config.CacheTTL <= 0 {
		config.CacheTTL = 30 * time.Second
	}
	return &Registry{
		repo:   repo,
		cache:  cache,
		logger: logger,
		config: config,
	}
}

// Snapshot returns the current merged view of active descriptors. Dynamic
// rows win over config entries for the same type identifier.
func (r *Registry) Snapshot(ctx context.Context) (*Snapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "Registry.Snapshot")
	defer span.End()

	if cached := r.fromCache(ctx); cached != nil {
		metrics.RegistrySnapshotBuildsTotal.WithLabelValues("cache").Inc()
		return NewSnapshot(cached), nil
	}

	active, err := r.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	merged := r.merge(active)
	r.toCache(ctx, merged)
	metrics.RegistrySnapshotBuildsTotal.WithLabelValues("database").Inc()

	return NewSnapshot(merged), nil
}

// Invalidate drops the cached snapshot. Called after descriptor mutations.
func (r *Registry) Invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, snapshotCacheKey).Err(); err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("failed to invalidate registry snapshot cache")
	}
}

func (r *Registry) merge(active []models.OwnableModel) []models.OwnableModel {
	present := make(map[string]bool, len(active))
	for _, d := range active {
		present[d.ModelClass] = true
	}

	merged := active
	for _, class := range r.config.OwnableModels {
		if present[class] {
			continue
		}
		present[class] = true
		merged = append(merged, models.OwnableModel{
			ModelClass: class,
			Name:       entities.ShortName(class),
			IsActive:   true,
		})
	}
	return merged
}

func (r *Registry) fromCache(ctx context.Context) []models.OwnableModel {
	if r.cache == nil {
		return nil
	}

	payload, err := r.cache.Get(ctx, snapshotCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.WithContext(ctx).WithError(err).Warn("failed to read registry snapshot cache")
		}
		return nil
	}

	var descriptors []models.OwnableModel
	if err := json.Unmarshal(payload, &descriptors); err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("discarding malformed registry snapshot cache")
		return nil
	}
	return descriptors
}

func (r *Registry) toCache(ctx context.Context, descriptors []models.OwnableModel) {
	if r.cache == nil {
		return
	}

	payload, err := json.Marshal(descriptors)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, snapshotCacheKey, payload, r.config.CacheTTL).Err(); err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("failed to write registry snapshot cache")
	}
}
