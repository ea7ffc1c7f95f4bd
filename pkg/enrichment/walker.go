// Package enrichment implements the response enrichment walk: a structural
// transform over decoded JSON payloads that attaches current-ownership and
// owned-items data to every embedded entity whose type is tracked by the
// registry. The walk is guided by a parallel tree of rich entity wrappers so
// it only descends into relations the handler actually loaded.
package enrichment

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/sowailem/ownable/pkg/entities"
	"github.com/sowailem/ownable/pkg/metrics"
	"github.com/sowailem/ownable/pkg/models"
	"github.com/sowailem/ownable/pkg/registry"
)

const (
	// maxDepth bounds the recursion. Payloads are assumed tree shaped, the
	// bound is a stop against pathologically deep input.
	maxDepth = 32

	ownedItemsKey        = "owned_items"
	defaultAttachmentKey = "ownership"
)

// OwnershipLookup resolves the current ledger row for an ownable pair.
// Satisfied by services.OwnershipService.
type OwnershipLookup interface {
	Current(ctx context.Context, ownableType string, ownableID int64) (*models.Ownership, error)
}

// Config controls the enrichment walk.
type Config struct {
	Enabled       bool
	AttachmentKey string
}

// Walker performs the enrichment walk over response payloads.
type Walker struct {
	logger     ectologger.Logger
	ownerships OwnershipLookup
	config     Config
}

// NewWalker creates a new enrichment walker
func NewWalker(logger ectologger.Logger, ownerships OwnershipLookup, config Config) *Walker {
	if config.AttachmentKey == "" {
		config.AttachmentKey = defaultAttachmentKey
	}
	return &Walker{
		logger:     logger,
		ownerships: ownerships,
		config:     config,
	}
}

// Enrich walks the payload and returns a new tree with ownership data
// attached. The snapshot is computed once per request by the caller. The
// original parameter, when non-nil, is the rich entity (or slice of
// entities) the payload was serialized from. When enrichment is disabled
// the payload is returned untouched.
func (w *Walker) Enrich(ctx context.Context, snapshot *registry.Snapshot, payload any, original any) any {
	if !w.config.Enabled || snapshot == nil {
		return payload
	}

	start := time.Now()
	out := w.walk(ctx, snapshot, payload, original, 0)
	metrics.EnrichmentWalkDuration.Observe(time.Since(start).Seconds())
	metrics.EnrichmentWalksTotal.WithLabelValues("success").Inc()
	return out
}

func (w *Walker) walk(ctx context.Context, snapshot *registry.Snapshot, value any, original any, depth int) any {
	if depth >= maxDepth {
		return value
	}

	switch classify(value, originalFor(original)) {
	case nodeList:
		list := value.([]any)
		out := make([]any, len(list))
		for i, element := range list {
			out[i] = w.walk(ctx, snapshot, element, originalAt(original, i, len(list)), depth+1)
		}
		return out
	case nodeMap:
		m := value.(map[string]any)
		out := make(map[string]any, len(m))
		for key, val := range m {
			out[key] = w.walk(ctx, snapshot, val, envelopeChild(original, key), depth+1)
		}
		return out
	case nodeOwnership:
		return w.rewriteOwnership(ctx, snapshot, value.(map[string]any), depth)
	case nodeEntity:
		return w.enrichEntity(ctx, snapshot, value.(map[string]any), originalFor(original), depth)
	default:
		return value
	}
}

// enrichEntity copies the entity's serialized map, recursing only into keys
// whose relation was eagerly loaded, then attaches the current ownership
// record and the grouped owned-items list where applicable.
func (w *Walker) enrichEntity(ctx context.Context, snapshot *registry.Snapshot, m map[string]any, ent *entities.Entity, depth int) map[string]any {
	out := make(map[string]any, len(m)+2)
	for key, val := range m {
		var next any
		if ent.RelationLoaded(key) {
			next = ent.Relation(key)
		}
		out[key] = w.walk(ctx, snapshot, val, next, depth+1)
	}

	if snapshot.Tracked(ent.Ref.Type) {
		current, err := w.ownerships.Current(ctx, ent.Ref.Type, ent.Ref.ID)
		if err != nil {
			w.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"ownable_id":   ent.Ref.ID,
				"ownable_type": ent.Ref.Type,
			}).Warn("enrichment ownership lookup failed, leaving node untouched")
		} else if current != nil {
			out[w.config.AttachmentKey] = w.ownershipView(snapshot, current)
			metrics.EnrichmentNodesAttached.Inc()
		}
	}

	if ent.RelationLoaded(ownedItemsKey) {
		out[ownedItemsKey] = w.groupOwnedItems(snapshot, ent.OwnedItems())
		metrics.EnrichmentNodesAttached.Inc()
	}

	return out
}

// rewriteOwnership copies an embedded ownership record, walking nested
// values, then rewrites its type identifiers to registry display names.
func (w *Walker) rewriteOwnership(ctx context.Context, snapshot *registry.Snapshot, m map[string]any, depth int) map[string]any {
	out := make(map[string]any, len(m))
	for key, val := range m {
		out[key] = w.walk(ctx, snapshot, val, nil, depth+1)
	}
	if t, ok := out["owner_type"].(string); ok && t != "" {
		out["owner_type"] = snapshot.DisplayName(t)
	}
	if t, ok := out["ownable_type"].(string); ok && t != "" {
		out["ownable_type"] = snapshot.DisplayName(t)
	}
	return out
}

// groupOwnedItems produces the grouped owned-items representation: an
// ordered sequence of single-key groups keyed by display name, groups in
// encounter order, items in input order, each item projected to its
// descriptor's response fields when declared.
func (w *Walker) groupOwnedItems(snapshot *registry.Snapshot, items []entities.OwnedItem) []any {
	var order []string
	groups := make(map[string][]any)

	for _, item := range items {
		name := snapshot.DisplayName(item.OwnableType)
		if _, ok := groups[name]; !ok {
			order = append(order, name)
		}
		groups[name] = append(groups[name], projectFields(item.Ownable, snapshot.Descriptor(item.OwnableType)))
	}

	out := make([]any, 0, len(order))
	for _, name := range order {
		out = append(out, map[string]any{name: groups[name]})
	}
	return out
}

// ownershipView serializes a ledger row for embedding, with type
// identifiers rewritten to display names.
func (w *Walker) ownershipView(snapshot *registry.Snapshot, o *models.Ownership) map[string]any {
	view := map[string]any{
		"id":           o.ID,
		"owner_id":     o.OwnerID,
		"owner_type":   snapshot.DisplayName(o.OwnerType),
		"ownable_id":   o.OwnableID,
		"ownable_type": snapshot.DisplayName(o.OwnableType),
		"is_current":   o.IsCurrent,
		"created_at":   o.CreatedAt,
		"updated_at":   o.UpdatedAt,
	}
	if o.Owner != nil {
		view["owner"] = o.Owner
	}
	return view
}

func projectFields(item map[string]any, descriptor *models.OwnableModel) map[string]any {
	if descriptor == nil {
		return item
	}
	fields := descriptor.ResponseFields.GetValue()
	if len(fields) == 0 {
		return item
	}
	out := make(map[string]any, len(fields))
	for _, field := range fields {
		if v, ok := item[field]; ok {
			out[field] = v
		}
	}
	return out
}
