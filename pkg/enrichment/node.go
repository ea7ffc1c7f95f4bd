package enrichment

import (
	"github.com/sowailem/ownable/pkg/entities"
)

// nodeKind tags the shape of a payload node so the walk dispatches
// explicitly instead of sniffing types at every step.
type nodeKind int

const (
	nodeScalar nodeKind = iota
	nodeList
	nodeMap
	nodeEntity
	nodeOwnership
)

// classify buckets a decoded JSON value. A map only counts as an entity
// when the parallel original object identifies it as its own serialization;
// a bare map with owner and ownable type fields is treated as an embedded
// ownership record.
func classify(value any, original *entities.Entity) nodeKind {
	switch v := value.(type) {
	case []any:
		return nodeList
	case map[string]any:
		if original != nil && !original.Ref.IsZero() && matchesEntity(v, original) {
			return nodeEntity
		}
		if isOwnershipRecord(v) {
			return nodeOwnership
		}
		return nodeMap
	default:
		return nodeScalar
	}
}

// matchesEntity reports whether the map plausibly is the entity's own
// serialization. Hosts often return the entity wrapped in a response
// envelope; an envelope either carries a different id than the entity ref
// or no id at all alongside a data key, and must not be mistaken for the
// entity itself.
func matchesEntity(m map[string]any, ent *entities.Entity) bool {
	if id, ok := m["id"]; ok {
		return idEquals(id, ent.Ref.ID)
	}
	_, hasData := m["data"]
	return !hasData
}

func idEquals(v any, id int64) bool {
	switch n := v.(type) {
	case float64:
		return int64(n) == id
	case int64:
		return n == id
	case int:
		return int64(n) == id
	default:
		return false
	}
}

func isOwnershipRecord(m map[string]any) bool {
	if _, ok := m["owner_type"].(string); !ok {
		return false
	}
	if _, ok := m["ownable_type"].(string); !ok {
		return false
	}
	_, hasOwner := m["owner_id"]
	_, hasOwnable := m["ownable_id"]
	return hasOwner && hasOwnable
}

// originalFor narrows the caller-supplied original to a single entity.
func originalFor(original any) *entities.Entity {
	ent, _ := original.(*entities.Entity)
	return ent
}

// originalAt returns the original entity aligned with a list element, when
// the caller supplied a slice of originals matching the payload list.
func originalAt(original any, index, length int) any {
	ents, ok := original.([]*entities.Entity)
	if !ok || len(ents) != length {
		return nil
	}
	return ents[index]
}

// envelopeChild carries the deposited original through a wrapping response
// envelope: the original pairs with the envelope's data value and with
// nothing else.
func envelopeChild(original any, key string) any {
	if key != "data" {
		return nil
	}
	return original
}
