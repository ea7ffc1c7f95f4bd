package entities

// OwnedItem is one element of an eagerly loaded reverse-ownership relation:
// the owned entity's serialized attributes together with its type identifier.
type OwnedItem struct {
	OwnableType string         `json:"ownable_type"`
	Ownable     map[string]any `json:"ownable"`
}

// Entity is the pre-serialization rich value paired with a response payload
// during enrichment. Only relations the caller explicitly loaded are
// present; the walker never traverses anything else, so serializing a deep
// tree cannot fan out into per-node lookups.
type Entity struct {
	Ref       Ref
	relations map[string]any
}

// NewEntity creates a rich entity wrapper for the given reference.
func NewEntity(ref Ref) *Entity {
	return &Entity{Ref: ref, relations: make(map[string]any)}
}

// WithRelation marks a relation as loaded. Accepted values are *Entity,
// []*Entity and []OwnedItem.
func (e *Entity) WithRelation(name string, value any) *Entity {
	e.relations[name] = value
	return e
}

// WithOwnedItems marks the reverse-ownership relation as loaded.
func (e *Entity) WithOwnedItems(items []OwnedItem) *Entity {
	return e.WithRelation("owned_items", items)
}

// RelationLoaded reports whether the named relation was eagerly loaded.
func (e *Entity) RelationLoaded(name string) bool {
	if e == nil {
		return false
	}
	_, ok := e.relations[name]
	return ok
}

// Relation returns the loaded relation value, or nil.
func (e *Entity) Relation(name string) any {
	if e == nil {
		return nil
	}
	return e.relations[name]
}

// OwnedItems returns the loaded reverse-ownership relation, or nil when the
// caller never loaded it.
func (e *Entity) OwnedItems() []OwnedItem {
	items, _ := e.Relation("owned_items").([]OwnedItem)
	return items
}
