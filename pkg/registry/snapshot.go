package registry

import (
	"github.com/sowailem/ownable/pkg/entities"
	"github.com/sowailem/ownable/pkg/models"
)

// Snapshot is the request-scoped view of the tracked ownable types: the
// active descriptors (dynamic table merged with static configuration) and
// the alias map derived from them. Handlers build one snapshot per request
// and pass it down explicitly; nothing here touches the database.
type Snapshot struct {
	descriptors []models.OwnableModel
	aliases     map[string]string
	byClass     map[string]*models.OwnableModel
}

// NewSnapshot builds a snapshot from descriptors in encounter order. The
// first entry per model class wins.
func NewSnapshot(descriptors []models.OwnableModel) *Snapshot {
	s := &Snapshot{
		descriptors: descriptors,
		aliases:     make(map[string]string, len(descriptors)),
		byClass:     make(map[string]*models.OwnableModel, len(descriptors)),
	}
	for i := range descriptors {
		d := &descriptors[i]
		if _, ok := s.byClass[d.ModelClass]; ok {
			continue
		}
		s.byClass[d.ModelClass] = d
		s.aliases[d.ModelClass] = d.Name
	}
	return s
}

// ActiveDescriptors returns the merged active descriptors in encounter
// order: dynamic entries first, then synthesized config entries.
func (s *Snapshot) ActiveDescriptors() []models.OwnableModel {
	return s.descriptors
}

// Alias returns the display alias for a type identifier when the type is
// tracked.
func (s *Snapshot) Alias(typeIdentifier string) (string, bool) {
	alias, ok := s.aliases[typeIdentifier]
	return alias, ok
}

// AliasMap returns the full type identifier to display name mapping.
func (s *Snapshot) AliasMap() map[string]string {
	return s.aliases
}

// Tracked reports whether the type identifier has an active descriptor.
func (s *Snapshot) Tracked(typeIdentifier string) bool {
	_, ok := s.byClass[typeIdentifier]
	return ok
}

// Descriptor returns the active descriptor for a type identifier, nil when
// the type is not tracked.
func (s *Snapshot) Descriptor(typeIdentifier string) *models.OwnableModel {
	return s.byClass[typeIdentifier]
}

// DisplayName resolves a type identifier to its external name: the
// registered alias, or the derived short name when none exists.
func (s *Snapshot) DisplayName(typeIdentifier string) string {
	if alias, ok := s.aliases[typeIdentifier]; ok {
		return alias
	}
	return entities.ShortName(typeIdentifier)
}
