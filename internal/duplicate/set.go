package duplicate

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// mapping translates source row ids to the ids of their clones. Clone ids
// are assigned up front so that rows can reference each other before they
// are persisted.
type mapping map[uuid.UUID]uuid.UUID

// fresh assigns and records a clone id for the source id.
func (m mapping) fresh(sourceID uuid.UUID) uuid.UUID {
	id := uuid.New()
	m[sourceID] = id

	return id
}

// lookup resolves a source id to its clone id.
func (m mapping) lookup(sourceID uuid.UUID) (uuid.UUID, bool) {
	id, ok := m[sourceID]
	return id, ok
}

// remap translates an optional reference. A reference pointing outside the
// copied set is dropped and logged, it must not abort the copy.
func (m mapping) remap(sourceID *uuid.UUID, entity string) *uuid.UUID {
	if sourceID == nil {
		return nil
	}

	id, ok := m[*sourceID]
	if !ok {
		log.Warn().
			Str("entity", entity).
			Str("id", sourceID.String()).
			Msg("reference points outside the copied tree, dropping it")
		return nil
	}

	return &id
}
