package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultModel is the base model for all entities in the budget tree.
//
// IDs are UUIDs that may be assigned before the row is inserted. The
// duplication engine relies on this to wire parent references between clones
// that have not been persisted yet.
type DefaultModel struct {
	ID        uuid.UUID `json:"id" example:"65392deb-5e92-4268-b114-297faad6cdce"` // UUID for the resource
	CreatedAt time.Time `json:"createdAt" example:"2022-04-02T19:28:44.491514Z"`
	UpdatedAt time.Time `json:"updatedAt" example:"2022-04-17T20:14:01.048145Z"`

	justAdded bool `gorm:"-" json:"-"`
}

// BeforeCreate generates a UUID for the resource unless one has been
// assigned already.
func (m *DefaultModel) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	return nil
}

// AfterCreate marks the instance as just added. The flag only lives on the
// in-memory instance, a fresh read from the database always reports false.
func (m *DefaultModel) AfterCreate(_ *gorm.DB) error {
	m.justAdded = true
	return nil
}

// WasJustAdded reports whether the current save cycle is the first one after
// the instance was created.
func (m *DefaultModel) WasJustAdded() bool {
	return m.justAdded
}

// AfterFind updates the timestamps to use UTC as
// timezone, not +0000. Yes, this is different.
func (m *DefaultModel) AfterFind(_ *gorm.DB) error {
	m.CreatedAt = m.CreatedAt.In(time.UTC)
	m.UpdatedAt = m.UpdatedAt.In(time.UTC)

	return nil
}
