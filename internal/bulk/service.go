// Package bulk implements the bulk CRUD protocol on the collections of
// children of a budget tree node.
//
// Every operation validates its payload before touching the database, applies
// the primitive mutation, hands the affected set to the recalculation
// traversal and persists the results in batches. Partial success is not
// permitted, each operation runs in a single transaction.
package bulk

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/cache"
	"github.com/happybudget/backend/internal/models"
	"gorm.io/gorm"
)

// Service exposes the bulk operations. The invalidator is notified about
// every entity whose derived data changed.
type Service struct {
	db          *gorm.DB
	invalidator cache.Invalidator
}

// NewService returns a bulk service writing through the given database.
func NewService(db *gorm.DB, invalidator cache.Invalidator) Service {
	if invalidator == nil {
		invalidator = cache.Noop{}
	}

	return Service{db: db, invalidator: invalidator}
}

// ValidationError reports a payload that violates an invariant. It is raised
// before any database mutation and aborts the whole operation.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}

	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// touchBudget marks the budget as updated by the acting user. All bulk
// operations share this post-commit side effect.
func touchBudget(tx *gorm.DB, budgetID, userID uuid.UUID) error {
	return tx.Model(&models.Budget{}).
		Where("id = ?", budgetID).
		UpdateColumns(map[string]any{
			"updated_at":    time.Now().In(time.UTC),
			"updated_by_id": userID,
		}).Error
}

// uuids extracts the ids of a slice of models.
func uuids[T any](rows []T, id func(T) uuid.UUID) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, id(row))
	}

	return ids
}
