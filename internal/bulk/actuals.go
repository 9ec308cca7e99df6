package bulk

import (
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/models"
	"github.com/happybudget/backend/internal/recalc"
	"gorm.io/gorm"
)

// owner identifies the entity a set of actual rows hangs off of.
type owner struct {
	ownerType models.OwnerType
	ownerID   uuid.UUID
}

// AddActuals creates the actuals on the budget in one transaction and
// re-actualizes the owning nodes and their ancestors.
func (s Service) AddActuals(budgetID, userID uuid.UUID, payloads []ActualPayload) ([]models.Actual, error) {
	created := make([]models.Actual, 0, len(payloads))

	err := s.db.Transaction(func(tx *gorm.DB) error {
		owners := make(map[owner]bool)

		for _, payload := range payloads {
			actual := models.Actual{
				BudgetID:      budgetID,
				OwnerType:     payload.OwnerType,
				OwnerID:       payload.OwnerID,
				Name:          payload.Name,
				Notes:         payload.Notes,
				PurchaseOrder: payload.PurchaseOrder,
				Date:          payload.Date,
				Value:         payload.Value,
			}
			if err := tx.Create(&actual).Error; err != nil {
				return err
			}

			owners[owner{payload.OwnerType, payload.OwnerID}] = true
			created = append(created, actual)
		}

		if err := s.propagateActuals(tx, owners); err != nil {
			return err
		}

		return touchBudget(tx, budgetID, userID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate("actual", uuids(created, func(a models.Actual) uuid.UUID { return a.ID }))
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return created, nil
}

// UpdateActuals applies the changes to the actuals in one transaction.
// Moving an actual to another owner re-actualizes both the old and the new
// owner.
func (s Service) UpdateActuals(budgetID, userID uuid.UUID, changes []ActualChange) ([]models.Actual, error) {
	updated := make([]models.Actual, 0, len(changes))

	err := s.db.Transaction(func(tx *gorm.DB) error {
		owners := make(map[owner]bool)

		for _, change := range changes {
			var actual models.Actual
			err := tx.First(&actual, "id = ? AND budget_id = ?", change.ID, budgetID).Error
			if err != nil {
				return err
			}

			pre := models.Snapshot(&actual)
			owners[owner{actual.OwnerType, actual.OwnerID}] = true

			// The loaded row stays untouched until the update runs, so the
			// BeforeUpdate hook can compare it against the incoming values.
			data := actual
			if change.OwnerType != nil {
				data.OwnerType = *change.OwnerType
			}
			if change.OwnerID != nil {
				data.OwnerID = *change.OwnerID
			}
			if change.Name != nil {
				data.Name = *change.Name
			}
			if change.Notes != nil {
				data.Notes = *change.Notes
			}
			if change.PurchaseOrder != nil {
				data.PurchaseOrder = *change.PurchaseOrder
			}
			if change.Date != nil {
				date := *change.Date
				data.Date = &date
			}
			if change.Value != nil {
				data.Value = *change.Value
			}

			err = tx.Model(&actual).
				Select("OwnerType", "OwnerID", "Name", "Notes", "PurchaseOrder", "Date", "Value").
				Updates(data).Error
			if err != nil {
				return err
			}

			updated = append(updated, actual)

			if models.FieldsHaveChanged(pre, &actual, "owner_type", "owner_id", "value") {
				owners[owner{actual.OwnerType, actual.OwnerID}] = true
			}
		}

		if err := s.propagateActuals(tx, owners); err != nil {
			return err
		}

		return touchBudget(tx, budgetID, userID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate("actual", uuids(updated, func(a models.Actual) uuid.UUID { return a.ID }))
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return updated, nil
}

// DeleteActuals removes the actuals in one transaction and re-actualizes the
// owners they were attached to. The rows are deleted first so that the
// recomputed sums no longer include them.
func (s Service) DeleteActuals(budgetID, userID uuid.UUID, ids []uuid.UUID) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var actuals []models.Actual
		err := tx.Where("id IN ? AND budget_id = ?", ids, budgetID).Find(&actuals).Error
		if err != nil {
			return err
		}
		if len(actuals) != len(ids) {
			return models.ErrResourceNotFound
		}

		owners := make(map[owner]bool)
		for _, actual := range actuals {
			owners[owner{actual.OwnerType, actual.OwnerID}] = true
		}

		if err := tx.Where("id IN ?", ids).Delete(&models.Actual{}).Error; err != nil {
			return err
		}

		if err := s.propagateActuals(tx, owners); err != nil {
			return err
		}

		return touchBudget(tx, budgetID, userID)
	})
	if err != nil {
		return err
	}

	s.invalidator.Invalidate("actual", ids)
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return nil
}

// propagateActuals re-actualizes the owning nodes and everything above them.
// Markup owners recompute their own actual sum first; the new sum then feeds
// the actual of the markup's parent through the traversal.
func (s Service) propagateActuals(tx *gorm.DB, owners map[owner]bool) error {
	tree := recalc.Tree{}

	for o := range owners {
		switch o.ownerType {
		case models.OwnerTypeSubAccount:
			var subAccount models.SubAccount
			if err := tx.First(&subAccount, "id = ?", o.ownerID).Error; err != nil {
				return err
			}
			tree.AddSubAccount(&subAccount)
		case models.OwnerTypeMarkup:
			var markup models.Markup
			if err := tx.First(&markup, "id = ?", o.ownerID).Error; err != nil {
				return err
			}

			changed, err := markup.Actualize(tx)
			if err != nil {
				return err
			}
			if changed {
				err := tx.Model(&markup).Select("Actual").Updates(&markup).Error
				if err != nil {
					return err
				}
				s.invalidator.Invalidate("markup", []uuid.UUID{markup.ID})
			}

			if err := addMarkupToTree(tx, &tree, &markup); err != nil {
				return err
			}
		default:
			return models.ErrActualOwnerInvalid
		}
	}

	if tree.Empty() {
		return nil
	}

	_, err := recalc.ActualizeAll(tx, tree, recalc.Options{
		Commit:      true,
		Invalidator: s.invalidator,
	})

	return err
}
