package bulk

import (
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/models"
	"github.com/happybudget/backend/internal/recalc"
	"gorm.io/gorm"
)

// AddFringes creates the fringes on the budget in one transaction. A fresh
// fringe is not assigned to any subaccount yet, so no recalculation runs.
func (s Service) AddFringes(budgetID, userID uuid.UUID, payloads []FringePayload) ([]models.Fringe, error) {
	created := make([]models.Fringe, 0, len(payloads))

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var budget models.Budget
		if err := tx.First(&budget, "id = ?", budgetID).Error; err != nil {
			return err
		}

		for _, payload := range payloads {
			fringe := models.Fringe{
				BudgetID:    budgetID,
				Name:        payload.Name,
				Description: payload.Description,
				Unit:        payload.Unit,
				Rate:        payload.Rate,
				Cutoff:      payload.Cutoff,
				Color:       payload.Color,
			}
			if err := tx.Create(&fringe).Error; err != nil {
				return err
			}

			created = append(created, fringe)
		}

		return touchBudget(tx, budgetID, userID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate("fringe", uuids(created, func(f models.Fringe) uuid.UUID { return f.ID }))
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return created, nil
}

// UpdateFringes applies the changes to the fringes in one transaction. When
// a value-bearing field changed, every subaccount the fringe is assigned to
// is recalculated.
func (s Service) UpdateFringes(budgetID, userID uuid.UUID, changes []FringeChange) ([]models.Fringe, error) {
	updated := make([]models.Fringe, 0, len(changes))

	err := s.db.Transaction(func(tx *gorm.DB) error {
		tree := recalc.Tree{}

		for _, change := range changes {
			var fringe models.Fringe
			err := tx.First(&fringe, "id = ? AND budget_id = ?", change.ID, budgetID).Error
			if err != nil {
				return err
			}

			pre := models.Snapshot(&fringe)

			if change.Name != nil {
				fringe.Name = *change.Name
			}
			if change.Description != nil {
				fringe.Description = *change.Description
			}
			if change.Unit != nil {
				fringe.Unit = *change.Unit
			}
			if change.Rate != nil {
				fringe.Rate = *change.Rate
			}
			if change.Cutoff != nil {
				cutoff := *change.Cutoff
				fringe.Cutoff = &cutoff
			}
			if change.Color != nil {
				fringe.Color = *change.Color
			}

			err = tx.Model(&fringe).
				Select("Name", "Description", "Unit", "Rate", "Cutoff", "Color").
				Updates(&fringe).Error
			if err != nil {
				return err
			}

			updated = append(updated, fringe)

			if models.FieldsHaveChanged(pre, &fringe, "unit", "rate", "cutoff") {
				if err := addAssignedSubAccounts(tx, &tree, fringe.ID); err != nil {
					return err
				}
			}
		}

		if !tree.Empty() {
			_, err := recalc.EstimateAll(tx, tree, recalc.Options{
				Commit:      true,
				Invalidator: s.invalidator,
			})
			if err != nil {
				return err
			}
		}

		return touchBudget(tx, budgetID, userID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate("fringe", uuids(updated, func(f models.Fringe) uuid.UUID { return f.ID }))
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return updated, nil
}

// DeleteFringes removes the fringes in one transaction. The subaccounts the
// fringes were assigned to are recalculated with the deleted fringes
// excluded from their contribution sums before the rows disappear.
func (s Service) DeleteFringes(budgetID, userID uuid.UUID, ids []uuid.UUID) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var fringes []models.Fringe
		err := tx.Where("id IN ? AND budget_id = ?", ids, budgetID).Find(&fringes).Error
		if err != nil {
			return err
		}
		if len(fringes) != len(ids) {
			return models.ErrResourceNotFound
		}

		tree := recalc.Tree{}
		for _, id := range ids {
			if err := addAssignedSubAccounts(tx, &tree, id); err != nil {
				return err
			}
		}

		_, err = recalc.EstimateAll(tx, tree, recalc.Options{
			Commit:      true,
			Context:     models.CalculationContext{FringesToBeDeleted: ids},
			Invalidator: s.invalidator,
		})
		if err != nil {
			return err
		}

		err = tx.Exec("DELETE FROM subaccount_fringes WHERE fringe_id IN ?", ids).Error
		if err != nil {
			return err
		}

		if err := tx.Where("id IN ?", ids).Delete(&models.Fringe{}).Error; err != nil {
			return err
		}

		return touchBudget(tx, budgetID, userID)
	})
	if err != nil {
		return err
	}

	s.invalidator.Invalidate("fringe", ids)
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return nil
}

// addAssignedSubAccounts folds every subaccount the fringe is assigned to
// into the traversal input.
func addAssignedSubAccounts(tx *gorm.DB, tree *recalc.Tree, fringeID uuid.UUID) error {
	var subAccounts []models.SubAccount
	err := tx.
		Joins("JOIN subaccount_fringes ON subaccount_fringes.sub_account_id = sub_accounts.id").
		Where("subaccount_fringes.fringe_id = ?", fringeID).
		Find(&subAccounts).Error
	if err != nil {
		return err
	}

	for i := range subAccounts {
		tree.AddSubAccount(&subAccounts[i])
	}

	return nil
}
