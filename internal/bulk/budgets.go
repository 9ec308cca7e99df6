package bulk

import (
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/models"
	"gorm.io/gorm"
)

// DeleteBudget removes the budget and its entire tree in one transaction:
// accounts, the subaccount hierarchy, fringes, markups, groups, actuals and
// the relation rows between them.
func (s Service) DeleteBudget(budgetID uuid.UUID) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var budget models.Budget
		if err := tx.First(&budget, "id = ?", budgetID).Error; err != nil {
			return err
		}

		var accountIDs []uuid.UUID
		err := tx.Model(&models.Account{}).
			Where("budget_id = ?", budgetID).
			Pluck("id", &accountIDs).Error
		if err != nil {
			return err
		}

		if err := deleteAccountRows(tx, accountIDs); err != nil {
			return err
		}

		err = deleteMarkupsForParent(tx, models.ParentTypeBudget, []uuid.UUID{budgetID})
		if err != nil {
			return err
		}

		err = tx.Where("parent_type = ? AND parent_id = ?", models.ParentTypeBudget, budgetID).
			Delete(&models.Group{}).Error
		if err != nil {
			return err
		}

		var fringeIDs []uuid.UUID
		err = tx.Model(&models.Fringe{}).
			Where("budget_id = ?", budgetID).
			Pluck("id", &fringeIDs).Error
		if err != nil {
			return err
		}
		if len(fringeIDs) > 0 {
			err = tx.Exec("DELETE FROM subaccount_fringes WHERE fringe_id IN ?", fringeIDs).Error
			if err != nil {
				return err
			}
			err = tx.Where("id IN ?", fringeIDs).Delete(&models.Fringe{}).Error
			if err != nil {
				return err
			}
		}

		// Anything the owner cascade missed.
		err = tx.Where("budget_id = ?", budgetID).Delete(&models.Actual{}).Error
		if err != nil {
			return err
		}

		return tx.Delete(&budget).Error
	})
	if err != nil {
		return err
	}

	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return nil
}
