package bulk

import (
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/models"
	"github.com/happybudget/backend/internal/recalc"
	"gorm.io/gorm"
)

// AddAccounts creates the accounts under the budget in one transaction.
// Fresh accounts carry no subaccounts and therefore contribute nothing to
// the budget's derived fields, so no recalculation runs.
func (s Service) AddAccounts(budgetID, userID uuid.UUID, payloads []AccountPayload) ([]models.Account, error) {
	created := make([]models.Account, 0, len(payloads))

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var budget models.Budget
		if err := tx.First(&budget, "id = ?", budgetID).Error; err != nil {
			return err
		}

		for _, payload := range payloads {
			if payload.GroupID != nil {
				err := checkGroupParent(tx, *payload.GroupID, models.BudgetParent(budgetID))
				if err != nil {
					return err
				}
			}

			account := models.Account{
				BudgetID:    budgetID,
				Domain:      budget.Domain,
				Identifier:  payload.Identifier,
				Description: payload.Description,
				GroupID:     payload.GroupID,
			}
			if err := tx.Create(&account).Error; err != nil {
				return err
			}

			created = append(created, account)
		}

		return touchBudget(tx, budgetID, userID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate("account", uuids(created, func(a models.Account) uuid.UUID { return a.ID }))
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return created, nil
}

// UpdateAccounts applies the changes to the accounts in one transaction.
// None of the mutable account fields feed the calculation kernel, so no
// recalculation runs. Groups left without members after a reassignment are
// garbage collected.
func (s Service) UpdateAccounts(budgetID, userID uuid.UUID, changes []AccountChange) ([]models.Account, error) {
	updated := make([]models.Account, 0, len(changes))

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var staleGroups []uuid.UUID

		for _, change := range changes {
			var account models.Account
			err := tx.First(&account, "id = ? AND budget_id = ?", change.ID, budgetID).Error
			if err != nil {
				return err
			}

			if change.Identifier != nil {
				account.Identifier = *change.Identifier
			}
			if change.Description != nil {
				account.Description = *change.Description
			}
			if change.GroupID != nil {
				if account.GroupID != nil && *account.GroupID != *change.GroupID {
					staleGroups = append(staleGroups, *account.GroupID)
				}

				if *change.GroupID == uuid.Nil {
					account.GroupID = nil
				} else {
					err := checkGroupParent(tx, *change.GroupID, models.BudgetParent(budgetID))
					if err != nil {
						return err
					}
					groupID := *change.GroupID
					account.GroupID = &groupID
				}
			}

			err = tx.Model(&account).Select("Identifier", "Description", "GroupID").Updates(&account).Error
			if err != nil {
				return err
			}

			updated = append(updated, account)
		}

		if err := gcGroups(tx, staleGroups); err != nil {
			return err
		}

		return touchBudget(tx, budgetID, userID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate("account", uuids(updated, func(a models.Account) uuid.UUID { return a.ID }))
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return updated, nil
}

// DeleteAccounts removes the accounts and their entire subtrees in one
// transaction. The budget is recalculated with the deleted accounts excluded
// from its accumulators before the rows disappear.
func (s Service) DeleteAccounts(budgetID, userID uuid.UUID, ids []uuid.UUID) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var budget models.Budget
		if err := tx.First(&budget, "id = ?", budgetID).Error; err != nil {
			return err
		}

		var accounts []models.Account
		err := tx.Where("id IN ? AND budget_id = ?", ids, budgetID).Find(&accounts).Error
		if err != nil {
			return err
		}
		if len(accounts) != len(ids) {
			return models.ErrResourceNotFound
		}

		staleGroups := groupIDsOfAccounts(accounts)

		percentMarkups, err := markupsNamingAccounts(tx, ids)
		if err != nil {
			return err
		}

		// A percent markup losing its last child disappears with the rows,
		// so it must not contribute to the recalculation below.
		emptied, err := markupsEmptiedBy(tx, "markup_accounts", "account_id", percentMarkups, ids)
		if err != nil {
			return err
		}

		tree := recalc.Tree{}
		tree.AddBudget(&budget)

		_, err = recalc.CalculateAll(tx, tree, recalc.Options{
			Commit: true,
			Context: models.CalculationContext{
				ChildrenToBeDeleted: ids,
				MarkupsToBeDeleted:  emptied,
			},
			Invalidator: s.invalidator,
		})
		if err != nil {
			return err
		}

		if err := deleteAccountRows(tx, ids); err != nil {
			return err
		}

		if _, err := gcEmptyPercentMarkups(tx, percentMarkups); err != nil {
			return err
		}

		if err := gcGroups(tx, staleGroups); err != nil {
			return err
		}

		return touchBudget(tx, budgetID, userID)
	})
	if err != nil {
		return err
	}

	s.invalidator.Invalidate("account", ids)
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return nil
}

// checkGroupParent verifies that the group hangs off the given parent, which
// makes the entity being grouped a sibling of the group's other members.
func checkGroupParent(tx *gorm.DB, groupID uuid.UUID, parent models.Parent) error {
	var group models.Group
	if err := tx.First(&group, "id = ?", groupID).Error; err != nil {
		return err
	}

	if group.ParentType != parent.ParentType || group.ParentID != parent.ParentID {
		return models.ErrGroupMemberNotSibling
	}

	return nil
}

func groupIDsOfAccounts(accounts []models.Account) []uuid.UUID {
	var ids []uuid.UUID
	for _, account := range accounts {
		if account.GroupID != nil {
			ids = append(ids, *account.GroupID)
		}
	}

	return ids
}

// markupsNamingAccounts returns the markups that name any of the accounts as
// a child, so that emptied percent markups can be collected after the
// deletion.
func markupsNamingAccounts(tx *gorm.DB, accountIDs []uuid.UUID) ([]uuid.UUID, error) {
	var markupIDs []uuid.UUID
	err := tx.Table("markup_accounts").
		Where("account_id IN ?", accountIDs).
		Distinct("markup_id").
		Pluck("markup_id", &markupIDs).Error

	return markupIDs, err
}
