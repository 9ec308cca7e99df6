package bulk

import (
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/models"
	"github.com/happybudget/backend/internal/recalc"
	"golang.org/x/exp/slices"
	"gorm.io/gorm"
)

// AddSubAccounts creates the subaccounts under the parent in one
// transaction and recalculates the affected subtree. Creating the first
// child under a leaf turns the leaf into an interior node, so the parent is
// recalculated even when the new rows carry no values of their own.
func (s Service) AddSubAccounts(parent models.Parent, userID uuid.UUID, payloads []SubAccountPayload) ([]models.SubAccount, error) {
	if parent.ParentType == models.ParentTypeBudget {
		return nil, models.ErrSubAccountParentInvalid
	}

	created := make([]models.SubAccount, 0, len(payloads))
	var budgetID uuid.UUID

	err := s.db.Transaction(func(tx *gorm.DB) error {
		budget, err := parent.Budget(tx)
		if err != nil {
			return err
		}
		budgetID = budget.ID

		tree := recalc.Tree{}

		for _, payload := range payloads {
			if payload.GroupID != nil {
				if err := checkGroupParent(tx, *payload.GroupID, parent); err != nil {
					return err
				}
			}

			fringes, err := fringesOfBudget(tx, budget.ID, payload.FringeIDs)
			if err != nil {
				return err
			}

			subAccount := models.SubAccount{
				Parent:      parent,
				Identifier:  payload.Identifier,
				Description: payload.Description,
				Quantity:    payload.Quantity,
				Rate:        payload.Rate,
				Multiplier:  payload.Multiplier,
				Unit:        payload.Unit,
				GroupID:     payload.GroupID,
			}
			if err := tx.Create(&subAccount).Error; err != nil {
				return err
			}

			if len(fringes) > 0 {
				err := tx.Model(&subAccount).Association("Fringes").Append(&fringes)
				if err != nil {
					return err
				}
			}

			created = append(created, subAccount)
		}

		for i := range created {
			tree.AddSubAccount(&created[i])
		}

		// The parent always re-derives, even when every new row is empty.
		// Gaining the first child flips a leaf into an interior node.
		if err := parentIntoTree(tx, parent, &tree); err != nil {
			return err
		}

		_, err = recalc.EstimateAll(tx, tree, recalc.Options{
			Commit:      true,
			Invalidator: s.invalidator,
		})
		if err != nil {
			return err
		}

		return touchBudget(tx, budget.ID, userID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate("subaccount", uuids(created, func(s models.SubAccount) uuid.UUID { return s.ID }))
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return created, nil
}

// UpdateSubAccounts applies the changes to the subaccounts in one
// transaction. Only rows whose value-bearing fields actually changed enter
// the recalculation, detected against a pre-image of each row. A change may
// move the row to another parent within the same budget; both the old and
// the new parent are then recalculated.
func (s Service) UpdateSubAccounts(parent models.Parent, userID uuid.UUID, changes []SubAccountChange) ([]models.SubAccount, error) {
	updated := make([]models.SubAccount, 0, len(changes))
	var budgetID uuid.UUID

	err := s.db.Transaction(func(tx *gorm.DB) error {
		budget, err := parent.Budget(tx)
		if err != nil {
			return err
		}
		budgetID = budget.ID

		tree := recalc.Tree{}
		var staleGroups []uuid.UUID
		moved := false

		for _, change := range changes {
			var subAccount models.SubAccount
			err := tx.First(&subAccount,
				"id = ? AND parent_type = ? AND parent_id = ?",
				change.ID, parent.ParentType, parent.ParentID,
			).Error
			if err != nil {
				return err
			}

			pre := models.Snapshot(&subAccount)
			fringesChanged := false

			// The loaded row stays untouched until the update runs, so the
			// BeforeUpdate hook can compare it against the incoming values.
			data := subAccount

			if change.Identifier != nil {
				data.Identifier = *change.Identifier
			}
			if change.Description != nil {
				data.Description = *change.Description
			}
			if change.Quantity != nil {
				quantity := *change.Quantity
				data.Quantity = &quantity
			}
			if change.Rate != nil {
				rate := *change.Rate
				data.Rate = &rate
			}
			if change.Multiplier != nil {
				multiplier := *change.Multiplier
				data.Multiplier = &multiplier
			}
			if change.Unit != nil {
				data.Unit = *change.Unit
			}

			if change.Parent != nil {
				if err := reparent(tx, &subAccount, &data, *change.Parent, &tree); err != nil {
					return err
				}

				// Group membership does not survive a move to another
				// collection.
				if data.GroupID != nil {
					staleGroups = append(staleGroups, *data.GroupID)
					data.GroupID = nil
				}
				moved = true
			}

			if change.GroupID != nil {
				if subAccount.GroupID != nil && *subAccount.GroupID != *change.GroupID {
					staleGroups = append(staleGroups, *subAccount.GroupID)
				}

				if *change.GroupID == uuid.Nil {
					data.GroupID = nil
				} else {
					if err := checkGroupParent(tx, *change.GroupID, data.Parent); err != nil {
						return err
					}
					groupID := *change.GroupID
					data.GroupID = &groupID
				}
			}

			fields := []string{"Identifier", "Description", "Quantity", "Rate", "Multiplier", "Unit", "GroupID"}
			if change.Parent != nil {
				fields = append(fields, "ParentType", "ParentID", "NestedLevel")
			}

			err = tx.Model(&subAccount).Select(fields).Updates(data).Error
			if err != nil {
				return err
			}

			if change.FringeIDs != nil {
				fringes, err := fringesOfBudget(tx, budget.ID, *change.FringeIDs)
				if err != nil {
					return err
				}

				err = tx.Model(&subAccount).Association("Fringes").Replace(&fringes)
				if err != nil {
					return err
				}
				fringesChanged = true
			}

			updated = append(updated, subAccount)

			if fringesChanged || models.FieldsHaveChanged(pre, &subAccount, "quantity", "rate", "multiplier") {
				tree.AddSubAccount(&updated[len(updated)-1])
			}
		}

		if !tree.Empty() {
			opts := recalc.Options{
				Commit:      true,
				Invalidator: s.invalidator,
			}

			// A move shifts actuals between subtrees, so the actual column
			// of both parents has to be re-derived as well.
			if moved {
				_, err = recalc.CalculateAll(tx, tree, opts)
			} else {
				_, err = recalc.EstimateAll(tx, tree, opts)
			}
			if err != nil {
				return err
			}
		}

		if err := gcGroups(tx, staleGroups); err != nil {
			return err
		}

		return touchBudget(tx, budget.ID, userID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate("subaccount", uuids(updated, func(s models.SubAccount) uuid.UUID { return s.ID }))
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return updated, nil
}

// DeleteSubAccounts removes the subaccounts and their subtrees in one
// transaction. The parent node is recalculated with the deleted children
// excluded before the rows disappear. A parent that loses its last child
// becomes a leaf again and re-derives its value from its own fields.
func (s Service) DeleteSubAccounts(parent models.Parent, userID uuid.UUID, ids []uuid.UUID) error {
	var budgetID uuid.UUID

	err := s.db.Transaction(func(tx *gorm.DB) error {
		budget, err := parent.Budget(tx)
		if err != nil {
			return err
		}
		budgetID = budget.ID

		var subAccounts []models.SubAccount
		err = tx.Where("id IN ? AND parent_type = ? AND parent_id = ?",
			ids, parent.ParentType, parent.ParentID,
		).Find(&subAccounts).Error
		if err != nil {
			return err
		}
		if len(subAccounts) != len(ids) {
			return models.ErrResourceNotFound
		}

		staleGroups := groupIDsOfSubAccounts(subAccounts)

		subtree, err := collectSubtree(tx, ids)
		if err != nil {
			return err
		}

		percentMarkups, err := markupsNamingSubAccounts(tx, subtree)
		if err != nil {
			return err
		}

		// A percent markup losing its last child disappears with the rows,
		// so it must not contribute to the recalculation below.
		emptied, err := markupsEmptiedBy(tx, "markup_sub_accounts", "sub_account_id", percentMarkups, subtree)
		if err != nil {
			return err
		}

		tree := recalc.Tree{}
		if err := parentIntoTree(tx, parent, &tree); err != nil {
			return err
		}

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

		if err := deleteSubAccountRows(tx, subtree); err != nil {
			return err
		}

		if _, err := gcEmptyPercentMarkups(tx, percentMarkups); err != nil {
			return err
		}

		if err := gcGroups(tx, staleGroups); err != nil {
			return err
		}

		return touchBudget(tx, budget.ID, userID)
	})
	if err != nil {
		return err
	}

	s.invalidator.Invalidate("subaccount", ids)
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return nil
}

// parentIntoTree loads the collection parent and adds it to the
// recalculation tree.
func parentIntoTree(tx *gorm.DB, parent models.Parent, tree *recalc.Tree) error {
	switch parent.ParentType {
	case models.ParentTypeAccount:
		var account models.Account
		if err := tx.First(&account, "id = ?", parent.ParentID).Error; err != nil {
			return err
		}
		tree.AddAccount(&account)
	case models.ParentTypeSubAccount:
		var node models.SubAccount
		if err := tx.First(&node, "id = ?", parent.ParentID).Error; err != nil {
			return err
		}
		tree.AddSubAccount(&node)
	default:
		return models.ErrSubAccountParentInvalid
	}

	return nil
}

// reparent validates the new collection against the current row and rebases
// the incoming values onto it. The nesting level of every descendant shifts
// with the row, and both the old and the new parent enter the recalculation
// tree. Moves never cross budgets and never target the row's own subtree.
func reparent(tx *gorm.DB, subAccount, data *models.SubAccount, newParent models.Parent, tree *recalc.Tree) error {
	if newParent.ParentType == subAccount.ParentType && newParent.ParentID == subAccount.ParentID {
		return nil
	}

	var newLevel int

	switch newParent.ParentType {
	case models.ParentTypeAccount:
		var account models.Account
		if err := tx.First(&account, "id = ?", newParent.ParentID).Error; err != nil {
			return err
		}
		if account.BudgetID != subAccount.BudgetID {
			return models.ErrSubAccountCrossBudget
		}
		newLevel = 0
	case models.ParentTypeSubAccount:
		var node models.SubAccount
		if err := tx.First(&node, "id = ?", newParent.ParentID).Error; err != nil {
			return err
		}
		if node.BudgetID != subAccount.BudgetID {
			return models.ErrSubAccountCrossBudget
		}
		newLevel = node.NestedLevel + 1
	default:
		return models.ErrSubAccountParentInvalid
	}

	subtree, err := collectSubtree(tx, []uuid.UUID{subAccount.ID})
	if err != nil {
		return err
	}

	if newParent.ParentType == models.ParentTypeSubAccount && slices.Contains(subtree, newParent.ParentID) {
		return models.ErrSubAccountOwnDescendant
	}

	if delta := newLevel - subAccount.NestedLevel; delta != 0 && len(subtree) > 1 {
		err := tx.Model(&models.SubAccount{}).
			Where("id IN ?", subtree[1:]).
			Update("nested_level", gorm.Expr("nested_level + ?", delta)).Error
		if err != nil {
			return err
		}
	}

	data.Parent = newParent
	data.NestedLevel = newLevel

	if err := parentIntoTree(tx, subAccount.Parent, tree); err != nil {
		return err
	}

	return parentIntoTree(tx, newParent, tree)
}

// fringesOfBudget resolves the fringe ids against the budget's fringes. A
// fringe belonging to another budget cannot be assigned.
func fringesOfBudget(tx *gorm.DB, budgetID uuid.UUID, ids []uuid.UUID) ([]models.Fringe, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var fringes []models.Fringe
	err := tx.Where("id IN ? AND budget_id = ?", ids, budgetID).Find(&fringes).Error
	if err != nil {
		return nil, err
	}

	if len(fringes) != len(ids) {
		return nil, models.ErrResourceNotFound
	}

	return fringes, nil
}

func groupIDsOfSubAccounts(subAccounts []models.SubAccount) []uuid.UUID {
	var ids []uuid.UUID
	for _, subAccount := range subAccounts {
		if subAccount.GroupID != nil {
			ids = append(ids, *subAccount.GroupID)
		}
	}

	return ids
}

// markupsNamingSubAccounts returns the markups that name any of the
// subaccounts as a child.
func markupsNamingSubAccounts(tx *gorm.DB, subAccountIDs []uuid.UUID) ([]uuid.UUID, error) {
	var markupIDs []uuid.UUID
	err := tx.Table("markup_sub_accounts").
		Where("sub_account_id IN ?", subAccountIDs).
		Distinct("markup_id").
		Pluck("markup_id", &markupIDs).Error

	return markupIDs, err
}
