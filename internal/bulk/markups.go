package bulk

import (
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/models"
	"github.com/happybudget/backend/internal/recalc"
	"gorm.io/gorm"
)

// AddMarkups creates the markups under the parent in one transaction and
// recalculates the affected nodes. A flat markup feeds its parent's
// accumulated markup contribution, a percent markup feeds the markup
// contribution of every child it names.
func (s Service) AddMarkups(parent models.Parent, userID uuid.UUID, payloads []MarkupPayload) ([]models.Markup, error) {
	created := make([]models.Markup, 0, len(payloads))
	var budgetID uuid.UUID

	err := s.db.Transaction(func(tx *gorm.DB) error {
		budget, err := parent.Budget(tx)
		if err != nil {
			return err
		}
		budgetID = budget.ID

		tree := recalc.Tree{}

		for _, payload := range payloads {
			if err := validateMarkupChildren(payload.Unit, payload.ChildIDs); err != nil {
				return err
			}

			markup := models.Markup{
				Parent:      parent,
				Identifier:  payload.Identifier,
				Description: payload.Description,
				Unit:        payload.Unit,
				Rate:        payload.Rate,
			}
			if err := tx.Create(&markup).Error; err != nil {
				return err
			}

			if err := attachMarkupChildren(tx, &markup, payload.ChildIDs); err != nil {
				return err
			}

			created = append(created, markup)
		}

		for i := range created {
			if err := addMarkupToTree(tx, &tree, &created[i]); err != nil {
				return err
			}
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

	s.invalidator.Invalidate("markup", uuids(created, func(m models.Markup) uuid.UUID { return m.ID }))
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return created, nil
}

// UpdateMarkups applies the changes to the markups in one transaction.
// Switching a markup from percent to flat clears its children; switching to
// percent requires the change to name children. Children dropped from a
// percent markup are recalculated along with the retained ones.
func (s Service) UpdateMarkups(parent models.Parent, userID uuid.UUID, changes []MarkupChange) ([]models.Markup, error) {
	updated := make([]models.Markup, 0, len(changes))
	var budgetID uuid.UUID

	err := s.db.Transaction(func(tx *gorm.DB) error {
		budget, err := parent.Budget(tx)
		if err != nil {
			return err
		}
		budgetID = budget.ID

		tree := recalc.Tree{}

		for _, change := range changes {
			var markup models.Markup
			err := tx.First(&markup,
				"id = ? AND parent_type = ? AND parent_id = ?",
				change.ID, parent.ParentType, parent.ParentID,
			).Error
			if err != nil {
				return err
			}

			// The pre-change shape determines which nodes the markup was
			// contributing to before the edit.
			if err := addMarkupToTree(tx, &tree, &markup); err != nil {
				return err
			}

			if change.Identifier != nil {
				markup.Identifier = *change.Identifier
			}
			if change.Description != nil {
				markup.Description = *change.Description
			}
			if change.Rate != nil {
				markup.Rate = *change.Rate
			}

			childIDs := change.ChildIDs
			if change.Unit != nil && *change.Unit != markup.Unit {
				markup.Unit = *change.Unit

				if markup.Unit == models.UnitFlat {
					empty := []uuid.UUID{}
					childIDs = &empty
				}
			}

			if childIDs != nil {
				if err := validateMarkupChildren(markup.Unit, *childIDs); err != nil {
					return err
				}
			} else if change.Unit != nil && markup.Unit == models.UnitPercent {
				count, err := markup.ChildCount(tx)
				if err != nil {
					return err
				}
				if count == 0 {
					return &ValidationError{Field: "children", Msg: models.ErrPercentMarkupNeedsChildren.Error()}
				}
			}

			err = tx.Model(&markup).
				Select("Identifier", "Description", "Unit", "Rate").
				Updates(&markup).Error
			if err != nil {
				return err
			}

			if childIDs != nil {
				err := tx.Exec("DELETE FROM markup_accounts WHERE markup_id = ?", markup.ID).Error
				if err != nil {
					return err
				}
				err = tx.Exec("DELETE FROM markup_sub_accounts WHERE markup_id = ?", markup.ID).Error
				if err != nil {
					return err
				}

				if err := attachMarkupChildren(tx, &markup, *childIDs); err != nil {
					return err
				}
			}

			updated = append(updated, markup)
		}

		for i := range updated {
			if err := addMarkupToTree(tx, &tree, &updated[i]); err != nil {
				return err
			}
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

	s.invalidator.Invalidate("markup", uuids(updated, func(m models.Markup) uuid.UUID { return m.ID }))
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return updated, nil
}

// DeleteMarkups removes the markups in one transaction. The affected nodes
// are recalculated with the deleted markups excluded from their contribution
// sums before the rows disappear. Actuals attached to the markups go with
// them, so the actualization side runs too.
func (s Service) DeleteMarkups(parent models.Parent, userID uuid.UUID, ids []uuid.UUID) error {
	var budgetID uuid.UUID

	err := s.db.Transaction(func(tx *gorm.DB) error {
		budget, err := parent.Budget(tx)
		if err != nil {
			return err
		}
		budgetID = budget.ID

		var markups []models.Markup
		err = tx.Where("id IN ? AND parent_type = ? AND parent_id = ?",
			ids, parent.ParentType, parent.ParentID,
		).Find(&markups).Error
		if err != nil {
			return err
		}
		if len(markups) != len(ids) {
			return models.ErrResourceNotFound
		}

		tree := recalc.Tree{}
		for i := range markups {
			if err := addMarkupToTree(tx, &tree, &markups[i]); err != nil {
				return err
			}
		}

		_, err = recalc.CalculateAll(tx, tree, recalc.Options{
			Commit:      true,
			Context:     models.CalculationContext{MarkupsToBeDeleted: ids},
			Invalidator: s.invalidator,
		})
		if err != nil {
			return err
		}

		if err := deleteMarkupRows(tx, ids); err != nil {
			return err
		}

		return touchBudget(tx, budget.ID, userID)
	})
	if err != nil {
		return err
	}

	s.invalidator.Invalidate("markup", ids)
	s.invalidator.Invalidate("budget", []uuid.UUID{budgetID})

	return nil
}

// validateMarkupChildren enforces the unit and children pairing before any
// mutation happens.
func validateMarkupChildren(unit models.CalculationUnit, childIDs []uuid.UUID) error {
	switch unit {
	case models.UnitFlat:
		if len(childIDs) > 0 {
			return &ValidationError{Field: "children", Msg: models.ErrFlatMarkupWithChildren.Error()}
		}
	case models.UnitPercent:
		if len(childIDs) == 0 {
			return &ValidationError{Field: "children", Msg: models.ErrPercentMarkupNeedsChildren.Error()}
		}
	default:
		return models.ErrInvalidUnit
	}

	return nil
}

// attachMarkupChildren creates the membership rows for a percent markup. The
// children must be siblings under the markup's parent: a budget markup names
// accounts, an account or subaccount markup names subaccounts.
func attachMarkupChildren(tx *gorm.DB, markup *models.Markup, childIDs []uuid.UUID) error {
	if len(childIDs) == 0 {
		return nil
	}

	if markup.ParentType == models.ParentTypeBudget {
		var accounts []models.Account
		err := tx.Where("id IN ? AND budget_id = ?", childIDs, markup.ParentID).Find(&accounts).Error
		if err != nil {
			return err
		}
		if len(accounts) != len(childIDs) {
			return &ValidationError{Field: "children", Msg: "all children of a markup must be siblings under its parent"}
		}

		return tx.Model(markup).Association("Accounts").Append(&accounts)
	}

	var subAccounts []models.SubAccount
	err := tx.Where("id IN ? AND parent_type = ? AND parent_id = ?",
		childIDs, markup.ParentType, markup.ParentID,
	).Find(&subAccounts).Error
	if err != nil {
		return err
	}
	if len(subAccounts) != len(childIDs) {
		return &ValidationError{Field: "children", Msg: "all children of a markup must be siblings under its parent"}
	}

	return tx.Model(markup).Association("SubAccounts").Append(&subAccounts)
}

// addMarkupToTree folds the markup's affected nodes into the traversal
// input.
func addMarkupToTree(tx *gorm.DB, tree *recalc.Tree, markup *models.Markup) error {
	partial, err := recalc.TreeOf(tx, markup)
	if err != nil {
		return err
	}

	for i := range partial.Budgets {
		tree.AddBudget(partial.Budgets[i])
	}
	for i := range partial.Accounts {
		tree.AddAccount(partial.Accounts[i])
	}
	for i := range partial.SubAccounts {
		tree.AddSubAccount(partial.SubAccounts[i])
	}

	return nil
}
