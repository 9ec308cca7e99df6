package recalc

import (
	"fmt"

	"github.com/happybudget/backend/internal/models"
	"gorm.io/gorm"
)

// TreeOf builds a traversal input from a heterogeneous set of instances.
//
// Markups have no place of their own in the traversal. A markup resolves to
// its parent node plus, for percent markups, the children it names, since
// their markup contributions depend on it.
func TreeOf(db *gorm.DB, instances ...any) (Tree, error) {
	var tree Tree

	for _, instance := range instances {
		switch v := instance.(type) {
		case *models.Budget:
			tree.AddBudget(v)
		case *models.Account:
			tree.AddAccount(v)
		case *models.SubAccount:
			tree.AddSubAccount(v)
		case *models.Markup:
			if err := addMarkup(db, &tree, v); err != nil {
				return Tree{}, err
			}
		default:
			return Tree{}, fmt.Errorf("cannot recalculate instances of type %T", instance)
		}
	}

	return tree, nil
}

func addMarkup(db *gorm.DB, tree *Tree, markup *models.Markup) error {
	switch markup.ParentType {
	case models.ParentTypeBudget:
		var budget models.Budget
		if err := db.First(&budget, "id = ?", markup.ParentID).Error; err != nil {
			return err
		}
		tree.AddBudget(&budget)
	case models.ParentTypeAccount:
		var account models.Account
		if err := db.First(&account, "id = ?", markup.ParentID).Error; err != nil {
			return err
		}
		tree.AddAccount(&account)
	case models.ParentTypeSubAccount:
		var subAccount models.SubAccount
		if err := db.First(&subAccount, "id = ?", markup.ParentID).Error; err != nil {
			return err
		}
		tree.AddSubAccount(&subAccount)
	default:
		return models.ErrInvalidParentType
	}

	if markup.Unit != models.UnitPercent {
		return nil
	}

	var accounts []models.Account
	err := db.
		Joins("JOIN markup_accounts ON markup_accounts.account_id = accounts.id").
		Where("markup_accounts.markup_id = ?", markup.ID).
		Find(&accounts).Error
	if err != nil {
		return err
	}
	for i := range accounts {
		tree.AddAccount(&accounts[i])
	}

	var subAccounts []models.SubAccount
	err = db.
		Joins("JOIN markup_sub_accounts ON markup_sub_accounts.sub_account_id = sub_accounts.id").
		Where("markup_sub_accounts.markup_id = ?", markup.ID).
		Find(&subAccounts).Error
	if err != nil {
		return err
	}
	for i := range subAccounts {
		tree.AddSubAccount(&subAccounts[i])
	}

	return nil
}
