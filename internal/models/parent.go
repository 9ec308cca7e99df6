package models

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ParentType tags the entity type a polymorphic parent reference points to.
type ParentType string

const (
	ParentTypeBudget     ParentType = "budget"
	ParentTypeAccount    ParentType = "account"
	ParentTypeSubAccount ParentType = "subaccount"
)

var ErrInvalidParentType = errors.New("the parent type is not valid for this resource")

// Parent is a tagged reference to the owning node of a tree entity. It is
// stored as two physical columns, parent_type and parent_id.
type Parent struct {
	ParentType ParentType `json:"parentType" example:"account"`
	ParentID   uuid.UUID  `json:"parentId" example:"d4b49e94-5e5f-4c4b-9d78-1e3d6e9a1f7b"`
}

// BudgetParent returns a Parent referencing a Budget.
func BudgetParent(id uuid.UUID) Parent {
	return Parent{ParentType: ParentTypeBudget, ParentID: id}
}

// AccountParent returns a Parent referencing an Account.
func AccountParent(id uuid.UUID) Parent {
	return Parent{ParentType: ParentTypeAccount, ParentID: id}
}

// SubAccountParent returns a Parent referencing a SubAccount.
func SubAccountParent(id uuid.UUID) Parent {
	return Parent{ParentType: ParentTypeSubAccount, ParentID: id}
}

// Budget resolves the root Budget the parent belongs to. For Budget parents
// this is the parent itself, for Account and SubAccount parents the
// denormalized budget id on the row is used, so the lookup does not walk the
// ancestor chain.
func (p Parent) Budget(db *gorm.DB) (Budget, error) {
	var budgetID uuid.UUID

	switch p.ParentType {
	case ParentTypeBudget:
		budgetID = p.ParentID
	case ParentTypeAccount:
		var account Account
		if err := db.First(&account, "id = ?", p.ParentID).Error; err != nil {
			return Budget{}, err
		}
		budgetID = account.BudgetID
	case ParentTypeSubAccount:
		var subAccount SubAccount
		if err := db.First(&subAccount, "id = ?", p.ParentID).Error; err != nil {
			return Budget{}, err
		}
		budgetID = subAccount.BudgetID
	default:
		return Budget{}, ErrInvalidParentType
	}

	var budget Budget
	err := db.First(&budget, "id = ?", budgetID).Error
	return budget, err
}
