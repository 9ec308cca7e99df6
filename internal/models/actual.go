package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OwnerType tags the entity an actual row is attached to.
type OwnerType string

const (
	OwnerTypeSubAccount OwnerType = "subaccount"
	OwnerTypeMarkup     OwnerType = "markup"
)

// Actual is a dated cash outflow tied to a subaccount or a markup, and
// always to a budget. Actuals only exist in the budget domain.
type Actual struct {
	DefaultModel
	BudgetID      uuid.UUID `gorm:"index"`
	OwnerType     OwnerType `gorm:"index:actual_owner"`
	OwnerID       uuid.UUID `gorm:"index:actual_owner"`
	Name          string
	Notes         string
	PurchaseOrder string
	Date          *time.Time
	Value         decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
}

var (
	ErrActualOwnerInvalid = errors.New("an actual must be owned by a subaccount or a markup")
	ErrActualOnTemplate   = errors.New("actuals can only be attached to entities in the budget domain")
)

// BeforeCreate verifies the owner reference and that the owning subtree is in
// the budget domain.
func (a *Actual) BeforeCreate(tx *gorm.DB) error {
	_ = a.DefaultModel.BeforeCreate(tx)
	return a.checkIntegrity(tx)
}

// BeforeUpdate verifies the owner reference when it changes. The receiver
// still holds the loaded row at this point, so the check runs against the
// incoming values from the statement destination.
func (a *Actual) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("OwnerID") || tx.Statement.Changed("OwnerType") {
		toSave, ok := tx.Statement.Dest.(Actual)
		if !ok {
			toSave = *a
		}
		if toSave.OwnerType == "" {
			toSave.OwnerType = a.OwnerType
		}
		if toSave.OwnerID == uuid.Nil {
			toSave.OwnerID = a.OwnerID
		}

		// Resolve the budget from the new owner.
		toSave.BudgetID = uuid.Nil

		return (&toSave).checkIntegrity(tx)
	}

	return nil
}

func (a *Actual) checkIntegrity(tx *gorm.DB) error {
	switch a.OwnerType {
	case OwnerTypeSubAccount:
		var owner SubAccount
		if err := tx.First(&owner, "id = ?", a.OwnerID).Error; err != nil {
			return err
		}
		if owner.Domain != DomainBudget {
			return ErrActualOnTemplate
		}
		if a.BudgetID == uuid.Nil {
			a.BudgetID = owner.BudgetID
		}
	case OwnerTypeMarkup:
		var owner Markup
		if err := tx.First(&owner, "id = ?", a.OwnerID).Error; err != nil {
			return err
		}
		if a.BudgetID == uuid.Nil {
			a.BudgetID = owner.BudgetID
		}
	default:
		return ErrActualOwnerInvalid
	}

	var budget Budget
	if err := tx.First(&budget, "id = ?", a.BudgetID).Error; err != nil {
		return err
	}
	if budget.Domain != DomainBudget {
		return ErrActualOnTemplate
	}

	return nil
}

// sumActuals sums the values of all actual rows attached to an owner.
func sumActuals(db *gorm.DB, ownerType OwnerType, ownerID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal

	err := db.Model(&Actual{}).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Select("SUM(value)").
		Row().
		Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}

	if !sum.Valid {
		return decimal.Zero, nil
	}

	return sum.Decimal, nil
}
