package models

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Fringe is a percent or flat modifier attached to a Budget and assigned to
// its leaf subaccounts. Percent fringes apply their rate to the subaccount's
// nominal value, capped by the cutoff when one is set.
type Fringe struct {
	DefaultModel
	BudgetID    uuid.UUID `gorm:"index"`
	Name        string
	Description string
	Unit        CalculationUnit
	Rate        decimal.Decimal  `gorm:"type:DECIMAL(20,8)"`
	Cutoff      *decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	Color       string
}

var ErrFringeBudgetMissing = errors.New("a fringe must reference a budget")

// BeforeSave validates the fringe row.
func (f *Fringe) BeforeSave(_ *gorm.DB) error {
	f.Name = strings.TrimSpace(f.Name)

	if !f.Unit.Valid() {
		return ErrInvalidUnit
	}

	return nil
}

// BeforeCreate verifies that the referenced budget exists.
func (f *Fringe) BeforeCreate(tx *gorm.DB) error {
	_ = f.DefaultModel.BeforeCreate(tx)

	if f.BudgetID == uuid.Nil {
		return ErrFringeBudgetMissing
	}

	return tx.First(&Budget{}, "id = ?", f.BudgetID).Error
}

// Contribution computes the fringe's contribution for a leaf subaccount with
// the given nominal value.
func (f Fringe) Contribution(nominal decimal.Decimal) decimal.Decimal {
	if f.Unit == UnitFlat {
		return f.Rate
	}

	base := nominal
	if f.Cutoff != nil && base.GreaterThan(*f.Cutoff) {
		base = *f.Cutoff
	}

	return f.Rate.Mul(base)
}
