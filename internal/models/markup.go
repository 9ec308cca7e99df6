package models

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Markup modifies the cost of the node it hangs off of.
//
// A flat markup contributes its rate directly to the parent's accumulated
// markup contribution. A percent markup names an explicit set of children,
// siblings under the same parent, and contributes rate x realized value for
// each of them, booked on the child's markup contribution.
type Markup struct {
	DefaultModel
	Parent      `gorm:"embedded"`
	BudgetID    uuid.UUID `gorm:"index"`
	Identifier  string
	Description string
	Unit        CalculationUnit
	Rate        decimal.Decimal `gorm:"type:DECIMAL(20,8)"`

	// Children of a percent markup. Flat markups have none.
	Accounts    []Account    `gorm:"many2many:markup_accounts" json:"-"`
	SubAccounts []SubAccount `gorm:"many2many:markup_sub_accounts" json:"-"`

	// Sum of the attached actual rows, budget domain only.
	Actual decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
}

var (
	ErrFlatMarkupWithChildren     = errors.New("a markup with unit 'flat' must not have children")
	ErrPercentMarkupNeedsChildren = errors.New("a markup with unit 'percent' must have at least one child")
)

// BeforeSave validates the unit.
func (m *Markup) BeforeSave(_ *gorm.DB) error {
	if !m.Unit.Valid() {
		return ErrInvalidUnit
	}

	return nil
}

// BeforeCreate verifies the parent reference and fills in the denormalized
// budget id.
func (m *Markup) BeforeCreate(tx *gorm.DB) error {
	_ = m.DefaultModel.BeforeCreate(tx)

	budget, err := m.Parent.Budget(tx)
	if err != nil {
		return err
	}

	if m.BudgetID == uuid.Nil {
		m.BudgetID = budget.ID
	}

	return nil
}

// ChildCount returns the number of children named by the markup.
func (m Markup) ChildCount(db *gorm.DB) (int64, error) {
	var accounts, subAccounts int64

	err := db.Table("markup_accounts").Where("markup_id = ?", m.ID).Count(&accounts).Error
	if err != nil {
		return 0, err
	}

	err = db.Table("markup_sub_accounts").Where("markup_id = ?", m.ID).Count(&subAccounts).Error
	if err != nil {
		return 0, err
	}

	return accounts + subAccounts, nil
}

// Actualize recomputes the markup's actual from its attached actual rows.
// It returns true when the value changed.
func (m *Markup) Actualize(db *gorm.DB) (bool, error) {
	sum, err := sumActuals(db, OwnerTypeMarkup, m.ID)
	if err != nil {
		return false, err
	}

	return assign(&m.Actual, sum), nil
}

// markupsForParent returns all markups attached to a parent node, minus the
// exclusion set.
func markupsForParent(db *gorm.DB, parent Parent, exclude []uuid.UUID) ([]Markup, error) {
	var markups []Markup
	err := db.
		Where("parent_type = ? AND parent_id = ?", parent.ParentType, parent.ParentID).
		Find(&markups).Error
	if err != nil {
		return nil, err
	}

	return withoutMarkups(markups, exclude), nil
}

// withoutMarkups filters the exclusion set out of a markup slice.
func withoutMarkups(markups []Markup, exclude []uuid.UUID) []Markup {
	if len(exclude) == 0 {
		return markups
	}

	kept := make([]Markup, 0, len(markups))
	for _, markup := range markups {
		if !deleted(exclude, markup.ID) {
			kept = append(kept, markup)
		}
	}

	return kept
}
