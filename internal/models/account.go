package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account is a first-level child of a Budget. It owns the subaccount tree
// that carries the actual line items.
type Account struct {
	DefaultModel
	BudgetID    uuid.UUID `gorm:"index"`
	Domain      Domain    `gorm:"index"` // Denormalized from the root budget
	Identifier  string
	Description string
	GroupID     *uuid.UUID

	AccumulatedValue              decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	FringeContribution            decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	AccumulatedFringeContribution decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	MarkupContribution            decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	AccumulatedMarkupContribution decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	Actual                        decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
}

// BeforeCreate verifies that the referenced budget exists and that the
// denormalized domain matches it.
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	_ = a.DefaultModel.BeforeCreate(tx)
	return a.checkIntegrity(tx)
}

// BeforeUpdate verifies the budget reference when it changes. The receiver
// still holds the loaded row at this point, so the check runs against the
// incoming values from the statement destination.
func (a *Account) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("BudgetID") || tx.Statement.Changed("Domain") {
		toSave, ok := tx.Statement.Dest.(Account)
		if !ok {
			toSave = *a
		}
		if toSave.BudgetID == uuid.Nil {
			toSave.BudgetID = a.BudgetID
		}
		if toSave.Domain == "" {
			toSave.Domain = a.Domain
		}

		return (&toSave).checkIntegrity(tx)
	}

	return nil
}

// checkIntegrity verifies references to other resources. Every entity in a
// budget's subtree must carry the same domain as the root.
func (a *Account) checkIntegrity(tx *gorm.DB) error {
	var budget Budget
	err := tx.First(&budget, "id = ?", a.BudgetID).Error
	if err != nil {
		return err
	}

	if a.Domain == "" {
		a.Domain = budget.Domain
	}

	if a.Domain != budget.Domain {
		return ErrDomainMismatch
	}

	return nil
}

// EstimatedFields lists the columns written by an estimate commit.
func (Account) EstimatedFields() []string {
	return []string{
		"accumulated_value",
		"fringe_contribution",
		"accumulated_fringe_contribution",
		"markup_contribution",
		"accumulated_markup_contribution",
	}
}

// CalculatedFields lists the columns written by a calculate commit.
func (a Account) CalculatedFields() []string {
	return append(a.EstimatedFields(), "actual")
}

// NominalValue of an account is the sum of its children's nominal values,
// which is exactly what the accumulated value holds.
func (a Account) NominalValue() decimal.Decimal {
	return a.AccumulatedValue
}

// realizedValuePreMarkup is the base percent markups are applied to.
func (a Account) realizedValuePreMarkup() decimal.Decimal {
	return a.AccumulatedValue.Add(a.FringeContribution).Add(a.AccumulatedFringeContribution)
}

// Markups returns the markups attached directly to the account, minus the
// exclusion set.
func (a Account) Markups(db *gorm.DB, exclude []uuid.UUID) ([]Markup, error) {
	return markupsForParent(db, AccountParent(a.ID), exclude)
}

// ContributingMarkups returns the percent markups that name this account as
// a child, minus the exclusion set.
func (a Account) ContributingMarkups(db *gorm.DB, exclude []uuid.UUID) ([]Markup, error) {
	var markups []Markup
	err := db.
		Joins("JOIN markup_accounts ON markup_accounts.markup_id = markups.id").
		Where("markup_accounts.account_id = ?", a.ID).
		Where("markups.unit = ?", UnitPercent).
		Find(&markups).Error
	if err != nil {
		return nil, err
	}

	return withoutMarkups(markups, exclude), nil
}

// SubAccounts returns the direct children of the account.
func (a Account) SubAccounts(db *gorm.DB) ([]SubAccount, error) {
	var subAccounts []SubAccount
	err := db.
		Where("parent_type = ? AND parent_id = ?", ParentTypeAccount, a.ID).
		Find(&subAccounts).Error
	return subAccounts, err
}

func (a *Account) accumulateValue(children []SubAccount) bool {
	sum := decimal.Zero
	for _, child := range children {
		sum = sum.Add(child.NominalValue)
	}

	return assign(&a.AccumulatedValue, sum)
}

func (a *Account) accumulateFringeContribution(children []SubAccount) bool {
	sum := decimal.Zero
	for _, child := range children {
		sum = sum.Add(child.FringeContribution).Add(child.AccumulatedFringeContribution)
	}

	return assign(&a.AccumulatedFringeContribution, sum)
}

func (a *Account) accumulateMarkupContribution(children []SubAccount, markups []Markup, exclude []uuid.UUID) bool {
	sum := flatMarkupSum(markups, exclude)
	for _, child := range children {
		sum = sum.Add(child.MarkupContribution).Add(child.AccumulatedMarkupContribution)
	}

	return assign(&a.AccumulatedMarkupContribution, sum)
}

// Estimate recomputes all estimated fields of the account from its children.
// It returns true when any derived field changed.
func (a *Account) Estimate(db *gorm.DB, children []SubAccount, ctx CalculationContext) (bool, error) {
	children = liveSubAccounts(children, ctx.ChildrenToBeDeleted)

	markups, err := a.Markups(db, ctx.MarkupsToBeDeleted)
	if err != nil {
		return false, err
	}

	changed := a.accumulateValue(children)
	changed = a.accumulateFringeContribution(children) || changed
	changed = a.accumulateMarkupContribution(children, markups, ctx.MarkupsToBeDeleted) || changed

	// Accounts hold no fringes of their own.
	changed = assign(&a.FringeContribution, decimal.Zero) || changed

	contributing, err := a.ContributingMarkups(db, ctx.MarkupsToBeDeleted)
	if err != nil {
		return false, err
	}

	contribution := percentMarkupContribution(contributing, ctx.MarkupsToBeDeleted, a.realizedValuePreMarkup())
	changed = assign(&a.MarkupContribution, contribution) || changed

	return changed, nil
}

// Actualize recomputes the actual from the children and the markups attached
// to the account. Only meaningful in the budget domain.
func (a *Account) Actualize(db *gorm.DB, children []SubAccount, ctx CalculationContext) (bool, error) {
	if a.Domain != DomainBudget {
		return false, nil
	}

	children = liveSubAccounts(children, ctx.ChildrenToBeDeleted)

	markups, err := a.Markups(db, ctx.MarkupsToBeDeleted)
	if err != nil {
		return false, err
	}

	sum := markupActualSum(markups, ctx.MarkupsToBeDeleted)
	for _, child := range children {
		sum = sum.Add(child.Actual)
	}

	return assign(&a.Actual, sum), nil
}

// Calculate runs Estimate and, for the budget domain, Actualize.
func (a *Account) Calculate(db *gorm.DB, children []SubAccount, ctx CalculationContext) (bool, error) {
	changed, err := a.Estimate(db, children, ctx)
	if err != nil {
		return false, err
	}

	actualized, err := a.Actualize(db, children, ctx)
	if err != nil {
		return false, err
	}

	return changed || actualized, nil
}
