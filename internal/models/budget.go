package models

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"gorm.io/gorm"
)

// Budget is the root of a budget tree.
//
// A Budget owns all of its descendants: Accounts, SubAccounts, Markups,
// Fringes, Groups and Actuals all reference it directly or transitively.
// The same row shape serves both domains; rows with the template domain never
// store actuals and are the only ones that can be shared with the community.
type Budget struct {
	DefaultModel
	Name        string `gorm:"index"`
	Domain      Domain `gorm:"index"`
	Currency    string
	ImageName   string // Opaque key of the cover image in external storage
	Community   bool   // Template domain only
	Archived    bool
	CreatedByID uuid.UUID
	UpdatedByID uuid.UUID

	AccumulatedValue              decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	AccumulatedFringeContribution decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	AccumulatedMarkupContribution decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	Actual                        decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
}

var (
	ErrBudgetNameMissing     = errors.New("the budget name must be set")
	ErrBudgetInvalidCurrency = errors.New("the budget currency must be a valid ISO 4217 code")
	ErrCommunityOnBudget     = errors.New("only templates can be shared with the community")
	ErrTemplateOnBudgetRoute = errors.New("templates are created through the template endpoints")
)

// BeforeSave validates the budget row.
func (b *Budget) BeforeSave(_ *gorm.DB) error {
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		return ErrBudgetNameMissing
	}

	if !b.Domain.Valid() {
		return ErrInvalidDomain
	}

	if b.Community && b.Domain != DomainTemplate {
		return ErrCommunityOnBudget
	}

	if b.Currency != "" {
		if _, err := currency.ParseISO(b.Currency); err != nil {
			return ErrBudgetInvalidCurrency
		}
	}

	return nil
}

// EstimatedFields lists the columns written by an estimate commit.
func (Budget) EstimatedFields() []string {
	return []string{
		"accumulated_value",
		"accumulated_fringe_contribution",
		"accumulated_markup_contribution",
	}
}

// CalculatedFields lists the columns written by a calculate commit.
func (b Budget) CalculatedFields() []string {
	return append(b.EstimatedFields(), "actual")
}

// Markups returns the markups attached directly to the budget, minus the
// exclusion set.
func (b Budget) Markups(db *gorm.DB, exclude []uuid.UUID) ([]Markup, error) {
	return markupsForParent(db, BudgetParent(b.ID), exclude)
}

// Accounts returns the direct children of the budget.
func (b Budget) Accounts(db *gorm.DB) ([]Account, error) {
	var accounts []Account
	err := db.Where("budget_id = ?", b.ID).Find(&accounts).Error
	return accounts, err
}

// accumulateValue aggregates the nominal values of the children.
func (b *Budget) accumulateValue(children []Account) bool {
	sum := decimal.Zero
	for _, child := range children {
		sum = sum.Add(child.NominalValue())
	}

	return assign(&b.AccumulatedValue, sum)
}

// accumulateFringeContribution aggregates the fringe contributions of the
// children and everything below them.
func (b *Budget) accumulateFringeContribution(children []Account) bool {
	sum := decimal.Zero
	for _, child := range children {
		sum = sum.Add(child.FringeContribution).Add(child.AccumulatedFringeContribution)
	}

	return assign(&b.AccumulatedFringeContribution, sum)
}

// accumulateMarkupContribution aggregates the markup contributions of the
// children and adds the rates of flat markups attached to the budget itself.
func (b *Budget) accumulateMarkupContribution(children []Account, markups []Markup, exclude []uuid.UUID) bool {
	sum := flatMarkupSum(markups, exclude)
	for _, child := range children {
		sum = sum.Add(child.MarkupContribution).Add(child.AccumulatedMarkupContribution)
	}

	return assign(&b.AccumulatedMarkupContribution, sum)
}

// Estimate recomputes all estimated fields of the budget from its children.
// It returns true when any derived field changed.
func (b *Budget) Estimate(db *gorm.DB, children []Account, ctx CalculationContext) (bool, error) {
	children = liveAccounts(children, ctx.ChildrenToBeDeleted)

	markups, err := b.Markups(db, ctx.MarkupsToBeDeleted)
	if err != nil {
		return false, err
	}

	changed := b.accumulateValue(children)
	changed = b.accumulateFringeContribution(children) || changed
	changed = b.accumulateMarkupContribution(children, markups, ctx.MarkupsToBeDeleted) || changed

	return changed, nil
}

// Actualize recomputes the actual from the children and the markups attached
// to the budget. Templates never store actuals, so this is a no-op for them.
func (b *Budget) Actualize(db *gorm.DB, children []Account, ctx CalculationContext) (bool, error) {
	if b.Domain != DomainBudget {
		return false, nil
	}

	children = liveAccounts(children, ctx.ChildrenToBeDeleted)

	markups, err := b.Markups(db, ctx.MarkupsToBeDeleted)
	if err != nil {
		return false, err
	}

	sum := markupActualSum(markups, ctx.MarkupsToBeDeleted)
	for _, child := range children {
		sum = sum.Add(child.Actual)
	}

	return assign(&b.Actual, sum), nil
}

// Calculate runs Estimate and, for the budget domain, Actualize.
func (b *Budget) Calculate(db *gorm.DB, children []Account, ctx CalculationContext) (bool, error) {
	changed, err := b.Estimate(db, children, ctx)
	if err != nil {
		return false, err
	}

	actualized, err := b.Actualize(db, children, ctx)
	if err != nil {
		return false, err
	}

	return changed || actualized, nil
}
