package models

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SubAccount is a recursive line item. Its parent is either an Account
// (nested level 0) or another SubAccount (nested level 1 and deeper).
//
// A SubAccount is a leaf when it has no child subaccounts. Leaves derive
// their nominal value from quantity x rate x multiplier; interior nodes
// aggregate their children.
type SubAccount struct {
	DefaultModel
	Parent      `gorm:"embedded"`
	BudgetID    uuid.UUID `gorm:"index"` // Denormalized root budget for constant-time lookup
	Domain      Domain    `gorm:"index"` // Denormalized from the root budget
	NestedLevel int       `gorm:"index"` // Distance from the nearest Account ancestor
	Identifier  string
	Description string
	Quantity    *decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	Rate        *decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	Multiplier  *decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	Unit        string
	GroupID     *uuid.UUID

	Fringes []Fringe `gorm:"many2many:subaccount_fringes" json:"-"`

	NominalValue                  decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	AccumulatedValue              decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	FringeContribution            decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	AccumulatedFringeContribution decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	MarkupContribution            decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	AccumulatedMarkupContribution decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	Actual                        decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
}

var (
	ErrDomainMismatch          = errors.New("every entity in a budget's subtree must have the same domain as the root")
	ErrSubAccountParentInvalid = errors.New("a subaccount's parent must be an account or another subaccount")
	ErrSubAccountCrossBudget   = errors.New("a subaccount must share the root budget of its parent")
	ErrSubAccountOwnDescendant = errors.New("a subaccount cannot be moved into its own subtree")
)

// BeforeCreate resolves and verifies the parent reference, fills in the
// denormalized budget, domain and nesting level when they are unset, and
// rejects cross-budget parents.
func (s *SubAccount) BeforeCreate(tx *gorm.DB) error {
	_ = s.DefaultModel.BeforeCreate(tx)
	return s.checkIntegrity(tx)
}

// BeforeUpdate verifies the parent reference when it changes. The receiver
// still holds the loaded row at this point, so the check runs against the
// incoming values from the statement destination. The row's budget and domain
// are authoritative; a new parent must match them.
func (s *SubAccount) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("ParentID") || tx.Statement.Changed("ParentType") {
		toSave, ok := tx.Statement.Dest.(SubAccount)
		if !ok {
			toSave = *s
		}
		if toSave.ParentType == "" {
			toSave.ParentType = s.ParentType
		}
		if toSave.ParentID == uuid.Nil {
			toSave.ParentID = s.ParentID
		}
		toSave.BudgetID = s.BudgetID
		toSave.Domain = s.Domain

		return (&toSave).checkIntegrity(tx)
	}

	return nil
}

func (s *SubAccount) checkIntegrity(tx *gorm.DB) error {
	switch s.ParentType {
	case ParentTypeAccount:
		var parent Account
		if err := tx.First(&parent, "id = ?", s.ParentID).Error; err != nil {
			return err
		}

		s.NestedLevel = 0
		if s.BudgetID == uuid.Nil {
			s.BudgetID = parent.BudgetID
		}
		if s.BudgetID != parent.BudgetID {
			return ErrSubAccountCrossBudget
		}
		if s.Domain == "" {
			s.Domain = parent.Domain
		}
		if s.Domain != parent.Domain {
			return ErrDomainMismatch
		}
	case ParentTypeSubAccount:
		var parent SubAccount
		if err := tx.First(&parent, "id = ?", s.ParentID).Error; err != nil {
			return err
		}

		s.NestedLevel = parent.NestedLevel + 1
		if s.BudgetID == uuid.Nil {
			s.BudgetID = parent.BudgetID
		}
		if s.BudgetID != parent.BudgetID {
			return ErrSubAccountCrossBudget
		}
		if s.Domain == "" {
			s.Domain = parent.Domain
		}
		if s.Domain != parent.Domain {
			return ErrDomainMismatch
		}
	default:
		return ErrSubAccountParentInvalid
	}

	return nil
}

// EstimatedFields lists the columns written by an estimate commit.
func (SubAccount) EstimatedFields() []string {
	return []string{
		"nominal_value",
		"accumulated_value",
		"fringe_contribution",
		"accumulated_fringe_contribution",
		"markup_contribution",
		"accumulated_markup_contribution",
	}
}

// CalculatedFields lists the columns written by a calculate commit.
func (s SubAccount) CalculatedFields() []string {
	return append(s.EstimatedFields(), "actual")
}

// realizedValuePreMarkup is the base percent markups are applied to.
func (s SubAccount) realizedValuePreMarkup() decimal.Decimal {
	return s.NominalValue.Add(s.FringeContribution).Add(s.AccumulatedFringeContribution)
}

// RealizedValue is the full derived cost of the node.
func (s SubAccount) RealizedValue() decimal.Decimal {
	return s.NominalValue.
		Add(s.AccumulatedFringeContribution).
		Add(s.AccumulatedMarkupContribution)
}

// Children returns the direct child subaccounts.
func (s SubAccount) Children(db *gorm.DB) ([]SubAccount, error) {
	var children []SubAccount
	err := db.
		Where("parent_type = ? AND parent_id = ?", ParentTypeSubAccount, s.ID).
		Find(&children).Error
	return children, err
}

// Markups returns the markups attached directly to the subaccount, minus the
// exclusion set.
func (s SubAccount) Markups(db *gorm.DB, exclude []uuid.UUID) ([]Markup, error) {
	return markupsForParent(db, SubAccountParent(s.ID), exclude)
}

// ContributingMarkups returns the percent markups that name this subaccount
// as a child, minus the exclusion set.
func (s SubAccount) ContributingMarkups(db *gorm.DB, exclude []uuid.UUID) ([]Markup, error) {
	var markups []Markup
	err := db.
		Joins("JOIN markup_sub_accounts ON markup_sub_accounts.markup_id = markups.id").
		Where("markup_sub_accounts.sub_account_id = ?", s.ID).
		Where("markups.unit = ?", UnitPercent).
		Find(&markups).Error
	if err != nil {
		return nil, err
	}

	return withoutMarkups(markups, exclude), nil
}

// AssignedFringes returns the fringes assigned to the subaccount, minus the
// exclusion set.
func (s SubAccount) AssignedFringes(db *gorm.DB, exclude []uuid.UUID) ([]Fringe, error) {
	var fringes []Fringe
	err := db.
		Joins("JOIN subaccount_fringes ON subaccount_fringes.fringe_id = fringes.id").
		Where("subaccount_fringes.sub_account_id = ?", s.ID).
		Find(&fringes).Error
	if err != nil {
		return nil, err
	}

	if len(exclude) == 0 {
		return fringes, nil
	}

	kept := make([]Fringe, 0, len(fringes))
	for _, fringe := range fringes {
		if !deleted(exclude, fringe.ID) {
			kept = append(kept, fringe)
		}
	}

	return kept, nil
}

// OwnActuals sums the actual rows attached directly to this subaccount.
func (s SubAccount) OwnActuals(db *gorm.DB) (decimal.Decimal, error) {
	return sumActuals(db, OwnerTypeSubAccount, s.ID)
}

// estimateLeaf computes the derived fields of a subaccount without children.
func (s *SubAccount) estimateLeaf(db *gorm.DB, ctx CalculationContext) (bool, error) {
	nominal := orZero(s.Quantity).Mul(orZero(s.Rate)).Mul(orOne(s.Multiplier))
	changed := assign(&s.NominalValue, nominal)

	// A leaf aggregates nothing.
	changed = assign(&s.AccumulatedValue, decimal.Zero) || changed
	changed = assign(&s.AccumulatedFringeContribution, decimal.Zero) || changed

	fringes, err := s.AssignedFringes(db, ctx.FringesToBeDeleted)
	if err != nil {
		return false, err
	}

	contribution := decimal.Zero
	for _, fringe := range fringes {
		contribution = contribution.Add(fringe.Contribution(s.NominalValue))
	}
	changed = assign(&s.FringeContribution, contribution) || changed

	return changed, nil
}

// estimateNode computes the derived fields of a subaccount with children and
// returns the children's share of the accumulated markup contribution.
func (s *SubAccount) estimateNode(children []SubAccount) (bool, decimal.Decimal) {
	sum := decimal.Zero
	fringeSum := decimal.Zero
	markupSum := decimal.Zero
	for _, child := range children {
		sum = sum.Add(child.NominalValue)
		fringeSum = fringeSum.Add(child.FringeContribution).Add(child.AccumulatedFringeContribution)
		markupSum = markupSum.Add(child.MarkupContribution).Add(child.AccumulatedMarkupContribution)
	}

	changed := assign(&s.NominalValue, sum)
	changed = assign(&s.AccumulatedValue, sum) || changed
	changed = assign(&s.AccumulatedFringeContribution, fringeSum) || changed

	// Fringes only contribute at leaves.
	changed = assign(&s.FringeContribution, decimal.Zero) || changed

	return changed, markupSum
}

// Estimate recomputes all estimated fields of the subaccount. Leaf detection
// happens here, on the child count after the deletion set is applied.
// It returns true when any derived field changed.
func (s *SubAccount) Estimate(db *gorm.DB, children []SubAccount, ctx CalculationContext) (bool, error) {
	children = liveSubAccounts(children, ctx.ChildrenToBeDeleted)

	var changed bool
	var err error
	accumulatedMarkup := decimal.Zero

	if len(children) == 0 {
		changed, err = s.estimateLeaf(db, ctx)
		if err != nil {
			return false, err
		}
	} else {
		changed, accumulatedMarkup = s.estimateNode(children)
	}

	// Flat markups hanging off this node count into its accumulated markup
	// contribution, for leaves and interior nodes alike.
	markups, err := s.Markups(db, ctx.MarkupsToBeDeleted)
	if err != nil {
		return false, err
	}
	accumulatedMarkup = accumulatedMarkup.Add(flatMarkupSum(markups, ctx.MarkupsToBeDeleted))
	changed = assign(&s.AccumulatedMarkupContribution, accumulatedMarkup) || changed

	contributing, err := s.ContributingMarkups(db, ctx.MarkupsToBeDeleted)
	if err != nil {
		return false, err
	}

	contribution := percentMarkupContribution(contributing, ctx.MarkupsToBeDeleted, s.realizedValuePreMarkup())
	changed = assign(&s.MarkupContribution, contribution) || changed

	return changed, nil
}

// Actualize recomputes the actual from the subaccount's own actual rows, its
// children and the markups attached to it. Only meaningful in the budget
// domain.
func (s *SubAccount) Actualize(db *gorm.DB, children []SubAccount, ctx CalculationContext) (bool, error) {
	if s.Domain != DomainBudget {
		return false, nil
	}

	children = liveSubAccounts(children, ctx.ChildrenToBeDeleted)

	sum, err := s.OwnActuals(db)
	if err != nil {
		return false, err
	}

	markups, err := s.Markups(db, ctx.MarkupsToBeDeleted)
	if err != nil {
		return false, err
	}

	sum = sum.Add(markupActualSum(markups, ctx.MarkupsToBeDeleted))
	for _, child := range children {
		sum = sum.Add(child.Actual)
	}

	return assign(&s.Actual, sum), nil
}

// Calculate runs Estimate and, for the budget domain, Actualize.
func (s *SubAccount) Calculate(db *gorm.DB, children []SubAccount, ctx CalculationContext) (bool, error) {
	changed, err := s.Estimate(db, children, ctx)
	if err != nil {
		return false, err
	}

	actualized, err := s.Actualize(db, children, ctx)
	if err != nil {
		return false, err
	}

	return changed || actualized, nil
}
