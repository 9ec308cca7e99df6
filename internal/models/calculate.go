package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// CalculationContext carries the deletion sets a recalculation must ignore.
//
// When a bulk delete runs, the rows are still present in the database while
// the ancestors are recalculated. The accumulators skip anything whose id is
// listed here so the new aggregates do not reference disappearing rows.
type CalculationContext struct {
	MarkupsToBeDeleted  []uuid.UUID
	FringesToBeDeleted  []uuid.UUID
	ChildrenToBeDeleted []uuid.UUID
}

// deleted reports whether the id is in the given deletion set.
func deleted(set []uuid.UUID, id uuid.UUID) bool {
	return slices.Contains(set, id)
}

// liveAccounts filters out accounts that are about to be deleted.
func liveAccounts(children []Account, exclude []uuid.UUID) []Account {
	if len(exclude) == 0 {
		return children
	}

	live := make([]Account, 0, len(children))
	for _, child := range children {
		if !deleted(exclude, child.ID) {
			live = append(live, child)
		}
	}

	return live
}

// liveSubAccounts filters out subaccounts that are about to be deleted.
func liveSubAccounts(children []SubAccount, exclude []uuid.UUID) []SubAccount {
	if len(exclude) == 0 {
		return children
	}

	live := make([]SubAccount, 0, len(children))
	for _, child := range children {
		if !deleted(exclude, child.ID) {
			live = append(live, child)
		}
	}

	return live
}

// one is the neutral element for the multiplier.
var one = decimal.NewFromInt(1)

// orZero unwraps an optional decimal, treating nil as zero.
func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// orOne unwraps an optional decimal, treating nil as one.
func orOne(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return one
	}
	return *d
}

// assign sets *field to value and reports whether it changed.
// Comparison is exact decimal equality.
func assign(field *decimal.Decimal, value decimal.Decimal) bool {
	if field.Equal(value) {
		return false
	}

	*field = value
	return true
}

// flatMarkupSum adds up the rates of flat markups, skipping deleted ones.
func flatMarkupSum(markups []Markup, exclude []uuid.UUID) decimal.Decimal {
	sum := decimal.Zero
	for _, markup := range markups {
		if markup.Unit != UnitFlat || deleted(exclude, markup.ID) {
			continue
		}
		sum = sum.Add(markup.Rate)
	}

	return sum
}

// markupActualSum adds up the actuals of directly attached markups,
// skipping deleted ones.
func markupActualSum(markups []Markup, exclude []uuid.UUID) decimal.Decimal {
	sum := decimal.Zero
	for _, markup := range markups {
		if deleted(exclude, markup.ID) {
			continue
		}
		sum = sum.Add(markup.Actual)
	}

	return sum
}

// percentMarkupContribution computes the markup contribution of a node from
// the percent markups that name it as a child. The base is the node's
// realized value before markups are applied.
func percentMarkupContribution(markups []Markup, exclude []uuid.UUID, base decimal.Decimal) decimal.Decimal {
	contribution := decimal.Zero
	for _, markup := range markups {
		if markup.Unit != UnitPercent || deleted(exclude, markup.ID) {
			continue
		}
		contribution = contribution.Add(markup.Rate.Mul(base))
	}

	return contribution
}
