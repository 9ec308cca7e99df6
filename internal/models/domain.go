package models

import "errors"

// Domain discriminates between budgets and templates. Both share the same
// tree shape; only the budget domain stores actuals and only the template
// domain can be shared with the community.
type Domain string

const (
	DomainBudget   Domain = "budget"
	DomainTemplate Domain = "template"
)

var ErrInvalidDomain = errors.New("the domain must be either 'budget' or 'template'")

// Valid reports whether the domain is one of the two known values.
func (d Domain) Valid() bool {
	return d == DomainBudget || d == DomainTemplate
}

// CalculationUnit is the unit of a Markup or Fringe rate.
//
// Flat rates contribute their value directly. Percent rates are applied to
// the realized pre-markup value of the nodes they are attached to.
type CalculationUnit string

const (
	UnitFlat    CalculationUnit = "flat"
	UnitPercent CalculationUnit = "percent"
)

var ErrInvalidUnit = errors.New("the unit must be either 'flat' or 'percent'")

// Valid reports whether the unit is one of the two known values.
func (u CalculationUnit) Valid() bool {
	return u == UnitFlat || u == UnitPercent
}
