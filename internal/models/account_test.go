package models_test

import (
	"github.com/happybudget/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *TestSuiteStandard) TestAccountDomainInherited() {
	template := suite.createTestBudget(models.Budget{Domain: models.DomainTemplate})
	account := suite.createTestAccount(models.Account{BudgetID: template.ID})

	assert.Equal(suite.T(), models.DomainTemplate, account.Domain)
}

func (suite *TestSuiteStandard) TestAccountDomainMismatch() {
	budget := suite.createTestBudget(models.Budget{})

	err := models.DB.Create(&models.Account{
		BudgetID:   budget.ID,
		Identifier: "1000",
		Domain:     models.DomainTemplate,
	}).Error

	require.ErrorIs(suite.T(), err, models.ErrDomainMismatch)
}

func (suite *TestSuiteStandard) TestAccountRequiresBudget() {
	err := models.DB.Create(&models.Account{Identifier: "1000"}).Error
	require.Error(suite.T(), err)
}

func (suite *TestSuiteStandard) TestAccountNominalValue() {
	account := models.Account{AccumulatedValue: decimal.NewFromInt(4200)}
	assert.True(suite.T(), account.NominalValue().Equal(decimal.NewFromInt(4200)))
}

func (suite *TestSuiteStandard) TestAccountEstimateAggregatesChildren() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	children := []models.SubAccount{
		{NominalValue: decimal.NewFromInt(1000), FringeContribution: decimal.NewFromInt(100)},
		{NominalValue: decimal.NewFromInt(500), AccumulatedMarkupContribution: decimal.NewFromInt(25)},
	}

	changed, err := account.Estimate(models.DB, children, models.CalculationContext{})
	require.NoError(suite.T(), err)
	assert.True(suite.T(), changed)
	assert.True(suite.T(), account.AccumulatedValue.Equal(decimal.NewFromInt(1500)), account.AccumulatedValue.String())
	assert.True(suite.T(), account.AccumulatedFringeContribution.Equal(decimal.NewFromInt(100)))
	assert.True(suite.T(), account.AccumulatedMarkupContribution.Equal(decimal.NewFromInt(25)))
	assert.True(suite.T(), account.FringeContribution.IsZero())

	changed, err = account.Estimate(models.DB, children, models.CalculationContext{})
	require.NoError(suite.T(), err)
	assert.False(suite.T(), changed)
}

func (suite *TestSuiteStandard) TestAccountEstimateIncludesFlatMarkups() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	_ = suite.createTestMarkup(models.Markup{
		Parent: models.AccountParent(account.ID),
		Unit:   models.UnitFlat,
		Rate:   decimal.NewFromInt(300),
	})

	_, err := account.Estimate(models.DB, nil, models.CalculationContext{})
	require.NoError(suite.T(), err)
	assert.True(suite.T(), account.AccumulatedMarkupContribution.Equal(decimal.NewFromInt(300)), account.AccumulatedMarkupContribution.String())
}

func (suite *TestSuiteStandard) TestAccountActualizeSumsChildrenAndMarkups() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	markup := suite.createTestMarkup(models.Markup{
		Parent: models.AccountParent(account.ID),
		Unit:   models.UnitFlat,
		Rate:   decimal.NewFromInt(300),
	})
	_ = suite.createTestActual(models.Actual{
		OwnerType: models.OwnerTypeMarkup,
		OwnerID:   markup.ID,
		Value:     decimal.NewFromInt(275),
	})

	require.NoError(suite.T(), models.DB.First(&markup, "id = ?", markup.ID).Error)
	_, err := markup.Actualize(models.DB)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), models.DB.Save(&markup).Error)

	children := []models.SubAccount{{Actual: decimal.NewFromInt(100)}}

	changed, err := account.Actualize(models.DB, children, models.CalculationContext{})
	require.NoError(suite.T(), err)
	assert.True(suite.T(), changed)
	assert.True(suite.T(), account.Actual.Equal(decimal.NewFromInt(375)), account.Actual.String())
}

func (suite *TestSuiteStandard) TestAccountActualizeSkipsTemplates() {
	template := suite.createTestBudget(models.Budget{Domain: models.DomainTemplate})
	account := suite.createTestAccount(models.Account{BudgetID: template.ID})

	changed, err := account.Actualize(models.DB, nil, models.CalculationContext{})
	require.NoError(suite.T(), err)
	assert.False(suite.T(), changed)
}
