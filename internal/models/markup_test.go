package models_test

import (
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *TestSuiteStandard) TestMarkupUnitValidated() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	err := models.DB.Create(&models.Markup{
		Parent: models.AccountParent(account.ID),
		Unit:   "half",
	}).Error

	require.ErrorIs(suite.T(), err, models.ErrInvalidUnit)
}

func (suite *TestSuiteStandard) TestMarkupBudgetFilledFromParent() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	markup := suite.createTestMarkup(models.Markup{
		Parent: models.AccountParent(account.ID),
		Unit:   models.UnitFlat,
		Rate:   decimal.NewFromInt(100),
	})

	assert.Equal(suite.T(), budget.ID, markup.BudgetID)
}

func (suite *TestSuiteStandard) TestMarkupChildCount() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})
	sibling := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	markup := suite.createTestMarkup(models.Markup{
		Parent: models.BudgetParent(budget.ID),
		Unit:   models.UnitPercent,
		Rate:   decimal.NewFromFloat(0.05),
	})

	err := models.DB.Model(&markup).Association("Accounts").Append(&account, &sibling)
	require.NoError(suite.T(), err)

	count, err := markup.ChildCount(models.DB)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), count)
}

func (suite *TestSuiteStandard) TestMarkupActualize() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	markup := suite.createTestMarkup(models.Markup{
		Parent: models.AccountParent(account.ID),
		Unit:   models.UnitFlat,
		Rate:   decimal.NewFromInt(100),
	})

	_ = suite.createTestActual(models.Actual{
		OwnerType: models.OwnerTypeMarkup,
		OwnerID:   markup.ID,
		Value:     decimal.NewFromInt(40),
	})
	_ = suite.createTestActual(models.Actual{
		OwnerType: models.OwnerTypeMarkup,
		OwnerID:   markup.ID,
		Value:     decimal.NewFromInt(60),
	})

	changed, err := markup.Actualize(models.DB)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), changed)
	assert.True(suite.T(), markup.Actual.Equal(decimal.NewFromInt(100)))

	changed, err = markup.Actualize(models.DB)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), changed)
}

func (suite *TestSuiteStandard) TestPercentMarkupContributesToChild() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	subAccount := suite.createTestSubAccount(models.SubAccount{
		Parent:   models.AccountParent(account.ID),
		Quantity: decimalPtr(1),
		Rate:     decimalPtr(1000),
	})

	markup := suite.createTestMarkup(models.Markup{
		Parent: models.AccountParent(account.ID),
		Unit:   models.UnitPercent,
		Rate:   decimal.NewFromFloat(0.1),
	})
	err := models.DB.Model(&markup).Association("SubAccounts").Append(&subAccount)
	require.NoError(suite.T(), err)

	_, err = subAccount.Estimate(models.DB, nil, models.CalculationContext{})
	require.NoError(suite.T(), err)

	assert.True(suite.T(), subAccount.MarkupContribution.Equal(decimal.NewFromInt(100)), subAccount.MarkupContribution.String())
	// A percent markup never adds to the node it hangs off of
	assert.True(suite.T(), subAccount.AccumulatedMarkupContribution.IsZero())
}

func (suite *TestSuiteStandard) TestMarkupExcludedWhenMarkedDeleted() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	markup := suite.createTestMarkup(models.Markup{
		Parent: models.AccountParent(account.ID),
		Unit:   models.UnitFlat,
		Rate:   decimal.NewFromInt(500),
	})

	_, err := account.Estimate(models.DB, nil, models.CalculationContext{
		MarkupsToBeDeleted: []uuid.UUID{markup.ID},
	})
	require.NoError(suite.T(), err)
	assert.True(suite.T(), account.AccumulatedMarkupContribution.IsZero())
}
