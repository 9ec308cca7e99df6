package models_test

import (
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *TestSuiteStandard) TestSubAccountDenormalizedFields() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	subAccount := suite.createTestSubAccount(models.SubAccount{
		Parent: models.AccountParent(account.ID),
	})

	assert.Equal(suite.T(), budget.ID, subAccount.BudgetID)
	assert.Equal(suite.T(), models.DomainBudget, subAccount.Domain)
	assert.Equal(suite.T(), 0, subAccount.NestedLevel)

	child := suite.createTestSubAccount(models.SubAccount{
		Parent: models.SubAccountParent(subAccount.ID),
	})

	assert.Equal(suite.T(), budget.ID, child.BudgetID)
	assert.Equal(suite.T(), 1, child.NestedLevel)
}

func (suite *TestSuiteStandard) TestSubAccountRejectsBudgetParent() {
	budget := suite.createTestBudget(models.Budget{})

	err := models.DB.Create(&models.SubAccount{
		Parent: models.BudgetParent(budget.ID),
	}).Error

	require.ErrorIs(suite.T(), err, models.ErrSubAccountParentInvalid)
}

func (suite *TestSuiteStandard) TestSubAccountRejectsUnknownParent() {
	err := models.DB.Create(&models.SubAccount{
		Parent: models.AccountParent(uuid.New()),
	}).Error

	require.Error(suite.T(), err)
}

func (suite *TestSuiteStandard) TestSubAccountRejectsCrossBudgetParent() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	other := suite.createTestBudget(models.Budget{})

	err := models.DB.Create(&models.SubAccount{
		Parent:   models.AccountParent(account.ID),
		BudgetID: other.ID,
	}).Error

	require.ErrorIs(suite.T(), err, models.ErrSubAccountCrossBudget)
}

func (suite *TestSuiteStandard) TestSubAccountParentCheckedOnUpdate() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})
	subAccount := suite.createTestSubAccount(models.SubAccount{
		Parent: models.AccountParent(account.ID),
	})

	other := suite.createTestBudget(models.Budget{})
	foreign := suite.createTestAccount(models.Account{BudgetID: other.ID})

	err := models.DB.Model(&subAccount).
		Select("ParentID").
		Updates(models.SubAccount{Parent: models.AccountParent(foreign.ID)}).Error
	require.ErrorIs(suite.T(), err, models.ErrSubAccountCrossBudget)
}

func (suite *TestSuiteStandard) TestSubAccountLeafEstimate() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	subAccount := suite.createTestSubAccount(models.SubAccount{
		Parent:   models.AccountParent(account.ID),
		Quantity: decimalPtr(10),
		Rate:     decimalPtr(250),
	})

	changed, err := subAccount.Estimate(models.DB, nil, models.CalculationContext{})
	require.NoError(suite.T(), err)
	assert.True(suite.T(), changed)
	assert.True(suite.T(), subAccount.NominalValue.Equal(decimal.NewFromInt(2500)), subAccount.NominalValue.String())

	// A second run with unchanged inputs must be clean
	changed, err = subAccount.Estimate(models.DB, nil, models.CalculationContext{})
	require.NoError(suite.T(), err)
	assert.False(suite.T(), changed)
}

func (suite *TestSuiteStandard) TestSubAccountLeafMultiplier() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	subAccount := suite.createTestSubAccount(models.SubAccount{
		Parent:     models.AccountParent(account.ID),
		Quantity:   decimalPtr(5),
		Rate:       decimalPtr(100),
		Multiplier: decimalPtr(1.5),
	})

	_, err := subAccount.Estimate(models.DB, nil, models.CalculationContext{})
	require.NoError(suite.T(), err)
	assert.True(suite.T(), subAccount.NominalValue.Equal(decimal.NewFromInt(750)), subAccount.NominalValue.String())
}

func (suite *TestSuiteStandard) TestSubAccountMissingFactorsMeanZero() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	subAccount := suite.createTestSubAccount(models.SubAccount{
		Parent: models.AccountParent(account.ID),
		Rate:   decimalPtr(100),
	})

	_, err := subAccount.Estimate(models.DB, nil, models.CalculationContext{})
	require.NoError(suite.T(), err)
	assert.True(suite.T(), subAccount.NominalValue.IsZero())
}

func (suite *TestSuiteStandard) TestSubAccountNodeAggregatesChildren() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	parent := suite.createTestSubAccount(models.SubAccount{
		Parent: models.AccountParent(account.ID),
		// Own factors are ignored as soon as the node has children
		Quantity: decimalPtr(99),
		Rate:     decimalPtr(99),
	})

	children := []models.SubAccount{
		{NominalValue: decimal.NewFromInt(100), FringeContribution: decimal.NewFromInt(10)},
		{NominalValue: decimal.NewFromInt(200), AccumulatedFringeContribution: decimal.NewFromInt(20)},
	}

	changed, err := parent.Estimate(models.DB, children, models.CalculationContext{})
	require.NoError(suite.T(), err)
	assert.True(suite.T(), changed)
	assert.True(suite.T(), parent.NominalValue.Equal(decimal.NewFromInt(300)), parent.NominalValue.String())
	assert.True(suite.T(), parent.AccumulatedValue.Equal(decimal.NewFromInt(300)))
	assert.True(suite.T(), parent.AccumulatedFringeContribution.Equal(decimal.NewFromInt(30)))
	assert.True(suite.T(), parent.FringeContribution.IsZero())
}

func (suite *TestSuiteStandard) TestSubAccountEstimateExcludesDeletedChildren() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	parent := suite.createTestSubAccount(models.SubAccount{
		Parent: models.AccountParent(account.ID),
	})

	doomed := models.SubAccount{NominalValue: decimal.NewFromInt(500)}
	doomed.ID = uuid.New()
	kept := models.SubAccount{NominalValue: decimal.NewFromInt(100)}
	kept.ID = uuid.New()

	_, err := parent.Estimate(models.DB, []models.SubAccount{doomed, kept}, models.CalculationContext{
		ChildrenToBeDeleted: []uuid.UUID{doomed.ID},
	})
	require.NoError(suite.T(), err)
	assert.True(suite.T(), parent.NominalValue.Equal(decimal.NewFromInt(100)), parent.NominalValue.String())
}

func (suite *TestSuiteStandard) TestSubAccountActualizeSkipsTemplates() {
	template := suite.createTestBudget(models.Budget{Domain: models.DomainTemplate})
	account := suite.createTestAccount(models.Account{BudgetID: template.ID, Domain: models.DomainTemplate})

	subAccount := suite.createTestSubAccount(models.SubAccount{
		Parent: models.AccountParent(account.ID),
	})

	changed, err := subAccount.Actualize(models.DB, nil, models.CalculationContext{})
	require.NoError(suite.T(), err)
	assert.False(suite.T(), changed)
}

func (suite *TestSuiteStandard) TestSubAccountActualizeSumsOwnRowsAndChildren() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	subAccount := suite.createTestSubAccount(models.SubAccount{
		Parent: models.AccountParent(account.ID),
	})

	_ = suite.createTestActual(models.Actual{
		OwnerType: models.OwnerTypeSubAccount,
		OwnerID:   subAccount.ID,
		Value:     decimal.NewFromInt(120),
	})
	_ = suite.createTestActual(models.Actual{
		OwnerType: models.OwnerTypeSubAccount,
		OwnerID:   subAccount.ID,
		Value:     decimal.NewFromInt(80),
	})

	children := []models.SubAccount{{Actual: decimal.NewFromInt(50)}}

	changed, err := subAccount.Actualize(models.DB, children, models.CalculationContext{})
	require.NoError(suite.T(), err)
	assert.True(suite.T(), changed)
	assert.True(suite.T(), subAccount.Actual.Equal(decimal.NewFromInt(250)), subAccount.Actual.String())
}

func (suite *TestSuiteStandard) TestSubAccountRealizedValue() {
	subAccount := models.SubAccount{
		NominalValue:                  decimal.NewFromInt(1000),
		AccumulatedFringeContribution: decimal.NewFromInt(100),
		AccumulatedMarkupContribution: decimal.NewFromInt(50),
	}

	assert.True(suite.T(), subAccount.RealizedValue().Equal(decimal.NewFromInt(1150)))
}
