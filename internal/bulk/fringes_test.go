package bulk_test

import (
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/bulk"
	"github.com/happybudget/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *TestSuiteStandard) TestAddFringes() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)

	created, err := suite.service().AddFringes(budget.ID, user.ID, []bulk.FringePayload{
		{Name: "Payroll Tax", Unit: models.UnitPercent, Rate: decimal.NewFromFloat(0.22), Cutoff: decimalPtr(100000)},
		{Name: "Box Rental", Unit: models.UnitFlat, Rate: decimal.NewFromInt(500)},
	})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), created, 2)
	assert.Equal(suite.T(), budget.ID, created[0].BudgetID)
	assert.Equal(suite.T(), user.ID, suite.reloadBudget(budget.ID).UpdatedByID)
}

func (suite *TestSuiteStandard) TestAddFringesUnknownBudget() {
	user := suite.createTestUser()

	_, err := suite.service().AddFringes(uuid.New(), user.ID, []bulk.FringePayload{
		{Name: "Orphan", Unit: models.UnitFlat},
	})
	require.ErrorIs(suite.T(), err, models.ErrResourceNotFound)
}

func (suite *TestSuiteStandard) TestUpdateFringesRecalculatesAssignedSubAccounts() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)
	account := suite.createTestAccount(budget.ID)

	fringes, err := suite.service().AddFringes(budget.ID, user.ID, []bulk.FringePayload{
		{Name: "Union", Unit: models.UnitPercent, Rate: decimal.NewFromFloat(0.1)},
	})
	require.NoError(suite.T(), err)

	leaves, err := suite.service().AddSubAccounts(models.AccountParent(account.ID), user.ID, []bulk.SubAccountPayload{
		{Quantity: decimalPtr(1), Rate: decimalPtr(1000), FringeIDs: []uuid.UUID{fringes[0].ID}},
	})
	require.NoError(suite.T(), err)
	require.True(suite.T(), suite.reloadSubAccount(leaves[0].ID).FringeContribution.Equal(decimal.NewFromInt(100)))

	rate := decimal.NewFromFloat(0.3)
	_, err = suite.service().UpdateFringes(budget.ID, user.ID, []bulk.FringeChange{
		{ID: fringes[0].ID, Rate: &rate},
	})
	require.NoError(suite.T(), err)

	assert.True(suite.T(), suite.reloadSubAccount(leaves[0].ID).FringeContribution.Equal(decimal.NewFromInt(300)))
	assert.True(suite.T(), suite.reloadBudget(budget.ID).AccumulatedFringeContribution.Equal(decimal.NewFromInt(300)))
}

func (suite *TestSuiteStandard) TestUpdateFringesLabelChangeSkipsRecalc() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)

	fringes, err := suite.service().AddFringes(budget.ID, user.ID, []bulk.FringePayload{
		{Name: "Union", Unit: models.UnitPercent, Rate: decimal.NewFromFloat(0.1)},
	})
	require.NoError(suite.T(), err)

	name := "Union Dues"
	color := "#00ff00"
	updated, err := suite.service().UpdateFringes(budget.ID, user.ID, []bulk.FringeChange{
		{ID: fringes[0].ID, Name: &name, Color: &color},
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Union Dues", updated[0].Name)
	assert.Equal(suite.T(), "#00ff00", updated[0].Color)
}

func (suite *TestSuiteStandard) TestDeleteFringes() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)
	account := suite.createTestAccount(budget.ID)

	fringes, err := suite.service().AddFringes(budget.ID, user.ID, []bulk.FringePayload{
		{Name: "Union", Unit: models.UnitPercent, Rate: decimal.NewFromFloat(0.1)},
	})
	require.NoError(suite.T(), err)

	leaves, err := suite.service().AddSubAccounts(models.AccountParent(account.ID), user.ID, []bulk.SubAccountPayload{
		{Quantity: decimalPtr(1), Rate: decimalPtr(1000), FringeIDs: []uuid.UUID{fringes[0].ID}},
	})
	require.NoError(suite.T(), err)
	require.True(suite.T(), suite.reloadSubAccount(leaves[0].ID).FringeContribution.Equal(decimal.NewFromInt(100)))

	err = suite.service().DeleteFringes(budget.ID, user.ID, []uuid.UUID{fringes[0].ID})
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), int64(0), suite.countRows(&models.Fringe{}, "budget_id = ?", budget.ID))
	assert.True(suite.T(), suite.reloadSubAccount(leaves[0].ID).FringeContribution.IsZero())
	assert.True(suite.T(), suite.reloadBudget(budget.ID).AccumulatedFringeContribution.IsZero())
}

func (suite *TestSuiteStandard) TestDeleteFringesUnknownID() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)

	err := suite.service().DeleteFringes(budget.ID, user.ID, []uuid.UUID{uuid.New()})
	require.ErrorIs(suite.T(), err, models.ErrResourceNotFound)
}
