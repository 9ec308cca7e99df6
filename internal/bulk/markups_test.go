package bulk_test

import (
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/bulk"
	"github.com/happybudget/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *TestSuiteStandard) TestAddFlatMarkup() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)
	account := suite.createTestAccount(budget.ID)

	created, err := suite.service().AddMarkups(models.AccountParent(account.ID), user.ID, []bulk.MarkupPayload{
		{Identifier: "Contingency", Unit: models.UnitFlat, Rate: decimal.NewFromInt(5000)},
	})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), created, 1)
	assert.Equal(suite.T(), budget.ID, created[0].BudgetID)

	assert.True(suite.T(), suite.reloadAccount(account.ID).AccumulatedMarkupContribution.Equal(decimal.NewFromInt(5000)))
	assert.True(suite.T(), suite.reloadBudget(budget.ID).AccumulatedMarkupContribution.Equal(decimal.NewFromInt(5000)))
}

func (suite *TestSuiteStandard) TestAddPercentMarkup() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)
	account := suite.createTestAccount(budget.ID)

	leaves, err := suite.service().AddSubAccounts(models.AccountParent(account.ID), user.ID, []bulk.SubAccountPayload{
		{Quantity: decimalPtr(1), Rate: decimalPtr(2000)},
	})
	require.NoError(suite.T(), err)

	_, err = suite.service().AddMarkups(models.AccountParent(account.ID), user.ID, []bulk.MarkupPayload{
		{Unit: models.UnitPercent, Rate: decimal.NewFromFloat(0.1), ChildIDs: []uuid.UUID{leaves[0].ID}},
	})
	require.NoError(suite.T(), err)

	assert.True(suite.T(), suite.reloadSubAccount(leaves[0].ID).MarkupContribution.Equal(decimal.NewFromInt(200)))
	assert.True(suite.T(), suite.reloadBudget(budget.ID).AccumulatedMarkupContribution.Equal(decimal.NewFromInt(200)))
}

func (suite *TestSuiteStandard) TestAddMarkupValidation() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)
	account := suite.createTestAccount(budget.ID)
	leaf := suite.createTestSubAccount(models.AccountParent(account.ID), 0, 0)

	var validationErr *bulk.ValidationError

	// Flat markups must not name children
	_, err := suite.service().AddMarkups(models.AccountParent(account.ID), user.ID, []bulk.MarkupPayload{
		{Unit: models.UnitFlat, ChildIDs: []uuid.UUID{leaf.ID}},
	})
	require.ErrorAs(suite.T(), err, &validationErr)

	// Percent markups must name at least one
	_, err = suite.service().AddMarkups(models.AccountParent(account.ID), user.ID, []bulk.MarkupPayload{
		{Unit: models.UnitPercent, Rate: decimal.NewFromFloat(0.1)},
	})
	require.ErrorAs(suite.T(), err, &validationErr)
}

func (suite *TestSuiteStandard) TestAddMarkupRejectsNonSiblingChildren() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)
	account := suite.createTestAccount(budget.ID)
	otherAccount := suite.createTestAccount(budget.ID)
	foreign := suite.createTestSubAccount(models.AccountParent(otherAccount.ID), 0, 0)

	var validationErr *bulk.ValidationError
	_, err := suite.service().AddMarkups(models.AccountParent(account.ID), user.ID, []bulk.MarkupPayload{
		{Unit: models.UnitPercent, Rate: decimal.NewFromFloat(0.1), ChildIDs: []uuid.UUID{foreign.ID}},
	})
	require.ErrorAs(suite.T(), err, &validationErr)
}

func (suite *TestSuiteStandard) TestUpdateMarkupRate() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)
	account := suite.createTestAccount(budget.ID)

	created, err := suite.service().AddMarkups(models.AccountParent(account.ID), user.ID, []bulk.MarkupPayload{
		{Unit: models.UnitFlat, Rate: decimal.NewFromInt(100)},
	})
	require.NoError(suite.T(), err)

	rate := decimal.NewFromInt(250)
	_, err = suite.service().UpdateMarkups(models.AccountParent(account.ID), user.ID, []bulk.MarkupChange{
		{ID: created[0].ID, Rate: &rate},
	})
	require.NoError(suite.T(), err)

	assert.True(suite.T(), suite.reloadAccount(account.ID).AccumulatedMarkupContribution.Equal(decimal.NewFromInt(250)))
}

func (suite *TestSuiteStandard) TestUpdateMarkupPercentToFlatClearsChildren() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)
	account := suite.createTestAccount(budget.ID)

	leaves, err := suite.service().AddSubAccounts(models.AccountParent(account.ID), user.ID, []bulk.SubAccountPayload{
		{Quantity: decimalPtr(1), Rate: decimalPtr(1000)},
	})
	require.NoError(suite.T(), err)

	created, err := suite.service().AddMarkups(models.AccountParent(account.ID), user.ID, []bulk.MarkupPayload{
		{Unit: models.UnitPercent, Rate: decimal.NewFromFloat(0.1), ChildIDs: []uuid.UUID{leaves[0].ID}},
	})
	require.NoError(suite.T(), err)
	require.True(suite.T(), suite.reloadSubAccount(leaves[0].ID).MarkupContribution.Equal(decimal.NewFromInt(100)))

	flat := models.UnitFlat
	_, err = suite.service().UpdateMarkups(models.AccountParent(account.ID), user.ID, []bulk.MarkupChange{
		{ID: created[0].ID, Unit: &flat},
	})
	require.NoError(suite.T(), err)

	// The membership is gone and the former child's contribution is rolled back
	count, err := created[0].ChildCount(models.DB)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(0), count)
	assert.True(suite.T(), suite.reloadSubAccount(leaves[0].ID).MarkupContribution.IsZero())
}

func (suite *TestSuiteStandard) TestUpdateMarkupFlatToPercentRequiresChildren() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)
	account := suite.createTestAccount(budget.ID)

	created, err := suite.service().AddMarkups(models.AccountParent(account.ID), user.ID, []bulk.MarkupPayload{
		{Unit: models.UnitFlat, Rate: decimal.NewFromInt(100)},
	})
	require.NoError(suite.T(), err)

	percent := models.UnitPercent
	var validationErr *bulk.ValidationError
	_, err = suite.service().UpdateMarkups(models.AccountParent(account.ID), user.ID, []bulk.MarkupChange{
		{ID: created[0].ID, Unit: &percent},
	})
	require.ErrorAs(suite.T(), err, &validationErr)
}

func (suite *TestSuiteStandard) TestDeleteMarkups() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)
	account := suite.createTestAccount(budget.ID)

	created, err := suite.service().AddMarkups(models.AccountParent(account.ID), user.ID, []bulk.MarkupPayload{
		{Unit: models.UnitFlat, Rate: decimal.NewFromInt(5000)},
	})
	require.NoError(suite.T(), err)

	actual := models.Actual{OwnerType: models.OwnerTypeMarkup, OwnerID: created[0].ID, Value: decimal.NewFromInt(10)}
	require.NoError(suite.T(), models.DB.Create(&actual).Error)

	err = suite.service().DeleteMarkups(models.AccountParent(account.ID), user.ID, []uuid.UUID{created[0].ID})
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), int64(0), suite.countRows(&models.Markup{}, "id = ?", created[0].ID))
	assert.Equal(suite.T(), int64(0), suite.countRows(&models.Actual{}, "owner_id = ?", created[0].ID))
	assert.True(suite.T(), suite.reloadAccount(account.ID).AccumulatedMarkupContribution.IsZero())
	assert.True(suite.T(), suite.reloadBudget(budget.ID).AccumulatedMarkupContribution.IsZero())
}
