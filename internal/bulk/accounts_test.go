package bulk_test

import (
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/bulk"
	"github.com/happybudget/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *TestSuiteStandard) TestAddAccounts() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)

	created, err := suite.service().AddAccounts(budget.ID, user.ID, []bulk.AccountPayload{
		{Identifier: "1000", Description: "Story & Rights"},
		{Identifier: "2000"},
	})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), created, 2)

	assert.Equal(suite.T(), budget.ID, created[0].BudgetID)
	assert.Equal(suite.T(), models.DomainBudget, created[0].Domain)
	assert.Equal(suite.T(), "Story & Rights", created[0].Description)

	// The budget records who touched it last
	assert.Equal(suite.T(), user.ID, suite.reloadBudget(budget.ID).UpdatedByID)
}

func (suite *TestSuiteStandard) TestAddAccountsUnknownBudget() {
	user := suite.createTestUser()

	_, err := suite.service().AddAccounts(uuid.New(), user.ID, []bulk.AccountPayload{{Identifier: "1000"}})
	require.ErrorIs(suite.T(), err, models.ErrResourceNotFound)
}

func (suite *TestSuiteStandard) TestAddAccountsRejectsForeignGroup() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)
	account := suite.createTestAccount(budget.ID)

	// A group under an account cannot label the budget's children
	group := models.Group{Parent: models.AccountParent(account.ID), Name: "wrong level"}
	require.NoError(suite.T(), models.DB.Create(&group).Error)

	_, err := suite.service().AddAccounts(budget.ID, user.ID, []bulk.AccountPayload{
		{Identifier: "3000", GroupID: &group.ID},
	})
	require.ErrorIs(suite.T(), err, models.ErrGroupMemberNotSibling)

	// The whole operation rolled back
	assert.Equal(suite.T(), int64(0), suite.countRows(&models.Account{}, "identifier = ?", "3000"))
}

func (suite *TestSuiteStandard) TestUpdateAccounts() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)
	account := suite.createTestAccount(budget.ID)

	identifier := "1000"
	description := "Production Staff"
	updated, err := suite.service().UpdateAccounts(budget.ID, user.ID, []bulk.AccountChange{
		{ID: account.ID, Identifier: &identifier, Description: &description},
	})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), updated, 1)

	reloaded := suite.reloadAccount(account.ID)
	assert.Equal(suite.T(), "1000", reloaded.Identifier)
	assert.Equal(suite.T(), "Production Staff", reloaded.Description)
}

func (suite *TestSuiteStandard) TestUpdateAccountsCollectsEmptyGroup() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)
	account := suite.createTestAccount(budget.ID)

	group := models.Group{Parent: models.BudgetParent(budget.ID), Name: "Crew"}
	require.NoError(suite.T(), models.DB.Create(&group).Error)
	require.NoError(suite.T(), models.DB.Model(&account).Update("group_id", group.ID).Error)

	// Detaching the only member leaves the group empty, so it is collected
	detach := uuid.Nil
	_, err := suite.service().UpdateAccounts(budget.ID, user.ID, []bulk.AccountChange{
		{ID: account.ID, GroupID: &detach},
	})
	require.NoError(suite.T(), err)

	assert.Nil(suite.T(), suite.reloadAccount(account.ID).GroupID)
	assert.Equal(suite.T(), int64(0), suite.countRows(&models.Group{}, "id = ?", group.ID))
}

func (suite *TestSuiteStandard) TestUpdateAccountsUnknownAccount() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)

	identifier := "1000"
	_, err := suite.service().UpdateAccounts(budget.ID, user.ID, []bulk.AccountChange{
		{ID: uuid.New(), Identifier: &identifier},
	})
	require.ErrorIs(suite.T(), err, models.ErrResourceNotFound)
}

func (suite *TestSuiteStandard) TestDeleteAccounts() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)
	account := suite.createTestAccount(budget.ID)

	created, err := suite.service().AddSubAccounts(models.AccountParent(account.ID), user.ID, []bulk.SubAccountPayload{
		{Quantity: decimalPtr(10), Rate: decimalPtr(100)},
	})
	require.NoError(suite.T(), err)
	leaf := created[0]
	require.True(suite.T(), suite.reloadBudget(budget.ID).AccumulatedValue.Equal(decimal.NewFromInt(1000)))

	err = suite.service().DeleteAccounts(budget.ID, user.ID, []uuid.UUID{account.ID})
	require.NoError(suite.T(), err)

	// Rows and derived values are gone together
	assert.Equal(suite.T(), int64(0), suite.countRows(&models.Account{}, "id = ?", account.ID))
	assert.Equal(suite.T(), int64(0), suite.countRows(&models.SubAccount{}, "id = ?", leaf.ID))
	assert.True(suite.T(), suite.reloadBudget(budget.ID).AccumulatedValue.IsZero())
}

func (suite *TestSuiteStandard) TestDeleteAccountsUnknownID() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)

	err := suite.service().DeleteAccounts(budget.ID, user.ID, []uuid.UUID{uuid.New()})
	require.ErrorIs(suite.T(), err, models.ErrResourceNotFound)
}

func (suite *TestSuiteStandard) TestDeleteAccountsCollectsEmptiedPercentMarkup() {
	user := suite.createTestUser()
	budget := suite.createTestBudget(models.DomainBudget)
	account := suite.createTestAccount(budget.ID)

	_, err := suite.service().AddMarkups(models.BudgetParent(budget.ID), user.ID, []bulk.MarkupPayload{
		{Unit: models.UnitPercent, Rate: decimal.NewFromFloat(0.1), ChildIDs: []uuid.UUID{account.ID}},
	})
	require.NoError(suite.T(), err)

	err = suite.service().DeleteAccounts(budget.ID, user.ID, []uuid.UUID{account.ID})
	require.NoError(suite.T(), err)

	// The markup lost its only child and cannot persist
	assert.Equal(suite.T(), int64(0), suite.countRows(&models.Markup{}, "budget_id = ?", budget.ID))
}
