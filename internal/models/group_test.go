package models_test

import (
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *TestSuiteStandard) TestGroupTrimWhitespace() {
	budget := suite.createTestBudget(models.Budget{})
	group := suite.createTestGroup(models.Group{
		Parent: models.BudgetParent(budget.ID),
		Name:   "  Above the Line ",
		Color:  " #aa0000 ",
	})

	assert.Equal(suite.T(), "Above the Line", group.Name)
	assert.Equal(suite.T(), "#aa0000", group.Color)
}

func (suite *TestSuiteStandard) TestGroupRequiresParent() {
	err := models.DB.Create(&models.Group{
		Parent: models.BudgetParent(uuid.New()),
		Name:   "Orphan",
	}).Error

	require.Error(suite.T(), err)
}

func (suite *TestSuiteStandard) TestGroupMemberCount() {
	budget := suite.createTestBudget(models.Budget{})
	group := suite.createTestGroup(models.Group{
		Parent: models.BudgetParent(budget.ID),
		Name:   "Crew",
	})

	_ = suite.createTestAccount(models.Account{BudgetID: budget.ID, GroupID: &group.ID})
	_ = suite.createTestAccount(models.Account{BudgetID: budget.ID, GroupID: &group.ID})
	_ = suite.createTestAccount(models.Account{BudgetID: budget.ID})

	count, err := group.MemberCount(models.DB)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), count)
}
