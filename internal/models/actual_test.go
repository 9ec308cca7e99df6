package models_test

import (
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *TestSuiteStandard) TestActualOwnerTypeValidated() {
	err := models.DB.Create(&models.Actual{
		OwnerType: "budget",
		OwnerID:   uuid.New(),
	}).Error

	require.ErrorIs(suite.T(), err, models.ErrActualOwnerInvalid)
}

func (suite *TestSuiteStandard) TestActualRequiresExistingOwner() {
	err := models.DB.Create(&models.Actual{
		OwnerType: models.OwnerTypeSubAccount,
		OwnerID:   uuid.New(),
	}).Error

	require.Error(suite.T(), err)
}

func (suite *TestSuiteStandard) TestActualRejectedOnTemplate() {
	template := suite.createTestBudget(models.Budget{Domain: models.DomainTemplate})
	account := suite.createTestAccount(models.Account{BudgetID: template.ID})
	subAccount := suite.createTestSubAccount(models.SubAccount{
		Parent: models.AccountParent(account.ID),
	})

	err := models.DB.Create(&models.Actual{
		OwnerType: models.OwnerTypeSubAccount,
		OwnerID:   subAccount.ID,
		Value:     decimal.NewFromInt(100),
	}).Error

	require.ErrorIs(suite.T(), err, models.ErrActualOnTemplate)
}

func (suite *TestSuiteStandard) TestActualBudgetFilledFromOwner() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})
	subAccount := suite.createTestSubAccount(models.SubAccount{
		Parent: models.AccountParent(account.ID),
	})

	actual := suite.createTestActual(models.Actual{
		OwnerType: models.OwnerTypeSubAccount,
		OwnerID:   subAccount.ID,
		Value:     decimal.NewFromInt(100),
	})

	assert.Equal(suite.T(), budget.ID, actual.BudgetID)
}

func (suite *TestSuiteStandard) TestActualOwnerCheckedOnUpdate() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})
	subAccount := suite.createTestSubAccount(models.SubAccount{
		Parent: models.AccountParent(account.ID),
	})

	actual := suite.createTestActual(models.Actual{
		OwnerType: models.OwnerTypeSubAccount,
		OwnerID:   subAccount.ID,
	})

	err := models.DB.Model(&actual).Select("OwnerID").Updates(models.Actual{OwnerID: uuid.New()}).Error
	require.Error(suite.T(), err)
}

func (suite *TestSuiteStandard) TestActualMoveToTemplateOwnerRejected() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})
	subAccount := suite.createTestSubAccount(models.SubAccount{
		Parent: models.AccountParent(account.ID),
	})

	template := suite.createTestBudget(models.Budget{Domain: models.DomainTemplate})
	templateAccount := suite.createTestAccount(models.Account{BudgetID: template.ID})
	templateSubAccount := suite.createTestSubAccount(models.SubAccount{
		Parent: models.AccountParent(templateAccount.ID),
	})

	actual := suite.createTestActual(models.Actual{
		OwnerType: models.OwnerTypeSubAccount,
		OwnerID:   subAccount.ID,
	})

	err := models.DB.Model(&actual).Select("OwnerID").Updates(models.Actual{OwnerID: templateSubAccount.ID}).Error
	require.ErrorIs(suite.T(), err, models.ErrActualOnTemplate)
}
