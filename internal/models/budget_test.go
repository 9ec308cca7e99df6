package models_test

import (
	"strings"

	"github.com/happybudget/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *TestSuiteStandard) TestBudgetTrimWhitespace() {
	budget := suite.createTestBudget(models.Budget{Name: "  Feature Film \t"})
	assert.Equal(suite.T(), "Feature Film", budget.Name)
}

func (suite *TestSuiteStandard) TestBudgetNameRequired() {
	err := models.DB.Create(&models.Budget{Name: "   ", Domain: models.DomainBudget}).Error
	require.ErrorIs(suite.T(), err, models.ErrBudgetNameMissing)
}

func (suite *TestSuiteStandard) TestBudgetDomainValidated() {
	err := models.DB.Create(&models.Budget{Name: "No domain"}).Error
	require.ErrorIs(suite.T(), err, models.ErrInvalidDomain)

	err = models.DB.Create(&models.Budget{Name: "Wrong domain", Domain: "show"}).Error
	require.ErrorIs(suite.T(), err, models.ErrInvalidDomain)
}

func (suite *TestSuiteStandard) TestBudgetCurrencyValidated() {
	err := models.DB.Create(&models.Budget{Name: "Monopoly", Domain: models.DomainBudget, Currency: "FUN"}).Error
	require.ErrorIs(suite.T(), err, models.ErrBudgetInvalidCurrency)

	budget := suite.createTestBudget(models.Budget{Currency: "USD"})
	assert.Equal(suite.T(), "USD", budget.Currency)

	// An empty currency means unset, which is fine
	_ = suite.createTestBudget(models.Budget{})
}

func (suite *TestSuiteStandard) TestBudgetCommunityOnlyForTemplates() {
	err := models.DB.Create(&models.Budget{Name: "Shared", Domain: models.DomainBudget, Community: true}).Error
	require.ErrorIs(suite.T(), err, models.ErrCommunityOnBudget)

	template := suite.createTestBudget(models.Budget{Domain: models.DomainTemplate, Community: true})
	assert.True(suite.T(), template.Community)
}

func (suite *TestSuiteStandard) TestBudgetAccounts() {
	budget := suite.createTestBudget(models.Budget{})
	_ = suite.createTestAccount(models.Account{BudgetID: budget.ID})
	_ = suite.createTestAccount(models.Account{BudgetID: budget.ID})

	// A second budget's account must not show up
	other := suite.createTestBudget(models.Budget{})
	_ = suite.createTestAccount(models.Account{BudgetID: other.ID})

	accounts, err := budget.Accounts(models.DB)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), accounts, 2)
}

func (suite *TestSuiteStandard) TestBudgetNotFoundError() {
	var budget models.Budget
	err := models.DB.First(&budget, "name = ?", "does not exist").Error

	require.Error(suite.T(), err)
	assert.True(suite.T(), strings.Contains(err.Error(), "there is no"), "unexpected error: %s", err)
}
