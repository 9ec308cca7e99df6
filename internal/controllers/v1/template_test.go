package v1_test

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/bulk"
	v1 "github.com/happybudget/backend/internal/controllers/v1"
	"github.com/happybudget/backend/internal/models"
	"github.com/happybudget/backend/internal/test"
	"github.com/stretchr/testify/assert"
)

func templatePath(id uuid.UUID) string {
	return "http://example.com/v1/templates/" + id.String()
}

func (suite *TestSuiteStandard) TestCreateTemplates() {
	// The domain in the body is overridden, templates always live in the
	// template domain
	r := test.Request(suite.T(), http.MethodPost, "http://example.com/v1/templates", []v1.BudgetEditable{
		{Name: "Starter", Domain: models.DomainBudget},
	}, suite.userHeader())
	test.AssertHTTPStatus(suite.T(), http.StatusCreated, &r)

	var response v1.BudgetCreateResponse
	suite.decodeResponse(&r, &response)
	suite.Require().Len(response.Data, 1)
	suite.Require().NotNil(response.Data[0].Data)
	assert.Equal(suite.T(), models.DomainTemplate, response.Data[0].Data.Domain)
}

func (suite *TestSuiteStandard) TestGetTemplates() {
	_ = suite.createTestBudget(v1.BudgetEditable{Name: "Feature Film"})
	_ = suite.createTestBudget(v1.BudgetEditable{Name: "Starter", Domain: models.DomainTemplate})
	_ = suite.createTestBudget(v1.BudgetEditable{Name: "Music Video", Domain: models.DomainTemplate})

	r := test.Request(suite.T(), http.MethodGet, "http://example.com/v1/templates", nil)
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	var response v1.BudgetListResponse
	suite.decodeResponse(&r, &response)
	suite.Require().Len(response.Data, 2)

	for _, template := range response.Data {
		assert.Equal(suite.T(), models.DomainTemplate, template.Domain)
	}
}

func (suite *TestSuiteStandard) TestGetTemplatesNameGlob() {
	_ = suite.createTestBudget(v1.BudgetEditable{Name: "Starter", Domain: models.DomainTemplate})
	_ = suite.createTestBudget(v1.BudgetEditable{Name: "Music Video", Domain: models.DomainTemplate})

	r := test.Request(suite.T(), http.MethodGet, "http://example.com/v1/templates?name=Music*", nil)
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	var response v1.BudgetListResponse
	suite.decodeResponse(&r, &response)
	suite.Require().Len(response.Data, 1)
	assert.Equal(suite.T(), "Music Video", response.Data[0].Name)
}

func (suite *TestSuiteStandard) TestGetTemplate() {
	template := suite.createTestBudget(v1.BudgetEditable{Name: "Starter", Domain: models.DomainTemplate})
	suite.Require().NotNil(template.Data)

	r := test.Request(suite.T(), http.MethodGet, templatePath(template.Data.ID), nil)
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	// A budget-domain row is not reachable through the template endpoints
	budget := suite.createTestBudget(v1.BudgetEditable{Name: "Feature Film"})
	suite.Require().NotNil(budget.Data)

	r = test.Request(suite.T(), http.MethodGet, templatePath(budget.Data.ID), nil)
	test.AssertHTTPStatus(suite.T(), http.StatusNotFound, &r)
}

func (suite *TestSuiteStandard) TestOptionsTemplateList() {
	r := test.Request(suite.T(), http.MethodOptions, "http://example.com/v1/templates", nil)
	test.AssertHTTPStatus(suite.T(), http.StatusNoContent, &r)
	assert.Equal(suite.T(), "GET, POST", r.Header().Get("allow"))
}

func (suite *TestSuiteStandard) TestDeriveTemplate() {
	template := suite.createTestBudget(v1.BudgetEditable{Name: "Starter", Domain: models.DomainTemplate})
	suite.Require().NotNil(template.Data)

	account := suite.createTestAccounts(template.Data.ID, []bulk.AccountPayload{{Identifier: "1000"}})[0]
	_ = suite.createTestSubAccounts(accountPath(account.ID), []bulk.SubAccountPayload{
		{Identifier: "1001", Quantity: decimalPtr(2), Rate: decimalPtr(500)},
	})

	r := test.Request(suite.T(), http.MethodPost, templatePath(template.Data.ID)+"/derive", v1.DeriveRequest{
		Name: "Pilot Shoot",
	}, suite.userHeader())
	test.AssertHTTPStatus(suite.T(), http.StatusCreated, &r)

	var response v1.BudgetResponse
	suite.decodeResponse(&r, &response)
	suite.Require().NotNil(response.Data)

	assert.Equal(suite.T(), models.DomainBudget, response.Data.Domain)
	assert.Equal(suite.T(), "Pilot Shoot", response.Data.Name)
	assert.NotEqual(suite.T(), template.Data.ID, response.Data.ID)

	// The derived tree flipped domains all the way down
	lr := test.Request(suite.T(), http.MethodGet, response.Data.Links.Accounts, nil)
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &lr)

	var accounts v1.AccountListResponse
	suite.decodeResponse(&lr, &accounts)
	suite.Require().Len(accounts.Data, 1)
	assert.Equal(suite.T(), models.DomainBudget, accounts.Data[0].Domain)
}

func (suite *TestSuiteStandard) TestDeriveTemplateWithoutBody() {
	template := suite.createTestBudget(v1.BudgetEditable{Name: "Starter", Domain: models.DomainTemplate})
	suite.Require().NotNil(template.Data)

	r := test.Request(suite.T(), http.MethodPost, templatePath(template.Data.ID)+"/derive", nil, suite.userHeader())
	test.AssertHTTPStatus(suite.T(), http.StatusCreated, &r)

	var response v1.BudgetResponse
	suite.decodeResponse(&r, &response)
	suite.Require().NotNil(response.Data)
	assert.Equal(suite.T(), "Starter", response.Data.Name)
}

func (suite *TestSuiteStandard) TestDeriveFromBudgetFails() {
	budget := suite.createTestBudget(v1.BudgetEditable{Name: "Feature Film"})
	suite.Require().NotNil(budget.Data)

	r := test.Request(suite.T(), http.MethodPost, templatePath(budget.Data.ID)+"/derive", nil, suite.userHeader())
	test.AssertHTTPStatus(suite.T(), http.StatusBadRequest, &r)

	var response v1.BudgetResponse
	suite.decodeResponse(&r, &response)
	suite.Require().NotNil(response.Error)
	assert.Contains(suite.T(), *response.Error, "template")
}

func (suite *TestSuiteStandard) TestDeriveTemplateRequiresUser() {
	template := suite.createTestBudget(v1.BudgetEditable{Name: "Starter", Domain: models.DomainTemplate})
	suite.Require().NotNil(template.Data)

	r := test.Request(suite.T(), http.MethodPost, templatePath(template.Data.ID)+"/derive", nil)
	test.AssertHTTPStatus(suite.T(), http.StatusUnauthorized, &r)
}
