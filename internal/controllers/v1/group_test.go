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

func (suite *TestSuiteStandard) TestCreateBudgetGroups() {
	budget := suite.createTestBudget(v1.BudgetEditable{Name: "Feature Film"})
	suite.Require().NotNil(budget.Data)

	accounts := suite.createTestAccounts(budget.Data.ID, []bulk.AccountPayload{
		{Identifier: "1000"}, {Identifier: "2000"},
	})

	r := test.Request(suite.T(), http.MethodPost, budget.Data.Links.Groups, []bulk.GroupPayload{
		{Name: "Pre-production", Color: "#a1887f", MemberIDs: []uuid.UUID{accounts[0].ID, accounts[1].ID}},
	}, suite.userHeader())
	test.AssertHTTPStatus(suite.T(), http.StatusCreated, &r)

	var response v1.GroupListResponse
	suite.decodeResponse(&r, &response)
	suite.Require().Len(response.Data, 1)
	assert.Equal(suite.T(), models.ParentTypeBudget, response.Data[0].ParentType)
	assert.Len(suite.T(), response.Data[0].MemberIDs, 2)

	// Members point back at the group
	reread := suite.getAccount(accounts[0].ID)
	suite.Require().NotNil(reread.GroupID)
	assert.Equal(suite.T(), response.Data[0].ID, *reread.GroupID)
}

func (suite *TestSuiteStandard) TestCreateGroupsNonSiblingMember() {
	budget := suite.createTestBudget(v1.BudgetEditable{Name: "Feature Film"})
	other := suite.createTestBudget(v1.BudgetEditable{Name: "Other Production"})
	suite.Require().NotNil(budget.Data)
	suite.Require().NotNil(other.Data)

	foreign := suite.createTestAccounts(other.Data.ID, []bulk.AccountPayload{{Identifier: "1000"}})[0]

	r := test.Request(suite.T(), http.MethodPost, budget.Data.Links.Groups, []bulk.GroupPayload{
		{Name: "Pre-production", MemberIDs: []uuid.UUID{foreign.ID}},
	}, suite.userHeader())
	test.AssertHTTPStatus(suite.T(), http.StatusBadRequest, &r)
}

func (suite *TestSuiteStandard) TestGetBudgetGroups() {
	budget := suite.createTestBudget(v1.BudgetEditable{Name: "Feature Film"})
	suite.Require().NotNil(budget.Data)

	account := suite.createTestAccounts(budget.Data.ID, []bulk.AccountPayload{{Identifier: "1000"}})[0]

	cr := test.Request(suite.T(), http.MethodPost, budget.Data.Links.Groups, []bulk.GroupPayload{
		{Name: "Pre-production", MemberIDs: []uuid.UUID{account.ID}},
	}, suite.userHeader())
	test.AssertHTTPStatus(suite.T(), http.StatusCreated, &cr)

	r := test.Request(suite.T(), http.MethodGet, budget.Data.Links.Groups, nil)
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	var response v1.GroupListResponse
	suite.decodeResponse(&r, &response)
	suite.Require().Len(response.Data, 1)
	assert.Equal(suite.T(), "Pre-production", response.Data[0].Name)
}

func (suite *TestSuiteStandard) TestUpdateBudgetGroups() {
	budget := suite.createTestBudget(v1.BudgetEditable{Name: "Feature Film"})
	suite.Require().NotNil(budget.Data)

	accounts := suite.createTestAccounts(budget.Data.ID, []bulk.AccountPayload{
		{Identifier: "1000"}, {Identifier: "2000"},
	})

	cr := test.Request(suite.T(), http.MethodPost, budget.Data.Links.Groups, []bulk.GroupPayload{
		{Name: "Pre-production", MemberIDs: []uuid.UUID{accounts[0].ID}},
	}, suite.userHeader())
	test.AssertHTTPStatus(suite.T(), http.StatusCreated, &cr)

	var created v1.GroupListResponse
	suite.decodeResponse(&cr, &created)
	suite.Require().Len(created.Data, 1)

	name := "Production"
	members := []uuid.UUID{accounts[1].ID}
	r := test.Request(suite.T(), http.MethodPatch, budget.Data.Links.Groups, []bulk.GroupChange{
		{ID: created.Data[0].ID, Name: &name, MemberIDs: &members},
	}, suite.userHeader())
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	var response v1.GroupListResponse
	suite.decodeResponse(&r, &response)
	suite.Require().Len(response.Data, 1)
	assert.Equal(suite.T(), name, response.Data[0].Name)
	assert.Equal(suite.T(), members, response.Data[0].MemberIDs)

	// The replaced member was detached
	reread := suite.getAccount(accounts[0].ID)
	assert.Nil(suite.T(), reread.GroupID)
}

func (suite *TestSuiteStandard) TestDeleteBudgetGroupsKeepsMembers() {
	budget := suite.createTestBudget(v1.BudgetEditable{Name: "Feature Film"})
	suite.Require().NotNil(budget.Data)

	account := suite.createTestAccounts(budget.Data.ID, []bulk.AccountPayload{{Identifier: "1000"}})[0]

	cr := test.Request(suite.T(), http.MethodPost, budget.Data.Links.Groups, []bulk.GroupPayload{
		{Name: "Pre-production", MemberIDs: []uuid.UUID{account.ID}},
	}, suite.userHeader())
	test.AssertHTTPStatus(suite.T(), http.StatusCreated, &cr)

	var created v1.GroupListResponse
	suite.decodeResponse(&cr, &created)
	suite.Require().Len(created.Data, 1)

	r := test.Request(suite.T(), http.MethodDelete, budget.Data.Links.Groups, v1.DeleteRequest{
		IDs: []uuid.UUID{created.Data[0].ID},
	}, suite.userHeader())
	test.AssertHTTPStatus(suite.T(), http.StatusNoContent, &r)

	// Deleting a group only removes the label
	reread := suite.getAccount(account.ID)
	assert.Nil(suite.T(), reread.GroupID)
}

func (suite *TestSuiteStandard) TestSubAccountLevelGroups() {
	budget := suite.createTestBudget(v1.BudgetEditable{Name: "Feature Film"})
	suite.Require().NotNil(budget.Data)

	account := suite.createTestAccounts(budget.Data.ID, []bulk.AccountPayload{{Identifier: "1000"}})[0]
	subAccount := suite.createTestSubAccounts(accountPath(account.ID), []bulk.SubAccountPayload{
		{Identifier: "1001"},
	})[0]

	r := test.Request(suite.T(), http.MethodPost, accountPath(account.ID)+"/groups", []bulk.GroupPayload{
		{Name: "Crew", MemberIDs: []uuid.UUID{subAccount.ID}},
	}, suite.userHeader())
	test.AssertHTTPStatus(suite.T(), http.StatusCreated, &r)

	var response v1.GroupListResponse
	suite.decodeResponse(&r, &response)
	suite.Require().Len(response.Data, 1)
	assert.Equal(suite.T(), models.ParentTypeAccount, response.Data[0].ParentType)

	reread := suite.getSubAccount(subAccount.ID)
	suite.Require().NotNil(reread.GroupID)
	assert.Equal(suite.T(), response.Data[0].ID, *reread.GroupID)
}
