package v1_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	v1 "github.com/happybudget/backend/internal/controllers/v1"
	"github.com/happybudget/backend/internal/test"
	"github.com/stretchr/testify/assert"
)

func (suite *TestSuiteStandard) createTestAPIUser(editable v1.UserEditable) v1.UserResponse {
	r := test.Request(suite.T(), http.MethodPost, "http://example.com/v1/users", []v1.UserEditable{editable})
	test.AssertHTTPStatus(suite.T(), http.StatusCreated, &r)

	var response v1.UserCreateResponse
	suite.decodeResponse(&r, &response)
	suite.Require().Len(response.Data, 1)

	return response.Data[0]
}

func (suite *TestSuiteStandard) TestCreateUsers() {
	user := suite.createTestAPIUser(v1.UserEditable{
		Email:     "Annie@Example.com",
		FirstName: "Annie",
		LastName:  "Hall",
	})
	suite.Require().NotNil(user.Data)

	// Emails are normalized on save
	assert.Equal(suite.T(), "annie@example.com", user.Data.Email)
	assert.Equal(suite.T(), "Annie Hall", user.Data.FullName)
	assert.Contains(suite.T(), user.Data.Links.Self, user.Data.ID.String())
}

func (suite *TestSuiteStandard) TestCreateUsersWithoutEmail() {
	r := test.Request(suite.T(), http.MethodPost, "http://example.com/v1/users", []v1.UserEditable{
		{FirstName: "No", LastName: "Email"},
	})
	test.AssertHTTPStatus(suite.T(), http.StatusBadRequest, &r)

	var response v1.UserCreateResponse
	suite.decodeResponse(&r, &response)
	suite.Require().Len(response.Data, 1)
	suite.Require().NotNil(response.Data[0].Error)
	assert.Contains(suite.T(), *response.Data[0].Error, "email")
}

func (suite *TestSuiteStandard) TestGetUsers() {
	_ = suite.createTestAPIUser(v1.UserEditable{Email: "annie@example.com", FirstName: "Annie", LastName: "Hall"})
	_ = suite.createTestAPIUser(v1.UserEditable{Email: "bob@example.com", FirstName: "Bob"})

	// The suite's acting user exists as well
	r := test.Request(suite.T(), http.MethodGet, "http://example.com/v1/users", nil)
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	var response v1.UserListResponse
	suite.decodeResponse(&r, &response)
	assert.Len(suite.T(), response.Data, 3)

	r = test.Request(suite.T(), http.MethodGet, "http://example.com/v1/users?email=annie@example.com", nil)
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)
	suite.decodeResponse(&r, &response)
	suite.Require().Len(response.Data, 1)
	assert.Equal(suite.T(), "annie@example.com", response.Data[0].Email)

	r = test.Request(suite.T(), http.MethodGet, "http://example.com/v1/users?search=hall", nil)
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)
	suite.decodeResponse(&r, &response)
	suite.Require().Len(response.Data, 1)
	assert.Equal(suite.T(), "Annie Hall", response.Data[0].FullName)
}

func (suite *TestSuiteStandard) TestGetUser() {
	user := suite.createTestAPIUser(v1.UserEditable{Email: "annie@example.com"})
	suite.Require().NotNil(user.Data)

	tests := []struct {
		name     string
		path     string
		response int
	}{
		{"Existing user", user.Data.Links.Self, http.StatusOK},
		{"Unknown user", "http://example.com/v1/users/" + uuid.NewString(), http.StatusNotFound},
		{"Invalid UUID", "http://example.com/v1/users/NotAUUID", http.StatusBadRequest},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			r := test.Request(t, http.MethodGet, tt.path, nil)
			test.AssertHTTPStatus(t, tt.response, &r)
		})
	}
}

func (suite *TestSuiteStandard) TestUpdateUser() {
	user := suite.createTestAPIUser(v1.UserEditable{Email: "annie@example.com", FirstName: "Annie"})
	suite.Require().NotNil(user.Data)

	lastName := "Hall"
	r := test.Request(suite.T(), http.MethodPatch, user.Data.Links.Self, v1.UserUpdate{LastName: &lastName})
	test.AssertHTTPStatus(suite.T(), http.StatusOK, &r)

	var response v1.UserResponse
	suite.decodeResponse(&r, &response)
	suite.Require().NotNil(response.Data)
	assert.Equal(suite.T(), "Annie Hall", response.Data.FullName)

	// Untouched fields stay as they are
	assert.Equal(suite.T(), "annie@example.com", response.Data.Email)
}

func (suite *TestSuiteStandard) TestOptionsUsers() {
	r := test.Request(suite.T(), http.MethodOptions, "http://example.com/v1/users", nil)
	test.AssertHTTPStatus(suite.T(), http.StatusNoContent, &r)
	assert.Equal(suite.T(), "GET, POST", r.Header().Get("allow"))

	user := suite.createTestAPIUser(v1.UserEditable{Email: "annie@example.com"})
	suite.Require().NotNil(user.Data)

	r = test.Request(suite.T(), http.MethodOptions, user.Data.Links.Self, nil)
	test.AssertHTTPStatus(suite.T(), http.StatusNoContent, &r)
	assert.Equal(suite.T(), "GET, PATCH", r.Header().Get("allow"))

	r = test.Request(suite.T(), http.MethodOptions, "http://example.com/v1/users/"+uuid.NewString(), nil)
	test.AssertHTTPStatus(suite.T(), http.StatusNotFound, &r)
}
