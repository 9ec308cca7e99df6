package models_test

import (
	"github.com/happybudget/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *TestSuiteStandard) TestUserEmailRequired() {
	err := models.DB.Create(&models.User{FirstName: "Jesse"}).Error
	require.ErrorIs(suite.T(), err, models.ErrUserEmailMissing)
}

func (suite *TestSuiteStandard) TestUserEmailNormalized() {
	user := suite.createTestUser(models.User{Email: "  Jesse@Example.COM "})
	assert.Equal(suite.T(), "jesse@example.com", user.Email)
}

func (suite *TestSuiteStandard) TestUserEmailUnique() {
	_ = suite.createTestUser(models.User{Email: "one@example.com"})

	err := models.DB.Create(&models.User{Email: "one@example.com"}).Error
	require.Error(suite.T(), err)
}

func (suite *TestSuiteStandard) TestUserFullName() {
	assert.Equal(suite.T(), "Jesse Pinkman", models.User{FirstName: "Jesse", LastName: "Pinkman"}.FullName())
	assert.Equal(suite.T(), "Jesse", models.User{FirstName: "Jesse"}.FullName())
	assert.Equal(suite.T(), "Pinkman", models.User{LastName: "Pinkman"}.FullName())
	assert.Equal(suite.T(), "", models.User{}.FullName())
}
