package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/bulk"
	"github.com/happybudget/backend/internal/httputil"
	"github.com/happybudget/backend/internal/models"
	"github.com/ryanuber/go-glob"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// RegisterAccountRoutes registers the routes for accounts with the
// RouterGroup that is passed.
func RegisterAccountRoutes(r *gin.RouterGroup) {
	// Account with ID
	{
		r.OPTIONS("/:id", OptionsAccountDetail)
		r.GET("/:id", GetAccount)
	}

	// Child collections
	{
		r.OPTIONS("/:id/subaccounts", OptionsSubAccountCollection)
		r.GET("/:id/subaccounts", GetAccountSubAccounts)
		r.POST("/:id/subaccounts", CreateAccountSubAccounts)
		r.PATCH("/:id/subaccounts", UpdateAccountSubAccounts)
		r.DELETE("/:id/subaccounts", DeleteAccountSubAccounts)

		r.OPTIONS("/:id/markups", OptionsMarkupCollection)
		r.GET("/:id/markups", GetAccountMarkups)
		r.POST("/:id/markups", CreateAccountMarkups)
		r.PATCH("/:id/markups", UpdateAccountMarkups)
		r.DELETE("/:id/markups", DeleteAccountMarkups)

		r.OPTIONS("/:id/groups", OptionsGroupCollection)
		r.GET("/:id/groups", GetAccountGroups)
		r.POST("/:id/groups", CreateAccountGroups)
		r.PATCH("/:id/groups", UpdateAccountGroups)
		r.DELETE("/:id/groups", DeleteAccountGroups)
	}
}

type AccountComputed struct {
	NominalValue                  decimal.Decimal `json:"nominalValue" example:"5000"`                 // Sum of the nominal values of the subaccount tree
	AccumulatedFringeContribution decimal.Decimal `json:"accumulatedFringeContribution" example:"250"` // Sum of the fringe contributions in the subtree
	MarkupContribution            decimal.Decimal `json:"markupContribution" example:"500"`            // Contribution of percent markups naming this account
	AccumulatedMarkupContribution decimal.Decimal `json:"accumulatedMarkupContribution" example:"700"` // Sum of the markup contributions in the subtree
	Actual                        decimal.Decimal `json:"actual" example:"1200"`                       // Sum of the actuals in the subtree
}

type AccountLinks struct {
	Self        string `json:"self" example:"https://example.com/api/v1/accounts/af892e10-7e0a-4fb8-b1bc-4b6d88401ed2"`
	Budget      string `json:"budget" example:"https://example.com/api/v1/budgets/550dc009-cea6-4c12-b2a5-03446eb7b7cf"`
	SubAccounts string `json:"subaccounts" example:"https://example.com/api/v1/accounts/af892e10-7e0a-4fb8-b1bc-4b6d88401ed2/subaccounts"`
	Markups     string `json:"markups" example:"https://example.com/api/v1/accounts/af892e10-7e0a-4fb8-b1bc-4b6d88401ed2/markups"`
	Groups      string `json:"groups" example:"https://example.com/api/v1/accounts/af892e10-7e0a-4fb8-b1bc-4b6d88401ed2/groups"`
}

// Account is the API v1 representation of an account.
type Account struct {
	models.DefaultModel
	BudgetID    uuid.UUID       `json:"budgetId" example:"550dc009-cea6-4c12-b2a5-03446eb7b7cf"` // ID of the budget
	Domain      models.Domain   `json:"domain" example:"budget"`                                 // Domain of the tree the account lives in
	Identifier  string          `json:"identifier" example:"1000"`                               // Short identifier, usually a line number
	Description string          `json:"description" example:"Above the line"`                    // A longer description
	GroupID     *uuid.UUID      `json:"groupId"`                                                 // ID of the group the account is labeled with
	Computed    AccountComputed `json:"computed"`                                                // Derived values, read only
	Links       AccountLinks    `json:"links"`
}

func newAccount(c *gin.Context, model models.Account) Account {
	url := httputil.RequestPathV1(c)

	return Account{
		DefaultModel: model.DefaultModel,
		BudgetID:     model.BudgetID,
		Domain:       model.Domain,
		Identifier:   model.Identifier,
		Description:  model.Description,
		GroupID:      model.GroupID,
		Computed: AccountComputed{
			NominalValue:                  model.NominalValue(),
			AccumulatedFringeContribution: model.AccumulatedFringeContribution,
			MarkupContribution:            model.MarkupContribution,
			AccumulatedMarkupContribution: model.AccumulatedMarkupContribution,
			Actual:                        model.Actual,
		},
		Links: AccountLinks{
			Self:        fmt.Sprintf("%s/accounts/%s", url, model.ID),
			Budget:      fmt.Sprintf("%s/budgets/%s", url, model.BudgetID),
			SubAccounts: fmt.Sprintf("%s/accounts/%s/subaccounts", url, model.ID),
			Markups:     fmt.Sprintf("%s/accounts/%s/markups", url, model.ID),
			Groups:      fmt.Sprintf("%s/accounts/%s/groups", url, model.ID),
		},
	}
}

type AccountListResponse struct {
	Data       []Account   `json:"data"`                                                          // List of accounts
	Error      *string     `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Pagination *Pagination `json:"pagination"`                                                    // Pagination information
}

type AccountResponse struct {
	Data  *Account `json:"data"`                                                          // Data for the account
	Error *string  `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

type AccountQueryFilter struct {
	Identifier string `form:"identifier" filterField:"false"` // Glob pattern for the identifier
	Search     string `form:"search" filterField:"false"`     // Search for this text in identifier and description
	Offset     uint   `form:"offset" filterField:"false"`     // The offset of the first account returned. Defaults to 0.
	Limit      int    `form:"limit" filterField:"false"`      // Maximum number of accounts to return. Defaults to 50.
}

// DeleteRequest carries the ids for a bulk delete.
type DeleteRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required"` // IDs of the resources to delete
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Accounts
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/accounts/{id} [options]
func OptionsAccountDetail(c *gin.Context) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	var account models.Account
	if err := models.DB.First(&account, "id = ?", uri.ID.UUID).Error; err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	httputil.OptionsGet(c)
}

// @Summary		Get account
// @Description	Returns a specific account
// @Tags			Accounts
// @Produce		json
// @Success		200	{object}	AccountResponse
// @Failure		400	{object}	AccountResponse
// @Failure		404	{object}	AccountResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/accounts/{id} [get]
func GetAccount(c *gin.Context) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		e := err.Error()
		c.JSON(status(err), AccountResponse{Error: &e})
		return
	}

	var account models.Account
	err := models.DB.First(&account, "id = ?", uri.ID.UUID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), AccountResponse{Error: &e})
		return
	}

	data := newAccount(c, account)
	c.JSON(http.StatusOK, AccountResponse{Data: &data})
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Accounts
// @Success		204
// @Router			/v1/budgets/{id}/accounts [options]
func OptionsBudgetAccounts(c *gin.Context) {
	httputil.OptionsGetPostPatchDelete(c)
}

// @Summary		List accounts
// @Description	Returns the accounts of a budget
// @Tags			Accounts
// @Produce		json
// @Success		200	{object}	AccountListResponse
// @Failure		400	{object}	AccountListResponse
// @Failure		404	{object}	AccountListResponse
// @Param			id			path	URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			identifier	query	string	false	"Glob pattern for the identifier"
// @Param			search		query	string	false	"Search in identifier and description"
// @Param			offset		query	uint	false	"The offset of the first account returned. Defaults to 0."
// @Param			limit		query	int		false	"Maximum number of accounts to return. Defaults to 50."
// @Router			/v1/budgets/{id}/accounts [get]
func GetBudgetAccounts(c *gin.Context) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		e := err.Error()
		c.JSON(status(err), AccountListResponse{Error: &e})
		return
	}

	var budget models.Budget
	err := models.DB.First(&budget, "id = ?", uri.ID.UUID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), AccountListResponse{Error: &e})
		return
	}

	var filter AccountQueryFilter
	_ = c.Bind(&filter)
	_, setFields := httputil.GetURLFields(c.Request.URL, filter)

	accounts, err := budget.Accounts(models.DB)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), AccountListResponse{Error: &e})
		return
	}

	if slices.Contains(setFields, "Identifier") {
		accounts = slices.DeleteFunc(accounts, func(a models.Account) bool {
			return !glob.Glob(filter.Identifier, a.Identifier)
		})
	}
	if filter.Search != "" {
		accounts = slices.DeleteFunc(accounts, func(a models.Account) bool {
			return !contains(a.Identifier, filter.Search) && !contains(a.Description, filter.Search)
		})
	}

	total := int64(len(accounts))
	accounts = paginate(accounts, filter.Offset, filter.Limit, slices.Contains(setFields, "Limit"))

	apiResources := make([]Account, 0)
	for _, account := range accounts {
		apiResources = append(apiResources, newAccount(c, account))
	}

	c.JSON(http.StatusOK, AccountListResponse{
		Data: apiResources,
		Pagination: &Pagination{
			Count:  len(apiResources),
			Total:  total,
			Offset: filter.Offset,
			Limit:  limitOrDefault(filter.Limit, slices.Contains(setFields, "Limit")),
		},
	})
}

// @Summary		Create accounts
// @Description	Creates new accounts under the budget in one transaction
// @Tags			Accounts
// @Accept			json
// @Produce		json
// @Success		201			{object}	AccountListResponse
// @Failure		400			{object}	AccountListResponse
// @Failure		404			{object}	AccountListResponse
// @Param			id			path		URIID					true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			accounts	body		[]bulk.AccountPayload	true	"Accounts"
// @Router			/v1/budgets/{id}/accounts [post]
func CreateBudgetAccounts(c *gin.Context) {
	userID, uri, payloads, ok := bindBulk[bulk.AccountPayload](c)
	if !ok {
		return
	}

	created, err := service().AddAccounts(uri.ID.UUID, userID, payloads)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), AccountListResponse{Error: &e})
		return
	}

	c.JSON(http.StatusCreated, AccountListResponse{Data: accountResources(c, created)})
}

// @Summary		Update accounts
// @Description	Updates accounts of the budget in one transaction
// @Tags			Accounts
// @Accept			json
// @Produce		json
// @Success		200			{object}	AccountListResponse
// @Failure		400			{object}	AccountListResponse
// @Failure		404			{object}	AccountListResponse
// @Param			id			path		URIID					true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			accounts	body		[]bulk.AccountChange	true	"Changes"
// @Router			/v1/budgets/{id}/accounts [patch]
func UpdateBudgetAccounts(c *gin.Context) {
	userID, uri, changes, ok := bindBulk[bulk.AccountChange](c)
	if !ok {
		return
	}

	updated, err := service().UpdateAccounts(uri.ID.UUID, userID, changes)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), AccountListResponse{Error: &e})
		return
	}

	c.JSON(http.StatusOK, AccountListResponse{Data: accountResources(c, updated)})
}

// @Summary		Delete accounts
// @Description	Deletes accounts and their subtrees in one transaction
// @Tags			Accounts
// @Accept			json
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID			true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			ids	body		DeleteRequest	true	"IDs to delete"
// @Router			/v1/budgets/{id}/accounts [delete]
func DeleteBudgetAccounts(c *gin.Context) {
	userID, uri, request, ok := bindBulkDelete(c)
	if !ok {
		return
	}

	if err := service().DeleteAccounts(uri.ID.UUID, userID, request.IDs); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

func accountResources(c *gin.Context, accounts []models.Account) []Account {
	apiResources := make([]Account, 0, len(accounts))
	for _, account := range accounts {
		apiResources = append(apiResources, newAccount(c, account))
	}

	return apiResources
}
