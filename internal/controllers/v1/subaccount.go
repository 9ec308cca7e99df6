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

// RegisterSubAccountRoutes registers the routes for subaccounts with the
// RouterGroup that is passed.
func RegisterSubAccountRoutes(r *gin.RouterGroup) {
	// SubAccount with ID
	{
		r.OPTIONS("/:id", OptionsSubAccountDetail)
		r.GET("/:id", GetSubAccount)
	}

	// Child collections. Subaccounts nest recursively.
	{
		r.OPTIONS("/:id/subaccounts", OptionsSubAccountCollection)
		r.GET("/:id/subaccounts", GetSubAccountSubAccounts)
		r.POST("/:id/subaccounts", CreateSubAccountSubAccounts)
		r.PATCH("/:id/subaccounts", UpdateSubAccountSubAccounts)
		r.DELETE("/:id/subaccounts", DeleteSubAccountSubAccounts)

		r.OPTIONS("/:id/markups", OptionsMarkupCollection)
		r.GET("/:id/markups", GetSubAccountMarkups)
		r.POST("/:id/markups", CreateSubAccountMarkups)
		r.PATCH("/:id/markups", UpdateSubAccountMarkups)
		r.DELETE("/:id/markups", DeleteSubAccountMarkups)

		r.OPTIONS("/:id/groups", OptionsGroupCollection)
		r.GET("/:id/groups", GetSubAccountGroups)
		r.POST("/:id/groups", CreateSubAccountGroups)
		r.PATCH("/:id/groups", UpdateSubAccountGroups)
		r.DELETE("/:id/groups", DeleteSubAccountGroups)
	}
}

type SubAccountComputed struct {
	NominalValue                  decimal.Decimal `json:"nominalValue" example:"1500"`                 // Own value of the node
	AccumulatedValue              decimal.Decimal `json:"accumulatedValue" example:"1500"`             // Sum of the children's realized values
	FringeContribution            decimal.Decimal `json:"fringeContribution" example:"75"`             // Contribution of the assigned fringes
	AccumulatedFringeContribution decimal.Decimal `json:"accumulatedFringeContribution" example:"75"`  // Fringe contributions of the subtree
	MarkupContribution            decimal.Decimal `json:"markupContribution" example:"150"`            // Contribution of percent markups naming this node
	AccumulatedMarkupContribution decimal.Decimal `json:"accumulatedMarkupContribution" example:"150"` // Markup contributions of the subtree
	Actual                        decimal.Decimal `json:"actual" example:"900"`                        // Sum of the actuals of the subtree
}

type SubAccountLinks struct {
	Self        string `json:"self" example:"https://example.com/api/v1/subaccounts/a2a02035-23e4-4f1a-9abf-a15d2a615ffe"`
	SubAccounts string `json:"subaccounts" example:"https://example.com/api/v1/subaccounts/a2a02035-23e4-4f1a-9abf-a15d2a615ffe/subaccounts"`
	Markups     string `json:"markups" example:"https://example.com/api/v1/subaccounts/a2a02035-23e4-4f1a-9abf-a15d2a615ffe/markups"`
	Groups      string `json:"groups" example:"https://example.com/api/v1/subaccounts/a2a02035-23e4-4f1a-9abf-a15d2a615ffe/groups"`
}

// SubAccount is the API v1 representation of a subaccount.
type SubAccount struct {
	models.DefaultModel
	BudgetID    uuid.UUID          `json:"budgetId" example:"550dc009-cea6-4c12-b2a5-03446eb7b7cf"` // ID of the root budget
	ParentType  models.ParentType  `json:"parentType" example:"account"`                            // Type of the parent node
	ParentID    uuid.UUID          `json:"parentId" example:"af892e10-7e0a-4fb8-b1bc-4b6d88401ed2"` // ID of the parent node
	NestedLevel int                `json:"nestedLevel" example:"0"`                                 // Distance from the nearest account ancestor
	Identifier  string             `json:"identifier" example:"1001"`                               // Short identifier, usually a line number
	Description string             `json:"description" example:"Director of photography"`           // A longer description
	Quantity    *decimal.Decimal   `json:"quantity" example:"10"`                                   // Number of units
	Rate        *decimal.Decimal   `json:"rate" example:"150"`                                      // Cost per unit
	Multiplier  *decimal.Decimal   `json:"multiplier" example:"1.5"`                                // Scaling factor, defaults to 1
	Unit        string             `json:"unit" example:"days"`                                     // Display name of the unit
	GroupID     *uuid.UUID         `json:"groupId"`                                                 // ID of the group the subaccount is labeled with
	FringeIDs   []uuid.UUID        `json:"fringes"`                                                 // IDs of the assigned fringes
	Computed    SubAccountComputed `json:"computed"`                                                // Derived values, read only
	Links       SubAccountLinks    `json:"links"`
}

func newSubAccount(c *gin.Context, model models.SubAccount, fringeIDs []uuid.UUID) SubAccount {
	url := httputil.RequestPathV1(c)

	return SubAccount{
		DefaultModel: model.DefaultModel,
		BudgetID:     model.BudgetID,
		ParentType:   model.ParentType,
		ParentID:     model.ParentID,
		NestedLevel:  model.NestedLevel,
		Identifier:   model.Identifier,
		Description:  model.Description,
		Quantity:     model.Quantity,
		Rate:         model.Rate,
		Multiplier:   model.Multiplier,
		Unit:         model.Unit,
		GroupID:      model.GroupID,
		FringeIDs:    fringeIDs,
		Computed: SubAccountComputed{
			NominalValue:                  model.NominalValue,
			AccumulatedValue:              model.AccumulatedValue,
			FringeContribution:            model.FringeContribution,
			AccumulatedFringeContribution: model.AccumulatedFringeContribution,
			MarkupContribution:            model.MarkupContribution,
			AccumulatedMarkupContribution: model.AccumulatedMarkupContribution,
			Actual:                        model.Actual,
		},
		Links: SubAccountLinks{
			Self:        fmt.Sprintf("%s/subaccounts/%s", url, model.ID),
			SubAccounts: fmt.Sprintf("%s/subaccounts/%s/subaccounts", url, model.ID),
			Markups:     fmt.Sprintf("%s/subaccounts/%s/markups", url, model.ID),
			Groups:      fmt.Sprintf("%s/subaccounts/%s/groups", url, model.ID),
		},
	}
}

type SubAccountListResponse struct {
	Data       []SubAccount `json:"data"`                                                          // List of subaccounts
	Error      *string      `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Pagination *Pagination  `json:"pagination"`                                                    // Pagination information
}

type SubAccountResponse struct {
	Data  *SubAccount `json:"data"`                                                          // Data for the subaccount
	Error *string     `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			SubAccounts
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/subaccounts/{id} [options]
func OptionsSubAccountDetail(c *gin.Context) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	var subAccount models.SubAccount
	if err := models.DB.First(&subAccount, "id = ?", uri.ID.UUID).Error; err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	httputil.OptionsGet(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			SubAccounts
// @Success		204
// @Router			/v1/accounts/{id}/subaccounts [options]
func OptionsSubAccountCollection(c *gin.Context) {
	httputil.OptionsGetPostPatchDelete(c)
}

// @Summary		Get subaccount
// @Description	Returns a specific subaccount
// @Tags			SubAccounts
// @Produce		json
// @Success		200	{object}	SubAccountResponse
// @Failure		400	{object}	SubAccountResponse
// @Failure		404	{object}	SubAccountResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/subaccounts/{id} [get]
func GetSubAccount(c *gin.Context) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		e := err.Error()
		c.JSON(status(err), SubAccountResponse{Error: &e})
		return
	}

	var subAccount models.SubAccount
	err := models.DB.First(&subAccount, "id = ?", uri.ID.UUID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), SubAccountResponse{Error: &e})
		return
	}

	fringeIDs, err := assignedFringeIDs(subAccount.ID)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), SubAccountResponse{Error: &e})
		return
	}

	data := newSubAccount(c, subAccount, fringeIDs)
	c.JSON(http.StatusOK, SubAccountResponse{Data: &data})
}

// GET /v1/accounts/:id/subaccounts
//
// @Summary		List subaccounts of an account
// @Description	Returns the nested-level-zero subaccounts of an account
// @Tags			SubAccounts
// @Produce		json
// @Success		200	{object}	SubAccountListResponse
// @Failure		400	{object}	SubAccountListResponse
// @Failure		404	{object}	SubAccountListResponse
// @Param			id			path	URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			identifier	query	string	false	"Glob pattern for the identifier"
// @Param			search		query	string	false	"Search in identifier and description"
// @Router			/v1/accounts/{id}/subaccounts [get]
func GetAccountSubAccounts(c *gin.Context) {
	listSubAccounts(c, accountParentOf)
}

// @Summary		List subaccounts of a subaccount
// @Description	Returns the direct children of a subaccount
// @Tags			SubAccounts
// @Produce		json
// @Success		200	{object}	SubAccountListResponse
// @Failure		400	{object}	SubAccountListResponse
// @Failure		404	{object}	SubAccountListResponse
// @Param			id			path	URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			identifier	query	string	false	"Glob pattern for the identifier"
// @Param			search		query	string	false	"Search in identifier and description"
// @Router			/v1/subaccounts/{id}/subaccounts [get]
func GetSubAccountSubAccounts(c *gin.Context) {
	listSubAccounts(c, subAccountParentOf)
}

// @Summary		Create subaccounts
// @Description	Creates new subaccounts under the account in one transaction
// @Tags			SubAccounts
// @Accept			json
// @Produce		json
// @Success		201			{object}	SubAccountListResponse
// @Failure		400			{object}	SubAccountListResponse
// @Failure		404			{object}	SubAccountListResponse
// @Param			id			path		URIID						true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			subaccounts	body		[]bulk.SubAccountPayload	true	"SubAccounts"
// @Router			/v1/accounts/{id}/subaccounts [post]
func CreateAccountSubAccounts(c *gin.Context) {
	createSubAccounts(c, accountParentOf)
}

// @Summary		Create subaccounts
// @Description	Creates new subaccounts under the subaccount in one transaction
// @Tags			SubAccounts
// @Accept			json
// @Produce		json
// @Success		201			{object}	SubAccountListResponse
// @Failure		400			{object}	SubAccountListResponse
// @Failure		404			{object}	SubAccountListResponse
// @Param			id			path		URIID						true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			subaccounts	body		[]bulk.SubAccountPayload	true	"SubAccounts"
// @Router			/v1/subaccounts/{id}/subaccounts [post]
func CreateSubAccountSubAccounts(c *gin.Context) {
	createSubAccounts(c, subAccountParentOf)
}

// @Summary		Update subaccounts
// @Description	Updates subaccounts of the account in one transaction
// @Tags			SubAccounts
// @Accept			json
// @Produce		json
// @Success		200			{object}	SubAccountListResponse
// @Failure		400			{object}	SubAccountListResponse
// @Failure		404			{object}	SubAccountListResponse
// @Param			id			path		URIID						true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			subaccounts	body		[]bulk.SubAccountChange		true	"Changes"
// @Router			/v1/accounts/{id}/subaccounts [patch]
func UpdateAccountSubAccounts(c *gin.Context) {
	updateSubAccounts(c, accountParentOf)
}

// @Summary		Update subaccounts
// @Description	Updates subaccounts of the subaccount in one transaction
// @Tags			SubAccounts
// @Accept			json
// @Produce		json
// @Success		200			{object}	SubAccountListResponse
// @Failure		400			{object}	SubAccountListResponse
// @Failure		404			{object}	SubAccountListResponse
// @Param			id			path		URIID						true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			subaccounts	body		[]bulk.SubAccountChange		true	"Changes"
// @Router			/v1/subaccounts/{id}/subaccounts [patch]
func UpdateSubAccountSubAccounts(c *gin.Context) {
	updateSubAccounts(c, subAccountParentOf)
}

// @Summary		Delete subaccounts
// @Description	Deletes subaccounts and their subtrees in one transaction
// @Tags			SubAccounts
// @Accept			json
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID			true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			ids	body		DeleteRequest	true	"IDs to delete"
// @Router			/v1/accounts/{id}/subaccounts [delete]
func DeleteAccountSubAccounts(c *gin.Context) {
	deleteSubAccounts(c, accountParentOf)
}

// @Summary		Delete subaccounts
// @Description	Deletes subaccounts and their subtrees in one transaction
// @Tags			SubAccounts
// @Accept			json
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID			true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			ids	body		DeleteRequest	true	"IDs to delete"
// @Router			/v1/subaccounts/{id}/subaccounts [delete]
func DeleteSubAccountSubAccounts(c *gin.Context) {
	deleteSubAccounts(c, subAccountParentOf)
}

type parentResolver func(id uuid.UUID) (models.Parent, error)

func listSubAccounts(c *gin.Context, resolve parentResolver) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		e := err.Error()
		c.JSON(status(err), SubAccountListResponse{Error: &e})
		return
	}

	parent, err := resolve(uri.ID.UUID)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), SubAccountListResponse{Error: &e})
		return
	}

	var filter AccountQueryFilter
	_ = c.Bind(&filter)
	_, setFields := httputil.GetURLFields(c.Request.URL, filter)

	var subAccounts []models.SubAccount
	err = models.DB.
		Where("parent_type = ? AND parent_id = ?", parent.ParentType, parent.ParentID).
		Order("identifier ASC").
		Find(&subAccounts).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), SubAccountListResponse{Error: &e})
		return
	}

	if slices.Contains(setFields, "Identifier") {
		subAccounts = slices.DeleteFunc(subAccounts, func(s models.SubAccount) bool {
			return !glob.Glob(filter.Identifier, s.Identifier)
		})
	}
	if filter.Search != "" {
		subAccounts = slices.DeleteFunc(subAccounts, func(s models.SubAccount) bool {
			return !contains(s.Identifier, filter.Search) && !contains(s.Description, filter.Search)
		})
	}

	total := int64(len(subAccounts))
	subAccounts = paginate(subAccounts, filter.Offset, filter.Limit, slices.Contains(setFields, "Limit"))

	apiResources, err := subAccountResources(c, subAccounts)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), SubAccountListResponse{Error: &e})
		return
	}

	c.JSON(http.StatusOK, SubAccountListResponse{
		Data: apiResources,
		Pagination: &Pagination{
			Count:  len(apiResources),
			Total:  total,
			Offset: filter.Offset,
			Limit:  limitOrDefault(filter.Limit, slices.Contains(setFields, "Limit")),
		},
	})
}

func createSubAccounts(c *gin.Context, resolve parentResolver) {
	userID, uri, payloads, ok := bindBulk[bulk.SubAccountPayload](c)
	if !ok {
		return
	}

	parent, err := resolve(uri.ID.UUID)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), SubAccountListResponse{Error: &e})
		return
	}

	created, err := service().AddSubAccounts(parent, userID, payloads)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), SubAccountListResponse{Error: &e})
		return
	}

	apiResources, err := subAccountResources(c, created)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), SubAccountListResponse{Error: &e})
		return
	}

	c.JSON(http.StatusCreated, SubAccountListResponse{Data: apiResources})
}

func updateSubAccounts(c *gin.Context, resolve parentResolver) {
	userID, uri, changes, ok := bindBulk[bulk.SubAccountChange](c)
	if !ok {
		return
	}

	parent, err := resolve(uri.ID.UUID)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), SubAccountListResponse{Error: &e})
		return
	}

	updated, err := service().UpdateSubAccounts(parent, userID, changes)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), SubAccountListResponse{Error: &e})
		return
	}

	apiResources, err := subAccountResources(c, updated)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), SubAccountListResponse{Error: &e})
		return
	}

	c.JSON(http.StatusOK, SubAccountListResponse{Data: apiResources})
}

func deleteSubAccounts(c *gin.Context, resolve parentResolver) {
	userID, uri, request, ok := bindBulkDelete(c)
	if !ok {
		return
	}

	parent, err := resolve(uri.ID.UUID)
	if err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	if err := service().DeleteSubAccounts(parent, userID, request.IDs); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

func subAccountResources(c *gin.Context, subAccounts []models.SubAccount) ([]SubAccount, error) {
	apiResources := make([]SubAccount, 0, len(subAccounts))
	for _, subAccount := range subAccounts {
		fringeIDs, err := assignedFringeIDs(subAccount.ID)
		if err != nil {
			return nil, err
		}

		apiResources = append(apiResources, newSubAccount(c, subAccount, fringeIDs))
	}

	return apiResources, nil
}

func assignedFringeIDs(subAccountID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := models.DB.Table("subaccount_fringes").
		Where("sub_account_id = ?", subAccountID).
		Pluck("fringe_id", &ids).Error

	return ids, err
}
