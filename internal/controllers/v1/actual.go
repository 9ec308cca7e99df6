package v1

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/bulk"
	"github.com/happybudget/backend/internal/httputil"
	"github.com/happybudget/backend/internal/models"
	"github.com/shopspring/decimal"
)

type ActualLinks struct {
	Self string `json:"self" example:"https://example.com/api/v1/actuals/cf625961-4725-4964-8ad6-9c51b071d68f"`
}

// Actual is the API v1 representation of an actual.
type Actual struct {
	models.DefaultModel
	BudgetID      uuid.UUID        `json:"budgetId" example:"550dc009-cea6-4c12-b2a5-03446eb7b7cf"` // ID of the budget the cost landed on
	OwnerType     models.OwnerType `json:"ownerType" example:"subaccount"`                          // Either "subaccount" or "markup"
	OwnerID       uuid.UUID        `json:"ownerId" example:"af892e10-7e0a-4fb8-b1bc-4b6d88401ed2"`  // ID of the owning entity
	Name          string           `json:"name" example:"Camera rental week 1"`                     // Display name
	Notes         string           `json:"notes" example:"Paid in two installments"`                // Free-form notes
	PurchaseOrder string           `json:"purchaseOrder" example:"PO-2041"`                         // External purchase order reference
	Date          *time.Time       `json:"date" example:"2024-03-12T00:00:00Z"`                     // When the cost occurred
	Value         decimal.Decimal  `json:"value" example:"1720.5"`                                  // The amount spent
	Links         ActualLinks      `json:"links"`
}

func newActual(c *gin.Context, model models.Actual) Actual {
	url := httputil.RequestPathV1(c)

	return Actual{
		DefaultModel:  model.DefaultModel,
		BudgetID:      model.BudgetID,
		OwnerType:     model.OwnerType,
		OwnerID:       model.OwnerID,
		Name:          model.Name,
		Notes:         model.Notes,
		PurchaseOrder: model.PurchaseOrder,
		Date:          model.Date,
		Value:         model.Value,
		Links: ActualLinks{
			Self: fmt.Sprintf("%s/actuals/%s", url, model.ID),
		},
	}
}

type ActualListResponse struct {
	Data  []Actual `json:"data"`                                                          // List of actuals
	Error *string  `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Actuals
// @Success		204
// @Router			/v1/budgets/{id}/actuals [options]
func OptionsBudgetActuals(c *gin.Context) {
	httputil.OptionsGetPostPatchDelete(c)
}

// @Summary		List actuals
// @Description	Returns the actuals of the budget
// @Tags			Actuals
// @Produce		json
// @Success		200	{object}	ActualListResponse
// @Failure		400	{object}	ActualListResponse
// @Failure		404	{object}	ActualListResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/budgets/{id}/actuals [get]
func GetBudgetActuals(c *gin.Context) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		e := err.Error()
		c.JSON(status(err), ActualListResponse{Error: &e})
		return
	}

	if _, err := budgetParentOf(uri.ID.UUID); err != nil {
		e := err.Error()
		c.JSON(status(err), ActualListResponse{Error: &e})
		return
	}

	var actuals []models.Actual
	err := models.DB.Where("budget_id = ?", uri.ID.UUID).Find(&actuals).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ActualListResponse{Error: &e})
		return
	}

	c.JSON(http.StatusOK, ActualListResponse{Data: actualResources(c, actuals)})
}

// @Summary		Create actuals
// @Description	Creates new actuals on the budget in one transaction
// @Tags			Actuals
// @Accept			json
// @Produce		json
// @Success		201		{object}	ActualListResponse
// @Failure		400		{object}	ActualListResponse
// @Failure		404		{object}	ActualListResponse
// @Param			id		path		URIID					true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			actuals	body		[]bulk.ActualPayload	true	"Actuals"
// @Router			/v1/budgets/{id}/actuals [post]
func CreateBudgetActuals(c *gin.Context) {
	userID, uri, payloads, ok := bindBulk[bulk.ActualPayload](c)
	if !ok {
		return
	}

	if _, err := budgetParentOf(uri.ID.UUID); err != nil {
		e := err.Error()
		c.JSON(status(err), ActualListResponse{Error: &e})
		return
	}

	created, err := service().AddActuals(uri.ID.UUID, userID, payloads)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ActualListResponse{Error: &e})
		return
	}

	c.JSON(http.StatusCreated, ActualListResponse{Data: actualResources(c, created)})
}

// @Summary		Update actuals
// @Description	Updates actuals of the budget in one transaction
// @Tags			Actuals
// @Accept			json
// @Produce		json
// @Success		200		{object}	ActualListResponse
// @Failure		400		{object}	ActualListResponse
// @Failure		404		{object}	ActualListResponse
// @Param			id		path		URIID				true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			actuals	body		[]bulk.ActualChange	true	"Changes"
// @Router			/v1/budgets/{id}/actuals [patch]
func UpdateBudgetActuals(c *gin.Context) {
	userID, uri, changes, ok := bindBulk[bulk.ActualChange](c)
	if !ok {
		return
	}

	if _, err := budgetParentOf(uri.ID.UUID); err != nil {
		e := err.Error()
		c.JSON(status(err), ActualListResponse{Error: &e})
		return
	}

	updated, err := service().UpdateActuals(uri.ID.UUID, userID, changes)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ActualListResponse{Error: &e})
		return
	}

	c.JSON(http.StatusOK, ActualListResponse{Data: actualResources(c, updated)})
}

// @Summary		Delete actuals
// @Description	Deletes actuals of the budget in one transaction
// @Tags			Actuals
// @Accept			json
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID			true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			ids	body		DeleteRequest	true	"IDs to delete"
// @Router			/v1/budgets/{id}/actuals [delete]
func DeleteBudgetActuals(c *gin.Context) {
	userID, uri, request, ok := bindBulkDelete(c)
	if !ok {
		return
	}

	if _, err := budgetParentOf(uri.ID.UUID); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	if err := service().DeleteActuals(uri.ID.UUID, userID, request.IDs); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

func actualResources(c *gin.Context, actuals []models.Actual) []Actual {
	apiResources := make([]Actual, 0, len(actuals))
	for _, actual := range actuals {
		apiResources = append(apiResources, newActual(c, actual))
	}

	return apiResources
}
