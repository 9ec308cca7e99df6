package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/bulk"
	"github.com/happybudget/backend/internal/httputil"
	"github.com/happybudget/backend/internal/models"
	"github.com/shopspring/decimal"
)

type FringeLinks struct {
	Self string `json:"self" example:"https://example.com/api/v1/fringes/90c7b625-9053-4907-9973-38f6a6e0e251"`
}

// Fringe is the API v1 representation of a fringe.
type Fringe struct {
	models.DefaultModel
	BudgetID    uuid.UUID              `json:"budgetId" example:"550dc009-cea6-4c12-b2a5-03446eb7b7cf"` // ID of the budget the fringe belongs to
	Name        string                 `json:"name" example:"Payroll tax"`                              // Display name
	Description string                 `json:"description" example:"Statutory payroll tax"`             // A longer description
	Unit        models.CalculationUnit `json:"unit" example:"percent"`                                  // Either "flat" or "percent"
	Rate        decimal.Decimal        `json:"rate" example:"0.22"`                                     // Flat amount or percent rate
	Cutoff      *decimal.Decimal       `json:"cutoff" example:"25000"`                                  // Cap on the base a percent rate applies to
	Color       string                 `json:"color" example:"#50c878"`                                 // Display color
	Links       FringeLinks            `json:"links"`
}

func newFringe(c *gin.Context, model models.Fringe) Fringe {
	url := httputil.RequestPathV1(c)

	return Fringe{
		DefaultModel: model.DefaultModel,
		BudgetID:     model.BudgetID,
		Name:         model.Name,
		Description:  model.Description,
		Unit:         model.Unit,
		Rate:         model.Rate,
		Cutoff:       model.Cutoff,
		Color:        model.Color,
		Links: FringeLinks{
			Self: fmt.Sprintf("%s/fringes/%s", url, model.ID),
		},
	}
}

type FringeListResponse struct {
	Data  []Fringe `json:"data"`                                                          // List of fringes
	Error *string  `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Fringes
// @Success		204
// @Router			/v1/budgets/{id}/fringes [options]
func OptionsBudgetFringes(c *gin.Context) {
	httputil.OptionsGetPostPatchDelete(c)
}

// @Summary		List fringes
// @Description	Returns the fringes of the budget
// @Tags			Fringes
// @Produce		json
// @Success		200	{object}	FringeListResponse
// @Failure		400	{object}	FringeListResponse
// @Failure		404	{object}	FringeListResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/budgets/{id}/fringes [get]
func GetBudgetFringes(c *gin.Context) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		e := err.Error()
		c.JSON(status(err), FringeListResponse{Error: &e})
		return
	}

	if _, err := budgetParentOf(uri.ID.UUID); err != nil {
		e := err.Error()
		c.JSON(status(err), FringeListResponse{Error: &e})
		return
	}

	var fringes []models.Fringe
	err := models.DB.Where("budget_id = ?", uri.ID.UUID).Find(&fringes).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), FringeListResponse{Error: &e})
		return
	}

	c.JSON(http.StatusOK, FringeListResponse{Data: fringeResources(c, fringes)})
}

// @Summary		Create fringes
// @Description	Creates new fringes on the budget in one transaction
// @Tags			Fringes
// @Accept			json
// @Produce		json
// @Success		201		{object}	FringeListResponse
// @Failure		400		{object}	FringeListResponse
// @Failure		404		{object}	FringeListResponse
// @Param			id		path		URIID					true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			fringes	body		[]bulk.FringePayload	true	"Fringes"
// @Router			/v1/budgets/{id}/fringes [post]
func CreateBudgetFringes(c *gin.Context) {
	userID, uri, payloads, ok := bindBulk[bulk.FringePayload](c)
	if !ok {
		return
	}

	if _, err := budgetParentOf(uri.ID.UUID); err != nil {
		e := err.Error()
		c.JSON(status(err), FringeListResponse{Error: &e})
		return
	}

	created, err := service().AddFringes(uri.ID.UUID, userID, payloads)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), FringeListResponse{Error: &e})
		return
	}

	c.JSON(http.StatusCreated, FringeListResponse{Data: fringeResources(c, created)})
}

// @Summary		Update fringes
// @Description	Updates fringes of the budget in one transaction
// @Tags			Fringes
// @Accept			json
// @Produce		json
// @Success		200		{object}	FringeListResponse
// @Failure		400		{object}	FringeListResponse
// @Failure		404		{object}	FringeListResponse
// @Param			id		path		URIID				true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			fringes	body		[]bulk.FringeChange	true	"Changes"
// @Router			/v1/budgets/{id}/fringes [patch]
func UpdateBudgetFringes(c *gin.Context) {
	userID, uri, changes, ok := bindBulk[bulk.FringeChange](c)
	if !ok {
		return
	}

	if _, err := budgetParentOf(uri.ID.UUID); err != nil {
		e := err.Error()
		c.JSON(status(err), FringeListResponse{Error: &e})
		return
	}

	updated, err := service().UpdateFringes(uri.ID.UUID, userID, changes)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), FringeListResponse{Error: &e})
		return
	}

	c.JSON(http.StatusOK, FringeListResponse{Data: fringeResources(c, updated)})
}

// @Summary		Delete fringes
// @Description	Deletes fringes of the budget in one transaction
// @Tags			Fringes
// @Accept			json
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID			true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			ids	body		DeleteRequest	true	"IDs to delete"
// @Router			/v1/budgets/{id}/fringes [delete]
func DeleteBudgetFringes(c *gin.Context) {
	userID, uri, request, ok := bindBulkDelete(c)
	if !ok {
		return
	}

	if _, err := budgetParentOf(uri.ID.UUID); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	if err := service().DeleteFringes(uri.ID.UUID, userID, request.IDs); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

func fringeResources(c *gin.Context, fringes []models.Fringe) []Fringe {
	apiResources := make([]Fringe, 0, len(fringes))
	for _, fringe := range fringes {
		apiResources = append(apiResources, newFringe(c, fringe))
	}

	return apiResources
}
