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

type MarkupLinks struct {
	Self string `json:"self" example:"https://example.com/api/v1/markups/0b0e6b5e-4289-4d29-aa9c-f22fdd80b316"`
}

// Markup is the API v1 representation of a markup.
type Markup struct {
	models.DefaultModel
	BudgetID    uuid.UUID              `json:"budgetId" example:"550dc009-cea6-4c12-b2a5-03446eb7b7cf"` // ID of the root budget
	ParentType  models.ParentType      `json:"parentType" example:"account"`                            // Type of the node the markup hangs off of
	ParentID    uuid.UUID              `json:"parentId" example:"af892e10-7e0a-4fb8-b1bc-4b6d88401ed2"` // ID of the node the markup hangs off of
	Identifier  string                 `json:"identifier" example:"M1"`                                 // Short identifier
	Description string                 `json:"description" example:"Contingency"`                       // A longer description
	Unit        models.CalculationUnit `json:"unit" example:"percent"`                                  // Either "flat" or "percent"
	Rate        decimal.Decimal        `json:"rate" example:"0.1"`                                      // Flat amount or percent rate
	ChildIDs    []uuid.UUID            `json:"children"`                                                // Children of a percent markup
	Actual      decimal.Decimal        `json:"actual" example:"100"`                                    // Sum of the attached actuals
	Links       MarkupLinks            `json:"links"`
}

func newMarkup(c *gin.Context, model models.Markup, childIDs []uuid.UUID) Markup {
	url := httputil.RequestPathV1(c)

	return Markup{
		DefaultModel: model.DefaultModel,
		BudgetID:     model.BudgetID,
		ParentType:   model.ParentType,
		ParentID:     model.ParentID,
		Identifier:   model.Identifier,
		Description:  model.Description,
		Unit:         model.Unit,
		Rate:         model.Rate,
		ChildIDs:     childIDs,
		Actual:       model.Actual,
		Links: MarkupLinks{
			Self: fmt.Sprintf("%s/markups/%s", url, model.ID),
		},
	}
}

type MarkupListResponse struct {
	Data  []Markup `json:"data"`                                                          // List of markups
	Error *string  `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Markups
// @Success		204
// @Router			/v1/budgets/{id}/markups [options]
func OptionsMarkupCollection(c *gin.Context) {
	httputil.OptionsGetPostPatchDelete(c)
}

func GetBudgetMarkups(c *gin.Context) { listMarkups(c, budgetParentOf) }
func GetAccountMarkups(c *gin.Context) { listMarkups(c, accountParentOf) }
func GetSubAccountMarkups(c *gin.Context) { listMarkups(c, subAccountParentOf) }

// @Summary		Create markups
// @Description	Creates new markups under the parent node in one transaction
// @Tags			Markups
// @Accept			json
// @Produce		json
// @Success		201		{object}	MarkupListResponse
// @Failure		400		{object}	MarkupListResponse
// @Failure		404		{object}	MarkupListResponse
// @Param			id		path		URIID				true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			markups	body		[]bulk.MarkupPayload	true	"Markups"
// @Router			/v1/budgets/{id}/markups [post]
func CreateBudgetMarkups(c *gin.Context) { createMarkups(c, budgetParentOf) }
func CreateAccountMarkups(c *gin.Context) { createMarkups(c, accountParentOf) }
func CreateSubAccountMarkups(c *gin.Context) { createMarkups(c, subAccountParentOf) }

// @Summary		Update markups
// @Description	Updates markups of the parent node in one transaction
// @Tags			Markups
// @Accept			json
// @Produce		json
// @Success		200		{object}	MarkupListResponse
// @Failure		400		{object}	MarkupListResponse
// @Failure		404		{object}	MarkupListResponse
// @Param			id		path		URIID				true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			markups	body		[]bulk.MarkupChange	true	"Changes"
// @Router			/v1/budgets/{id}/markups [patch]
func UpdateBudgetMarkups(c *gin.Context) { updateMarkups(c, budgetParentOf) }
func UpdateAccountMarkups(c *gin.Context) { updateMarkups(c, accountParentOf) }
func UpdateSubAccountMarkups(c *gin.Context) { updateMarkups(c, subAccountParentOf) }

// @Summary		Delete markups
// @Description	Deletes markups of the parent node in one transaction
// @Tags			Markups
// @Accept			json
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID			true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			ids	body		DeleteRequest	true	"IDs to delete"
// @Router			/v1/budgets/{id}/markups [delete]
func DeleteBudgetMarkups(c *gin.Context) { deleteMarkups(c, budgetParentOf) }
func DeleteAccountMarkups(c *gin.Context) { deleteMarkups(c, accountParentOf) }
func DeleteSubAccountMarkups(c *gin.Context) { deleteMarkups(c, subAccountParentOf) }

func listMarkups(c *gin.Context, resolve parentResolver) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		e := err.Error()
		c.JSON(status(err), MarkupListResponse{Error: &e})
		return
	}

	parent, err := resolve(uri.ID.UUID)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), MarkupListResponse{Error: &e})
		return
	}

	var markups []models.Markup
	err = models.DB.
		Where("parent_type = ? AND parent_id = ?", parent.ParentType, parent.ParentID).
		Find(&markups).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), MarkupListResponse{Error: &e})
		return
	}

	apiResources, err := markupResources(c, markups)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), MarkupListResponse{Error: &e})
		return
	}

	c.JSON(http.StatusOK, MarkupListResponse{Data: apiResources})
}

func createMarkups(c *gin.Context, resolve parentResolver) {
	userID, uri, payloads, ok := bindBulk[bulk.MarkupPayload](c)
	if !ok {
		return
	}

	parent, err := resolve(uri.ID.UUID)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), MarkupListResponse{Error: &e})
		return
	}

	created, err := service().AddMarkups(parent, userID, payloads)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), MarkupListResponse{Error: &e})
		return
	}

	apiResources, err := markupResources(c, created)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), MarkupListResponse{Error: &e})
		return
	}

	c.JSON(http.StatusCreated, MarkupListResponse{Data: apiResources})
}

func updateMarkups(c *gin.Context, resolve parentResolver) {
	userID, uri, changes, ok := bindBulk[bulk.MarkupChange](c)
	if !ok {
		return
	}

	parent, err := resolve(uri.ID.UUID)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), MarkupListResponse{Error: &e})
		return
	}

	updated, err := service().UpdateMarkups(parent, userID, changes)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), MarkupListResponse{Error: &e})
		return
	}

	apiResources, err := markupResources(c, updated)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), MarkupListResponse{Error: &e})
		return
	}

	c.JSON(http.StatusOK, MarkupListResponse{Data: apiResources})
}

func deleteMarkups(c *gin.Context, resolve parentResolver) {
	userID, uri, request, ok := bindBulkDelete(c)
	if !ok {
		return
	}

	parent, err := resolve(uri.ID.UUID)
	if err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	if err := service().DeleteMarkups(parent, userID, request.IDs); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

func markupResources(c *gin.Context, markups []models.Markup) ([]Markup, error) {
	apiResources := make([]Markup, 0, len(markups))
	for _, markup := range markups {
		childIDs, err := markupChildIDs(markup)
		if err != nil {
			return nil, err
		}

		apiResources = append(apiResources, newMarkup(c, markup, childIDs))
	}

	return apiResources, nil
}

func markupChildIDs(markup models.Markup) ([]uuid.UUID, error) {
	var ids []uuid.UUID

	if markup.ParentType == models.ParentTypeBudget {
		err := models.DB.Table("markup_accounts").
			Where("markup_id = ?", markup.ID).
			Pluck("account_id", &ids).Error
		return ids, err
	}

	err := models.DB.Table("markup_sub_accounts").
		Where("markup_id = ?", markup.ID).
		Pluck("sub_account_id", &ids).Error

	return ids, err
}
