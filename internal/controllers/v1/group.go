package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/bulk"
	"github.com/happybudget/backend/internal/httputil"
	"github.com/happybudget/backend/internal/models"
)

type GroupLinks struct {
	Self string `json:"self" example:"https://example.com/api/v1/groups/5a89e5c9-79f9-4c0c-8b3b-0462af2b6b9d"`
}

// Group is the API v1 representation of a group.
type Group struct {
	models.DefaultModel
	ParentType models.ParentType `json:"parentType" example:"budget"`                             // Type of the node the group labels children of
	ParentID   uuid.UUID         `json:"parentId" example:"550dc009-cea6-4c12-b2a5-03446eb7b7cf"` // ID of the node the group labels children of
	Name       string            `json:"name" example:"Pre-production"`                           // Display name
	Color      string            `json:"color" example:"#a1887f"`                                 // Display color
	MemberIDs  []uuid.UUID       `json:"children"`                                                // Children assigned to the group
	Links      GroupLinks        `json:"links"`
}

func newGroup(c *gin.Context, model models.Group, memberIDs []uuid.UUID) Group {
	url := httputil.RequestPathV1(c)

	return Group{
		DefaultModel: model.DefaultModel,
		ParentType:   model.ParentType,
		ParentID:     model.ParentID,
		Name:         model.Name,
		Color:        model.Color,
		MemberIDs:    memberIDs,
		Links: GroupLinks{
			Self: fmt.Sprintf("%s/groups/%s", url, model.ID),
		},
	}
}

type GroupListResponse struct {
	Data  []Group `json:"data"`                                                          // List of groups
	Error *string `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Groups
// @Success		204
// @Router			/v1/budgets/{id}/groups [options]
func OptionsGroupCollection(c *gin.Context) {
	httputil.OptionsGetPostPatchDelete(c)
}

func GetBudgetGroups(c *gin.Context)     { listGroups(c, budgetParentOf) }
func GetAccountGroups(c *gin.Context)    { listGroups(c, accountParentOf) }
func GetSubAccountGroups(c *gin.Context) { listGroups(c, subAccountParentOf) }

// @Summary		Create groups
// @Description	Creates new groups under the parent node in one transaction
// @Tags			Groups
// @Accept			json
// @Produce		json
// @Success		201		{object}	GroupListResponse
// @Failure		400		{object}	GroupListResponse
// @Failure		404		{object}	GroupListResponse
// @Param			id		path		URIID				true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			groups	body		[]bulk.GroupPayload	true	"Groups"
// @Router			/v1/budgets/{id}/groups [post]
func CreateBudgetGroups(c *gin.Context)     { createGroups(c, budgetParentOf) }
func CreateAccountGroups(c *gin.Context)    { createGroups(c, accountParentOf) }
func CreateSubAccountGroups(c *gin.Context) { createGroups(c, subAccountParentOf) }

// @Summary		Update groups
// @Description	Updates groups of the parent node in one transaction
// @Tags			Groups
// @Accept			json
// @Produce		json
// @Success		200		{object}	GroupListResponse
// @Failure		400		{object}	GroupListResponse
// @Failure		404		{object}	GroupListResponse
// @Param			id		path		URIID				true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			groups	body		[]bulk.GroupChange	true	"Changes"
// @Router			/v1/budgets/{id}/groups [patch]
func UpdateBudgetGroups(c *gin.Context)     { updateGroups(c, budgetParentOf) }
func UpdateAccountGroups(c *gin.Context)    { updateGroups(c, accountParentOf) }
func UpdateSubAccountGroups(c *gin.Context) { updateGroups(c, subAccountParentOf) }

// @Summary		Delete groups
// @Description	Deletes groups of the parent node in one transaction
// @Tags			Groups
// @Accept			json
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID			true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			ids	body		DeleteRequest	true	"IDs to delete"
// @Router			/v1/budgets/{id}/groups [delete]
func DeleteBudgetGroups(c *gin.Context)     { deleteGroups(c, budgetParentOf) }
func DeleteAccountGroups(c *gin.Context)    { deleteGroups(c, accountParentOf) }
func DeleteSubAccountGroups(c *gin.Context) { deleteGroups(c, subAccountParentOf) }

func listGroups(c *gin.Context, resolve parentResolver) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		e := err.Error()
		c.JSON(status(err), GroupListResponse{Error: &e})
		return
	}

	parent, err := resolve(uri.ID.UUID)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), GroupListResponse{Error: &e})
		return
	}

	var groups []models.Group
	err = models.DB.
		Where("parent_type = ? AND parent_id = ?", parent.ParentType, parent.ParentID).
		Find(&groups).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), GroupListResponse{Error: &e})
		return
	}

	apiResources, err := groupResources(c, groups)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), GroupListResponse{Error: &e})
		return
	}

	c.JSON(http.StatusOK, GroupListResponse{Data: apiResources})
}

func createGroups(c *gin.Context, resolve parentResolver) {
	userID, uri, payloads, ok := bindBulk[bulk.GroupPayload](c)
	if !ok {
		return
	}

	parent, err := resolve(uri.ID.UUID)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), GroupListResponse{Error: &e})
		return
	}

	created, err := service().AddGroups(parent, userID, payloads)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), GroupListResponse{Error: &e})
		return
	}

	apiResources, err := groupResources(c, created)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), GroupListResponse{Error: &e})
		return
	}

	c.JSON(http.StatusCreated, GroupListResponse{Data: apiResources})
}

func updateGroups(c *gin.Context, resolve parentResolver) {
	userID, uri, changes, ok := bindBulk[bulk.GroupChange](c)
	if !ok {
		return
	}

	parent, err := resolve(uri.ID.UUID)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), GroupListResponse{Error: &e})
		return
	}

	updated, err := service().UpdateGroups(parent, userID, changes)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), GroupListResponse{Error: &e})
		return
	}

	apiResources, err := groupResources(c, updated)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), GroupListResponse{Error: &e})
		return
	}

	c.JSON(http.StatusOK, GroupListResponse{Data: apiResources})
}

func deleteGroups(c *gin.Context, resolve parentResolver) {
	userID, uri, request, ok := bindBulkDelete(c)
	if !ok {
		return
	}

	parent, err := resolve(uri.ID.UUID)
	if err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	if err := service().DeleteGroups(parent, userID, request.IDs); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

func groupResources(c *gin.Context, groups []models.Group) ([]Group, error) {
	apiResources := make([]Group, 0, len(groups))
	for _, group := range groups {
		memberIDs, err := groupMemberIDs(group)
		if err != nil {
			return nil, err
		}

		apiResources = append(apiResources, newGroup(c, group, memberIDs))
	}

	return apiResources, nil
}

func groupMemberIDs(group models.Group) ([]uuid.UUID, error) {
	var ids []uuid.UUID

	if group.ParentType == models.ParentTypeBudget {
		err := models.DB.Model(&models.Account{}).
			Where("group_id = ?", group.ID).
			Pluck("id", &ids).Error
		return ids, err
	}

	err := models.DB.Model(&models.SubAccount{}).
		Where("group_id = ?", group.ID).
		Pluck("id", &ids).Error

	return ids, err
}
