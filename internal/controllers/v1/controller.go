// Package v1 implements the v1 HTTP API.
//
// Write operations on the collections below a tree node accept arrays and
// run as one transaction, see the bulk package. Every mutating request must
// identify the acting user through the X-User-ID header.
package v1

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/happybudget/backend/internal/bulk"
	"github.com/happybudget/backend/internal/cache"
	"github.com/happybudget/backend/internal/httputil"
	"github.com/happybudget/backend/internal/models"
)

var invalidator cache.Invalidator = cache.Noop{}

// SetInvalidator configures the sink that is notified about entities whose
// derived data changed.
func SetInvalidator(i cache.Invalidator) {
	if i == nil {
		i = cache.Noop{}
	}
	invalidator = i
}

func service() bulk.Service {
	return bulk.NewService(models.DB, invalidator)
}

// bindBulk reads the acting user, the resource id from the URI and an array
// body for a bulk operation. On failure it writes the error response itself.
func bindBulk[T any](c *gin.Context) (uuid.UUID, URIID, []T, bool) {
	var uri URIID

	userID, err := httputil.UserID(c)
	if err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return uuid.Nil, uri, nil, false
	}

	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return uuid.Nil, uri, nil, false
	}

	var payloads []T
	if err := httputil.BindData(c, &payloads); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return uuid.Nil, uri, nil, false
	}

	return userID, uri, payloads, true
}

// bindBulkDelete reads the acting user, the resource id from the URI and the
// id list body for a bulk delete.
func bindBulkDelete(c *gin.Context) (uuid.UUID, URIID, DeleteRequest, bool) {
	var uri URIID
	var request DeleteRequest

	userID, err := httputil.UserID(c)
	if err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return uuid.Nil, uri, request, false
	}

	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return uuid.Nil, uri, request, false
	}

	if err := httputil.BindData(c, &request); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return uuid.Nil, uri, request, false
	}

	return userID, uri, request, true
}

// budgetParentOf, accountParentOf and subAccountParentOf verify that the
// parent resource exists before a child collection operation runs against it.
func budgetParentOf(id uuid.UUID) (models.Parent, error) {
	var budget models.Budget
	if err := models.DB.First(&budget, "id = ?", id).Error; err != nil {
		return models.Parent{}, err
	}

	return models.BudgetParent(id), nil
}

func accountParentOf(id uuid.UUID) (models.Parent, error) {
	var account models.Account
	if err := models.DB.First(&account, "id = ?", id).Error; err != nil {
		return models.Parent{}, err
	}

	return models.AccountParent(id), nil
}

func subAccountParentOf(id uuid.UUID) (models.Parent, error) {
	var subAccount models.SubAccount
	if err := models.DB.First(&subAccount, "id = ?", id).Error; err != nil {
		return models.Parent{}, err
	}

	return models.SubAccountParent(id), nil
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
