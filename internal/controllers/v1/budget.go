package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/happybudget/backend/internal/duplicate"
	"github.com/happybudget/backend/internal/httputil"
	"github.com/happybudget/backend/internal/models"
	"github.com/happybudget/backend/internal/recalc"
	"github.com/ryanuber/go-glob"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// RegisterBudgetRoutes registers the routes for budgets with the RouterGroup
// that is passed.
func RegisterBudgetRoutes(r *gin.RouterGroup) {
	// Root group
	{
		r.OPTIONS("", OptionsBudgetList)
		r.GET("", GetBudgets)
		r.POST("", CreateBudgets)
	}

	// Budget with ID
	{
		r.OPTIONS("/:id", OptionsBudgetDetail)
		r.GET("/:id", GetBudget)
		r.PATCH("/:id", UpdateBudget)
		r.DELETE("/:id", DeleteBudget)
	}

	// Tree-wide operations
	{
		r.POST("/:id/duplicate", DuplicateBudget)
		r.POST("/:id/recalculate", RecalculateBudget)
	}

	// Child collections
	{
		r.OPTIONS("/:id/accounts", OptionsBudgetAccounts)
		r.GET("/:id/accounts", GetBudgetAccounts)
		r.POST("/:id/accounts", CreateBudgetAccounts)
		r.PATCH("/:id/accounts", UpdateBudgetAccounts)
		r.DELETE("/:id/accounts", DeleteBudgetAccounts)

		r.OPTIONS("/:id/fringes", OptionsBudgetFringes)
		r.GET("/:id/fringes", GetBudgetFringes)
		r.POST("/:id/fringes", CreateBudgetFringes)
		r.PATCH("/:id/fringes", UpdateBudgetFringes)
		r.DELETE("/:id/fringes", DeleteBudgetFringes)

		r.OPTIONS("/:id/actuals", OptionsBudgetActuals)
		r.GET("/:id/actuals", GetBudgetActuals)
		r.POST("/:id/actuals", CreateBudgetActuals)
		r.PATCH("/:id/actuals", UpdateBudgetActuals)
		r.DELETE("/:id/actuals", DeleteBudgetActuals)

		r.OPTIONS("/:id/markups", OptionsMarkupCollection)
		r.GET("/:id/markups", GetBudgetMarkups)
		r.POST("/:id/markups", CreateBudgetMarkups)
		r.PATCH("/:id/markups", UpdateBudgetMarkups)
		r.DELETE("/:id/markups", DeleteBudgetMarkups)

		r.OPTIONS("/:id/groups", OptionsGroupCollection)
		r.GET("/:id/groups", GetBudgetGroups)
		r.POST("/:id/groups", CreateBudgetGroups)
		r.PATCH("/:id/groups", UpdateBudgetGroups)
		r.DELETE("/:id/groups", DeleteBudgetGroups)
	}
}

type BudgetEditable struct {
	Name      string        `json:"name" example:"Feature Film" default:""`    // Name of the budget
	Domain    models.Domain `json:"domain" example:"budget" default:"budget"`  // Either "budget" or "template"
	Currency  string        `json:"currency" example:"USD" default:""`         // ISO 4217 code, empty for unset
	ImageName string        `json:"imageName" example:"cover.png" default:""`  // Name of the uploaded cover image
	Community bool          `json:"community" example:"false" default:"false"` // Is the template shared with the community? Always false for budgets
	Archived  bool          `json:"archived" example:"false" default:"false"`  // Is the budget archived?
}

// model returns the database resource for the editable fields.
func (editable BudgetEditable) model() models.Budget {
	return models.Budget{
		Name:      editable.Name,
		Domain:    editable.Domain,
		Currency:  editable.Currency,
		ImageName: editable.ImageName,
		Community: editable.Community,
		Archived:  editable.Archived,
	}
}

type BudgetComputed struct {
	AccumulatedValue              decimal.Decimal `json:"accumulatedValue" example:"14000.5"`           // Sum of the nominal values of all accounts
	AccumulatedFringeContribution decimal.Decimal `json:"accumulatedFringeContribution" example:"350"`  // Sum of the fringe contributions in the tree
	AccumulatedMarkupContribution decimal.Decimal `json:"accumulatedMarkupContribution" example:"1200"` // Sum of the markup contributions in the tree
	Actual                        decimal.Decimal `json:"actual" example:"8000"`                        // Sum of all actuals in the tree
}

type BudgetLinks struct {
	Self     string `json:"self" example:"https://example.com/api/v1/budgets/550dc009-cea6-4c12-b2a5-03446eb7b7cf"`
	Accounts string `json:"accounts" example:"https://example.com/api/v1/budgets/550dc009-cea6-4c12-b2a5-03446eb7b7cf/accounts"`
	Fringes  string `json:"fringes" example:"https://example.com/api/v1/budgets/550dc009-cea6-4c12-b2a5-03446eb7b7cf/fringes"`
	Actuals  string `json:"actuals" example:"https://example.com/api/v1/budgets/550dc009-cea6-4c12-b2a5-03446eb7b7cf/actuals"`
	Markups  string `json:"markups" example:"https://example.com/api/v1/budgets/550dc009-cea6-4c12-b2a5-03446eb7b7cf/markups"`
	Groups   string `json:"groups" example:"https://example.com/api/v1/budgets/550dc009-cea6-4c12-b2a5-03446eb7b7cf/groups"`
}

// Budget is the API v1 representation of a budget.
type Budget struct {
	models.DefaultModel
	BudgetEditable
	BudgetComputed
	Links BudgetLinks `json:"links"`
}

func newBudget(c *gin.Context, model models.Budget) Budget {
	url := httputil.RequestPathV1(c)

	return Budget{
		DefaultModel: model.DefaultModel,
		BudgetEditable: BudgetEditable{
			Name:      model.Name,
			Domain:    model.Domain,
			Currency:  model.Currency,
			ImageName: model.ImageName,
			Community: model.Community,
			Archived:  model.Archived,
		},
		BudgetComputed: BudgetComputed{
			AccumulatedValue:              model.AccumulatedValue,
			AccumulatedFringeContribution: model.AccumulatedFringeContribution,
			AccumulatedMarkupContribution: model.AccumulatedMarkupContribution,
			Actual:                        model.Actual,
		},
		Links: BudgetLinks{
			Self:     fmt.Sprintf("%s/budgets/%s", url, model.ID),
			Accounts: fmt.Sprintf("%s/budgets/%s/accounts", url, model.ID),
			Fringes:  fmt.Sprintf("%s/budgets/%s/fringes", url, model.ID),
			Actuals:  fmt.Sprintf("%s/budgets/%s/actuals", url, model.ID),
			Markups:  fmt.Sprintf("%s/budgets/%s/markups", url, model.ID),
			Groups:   fmt.Sprintf("%s/budgets/%s/groups", url, model.ID),
		},
	}
}

type BudgetListResponse struct {
	Data       []Budget    `json:"data"`                                                          // List of budgets
	Error      *string     `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Pagination *Pagination `json:"pagination"`                                                    // Pagination information
}

type BudgetCreateResponse struct {
	Error *string          `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Data  []BudgetResponse `json:"data"`                                                          // List of created budgets
}

func (r *BudgetCreateResponse) appendError(err error, currentStatus int) int {
	s := err.Error()
	r.Data = append(r.Data, BudgetResponse{Error: &s})

	// The final status code is the highest HTTP status code number
	newStatus := status(err)
	if newStatus > currentStatus {
		return newStatus
	}

	return currentStatus
}

type BudgetResponse struct {
	Data  *Budget `json:"data"`                                                          // Data for the budget
	Error *string `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

type BudgetQueryFilter struct {
	Name      string `form:"name" filterField:"false"`   // Glob pattern for the budget name
	Domain    string `form:"domain"`                     // By domain, "budget" or "template"
	Archived  bool   `form:"archived"`                   // Is the budget archived?
	Community bool   `form:"community"`                  // Is the template shared with the community?
	Offset    uint   `form:"offset" filterField:"false"` // The offset of the first budget returned. Defaults to 0.
	Limit     int    `form:"limit" filterField:"false"`  // Maximum number of budgets to return. Defaults to 50.
}

func (f BudgetQueryFilter) model() models.Budget {
	return models.Budget{
		Domain:    models.Domain(f.Domain),
		Archived:  f.Archived,
		Community: f.Community,
	}
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Budgets
// @Success		204
// @Router			/v1/budgets [options]
func OptionsBudgetList(c *gin.Context) {
	httputil.OptionsGetPost(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Budgets
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/budgets/{id} [options]
func OptionsBudgetDetail(c *gin.Context) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	var budget models.Budget
	if err := models.DB.First(&budget, "id = ?", uri.ID.UUID).Error; err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	httputil.OptionsGetPatchDelete(c)
}

// @Summary		Create budgets
// @Description	Creates new budgets
// @Tags			Budgets
// @Accept			json
// @Produce		json
// @Success		201		{object}	BudgetCreateResponse
// @Failure		400		{object}	BudgetCreateResponse
// @Failure		500		{object}	BudgetCreateResponse
// @Param			budgets	body		[]BudgetEditable	true	"Budgets"
// @Router			/v1/budgets [post]
func CreateBudgets(c *gin.Context) {
	userID, err := httputil.UserID(c)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetCreateResponse{Error: &e})
		return
	}

	var editables []BudgetEditable
	if err := httputil.BindData(c, &editables); err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetCreateResponse{Error: &e})
		return
	}

	// The final http status. Will be modified when errors occur
	httpStatus := http.StatusCreated
	r := BudgetCreateResponse{}

	for _, editable := range editables {
		// An unset domain means a standard budget. Templates have their own
		// endpoints.
		if editable.Domain == "" {
			editable.Domain = models.DomainBudget
		}
		if editable.Domain == models.DomainTemplate {
			httpStatus = r.appendError(models.ErrTemplateOnBudgetRoute, httpStatus)
			continue
		}

		budget := editable.model()
		budget.CreatedByID = userID
		budget.UpdatedByID = userID

		err := models.DB.Create(&budget).Error
		if err != nil {
			httpStatus = r.appendError(err, httpStatus)
			continue
		}

		data := newBudget(c, budget)
		r.Data = append(r.Data, BudgetResponse{Data: &data})
	}

	c.JSON(httpStatus, r)
}

// @Summary		List budgets
// @Description	Returns a list of budgets
// @Tags			Budgets
// @Produce		json
// @Success		200	{object}	BudgetListResponse
// @Failure		500	{object}	BudgetListResponse
// @Router			/v1/budgets [get]
// @Param			name		query	string	false	"Glob pattern for the name"
// @Param			domain		query	string	false	"Filter by domain"
// @Param			archived	query	bool	false	"Is the budget archived?"
// @Param			community	query	bool	false	"Is the template shared with the community?"
// @Param			offset		query	uint	false	"The offset of the first budget returned. Defaults to 0."
// @Param			limit		query	int		false	"Maximum number of budgets to return. Defaults to 50."
func GetBudgets(c *gin.Context) {
	var filter BudgetQueryFilter

	// Every parameter is bound into a string, so this will always succeed
	_ = c.Bind(&filter)

	queryFields, setFields := httputil.GetURLFields(c.Request.URL, filter)

	var budgets []models.Budget
	err := models.DB.
		Order("name ASC").
		Where(filter.model(), queryFields...).
		Find(&budgets).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetListResponse{Error: &e})
		return
	}

	if slices.Contains(setFields, "Name") {
		budgets = slices.DeleteFunc(budgets, func(b models.Budget) bool {
			return !glob.Glob(filter.Name, b.Name)
		})
	}

	total := int64(len(budgets))
	budgets = paginate(budgets, filter.Offset, filter.Limit, slices.Contains(setFields, "Limit"))

	apiResources := make([]Budget, 0)
	for _, budget := range budgets {
		apiResources = append(apiResources, newBudget(c, budget))
	}

	c.JSON(http.StatusOK, BudgetListResponse{
		Data: apiResources,
		Pagination: &Pagination{
			Count:  len(apiResources),
			Total:  total,
			Offset: filter.Offset,
			Limit:  limitOrDefault(filter.Limit, slices.Contains(setFields, "Limit")),
		},
	})
}

// @Summary		Get budget
// @Description	Returns a specific budget
// @Tags			Budgets
// @Produce		json
// @Success		200	{object}	BudgetResponse
// @Failure		400	{object}	BudgetResponse
// @Failure		404	{object}	BudgetResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/budgets/{id} [get]
func GetBudget(c *gin.Context) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	var budget models.Budget
	err := models.DB.First(&budget, "id = ?", uri.ID.UUID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	data := newBudget(c, budget)
	c.JSON(http.StatusOK, BudgetResponse{Data: &data})
}

// BudgetUpdate holds the editable fields for a PATCH. Nil fields are left
// untouched. The domain of a budget cannot change after creation.
type BudgetUpdate struct {
	Name      *string `json:"name"`
	Currency  *string `json:"currency"`
	ImageName *string `json:"imageName"`
	Community *bool   `json:"community"`
	Archived  *bool   `json:"archived"`
}

// @Summary		Update budget
// @Description	Updates an existing budget. Only values to be updated need to be specified.
// @Tags			Budgets
// @Accept			json
// @Produce		json
// @Success		200		{object}	BudgetResponse
// @Failure		400		{object}	BudgetResponse
// @Failure		404		{object}	BudgetResponse
// @Param			id		path		URIID			true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			budget	body		BudgetUpdate	true	"Budget"
// @Router			/v1/budgets/{id} [patch]
func UpdateBudget(c *gin.Context) {
	userID, err := httputil.UserID(c)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	var budget models.Budget
	err = models.DB.First(&budget, "id = ?", uri.ID.UUID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	var update BudgetUpdate
	if err := httputil.BindData(c, &update); err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	if update.Name != nil {
		budget.Name = *update.Name
	}
	if update.Currency != nil {
		budget.Currency = *update.Currency
	}
	if update.ImageName != nil {
		budget.ImageName = *update.ImageName
	}
	if update.Community != nil {
		budget.Community = *update.Community
	}
	if update.Archived != nil {
		budget.Archived = *update.Archived
	}
	budget.UpdatedByID = userID

	err = models.DB.Model(&budget).
		Select("Name", "Currency", "ImageName", "Community", "Archived", "UpdatedByID").
		Updates(&budget).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	data := newBudget(c, budget)
	c.JSON(http.StatusOK, BudgetResponse{Data: &data})
}

// @Summary		Delete budget
// @Description	Deletes a budget and all its resources
// @Tags			Budgets
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/budgets/{id} [delete]
func DeleteBudget(c *gin.Context) {
	if _, err := httputil.UserID(c); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	if err := service().DeleteBudget(uri.ID.UUID); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

// @Summary		Duplicate budget
// @Description	Creates a deep copy of the budget and all its resources
// @Tags			Budgets
// @Produce		json
// @Success		201	{object}	BudgetResponse
// @Failure		400	{object}	BudgetResponse
// @Failure		404	{object}	BudgetResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/budgets/{id}/duplicate [post]
func DuplicateBudget(c *gin.Context) {
	userID, err := httputil.UserID(c)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	clone, err := duplicate.Duplicate(models.DB, uri.ID.UUID, userID)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	data := newBudget(c, *clone)
	c.JSON(http.StatusCreated, BudgetResponse{Data: &data})
}

// @Summary		Recalculate budget
// @Description	Recomputes all derived fields of the budget tree from scratch
// @Tags			Budgets
// @Produce		json
// @Success		200	{object}	BudgetResponse
// @Failure		400	{object}	BudgetResponse
// @Failure		404	{object}	BudgetResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/budgets/{id}/recalculate [post]
func RecalculateBudget(c *gin.Context) {
	if _, err := httputil.UserID(c); err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	var budget models.Budget
	err := models.DB.First(&budget, "id = ?", uri.ID.UUID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	// The whole subaccount tree enters the traversal so that every node is
	// recomputed, not only the ones already marked dirty.
	var subAccounts []models.SubAccount
	err = models.DB.Where("budget_id = ?", budget.ID).Find(&subAccounts).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	tree := recalc.Tree{}
	tree.AddBudget(&budget)
	for i := range subAccounts {
		tree.AddSubAccount(&subAccounts[i])
	}

	_, err = recalc.CalculateAll(models.DB, tree, recalc.Options{
		Commit:      true,
		Invalidator: invalidator,
	})
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	data := newBudget(c, budget)
	c.JSON(http.StatusOK, BudgetResponse{Data: &data})
}

// paginate slices a result list the way the database would with OFFSET and
// LIMIT, after in-memory filters have been applied.
func paginate[T any](rows []T, offset uint, limit int, limitSet bool) []T {
	if int(offset) >= len(rows) {
		return nil
	}
	rows = rows[offset:]

	max := limitOrDefault(limit, limitSet)
	if max >= 0 && len(rows) > max {
		rows = rows[:max]
	}

	return rows
}

func limitOrDefault(limit int, set bool) int {
	if !set {
		return 50
	}

	return limit
}
