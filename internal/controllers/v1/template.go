package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/happybudget/backend/internal/duplicate"
	"github.com/happybudget/backend/internal/httputil"
	"github.com/happybudget/backend/internal/models"
	"github.com/ryanuber/go-glob"
	"golang.org/x/exp/slices"
)

// RegisterTemplateRoutes registers the routes for templates with the
// RouterGroup that is passed. Templates are budget rows in the template
// domain, so the detail operations are shared with the budget endpoints.
func RegisterTemplateRoutes(r *gin.RouterGroup) {
	// Root group
	{
		r.OPTIONS("", OptionsTemplateList)
		r.GET("", GetTemplates)
		r.POST("", CreateTemplates)
	}

	// Template with ID
	{
		r.OPTIONS("/:id", OptionsBudgetDetail)
		r.GET("/:id", GetTemplate)
		r.PATCH("/:id", UpdateBudget)
		r.DELETE("/:id", DeleteBudget)
	}

	// Tree-wide operations
	{
		r.POST("/:id/duplicate", DuplicateBudget)
		r.POST("/:id/derive", DeriveTemplate)
	}
}

type TemplateQueryFilter struct {
	Name      string `form:"name" filterField:"false"`   // Glob pattern for the template name
	Archived  bool   `form:"archived"`                   // Is the template archived?
	Community bool   `form:"community"`                  // Is the template shared with the community?
	Offset    uint   `form:"offset" filterField:"false"` // The offset of the first template returned. Defaults to 0.
	Limit     int    `form:"limit" filterField:"false"`  // Maximum number of templates to return. Defaults to 50.
}

func (f TemplateQueryFilter) model() models.Budget {
	return models.Budget{
		Archived:  f.Archived,
		Community: f.Community,
	}
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Templates
// @Success		204
// @Router			/v1/templates [options]
func OptionsTemplateList(c *gin.Context) {
	httputil.OptionsGetPost(c)
}

// @Summary		List templates
// @Description	Returns a list of templates
// @Tags			Templates
// @Produce		json
// @Success		200	{object}	BudgetListResponse
// @Failure		500	{object}	BudgetListResponse
// @Router			/v1/templates [get]
// @Param			name		query	string	false	"Glob pattern for the name"
// @Param			archived	query	bool	false	"Is the template archived?"
// @Param			community	query	bool	false	"Is the template shared with the community?"
// @Param			offset		query	uint	false	"The offset of the first template returned. Defaults to 0."
// @Param			limit		query	int		false	"Maximum number of templates to return. Defaults to 50."
func GetTemplates(c *gin.Context) {
	var filter TemplateQueryFilter

	// Every parameter is bound into a string, so this will always succeed
	_ = c.Bind(&filter)

	queryFields, setFields := httputil.GetURLFields(c.Request.URL, filter)

	var templates []models.Budget
	err := models.DB.
		Order("name ASC").
		Where("domain = ?", models.DomainTemplate).
		Where(filter.model(), queryFields...).
		Find(&templates).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetListResponse{Error: &e})
		return
	}

	if slices.Contains(setFields, "Name") {
		templates = slices.DeleteFunc(templates, func(b models.Budget) bool {
			return !glob.Glob(filter.Name, b.Name)
		})
	}

	total := int64(len(templates))
	templates = paginate(templates, filter.Offset, filter.Limit, slices.Contains(setFields, "Limit"))

	apiResources := make([]Budget, 0)
	for _, template := range templates {
		apiResources = append(apiResources, newBudget(c, template))
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

// @Summary		Create templates
// @Description	Creates new templates. The domain is always set to "template".
// @Tags			Templates
// @Accept			json
// @Produce		json
// @Success		201			{object}	BudgetCreateResponse
// @Failure		400			{object}	BudgetCreateResponse
// @Failure		500			{object}	BudgetCreateResponse
// @Param			templates	body		[]BudgetEditable	true	"Templates"
// @Router			/v1/templates [post]
func CreateTemplates(c *gin.Context) {
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
		editable.Domain = models.DomainTemplate

		template := editable.model()
		template.CreatedByID = userID
		template.UpdatedByID = userID

		err := models.DB.Create(&template).Error
		if err != nil {
			httpStatus = r.appendError(err, httpStatus)
			continue
		}

		data := newBudget(c, template)
		r.Data = append(r.Data, BudgetResponse{Data: &data})
	}

	c.JSON(httpStatus, r)
}

// @Summary		Get template
// @Description	Returns a specific template
// @Tags			Templates
// @Produce		json
// @Success		200	{object}	BudgetResponse
// @Failure		400	{object}	BudgetResponse
// @Failure		404	{object}	BudgetResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/templates/{id} [get]
func GetTemplate(c *gin.Context) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	var template models.Budget
	err := models.DB.First(&template, "id = ? AND domain = ?", uri.ID.UUID, models.DomainTemplate).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	data := newBudget(c, template)
	c.JSON(http.StatusOK, BudgetResponse{Data: &data})
}

// DeriveRequest names the budget to be derived from a template.
type DeriveRequest struct {
	Name string `json:"name" example:"Feature Film 2027"` // Name for the new budget, defaults to the template's name
}

// @Summary		Derive budget
// @Description	Creates a budget in the budget domain from a template
// @Tags			Templates
// @Accept			json
// @Produce		json
// @Success		201		{object}	BudgetResponse
// @Failure		400		{object}	BudgetResponse
// @Failure		404		{object}	BudgetResponse
// @Param			id		path		URIID			true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			derive	body		DeriveRequest	false	"Derivation parameters"
// @Router			/v1/templates/{id}/derive [post]
func DeriveTemplate(c *gin.Context) {
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

	var request DeriveRequest
	if c.Request.ContentLength > 0 {
		if err := httputil.BindData(c, &request); err != nil {
			e := err.Error()
			c.JSON(status(err), BudgetResponse{Error: &e})
			return
		}
	}

	clone, err := duplicate.Derive(models.DB, uri.ID.UUID, userID, request.Name)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetResponse{Error: &e})
		return
	}

	data := newBudget(c, *clone)
	c.JSON(http.StatusCreated, BudgetResponse{Data: &data})
}
