package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/happybudget/backend/internal/httputil"
	"github.com/happybudget/backend/internal/models"
	"golang.org/x/exp/slices"
)

// RegisterUserRoutes registers the routes for users with the RouterGroup
// that is passed.
func RegisterUserRoutes(r *gin.RouterGroup) {
	// Root group
	{
		r.OPTIONS("", OptionsUserList)
		r.GET("", GetUsers)
		r.POST("", CreateUsers)
	}

	// User with ID
	{
		r.OPTIONS("/:id", OptionsUserDetail)
		r.GET("/:id", GetUser)
		r.PATCH("/:id", UpdateUser)
	}
}

type UserEditable struct {
	Email     string `json:"email" example:"annie@example.com" default:""` // Unique email address
	FirstName string `json:"firstName" example:"Annie" default:""`        // Given name
	LastName  string `json:"lastName" example:"Hall" default:""`          // Family name
}

// model returns the database resource for the editable fields.
func (editable UserEditable) model() models.User {
	return models.User{
		Email:     editable.Email,
		FirstName: editable.FirstName,
		LastName:  editable.LastName,
	}
}

type UserLinks struct {
	Self string `json:"self" example:"https://example.com/api/v1/users/d3fbb173-4cd1-4a5a-b460-296b7b6f8033"`
}

// User is the API v1 representation of a user.
type User struct {
	models.DefaultModel
	UserEditable
	FullName string    `json:"fullName" example:"Annie Hall"` // First and last name combined
	Links    UserLinks `json:"links"`
}

func newUser(c *gin.Context, model models.User) User {
	url := httputil.RequestPathV1(c)

	return User{
		DefaultModel: model.DefaultModel,
		UserEditable: UserEditable{
			Email:     model.Email,
			FirstName: model.FirstName,
			LastName:  model.LastName,
		},
		FullName: model.FullName(),
		Links: UserLinks{
			Self: fmt.Sprintf("%s/users/%s", url, model.ID),
		},
	}
}

type UserListResponse struct {
	Data       []User      `json:"data"`                                                          // List of users
	Error      *string     `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Pagination *Pagination `json:"pagination"`                                                    // Pagination information
}

type UserCreateResponse struct {
	Error *string        `json:"error" example:"the request body must not be empty"` // The error, if any occurred
	Data  []UserResponse `json:"data"`                                               // List of created users
}

func (r *UserCreateResponse) appendError(err error, currentStatus int) int {
	s := err.Error()
	r.Data = append(r.Data, UserResponse{Error: &s})

	// The final status code is the highest HTTP status code number
	newStatus := status(err)
	if newStatus > currentStatus {
		return newStatus
	}

	return currentStatus
}

type UserResponse struct {
	Data  *User   `json:"data"`                                                          // Data for the user
	Error *string `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
}

type UserQueryFilter struct {
	Email  string `form:"email"`                      // By full email address
	Search string `form:"search" filterField:"false"` // By substring of email or name
	Offset uint   `form:"offset" filterField:"false"` // The offset of the first user returned. Defaults to 0.
	Limit  int    `form:"limit" filterField:"false"`  // Maximum number of users to return. Defaults to 50.
}

func (f UserQueryFilter) model() models.User {
	return models.User{
		Email: f.Email,
	}
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Users
// @Success		204
// @Router			/v1/users [options]
func OptionsUserList(c *gin.Context) {
	httputil.OptionsGetPost(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Users
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/users/{id} [options]
func OptionsUserDetail(c *gin.Context) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	var user models.User
	if err := models.DB.First(&user, "id = ?", uri.ID.UUID).Error; err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	httputil.OptionsGetPatch(c)
}

// @Summary		List users
// @Description	Returns a list of users
// @Tags			Users
// @Produce		json
// @Success		200	{object}	UserListResponse
// @Failure		500	{object}	UserListResponse
// @Router			/v1/users [get]
// @Param			email	query	string	false	"Filter by full email address"
// @Param			search	query	string	false	"Search for this text in email, first and last name"
// @Param			offset	query	uint	false	"The offset of the first user returned. Defaults to 0."
// @Param			limit	query	int		false	"Maximum number of users to return. Defaults to 50."
func GetUsers(c *gin.Context) {
	var filter UserQueryFilter

	// Every parameter is bound into a string, so this will always succeed
	_ = c.Bind(&filter)

	queryFields, setFields := httputil.GetURLFields(c.Request.URL, filter)

	var users []models.User
	err := models.DB.
		Order("email ASC").
		Where(filter.model(), queryFields...).
		Find(&users).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), UserListResponse{Error: &e})
		return
	}

	if slices.Contains(setFields, "Search") {
		users = slices.DeleteFunc(users, func(u models.User) bool {
			return !contains(u.Email, filter.Search) && !contains(u.FullName(), filter.Search)
		})
	}

	total := int64(len(users))
	users = paginate(users, filter.Offset, filter.Limit, slices.Contains(setFields, "Limit"))

	apiResources := make([]User, 0)
	for _, user := range users {
		apiResources = append(apiResources, newUser(c, user))
	}

	c.JSON(http.StatusOK, UserListResponse{
		Data: apiResources,
		Pagination: &Pagination{
			Count:  len(apiResources),
			Total:  total,
			Offset: filter.Offset,
			Limit:  limitOrDefault(filter.Limit, slices.Contains(setFields, "Limit")),
		},
	})
}

// @Summary		Create users
// @Description	Creates new users
// @Tags			Users
// @Accept			json
// @Produce		json
// @Success		201		{object}	UserCreateResponse
// @Failure		400		{object}	UserCreateResponse
// @Failure		500		{object}	UserCreateResponse
// @Param			users	body		[]UserEditable	true	"Users"
// @Router			/v1/users [post]
func CreateUsers(c *gin.Context) {
	var editables []UserEditable
	if err := httputil.BindData(c, &editables); err != nil {
		e := err.Error()
		c.JSON(status(err), UserCreateResponse{Error: &e})
		return
	}

	// The final http status. Will be modified when errors occur
	httpStatus := http.StatusCreated
	r := UserCreateResponse{}

	for _, editable := range editables {
		user := editable.model()

		err := models.DB.Create(&user).Error
		if err != nil {
			httpStatus = r.appendError(err, httpStatus)
			continue
		}

		data := newUser(c, user)
		r.Data = append(r.Data, UserResponse{Data: &data})
	}

	c.JSON(httpStatus, r)
}

// @Summary		Get user
// @Description	Returns a specific user
// @Tags			Users
// @Produce		json
// @Success		200	{object}	UserResponse
// @Failure		400	{object}	UserResponse
// @Failure		404	{object}	UserResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/users/{id} [get]
func GetUser(c *gin.Context) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		e := err.Error()
		c.JSON(status(err), UserResponse{Error: &e})
		return
	}

	var user models.User
	if err := models.DB.First(&user, "id = ?", uri.ID.UUID).Error; err != nil {
		e := err.Error()
		c.JSON(status(err), UserResponse{Error: &e})
		return
	}

	resource := newUser(c, user)
	c.JSON(http.StatusOK, UserResponse{Data: &resource})
}

// UserUpdate contains the updatable fields of a user. Fields that are not
// set are left untouched.
type UserUpdate struct {
	Email     *string `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

// @Summary		Update user
// @Description	Updates an existing user. Only values to be updated need to be specified.
// @Tags			Users
// @Accept			json
// @Produce		json
// @Success		200		{object}	UserResponse
// @Failure		400		{object}	UserResponse
// @Failure		404		{object}	UserResponse
// @Param			id		path		URIID		true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			user	body		UserUpdate	true	"User"
// @Router			/v1/users/{id} [patch]
func UpdateUser(c *gin.Context) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		e := err.Error()
		c.JSON(status(err), UserResponse{Error: &e})
		return
	}

	var user models.User
	if err := models.DB.First(&user, "id = ?", uri.ID.UUID).Error; err != nil {
		e := err.Error()
		c.JSON(status(err), UserResponse{Error: &e})
		return
	}

	var update UserUpdate
	if err := httputil.BindData(c, &update); err != nil {
		e := err.Error()
		c.JSON(status(err), UserResponse{Error: &e})
		return
	}

	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}

	if err := models.DB.Save(&user).Error; err != nil {
		e := err.Error()
		c.JSON(status(err), UserResponse{Error: &e})
		return
	}

	resource := newUser(c, user)
	c.JSON(http.StatusOK, UserResponse{Data: &resource})
}
