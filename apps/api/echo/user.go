package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/user"
)

type userApi struct {
	conf     *core.Config
	svc      *user.Service
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, jwt, limit echo.MiddlewareFunc, s *server) {
	api := userApi{
		conf:     s.conf,
		svc:      s.deps.UserSvc,
		validate: s.validate,
	}

	// un-authed endpoints
	ag := g.Group("/auth")
	ag.POST("/register", api.register, limit)
	ag.POST("/login", api.login, limit)

	// authed endpoints
	ag.POST("/refresh", api.refreshToken, jwt)
	ag.POST("/logout", api.logout, jwt)
	ag.GET("/me", api.me, jwt)

	ug := g.Group("/users", jwt)
	ug.PUT("/me", api.updateMe)
	ug.GET("/me/teacher", api.myTeacher)

	staff := capabilityMiddleware(api.svc, user.CapGradeSubmissions)
	ug.GET("", api.query, staff)
	ug.PATCH("/:id/teacher", api.assignTeacher, staff)

	admin := capabilityMiddleware(api.svc, user.CapManageUsers)
	ug.POST("", api.create, admin)
	ug.GET("/teachers", api.teachers, admin)
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Register(rctx, data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return api.respondWithToken(ctx, http.StatusCreated, usr)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	return api.respondWithToken(ctx, http.StatusOK, usr)
}

func (api *userApi) respondWithToken(ctx echo.Context, code int, usr user.User) error {
	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr))
	if err != nil {
		return err
	}
	return ctx.JSON(code, LoginResponse{Token: token, User: &usr})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

// logout is stateless: the client drops its token.
func (api *userApi) logout(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Successfully logged out."})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updateMe(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	rctx := ctx.Request().Context()
	if err = data.Validate(rctx, usr, api.validate, api.svc); err != nil {
		return err
	}

	usr, err = api.svc.Update(rctx, usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) myTeacher(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	teacher, err := api.svc.Teacher(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "finding teacher")
	}
	return ctx.JSON(http.StatusOK, teacher)
}

func (api *userApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	users, err := api.svc.QueryVisible(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) assignTeacher(ctx echo.Context) error {
	studentID, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}

	var data AssignTeacherRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignTeacherRequest")
	}
	teacherID := usr.ID
	if data.TeacherID != nil {
		teacherID = *data.TeacherID
	}

	student, err := api.svc.AssignTeacher(ctx.Request().Context(), usr, studentID, teacherID)
	if err != nil {
		return errors.Wrap(err, "assigning teacher")
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Create(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) teachers(ctx echo.Context) error {
	users, err := api.svc.ListTeachers(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing teachers")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string     `json:"token"`
		User  *user.User `json:"user,omitempty"`
	}

	AssignTeacherRequest struct {
		TeacherID *int `json:"teacher_id"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}
