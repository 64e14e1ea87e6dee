package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ritmatiza/core/task"
	"github.com/trezcool/ritmatiza/core/user"
)

type taskApi struct {
	svc      *task.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerTaskAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *server) {
	api := taskApi{
		svc:      s.deps.TaskSvc,
		usrSvc:   s.deps.UserSvc,
		validate: s.validate,
	}

	tg := g.Group("/tasks")
	tg.GET("/latest", api.latest)
	tg.GET("/teacher/:id", api.byTeacher)

	tg.GET("", api.list, jwt)
	tg.POST("", api.create, jwt, capabilityMiddleware(api.usrSvc, user.CapManageTasks))
	tg.GET("/submissions", api.toGrade, jwt, capabilityMiddleware(api.usrSvc, user.CapGradeSubmissions))
	tg.POST("/:id/submissions", api.submit, jwt)

	sg := g.Group("/submissions", jwt)
	sg.GET("/mine", api.mine)
	sg.PATCH("/:id/grade", api.grade, capabilityMiddleware(api.usrSvc, user.CapGradeSubmissions))
}

func (api *taskApi) latest(ctx echo.Context) error {
	tasks, err := api.svc.Latest(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying latest tasks")
	}
	return ctx.JSON(http.StatusOK, nonNilTasks(tasks))
}

func (api *taskApi) byTeacher(ctx echo.Context) error {
	teacherID, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	tasks, err := api.svc.ByTeacher(ctx.Request().Context(), teacherID)
	if err != nil {
		return errors.Wrap(err, "querying teacher tasks")
	}
	return ctx.JSON(http.StatusOK, nonNilTasks(tasks))
}

func (api *taskApi) list(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	tasks, err := api.svc.ListVisible(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	return ctx.JSON(http.StatusOK, nonNilTasks(tasks))
}

func (api *taskApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	var data task.NewTask
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *taskApi) submit(ctx echo.Context) error {
	taskID, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	var data task.NewSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Submit(ctx.Request().Context(), usr, taskID, data)
	if err != nil {
		return errors.Wrap(err, "submitting task")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *taskApi) mine(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	subs, err := api.svc.MySubmissions(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	return ctx.JSON(http.StatusOK, nonNilSubmissions(subs))
}

func (api *taskApi) toGrade(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	subs, err := api.svc.SubmissionsToGrade(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying submissions to grade")
	}
	return ctx.JSON(http.StatusOK, nonNilSubmissions(subs))
}

func (api *taskApi) grade(ctx echo.Context) error {
	submissionID, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	var data task.Grade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Grade")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Grade(ctx.Request().Context(), usr, submissionID, data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, s)
}

func nonNilTasks(tasks []task.Task) []task.Task {
	if tasks == nil {
		return []task.Task{}
	}
	return tasks
}

func nonNilSubmissions(subs []task.Submission) []task.Submission {
	if subs == nil {
		return []task.Submission{}
	}
	return subs
}
