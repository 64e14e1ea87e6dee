package task_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/task"
	"github.com/trezcool/ritmatiza/core/user"
	"github.com/trezcool/ritmatiza/services/logger"
	"github.com/trezcool/ritmatiza/storage/database/dummy"
	"github.com/trezcool/ritmatiza/tests"
)

var now = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type fixture struct {
	svc     *task.Service
	usrRepo user.Repository
	seq     int
}

func setup(t *testing.T) *fixture {
	db, err := dummydb.Open()
	require.NoError(t, err)
	usrRepo := dummydb.NewUserRepository(db)
	return &fixture{
		svc:     task.NewService(dummydb.NewTaskRepository(db), usrRepo, logsvc.NewNopLogger(), clock),
		usrRepo: usrRepo,
	}
}

func (f *fixture) createUser(t *testing.T, role user.Role, teacherID ...int) user.User {
	f.seq++
	var tid *int
	if len(teacherID) > 0 {
		tid = &teacherID[0]
	}
	return testutil.CreateUser(t, f.usrRepo, string(role), fmt.Sprintf("user%d@test.test", f.seq), role, 0, tid, now)
}

func (f *fixture) points(t *testing.T, id int) int {
	usr, err := f.usrRepo.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	return usr.Points
}

func newTask(title string, reward int) task.NewTask {
	return task.NewTask{Title: title, Description: "do it", Reward: reward, DueDate: now.Add(48 * time.Hour)}
}

func isPermissionErr(err error) bool {
	var permErr *core.PermissionError
	return errors.As(err, &permErr)
}

func TestNewTask_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	core.NowFunc = clock
	defer func() { core.NowFunc = core.SystemClock }()

	nt := task.NewTask{Title: "  Essay ", Description: "x", Reward: 5, DueDate: now.Add(24 * time.Hour)}
	require.NoError(t, nt.Validate(validate))
	assert.Equal(t, "Essay", nt.Title)

	nt = task.NewTask{Title: "Essay", Description: "x", Reward: 5, DueDate: now.Add(time.Hour)}
	var verrs validator.ValidationErrors
	require.True(t, errors.As(nt.Validate(validate), &verrs))
	assert.Equal(t, "due_date", verrs[0].Field())
	assert.Equal(t, "future_date", verrs[0].Tag())

	g := task.Grade{Status: task.SubmissionPending}
	assert.Error(t, g.Validate(validate))
	g = task.Grade{Status: task.SubmissionRejected}
	assert.NoError(t, g.Validate(validate))
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	teacher := f.createUser(t, user.RoleTeacher)
	student := f.createUser(t, user.RoleStudent, teacher.ID)

	_, err := f.svc.Create(ctx, student, newTask("Essay", 10))
	assert.True(t, isPermissionErr(err))

	tsk, err := f.svc.Create(ctx, teacher, newTask("Essay", 10))
	require.NoError(t, err)
	assert.Equal(t, teacher.ID, tsk.CreatorID)
	assert.Equal(t, now, tsk.CreatedAt)
	assert.NotZero(t, tsk.ID)
}

func TestService_listing(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	admin := f.createUser(t, user.RoleAdmin)
	teacher := f.createUser(t, user.RoleTeacher)
	other := f.createUser(t, user.RoleTeacher)
	student := f.createUser(t, user.RoleStudent, teacher.ID)
	orphan := f.createUser(t, user.RoleStudent)

	titles := func(tasks []task.Task) []string {
		res := make([]string, 0, len(tasks))
		for _, tsk := range tasks {
			res = append(res, tsk.Title)
		}
		return res
	}
	for _, title := range []string{"a", "b", "c"} {
		_, err := f.svc.Create(ctx, teacher, newTask(title, 1))
		require.NoError(t, err)
	}
	_, err := f.svc.Create(ctx, other, newTask("d", 1))
	require.NoError(t, err)

	latest, err := f.svc.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b"}, titles(latest))

	tests := []struct {
		name  string
		actor user.User
		want  []string
	}{
		{"admin", admin, []string{"d", "c", "b", "a"}},
		{"teacher", teacher, []string{"c", "b", "a"}},
		{"student", student, []string{"c", "b", "a"}},
		{"student without teacher", orphan, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.ListVisible(ctx, tt.actor)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	teacher := f.createUser(t, user.RoleTeacher)
	student := f.createUser(t, user.RoleStudent, teacher.ID)
	once, err := f.svc.Create(ctx, teacher, newTask("Essay", 10))
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, teacher, once.ID, task.NewSubmission{Path: "x"})
	assert.True(t, isPermissionErr(err))

	_, err = f.svc.Submit(ctx, student, 999, task.NewSubmission{Path: "x"})
	assert.Equal(t, task.ErrNotFound, err)

	s, err := f.svc.Submit(ctx, student, once.ID, task.NewSubmission{Path: "essays/ana.pdf"})
	require.NoError(t, err)
	assert.Equal(t, task.SubmissionPending, s.Status)
	assert.Equal(t, student.ID, s.StudentID)

	_, err = f.svc.Submit(ctx, student, once.ID, task.NewSubmission{Path: "essays/ana-v2.pdf"})
	var dupErr *core.DuplicateError
	assert.True(t, errors.As(err, &dupErr))

	mine, err := f.svc.MySubmissions(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, []task.Submission{s}, mine)
}

func TestService_Grade(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	admin := f.createUser(t, user.RoleAdmin)
	teacher := f.createUser(t, user.RoleTeacher)
	other := f.createUser(t, user.RoleTeacher)
	student := f.createUser(t, user.RoleStudent, teacher.ID)

	essay, err := f.svc.Create(ctx, teacher, newTask("Essay", 30))
	require.NoError(t, err)
	poem := newTask("Poem", 10)
	poem.Resubmittable = true
	retry, err := f.svc.Create(ctx, teacher, poem)
	require.NoError(t, err)

	s, err := f.svc.Submit(ctx, student, essay.ID, task.NewSubmission{Path: "a"})
	require.NoError(t, err)

	t.Run("queue", func(t *testing.T) {
		got, err := f.svc.SubmissionsToGrade(ctx, teacher)
		require.NoError(t, err)
		assert.Len(t, got, 1)

		got, err = f.svc.SubmissionsToGrade(ctx, other)
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = f.svc.SubmissionsToGrade(ctx, admin)
		require.NoError(t, err)
		assert.Len(t, got, 1)

		_, err = f.svc.SubmissionsToGrade(ctx, student)
		assert.True(t, isPermissionErr(err))
	})

	t.Run("not the creator", func(t *testing.T) {
		_, err := f.svc.Grade(ctx, other, s.ID, task.Grade{Status: task.SubmissionApproved})
		assert.True(t, isPermissionErr(err))
		assert.Zero(t, f.points(t, student.ID))
	})

	t.Run("unknown submission", func(t *testing.T) {
		_, err := f.svc.Grade(ctx, teacher, 999, task.Grade{Status: task.SubmissionApproved})
		assert.Equal(t, task.ErrSubmissionNotFound, err)
	})

	t.Run("approve once", func(t *testing.T) {
		got, err := f.svc.Grade(ctx, teacher, s.ID, task.Grade{Status: task.SubmissionApproved})
		require.NoError(t, err)
		assert.Equal(t, task.SubmissionApproved, got.Status)
		assert.Equal(t, teacher.ID, *got.GraderID)
		assert.Equal(t, 30, f.points(t, student.ID))

		_, err = f.svc.Grade(ctx, admin, s.ID, task.Grade{Status: task.SubmissionRejected})
		var trErr *core.InvalidTransitionError
		assert.True(t, errors.As(err, &trErr))
		assert.Equal(t, 30, f.points(t, student.ID))
	})

	t.Run("rejected resubmittable task", func(t *testing.T) {
		first, err := f.svc.Submit(ctx, student, retry.ID, task.NewSubmission{Path: "b"})
		require.NoError(t, err)
		_, err = f.svc.Grade(ctx, admin, first.ID, task.Grade{Status: task.SubmissionRejected})
		require.NoError(t, err)

		second, err := f.svc.Submit(ctx, student, retry.ID, task.NewSubmission{Path: "c"})
		require.NoError(t, err)
		_, err = f.svc.Grade(ctx, admin, second.ID, task.Grade{Status: task.SubmissionApproved})
		require.NoError(t, err)
		assert.Equal(t, 40, f.points(t, student.ID))

		_, err = f.svc.Submit(ctx, student, retry.ID, task.NewSubmission{Path: "d"})
		var dupErr *core.DuplicateError
		assert.True(t, errors.As(err, &dupErr))
	})
}
