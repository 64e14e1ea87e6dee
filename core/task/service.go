package task

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("task")
	ErrSubmissionNotFound = core.NewNotFoundError("submission")
)

type (
	Repository interface {
		CreateTask(ctx context.Context, t Task) (Task, error)
		GetTaskByID(ctx context.Context, id int) (Task, error)
		// QueryTasks returns tasks newest first.
		QueryTasks(ctx context.Context, filter TaskFilter) ([]Task, error)
		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		GetSubmissionByID(ctx context.Context, id int) (Submission, error)
		// QuerySubmissions returns submissions ordered by id.
		QuerySubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error)
		UpdateSubmission(ctx context.Context, s Submission) (Submission, error)
	}

	// PointsAwarder credits task rewards to students.
	PointsAwarder interface {
		AddPoints(ctx context.Context, id, delta int) (user.User, error)
	}

	Service struct {
		repo   Repository
		points PointsAwarder
		logger core.Logger
		now    core.Clock
	}
)

func NewService(repo Repository, points PointsAwarder, logger core.Logger, now ...core.Clock) *Service {
	clock := core.SystemClock
	if len(now) > 0 && now[0] != nil {
		clock = now[0]
	}
	return &Service{repo: repo, points: points, logger: logger, now: clock}
}

func (svc *Service) Create(ctx context.Context, actor user.User, nt NewTask) (Task, error) {
	if err := user.Require(actor, user.CapManageTasks); err != nil {
		return Task{}, err
	}
	now := svc.now()
	t, err := svc.repo.CreateTask(ctx, Task{
		Title:         nt.Title,
		Description:   nt.Description,
		Reward:        nt.Reward,
		CreatorID:     actor.ID,
		DueDate:       nt.DueDate.UTC(),
		Resubmittable: nt.Resubmittable,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	return t, errors.Wrap(err, "creating task")
}

func (svc *Service) Latest(ctx context.Context) ([]Task, error) {
	return svc.repo.QueryTasks(ctx, TaskFilter{Limit: LatestCount})
}

func (svc *Service) ByTeacher(ctx context.Context, teacherID int) ([]Task, error) {
	return svc.repo.QueryTasks(ctx, TaskFilter{CreatorID: &teacherID})
}

// ListVisible: admins see every task, teachers their own, students those of their teacher.
func (svc *Service) ListVisible(ctx context.Context, actor user.User) ([]Task, error) {
	switch {
	case actor.IsAdmin():
		return svc.repo.QueryTasks(ctx, TaskFilter{})
	case actor.IsTeacher():
		return svc.ByTeacher(ctx, actor.ID)
	case actor.TeacherID != nil:
		return svc.ByTeacher(ctx, *actor.TeacherID)
	}
	return []Task{}, nil
}

// Submit records a student's delivery for a task. A second submission is only accepted
// for resubmittable tasks whose previous submission was rejected.
func (svc *Service) Submit(ctx context.Context, actor user.User, taskID int, ns NewSubmission) (Submission, error) {
	if err := user.Require(actor, user.CapSubmitTasks); err != nil {
		return Submission{}, err
	}
	t, err := svc.repo.GetTaskByID(ctx, taskID)
	if err != nil {
		return Submission{}, err
	}

	prev, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{TaskID: &t.ID, StudentID: &actor.ID})
	if err != nil {
		return Submission{}, errors.Wrap(err, "querying previous submissions")
	}
	for _, s := range prev {
		if !(t.Resubmittable && s.Status == SubmissionRejected) {
			return Submission{}, core.NewDuplicateError("submission", fmt.Sprintf("task %d", t.ID))
		}
	}

	now := svc.now()
	s, err := svc.repo.CreateSubmission(ctx, Submission{
		TaskID:    t.ID,
		StudentID: actor.ID,
		Path:      ns.Path,
		Status:    SubmissionPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return s, errors.Wrap(err, "creating submission")
}

func (svc *Service) MySubmissions(ctx context.Context, actor user.User) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{StudentID: &actor.ID})
}

// SubmissionsToGrade: admins see all submissions, teachers those made on their tasks.
func (svc *Service) SubmissionsToGrade(ctx context.Context, actor user.User) ([]Submission, error) {
	if err := user.Require(actor, user.CapGradeSubmissions); err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return svc.repo.QuerySubmissions(ctx, SubmissionFilter{})
	}
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{TaskCreatorID: &actor.ID})
}

// Grade approves or rejects a pending submission. Approval credits the task reward to the student.
func (svc *Service) Grade(ctx context.Context, actor user.User, submissionID int, g Grade) (Submission, error) {
	if err := user.Require(actor, user.CapGradeSubmissions); err != nil {
		return Submission{}, err
	}
	s, err := svc.repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	t, err := svc.repo.GetTaskByID(ctx, s.TaskID)
	if err != nil {
		return Submission{}, errors.Wrap(err, "finding submission task")
	}
	if !actor.IsAdmin() && t.CreatorID != actor.ID {
		return Submission{}, core.NewPermissionError(string(user.CapGradeSubmissions))
	}
	if s.Status != SubmissionPending {
		return Submission{}, core.NewInvalidTransitionError("submission", string(s.Status), string(g.Status))
	}

	s.Status = g.Status
	s.GraderID = &actor.ID
	s.UpdatedAt = svc.now()
	if s, err = svc.repo.UpdateSubmission(ctx, s); err != nil {
		return Submission{}, errors.Wrap(err, "updating submission")
	}

	if s.Status == SubmissionApproved {
		if _, err = svc.points.AddPoints(ctx, s.StudentID, t.Reward); err != nil {
			return Submission{}, errors.Wrap(err, "awarding task reward")
		}
		svc.logger.Info(fmt.Sprintf("awarded %d points to user %d for task %d", t.Reward, s.StudentID, t.ID))
	}
	return s, nil
}
