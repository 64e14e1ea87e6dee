package sqlxrepos

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/task"
)

const (
	taskColumns       = `id, title, description, reward, creator_id, due_date, resubmittable, created_at, updated_at`
	submissionColumns = `id, task_id, student_id, path, status, grader_id, created_at, updated_at`
)

type taskRow struct {
	ID            int       `db:"id"`
	Title         string    `db:"title"`
	Description   string    `db:"description"`
	Reward        int       `db:"reward"`
	CreatorID     int       `db:"creator_id"`
	DueDate       time.Time `db:"due_date"`
	Resubmittable bool      `db:"resubmittable"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r taskRow) toTask() task.Task {
	return task.Task{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		Reward:        r.Reward,
		CreatorID:     r.CreatorID,
		DueDate:       r.DueDate.UTC(),
		Resubmittable: r.Resubmittable,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type submissionRow struct {
	ID        int       `db:"id"`
	TaskID    int       `db:"task_id"`
	StudentID int       `db:"student_id"`
	Path      string    `db:"path"`
	Status    string    `db:"status"`
	GraderID  null.Int  `db:"grader_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r submissionRow) toSubmission() task.Submission {
	s := task.Submission{
		ID:        r.ID,
		TaskID:    r.TaskID,
		StudentID: r.StudentID,
		Path:      r.Path,
		Status:    task.SubmissionStatus(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.GraderID.Valid {
		id := r.GraderID.Int
		s.GraderID = &id
	}
	return s
}

type taskRepository struct {
	db core.DBExecutor
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db core.DBExecutor) task.Repository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	var row taskRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO tasks (title, description, reward, creator_id, due_date, resubmittable, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+taskColumns,
		t.Title, t.Description, t.Reward, t.CreatorID, t.DueDate, t.Resubmittable, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return row.toTask(), nil
}

func (repo *taskRepository) GetTaskByID(ctx context.Context, id int) (task.Task, error) {
	var row taskRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id); err != nil {
		return task.Task{}, wrapErr(err, task.ErrNotFound, "task", "", "selecting task")
	}
	return row.toTask(), nil
}

func (repo *taskRepository) QueryTasks(ctx context.Context, filter task.TaskFilter) ([]task.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks`
	var args []interface{}
	if filter.CreatorID != nil {
		args = append(args, *filter.CreatorID)
		q += ` WHERE creator_id = $1`
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += ` LIMIT $` + strconv.Itoa(len(args))
	}

	var rows []taskRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting tasks")
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.toTask())
	}
	return tasks, nil
}

func (repo *taskRepository) CreateSubmission(ctx context.Context, s task.Submission) (task.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO submissions (task_id, student_id, path, status, grader_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+submissionColumns,
		s.TaskID, s.StudentID, s.Path, string(s.Status), intPtr(s.GraderID), s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return task.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return row.toSubmission(), nil
}

func (repo *taskRepository) GetSubmissionByID(ctx context.Context, id int) (task.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	if err != nil {
		return task.Submission{}, wrapErr(err, task.ErrSubmissionNotFound, "submission", "", "selecting submission")
	}
	return row.toSubmission(), nil
}

func (repo *taskRepository) QuerySubmissions(ctx context.Context, filter task.SubmissionFilter) ([]task.Submission, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, arg int) {
		args = append(args, arg)
		where = append(where, cond+strconv.Itoa(len(args)))
	}
	if filter.TaskID != nil {
		add("task_id = $", *filter.TaskID)
	}
	if filter.StudentID != nil {
		add("student_id = $", *filter.StudentID)
	}
	if filter.TaskCreatorID != nil {
		add("task_id IN (SELECT id FROM tasks WHERE creator_id = $", *filter.TaskCreatorID)
		where[len(where)-1] += ")"
	}
	q := `SELECT ` + submissionColumns + ` FROM submissions`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY id`

	var rows []submissionRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	subs := make([]task.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toSubmission())
	}
	return subs, nil
}

func (repo *taskRepository) UpdateSubmission(ctx context.Context, s task.Submission) (task.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE submissions SET path = $2, status = $3, grader_id = $4, updated_at = $5
		WHERE id = $1
		RETURNING `+submissionColumns,
		s.ID, s.Path, string(s.Status), intPtr(s.GraderID), s.UpdatedAt,
	)
	if err != nil {
		return task.Submission{}, wrapErr(err, task.ErrSubmissionNotFound, "submission", "", "updating submission")
	}
	return row.toSubmission(), nil
}
