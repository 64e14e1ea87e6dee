package task

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ritmatiza/core"
)

type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "PENDING"
	SubmissionApproved SubmissionStatus = "APPROVED"
	SubmissionRejected SubmissionStatus = "REJECTED"
)

// LatestCount is the number of tasks shown on the public landing page.
const LatestCount = 3

type Task struct {
	ID            int       `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Reward        int       `json:"reward"`
	CreatorID     int       `json:"creator_id"`
	DueDate       time.Time `json:"due_date"`
	Resubmittable bool      `json:"resubmittable"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

type Submission struct {
	ID        int              `json:"id"`
	TaskID    int              `json:"task_id"`
	StudentID int              `json:"student_id"`
	Path      string           `json:"path"`
	Status    SubmissionStatus `json:"status"`
	GraderID  *int             `json:"grader_id"`
	CreatedAt time.Time        `json:"created_at"` // UTC
	UpdatedAt time.Time        `json:"updated_at"` // UTC
}

type NewTask struct {
	Title         string    `json:"title" validate:"required,max=255"`
	Description   string    `json:"description" validate:"required"`
	Reward        int       `json:"reward" validate:"required,min=1"`
	DueDate       time.Time `json:"due_date" validate:"required,future_date"`
	Resubmittable bool      `json:"resubmittable"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	return validate.Struct(nt)
}

type NewSubmission struct {
	Path string `json:"path" validate:"required,max=255"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.Path = core.CleanString(ns.Path)
	return validate.Struct(ns)
}

type Grade struct {
	Status SubmissionStatus `json:"status" validate:"required,oneof=APPROVED REJECTED"`
}

func (g Grade) Validate(validate *validator.Validate) error { return validate.Struct(g) }

type TaskFilter struct {
	CreatorID *int
	Limit     int // 0: no limit
}

type SubmissionFilter struct {
	TaskID        *int
	StudentID     *int
	TaskCreatorID *int
}
