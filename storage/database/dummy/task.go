package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/ritmatiza/core/task"
)

type taskRepository struct {
	tasks       *taskTable
	submissions *submissionTable
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *DB) task.Repository {
	return &taskRepository{tasks: db.task, submissions: db.submission}
}

func (repo *taskRepository) CreateTask(_ context.Context, t task.Task) (task.Task, error) {
	repo.tasks.Lock()
	defer repo.tasks.Unlock()

	repo.tasks.pk++
	t.ID = repo.tasks.pk
	repo.tasks.table[t.ID] = &t
	return t, nil
}

func (repo *taskRepository) GetTaskByID(_ context.Context, id int) (task.Task, error) {
	repo.tasks.RLock()
	defer repo.tasks.RUnlock()

	if t, ok := repo.tasks.table[id]; ok {
		return *t, nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) QueryTasks(_ context.Context, filter task.TaskFilter) ([]task.Task, error) {
	repo.tasks.RLock()
	defer repo.tasks.RUnlock()

	tasks := make([]task.Task, 0)
	for _, t := range repo.tasks.table {
		if filter.CreatorID != nil && t.CreatorID != *filter.CreatorID {
			continue
		}
		tasks = append(tasks, *t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID > tasks[j].ID
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	if filter.Limit > 0 && len(tasks) > filter.Limit {
		tasks = tasks[:filter.Limit]
	}
	return tasks, nil
}

func (repo *taskRepository) CreateSubmission(_ context.Context, s task.Submission) (task.Submission, error) {
	repo.submissions.Lock()
	defer repo.submissions.Unlock()

	repo.submissions.pk++
	s.ID = repo.submissions.pk
	repo.submissions.table[s.ID] = &s
	return s, nil
}

func (repo *taskRepository) GetSubmissionByID(_ context.Context, id int) (task.Submission, error) {
	repo.submissions.RLock()
	defer repo.submissions.RUnlock()

	if s, ok := repo.submissions.table[id]; ok {
		return *s, nil
	}
	return task.Submission{}, task.ErrSubmissionNotFound
}

func (repo *taskRepository) QuerySubmissions(_ context.Context, filter task.SubmissionFilter) ([]task.Submission, error) {
	var creatorTasks map[int]bool
	if filter.TaskCreatorID != nil {
		repo.tasks.RLock()
		creatorTasks = make(map[int]bool)
		for _, t := range repo.tasks.table {
			if t.CreatorID == *filter.TaskCreatorID {
				creatorTasks[t.ID] = true
			}
		}
		repo.tasks.RUnlock()
	}

	repo.submissions.RLock()
	defer repo.submissions.RUnlock()

	subs := make([]task.Submission, 0)
	for _, s := range repo.submissions.table {
		if filter.TaskID != nil && s.TaskID != *filter.TaskID {
			continue
		}
		if filter.StudentID != nil && s.StudentID != *filter.StudentID {
			continue
		}
		if creatorTasks != nil && !creatorTasks[s.TaskID] {
			continue
		}
		subs = append(subs, *s)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (repo *taskRepository) UpdateSubmission(_ context.Context, s task.Submission) (task.Submission, error) {
	repo.submissions.Lock()
	defer repo.submissions.Unlock()

	if _, ok := repo.submissions.table[s.ID]; !ok {
		return task.Submission{}, task.ErrSubmissionNotFound
	}
	repo.submissions.table[s.ID] = &s
	return s, nil
}
