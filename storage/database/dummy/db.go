package dummydb

import (
	"sync"

	"github.com/trezcool/ritmatiza/core/music"
	"github.com/trezcool/ritmatiza/core/task"
	"github.com/trezcool/ritmatiza/core/user"
)

type (
	// DB is an in-memory database used by tests and local demos.
	DB struct {
		user       *userTable
		task       *taskTable
		submission *submissionTable
		suggestion *suggestionTable
		playlist   *playlistTable
	}

	userTable struct {
		sync.RWMutex
		pk    int
		table map[int]*user.User
	}

	taskTable struct {
		sync.RWMutex
		pk    int
		table map[int]*task.Task
	}

	submissionTable struct {
		sync.RWMutex
		pk    int
		table map[int]*task.Submission
	}

	suggestionTable struct {
		sync.RWMutex
		pk    int
		table map[int]*music.Suggestion
	}

	playlistTable struct {
		sync.RWMutex
		pk    int
		table map[int]*music.PlaylistEntry
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[int]*user.User)},
		task:       &taskTable{table: make(map[int]*task.Task)},
		submission: &submissionTable{table: make(map[int]*task.Submission)},
		suggestion: &suggestionTable{table: make(map[int]*music.Suggestion)},
		playlist:   &playlistTable{table: make(map[int]*music.PlaylistEntry)},
	}
	return db, nil
}
