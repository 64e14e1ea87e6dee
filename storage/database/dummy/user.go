package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

// query returns a copy of every row ordered by id. Callers hold the lock.
func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedIDs ...int) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.query() {
		if usr.Email == email && !isExcluded(usr.ID, excludedIDs) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, u := range repo.db.table {
		if u.Email == usr.Email {
			return user.User{}, core.NewDuplicateError("user", usr.Email)
		}
	}
	repo.db.pk++
	usr.ID = repo.db.pk
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id int) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if usr, ok := repo.db.table[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.query() {
		if usr.Email == email {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0)
	for _, u := range repo.query() {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.TeacherID != nil && (u.TeacherID == nil || *u.TeacherID != *filter.TeacherID) {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	// balance and credentials have their own operations
	usr.Points = orig.Points
	usr.Spotify = orig.Spotify
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) AddPoints(_ context.Context, id int, delta int) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.table[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if usr.Points+delta < 0 {
		return user.User{}, core.NewInsufficientPointsError(usr.Points, -delta)
	}
	usr.Points += delta
	return *usr, nil
}

func (repo *userRepository) SetSpotifyCredentials(_ context.Context, id int, creds user.SpotifyCredentials) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.table[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.Spotify = creds
	return nil
}

func (repo *userRepository) ClearSpotifyCredentials(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.table[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.Spotify = user.SpotifyCredentials{}
	return nil
}

func isExcluded(id int, excludedIDs []int) bool {
	for _, excl := range excludedIDs {
		if id == excl {
			return true
		}
	}
	return false
}
