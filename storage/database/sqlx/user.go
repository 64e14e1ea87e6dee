package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/user"
)

const userColumns = `id, name, email, role, points, teacher_id, password_hash,
	spotify_access_token, spotify_refresh_token, spotify_expires_at, created_at, updated_at`

type userRow struct {
	ID                  int         `db:"id"`
	Name                string      `db:"name"`
	Email               string      `db:"email"`
	Role                string      `db:"role"`
	Points              int         `db:"points"`
	TeacherID           null.Int    `db:"teacher_id"`
	PasswordHash        []byte      `db:"password_hash"`
	SpotifyAccessToken  null.String `db:"spotify_access_token"`
	SpotifyRefreshToken null.String `db:"spotify_refresh_token"`
	SpotifyExpiresAt    null.Time   `db:"spotify_expires_at"`
	CreatedAt           time.Time   `db:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at"`
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         user.Role(r.Role),
		Points:       r.Points,
		PasswordHash: r.PasswordHash,
		Spotify: user.SpotifyCredentials{
			AccessToken:  r.SpotifyAccessToken.String,
			RefreshToken: r.SpotifyRefreshToken.String,
		},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.TeacherID.Valid {
		id := r.TeacherID.Int
		usr.TeacherID = &id
	}
	if r.SpotifyExpiresAt.Valid {
		usr.Spotify.ExpiresAt = r.SpotifyExpiresAt.Time.UTC()
	}
	return usr
}

func intPtr(p *int) null.Int {
	if p == nil {
		return null.Int{}
	}
	return null.IntFrom(*p)
}

type userRepository struct {
	db core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DBExecutor) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) get(ctx context.Context, where string, arg interface{}) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if err != nil {
		return user.User{}, wrapErr(err, user.ErrNotFound, "user", "", "selecting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...int) error {
	ids := make(pq.Int64Array, 0, len(excludedIDs))
	for _, id := range excludedIDs {
		ids = append(ids, int64(id))
	}
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND NOT (id = ANY($2)))`, email, ids)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO users (name, email, role, points, teacher_id, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+userColumns,
		usr.Name, usr.Email, string(usr.Role), usr.Points, intPtr(usr.TeacherID), usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, wrapErr(err, nil, "user", usr.Email, "inserting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	return repo.get(ctx, `id = $1`, id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.get(ctx, `email = $1`, email)
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		where = append(where, "role = $"+strconv.Itoa(len(args)))
	}
	if filter.TeacherID != nil {
		args = append(args, *filter.TeacherID)
		where = append(where, "teacher_id = $"+strconv.Itoa(len(args)))
	}
	q := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY id`

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE users SET name = $2, email = $3, role = $4, teacher_id = $5, password_hash = $6, updated_at = $7
		WHERE id = $1
		RETURNING `+userColumns,
		usr.ID, usr.Name, usr.Email, string(usr.Role), intPtr(usr.TeacherID), usr.PasswordHash, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, wrapErr(err, user.ErrNotFound, "user", usr.Email, "updating user")
	}
	return row.toUser(), nil
}

// AddPoints is a single guarded UPDATE: concurrent debits can never take the balance below zero.
func (repo *userRepository) AddPoints(ctx context.Context, id int, delta int) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE users SET points = points + $2
		WHERE id = $1 AND points + $2 >= 0
		RETURNING `+userColumns,
		id, delta,
	)
	if err == nil {
		return row.toUser(), nil
	}
	if errors.Cause(err) != sql.ErrNoRows {
		return user.User{}, errors.Wrap(err, "updating points")
	}
	usr, err := repo.GetUserByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	return user.User{}, core.NewInsufficientPointsError(usr.Points, -delta)
}

func (repo *userRepository) SetSpotifyCredentials(ctx context.Context, id int, creds user.SpotifyCredentials) error {
	return repo.execOne(ctx, `
		UPDATE users SET spotify_access_token = $2, spotify_refresh_token = $3, spotify_expires_at = $4
		WHERE id = $1`,
		id, null.StringFrom(creds.AccessToken), null.StringFrom(creds.RefreshToken), null.TimeFrom(creds.ExpiresAt),
	)
}

func (repo *userRepository) ClearSpotifyCredentials(ctx context.Context, id int) error {
	return repo.execOne(ctx, `
		UPDATE users SET spotify_access_token = NULL, spotify_refresh_token = NULL, spotify_expires_at = NULL
		WHERE id = $1`,
		id,
	)
}

func (repo *userRepository) execOne(ctx context.Context, q string, args ...interface{}) error {
	res, err := repo.db.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, "updating spotify credentials")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "updating spotify credentials")
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}
