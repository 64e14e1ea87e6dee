package sqlxrepos

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/music"
	"github.com/trezcool/ritmatiza/core/user"
)

var (
	now = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

	userCols = []string{
		"id", "name", "email", "role", "points", "teacher_id", "password_hash",
		"spotify_access_token", "spotify_refresh_token", "spotify_expires_at", "created_at", "updated_at",
	}
	entryCols      = []string{"id", "track_id", "title", "artist", "added_by", "playback_status", "created_at", "updated_at"}
	suggestionCols = []string{"id", "track_id", "title", "artist", "requested_by", "status", "created_at", "updated_at"}
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

func TestUserRepository_GetUserByID(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(1, "Ana", "ana@test.test", "ADMIN", 10, 2, []byte("hash"), "acc", "ref", now, now, now))
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(2).
		WillReturnError(sql.ErrNoRows)

	usr, err := repo.GetUserByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, usr.Role)
	require.NotNil(t, usr.TeacherID)
	assert.Equal(t, 2, *usr.TeacherID)
	assert.Equal(t, user.SpotifyCredentials{AccessToken: "acc", RefreshToken: "ref", ExpiresAt: now}, usr.Spotify)

	_, err = repo.GetUserByID(ctx, 2)
	assert.Equal(t, user.ErrNotFound, err)
}

func TestUserRepository_CreateUser_duplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.CreateUser(context.Background(), user.User{Email: "ana@test.test", Role: user.RoleStudent})
	dupErr, ok := err.(*core.DuplicateError)
	require.True(t, ok, "%T", err)
	assert.Equal(t, "ana@test.test", dupErr.Key)
}

func TestUserRepository_QueryUsers(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	teacherID := 3

	mock.ExpectQuery(`SELECT .+ FROM users WHERE role = \$1 AND teacher_id = \$2 ORDER BY id`).
		WithArgs("STUDENT", 3).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(4, "Leo", "leo@test.test", "STUDENT", 0, 3, []byte("h"), nil, nil, nil, now, now))

	users, err := repo.QueryUsers(context.Background(), user.QueryFilter{Role: user.RoleStudent, TeacherID: &teacherID})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Leo", users[0].Name)
	assert.False(t, users[0].Spotify.IsComplete())
}

func TestUserRepository_AddPoints(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`UPDATE users SET points = points \+ \$2\s+WHERE id = \$1 AND points \+ \$2 >= 0`).
		WithArgs(1, -50).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(1, "Ana", "ana@test.test", "STUDENT", 70, nil, []byte("h"), nil, nil, nil, now, now))

	// guarded update matched nothing: the balance is too low
	mock.ExpectQuery(`UPDATE users SET points`).WithArgs(1, -50).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(1, "Ana", "ana@test.test", "STUDENT", 20, nil, []byte("h"), nil, nil, nil, now, now))

	// unknown user
	mock.ExpectQuery(`UPDATE users SET points`).WithArgs(9, 10).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).WithArgs(9).WillReturnError(sql.ErrNoRows)

	usr, err := repo.AddPoints(ctx, 1, -50)
	require.NoError(t, err)
	assert.Equal(t, 70, usr.Points)

	_, err = repo.AddPoints(ctx, 1, -50)
	assert.Equal(t, &core.InsufficientPointsError{Have: 20, Need: 50}, err)

	_, err = repo.AddPoints(ctx, 9, 10)
	assert.Equal(t, user.ErrNotFound, err)
}

func TestUserRepository_credentials(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`UPDATE users SET spotify_access_token = \$2`).
		WithArgs(1, "acc", "ref", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET spotify_access_token = NULL`).
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetSpotifyCredentials(ctx, 1, user.SpotifyCredentials{AccessToken: "acc", RefreshToken: "ref", ExpiresAt: now}))
	assert.Equal(t, user.ErrNotFound, repo.ClearSpotifyCredentials(ctx, 2))
}

func TestMusicRepository_CreateSuggestion_duplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMusicRepository(db)

	mock.ExpectQuery(`INSERT INTO suggestions`).WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.CreateSuggestion(context.Background(), music.Suggestion{TrackID: "abc", Status: music.SuggestionPending})
	assert.Equal(t, &core.DuplicateError{Resource: "suggestion", Key: "abc"}, err)
}

func TestMusicRepository_UpdateSuggestionStatus(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewMusicRepository(db)
	update := `UPDATE suggestions SET status = \$3, updated_at = \$4 WHERE id = \$1 AND status = \$2`

	mock.ExpectQuery(update).
		WithArgs(1, "PENDING", "APPROVED", now).
		WillReturnRows(sqlmock.NewRows(suggestionCols).AddRow(1, "t1", "Song", "A", 5, "APPROVED", now, now))
	// lost the race: no row left in PENDING
	mock.ExpectQuery(update).
		WithArgs(1, "PENDING", "APPROVED", now).
		WillReturnRows(sqlmock.NewRows(suggestionCols))
	mock.ExpectQuery(`SELECT .+ FROM suggestions WHERE id = \$1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(suggestionCols).AddRow(1, "t1", "Song", "A", 5, "APPROVED", now, now))
	mock.ExpectQuery(update).
		WithArgs(2, "PENDING", "REJECTED", now).
		WillReturnRows(sqlmock.NewRows(suggestionCols))
	mock.ExpectQuery(`SELECT .+ FROM suggestions WHERE id = \$1`).
		WithArgs(2).
		WillReturnError(sql.ErrNoRows)

	s, err := repo.UpdateSuggestionStatus(ctx, 1, music.SuggestionPending, music.SuggestionApproved, now)
	require.NoError(t, err)
	assert.Equal(t, music.SuggestionApproved, s.Status)

	_, err = repo.UpdateSuggestionStatus(ctx, 1, music.SuggestionPending, music.SuggestionApproved, now)
	assert.Equal(t, &core.InvalidTransitionError{Resource: "suggestion", From: "APPROVED", To: "APPROVED"}, err)

	_, err = repo.UpdateSuggestionStatus(ctx, 2, music.SuggestionPending, music.SuggestionRejected, now)
	assert.Equal(t, music.ErrSuggestionNotFound, err)
}

func TestMusicRepository_QueryPlaylistEntries(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMusicRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM playlist_entries WHERE playback_status = \$1 ORDER BY id`).
		WithArgs("PENDING").
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow(1, "t1", "Song 1", "A", 5, "PENDING", now, now).
			AddRow(2, "t2", "Song 2", "B", 5, "PENDING", now, now))

	entries, err := repo.QueryPlaylistEntries(context.Background(), music.PlaylistFilter{PlaybackStatus: music.PlaybackPending})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "t1", entries[0].TrackID)
	assert.Equal(t, "t2", entries[1].TrackID)
}

func TestMusicRepository_exists(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewMusicRepository(db)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM playlist_entries WHERE track_id = \$1\)`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM suggestions WHERE track_id = \$1\)`).
		WithArgs("t2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.PlaylistEntryExists(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.SuggestionExists(ctx, "t2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMusicRepository_DeletePlaylistEntry(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewMusicRepository(db)

	mock.ExpectExec(`DELETE FROM playlist_entries WHERE id = \$1`).WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM playlist_entries WHERE id = \$1`).WithArgs(2).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeletePlaylistEntry(ctx, 1))
	assert.Equal(t, music.ErrPlaylistEntryNotFound, repo.DeletePlaylistEntry(ctx, 2))
}
