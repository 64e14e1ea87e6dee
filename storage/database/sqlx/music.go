package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/music"
)

const (
	suggestionColumns = `id, track_id, title, artist, requested_by, status, created_at, updated_at`
	entryColumns      = `id, track_id, title, artist, added_by, playback_status, created_at, updated_at`
)

type suggestionRow struct {
	ID          int       `db:"id"`
	TrackID     string    `db:"track_id"`
	Title       string    `db:"title"`
	Artist      string    `db:"artist"`
	RequestedBy int       `db:"requested_by"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r suggestionRow) toSuggestion() music.Suggestion {
	return music.Suggestion{
		ID:          r.ID,
		TrackID:     r.TrackID,
		Title:       r.Title,
		Artist:      r.Artist,
		RequestedBy: r.RequestedBy,
		Status:      music.SuggestionStatus(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type entryRow struct {
	ID             int       `db:"id"`
	TrackID        string    `db:"track_id"`
	Title          string    `db:"title"`
	Artist         string    `db:"artist"`
	AddedBy        int       `db:"added_by"`
	PlaybackStatus string    `db:"playback_status"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r entryRow) toEntry() music.PlaylistEntry {
	return music.PlaylistEntry{
		ID:             r.ID,
		TrackID:        r.TrackID,
		Title:          r.Title,
		Artist:         r.Artist,
		AddedBy:        r.AddedBy,
		PlaybackStatus: music.PlaybackStatus(r.PlaybackStatus),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

type musicRepository struct {
	db core.DBExecutor
}

var _ music.Repository = (*musicRepository)(nil) // interface compliance check

func NewMusicRepository(db core.DBExecutor) music.Repository {
	return &musicRepository{db: db}
}

func (repo *musicRepository) CreateSuggestion(ctx context.Context, s music.Suggestion) (music.Suggestion, error) {
	var row suggestionRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO suggestions (track_id, title, artist, requested_by, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+suggestionColumns,
		s.TrackID, s.Title, s.Artist, s.RequestedBy, string(s.Status), s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return music.Suggestion{}, wrapErr(err, nil, "suggestion", s.TrackID, "inserting suggestion")
	}
	return row.toSuggestion(), nil
}

func (repo *musicRepository) GetSuggestionByID(ctx context.Context, id int) (music.Suggestion, error) {
	var row suggestionRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+suggestionColumns+` FROM suggestions WHERE id = $1`, id)
	if err != nil {
		return music.Suggestion{}, wrapErr(err, music.ErrSuggestionNotFound, "suggestion", "", "selecting suggestion")
	}
	return row.toSuggestion(), nil
}

func (repo *musicRepository) SuggestionExists(ctx context.Context, trackID string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM suggestions WHERE track_id = $1)`, trackID)
	return exists, errors.Wrap(err, "checking suggestion")
}

func (repo *musicRepository) QuerySuggestions(ctx context.Context, filter music.SuggestionFilter) ([]music.Suggestion, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	if filter.RequestedBy != nil {
		args = append(args, *filter.RequestedBy)
		where = append(where, "requested_by = $"+strconv.Itoa(len(args)))
	}
	q := `SELECT ` + suggestionColumns + ` FROM suggestions`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY id`

	var rows []suggestionRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting suggestions")
	}
	res := make([]music.Suggestion, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toSuggestion())
	}
	return res, nil
}

func (repo *musicRepository) UpdateSuggestionStatus(
	ctx context.Context,
	id int,
	from, to music.SuggestionStatus,
	at time.Time,
) (music.Suggestion, error) {
	var row suggestionRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE suggestions SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2 RETURNING `+suggestionColumns,
		id, string(from), string(to), at,
	)
	if errors.Cause(err) == sql.ErrNoRows {
		current, err := repo.GetSuggestionByID(ctx, id)
		if err != nil {
			return music.Suggestion{}, err
		}
		return music.Suggestion{}, core.NewInvalidTransitionError("suggestion", string(current.Status), string(to))
	}
	if err != nil {
		return music.Suggestion{}, wrapErr(err, music.ErrSuggestionNotFound, "suggestion", "", "updating suggestion")
	}
	return row.toSuggestion(), nil
}

func (repo *musicRepository) CreatePlaylistEntry(ctx context.Context, e music.PlaylistEntry) (music.PlaylistEntry, error) {
	var row entryRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO playlist_entries (track_id, title, artist, added_by, playback_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+entryColumns,
		e.TrackID, e.Title, e.Artist, e.AddedBy, string(e.PlaybackStatus), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return music.PlaylistEntry{}, wrapErr(err, nil, "playlist entry", e.TrackID, "inserting playlist entry")
	}
	return row.toEntry(), nil
}

func (repo *musicRepository) GetPlaylistEntryByID(ctx context.Context, id int) (music.PlaylistEntry, error) {
	var row entryRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+entryColumns+` FROM playlist_entries WHERE id = $1`, id)
	if err != nil {
		return music.PlaylistEntry{}, wrapErr(err, music.ErrPlaylistEntryNotFound, "playlist entry", "", "selecting playlist entry")
	}
	return row.toEntry(), nil
}

func (repo *musicRepository) PlaylistEntryExists(ctx context.Context, trackID string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM playlist_entries WHERE track_id = $1)`, trackID)
	return exists, errors.Wrap(err, "checking playlist entry")
}

func (repo *musicRepository) QueryPlaylistEntries(ctx context.Context, filter music.PlaylistFilter) ([]music.PlaylistEntry, error) {
	q := `SELECT ` + entryColumns + ` FROM playlist_entries`
	var args []interface{}
	if filter.PlaybackStatus != "" {
		args = append(args, string(filter.PlaybackStatus))
		q += ` WHERE playback_status = $1`
	}
	q += ` ORDER BY id`

	var rows []entryRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting playlist entries")
	}
	res := make([]music.PlaylistEntry, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toEntry())
	}
	return res, nil
}

func (repo *musicRepository) UpdatePlaybackStatus(
	ctx context.Context,
	id int,
	status music.PlaybackStatus,
	at time.Time,
) (music.PlaylistEntry, error) {
	var row entryRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE playlist_entries SET playback_status = $2, updated_at = $3 WHERE id = $1 RETURNING `+entryColumns,
		id, string(status), at,
	)
	if err != nil {
		return music.PlaylistEntry{}, wrapErr(err, music.ErrPlaylistEntryNotFound, "playlist entry", "", "updating playlist entry")
	}
	return row.toEntry(), nil
}

func (repo *musicRepository) DeletePlaylistEntry(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM playlist_entries WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting playlist entry")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting playlist entry")
	}
	if n == 0 {
		return music.ErrPlaylistEntryNotFound
	}
	return nil
}
