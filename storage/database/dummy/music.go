package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/music"
)

type musicRepository struct {
	suggestions *suggestionTable
	playlist    *playlistTable
}

var _ music.Repository = (*musicRepository)(nil) // interface compliance check

func NewMusicRepository(db *DB) music.Repository {
	return &musicRepository{suggestions: db.suggestion, playlist: db.playlist}
}

func (repo *musicRepository) CreateSuggestion(_ context.Context, s music.Suggestion) (music.Suggestion, error) {
	repo.suggestions.Lock()
	defer repo.suggestions.Unlock()

	for _, other := range repo.suggestions.table {
		if other.TrackID == s.TrackID {
			return music.Suggestion{}, core.NewDuplicateError("suggestion", s.TrackID)
		}
	}
	repo.suggestions.pk++
	s.ID = repo.suggestions.pk
	repo.suggestions.table[s.ID] = &s
	return s, nil
}

func (repo *musicRepository) GetSuggestionByID(_ context.Context, id int) (music.Suggestion, error) {
	repo.suggestions.RLock()
	defer repo.suggestions.RUnlock()

	if s, ok := repo.suggestions.table[id]; ok {
		return *s, nil
	}
	return music.Suggestion{}, music.ErrSuggestionNotFound
}

func (repo *musicRepository) SuggestionExists(_ context.Context, trackID string) (bool, error) {
	repo.suggestions.RLock()
	defer repo.suggestions.RUnlock()

	for _, s := range repo.suggestions.table {
		if s.TrackID == trackID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *musicRepository) QuerySuggestions(_ context.Context, filter music.SuggestionFilter) ([]music.Suggestion, error) {
	repo.suggestions.RLock()
	defer repo.suggestions.RUnlock()

	res := make([]music.Suggestion, 0)
	for _, s := range repo.suggestions.table {
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.RequestedBy != nil && s.RequestedBy != *filter.RequestedBy {
			continue
		}
		res = append(res, *s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (repo *musicRepository) UpdateSuggestionStatus(
	_ context.Context,
	id int,
	from, to music.SuggestionStatus,
	at time.Time,
) (music.Suggestion, error) {
	repo.suggestions.Lock()
	defer repo.suggestions.Unlock()

	s, ok := repo.suggestions.table[id]
	if !ok {
		return music.Suggestion{}, music.ErrSuggestionNotFound
	}
	if s.Status != from {
		return music.Suggestion{}, core.NewInvalidTransitionError("suggestion", string(s.Status), string(to))
	}
	s.Status = to
	s.UpdatedAt = at
	return *s, nil
}

func (repo *musicRepository) CreatePlaylistEntry(_ context.Context, e music.PlaylistEntry) (music.PlaylistEntry, error) {
	repo.playlist.Lock()
	defer repo.playlist.Unlock()

	for _, other := range repo.playlist.table {
		if other.TrackID == e.TrackID {
			return music.PlaylistEntry{}, core.NewDuplicateError("playlist entry", e.TrackID)
		}
	}
	repo.playlist.pk++
	e.ID = repo.playlist.pk
	repo.playlist.table[e.ID] = &e
	return e, nil
}

func (repo *musicRepository) GetPlaylistEntryByID(_ context.Context, id int) (music.PlaylistEntry, error) {
	repo.playlist.RLock()
	defer repo.playlist.RUnlock()

	if e, ok := repo.playlist.table[id]; ok {
		return *e, nil
	}
	return music.PlaylistEntry{}, music.ErrPlaylistEntryNotFound
}

func (repo *musicRepository) PlaylistEntryExists(_ context.Context, trackID string) (bool, error) {
	repo.playlist.RLock()
	defer repo.playlist.RUnlock()

	for _, e := range repo.playlist.table {
		if e.TrackID == trackID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *musicRepository) QueryPlaylistEntries(_ context.Context, filter music.PlaylistFilter) ([]music.PlaylistEntry, error) {
	repo.playlist.RLock()
	defer repo.playlist.RUnlock()

	res := make([]music.PlaylistEntry, 0)
	for _, e := range repo.playlist.table {
		if filter.PlaybackStatus != "" && e.PlaybackStatus != filter.PlaybackStatus {
			continue
		}
		res = append(res, *e)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (repo *musicRepository) UpdatePlaybackStatus(
	_ context.Context,
	id int,
	status music.PlaybackStatus,
	at time.Time,
) (music.PlaylistEntry, error) {
	repo.playlist.Lock()
	defer repo.playlist.Unlock()

	e, ok := repo.playlist.table[id]
	if !ok {
		return music.PlaylistEntry{}, music.ErrPlaylistEntryNotFound
	}
	e.PlaybackStatus = status
	e.UpdatedAt = at
	return *e, nil
}

func (repo *musicRepository) DeletePlaylistEntry(_ context.Context, id int) error {
	repo.playlist.Lock()
	defer repo.playlist.Unlock()

	if _, ok := repo.playlist.table[id]; !ok {
		return music.ErrPlaylistEntryNotFound
	}
	delete(repo.playlist.table, id)
	return nil
}
