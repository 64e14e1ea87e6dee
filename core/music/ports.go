package music

import (
	"context"
	"time"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/user"
)

var (
	// errors
	ErrSuggestionNotFound    = core.NewNotFoundError("suggestion")
	ErrPlaylistEntryNotFound = core.NewNotFoundError("playlist entry")
)

type (
	// Repository persists suggestions and playlist entries.
	// Both tables are unique on track id: inserting a duplicate returns a *core.DuplicateError.
	Repository interface {
		CreateSuggestion(ctx context.Context, s Suggestion) (Suggestion, error)
		GetSuggestionByID(ctx context.Context, id int) (Suggestion, error)
		SuggestionExists(ctx context.Context, trackID string) (bool, error)
		// QuerySuggestions returns suggestions ordered by id.
		QuerySuggestions(ctx context.Context, filter SuggestionFilter) ([]Suggestion, error)
		// UpdateSuggestionStatus moves a suggestion from one status to another in a single step.
		// A suggestion no longer in status from is left untouched and a *core.InvalidTransitionError is returned.
		UpdateSuggestionStatus(ctx context.Context, id int, from, to SuggestionStatus, at time.Time) (Suggestion, error)

		CreatePlaylistEntry(ctx context.Context, e PlaylistEntry) (PlaylistEntry, error)
		GetPlaylistEntryByID(ctx context.Context, id int) (PlaylistEntry, error)
		PlaylistEntryExists(ctx context.Context, trackID string) (bool, error)
		// QueryPlaylistEntries returns entries ordered by id.
		QueryPlaylistEntries(ctx context.Context, filter PlaylistFilter) ([]PlaylistEntry, error)
		UpdatePlaybackStatus(ctx context.Context, id int, status PlaybackStatus, at time.Time) (PlaylistEntry, error)
		DeletePlaylistEntry(ctx context.Context, id int) error
	}

	// Accounts is the part of the user service the workflow needs.
	Accounts interface {
		GetByID(ctx context.Context, id int) (user.User, error)
		AddPoints(ctx context.Context, id, delta int) (user.User, error)
	}

	// CredentialStore persists the delegated credential triple of admin accounts.
	// ok is false when the access or the refresh token is missing.
	CredentialStore interface {
		GetCredentials(ctx context.Context, adminID int) (creds user.SpotifyCredentials, ok bool, err error)
		PutCredentials(ctx context.Context, adminID int, creds user.SpotifyCredentials) error
		ClearCredentials(ctx context.Context, adminID int) error
	}

	// Provider is the external music service. Token endpoint and read failures are
	// returned as *core.RemoteServiceError. AddTrack and RemoveTrack return false when the
	// playlist was left unchanged, with the cause in err when it is known.
	Provider interface {
		AuthURL(scope, state string) string
		ExchangeCode(ctx context.Context, code, redirectURI string) (Token, error)
		Refresh(ctx context.Context, refreshToken string) (Token, error)
		FetchProfile(ctx context.Context, accessToken string) (Profile, error)
		Search(ctx context.Context, query, accessToken string, limit int) ([]Track, error)
		AddTrack(ctx context.Context, trackURI, playlistID, accessToken string) (bool, error)
		RemoveTrack(ctx context.Context, trackURI, playlistID, accessToken string) (bool, error)
		ClientCredentialsToken(ctx context.Context) (string, error)
	}

	// StateStore keeps one anti-forgery state per admin. Pop reads and deletes atomically.
	StateStore interface {
		Put(ctx context.Context, adminID int, state string, ttl time.Duration) error
		Pop(ctx context.Context, adminID int) (state string, ok bool, err error)
	}
)
