package music

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/user"
)

var (
	reauthRequiredMsg = "spotify authorization required: an administrator must reconnect the account"
	errQueryTooShort  = fmt.Errorf("query must contain at least %d characters", MinQueryLength)
)

type Options struct {
	// PlaylistID is the single playlist every mutation targets.
	PlaylistID string
	// CompensateOnRemoteFailure refunds the requester and puts the suggestion back to PENDING
	// when the provider refuses to add an approved track.
	CompensateOnRemoteFailure bool
}

type Service struct {
	repo     Repository
	accounts Accounts
	tokens   *TokenManager
	provider Provider
	logger   core.Logger
	opts     Options
	now      core.Clock
}

func NewService(
	repo Repository,
	accounts Accounts,
	tokens *TokenManager,
	provider Provider,
	logger core.Logger,
	opts Options,
	now ...core.Clock,
) *Service {
	clock := core.SystemClock
	if len(now) > 0 && now[0] != nil {
		clock = now[0]
	}
	return &Service{
		repo:     repo,
		accounts: accounts,
		tokens:   tokens,
		provider: provider,
		logger:   logger,
		opts:     opts,
		now:      clock,
	}
}

// Suggestions

func (svc *Service) Submit(ctx context.Context, requester user.User, ns NewSuggestion) (Suggestion, error) {
	if err := user.Require(requester, user.CapSuggestSongs); err != nil {
		return Suggestion{}, err
	}
	exists, err := svc.repo.SuggestionExists(ctx, ns.TrackID)
	if err != nil {
		return Suggestion{}, errors.Wrap(err, "checking suggestion uniqueness")
	}
	if exists {
		return Suggestion{}, core.NewDuplicateError("suggestion", ns.TrackID)
	}

	now := svc.now()
	s, err := svc.repo.CreateSuggestion(ctx, Suggestion{
		TrackID:     ns.TrackID,
		Title:       ns.Title,
		Artist:      ns.Artist,
		RequestedBy: requester.ID,
		Status:      SuggestionPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Suggestion{}, errors.Wrap(err, "creating suggestion")
	}
	return s, nil
}

// ListVisible returns every pending suggestion to teachers and admins,
// and their own suggestions (any status) to everybody else.
func (svc *Service) ListVisible(ctx context.Context, actor user.User) ([]Suggestion, error) {
	if user.HasCapability(actor, user.CapViewAllSuggestions) {
		return svc.repo.QuerySuggestions(ctx, SuggestionFilter{Status: SuggestionPending})
	}
	return svc.repo.QuerySuggestions(ctx, SuggestionFilter{RequestedBy: &actor.ID})
}

// Approve moves a pending suggestion to APPROVED, debits the requester and adds the track to the
// playlist. The status change is a compare-and-set from PENDING: of concurrent approvals only one
// debits and calls the provider. The debit and the status change are kept when the provider
// refuses the track (unless Options.CompensateOnRemoteFailure is set); an APPROVED suggestion is
// never approved again.
func (svc *Service) Approve(ctx context.Context, suggestionID int, admin user.User) (PlaylistEntry, error) {
	if err := user.Require(admin, user.CapManagePlaylist); err != nil {
		return PlaylistEntry{}, err
	}
	s, err := svc.repo.GetSuggestionByID(ctx, suggestionID)
	if err != nil {
		return PlaylistEntry{}, err
	}
	if s.Status != SuggestionPending {
		return PlaylistEntry{}, core.NewInvalidTransitionError("suggestion", string(s.Status), string(SuggestionApproved))
	}

	inPlaylist, err := svc.repo.PlaylistEntryExists(ctx, s.TrackID)
	if err != nil {
		return PlaylistEntry{}, errors.Wrap(err, "checking playlist uniqueness")
	}
	if inPlaylist {
		return PlaylistEntry{}, core.NewDuplicateError("playlist entry", s.TrackID)
	}

	token, ok, err := svc.tokens.UsableAccessToken(ctx, admin.ID)
	if err != nil {
		return PlaylistEntry{}, errors.Wrap(err, "getting admin access token")
	}
	if !ok {
		return PlaylistEntry{}, core.NewAuthRequiredError(reauthRequiredMsg)
	}

	if s, err = svc.repo.UpdateSuggestionStatus(ctx, s.ID, SuggestionPending, SuggestionApproved, svc.now()); err != nil {
		return PlaylistEntry{}, err
	}
	debited, err := svc.debitRequester(ctx, s)
	if err != nil {
		svc.restorePending(ctx, s)
		return PlaylistEntry{}, err
	}

	trackURI := TrackURI(s.TrackID)
	added, err := svc.provider.AddTrack(ctx, trackURI, svc.opts.PlaylistID, token)
	if err != nil || !added {
		svc.logger.Error("adding track to the playlist failed", err, map[string]interface{}{
			"track_uri": trackURI,
			"admin_id":  admin.ID,
		})
		if svc.opts.CompensateOnRemoteFailure {
			svc.compensate(ctx, s, debited)
		}
		return PlaylistEntry{}, core.NewRemoteMutationError("adding track", err)
	}

	now := svc.now()
	entry, err := svc.repo.CreatePlaylistEntry(ctx, PlaylistEntry{
		TrackID:        s.TrackID,
		Title:          s.Title,
		Artist:         s.Artist,
		AddedBy:        admin.ID,
		PlaybackStatus: PlaybackPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return PlaylistEntry{}, errors.Wrap(err, "creating playlist entry")
	}
	return entry, nil
}

// debitRequester charges SuggestionCost to the requester. A requester that no longer exists
// is tolerated: the approval goes on without any debit.
func (svc *Service) debitRequester(ctx context.Context, s Suggestion) (bool, error) {
	requester, err := svc.accounts.GetByID(ctx, s.RequestedBy)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			svc.logger.Warn(fmt.Sprintf("requester %d of suggestion %d not found: no points debited", s.RequestedBy, s.ID))
			return false, nil
		}
		return false, errors.Wrap(err, "loading requester")
	}
	if requester.Points < SuggestionCost {
		return false, core.NewInsufficientPointsError(requester.Points, SuggestionCost)
	}
	requester, err = svc.accounts.AddPoints(ctx, requester.ID, -SuggestionCost)
	if err != nil {
		if _, ok := errors.Cause(err).(*core.InsufficientPointsError); ok {
			return false, err
		}
		return false, errors.Wrap(err, "debiting requester")
	}
	svc.logger.Info(fmt.Sprintf("debited %d points from user %d for suggestion %d", SuggestionCost, requester.ID, s.ID),
		map[string]interface{}{"points": requester.Points})
	return true, nil
}

func (svc *Service) compensate(ctx context.Context, s Suggestion, debited bool) {
	if debited {
		if _, err := svc.accounts.AddPoints(ctx, s.RequestedBy, SuggestionCost); err != nil {
			svc.logger.Error(fmt.Sprintf("refunding user %d for suggestion %d failed", s.RequestedBy, s.ID), err)
		}
	}
	svc.restorePending(ctx, s)
}

func (svc *Service) restorePending(ctx context.Context, s Suggestion) {
	if _, err := svc.repo.UpdateSuggestionStatus(ctx, s.ID, SuggestionApproved, SuggestionPending, svc.now()); err != nil {
		svc.logger.Error(fmt.Sprintf("restoring suggestion %d to PENDING failed", s.ID), err)
	}
}

func (svc *Service) Reject(ctx context.Context, suggestionID int, admin user.User) (Suggestion, error) {
	if err := user.Require(admin, user.CapManagePlaylist); err != nil {
		return Suggestion{}, err
	}
	s, err := svc.repo.GetSuggestionByID(ctx, suggestionID)
	if err != nil {
		return Suggestion{}, err
	}
	if s.Status != SuggestionPending {
		return Suggestion{}, core.NewInvalidTransitionError("suggestion", string(s.Status), string(SuggestionRejected))
	}
	return svc.repo.UpdateSuggestionStatus(ctx, s.ID, SuggestionPending, SuggestionRejected, svc.now())
}

// Playlist

// MarkPlayed flags an entry as played. The entry stays in the table.
func (svc *Service) MarkPlayed(ctx context.Context, entryID int, admin user.User) (PlaylistEntry, error) {
	if err := user.Require(admin, user.CapManagePlaylist); err != nil {
		return PlaylistEntry{}, err
	}
	e, err := svc.repo.GetPlaylistEntryByID(ctx, entryID)
	if err != nil {
		return PlaylistEntry{}, err
	}
	switch e.PlaybackStatus {
	case PlaybackPlayed:
		return e, nil
	case PlaybackSkipped:
		return PlaylistEntry{}, core.NewInvalidTransitionError("playlist entry", string(e.PlaybackStatus), string(PlaybackPlayed))
	}
	e, err = svc.repo.UpdatePlaybackStatus(ctx, e.ID, PlaybackPlayed, svc.now())
	return e, errors.Wrap(err, "marking entry as played")
}

// Remove deletes the track from the remote playlist first; the local entry is only
// deleted when the provider confirmed the removal.
func (svc *Service) Remove(ctx context.Context, entryID int, admin user.User) error {
	if err := user.Require(admin, user.CapManagePlaylist); err != nil {
		return err
	}
	e, err := svc.repo.GetPlaylistEntryByID(ctx, entryID)
	if err != nil {
		return err
	}

	token, ok, err := svc.tokens.UsableAccessToken(ctx, admin.ID)
	if err != nil {
		return errors.Wrap(err, "getting admin access token")
	}
	if !ok {
		return core.NewAuthRequiredError(reauthRequiredMsg)
	}

	trackURI := TrackURI(e.TrackID)
	removed, err := svc.provider.RemoveTrack(ctx, trackURI, svc.opts.PlaylistID, token)
	if err != nil || !removed {
		svc.logger.Error("removing track from the playlist failed", err, map[string]interface{}{
			"track_uri": trackURI,
			"admin_id":  admin.ID,
		})
		return core.NewRemoteMutationError("removing track", err)
	}
	return errors.Wrap(svc.repo.DeletePlaylistEntry(ctx, e.ID), "deleting playlist entry")
}

// ListPending returns the entries still to be played, oldest first.
func (svc *Service) ListPending(ctx context.Context) ([]PlaylistEntry, error) {
	return svc.repo.QueryPlaylistEntries(ctx, PlaylistFilter{PlaybackStatus: PlaybackPending})
}

// Search

func (svc *Service) Search(ctx context.Context, query string) ([]Track, error) {
	query = core.CleanString(query)
	if len([]rune(query)) < MinQueryLength {
		return nil, core.NewValidationError(errQueryTooShort, core.FieldError{Field: "query", Error: errQueryTooShort.Error()})
	}
	token, err := svc.PublicToken(ctx)
	if err != nil {
		return nil, err
	}
	tracks, err := svc.provider.Search(ctx, query, token, SearchPageSize)
	if err != nil {
		return nil, errors.Wrap(err, "searching tracks")
	}
	if tracks == nil {
		tracks = []Track{}
	}
	return tracks, nil
}

// PublicToken returns the application-level token used for anonymous calls.
func (svc *Service) PublicToken(ctx context.Context) (string, error) {
	token, err := svc.provider.ClientCredentialsToken(ctx)
	return token, errors.Wrap(err, "getting client credentials token")
}
