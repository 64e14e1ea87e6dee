package music

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/user"
)

const (
	// Scopes requested from the admin account.
	Scopes = "playlist-modify-public user-read-private"
	// StateTTL bounds the time between Initiate and Callback.
	StateTTL = 5 * time.Minute

	stateSep = "|"
)

type (
	Handshake struct {
		accounts    Accounts
		states      StateStore
		tokens      *TokenManager
		provider    Provider
		logger      core.Logger
		redirectURI string
	}

	CallbackResult struct {
		AdminID       int    `json:"admin_id"`
		SpotifyUserID string `json:"spotify_user_id,omitempty"`
	}
)

func NewHandshake(
	accounts Accounts,
	states StateStore,
	tokens *TokenManager,
	provider Provider,
	logger core.Logger,
	redirectURI string,
) *Handshake {
	return &Handshake{
		accounts:    accounts,
		states:      states,
		tokens:      tokens,
		provider:    provider,
		logger:      logger,
		redirectURI: redirectURI,
	}
}

// Initiate stores a fresh state for the admin and returns the URL of the provider consent page.
func (h *Handshake) Initiate(ctx context.Context, admin user.User) (string, error) {
	if err := user.Require(admin, user.CapManageSpotify); err != nil {
		return "", err
	}
	state := strconv.Itoa(admin.ID) + stateSep + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := h.states.Put(ctx, admin.ID, state, StateTTL); err != nil {
		return "", errors.Wrap(err, "storing oauth state")
	}
	return h.provider.AuthURL(Scopes, state), nil
}

// Callback validates the state returned by the provider, exchanges code and stores the credentials.
// Nothing is persisted when the state does not match the one stored by Initiate.
func (h *Handshake) Callback(ctx context.Context, code, state string) (CallbackResult, error) {
	adminID, err := parseState(state)
	if err != nil {
		return CallbackResult{}, err
	}
	admin, err := h.accounts.GetByID(ctx, adminID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return CallbackResult{}, core.NewNotFoundError("admin")
		}
		return CallbackResult{}, errors.Wrap(err, "loading admin")
	}
	if err = user.Require(admin, user.CapManageSpotify); err != nil {
		return CallbackResult{}, err
	}

	stored, ok, err := h.states.Pop(ctx, adminID)
	if err != nil {
		return CallbackResult{}, errors.Wrap(err, "loading oauth state")
	}
	if !ok || subtle.ConstantTimeCompare([]byte(stored), []byte(state)) != 1 {
		h.logger.Warn(fmt.Sprintf("oauth state mismatch for admin %d", adminID))
		return CallbackResult{}, core.NewBadRequestError("invalid or expired state")
	}
	if code == "" {
		return CallbackResult{}, core.NewBadRequestError("missing authorization code")
	}

	tok, err := h.provider.ExchangeCode(ctx, code, h.redirectURI)
	if err != nil {
		return CallbackResult{}, errors.Wrap(err, "exchanging authorization code")
	}
	if _, err = h.tokens.Save(ctx, adminID, tok); err != nil {
		return CallbackResult{}, err
	}
	h.logger.Info(fmt.Sprintf("spotify account connected for admin %d", adminID))

	res := CallbackResult{AdminID: adminID}
	profile, err := h.provider.FetchProfile(ctx, tok.AccessToken)
	if err != nil {
		h.logger.Warn(fmt.Sprintf("fetching spotify profile of admin %d failed", adminID), err)
		return res, nil
	}
	res.SpotifyUserID = profile.ID
	return res, nil
}

func parseState(state string) (int, error) {
	idx := strings.Index(state, stateSep)
	if state == "" || idx < 0 {
		return 0, core.NewBadRequestError("invalid state")
	}
	id, err := strconv.Atoi(state[:idx])
	if err != nil {
		return 0, core.NewBadRequestError("invalid state")
	}
	return id, nil
}
