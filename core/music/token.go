package music

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/user"
)

const (
	// RefreshLookahead: a token expiring within this window is refreshed before use.
	RefreshLookahead = 5 * time.Minute
	// ExpiryMargin is subtracted from the lifetime reported by the provider.
	ExpiryMargin = 60 * time.Second
)

// TokenManager hands out a usable access token of an admin account,
// refreshing it lazily when it is about to expire.
type TokenManager struct {
	store    CredentialStore
	provider Provider
	logger   core.Logger
	now      core.Clock
}

func NewTokenManager(store CredentialStore, provider Provider, logger core.Logger, now ...core.Clock) *TokenManager {
	clock := core.SystemClock
	if len(now) > 0 && now[0] != nil {
		clock = now[0]
	}
	return &TokenManager{store: store, provider: provider, logger: logger, now: clock}
}

// UsableAccessToken returns ok=false when the admin has to go through the OAuth handshake again:
// no stored credentials, or a refresh that failed (the stored credentials are then cleared).
func (m *TokenManager) UsableAccessToken(ctx context.Context, adminID int) (token string, ok bool, err error) {
	creds, ok, err := m.store.GetCredentials(ctx, adminID)
	if err != nil {
		return "", false, errors.Wrap(err, "loading credentials")
	}
	if !ok {
		m.logger.Warn(fmt.Sprintf("no spotify credentials stored for admin %d: reauthentication required", adminID))
		return "", false, nil
	}

	now := m.now()
	if !now.Add(RefreshLookahead).After(creds.ExpiresAt) {
		return creds.AccessToken, true, nil
	}

	tok, err := m.provider.Refresh(ctx, creds.RefreshToken)
	if err == nil && tok.AccessToken == "" {
		err = errors.New("refresh response without access token")
	}
	if err != nil {
		m.logger.Error(fmt.Sprintf("refreshing spotify token of admin %d failed: credentials cleared", adminID), err)
		if cErr := m.store.ClearCredentials(ctx, adminID); cErr != nil {
			return "", false, errors.Wrap(cErr, "clearing credentials")
		}
		return "", false, nil
	}

	if tok.RefreshToken == "" {
		tok.RefreshToken = creds.RefreshToken
	}
	if _, err = m.Save(ctx, adminID, tok); err != nil {
		return "", false, err
	}
	m.logger.Info(fmt.Sprintf("spotify token of admin %d refreshed", adminID))
	return tok.AccessToken, true, nil
}

// Save persists tok for adminID with expires_at = now + expires_in - ExpiryMargin.
func (m *TokenManager) Save(ctx context.Context, adminID int, tok Token) (user.SpotifyCredentials, error) {
	creds := user.SpotifyCredentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    m.now().Add(time.Duration(tok.ExpiresIn)*time.Second - ExpiryMargin),
	}
	if err := m.store.PutCredentials(ctx, adminID, creds); err != nil {
		return user.SpotifyCredentials{}, errors.Wrap(err, "storing credentials")
	}
	return creds, nil
}
