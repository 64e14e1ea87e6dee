package spotifysvc

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/music"
)

const (
	ClientTokenKey = "spotify_client_token"

	// client tokens are dropped this long before the provider expires them
	clientTokenMargin     = 300
	defaultTokenExpiresIn = 3600
)

// TokenCache keeps the application token between calls.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Client talks to the Spotify accounts service (golang.org/x/oauth2) and to the Web API (zmb3/spotify).
type Client struct {
	http     *http.Client
	oauth    *oauth2.Config
	app      *clientcredentials.Config
	apiBase  string
	cache    TokenCache
	cacheKey string
}

var _ music.Provider = (*Client)(nil)

func NewClient(conf core.SpotifyConfig, cache TokenCache, httpClient ...*http.Client) *Client {
	hc := &http.Client{}
	if len(httpClient) > 0 && httpClient[0] != nil {
		hc = httpClient[0]
	}
	accounts := strings.TrimSuffix(conf.AccountsBaseURL, "/")
	endpoint := oauth2.Endpoint{
		AuthURL:   accounts + "/authorize",
		TokenURL:  accounts + "/api/token",
		AuthStyle: oauth2.AuthStyleInHeader,
	}
	return &Client{
		http: hc,
		oauth: &oauth2.Config{
			ClientID:     conf.ClientID,
			ClientSecret: conf.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  conf.RedirectURI,
		},
		app: &clientcredentials.Config{
			ClientID:     conf.ClientID,
			ClientSecret: conf.ClientSecret,
			TokenURL:     endpoint.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		apiBase:  strings.TrimSuffix(conf.APIBaseURL, "/") + "/",
		cache:    cache,
		cacheKey: ClientTokenKey,
	}
}

func (c *Client) withHTTP(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

func (c *Client) api(ctx context.Context, accessToken string) *spotify.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return spotify.New(oauth2.NewClient(c.withHTTP(ctx), src), spotify.WithBaseURL(c.apiBase))
}

// AuthURL builds the consent page URL. show_dialog forces the account picker every time.
func (c *Client) AuthURL(scope, state string) string {
	return c.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("scope", scope),
		oauth2.SetAuthURLParam("show_dialog", "true"),
	)
}

func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (music.Token, error) {
	tok, err := c.oauth.Exchange(c.withHTTP(ctx), code, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	if err != nil {
		return music.Token{}, remoteError("exchanging authorization code", err)
	}
	return toToken(tok), nil
}

// Refresh returns an empty RefreshToken when the provider did not rotate it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (music.Token, error) {
	tok, err := c.oauth.TokenSource(c.withHTTP(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return music.Token{}, remoteError("refreshing token", err)
	}
	res := toToken(tok)
	if res.RefreshToken == refreshToken {
		res.RefreshToken = ""
	}
	return res, nil
}

func (c *Client) FetchProfile(ctx context.Context, accessToken string) (music.Profile, error) {
	usr, err := c.api(ctx, accessToken).CurrentUser(ctx)
	if err != nil {
		return music.Profile{}, remoteError("fetching profile", err)
	}
	return music.Profile{
		ID:          usr.ID,
		DisplayName: usr.DisplayName,
		Email:       usr.Email,
		Country:     usr.Country,
		Product:     usr.Product,
	}, nil
}

func (c *Client) Search(ctx context.Context, query, accessToken string, limit int) ([]music.Track, error) {
	res, err := c.api(ctx, accessToken).Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, remoteError("searching tracks", err)
	}
	tracks := make([]music.Track, 0)
	if res.Tracks == nil {
		return tracks, nil
	}
	for _, t := range res.Tracks.Tracks {
		tracks = append(tracks, toTrack(t))
	}
	return tracks, nil
}

func (c *Client) AddTrack(ctx context.Context, trackURI, playlistID, accessToken string) (bool, error) {
	_, err := c.api(ctx, accessToken).AddTracksToPlaylist(ctx, spotify.ID(playlistID), trackID(trackURI))
	if err != nil {
		return false, remoteError("adding track to playlist", err)
	}
	return true, nil
}

func (c *Client) RemoveTrack(ctx context.Context, trackURI, playlistID, accessToken string) (bool, error) {
	_, err := c.api(ctx, accessToken).RemoveTracksFromPlaylist(ctx, spotify.ID(playlistID), trackID(trackURI))
	if err != nil {
		return false, remoteError("removing track from playlist", err)
	}
	return true, nil
}

// ClientCredentialsToken returns the cached application token, requesting a new one when the cache is empty.
func (c *Client) ClientCredentialsToken(ctx context.Context) (string, error) {
	if token, ok, err := c.cache.Get(ctx, c.cacheKey); err != nil {
		return "", errors.Wrap(err, "reading client token cache")
	} else if ok {
		return token, nil
	}

	tok, err := c.app.Token(c.withHTTP(ctx))
	if err != nil {
		return "", remoteError("requesting client token", err)
	}
	expiresIn := toToken(tok).ExpiresIn
	ttl := expiresIn
	if expiresIn > clientTokenMargin {
		ttl = expiresIn - clientTokenMargin
	}
	if err = c.cache.Set(ctx, c.cacheKey, tok.AccessToken, time.Duration(ttl)*time.Second); err != nil {
		return "", errors.Wrap(err, "caching client token")
	}
	return tok.AccessToken, nil
}

func toToken(tok *oauth2.Token) music.Token {
	expiresIn := int(tok.ExpiresIn)
	if expiresIn <= 0 {
		if v, ok := tok.Extra("expires_in").(float64); ok {
			expiresIn = int(v)
		}
	}
	if expiresIn <= 0 {
		expiresIn = defaultTokenExpiresIn
	}
	return music.Token{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken, ExpiresIn: expiresIn}
}

func toTrack(t spotify.FullTrack) music.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	var cover string
	if len(t.Album.Images) > 0 {
		cover = t.Album.Images[0].URL
	}
	return music.Track{
		ID:          string(t.ID),
		Name:        t.Name,
		Artists:     artists,
		AlbumName:   t.Album.Name,
		CoverURL:    cover,
		URI:         string(t.URI),
		ExternalURL: t.ExternalURLs["spotify"],
	}
}

func trackID(trackURI string) spotify.ID {
	return spotify.ID(strings.TrimPrefix(trackURI, "spotify:track:"))
}

// remoteError keeps the status and the body of the upstream response for logs.
func remoteError(op string, err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) && rErr.Response != nil {
		return &core.RemoteServiceError{Op: op, StatusCode: rErr.Response.StatusCode, Body: string(rErr.Body)}
	}
	var sErr spotify.Error
	if errors.As(err, &sErr) {
		return &core.RemoteServiceError{Op: op, StatusCode: sErr.Status, Body: sErr.Message}
	}
	var sErrPtr *spotify.Error
	if errors.As(err, &sErrPtr) {
		return &core.RemoteServiceError{Op: op, StatusCode: sErrPtr.Status, Body: sErrPtr.Message}
	}
	return &core.RemoteServiceError{Op: op, Err: err}
}
