package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ritmatiza/core/music"
	"github.com/trezcool/ritmatiza/core/user"
)

type spotifyApi struct {
	musicSvc  *music.Service
	handshake *music.Handshake
	usrSvc    *user.Service
}

func registerSpotifyAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *server) {
	api := spotifyApi{
		musicSvc:  s.deps.MusicSvc,
		handshake: s.deps.Handshake,
		usrSvc:    s.deps.UserSvc,
	}

	sg := g.Group("/spotify")
	sg.GET("/token", api.token)
	sg.GET("/callback", api.callback)
	sg.GET("/redirect", api.redirect, jwt, capabilityMiddleware(api.usrSvc, user.CapManageSpotify))
}

// token hands the application token to the player of the frontend.
func (api *spotifyApi) token(ctx echo.Context) error {
	token, err := api.musicSvc.PublicToken(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting public token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{AccessToken: token})
}

func (api *spotifyApi) redirect(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	authURL, err := api.handshake.Initiate(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "initiating spotify authorization")
	}
	return ctx.JSON(http.StatusOK, RedirectResponse{AuthURL: authURL})
}

func (api *spotifyApi) callback(ctx echo.Context) error {
	res, err := api.handshake.Callback(ctx.Request().Context(), ctx.QueryParam("code"), ctx.QueryParam("state"))
	if err != nil {
		return errors.Wrap(err, "completing spotify authorization")
	}
	return ctx.JSON(http.StatusOK, CallbackResponse{
		Message:       "Spotify account connected.",
		SpotifyUserID: res.SpotifyUserID,
	})
}

type (
	TokenResponse struct {
		AccessToken string `json:"accessToken"`
	}

	RedirectResponse struct {
		AuthURL string `json:"auth_url"`
	}

	CallbackResponse struct {
		Message       string `json:"message"`
		SpotifyUserID string `json:"spotify_user_id,omitempty"`
	}
)
