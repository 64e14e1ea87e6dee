package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ritmatiza/core/music"
	"github.com/trezcool/ritmatiza/core/user"
)

type musicApi struct {
	svc      *music.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerMusicAPI(g *echo.Group, jwt, limit echo.MiddlewareFunc, s *server) {
	api := musicApi{
		svc:      s.deps.MusicSvc,
		usrSvc:   s.deps.UserSvc,
		validate: s.validate,
	}

	mg := g.Group("/music", jwt)
	mg.GET("/playlist", api.playlist)
	mg.GET("/search", api.search, limit)
	mg.GET("/suggestions", api.suggestions)
	mg.POST("/suggestions", api.suggest)

	admin := capabilityMiddleware(api.usrSvc, user.CapManagePlaylist)
	mg.POST("/suggestions/:id/approve", api.approve, admin)
	mg.PATCH("/suggestions/:id/reject", api.reject, admin)
	mg.PATCH("/playlist/:id/played", api.markPlayed, admin)
	mg.DELETE("/playlist/:id", api.remove, admin)
}

func (api *musicApi) playlist(ctx echo.Context) error {
	entries, err := api.svc.ListPending(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying playlist")
	}
	if entries == nil {
		entries = []music.PlaylistEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *musicApi) search(ctx echo.Context) error {
	tracks, err := api.svc.Search(ctx.Request().Context(), ctx.QueryParam("query"))
	if err != nil {
		return errors.Wrap(err, "searching tracks")
	}
	return ctx.JSON(http.StatusOK, tracks)
}

func (api *musicApi) suggestions(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	suggestions, err := api.svc.ListVisible(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying suggestions")
	}
	if suggestions == nil {
		suggestions = []music.Suggestion{}
	}
	return ctx.JSON(http.StatusOK, suggestions)
}

func (api *musicApi) suggest(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	var data music.NewSuggestion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSuggestion")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Submit(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "submitting suggestion")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *musicApi) approve(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	entry, err := api.svc.Approve(ctx.Request().Context(), id, usr)
	if err != nil {
		return errors.Wrap(err, "approving suggestion")
	}
	return ctx.JSON(http.StatusCreated, entry)
}

func (api *musicApi) reject(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	s, err := api.svc.Reject(ctx.Request().Context(), id, usr)
	if err != nil {
		return errors.Wrap(err, "rejecting suggestion")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *musicApi) markPlayed(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	entry, err := api.svc.MarkPlayed(ctx.Request().Context(), id, usr)
	if err != nil {
		return errors.Wrap(err, "marking entry as played")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *musicApi) remove(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err = api.svc.Remove(ctx.Request().Context(), id, usr); err != nil {
		return errors.Wrap(err, "removing playlist entry")
	}
	return ctx.NoContent(http.StatusNoContent)
}
