package echoapi

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/music"
	"github.com/trezcool/ritmatiza/core/task"
	"github.com/trezcool/ritmatiza/core/user"
)

type (
	Deps struct {
		Logger    core.Logger
		Mailer    core.EmailService
		UserSvc   *user.Service
		TaskSvc   *task.Service
		MusicSvc  *music.Service
		Handshake *music.Handshake
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		conf       *core.Config
		shutdown   chan<- os.Signal
		deps       *Deps
		app        *echo.Echo
		validate   *validator.Validate
		translator ut.Translator
	}
)

var _ Server = (*server)(nil)

// NewServer builds the API. shutdown may be nil (tests): fatal errors are then only logged.
func NewServer(conf *core.Config, shutdown chan<- os.Signal, deps *Deps) Server {
	s := &server{
		conf:       conf,
		shutdown:   shutdown,
		deps:       deps,
		app:        echo.New(),
		validate:   validator.New(),
		translator: core.NewTranslator(),
	}
	core.InitValidators(s.validate, s.translator)
	user.InitValidators(s.validate, s.translator)
	s.setup()
	return s
}

func (s *server) setup() {
	debug := s.conf.Debug

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{s.conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.translator, s.signalShutdown)
	s.app.Debug = debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(jwtConfig(s.conf))
	limit := newRateLimiter(s.conf.RateLimit).middleware()

	registerUserAPI(v1, jwt, limit, s)
	registerTaskAPI(v1, jwt, s)
	registerMusicAPI(v1, jwt, limit, s)
	registerSpotifyAPI(v1, jwt, s)
	registerContactAPI(v1, limit, s)
}

func (s *server) signalShutdown() {
	if s.shutdown != nil {
		s.shutdown <- syscall.SIGTERM
	}
}

func (s *server) Start() error {
	return s.app.Start(s.conf.Server.Host)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}

func pathID(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil {
		return 0, errInvalidID
	}
	return id, nil
}

type SuccessResponse struct {
	Success string `json:"success"`
}
