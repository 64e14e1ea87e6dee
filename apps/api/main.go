package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/justinas/alice"
	"github.com/pkg/errors"

	"github.com/trezcool/ritmatiza/apps/api/echo"
	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/music"
	"github.com/trezcool/ritmatiza/core/task"
	"github.com/trezcool/ritmatiza/core/user"
	"github.com/trezcool/ritmatiza/services/cache"
	"github.com/trezcool/ritmatiza/services/email"
	"github.com/trezcool/ritmatiza/services/logger"
	"github.com/trezcool/ritmatiza/services/spotify"
	"github.com/trezcool/ritmatiza/storage/database"
	"github.com/trezcool/ritmatiza/storage/database/dummy"
	"github.com/trezcool/ritmatiza/storage/database/sqlx"
)

type repositories struct {
	user  user.Repository
	task  task.Repository
	music music.Repository
	close func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(os.Stdout, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	repos, err := setUpStorage(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			logger.Error("closing storage", err)
		}
	}()

	store, closeStore, err := setUpCache(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up cache: %v", err), err)
	}
	defer closeStore()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	spotify := spotifysvc.NewClient(conf.Spotify, store)
	usrSvc := user.NewService(repos.user)
	tokens := music.NewTokenManager(usrSvc, spotify, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(conf, shutdown, &echoapi.Deps{
		Logger:  logger,
		Mailer:  mailSvc,
		UserSvc: usrSvc,
		TaskSvc: task.NewService(repos.task, usrSvc, logger),
		MusicSvc: music.NewService(repos.music, usrSvc, tokens, spotify, logger, music.Options{
			PlaylistID:                conf.Spotify.PlaylistID,
			CompensateOnRemoteFailure: conf.CompensateOnRemoteFailure,
		}),
		Handshake: music.NewHandshake(usrSvc, cachesvc.NewStateStore(store), tokens, spotify, logger, conf.Spotify.RedirectURI),
	})

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	debug := alice.New(debugLog(logger)).Then(http.DefaultServeMux)
	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, debug); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Host))
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

// setUpStorage opens Postgres and applies pending migrations, or an in-memory database
// when the engine is "dummy".
func setUpStorage(conf *core.Config) (repositories, error) {
	if conf.Database.Engine == "dummy" || conf.Database.Engine == "memory" {
		db, err := dummydb.Open()
		if err != nil {
			return repositories{}, err
		}
		return repositories{
			user:  dummydb.NewUserRepository(db),
			task:  dummydb.NewTaskRepository(db),
			music: dummydb.NewMusicRepository(db),
			close: func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return repositories{}, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return repositories{}, err
	}
	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return repositories{}, err
	}
	return repositories{
		user:  sqlxrepos.NewUserRepository(db),
		task:  sqlxrepos.NewTaskRepository(db),
		music: sqlxrepos.NewMusicRepository(db),
		close: db.Close,
	}, nil
}

// setUpCache shares OAuth states and the application token through Redis when configured.
func setUpCache(conf *core.Config) (cachesvc.Store, func(), error) {
	if conf.Redis.Addr == "" {
		return cachesvc.NewMemoryStore(), func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := cachesvc.OpenRedis(ctx, conf.Redis)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connecting to redis")
	}
	return cachesvc.NewRedisStore(rdb, "ritmatiza:"), func() { _ = rdb.Close() }, nil
}

func debugLog(logger core.Logger) alice.Constructor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug(fmt.Sprintf("debug: %s %s", r.Method, r.URL.Path))
			next.ServeHTTP(w, r)
		})
	}
}
