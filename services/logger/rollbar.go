package logsvc

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/rs/zerolog"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/user"
)

// RollbarLogger reports to Rollbar (when a token is configured) and writes every entry to a zerolog sink.
type RollbarLogger struct {
	log    zerolog.Logger
	remote bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(out io.Writer, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)

	level := zerolog.InfoLevel
	if conf.Debug {
		level = zerolog.DebugLevel
	}
	if conf.Debug || conf.TestMode {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	l := &RollbarLogger{
		log:    zerolog.New(out).Level(level).With().Timestamp().Str("app", conf.AppName).Logger(),
		remote: conf.RollbarToken != "",
	}
	l.Enable(l.remote)
	return l
}

// NewNopLogger discards everything. Used by tests.
func NewNopLogger() *RollbarLogger {
	return &RollbarLogger{log: zerolog.Nop()}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		// set logged in User
		if usr, ok := arg.(user.User); ok {
			if !usrSet { // only set one User
				rollbar.SetPerson(strconv.Itoa(usr.ID), usr.Name, usr.Email)
				usrSet = true
			}
		} else if arg != nil {
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l RollbarLogger) print(evt *zerolog.Event, msg string, args []interface{}) {
	for i, arg := range args {
		switch a := arg.(type) {
		case nil:
		case error:
			evt = evt.Err(a)
		case map[string]interface{}:
			evt = evt.Fields(a)
		case user.User:
			evt = evt.Int("user_id", a.ID)
		default:
			evt = evt.Interface(fmt.Sprintf("arg%d", i), a)
		}
	}
	evt.Msg(msg)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	if l.remote {
		rollbar.Debug(l.prepare(msg, args)...)
	}
	l.print(l.log.Debug(), msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	if l.remote {
		rollbar.Info(l.prepare(msg, args)...)
	}
	l.print(l.log.Info(), msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	if l.remote {
		rollbar.Warning(l.prepare(msg, args)...)
	}
	l.print(l.log.Warn(), msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	if l.remote {
		rollbar.Error(l.prepare(msg, args)...)
	}
	l.print(l.log.Error(), msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	if l.remote {
		rollbar.Critical(l.prepare(msg, args)...)
		rollbar.Wait()
	}
	l.print(l.log.Fatal(), msg, args)
}
