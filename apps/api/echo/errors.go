package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/user"
)

var (
	errUnauthorized    = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errRefreshExpired  = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden   = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errTooManyRequests = echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
	errInvalidID       = echo.NewHTTPError(http.StatusNotFound, "not found")

	msgInsufficientPoints = "insufficient points"
	msgRemoteMutation     = "the playlist could not be updated, try again later"
	msgRemoteService      = "the music service is unavailable, try again later"
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if cause == user.ErrInvalidCredentials {
			cause = core.NewBadRequestError(cause.Error())
		}

		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *core.BadRequestError:
			code, message = http.StatusBadRequest, origErr.Error()
		case *core.PermissionError:
			code, message = http.StatusForbidden, origErr.Error()
		case *core.InsufficientPointsError:
			code, message = http.StatusForbidden, msgInsufficientPoints
		case *core.AuthRequiredError:
			code, message = http.StatusUnauthorized, origErr.Error()
		case *core.NotFoundError:
			code, message = http.StatusNotFound, origErr.Error()
		case *core.DuplicateError:
			code, message = http.StatusConflict, origErr.Error()
		case *core.InvalidTransitionError:
			code, message = http.StatusConflict, origErr.Error()
		case *core.RemoteMutationError:
			code, message = http.StatusServiceUnavailable, msgRemoteMutation
		case *core.RemoteServiceError:
			// the upstream body only goes to the logs
			logger.Error(msgRemoteService, err, map[string]interface{}{
				"op":     origErr.Op,
				"status": origErr.StatusCode,
			})
			code, message = http.StatusServiceUnavailable, msgRemoteService
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID, _ = claims.UserID()
				usr.Name = claims.Name
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}

			if ctx.Echo().Debug {
				message = err.Error()
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
