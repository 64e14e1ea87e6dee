package echoapi

import (
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/user"
)

var (
	claimsContextKey = "userToken"
	userContextKey   = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64     `json:"oriat,omitempty"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	Role         user.Role `json:"role,omitempty"` // STUDENT | TEACHER | ADMIN portal
}

// UserID returns the account id carried by the subject claim.
func (c Claims) UserID() (int, error) {
	return strconv.Atoi(c.Subject)
}

func jwtConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    claimsContextKey,
		Claims:        new(Claims),
	}
}

func GetUserClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   strconv.Itoa(usr.ID),
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	cfg := jwtConfig(conf)
	token := jwt.NewWithClaims(jwt.GetSigningMethod(cfg.SigningMethod), claims)

	ss, err := token.SignedString(cfg.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(claimsContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUser loads the authenticated account once per request.
// A token whose account has been deleted is treated as unauthenticated.
func getContextUser(ctx echo.Context, svc *user.Service, clms ...Claims) (user.User, error) {
	if usr, ok := ctx.Get(userContextKey).(user.User); ok {
		return usr, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else if claims, err = getContextClaims(ctx); err != nil {
		return user.User{}, err
	}

	id, err := claims.UserID()
	if err != nil {
		return user.User{}, errUnauthorized
	}
	usr, err := svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(userContextKey, usr)
	return usr, nil
}

func refreshToken(ctx echo.Context, conf *core.Config, svc *user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	usr, err := getContextUser(ctx, svc, claims)
	if err != nil {
		return "", err
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := GenerateToken(conf, GetUserClaims(conf, usr, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}
