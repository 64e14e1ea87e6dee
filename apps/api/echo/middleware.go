package echoapi

import (
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/user"
)

// capabilityMiddleware lets the request through when the authenticated account holds any of caps.
func capabilityMiddleware(svc *user.Service, caps ...user.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return err
			}
			for _, c := range caps {
				if user.HasCapability(usr, c) {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newRateLimiter(conf core.RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(conf.PerSecond),
		burst:    conf.Burst,
	}
}

func (rl *rateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[ip]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[ip] = l
	}
	return l
}

func (rl *rateLimiter) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !rl.get(ctx.RealIP()).Allow() {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}
