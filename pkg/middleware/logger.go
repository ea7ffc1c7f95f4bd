package middleware

import (
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/sowailem/ownable/pkg/appcontext"
)

// Logger emits one structured line per request. It runs after Context has
// seeded the request-scoped values, so the request id and actor id come
// from there rather than being re-derived from headers.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()
			res := c.Response()
			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}

			stop := time.Now()
			ctx := c.Request().Context()

			fields := map[string]any{
				"request_id":    appcontext.GetRequestID(ctx),
				"method":        req.Method,
				"uri":           req.RequestURI,
				"status":        res.Status,
				"route":         c.Path(),
				"remote_ip":     c.RealIP(),
				"host":          req.Host,
				"user_agent":    req.UserAgent(),
				"response_time": stop.Sub(start),
				"request_size":  req.Header.Get(echo.HeaderContentLength),
				"response_size": strconv.FormatInt(res.Size, 10),
			}
			if actorID := appcontext.GetActorID(ctx); actorID != "" {
				fields["actor_id"] = actorID
			}

			logger.WithContext(ctx).WithFields(fields).Info("Request")

			return nil
		}
	}
}
