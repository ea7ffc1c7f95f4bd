package middleware

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/sowailem/ownable/pkg/appcontext"
	"github.com/sowailem/ownable/pkg/tracing"
)

// CapabilityChecker decides whether the acting user may perform the named
// capability. Host applications supply their own implementation.
type CapabilityChecker func(ctx context.Context, actorID string, capability string) (bool, error)

// Capability guards mutating routes. A nil checker allows everything, so
// embedding applications without an authorization layer are unaffected.
func Capability(logger ectologger.Logger, check CapabilityChecker, capability string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if check == nil {
				return next(c)
			}

			ctx := c.Request().Context()
			ctx, span := tracing.StartSpan(ctx, "middleware.Capability")
			defer span.End()

			actorID := appcontext.GetActorID(ctx)
			allowed, err := check(ctx, actorID, capability)
			if err != nil {
				logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"capability": capability,
				}).Error("capability check failed")
				return echo.NewHTTPError(http.StatusInternalServerError, "capability check failed")
			}
			if !allowed {
				logger.WithContext(ctx).WithFields(map[string]any{
					"actor_id":   actorID,
					"capability": capability,
				}).Warn("capability denied")
				return echo.NewHTTPError(http.StatusForbidden, "access denied")
			}

			return next(c)
		}
	}
}
