package enrichment

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/sowailem/ownable/pkg/metrics"
	"github.com/sowailem/ownable/pkg/registry"
)

// originalContextKey is where handlers deposit the rich entity (or slice of
// entities) their response payload was serialized from.
const originalContextKey = "ownable:enrichment:original"

// Deposit records the original rich value for the current request so the
// enrichment middleware can align it with the serialized response.
func Deposit(c echo.Context, original any) {
	c.Set(originalContextKey, original)
}

// responseBuffer holds the handler's response so the middleware can rewrite
// the body before anything reaches the client.
type responseBuffer struct {
	http.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (b *responseBuffer) WriteHeader(status int) {
	b.status = status
}

func (b *responseBuffer) Write(p []byte) (int, error) {
	return b.body.Write(p)
}

// Middleware buffers JSON responses, runs the enrichment walk over the
// decoded body, and re-emits the result. Anything that is not a successful
// JSON response, and any body the walk cannot decode, passes through
// unchanged.
func Middleware(walker *Walker, reg *registry.Registry, logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			writer := c.Response().Writer
			buffer := &responseBuffer{
				ResponseWriter: writer,
				body:           new(bytes.Buffer),
				status:         http.StatusOK,
			}
			c.Response().Writer = buffer

			err := next(c)

			c.Response().Writer = writer
			c.Response().Committed = false
			if err != nil {
				return err
			}

			body := buffer.body.Bytes()
			out := body
			if shouldEnrich(c, buffer.status, body) {
				if enriched, ok := enrichBody(c, walker, reg, logger, body); ok {
					out = enriched
				}
			}

			c.Response().Header().Set(echo.HeaderContentLength, strconv.Itoa(len(out)))
			c.Response().WriteHeader(buffer.status)
			_, writeErr := c.Response().Write(out)
			return writeErr
		}
	}
}

func shouldEnrich(c echo.Context, status int, body []byte) bool {
	if status < http.StatusOK || status >= http.StatusMultipleChoices || len(body) == 0 {
		return false
	}
	contentType := c.Response().Header().Get(echo.HeaderContentType)
	return strings.HasPrefix(contentType, echo.MIMEApplicationJSON)
}

func enrichBody(c echo.Context, walker *Walker, reg *registry.Registry, logger ectologger.Logger, body []byte) ([]byte, bool) {
	ctx := c.Request().Context()

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.WithContext(ctx).WithError(err).Warn("enrichment could not decode response body, passing through")
		metrics.EnrichmentWalksTotal.WithLabelValues("error").Inc()
		return nil, false
	}

	snapshot, err := reg.Snapshot(ctx)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Warn("enrichment could not build registry snapshot, passing through")
		metrics.EnrichmentWalksTotal.WithLabelValues("error").Inc()
		return nil, false
	}

	enriched := walker.Enrich(ctx, snapshot, payload, c.Get(originalContextKey))

	out, err := json.Marshal(enriched)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Warn("enrichment could not encode enriched body, passing through")
		metrics.EnrichmentWalksTotal.WithLabelValues("error").Inc()
		return nil, false
	}
	return out, true
}
