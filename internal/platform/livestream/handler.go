// Package livestream serves long-lived text/event-stream connections and
// keeps the per-user registry that event delivery writes through.
package livestream

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/docease/docease/internal/platform/auth"
)

// DefaultHeartbeat is the keep-alive cadence for idle streams.
const DefaultHeartbeat = 30 * time.Second

// Handler opens event streams and binds them to a Registry.
type Handler struct {
	name      string
	registry  *Registry
	heartbeat time.Duration
	connOpts  []ConnOption
	logger    zerolog.Logger
}

// NewHandler creates a stream handler. name identifies the stream in logs;
// opts apply to every connection it opens.
func NewHandler(name string, registry *Registry, heartbeat time.Duration, logger zerolog.Logger, opts ...ConnOption) *Handler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Handler{
		name:      name,
		registry:  registry,
		heartbeat: heartbeat,
		connOpts:  opts,
		logger:    logger.With().Str("stream", name).Logger(),
	}
}

// Registry returns the registry this handler registers connections in.
func (h *Handler) Registry() *Registry {
	return h.registry
}

// Stream holds the request open as an event stream until the client goes
// away or a newer connection for the same user supersedes it.
func (h *Handler) Stream(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Please provide userId")
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	conn := NewConn(res, h.connOpts...)
	// Queued ahead of registration so the warmup is always the first frame.
	conn.Send(Frame{Message: MessageWarmup, UserID: userID})
	h.registry.Register(userID, conn)
	h.logger.Debug().Str("user_id", userID).Msg("stream opened")

	defer func() {
		h.registry.Release(userID, conn)
		conn.Close()
		h.logger.Debug().Str("user_id", userID).Msg("stream closed")
	}()

	if err := conn.Pump(c.Request().Context(), h.heartbeat, Frame{Message: MessageHeartbeat, UserID: userID}); err != nil {
		h.logger.Debug().Err(err).Str("user_id", userID).Msg("stream write failed")
	}
	return nil
}
