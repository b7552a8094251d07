package chat

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/docease/docease/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the chat REST endpoints. The chat live stream is
// mounted separately at /chat/live.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/chat", auth.RequireUser())
	g.POST("/post", h.PostMessage)
	g.GET("/messages", h.ListMessages)
	g.GET("/recipients", h.ListRecipients)
	g.PATCH("/mark-message-as-read", h.MarkMessagesAsRead)
}

func (h *Handler) PostMessage(c echo.Context) error {
	var req PostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	m, err := h.svc.PostMessage(ctx, auth.UserIDFromContext(ctx), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMessages(c echo.Context) error {
	ctx := c.Request().Context()
	msgs, err := h.svc.ListMessages(ctx, auth.UserIDFromContext(ctx), c.QueryParam("chatRoomId"), c.QueryParam("cursorId"))
	if err != nil {
		return httpError(err)
	}
	if msgs == nil {
		msgs = []*Message{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"messages": msgs})
}

func (h *Handler) ListRecipients(c echo.Context) error {
	ctx := c.Request().Context()
	recipients, err := h.svc.Recipients(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"recipients": recipients})
}

func (h *Handler) MarkMessagesAsRead(c echo.Context) error {
	var req MarkReadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	n, err := h.svc.MarkRead(ctx, auth.UserIDFromContext(ctx), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"updated": n})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrSelfMessage), errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
