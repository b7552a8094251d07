package conference

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/docease/docease/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/conferences", auth.RequireUser())
	g.GET("", h.OpenConference)
	g.GET("/:id", h.GetConference)
	g.POST("/join", h.JoinConference)
}

type openResponse struct {
	Message    string      `json:"message"`
	Conference *Conference `json:"conference"`
}

func (h *Handler) OpenConference(c echo.Context) error {
	ctx := c.Request().Context()
	conf, created, err := h.svc.Open(ctx, auth.UserIDFromContext(ctx), c.QueryParam("hostId"), c.QueryParam("attendeeId"))
	if err != nil {
		return httpError(err)
	}
	if created {
		return c.JSON(http.StatusCreated, openResponse{Message: "Conference created", Conference: conf})
	}
	return c.JSON(http.StatusOK, openResponse{Message: "Conference found", Conference: conf})
}

func (h *Handler) GetConference(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid conference id")
	}
	ctx := c.Request().Context()
	conf, err := h.svc.Get(ctx, auth.UserIDFromContext(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conf)
}

func (h *Handler) JoinConference(c echo.Context) error {
	var req JoinRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	conf, err := h.svc.Join(ctx, auth.UserIDFromContext(ctx), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, openResponse{Message: "Joined conference", Conference: conf})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
