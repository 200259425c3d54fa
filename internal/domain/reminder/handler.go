package reminder

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rakeshthakkuri/skin-disease-S/internal/domain/prescription"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/auth"
	"github.com/rakeshthakkuri/skin-disease-S/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reminders", auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/acknowledge", h.Acknowledge)
	g.DELETE("/:id", h.Delete)
	g.POST("/auto-schedule/:prescriptionId", h.AutoSchedule)
}

func (h *Handler) AutoSchedule(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("prescriptionId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription id")
	}
	res, err := h.svc.AutoSchedule(c.Request().Context(), v, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Create(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	var req CreateInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rm, err := h.svc.Create(c.Request().Context(), v, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, rm)
}

func (h *Handler) List(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	pg, err := pagination.Bind(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.List(c.Request().Context(), v, pg.Limit, pg.Offset)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	v, id, err := viewerAndID(c)
	if err != nil {
		return err
	}
	rm, err := h.svc.Get(c.Request().Context(), v, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, rm)
}

func (h *Handler) Acknowledge(c echo.Context) error {
	v, id, err := viewerAndID(c)
	if err != nil {
		return err
	}
	ack, err := h.svc.Acknowledge(c.Request().Context(), v, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, ack)
}

func (h *Handler) Delete(c echo.Context) error {
	v, id, err := viewerAndID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), v, id); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Reminder deleted"})
}

func viewer(c echo.Context) (prescription.Viewer, error) {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return prescription.Viewer{}, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return prescription.ViewerFromActor(actor), nil
}

func viewerAndID(c echo.Context) (prescription.Viewer, uuid.UUID, error) {
	v, err := viewer(c)
	if err != nil {
		return v, uuid.Nil, err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return v, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return v, id, nil
}

func (h *Handler) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Reminder not found")
	case errors.Is(err, prescription.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Prescription not found")
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotApproved):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrForbidden), errors.Is(err, prescription.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	h.logger.Error().Err(err).Str("request_id", requestID(c)).Msg("reminder request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

func requestID(c echo.Context) string {
	if id, ok := c.Get("request_id").(string); ok {
		return id
	}
	return ""
}
