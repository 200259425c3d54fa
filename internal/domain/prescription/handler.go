package prescription

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

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
	read := api.Group("/prescriptions", auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	read.POST("/generate", h.Generate)
	read.GET("", h.List)
	read.GET("/:id", h.Get)
	read.POST("/:id/translate", h.Translate)

	review := api.Group("/prescriptions", auth.RequireRole(auth.RoleDoctor))
	review.POST("/:id/approve", h.Approve)
	review.POST("/:id/reject", h.Reject)
}

type generateRequest struct {
	DiagnosisID     string `json:"diagnosis_id"`
	AdditionalNotes string `json:"additional_notes"`
}

type reviewRequest struct {
	DoctorNotes string `json:"doctor_notes"`
}

type translateRequest struct {
	TargetLanguage string `json:"target_language"`
}

func (h *Handler) Generate(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	diagID, err := uuid.Parse(req.DiagnosisID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid diagnosis_id")
	}
	view, err := h.svc.Generate(c.Request().Context(), v, diagID, req.AdditionalNotes)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) Get(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	view, err := h.svc.Get(c.Request().Context(), v, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, view)
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
	views, total, err := h.svc.List(c.Request().Context(), v, c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(views, total, pg))
}

func (h *Handler) Approve(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	view, err := h.svc.Approve(c.Request().Context(), v, id, req.DoctorNotes)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) Reject(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	view, err := h.svc.Reject(c.Request().Context(), v, id, req.DoctorNotes)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) Translate(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req translateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.Translate(c.Request().Context(), v, id, req.TargetLanguage)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func viewer(c echo.Context) (Viewer, error) {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return Viewer{}, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return ViewerFromActor(actor), nil
}

func (h *Handler) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Prescription not found")
	case errors.Is(err, ErrDiagnosisNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Diagnosis not found")
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnsupportedLanguage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrGenerationFailed):
		h.logger.Warn().Err(err).Str("request_id", requestID(c)).Msg("prescription generation failed")
		return echo.NewHTTPError(http.StatusBadGateway, "prescription generation failed, please retry")
	}
	h.logger.Error().Err(err).Str("request_id", requestID(c)).Msg("prescription request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

func requestID(c echo.Context) string {
	if id, ok := c.Get("request_id").(string); ok {
		return id
	}
	return ""
}
