package diagnosis

import (
	"errors"
	"fmt"
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
	g := api.Group("/diagnoses", auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	g.POST("/analyze", h.Analyze)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/image", h.GetImage)
}

func (h *Handler) Analyze(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	meta, err := ParseMetadata(c.FormValue("clinical_metadata"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid clinical metadata JSON")
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image file is required")
	}
	if fh.Size > h.svc.MaxUploadSize() {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, tooLargeMessage(h.svc.MaxUploadSize()))
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable image upload")
	}
	defer f.Close()

	d, err := h.svc.Analyze(c.Request().Context(), AnalyzeInput{
		UserID:      actor.UserID,
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Image:       f,
		Metadata:    meta,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) Get(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.Lookup(c.Request().Context(), id, actor.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) List(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	pg, err := pagination.Bind(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.List(c.Request().Context(), actor.UserID, pg.Limit, pg.Offset)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

func (h *Handler) GetImage(c echo.Context) error {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rc, obj, err := h.svc.Image(c.Request().Context(), id, actor.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	defer rc.Close()

	c.Response().Header().Set("Cache-Control", "private, no-store")
	return c.Stream(http.StatusOK, obj.ContentType, rc)
}

func (h *Handler) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Diagnosis not found")
	case errors.Is(err, ErrInvalidImage):
		return echo.NewHTTPError(http.StatusBadRequest, "File must be an image")
	case errors.Is(err, ErrImageTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, tooLargeMessage(h.svc.MaxUploadSize()))
	case errors.Is(err, ErrClassifierDown):
		h.logger.Warn().Err(err).Str("request_id", requestID(c)).Msg("classifier unavailable")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "image analysis is temporarily unavailable")
	case errors.Is(err, ErrClassificationFail):
		h.logger.Error().Err(err).Str("request_id", requestID(c)).Msg("classification failed")
		return echo.NewHTTPError(http.StatusBadGateway, "image analysis failed, please retry")
	}
	h.logger.Error().Err(err).Str("request_id", requestID(c)).Msg("diagnosis request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

func tooLargeMessage(max int64) string {
	return fmt.Sprintf("File size exceeds maximum allowed size of %.1fMB", float64(max)/(1024*1024))
}

func requestID(c echo.Context) string {
	if id, ok := c.Get("request_id").(string); ok {
		return id
	}
	return ""
}
