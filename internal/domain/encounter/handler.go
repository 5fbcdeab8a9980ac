package encounter

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/schedcore/schedcore/internal/platform/auth"
	"github.com/schedcore/schedcore/internal/platform/fhir"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("physician", "nurse", "registrar", "scheduler"))
	readGroup.GET("/encounters/:id", h.Get)
	readGroup.GET("/encounters/:id/history", h.GetStatusHistory)

	fhirRead := fhirGroup.Group("", auth.RequireRole("physician", "nurse", "registrar", "scheduler"))
	fhirRead.GET("/Encounter/:id", h.GetFHIR)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapEncounterError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) GetStatusHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.GetStatusHistory(c.Request().Context(), id)
	if err != nil {
		return mapEncounterError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetFHIR(c echo.Context) error {
	e, err := h.svc.GetByFHIRID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.NewOperationOutcome("error", "not-found", "Encounter not found"))
	}
	return c.JSON(http.StatusOK, e.ToFHIR())
}

func mapEncounterError(err error) error {
	var stateErr *StateError
	switch {
	case errors.As(err, &stateErr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, stateErr.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "encounter not found")
	case errors.Is(err, ErrAppointmentNotArrived):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrEncounterExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
