package lifecycle

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/schedcore/schedcore/internal/domain/appointment"
	"github.com/schedcore/schedcore/internal/domain/encounter"
	"github.com/schedcore/schedcore/internal/platform/auth"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("physician", "nurse", "registrar", "scheduler"))
	readGroup.GET("/appointments/:id/actions", h.GetActions)

	writeGroup := api.Group("", auth.RequireRole("physician", "nurse", "registrar", "scheduler"))
	writeGroup.POST("/appointments/:id/actions/:action", h.ExecuteAction)
}

func (h *Handler) GetActions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actions, err := h.svc.AvailableActions(c.Request().Context(), id)
	if err != nil {
		return mapLifecycleError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"actions": actions})
}

type actionRequest struct {
	CancellationReason string `json:"cancellation_reason,omitempty"`
	EncounterClass     string `json:"encounter_class,omitempty"`
}

func (h *Handler) ExecuteAction(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	action := Action(c.Param("action"))

	var req actionRequest
	if err := c.Bind(&req); err != nil && !errors.Is(err, echo.ErrUnsupportedMediaType) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	params := ActionParams{
		CancellationReason: req.CancellationReason,
		EncounterClass:     req.EncounterClass,
	}

	result, err := h.svc.ExecuteAction(c.Request().Context(), id, action, params)
	if err != nil {
		var partial *PartialCompletionError
		if errors.As(err, &partial) {
			h.logger.Error().
				Str("appointment_id", id.String()).
				Bool("encounter_finished", partial.EncounterFinished).
				Bool("appointment_fulfilled", partial.AppointmentFulfilled).
				Err(partial.Err).
				Msg("partial completion, manual reconciliation required")
			return c.JSON(http.StatusBadGateway, map[string]interface{}{
				"error":                 partial.Error(),
				"encounter_finished":    partial.EncounterFinished,
				"appointment_fulfilled": partial.AppointmentFulfilled,
				"result":                result,
			})
		}
		return mapLifecycleError(err)
	}

	h.logger.Info().
		Str("appointment_id", id.String()).
		Str("action", string(action)).
		Msg("lifecycle action executed")
	return c.JSON(http.StatusOK, result)
}

func mapLifecycleError(err error) error {
	var (
		actionErr    *ActionError
		apptStateErr *appointment.StateError
		encStateErr  *encounter.StateError
	)
	switch {
	case errors.As(err, &actionErr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, actionErr.Error())
	case errors.As(err, &apptStateErr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, apptStateErr.Error())
	case errors.As(err, &encStateErr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, encStateErr.Error())
	case errors.Is(err, encounter.ErrAppointmentNotArrived):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, encounter.ErrEncounterExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, appointment.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, encounter.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "encounter not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
