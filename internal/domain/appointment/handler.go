package appointment

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/schedcore/schedcore/internal/domain/scheduling"
	"github.com/schedcore/schedcore/internal/platform/auth"
	"github.com/schedcore/schedcore/internal/platform/fhir"
	"github.com/schedcore/schedcore/pkg/pagination"
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
	readGroup.GET("/appointments", h.List)
	readGroup.GET("/appointments/:id", h.Get)
	readGroup.GET("/appointments/:id/participants", h.GetParticipants)

	writeGroup := api.Group("", auth.RequireRole("registrar", "scheduler"))
	writeGroup.POST("/appointments", h.Create)
	writeGroup.POST("/appointments/:id/participants", h.AddParticipant)

	fhirRead := fhirGroup.Group("", auth.RequireRole("physician", "nurse", "registrar", "scheduler"))
	fhirRead.GET("/Appointment/:id", h.GetFHIR)
}

type createRequest struct {
	SlotID         uuid.UUID  `json:"slot_id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	PractitionerID *uuid.UUID `json:"practitioner_id,omitempty"`
	Description    *string    `json:"description,omitempty"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.SlotID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "slot_id is required")
	}

	a := Appointment{
		SlotID:         &req.SlotID,
		PatientID:      req.PatientID,
		PractitionerID: req.PractitionerID,
		Description:    req.Description,
	}
	created, err := h.svc.Create(c.Request().Context(), &a)
	if err != nil {
		return mapAppointmentError(err)
	}

	h.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("slot_id", req.SlotID.String()).
		Msg("appointment created")
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapAppointmentError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	patientID := c.QueryParam("patient_id")
	if patientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	pid, err := uuid.Parse(patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type addParticipantRequest struct {
	ActorType string    `json:"actor_type"`
	ActorID   uuid.UUID `json:"actor_id"`
	Status    string    `json:"status,omitempty"`
}

func (h *Handler) AddParticipant(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req addParticipantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p := Participant{
		AppointmentID: id,
		ActorType:     req.ActorType,
		ActorID:       req.ActorID,
		Status:        req.Status,
	}
	if err := h.svc.AddParticipant(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetParticipants(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.GetParticipants(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetFHIR(c echo.Context) error {
	a, err := h.svc.GetByFHIRID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.NewOperationOutcome("error", "not-found", "Appointment not found"))
	}
	return c.JSON(http.StatusOK, a.ToFHIR())
}

func mapAppointmentError(err error) error {
	var stateErr *StateError
	switch {
	case errors.As(err, &stateErr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, stateErr.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, scheduling.ErrSlotNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "slot not found")
	case errors.Is(err, ErrSlotNotFree), errors.Is(err, ErrSlotBeingBooked), errors.Is(err, ErrSlotReserved):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
