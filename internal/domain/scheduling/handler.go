package scheduling

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

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
	readGroup.GET("/schedules", h.ListSchedules)
	readGroup.GET("/schedules/:id", h.GetSchedule)
	readGroup.GET("/schedules/:id/slots", h.ListSlots)
	readGroup.GET("/slots/:id", h.GetSlot)

	writeGroup := api.Group("", auth.RequireRole("registrar", "scheduler"))
	writeGroup.POST("/schedules", h.CreateSchedule)
	writeGroup.PUT("/schedules/:id", h.UpdateSchedule)
	writeGroup.POST("/schedules/:id/horizon", h.ExtendHorizon)
	// Plain path segments: echo would read a ":" inside a segment as a
	// parameter marker and merge both routes into one.
	writeGroup.POST("/schedules/:id/slots/generate", h.GenerateSlots)
	writeGroup.POST("/schedules/:id/slots/commit", h.CommitSlots)

	fhirRead := fhirGroup.Group("", auth.RequireRole("physician", "nurse", "registrar", "scheduler"))
	fhirRead.GET("/Schedule/:id", h.GetScheduleFHIR)
	fhirRead.GET("/Slot/:id", h.GetSlotFHIR)
}

// -- Schedule handlers --

type createScheduleRequest struct {
	PractitionerID       uuid.UUID  `json:"practitioner_id"`
	Active               *bool      `json:"active,omitempty"`
	PlanningHorizonStart *time.Time `json:"planning_horizon_start,omitempty"`
	PlanningHorizonEnd   *time.Time `json:"planning_horizon_end,omitempty"`
	DailyStart           string     `json:"daily_start,omitempty"`
	DailyEnd             string     `json:"daily_end,omitempty"`
	SlotMinutes          *int       `json:"slot_minutes,omitempty"`
	Weekdays             []int32    `json:"weekdays,omitempty"`
	BreakStart           string     `json:"break_start,omitempty"`
	BreakEnd             string     `json:"break_end,omitempty"`
	Comment              *string    `json:"comment,omitempty"`
}

func (h *Handler) CreateSchedule(c echo.Context) error {
	var req createScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sched := Schedule{
		PractitionerID:       req.PractitionerID,
		Active:               req.Active,
		PlanningHorizonStart: req.PlanningHorizonStart,
		PlanningHorizonEnd:   req.PlanningHorizonEnd,
		SlotMinutes:          req.SlotMinutes,
		Weekdays:             req.Weekdays,
		Comment:              req.Comment,
	}

	var err error
	if sched.DailyStartMin, err = parseClockOpt(req.DailyStart); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid daily_start")
	}
	if sched.DailyEndMin, err = parseClockOpt(req.DailyEnd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid daily_end")
	}
	if sched.BreakStartMin, err = parseClockOpt(req.BreakStart); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid break_start")
	}
	if sched.BreakEndMin, err = parseClockOpt(req.BreakEnd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid break_end")
	}

	if err := h.svc.CreateSchedule(c.Request().Context(), &sched); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, sched)
}

func (h *Handler) GetSchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sched, err := h.svc.GetSchedule(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "schedule not found")
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) ListSchedules(c echo.Context) error {
	pg := pagination.FromContext(c)
	practID := c.QueryParam("practitioner_id")
	if practID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "practitioner_id is required")
	}
	pid, err := uuid.Parse(practID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid practitioner_id")
	}
	items, total, err := h.svc.ListSchedulesByPractitioner(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type updateScheduleRequest struct {
	Active      *bool   `json:"active,omitempty"`
	DailyStart  string  `json:"daily_start,omitempty"`
	DailyEnd    string  `json:"daily_end,omitempty"`
	SlotMinutes *int    `json:"slot_minutes,omitempty"`
	Weekdays    []int32 `json:"weekdays,omitempty"`
	BreakStart  string  `json:"break_start,omitempty"`
	BreakEnd    string  `json:"break_end,omitempty"`
	Comment     *string `json:"comment,omitempty"`
}

func (h *Handler) UpdateSchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	upd := ScheduleUpdate{
		Active:      req.Active,
		SlotMinutes: req.SlotMinutes,
		Weekdays:    req.Weekdays,
		Comment:     req.Comment,
	}
	if upd.DailyStartMin, err = parseClockOpt(req.DailyStart); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid daily_start")
	}
	if upd.DailyEndMin, err = parseClockOpt(req.DailyEnd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid daily_end")
	}
	if upd.BreakStartMin, err = parseClockOpt(req.BreakStart); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid break_start")
	}
	if upd.BreakEndMin, err = parseClockOpt(req.BreakEnd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid break_end")
	}

	sched, err := h.svc.UpdateSchedule(c.Request().Context(), id, upd)
	if err != nil {
		switch {
		case errors.Is(err, ErrScheduleFrozen):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrScheduleNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "schedule not found")
		default:
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
	}
	return c.JSON(http.StatusOK, sched)
}

type extendHorizonRequest struct {
	PlanningHorizonEnd time.Time `json:"planning_horizon_end"`
}

func (h *Handler) ExtendHorizon(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req extendHorizonRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sched, err := h.svc.ExtendHorizon(c.Request().Context(), id, req.PlanningHorizonEnd)
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "schedule not found")
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, sched)
}

// -- Generation handlers --

type generateRequest struct {
	RangeStart  time.Time `json:"range_start"`
	RangeEnd    time.Time `json:"range_end"`
	DailyStart  string    `json:"daily_start,omitempty"`
	DailyEnd    string    `json:"daily_end,omitempty"`
	SlotMinutes *int      `json:"slot_minutes,omitempty"`
	Weekdays    []int     `json:"weekdays,omitempty"`
	BreakStart  string    `json:"break_start,omitempty"`
	BreakEnd    string    `json:"break_end,omitempty"`
	// Now is the caller's wall-clock reference for the past-time filter.
	// Defaults to server time when absent.
	Now *time.Time `json:"now,omitempty"`
}

func (h *Handler) generateParams(req generateRequest) (GenerateParams, error) {
	params := GenerateParams{
		RangeStart:  req.RangeStart,
		RangeEnd:    req.RangeEnd,
		SlotMinutes: req.SlotMinutes,
		Weekdays:    req.Weekdays,
	}
	var err error
	if params.DailyStartMin, err = parseClockOpt(req.DailyStart); err != nil {
		return params, fmt.Errorf("invalid daily_start")
	}
	if params.DailyEndMin, err = parseClockOpt(req.DailyEnd); err != nil {
		return params, fmt.Errorf("invalid daily_end")
	}
	if params.BreakStartMin, err = parseClockOpt(req.BreakStart); err != nil {
		return params, fmt.Errorf("invalid break_start")
	}
	if params.BreakEndMin, err = parseClockOpt(req.BreakEnd); err != nil {
		return params, fmt.Errorf("invalid break_end")
	}
	if req.Now != nil {
		params.Now = *req.Now
	} else {
		params.Now = time.Now()
	}
	return params, nil
}

func (h *Handler) GenerateSlots(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	params, err := h.generateParams(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.svc.GenerateSlots(c.Request().Context(), id, params)
	if err != nil {
		return mapSchedulingError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) CommitSlots(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	params, err := h.generateParams(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rid, _ := c.Get("request_id").(string)
	onProgress := func(processed, total int) {
		h.logger.Info().
			Str("request_id", rid).
			Str("schedule_id", id.String()).
			Int("processed", processed).
			Int("total", total).
			Msg("slot batch progress")
	}

	result, err := h.svc.CommitSlots(c.Request().Context(), id, params, onProgress)
	if err != nil {
		var transportErr *TransportError
		if errors.As(err, &transportErr) {
			// Committed chunks are preserved; report them with the failure.
			return c.JSON(http.StatusBadGateway, map[string]interface{}{
				"error":  transportErr.Error(),
				"result": result,
			})
		}
		var conflictErr *ConflictError
		if errors.As(err, &conflictErr) {
			return c.JSON(http.StatusConflict, map[string]interface{}{
				"error":  conflictErr.Error(),
				"result": result,
			})
		}
		return mapSchedulingError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

// -- Slot handlers --

func (h *Handler) GetSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sl, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "slot not found")
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) ListSlots(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSlotsBySchedule(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- FHIR handlers --

func (h *Handler) GetScheduleFHIR(c echo.Context) error {
	sched, err := h.svc.GetScheduleByFHIRID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.NewOperationOutcome("error", "not-found", "Schedule not found"))
	}
	return c.JSON(http.StatusOK, sched.ToFHIR())
}

func (h *Handler) GetSlotFHIR(c echo.Context) error {
	sl, err := h.svc.GetSlotByFHIRID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.NewOperationOutcome("error", "not-found", "Slot not found"))
	}
	return c.JSON(http.StatusOK, sl.ToFHIR())
}

// -- helpers --

func mapSchedulingError(err error) error {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, vErr.Error())
	case errors.Is(err, ErrScheduleNotFound), errors.Is(err, ErrSlotNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// parseClockOpt parses "HH:MM" into minutes from midnight. Empty input
// yields nil.
func parseClockOpt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return nil, err
	}
	min := t.Hour()*60 + t.Minute()
	return &min, nil
}
