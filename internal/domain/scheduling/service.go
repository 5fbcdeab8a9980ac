package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrScheduleFrozen rejects recurrence edits once slots have been committed
// against the schedule. Only the planning horizon may still move.
var ErrScheduleFrozen = errors.New("schedule already has slots; only the planning horizon can change")

type Service struct {
	schedules ScheduleRepository
	slots     SlotRepository
	committer *BatchCommitter
}

func NewService(schedules ScheduleRepository, slots SlotRepository, chunkSize int) *Service {
	return &Service{
		schedules: schedules,
		slots:     slots,
		committer: NewBatchCommitter(slots, chunkSize),
	}
}

// -- Schedule --

func (s *Service) CreateSchedule(ctx context.Context, sched *Schedule) error {
	if sched.PractitionerID == uuid.Nil {
		return fmt.Errorf("practitioner_id is required")
	}
	if sched.Active == nil {
		active := true
		sched.Active = &active
	}
	if sched.DailyStartMin != nil && sched.DailyEndMin != nil && *sched.DailyStartMin >= *sched.DailyEndMin {
		return fmt.Errorf("daily window is inverted or empty")
	}
	return s.schedules.Create(ctx, sched)
}

func (s *Service) GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return s.schedules.GetByID(ctx, id)
}

func (s *Service) GetScheduleByFHIRID(ctx context.Context, fhirID string) (*Schedule, error) {
	return s.schedules.GetByFHIRID(ctx, fhirID)
}

// ScheduleUpdate carries the recurrence fields a schedule accepts while no
// slots exist against it. Nil fields are left unchanged.
type ScheduleUpdate struct {
	Active        *bool
	DailyStartMin *int
	DailyEndMin   *int
	SlotMinutes   *int
	Weekdays      []int32
	BreakStartMin *int
	BreakEndMin   *int
	Comment       *string
}

// UpdateSchedule rewrites the recurrence pattern of a schedule that has no
// committed slots yet. Once the first slot lands the schedule is frozen and
// ExtendHorizon is the only mutation left.
func (s *Service) UpdateSchedule(ctx context.Context, id uuid.UUID, upd ScheduleUpdate) (*Schedule, error) {
	sched, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	frozen, err := s.schedules.HasSlots(ctx, id)
	if err != nil {
		return nil, err
	}
	if frozen {
		return nil, ErrScheduleFrozen
	}

	if upd.Active != nil {
		sched.Active = upd.Active
	}
	if upd.DailyStartMin != nil {
		sched.DailyStartMin = upd.DailyStartMin
	}
	if upd.DailyEndMin != nil {
		sched.DailyEndMin = upd.DailyEndMin
	}
	if upd.SlotMinutes != nil {
		sched.SlotMinutes = upd.SlotMinutes
	}
	if len(upd.Weekdays) > 0 {
		sched.Weekdays = upd.Weekdays
	}
	if upd.BreakStartMin != nil {
		sched.BreakStartMin = upd.BreakStartMin
	}
	if upd.BreakEndMin != nil {
		sched.BreakEndMin = upd.BreakEndMin
	}
	if upd.Comment != nil {
		sched.Comment = upd.Comment
	}
	if sched.DailyStartMin != nil && sched.DailyEndMin != nil && *sched.DailyStartMin >= *sched.DailyEndMin {
		return nil, fmt.Errorf("daily window is inverted or empty")
	}

	if err := s.schedules.Update(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// ExtendHorizon is the only mutation a schedule accepts once slots have been
// generated against it.
func (s *Service) ExtendHorizon(ctx context.Context, id uuid.UUID, newEnd time.Time) (*Schedule, error) {
	sched, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sched.PlanningHorizonEnd != nil && !newEnd.After(*sched.PlanningHorizonEnd) {
		return nil, fmt.Errorf("new horizon end must be after the current one")
	}
	if err := s.schedules.ExtendHorizon(ctx, id, newEnd); err != nil {
		return nil, err
	}
	return s.schedules.GetByID(ctx, id)
}

func (s *Service) ListSchedulesByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]*Schedule, int, error) {
	return s.schedules.ListByPractitioner(ctx, practitionerID, limit, offset)
}

// -- Slot generation --

// GenerateParams carries the per-run date range plus optional overrides of
// the schedule's stored recurrence.
type GenerateParams struct {
	RangeStart    time.Time
	RangeEnd      time.Time
	DailyStartMin *int
	DailyEndMin   *int
	SlotMinutes   *int
	Weekdays      []int
	BreakStartMin *int
	BreakEndMin   *int
	Now           time.Time
}

// GenerateSlots expands the schedule's pattern into candidates without
// touching the store. Validation failures surface before any commit.
func (s *Service) GenerateSlots(ctx context.Context, scheduleID uuid.UUID, params GenerateParams) (*GenerationResult, error) {
	sched, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if sched.Active != nil && !*sched.Active {
		return nil, &ValidationError{Reason: "schedule is inactive"}
	}
	if sched.PlanningHorizonEnd != nil && params.RangeEnd.After(*sched.PlanningHorizonEnd) {
		return nil, &ValidationError{Reason: "date range exceeds the schedule's planning horizon"}
	}

	pattern := PatternFromSchedule(sched, params.RangeStart, params.RangeEnd, params.Now)
	if params.DailyStartMin != nil {
		pattern.DailyStartMin = *params.DailyStartMin
	}
	if params.DailyEndMin != nil {
		pattern.DailyEndMin = *params.DailyEndMin
	}
	if params.SlotMinutes != nil {
		pattern.SlotDuration = time.Duration(*params.SlotMinutes) * time.Minute
	}
	if len(params.Weekdays) > 0 {
		pattern.Weekdays = map[time.Weekday]bool{}
		for _, wd := range params.Weekdays {
			pattern.Weekdays[time.Weekday(wd)] = true
		}
	}
	if params.BreakStartMin != nil && params.BreakEndMin != nil {
		pattern.BreakStartMin = *params.BreakStartMin
		pattern.BreakEndMin = *params.BreakEndMin
	}

	return Generate(pattern)
}

// CommitResult is the caller-facing aggregate of a generate-and-commit run.
type CommitResult struct {
	*CommitOutcome
	SkippedPast int `json:"skipped_past"`
}

// CommitSlots generates candidates and writes them through the batch
// committer. Partial commits are reported, never rolled back.
func (s *Service) CommitSlots(ctx context.Context, scheduleID uuid.UUID, params GenerateParams, onProgress ProgressFunc) (*CommitResult, error) {
	gen, err := s.GenerateSlots(ctx, scheduleID, params)
	if err != nil {
		return nil, err
	}

	outcome, err := s.committer.Commit(ctx, gen.Candidates, onProgress)
	return &CommitResult{CommitOutcome: outcome, SkippedPast: gen.SkippedPast}, err
}

// -- Slot reads --

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.slots.GetByID(ctx, id)
}

func (s *Service) GetSlotByFHIRID(ctx context.Context, fhirID string) (*Slot, error) {
	return s.slots.GetByFHIRID(ctx, fhirID)
}

func (s *Service) ListSlotsBySchedule(ctx context.Context, scheduleID uuid.UUID, limit, offset int) ([]*Slot, int, error) {
	return s.slots.ListBySchedule(ctx, scheduleID, limit, offset)
}
