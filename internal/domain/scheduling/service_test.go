package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock repositories --

type mockScheduleRepo struct {
	scheds map[uuid.UUID]*Schedule
	slots  *mockSlotRepo
}

func newMockScheduleRepo(slots *mockSlotRepo) *mockScheduleRepo {
	return &mockScheduleRepo{scheds: make(map[uuid.UUID]*Schedule), slots: slots}
}

func (m *mockScheduleRepo) Create(_ context.Context, s *Schedule) error {
	s.ID = uuid.New()
	if s.FHIRID == "" {
		s.FHIRID = s.ID.String()
	}
	s.CreatedAt = time.Now()
	s.UpdatedAt = time.Now()
	m.scheds[s.ID] = s
	return nil
}

func (m *mockScheduleRepo) GetByID(_ context.Context, id uuid.UUID) (*Schedule, error) {
	s, ok := m.scheds[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return s, nil
}

func (m *mockScheduleRepo) GetByFHIRID(_ context.Context, fhirID string) (*Schedule, error) {
	for _, s := range m.scheds {
		if s.FHIRID == fhirID {
			return s, nil
		}
	}
	return nil, ErrScheduleNotFound
}

func (m *mockScheduleRepo) Update(_ context.Context, s *Schedule) error {
	if _, ok := m.scheds[s.ID]; !ok {
		return ErrScheduleNotFound
	}
	s.UpdatedAt = time.Now()
	m.scheds[s.ID] = s
	return nil
}

func (m *mockScheduleRepo) ExtendHorizon(_ context.Context, id uuid.UUID, newEnd time.Time) error {
	s, ok := m.scheds[id]
	if !ok {
		return ErrScheduleNotFound
	}
	s.PlanningHorizonEnd = &newEnd
	return nil
}

func (m *mockScheduleRepo) ListByPractitioner(_ context.Context, practitionerID uuid.UUID, limit, offset int) ([]*Schedule, int, error) {
	var result []*Schedule
	for _, s := range m.scheds {
		if s.PractitionerID == practitionerID {
			result = append(result, s)
		}
	}
	return result, len(result), nil
}

func (m *mockScheduleRepo) HasSlots(_ context.Context, id uuid.UUID) (bool, error) {
	for _, sl := range m.slots.slots {
		if sl.ScheduleID == id {
			return true, nil
		}
	}
	return false, nil
}

type mockSlotRepo struct {
	slots map[uuid.UUID]*Slot

	batchCalls int
	failOnCall int // 1-based CreateBatch call that fails wholesale; 0 never
	rejectAll  bool
}

func newMockSlotRepo() *mockSlotRepo {
	return &mockSlotRepo{slots: make(map[uuid.UUID]*Slot)}
}

func (m *mockSlotRepo) overlaps(candidate *Slot) bool {
	for _, existing := range m.slots {
		if existing.ScheduleID == candidate.ScheduleID &&
			candidate.StartTime.Before(existing.EndTime) &&
			candidate.EndTime.After(existing.StartTime) {
			return true
		}
	}
	return false
}

func (m *mockSlotRepo) Create(_ context.Context, sl *Slot) error {
	sl.ID = uuid.New()
	if sl.FHIRID == "" {
		sl.FHIRID = sl.ID.String()
	}
	m.slots[sl.ID] = sl
	return nil
}

func (m *mockSlotRepo) CreateBatch(ctx context.Context, slots []*Slot) ([]SlotCreateResult, error) {
	m.batchCalls++
	if m.failOnCall > 0 && m.batchCalls == m.failOnCall {
		return nil, context.DeadlineExceeded
	}
	results := make([]SlotCreateResult, 0, len(slots))
	for _, sl := range slots {
		if m.rejectAll || m.overlaps(sl) {
			results = append(results, SlotCreateResult{Slot: sl, Reason: "overlaps an existing slot on this schedule"})
			continue
		}
		if err := m.Create(ctx, sl); err != nil {
			return nil, err
		}
		results = append(results, SlotCreateResult{Slot: sl, Created: true})
	}
	return results, nil
}

func (m *mockSlotRepo) GetByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	sl, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return sl, nil
}

func (m *mockSlotRepo) GetByFHIRID(_ context.Context, fhirID string) (*Slot, error) {
	for _, sl := range m.slots {
		if sl.FHIRID == fhirID {
			return sl, nil
		}
	}
	return nil, ErrSlotNotFound
}

func (m *mockSlotRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to string) (*Slot, error) {
	sl, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if sl.Status != from {
		return nil, ErrSlotNotInStatus
	}
	sl.Status = to
	return sl, nil
}

func (m *mockSlotRepo) ListBySchedule(_ context.Context, scheduleID uuid.UUID, limit, offset int) ([]*Slot, int, error) {
	var result []*Slot
	for _, sl := range m.slots {
		if sl.ScheduleID == scheduleID {
			result = append(result, sl)
		}
	}
	return result, len(result), nil
}

func newTestService() (*Service, *mockScheduleRepo, *mockSlotRepo) {
	slots := newMockSlotRepo()
	scheds := newMockScheduleRepo(slots)
	return NewService(scheds, slots, 50), scheds, slots
}

func testSchedule(t *testing.T, svc *Service) *Schedule {
	t.Helper()
	start, end, dur := 9*60, 17*60, 30
	sched := &Schedule{
		PractitionerID: uuid.New(),
		DailyStartMin:  &start,
		DailyEndMin:    &end,
		SlotMinutes:    &dur,
		Weekdays:       []int32{int32(time.Monday)},
	}
	if err := svc.CreateSchedule(context.Background(), sched); err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	return sched
}

// -- Schedule tests --

func TestCreateSchedule(t *testing.T) {
	svc, _, _ := newTestService()
	s := &Schedule{PractitionerID: uuid.New()}
	if err := svc.CreateSchedule(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Active == nil || !*s.Active {
		t.Error("expected active to default to true")
	}
}

func TestCreateSchedule_PractitionerIDRequired(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.CreateSchedule(context.Background(), &Schedule{}); err == nil {
		t.Error("expected error for missing practitioner_id")
	}
}

func TestCreateSchedule_InvertedWindowRejected(t *testing.T) {
	svc, _, _ := newTestService()
	start, end := 17*60, 9*60
	s := &Schedule{PractitionerID: uuid.New(), DailyStartMin: &start, DailyEndMin: &end}
	if err := svc.CreateSchedule(context.Background(), s); err == nil {
		t.Error("expected error for inverted daily window")
	}
}

func TestUpdateSchedule(t *testing.T) {
	svc, _, _ := newTestService()
	sched := testSchedule(t, svc)

	dur := 60
	updated, err := svc.UpdateSchedule(context.Background(), sched.ID, ScheduleUpdate{SlotMinutes: &dur})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.SlotMinutes == nil || *updated.SlotMinutes != 60 {
		t.Error("slot_minutes not updated")
	}
	if updated.DailyStartMin == nil || *updated.DailyStartMin != 9*60 {
		t.Error("untouched fields must survive the update")
	}
}

func TestUpdateSchedule_FrozenOnceSlotsExist(t *testing.T) {
	svc, _, _ := newTestService()
	sched := testSchedule(t, svc)
	if _, err := svc.CommitSlots(context.Background(), sched.ID, genParams(), nil); err != nil {
		t.Fatalf("commit: %v", err)
	}

	dur := 60
	_, err := svc.UpdateSchedule(context.Background(), sched.ID, ScheduleUpdate{SlotMinutes: &dur})
	if !errors.Is(err, ErrScheduleFrozen) {
		t.Fatalf("expected ErrScheduleFrozen after slots committed, got %v", err)
	}
}

func TestUpdateSchedule_InvertedWindowRejected(t *testing.T) {
	svc, _, _ := newTestService()
	sched := testSchedule(t, svc)

	start := 18 * 60
	if _, err := svc.UpdateSchedule(context.Background(), sched.ID, ScheduleUpdate{DailyStartMin: &start}); err == nil {
		t.Error("expected error for inverted daily window")
	}
}

func TestExtendHorizon(t *testing.T) {
	svc, _, _ := newTestService()
	sched := testSchedule(t, svc)
	newEnd := monday.AddDate(0, 1, 0)

	updated, err := svc.ExtendHorizon(context.Background(), sched.ID, newEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.PlanningHorizonEnd == nil || !updated.PlanningHorizonEnd.Equal(newEnd) {
		t.Error("horizon end not extended")
	}
}

func TestExtendHorizon_BackwardRejected(t *testing.T) {
	svc, _, _ := newTestService()
	sched := testSchedule(t, svc)
	end := monday.AddDate(0, 1, 0)
	if _, err := svc.ExtendHorizon(context.Background(), sched.ID, end); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.ExtendHorizon(context.Background(), sched.ID, end.AddDate(0, 0, -7)); err == nil {
		t.Error("expected error when moving horizon backward")
	}
}

// -- Generation through the service --

func genParams() GenerateParams {
	return GenerateParams{
		RangeStart: monday,
		RangeEnd:   monday,
		Now:        monday.AddDate(0, 0, -1),
	}
}

func TestGenerateSlots(t *testing.T) {
	svc, _, _ := newTestService()
	sched := testSchedule(t, svc)

	result, err := svc.GenerateSlots(context.Background(), sched.ID, genParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candidates) != 16 {
		t.Errorf("expected 16 candidates, got %d", len(result.Candidates))
	}
}

func TestGenerateSlots_InactiveSchedule(t *testing.T) {
	svc, _, _ := newTestService()
	sched := testSchedule(t, svc)
	inactive := false
	sched.Active = &inactive

	_, err := svc.GenerateSlots(context.Background(), sched.ID, genParams())
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError for inactive schedule, got %v", err)
	}
}

func TestGenerateSlots_BeyondHorizon(t *testing.T) {
	svc, _, _ := newTestService()
	sched := testSchedule(t, svc)
	horizon := monday.AddDate(0, 0, 3)
	sched.PlanningHorizonEnd = &horizon

	params := genParams()
	params.RangeEnd = monday.AddDate(0, 0, 14)
	_, err := svc.GenerateSlots(context.Background(), sched.ID, params)
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError beyond planning horizon, got %v", err)
	}
}

func TestGenerateSlots_Overrides(t *testing.T) {
	svc, _, _ := newTestService()
	sched := testSchedule(t, svc)

	params := genParams()
	dur := 60
	params.SlotMinutes = &dur
	result, err := svc.GenerateSlots(context.Background(), sched.ID, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candidates) != 8 {
		t.Errorf("expected 8 hour-long candidates, got %d", len(result.Candidates))
	}
}

func TestCommitSlots(t *testing.T) {
	svc, _, slots := newTestService()
	sched := testSchedule(t, svc)

	result, err := svc.CommitSlots(context.Background(), sched.ID, genParams(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Created) != 16 {
		t.Errorf("expected 16 created slots, got %d", len(result.Created))
	}
	if len(slots.slots) != 16 {
		t.Errorf("expected 16 persisted slots, got %d", len(slots.slots))
	}
}

func TestCommitSlots_RerunRejectsDuplicates(t *testing.T) {
	svc, _, _ := newTestService()
	sched := testSchedule(t, svc)
	ctx := context.Background()

	if _, err := svc.CommitSlots(ctx, sched.ID, genParams(), nil); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	_, err := svc.CommitSlots(ctx, sched.ID, genParams(), nil)
	if _, ok := err.(*ConflictError); !ok {
		t.Fatalf("expected ConflictError on identical rerun, got %v", err)
	}
}

func TestGetScheduleByFHIRID(t *testing.T) {
	svc, _, _ := newTestService()
	sched := testSchedule(t, svc)

	fetched, err := svc.GetScheduleByFHIRID(context.Background(), sched.FHIRID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetched.ID != sched.ID {
		t.Error("unexpected ID mismatch")
	}
}

func TestGetSlot_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.GetSlot(context.Background(), uuid.New()); err == nil {
		t.Error("expected error for unknown slot")
	}
}
