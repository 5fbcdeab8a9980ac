package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/schedcore/schedcore/internal/domain/scheduling"
)

// -- Mock repositories --

type mockRepo struct {
	appts        map[uuid.UUID]*Appointment
	participants map[uuid.UUID][]*Participant

	createErr error // injected Create failure
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		appts:        make(map[uuid.UUID]*Appointment),
		participants: make(map[uuid.UUID][]*Participant),
	}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	if m.createErr != nil {
		return m.createErr
	}
	a.ID = uuid.New()
	if a.FHIRID == "" {
		a.FHIRID = a.ID.String()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()
	m.appts[a.ID] = a
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (m *mockRepo) GetByFHIRID(_ context.Context, fhirID string) (*Appointment, error) {
	for _, a := range m.appts {
		if a.FHIRID == fhirID {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if a.Status != from {
		return nil, ErrStatusMoved
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	return a, nil
}

func (m *mockRepo) SetCancellationReason(_ context.Context, id uuid.UUID, reason string) error {
	a, ok := m.appts[id]
	if !ok {
		return ErrNotFound
	}
	a.CancellationReason = &reason
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) GetBySlot(_ context.Context, slotID uuid.UUID) (*Appointment, error) {
	for _, a := range m.appts {
		if a.SlotID != nil && *a.SlotID == slotID && !IsTerminal(a.Status) {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) AddParticipant(_ context.Context, p *Participant) error {
	p.ID = uuid.New()
	m.participants[p.AppointmentID] = append(m.participants[p.AppointmentID], p)
	return nil
}

func (m *mockRepo) GetParticipants(_ context.Context, appointmentID uuid.UUID) ([]*Participant, error) {
	return m.participants[appointmentID], nil
}

type mockSlotRepo struct {
	slots map[uuid.UUID]*scheduling.Slot
}

func newMockSlotRepo() *mockSlotRepo {
	return &mockSlotRepo{slots: make(map[uuid.UUID]*scheduling.Slot)}
}

func (m *mockSlotRepo) addSlot(status string) *scheduling.Slot {
	sl := &scheduling.Slot{
		ID:         uuid.New(),
		ScheduleID: uuid.New(),
		Status:     status,
		StartTime:  time.Now().Add(24 * time.Hour),
		EndTime:    time.Now().Add(24*time.Hour + 30*time.Minute),
	}
	m.slots[sl.ID] = sl
	return sl
}

func (m *mockSlotRepo) Create(_ context.Context, sl *scheduling.Slot) error {
	sl.ID = uuid.New()
	m.slots[sl.ID] = sl
	return nil
}

func (m *mockSlotRepo) CreateBatch(_ context.Context, slots []*scheduling.Slot) ([]scheduling.SlotCreateResult, error) {
	results := make([]scheduling.SlotCreateResult, 0, len(slots))
	for _, sl := range slots {
		sl.ID = uuid.New()
		m.slots[sl.ID] = sl
		results = append(results, scheduling.SlotCreateResult{Slot: sl, Created: true})
	}
	return results, nil
}

func (m *mockSlotRepo) GetByID(_ context.Context, id uuid.UUID) (*scheduling.Slot, error) {
	sl, ok := m.slots[id]
	if !ok {
		return nil, scheduling.ErrSlotNotFound
	}
	return sl, nil
}

func (m *mockSlotRepo) GetByFHIRID(_ context.Context, fhirID string) (*scheduling.Slot, error) {
	for _, sl := range m.slots {
		if sl.FHIRID == fhirID {
			return sl, nil
		}
	}
	return nil, scheduling.ErrSlotNotFound
}

func (m *mockSlotRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to string) (*scheduling.Slot, error) {
	sl, ok := m.slots[id]
	if !ok {
		return nil, scheduling.ErrSlotNotFound
	}
	if sl.Status != from {
		return nil, scheduling.ErrSlotNotInStatus
	}
	sl.Status = to
	return sl, nil
}

func (m *mockSlotRepo) ListBySchedule(_ context.Context, scheduleID uuid.UUID, limit, offset int) ([]*scheduling.Slot, int, error) {
	var result []*scheduling.Slot
	for _, sl := range m.slots {
		if sl.ScheduleID == scheduleID {
			result = append(result, sl)
		}
	}
	return result, len(result), nil
}

func newTestService() (*Service, *mockRepo, *mockSlotRepo) {
	repo := newMockRepo()
	slots := newMockSlotRepo()
	return NewService(repo, slots, nil), repo, slots
}

func createTestAppointment(t *testing.T, svc *Service, slots *mockSlotRepo) *Appointment {
	t.Helper()
	sl := slots.addSlot(scheduling.SlotFree)
	a := &Appointment{SlotID: &sl.ID, PatientID: uuid.New()}
	created, err := svc.Create(context.Background(), a)
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return created
}

// -- Booking --

func TestCreate_ReservesSlot(t *testing.T) {
	svc, _, slots := newTestService()
	a := createTestAppointment(t, svc, slots)

	if a.Status != StatusPending {
		t.Errorf("expected pending status, got %s", a.Status)
	}
	sl := slots.slots[*a.SlotID]
	if sl.Status != scheduling.SlotBusy {
		t.Errorf("expected slot busy after booking, got %s", sl.Status)
	}
	if a.StartTime == nil || !a.StartTime.Equal(sl.StartTime) {
		t.Error("appointment start time not copied from slot")
	}
}

func TestCreate_SlotNotFree(t *testing.T) {
	svc, _, slots := newTestService()
	sl := slots.addSlot(scheduling.SlotBusy)

	_, err := svc.Create(context.Background(), &Appointment{SlotID: &sl.ID, PatientID: uuid.New()})
	if !errors.Is(err, ErrSlotNotFree) {
		t.Fatalf("expected ErrSlotNotFree, got %v", err)
	}
}

func TestCreate_DoubleBookingRejected(t *testing.T) {
	svc, _, slots := newTestService()
	a := createTestAppointment(t, svc, slots)

	_, err := svc.Create(context.Background(), &Appointment{SlotID: a.SlotID, PatientID: uuid.New()})
	if !errors.Is(err, ErrSlotNotFree) {
		t.Fatalf("expected ErrSlotNotFree on second booking, got %v", err)
	}
}

func TestCreate_SlotReservedByRace(t *testing.T) {
	svc, repo, slots := newTestService()
	sl := slots.addSlot(scheduling.SlotFree)
	// The store's one-live-appointment-per-slot index fires when a racing
	// booking landed first.
	repo.createErr = ErrSlotReserved

	_, err := svc.Create(context.Background(), &Appointment{SlotID: &sl.ID, PatientID: uuid.New()})
	if !errors.Is(err, ErrSlotReserved) {
		t.Fatalf("expected ErrSlotReserved, got %v", err)
	}
	if slots.slots[sl.ID].Status != scheduling.SlotFree {
		t.Error("expected slot rolled back to free after failed insert")
	}
}

func TestCreate_PatientRequired(t *testing.T) {
	svc, _, slots := newTestService()
	sl := slots.addSlot(scheduling.SlotFree)
	if _, err := svc.Create(context.Background(), &Appointment{SlotID: &sl.ID}); err == nil {
		t.Error("expected error for missing patient_id")
	}
}

func TestCreate_SlotRequired(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Create(context.Background(), &Appointment{PatientID: uuid.New()}); err == nil {
		t.Error("expected error for missing slot_id")
	}
}

func TestCreate_UnknownSlot(t *testing.T) {
	svc, _, _ := newTestService()
	slotID := uuid.New()
	_, err := svc.Create(context.Background(), &Appointment{SlotID: &slotID, PatientID: uuid.New()})
	if !errors.Is(err, scheduling.ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}
}

// -- Transitions --

func TestConfirm(t *testing.T) {
	svc, _, slots := newTestService()
	a := createTestAppointment(t, svc, slots)

	updated, err := svc.Confirm(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusBooked {
		t.Errorf("expected booked, got %s", updated.Status)
	}
}

func TestConfirm_AlreadyBooked(t *testing.T) {
	svc, _, slots := newTestService()
	a := createTestAppointment(t, svc, slots)
	if _, err := svc.Confirm(context.Background(), a.ID); err != nil {
		t.Fatalf("first confirm: %v", err)
	}

	_, err := svc.Confirm(context.Background(), a.ID)
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError on double confirm, got %v", err)
	}
}

func TestMarkArrived_RequiresBooked(t *testing.T) {
	svc, _, slots := newTestService()
	a := createTestAppointment(t, svc, slots)

	_, err := svc.MarkArrived(context.Background(), a.ID)
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError for mark-arrived on pending, got %v", err)
	}
	if stateErr.Current != StatusPending || stateErr.Action != ActionMarkArrived {
		t.Errorf("StateError does not name the attempt: %+v", stateErr)
	}
}

func TestCancel_ReleasesSlot(t *testing.T) {
	svc, _, slots := newTestService()
	a := createTestAppointment(t, svc, slots)

	updated, err := svc.Cancel(context.Background(), a.ID, "patient request")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", updated.Status)
	}
	if updated.CancellationReason == nil || *updated.CancellationReason != "patient request" {
		t.Error("cancellation reason not recorded")
	}
	if slots.slots[*a.SlotID].Status != scheduling.SlotFree {
		t.Error("expected slot released back to free")
	}
}

func TestCancel_SlotRebookableAfterCancel(t *testing.T) {
	svc, _, slots := newTestService()
	a := createTestAppointment(t, svc, slots)
	if _, err := svc.Cancel(context.Background(), a.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := svc.Create(context.Background(), &Appointment{SlotID: a.SlotID, PatientID: uuid.New()})
	if err != nil {
		t.Fatalf("expected slot to be rebookable after cancel, got %v", err)
	}
}

func TestCancel_TerminalRejected(t *testing.T) {
	svc, _, slots := newTestService()
	a := createTestAppointment(t, svc, slots)
	if _, err := svc.Cancel(context.Background(), a.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := svc.Cancel(context.Background(), a.ID, "")
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError on cancelled appointment, got %v", err)
	}
}

func TestFulfill_FullPath(t *testing.T) {
	svc, _, slots := newTestService()
	a := createTestAppointment(t, svc, slots)
	ctx := context.Background()

	if _, err := svc.Confirm(ctx, a.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.MarkArrived(ctx, a.ID); err != nil {
		t.Fatalf("mark-arrived: %v", err)
	}
	updated, err := svc.Fulfill(ctx, a.ID)
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if updated.Status != StatusFulfilled {
		t.Errorf("expected fulfilled, got %s", updated.Status)
	}
}

func TestTransition_StaleSnapshotLosesCleanly(t *testing.T) {
	svc, repo, slots := newTestService()
	a := createTestAppointment(t, svc, slots)

	// Another caller moved the status between our read and write.
	repo.appts[a.ID].Status = StatusBooked
	_, err := svc.Confirm(context.Background(), a.ID)
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError after concurrent move, got %v", err)
	}
}

// -- Participants --

func TestAddParticipant(t *testing.T) {
	svc, _, slots := newTestService()
	a := createTestAppointment(t, svc, slots)

	p := &Participant{AppointmentID: a.ID, ActorType: "Practitioner", ActorID: uuid.New()}
	if err := svc.AddParticipant(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != "needs-action" {
		t.Errorf("expected default needs-action status, got %q", p.Status)
	}

	items, err := svc.GetParticipants(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 participant, got %d", len(items))
	}
}

func TestAddParticipant_ActorTypeRequired(t *testing.T) {
	svc, _, _ := newTestService()
	p := &Participant{AppointmentID: uuid.New(), ActorID: uuid.New()}
	if err := svc.AddParticipant(context.Background(), p); err == nil {
		t.Error("expected error for missing actor_type")
	}
}

func TestAppointmentToFHIR(t *testing.T) {
	svc, _, slots := newTestService()
	a := createTestAppointment(t, svc, slots)

	resource := a.ToFHIR()
	if resource["resourceType"] != "Appointment" {
		t.Errorf("unexpected resourceType %v", resource["resourceType"])
	}
	if resource["status"] != string(StatusPending) {
		t.Errorf("unexpected status %v", resource["status"])
	}
	if _, ok := resource["participant"]; !ok {
		t.Error("expected participant list in FHIR projection")
	}
}
