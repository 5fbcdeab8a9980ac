package scheduling

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// monday is a fixed Monday so generation stays deterministic.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func basePattern() GenerationPattern {
	return GenerationPattern{
		ScheduleID:    uuid.New(),
		RangeStart:    monday,
		RangeEnd:      monday,
		DailyStartMin: 9 * 60,  // 09:00
		DailyEndMin:   17 * 60, // 17:00
		SlotDuration:  30 * time.Minute,
		Weekdays:      map[time.Weekday]bool{time.Monday: true},
		Now:           monday.AddDate(0, 0, -1),
	}
}

func TestGenerate_FullDay(t *testing.T) {
	result, err := Generate(basePattern())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candidates) != 16 {
		t.Errorf("expected 16 candidates for 09:00-17:00 at 30m, got %d", len(result.Candidates))
	}
	if result.SkippedPast != 0 {
		t.Errorf("expected no skipped candidates, got %d", result.SkippedPast)
	}
}

func TestGenerate_BreakWindow(t *testing.T) {
	p := basePattern()
	p.BreakStartMin = 12 * 60 // 12:00
	p.BreakEndMin = 13 * 60   // 13:00

	result, err := Generate(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candidates) != 14 {
		t.Errorf("expected 14 candidates with a 12:00-13:00 break, got %d", len(result.Candidates))
	}
	breakStart := monday.Add(12 * time.Hour)
	breakEnd := monday.Add(13 * time.Hour)
	for _, sl := range result.Candidates {
		if sl.StartTime.Before(breakEnd) && sl.EndTime.After(breakStart) {
			t.Errorf("candidate %v-%v overlaps the break window", sl.StartTime, sl.EndTime)
		}
	}
}

func TestGenerate_PartialBreakOverlapExcluded(t *testing.T) {
	p := basePattern()
	// Break 12:15-12:45 clips both the 12:00 and 12:30 slots even though
	// neither is fully contained.
	p.BreakStartMin = 12*60 + 15
	p.BreakEndMin = 12*60 + 45

	result, err := Generate(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candidates) != 14 {
		t.Errorf("expected 14 candidates, got %d", len(result.Candidates))
	}
}

func TestGenerate_PastFilter(t *testing.T) {
	p := basePattern()
	p.Now = monday.Add(14 * time.Hour) // 14:00 on the generated day

	result, err := Generate(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Starts 09:00 through 14:00 inclusive are not after Now.
	if result.SkippedPast != 11 {
		t.Errorf("expected 11 skipped past candidates, got %d", result.SkippedPast)
	}
	if len(result.Candidates) != 5 {
		t.Errorf("expected 5 remaining candidates, got %d", len(result.Candidates))
	}
	for _, sl := range result.Candidates {
		if !sl.StartTime.After(p.Now) {
			t.Errorf("candidate starting %v should have been skipped as past", sl.StartTime)
		}
	}
}

func TestGenerate_NoTrailingPartialSlot(t *testing.T) {
	p := basePattern()
	p.DailyEndMin = 16*60 + 45 // 16:45 leaves a 15m tail

	result, err := Generate(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := result.Candidates[len(result.Candidates)-1]
	if got := last.EndTime; got.After(monday.Add(16*time.Hour + 45*time.Minute)) {
		t.Errorf("trailing slot spills past daily end: %v", got)
	}
	if len(result.Candidates) != 15 {
		t.Errorf("expected 15 candidates, got %d", len(result.Candidates))
	}
}

func TestGenerate_MultiDayOrdering(t *testing.T) {
	p := basePattern()
	p.RangeEnd = monday.AddDate(0, 0, 6)
	p.Weekdays = map[time.Weekday]bool{time.Monday: true, time.Wednesday: true}

	result, err := Generate(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candidates) != 32 {
		t.Errorf("expected 32 candidates over two days, got %d", len(result.Candidates))
	}
	for i := 1; i < len(result.Candidates); i++ {
		if !result.Candidates[i].StartTime.After(result.Candidates[i-1].StartTime) {
			t.Fatalf("candidates out of order at index %d", i)
		}
	}
}

func TestGenerate_SlotInvariants(t *testing.T) {
	p := basePattern()
	p.BreakStartMin = 12 * 60
	p.BreakEndMin = 13 * 60

	result, err := Generate(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dayStart := monday.Add(9 * time.Hour)
	dayEnd := monday.Add(17 * time.Hour)
	for _, sl := range result.Candidates {
		if !sl.StartTime.Before(sl.EndTime) {
			t.Errorf("slot start %v not before end %v", sl.StartTime, sl.EndTime)
		}
		if sl.EndTime.Sub(sl.StartTime) != p.SlotDuration {
			t.Errorf("slot duration %v != %v", sl.EndTime.Sub(sl.StartTime), p.SlotDuration)
		}
		if sl.StartTime.Before(dayStart) || sl.EndTime.After(dayEnd) {
			t.Errorf("slot %v-%v outside daily window", sl.StartTime, sl.EndTime)
		}
		if sl.Status != SlotFree {
			t.Errorf("expected free status, got %q", sl.Status)
		}
	}
}

func TestGenerate_NoMatchingWeekday(t *testing.T) {
	p := basePattern()
	p.Weekdays = map[time.Weekday]bool{time.Sunday: true} // range is Monday only

	_, err := Generate(p)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestGenerate_InvertedDailyWindow(t *testing.T) {
	p := basePattern()
	p.DailyStartMin = 17 * 60
	p.DailyEndMin = 9 * 60

	_, err := Generate(p)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestGenerate_EmptyWeekdaySet(t *testing.T) {
	p := basePattern()
	p.Weekdays = map[time.Weekday]bool{}

	_, err := Generate(p)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestGenerate_AllCandidatesPast(t *testing.T) {
	p := basePattern()
	p.Now = monday.AddDate(0, 0, 1) // everything is in the past

	_, err := Generate(p)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError when filtering empties the run, got %v", err)
	}
}

func TestGenerate_DurationLongerThanWindow(t *testing.T) {
	p := basePattern()
	p.SlotDuration = 10 * time.Hour

	_, err := Generate(p)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	p := basePattern()
	first, err := Generate(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Generate(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Candidates) != len(second.Candidates) {
		t.Fatalf("runs disagree: %d vs %d", len(first.Candidates), len(second.Candidates))
	}
	for i := range first.Candidates {
		if !first.Candidates[i].StartTime.Equal(second.Candidates[i].StartTime) {
			t.Errorf("candidate %d differs between runs", i)
		}
	}
}

func TestPatternFromSchedule(t *testing.T) {
	start, end, dur := 9*60, 17*60, 30
	sched := &Schedule{
		ID:            uuid.New(),
		DailyStartMin: &start,
		DailyEndMin:   &end,
		SlotMinutes:   &dur,
		Weekdays:      []int32{1, 3},
	}
	p := PatternFromSchedule(sched, monday, monday, monday.AddDate(0, 0, -1))
	if p.DailyStartMin != start || p.DailyEndMin != end {
		t.Error("daily window not carried from schedule")
	}
	if p.SlotDuration != 30*time.Minute {
		t.Errorf("expected 30m duration, got %v", p.SlotDuration)
	}
	if !p.Weekdays[time.Monday] || !p.Weekdays[time.Wednesday] {
		t.Error("weekdays not carried from schedule")
	}
}
