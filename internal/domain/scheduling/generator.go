package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationError reports a generation pattern that cannot produce any
// usable slot. It is raised before any store call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid generation pattern: " + e.Reason
}

// GenerationPattern describes a recurring availability pattern to expand
// into discrete slot candidates. Times of day are minutes from midnight in
// the pattern's location; Now is the caller's wall-clock reference so
// generation stays deterministic under test.
type GenerationPattern struct {
	ScheduleID    uuid.UUID
	RangeStart    time.Time // first calendar day, inclusive
	RangeEnd      time.Time // last calendar day, inclusive
	DailyStartMin int
	DailyEndMin   int
	SlotDuration  time.Duration
	Weekdays      map[time.Weekday]bool
	BreakStartMin int // break window start; ignored when BreakEndMin == 0
	BreakEndMin   int
	Now           time.Time
}

// GenerationResult holds the ordered candidate slots plus the count of
// candidates dropped only because they start at or before Now.
type GenerationResult struct {
	Candidates  []*Slot `json:"candidates"`
	SkippedPast int     `json:"skipped_past"`
}

// Generate expands the pattern into candidate slots ordered by day then
// start time. Candidates are discarded when they would spill past the daily
// end, when they overlap the break window, or when they start at or before
// Now (counted in SkippedPast). It is pure: no store calls, no clock reads.
func Generate(p GenerationPattern) (*GenerationResult, error) {
	if err := validatePattern(p); err != nil {
		return nil, err
	}

	loc := p.RangeStart.Location()
	result := &GenerationResult{}

	day := time.Date(p.RangeStart.Year(), p.RangeStart.Month(), p.RangeStart.Day(), 0, 0, 0, 0, loc)
	last := time.Date(p.RangeEnd.Year(), p.RangeEnd.Month(), p.RangeEnd.Day(), 0, 0, 0, 0, loc)

	matchedWeekday := false
	for !day.After(last) {
		if p.Weekdays[day.Weekday()] {
			matchedWeekday = true
			result.Candidates, result.SkippedPast = appendDay(result.Candidates, result.SkippedPast, p, day)
		}
		day = day.AddDate(0, 0, 1)
	}

	if !matchedWeekday {
		return nil, &ValidationError{Reason: "no allowed weekday falls inside the date range"}
	}
	if len(result.Candidates) == 0 {
		return nil, &ValidationError{Reason: "no usable slot produced by the time window, duration and break settings"}
	}

	return result, nil
}

func appendDay(candidates []*Slot, skipped int, p GenerationPattern, day time.Time) ([]*Slot, int) {
	dayEnd := day.Add(time.Duration(p.DailyEndMin) * time.Minute)
	var breakStart, breakEnd time.Time
	hasBreak := p.BreakEndMin > p.BreakStartMin
	if hasBreak {
		breakStart = day.Add(time.Duration(p.BreakStartMin) * time.Minute)
		breakEnd = day.Add(time.Duration(p.BreakEndMin) * time.Minute)
	}

	cursor := day.Add(time.Duration(p.DailyStartMin) * time.Minute)
	for {
		slotEnd := cursor.Add(p.SlotDuration)
		if slotEnd.After(dayEnd) {
			break // no partial trailing slot
		}
		if hasBreak && cursor.Before(breakEnd) && slotEnd.After(breakStart) {
			// Any overlap with the break window excludes the slot.
			cursor = cursor.Add(p.SlotDuration)
			continue
		}
		if !cursor.After(p.Now) {
			skipped++
			cursor = cursor.Add(p.SlotDuration)
			continue
		}
		candidates = append(candidates, &Slot{
			ScheduleID: p.ScheduleID,
			Status:     SlotFree,
			StartTime:  cursor,
			EndTime:    slotEnd,
		})
		cursor = cursor.Add(p.SlotDuration)
	}
	return candidates, skipped
}

func validatePattern(p GenerationPattern) error {
	if p.ScheduleID == uuid.Nil {
		return &ValidationError{Reason: "schedule id is required"}
	}
	if p.RangeEnd.Before(p.RangeStart) {
		return &ValidationError{Reason: "date range end precedes start"}
	}
	if len(p.Weekdays) == 0 {
		return &ValidationError{Reason: "allowed weekday set is empty"}
	}
	if p.DailyStartMin >= p.DailyEndMin {
		return &ValidationError{Reason: fmt.Sprintf("daily window is inverted or empty (%d >= %d)", p.DailyStartMin, p.DailyEndMin)}
	}
	if p.SlotDuration <= 0 {
		return &ValidationError{Reason: "slot duration must be positive"}
	}
	if p.BreakEndMin > 0 && p.BreakEndMin < p.BreakStartMin {
		return &ValidationError{Reason: "break window end precedes start"}
	}
	return nil
}

// PatternFromSchedule seeds a pattern from the schedule's stored recurrence.
// Fields absent on the schedule stay zero and fail pattern validation unless
// the caller overrides them.
func PatternFromSchedule(sched *Schedule, rangeStart, rangeEnd, now time.Time) GenerationPattern {
	p := GenerationPattern{
		ScheduleID: sched.ID,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		Now:        now,
		Weekdays:   map[time.Weekday]bool{},
	}
	if sched.DailyStartMin != nil {
		p.DailyStartMin = *sched.DailyStartMin
	}
	if sched.DailyEndMin != nil {
		p.DailyEndMin = *sched.DailyEndMin
	}
	if sched.SlotMinutes != nil {
		p.SlotDuration = time.Duration(*sched.SlotMinutes) * time.Minute
	}
	for _, wd := range sched.Weekdays {
		p.Weekdays[time.Weekday(wd)] = true
	}
	if sched.BreakStartMin != nil && sched.BreakEndMin != nil {
		p.BreakStartMin = *sched.BreakStartMin
		p.BreakEndMin = *sched.BreakEndMin
	}
	return p
}
