package exam

import (
	"encoding/json"
	"time"
)

// EntryLead is how long before the scheduled start students may enter.
const EntryLead = 5 * time.Minute

// WindowStatus is the entry-window policy evaluated at one instant.
type WindowStatus struct {
	CanEnter       bool
	TimeUntilEntry time.Duration
	TimeUntilStart time.Duration
	IsTestActive   bool
	HasTestEnded   bool
}

// EvaluateWindow decides whether a student may enter a test at now.
//
// A test without a start date is always open. Otherwise entry is allowed only
// from start-5m up to and including start; a student arriving after the start
// is not let in even though the test is active.
func EvaluateWindow(start, end *time.Time, now time.Time) WindowStatus {
	if start == nil {
		return WindowStatus{CanEnter: true, IsTestActive: true}
	}

	opens := start.Add(-EntryLead)
	return WindowStatus{
		CanEnter:       !now.Before(opens) && !now.After(*start),
		TimeUntilEntry: positive(opens.Sub(now)),
		TimeUntilStart: positive(start.Sub(now)),
		IsTestActive:   !now.Before(*start) && (end == nil || !now.After(*end)),
		HasTestEnded:   end != nil && now.After(*end),
	}
}

func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// MarshalJSON reports the countdowns in whole seconds.
func (w WindowStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		CanEnter       bool  `json:"can_enter"`
		TimeUntilEntry int64 `json:"time_until_entry_seconds"`
		TimeUntilStart int64 `json:"time_until_start_seconds"`
		IsTestActive   bool  `json:"is_test_active"`
		HasTestEnded   bool  `json:"has_test_ended"`
	}{
		CanEnter:       w.CanEnter,
		TimeUntilEntry: int64(w.TimeUntilEntry / time.Second),
		TimeUntilStart: int64(w.TimeUntilStart / time.Second),
		IsTestActive:   w.IsTestActive,
		HasTestEnded:   w.HasTestEnded,
	})
}
