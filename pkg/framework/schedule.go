package framework

import "time"

// Schedule is a periodic timer driven by the time of the cooperative
// context rather than a goroutine. The owner polls it with the current
// time; nothing fires in between.
//
// A Schedule armed with n recurrences fires n times, one period apart,
// and reports ScheduleExpired one period after the last firing.
// Negative recurrences never expire.
type Schedule struct {
	period    time.Duration
	next      time.Time
	remaining int
	fired     int
	armed     bool
}

// ScheduleResult is the outcome of polling a Schedule.
type ScheduleResult int

const (
	// ScheduleIdle means nothing is due (or the schedule is disarmed).
	ScheduleIdle ScheduleResult = iota
	// ScheduleFire means one period elapsed and a recurrence is consumed.
	ScheduleFire
	// ScheduleExpired means the recurrences are exhausted. The schedule
	// disarms itself.
	ScheduleExpired
)

// String implements fmt.Stringer.
func (r ScheduleResult) String() string {
	switch r {
	case ScheduleFire:
		return "fire"
	case ScheduleExpired:
		return "expired"
	}
	return "idle"
}

// Arm (re)starts the schedule from now.
func (s *Schedule) Arm(now time.Time, period time.Duration, recurrences int) {
	s.period = period
	s.next = now.Add(period)
	s.remaining = recurrences
	s.fired = 0
	s.armed = true
}

// Disarm cancels the schedule.
func (s *Schedule) Disarm() {
	s.armed = false
}

// Armed reports whether the schedule is running.
func (s *Schedule) Armed() bool {
	return s.armed
}

// Fired returns how many times the schedule fired since armed.
func (s *Schedule) Fired() int {
	return s.fired
}

// Deadline returns the time of the next firing.
func (s *Schedule) Deadline() time.Time {
	return s.next
}

// Poll checks the schedule against now. At most one period is consumed per
// call, so a late poll never bursts.
func (s *Schedule) Poll(now time.Time) ScheduleResult {
	if !s.armed || now.Before(s.next) {
		return ScheduleIdle
	}
	if s.remaining == 0 {
		s.armed = false
		return ScheduleExpired
	}
	if s.remaining > 0 {
		s.remaining--
	}
	s.fired++
	s.next = now.Add(s.period)
	return ScheduleFire
}
