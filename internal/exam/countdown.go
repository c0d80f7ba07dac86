package exam

// Warning thresholds in seconds.
const (
	FifteenMinutes = 900
	FiveMinutes    = 300
	OneMinute      = 60
)

// TimerEvent is something a countdown tick crossed.
type TimerEvent int

const (
	TimerWarnFifteen TimerEvent = iota + 1
	TimerWarnFive
	TimerWarnOne
	TimerExpired
)

// Warnings are the sticky threshold flags of a countdown.
type Warnings struct {
	FifteenMinutes bool `json:"fifteen_minutes"`
	FiveMinutes    bool `json:"five_minutes"`
	OneMinute      bool `json:"one_minute"`
}

// Countdown is a whole-second exam timer advanced by explicit ticks.
// It is not safe for concurrent use; the owning controller serializes access.
type Countdown struct {
	remaining int
	running   bool
	suspended bool
	expired   bool
	warnings  Warnings
}

// Start (re)arms the countdown at seconds and begins running. A countdown
// started at zero expires on its first tick.
func (c *Countdown) Start(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	c.remaining = seconds
	c.running = true
	c.suspended = false
	c.expired = false
}

// Stop halts the countdown, keeping the remaining time.
func (c *Countdown) Stop() {
	c.running = false
}

// Reset stops the countdown and clears all state, including warnings.
func (c *Countdown) Reset() {
	*c = Countdown{}
}

// AddTime extends the remaining time without touching cadence or warnings.
func (c *Countdown) AddTime(seconds int) {
	if seconds <= 0 {
		return
	}
	c.remaining += seconds
}

// Suspend pauses decrements until Resume.
func (c *Countdown) Suspend() { c.suspended = true }

// Resume re-enables decrements after Suspend.
func (c *Countdown) Resume() { c.suspended = false }

// Tick advances the countdown by one second and returns what it crossed.
func (c *Countdown) Tick() []TimerEvent {
	if !c.running || c.suspended {
		return nil
	}

	var events []TimerEvent
	if c.remaining > 0 {
		c.remaining--
		if c.remaining < FifteenMinutes && !c.warnings.FifteenMinutes {
			c.warnings.FifteenMinutes = true
			events = append(events, TimerWarnFifteen)
		}
		if c.remaining < FiveMinutes && !c.warnings.FiveMinutes {
			c.warnings.FiveMinutes = true
			events = append(events, TimerWarnFive)
		}
		if c.remaining < OneMinute && !c.warnings.OneMinute {
			c.warnings.OneMinute = true
			events = append(events, TimerWarnOne)
		}
	}
	if c.remaining == 0 {
		c.running = false
		if !c.expired {
			c.expired = true
			events = append(events, TimerExpired)
		}
	}
	return events
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int { return c.remaining }

// Running reports whether ticks currently decrement.
func (c *Countdown) Running() bool { return c.running && !c.suspended }

// Suspended reports whether the countdown is paused.
func (c *Countdown) Suspended() bool { return c.suspended }

// Expired reports whether the countdown has reached zero.
func (c *Countdown) Expired() bool { return c.expired }

// Warnings returns the sticky threshold flags.
func (c *Countdown) Warnings() Warnings { return c.warnings }
