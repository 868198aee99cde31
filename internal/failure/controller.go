// Package failure tracks consecutive cycle failures and decides when
// the browser resource must be torn down and rebuilt.
package failure

import (
	"time"

	"go.uber.org/zap"
)

// State is the controller's health state.
type State int

const (
	// Healthy means failures are below the reset threshold.
	Healthy State = iota
	// Degraded is the transient state entered when the threshold is
	// crossed; the controller returns to Healthy immediately after
	// issuing the reset instruction.
	Degraded
)

// ResetReason labels why a reset instruction was issued.
type ResetReason string

const (
	ResetFailures  ResetReason = "consecutive_failures"
	ResetScheduled ResetReason = "scheduled_age"
)

// Controller implements the failure state machine. One reset
// instruction per threshold crossing, never a growing backoff.
type Controller struct {
	maxConsecutive int
	maxAge         time.Duration
	consecutive    int
	state          State
	logger         *zap.Logger
}

// New builds a Controller. maxConsecutive <= 0 falls back to 5,
// maxAge <= 0 to 4 hours.
func New(maxConsecutive int, maxAge time.Duration, logger *zap.Logger) *Controller {
	if maxConsecutive <= 0 {
		maxConsecutive = 5
	}
	if maxAge <= 0 {
		maxAge = 4 * time.Hour
	}
	return &Controller{
		maxConsecutive: maxConsecutive,
		maxAge:         maxAge,
		state:          Healthy,
		logger:         logger,
	}
}

// RecordSuccess resets the failure streak.
func (c *Controller) RecordSuccess() {
	c.consecutive = 0
	c.state = Healthy
}

// RecordFailure bumps the streak and reports whether the fetcher must
// be reset. When it returns true the counter has already been cleared,
// so the next crossing requires a full new streak.
func (c *Controller) RecordFailure() bool {
	c.consecutive++
	if c.consecutive < c.maxConsecutive {
		return false
	}
	c.state = Degraded
	c.logger.Warn("failure threshold crossed, requesting fetcher reset",
		zap.Int("consecutive_failures", c.consecutive),
		zap.Int("threshold", c.maxConsecutive),
	)
	c.consecutive = 0
	c.state = Healthy
	return true
}

// ShouldScheduledReset reports whether the fetcher resource has
// outlived its age ceiling. Independent of the failure streak.
func (c *Controller) ShouldScheduledReset(age time.Duration) bool {
	return age > c.maxAge
}

// ConsecutiveFailures exposes the current streak for status reporting.
func (c *Controller) ConsecutiveFailures() int {
	return c.consecutive
}

// State returns the current health state.
func (c *Controller) State() State {
	return c.state
}
