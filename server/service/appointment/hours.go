package appointment

import (
	"time"

	apperrors "github.com/hrygo/apptscheduler/server/internal/errors"
	"github.com/hrygo/apptscheduler/server/timezone"
)

// BusinessHoursPolicy accepts instants whose reference-zone time of day lies
// in [open, close], second precision.
type BusinessHoursPolicy struct {
	clock   *timezone.Clock
	open    time.Duration
	closing time.Duration
}

// NewBusinessHoursPolicy creates a policy. open and close are offsets from
// midnight in the clock's reference zone.
func NewBusinessHoursPolicy(clock *timezone.Clock, open, closing time.Duration) *BusinessHoursPolicy {
	return &BusinessHoursPolicy{clock: clock, open: open, closing: closing}
}

// Allows reports whether instant falls within business hours.
func (p *BusinessHoursPolicy) Allows(instant time.Time) bool {
	tod := p.clock.InReference(instant).TimeOfDay()
	return tod >= p.open && tod <= p.closing
}

// IsWithinBusinessHours interprets w in the local zone and checks it.
func (p *BusinessHoursPolicy) IsWithinBusinessHours(w timezone.WallClock) (bool, error) {
	instant, err := p.clock.ToCanonical(w)
	if err != nil {
		return false, apperrors.InvalidTimestamp("time", err)
	}
	return p.Allows(instant), nil
}

// Window returns the configured open and close offsets.
func (p *BusinessHoursPolicy) Window() (open, closing time.Duration) {
	return p.open, p.closing
}
