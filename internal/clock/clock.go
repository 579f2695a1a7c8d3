// Package clock provides the single source of "now" for application code
// outside the store. The store uses the database's own NOW()
// for its own admissibility decisions; this clock is used only to turn
// absolute expiration timestamps returned by the store into Job Bus
// delays.
package clock

import (
	"time"

	"github.com/baechuer/waitline/internal/domain"
)

type Real struct{}

func NewReal() Real { return Real{} }

func (Real) Now() time.Time { return time.Now().UTC() }

var _ domain.Clock = Real{}

// DelayUntil returns max(target-now, 0), never a negative duration.
func DelayUntil(c domain.Clock, target time.Time) time.Duration {
	d := target.Sub(c.Now())
	if d < 0 {
		return 0
	}
	return d
}
