// Package clock abstracts time reads so quota rollover and queue scheduling
// stay testable with a controllable clock.
package clock

import (
	"time"

	"go.uber.org/fx"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func NewSystemClock() Clock { return systemClock{} }

// Module provides the real clock for production wiring.
var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
