package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock is the time source injected into services that stamp or derive dates.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func provide() Clock {
	return SystemClock{}
}

var Module = fx.Module("clock",
	fx.Provide(provide),
)
