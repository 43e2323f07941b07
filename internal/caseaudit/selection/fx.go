package selection

import "go.uber.org/fx"

var Module = fx.Module("caseaudit.selection",
	fx.Provide(New),
)
