package feed

import (
	"github.com/smallbiznis/claimaudit/internal/caseaudit/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("caseaudit.feed",
	fx.Provide(NewRepository),
	fx.Provide(func(r *Repository) domain.CandidateFeed { return r }),
)
