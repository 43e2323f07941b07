package caseaudit

import (
	"github.com/smallbiznis/claimaudit/internal/caseaudit/feed"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/permission"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/repository"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/selection"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("caseaudit.service",
	feed.Module,
	selection.Module,
	fx.Provide(repository.NewRepository),
	fx.Provide(permission.NewEvaluator),
	fx.Provide(service.New),
	fx.Provide(service.NewBatch),
)
