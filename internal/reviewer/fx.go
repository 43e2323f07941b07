package reviewer

import (
	"github.com/smallbiznis/claimaudit/internal/reviewer/repository"
	"github.com/smallbiznis/claimaudit/internal/reviewer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reviewer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
