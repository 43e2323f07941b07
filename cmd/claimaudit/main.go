package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimaudit/internal/audit"
	"github.com/smallbiznis/claimaudit/internal/authorization"
	"github.com/smallbiznis/claimaudit/internal/caseaudit"
	"github.com/smallbiznis/claimaudit/internal/clock"
	"github.com/smallbiznis/claimaudit/internal/config"
	"github.com/smallbiznis/claimaudit/internal/lock"
	"github.com/smallbiznis/claimaudit/internal/migration"
	"github.com/smallbiznis/claimaudit/internal/observability"
	"github.com/smallbiznis/claimaudit/internal/reviewer"
	"github.com/smallbiznis/claimaudit/internal/scheduler"
	"github.com/smallbiznis/claimaudit/internal/server"
	"github.com/smallbiznis/claimaudit/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		db.Module,
		migration.Module,
		lock.Module,

		// Functional Domains
		authorization.Module,
		reviewer.Module,
		audit.Module,
		caseaudit.Module,
		scheduler.Module,

		server.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
