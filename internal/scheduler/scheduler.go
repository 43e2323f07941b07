package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/domain"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/selection"
	"github.com/smallbiznis/claimaudit/internal/clock"
	obslogger "github.com/smallbiznis/claimaudit/internal/observability/logger"
	"github.com/smallbiznis/claimaudit/internal/quarter"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	jobQuarterBatch = "quarter_batch"

	systemActorType = "system"
	systemActorID   = "scheduler"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Repo     domain.Repository
	BatchSvc domain.BatchService
	Config   Config `optional:"true"`
}

// Scheduler builds the batch of the running quarter once it opens.
type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	clock    clock.Clock
	genID    *snowflake.Node
	repo     domain.Repository
	batchSvc domain.BatchService
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.GenID == nil || p.Repo == nil || p.BatchSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		clock:    p.Clock,
		genID:    p.GenID,
		repo:     p.Repo,
		batchSvc: p.BatchSvc,
	}, nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, jobQuarterBatch, s.QuarterBatchJob)
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	ctx, run := s.beginRun(ctx, name)
	err := fn(ctx)
	run.failed = err != nil
	s.endRun(ctx, run)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// Soft failure; the next tick retries.
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	default:
		return fmt.Errorf("%s: %w", name, err)
	}
}

// QuarterBatchJob plans the running quarter when it holds fewer records than
// a full batch. Records imported as carry-over count toward the batch.
func (s *Scheduler) QuarterBatchJob(ctx context.Context) error {
	q := quarter.Current(s.clock)
	log := obslogger.ForQuarter(s.logger(ctx), q.String())

	count, err := s.repo.CountByQuarter(ctx, q)
	if err != nil {
		return err
	}
	if count >= selection.TargetTotal {
		log.Debug("quarter batch already planned", zap.Int64("records", count))
		return nil
	}

	records, err := s.batchSvc.BuildQuarter(ctx, q)
	if errors.Is(err, domain.ErrBatchInProgress) {
		log.Info("quarter batch running elsewhere")
		return nil
	}
	if err != nil {
		return err
	}

	jobRunFromContext(ctx).addStored(len(records))
	log.Info("quarter batch planned", zap.Int64("pre_loaded", count), zap.Int("stored", len(records)))
	return nil
}
