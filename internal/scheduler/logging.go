package scheduler

import (
	"context"
	"time"

	obscontext "github.com/smallbiznis/claimaudit/internal/observability/context"
	obslogger "github.com/smallbiznis/claimaudit/internal/observability/logger"
	"go.uber.org/zap"
)

// jobRun tracks one execution of a job. Its id doubles as the request id so
// trail entries written during the run can be correlated with the log.
type jobRun struct {
	job       string
	id        string
	startedAt time.Time
	stored    int
	failed    bool
}

type jobRunKey struct{}

func (r *jobRun) addStored(n int) {
	if r != nil && n > 0 {
		r.stored += n
	}
}

func jobRunFromContext(ctx context.Context) *jobRun {
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

// beginRun tags ctx with a fresh run and the system actor.
func (s *Scheduler) beginRun(ctx context.Context, job string) (context.Context, *jobRun) {
	run := &jobRun{
		job:       job,
		id:        s.genID.Generate().String(),
		startedAt: s.clock.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, systemActorType, systemActorID)
	ctx = obscontext.WithRequestID(ctx, run.id)

	s.logger(ctx).Info("scheduler.job.start", zap.String("job", job))
	return ctx, run
}

func (s *Scheduler) endRun(ctx context.Context, run *jobRun) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.Duration("elapsed", s.clock.Now().Sub(run.startedAt)),
		zap.Int("stored", run.stored),
	}
	if run.failed {
		s.logger(ctx).Warn("scheduler.job.finish", append(fields, zap.Bool("failed", true))...)
		return
	}
	s.logger(ctx).Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}
