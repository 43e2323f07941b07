package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	auditdomain "github.com/smallbiznis/claimaudit/internal/audit/domain"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/domain"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/selection"
	"github.com/smallbiznis/claimaudit/internal/clock"
	"github.com/smallbiznis/claimaudit/internal/config"
	"github.com/smallbiznis/claimaudit/internal/lock"
	obslogger "github.com/smallbiznis/claimaudit/internal/observability/logger"
	"github.com/smallbiznis/claimaudit/internal/observability/metrics"
	"github.com/smallbiznis/claimaudit/internal/observability/tracing"
	"github.com/smallbiznis/claimaudit/internal/quarter"
	reviewerdomain "github.com/smallbiznis/claimaudit/internal/reviewer/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	batchLockTTL      = 2 * time.Minute
	targetTypeQuarter = "quarter"
)

type BatchParams struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     domain.Repository
	Feed     domain.CandidateFeed
	Planner  *selection.Planner
	Roster   reviewerdomain.Service
	Policy   *config.AuditPolicyHolder
	Locker   lock.Locker           `optional:"true"`
	AuditSvc auditdomain.Service   `optional:"true"`
	Metrics  *metrics.BatchMetrics `optional:"true"`
}

type BatchService struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	feed     domain.CandidateFeed
	planner  *selection.Planner
	roster   reviewerdomain.Service
	policy   *config.AuditPolicyHolder
	locker   lock.Locker
	auditSvc auditdomain.Service
	metrics  *metrics.BatchMetrics
	tracer   trace.Tracer
}

func NewBatch(p BatchParams) domain.BatchService {
	return &BatchService{
		db:       p.DB,
		log:      p.Log.Named("caseaudit.batch"),
		clock:    p.Clock,
		repo:     p.Repo,
		feed:     p.Feed,
		planner:  p.Planner,
		roster:   p.Roster,
		policy:   p.Policy,
		locker:   p.Locker,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
		tracer:   otel.Tracer("claimaudit/caseaudit"),
	}
}

func (s *BatchService) Plan(ctx context.Context, q quarter.Period, preLoadedCount int) ([]domain.CaseAuditRecord, error) {
	if preLoadedCount < 0 {
		return nil, domain.ErrInvalidPreloaded
	}
	return s.run(ctx, metrics.TriggerPlan, q, func(context.Context) (int, error) {
		return preLoadedCount, nil
	})
}

func (s *BatchService) BuildQuarter(ctx context.Context, q quarter.Period) ([]domain.CaseAuditRecord, error) {
	return s.run(ctx, metrics.TriggerBuild, q, func(ctx context.Context) (int, error) {
		count, err := s.repo.CountByQuarter(ctx, q)
		if err != nil {
			return 0, err
		}
		return int(count), nil
	})
}

// run plans and stores one batch while holding the quarter lock. preLoaded is
// resolved under the lock so concurrent builds see each other's records.
func (s *BatchService) run(ctx context.Context, trigger string, q quarter.Period, preLoaded func(context.Context) (int, error)) (records []domain.CaseAuditRecord, err error) {
	started := s.clock.Now()
	log := obslogger.ForQuarter(obslogger.WithContext(ctx, s.log), q.String()).With(zap.String("trigger", trigger))

	ctx, span := s.tracer.Start(ctx, "caseaudit.batch."+trigger, trace.WithAttributes(tracing.SafeAttributes(
		attribute.String("case_audit.quarter", q.String()),
	)...))
	defer func() {
		s.metrics.ObserveRun(trigger, s.clock.Now().Sub(started), err)
		if err != nil {
			span.RecordError(tracing.SafeError(err))
			span.SetStatus(codes.Error, metrics.ClassifyActionOutcome(err))
		} else {
			span.SetAttributes(tracing.SafeAttributes(attribute.Int("case_audit.batch_size", len(records)))...)
		}
		span.End()
	}()

	if !q.Valid() {
		return nil, quarter.ErrInvalidQuarterFormat
	}

	release, err := s.acquire(ctx, q)
	if err != nil {
		return nil, err
	}
	defer release()

	count, err := preLoaded(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracing.SafeAttributes(attribute.Int("case_audit.pre_loaded", count))...)

	pool, err := s.candidatePool(ctx, q)
	if err != nil {
		return nil, err
	}
	roster, err := s.roster.ActiveUsers(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.planner.Plan(ctx, selection.Request{
		Quarter:        q,
		Pool:           pool,
		PreLoadedCount: count,
		Roster:         roster,
		Policy:         s.policy.Get(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrSelectionExhausted) {
			log.Error("selection exhausted", zap.Int("pre_loaded", count), zap.Int("pool", len(pool)), zap.Error(err))
		}
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for i := range result.Records {
			if err := repo.Insert(ctx, &result.Records[i]); err != nil {
				return fmt.Errorf("insert %s: %w", result.Records[i].ID, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Error("failed to store batch", zap.Error(err))
		return nil, err
	}

	s.metrics.AddRecords(result.Records)
	for origin, n := range result.Synthesized {
		s.metrics.AddFillers(origin, n)
	}

	log.Info("batch stored",
		zap.Int("pre_loaded", count),
		zap.Int("current_quota", result.Quota.Current),
		zap.Int("previous_quota", result.Quota.Previous),
		zap.Int("stored", len(result.Records)),
		zap.Int("pool", len(pool)),
	)
	s.writeTrail(ctx, log, "case_audit.batch_planned", targetTypeQuarter, q.String(), map[string]any{
		"trigger":          trigger,
		"pre_loaded":       count,
		"stored":           len(result.Records),
		"synthesized_cur":  result.Synthesized[domain.OriginUserQuarterly],
		"synthesized_prev": result.Synthesized[domain.OriginPreviousQuarterRandom],
	})
	if result.Records == nil {
		return []domain.CaseAuditRecord{}, nil
	}
	return result.Records, nil
}

// candidatePool drops candidates that already have a record so a case is
// never audited twice.
func (s *BatchService) candidatePool(ctx context.Context, q quarter.Period) ([]domain.CandidateCase, error) {
	pool, err := s.feed.ListCandidates(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return pool, nil
	}

	ids := make([]string, 0, len(pool))
	for _, c := range pool {
		ids = append(ids, c.CaseID)
	}
	existing, err := s.repo.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return pool, nil
	}

	fresh := make([]domain.CandidateCase, 0, len(pool)-len(existing))
	for _, c := range pool {
		if _, taken := existing[c.CaseID]; !taken {
			fresh = append(fresh, c)
		}
	}
	return fresh, nil
}

func (s *BatchService) acquire(ctx context.Context, q quarter.Period) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	waited := s.clock.Now()
	key := "claimaudit:batch:" + q.String()
	token, ok, err := s.locker.TryLock(ctx, key, batchLockTTL)
	s.metrics.ObserveLockWait(s.clock.Now().Sub(waited))
	if err != nil {
		return nil, fmt.Errorf("acquire batch lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrBatchInProgress
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("failed to release batch lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// ImportPreloaded stores carried-over records. The whole set is rejected when
// any record is invalid or already present.
func (s *BatchService) ImportPreloaded(ctx context.Context, records []domain.CaseAuditRecord) (stored []domain.CaseAuditRecord, err error) {
	started := s.clock.Now()
	defer func() {
		s.metrics.ObserveRun(metrics.TriggerImport, s.clock.Now().Sub(started), err)
	}()

	if len(records) == 0 {
		return []domain.CaseAuditRecord{}, nil
	}

	now := s.clock.Now().UTC()
	seen := make(map[string]struct{}, len(records))
	prepared := make([]domain.CaseAuditRecord, 0, len(records))
	for _, r := range records {
		r.ID = strings.TrimSpace(r.ID)
		r.OwnerUserID = strings.TrimSpace(r.OwnerUserID)
		r.AuditorUserID = strings.TrimSpace(r.AuditorUserID)
		r.Origin = domain.OriginPreLoaded
		if r.Status == "" {
			r.Status = domain.StatusPending
		}
		if r.Version <= 0 {
			r.Version = 1
		}
		if r.CompletionDate != nil {
			completed := r.CompletionDate.UTC()
			r.CompletionDate = &completed
		}
		r.NotificationDate = r.NotificationDate.UTC()
		r.CreatedAt = now
		r.UpdatedAt = now

		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("record %q: %w", r.ID, err)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("record %q: %w", r.ID, domain.ErrDuplicateCase)
		}
		seen[r.ID] = struct{}{}
		prepared = append(prepared, r)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for i := range prepared {
			r := &prepared[i]
			if err := repo.Insert(ctx, r); err != nil {
				return fmt.Errorf("record %q: %w", r.ID, err)
			}
			if r.Status != domain.StatusCompleted {
				continue
			}
			if err := s.markCompleted(ctx, repo, *r, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warn("pre-loaded import rejected", zap.Int("count", len(prepared)), zap.Error(err))
		return nil, err
	}

	s.metrics.AddRecords(prepared)
	s.log.Info("pre-loaded records imported", zap.Int("count", len(prepared)))
	for _, r := range prepared {
		s.writeTrail(ctx, s.log, "case_audit.imported", targetTypeRecord, r.ID, map[string]any{
			"status":  string(r.Status),
			"quarter": r.Quarter.String(),
		})
	}
	return prepared, nil
}

// markCompleted keeps the latest completion time for the owner's quarter.
func (s *BatchService) markCompleted(ctx context.Context, repo domain.Repository, r domain.CaseAuditRecord, now time.Time) error {
	existing, err := repo.FindQuarterlyStatus(ctx, r.OwnerUserID, r.Quarter)
	if err != nil {
		return err
	}
	last := r.CompletionDate
	if existing != nil && existing.LastCompletedAt != nil && existing.LastCompletedAt.After(*last) {
		last = existing.LastCompletedAt
	}
	return repo.UpsertQuarterlyStatus(ctx, &domain.QuarterlyUserStatus{
		UserID:          r.OwnerUserID,
		QuarterKey:      r.Quarter,
		Completed:       true,
		LastCompletedAt: last,
		UpdatedAt:       now,
	})
}

// writeTrail attributes the entry to the caller on ctx, or to the system.
func (s *BatchService) writeTrail(ctx context.Context, log *zap.Logger, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, "", action, targetType, targetID, metadata); err != nil {
		log.Warn("failed to write batch trail", zap.String("action", action), zap.Error(err))
	}
}
