package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	auditdomain "github.com/smallbiznis/claimaudit/internal/audit/domain"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/domain"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/permission"
	"github.com/smallbiznis/claimaudit/internal/clock"
	"github.com/smallbiznis/claimaudit/internal/config"
	obslogger "github.com/smallbiznis/claimaudit/internal/observability/logger"
	"github.com/smallbiznis/claimaudit/internal/observability/metrics"
	"github.com/smallbiznis/claimaudit/internal/observability/tracing"
	"github.com/smallbiznis/claimaudit/internal/quarter"
	reviewerdomain "github.com/smallbiznis/claimaudit/internal/reviewer/domain"
	"github.com/smallbiznis/claimaudit/pkg/db"
	"github.com/smallbiznis/claimaudit/pkg/db/pagination"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	targetTypeRecord  = "case_audit_record"
	reasonUnknownUser = "unknown_user"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Repo      domain.Repository
	Roster    reviewerdomain.Service
	Evaluator *permission.Evaluator
	Policy    *config.AuditPolicyHolder
	AuditSvc  auditdomain.Service `optional:"true"`
	Metrics   *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      domain.Repository
	roster    reviewerdomain.Service
	evaluator *permission.Evaluator
	policy    *config.AuditPolicyHolder
	auditSvc  auditdomain.Service
	metrics   *metrics.Metrics
	validate  *validator.Validate
	tracer    trace.Tracer
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("caseaudit.lifecycle"),
		clock:     p.Clock,
		repo:      p.Repo,
		roster:    p.Roster,
		evaluator: p.Evaluator,
		policy:    p.Policy,
		auditSvc:  p.AuditSvc,
		metrics:   p.Metrics,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		tracer:    otel.Tracer("claimaudit/caseaudit"),
	}
}

func (s *Service) StartOrUpdate(ctx context.Context, req domain.ActionRequest) (*domain.CaseAuditRecord, error) {
	if req.Kind != domain.ActionSave {
		req.Kind = domain.ActionStart
	}
	return s.transition(ctx, req)
}

func (s *Service) Complete(ctx context.Context, req domain.ActionRequest) (*domain.CaseAuditRecord, error) {
	req.Kind = domain.ActionComplete
	return s.transition(ctx, req)
}

func (s *Service) Reopen(ctx context.Context, req domain.ActionRequest) (*domain.CaseAuditRecord, error) {
	req.Kind = domain.ActionReopen
	return s.transition(ctx, req)
}

func (s *Service) Act(ctx context.Context, req domain.ActionRequest) (*domain.CaseAuditRecord, error) {
	kind, err := domain.ParseActionKind(string(req.Kind))
	if err != nil {
		return nil, err
	}
	req.Kind = kind

	switch kind {
	case domain.ActionStart, domain.ActionSave:
		return s.StartOrUpdate(ctx, req)
	case domain.ActionComplete:
		return s.Complete(ctx, req)
	default:
		return s.Reopen(ctx, req)
	}
}

// transition runs one lifecycle action as a single versioned update. The
// record is left untouched unless every check passes.
func (s *Service) transition(ctx context.Context, req domain.ActionRequest) (record *domain.CaseAuditRecord, err error) {
	started := s.clock.Now()
	recordID := strings.TrimSpace(req.RecordID)
	actorID := strings.TrimSpace(req.ActorID)

	ctx, span := s.tracer.Start(ctx, "caseaudit."+string(req.Kind), trace.WithAttributes(tracing.SafeAttributes(
		attribute.String("case_audit.record_id", recordID),
		attribute.String("case_audit.action", string(req.Kind)),
	)...))
	log := obslogger.ForAction(obslogger.WithContext(ctx, s.log), recordID, actorID, string(req.Kind))

	defer func() {
		s.metrics.RecordTransition(ctx, string(req.Kind), err, s.clock.Now().Sub(started))
		if err != nil {
			span.RecordError(tracing.SafeError(err))
			span.SetStatus(codes.Error, metrics.ClassifyActionOutcome(err))
		} else {
			span.SetAttributes(tracing.SafeAttributes(attribute.String("case_audit.status", string(record.Status)))...)
		}
		span.End()
	}()

	if recordID == "" {
		return nil, domain.ErrCaseNotFound
	}
	if actorID == "" {
		return nil, domain.ErrInvalidActor
	}
	if req.Review != nil {
		if verr := s.validate.Struct(req.Review); verr != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidReview, verr.Error())
		}
	}

	actor, err := s.lookupActor(ctx, actorID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownUser) {
			log.Info("action denied", zap.String("reason", reasonUnknownUser))
			return nil, fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
		}
		return nil, err
	}
	limits := s.policy.Limits()

	var (
		fromStatus domain.Status
		decision   domain.Decision
		updated    domain.CaseAuditRecord
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindForUpdate(ctx, recordID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrCaseNotFound
		}
		if req.ExpectedVersion != nil && *req.ExpectedVersion != current.Version {
			return domain.ErrConcurrentModification
		}
		if req.Kind == domain.ActionComplete && current.Status == domain.StatusCompleted &&
			(actorID == current.AuditorUserID || actorID == current.PreviousAuditorUserID) {
			// A reviewer who held the record lost the race to complete it.
			return domain.ErrConcurrentModification
		}

		decision, err = s.evaluator.Evaluate(ctx, actor, *current, limits)
		if err != nil {
			return err
		}
		s.metrics.RecordDecision(ctx, decision.Allowed, decision.Reason)
		if !decision.Allowed {
			return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, decision.Reason)
		}

		fromStatus = current.Status
		next := *current
		now := s.clock.Now().UTC()
		if err := apply(&next, req, actorID, now); err != nil {
			return err
		}
		next.Version = current.Version + 1
		next.UpdatedAt = now
		if err := next.Validate(); err != nil {
			return err
		}

		ok, err := repo.UpdateIfVersion(ctx, &next, current.Version)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConcurrentModification
		}

		if req.Kind == domain.ActionComplete {
			if err := repo.UpsertQuarterlyStatus(ctx, &domain.QuarterlyUserStatus{
				UserID:          next.OwnerUserID,
				QuarterKey:      next.Quarter,
				Completed:       true,
				LastCompletedAt: next.CompletionDate,
				UpdatedAt:       now,
			}); err != nil {
				return err
			}
		}

		updated = next
		return nil
	})
	if err != nil {
		if db.IsSerializationFailure(err) || db.IsLockTimeout(err) {
			err = domain.ErrConcurrentModification
		}
		s.logFailure(log, decision, err)
		return nil, err
	}

	log.Info("case audit transition",
		zap.String("from", string(fromStatus)),
		zap.String("to", string(updated.Status)),
		zap.Int64("version", updated.Version),
		zap.String("reason", decision.Reason),
	)
	s.writeTrail(ctx, log, actorID, req.Kind, fromStatus, updated)
	return &updated, nil
}

// apply mutates next for kind. State checks run after the permission check so
// a denied actor learns nothing about the record state.
func apply(next *domain.CaseAuditRecord, req domain.ActionRequest, actorID string, now time.Time) error {
	switch req.Kind {
	case domain.ActionStart, domain.ActionSave:
		if next.Status == domain.StatusCompleted {
			return domain.ErrInvalidTransition
		}
		req.Review.ApplyTo(next)
		next.Status = domain.StatusInProgress
		assign(next, actorID)
	case domain.ActionComplete:
		if next.Status == domain.StatusCompleted {
			// Another writer finished first.
			return domain.ErrConcurrentModification
		}
		req.Review.ApplyTo(next)
		if strings.TrimSpace(next.Rating) == "" {
			return domain.ErrIncompleteReview
		}
		completedAt := now
		next.Status = domain.StatusCompleted
		assign(next, actorID)
		next.CompletionDate = &completedAt
	case domain.ActionReopen:
		if next.Status != domain.StatusCompleted {
			return domain.ErrInvalidTransition
		}
		next.Status = domain.StatusInProgress
		assign(next, actorID)
		next.CompletionDate = nil
	default:
		return domain.ErrInvalidActionKind
	}
	return nil
}

// assign hands the record to actorID, remembering who held it before.
func assign(next *domain.CaseAuditRecord, actorID string) {
	if next.AuditorUserID != "" && next.AuditorUserID != actorID {
		next.PreviousAuditorUserID = next.AuditorUserID
	}
	next.AuditorUserID = actorID
}

func (s *Service) logFailure(log *zap.Logger, decision domain.Decision, err error) {
	fields := []zap.Field{zap.Error(err)}
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		log.Info("action denied", append(fields, zap.String("reason", decision.Reason))...)
	case errors.Is(err, domain.ErrConcurrentModification):
		log.Warn("concurrent modification", fields...)
	case errors.Is(err, domain.ErrCaseNotFound),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrIncompleteReview):
		log.Info("action rejected", fields...)
	default:
		log.Error("action failed", fields...)
	}
}

func (s *Service) writeTrail(ctx context.Context, log *zap.Logger, actorID string, kind domain.ActionKind, from domain.Status, record domain.CaseAuditRecord) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, actorID, kind.Event(), targetTypeRecord, record.ID, map[string]any{
		"from_status": string(from),
		"to_status":   string(record.Status),
		"version":     record.Version,
		"quarter":     record.Quarter.String(),
	}); err != nil {
		log.Warn("failed to write transition trail", zap.Error(err))
	}
}

func (s *Service) lookupActor(ctx context.Context, actorID string) (permission.Actor, error) {
	user, err := s.roster.Lookup(ctx, actorID)
	if err != nil {
		if errors.Is(err, reviewerdomain.ErrNotFound) || errors.Is(err, reviewerdomain.ErrInvalidUserID) {
			return permission.Actor{}, domain.ErrUnknownUser
		}
		return permission.Actor{}, err
	}
	return permission.ActorFromUser(*user), nil
}

func (s *Service) CanAct(ctx context.Context, recordID string, actorID string) (domain.Decision, error) {
	recordID = strings.TrimSpace(recordID)
	actorID = strings.TrimSpace(actorID)
	if recordID == "" {
		return domain.Decision{}, domain.ErrCaseNotFound
	}

	record, err := s.repo.FindByID(ctx, recordID)
	if err != nil {
		return domain.Decision{}, err
	}
	if record == nil {
		return domain.Decision{}, domain.ErrCaseNotFound
	}

	actor := permission.Actor{}
	if actorID != "" {
		actor, err = s.lookupActor(ctx, actorID)
		if errors.Is(err, domain.ErrUnknownUser) {
			s.metrics.RecordDecision(ctx, false, reasonUnknownUser)
			return domain.Decision{Allowed: false, Reason: reasonUnknownUser}, nil
		}
		if err != nil {
			return domain.Decision{}, err
		}
	}

	decision, err := s.evaluator.Evaluate(ctx, actor, *record, s.policy.Limits())
	if err != nil {
		return domain.Decision{}, err
	}
	s.metrics.RecordDecision(ctx, decision.Allowed, decision.Reason)
	return decision, nil
}

func (s *Service) QuarterlyStatus(ctx context.Context, userID string, q quarter.Period) (domain.QuarterlyStatusResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.QuarterlyStatusResponse{}, domain.ErrInvalidActor
	}
	if !q.Valid() {
		return domain.QuarterlyStatusResponse{}, quarter.ErrInvalidQuarterFormat
	}

	resp := domain.QuarterlyStatusResponse{UserID: userID, Quarter: q.String()}
	status, err := s.repo.FindQuarterlyStatus(ctx, userID, q)
	if err != nil {
		return domain.QuarterlyStatusResponse{}, err
	}
	if status != nil {
		resp.Completed = status.Completed
		resp.LastCompletedAt = status.LastCompletedAt
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.CaseAuditRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrCaseNotFound
	}
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrCaseNotFound
	}
	return record, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	filter := domain.ListFilter{
		AuditorUserID: strings.TrimSpace(req.AuditorUserID),
		OwnerUserID:   strings.TrimSpace(req.OwnerUserID),
		Limit:         req.Size(),
	}
	if raw := strings.TrimSpace(req.Quarter); raw != "" {
		q, err := quarter.Parse(raw)
		if err != nil {
			return domain.ListResponse{}, err
		}
		filter.Quarter = &q
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return domain.ListResponse{}, domain.ErrInvalidFilter
		}
		filter.Status = status
	}
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, err
	}
	if cursor != nil {
		filter.AfterID = cursor.ID
	}

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}
	records, pageInfo, err := pagination.Trim(items, filter.Limit, func(r domain.CaseAuditRecord) pagination.Cursor {
		return pagination.Cursor{ID: r.ID}
	})
	if err != nil {
		return domain.ListResponse{}, err
	}
	if records == nil {
		records = []domain.CaseAuditRecord{}
	}
	return domain.ListResponse{Records: records, PageInfo: pageInfo}, nil
}
