package feed

import (
	"context"
	"strings"

	"github.com/smallbiznis/claimaudit/internal/caseaudit/domain"
	"github.com/smallbiznis/claimaudit/internal/clock"
	"github.com/smallbiznis/claimaudit/internal/quarter"
	"github.com/smallbiznis/claimaudit/pkg/db"
	"github.com/smallbiznis/claimaudit/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

// Repository is the candidate feed backed by the candidate_cases table.
type Repository struct {
	store repository.Repository[domain.CandidateCase]
	log   *zap.Logger
	clock clock.Clock
}

func NewRepository(p Params) *Repository {
	return &Repository{
		store: repository.ProvideStore[domain.CandidateCase](p.DB),
		log:   p.Log.Named("caseaudit.feed"),
		clock: p.Clock,
	}
}

// ListCandidates returns cases notified in q or in the quarter before it,
// ordered by case id.
func (r *Repository) ListCandidates(ctx context.Context, q quarter.Period) ([]domain.CandidateCase, error) {
	if !q.Valid() {
		return nil, quarter.ErrInvalidQuarterFormat
	}
	rows, err := r.store.Find(ctx, nil,
		repository.Where("notification_date >= ? AND notification_date < ?", q.Previous().Start(), q.End()),
		repository.OrderBy("case_id asc"),
	)
	if err != nil {
		return nil, err
	}

	out := make([]domain.CandidateCase, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

func (r *Repository) Get(ctx context.Context, caseID string) (*domain.CandidateCase, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, domain.ErrInvalidCandidate
	}
	return r.store.FindOne(ctx, &domain.CandidateCase{CaseID: caseID})
}

// Add stores new candidates atomically. Any duplicate id rejects the whole set.
func (r *Repository) Add(ctx context.Context, cases []domain.CandidateCase) (int, error) {
	if len(cases) == 0 {
		return 0, nil
	}

	now := r.clock.Now().UTC()
	seen := make(map[string]struct{}, len(cases))
	rows := make([]*domain.CandidateCase, 0, len(cases))
	for _, c := range cases {
		c.CaseID = strings.TrimSpace(c.CaseID)
		c.OwnerUserID = strings.TrimSpace(c.OwnerUserID)
		if err := c.Validate(); err != nil {
			return 0, err
		}
		if _, dup := seen[c.CaseID]; dup {
			return 0, domain.ErrDuplicateCase
		}
		seen[c.CaseID] = struct{}{}

		c.NotificationDate = c.NotificationDate.UTC()
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		row := c
		rows = append(rows, &row)
	}

	if err := r.store.BatchCreate(ctx, rows); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return 0, domain.ErrDuplicateCase
		}
		return 0, err
	}
	r.log.Info("candidates added", zap.Int("count", len(rows)))
	return len(rows), nil
}

// Static serves a fixed candidate slice.
type Static []domain.CandidateCase

func (s Static) ListCandidates(ctx context.Context, q quarter.Period) ([]domain.CandidateCase, error) {
	if !q.Valid() {
		return nil, quarter.ErrInvalidQuarterFormat
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prev := q.Previous()
	out := make([]domain.CandidateCase, 0, len(s))
	for _, c := range s {
		if derived := quarter.FromDate(c.NotificationDate); derived == q || derived == prev {
			out = append(out, c)
		}
	}
	return out, nil
}
