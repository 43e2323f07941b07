package domain

import (
	"context"

	"github.com/smallbiznis/claimaudit/internal/quarter"
	"gorm.io/gorm"
)

type ListFilter struct {
	Quarter       *quarter.Period
	Status        Status
	AuditorUserID string
	OwnerUserID   string
	// AfterID resumes an id-ordered scan.
	AfterID string
	Limit   int
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// Insert fails with ErrDuplicateCase when the id is taken.
	Insert(ctx context.Context, record *CaseAuditRecord) error
	// FindByID returns nil, nil when the record does not exist.
	FindByID(ctx context.Context, id string) (*CaseAuditRecord, error)
	// FindForUpdate row-locks the record on dialects that support it.
	FindForUpdate(ctx context.Context, id string) (*CaseAuditRecord, error)
	// List returns up to Limit+1 rows so callers can detect another page.
	List(ctx context.Context, filter ListFilter) ([]CaseAuditRecord, error)
	CountByQuarter(ctx context.Context, q quarter.Period) (int64, error)
	ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	// UpdateIfVersion stores record only if the row still carries expectedVersion.
	UpdateIfVersion(ctx context.Context, record *CaseAuditRecord, expectedVersion int64) (bool, error)

	UpsertQuarterlyStatus(ctx context.Context, status *QuarterlyUserStatus) error
	FindQuarterlyStatus(ctx context.Context, userID string, q quarter.Period) (*QuarterlyUserStatus, error)
}

// CandidateFeed supplies the pool a batch is drawn from.
type CandidateFeed interface {
	// ListCandidates returns cases notified in q or in the quarter before it.
	ListCandidates(ctx context.Context, q quarter.Period) ([]CandidateCase, error)
}
