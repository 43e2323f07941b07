package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/claimaudit/internal/quarter"
	"github.com/smallbiznis/claimaudit/pkg/db/pagination"
)

// Service runs the review lifecycle of individual records.
type Service interface {
	StartOrUpdate(ctx context.Context, req ActionRequest) (*CaseAuditRecord, error)
	Complete(ctx context.Context, req ActionRequest) (*CaseAuditRecord, error)
	Reopen(ctx context.Context, req ActionRequest) (*CaseAuditRecord, error)
	// Act dispatches on req.Kind.
	Act(ctx context.Context, req ActionRequest) (*CaseAuditRecord, error)

	CanAct(ctx context.Context, recordID string, actorID string) (Decision, error)
	QuarterlyStatus(ctx context.Context, userID string, q quarter.Period) (QuarterlyStatusResponse, error)
	Get(ctx context.Context, id string) (*CaseAuditRecord, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

// BatchService builds and seeds quarterly review batches.
type BatchService interface {
	Plan(ctx context.Context, q quarter.Period, preLoadedCount int) ([]CaseAuditRecord, error)
	// BuildQuarter derives the carried-over count from records already stored for q.
	BuildQuarter(ctx context.Context, q quarter.Period) ([]CaseAuditRecord, error)
	ImportPreloaded(ctx context.Context, records []CaseAuditRecord) ([]CaseAuditRecord, error)
}

type ListRequest struct {
	Quarter       string `form:"quarter"`
	Status        string `form:"status"`
	AuditorUserID string `form:"auditor"`
	OwnerUserID   string `form:"owner"`
	pagination.Pagination
}

type ListResponse struct {
	Records  []CaseAuditRecord   `json:"records"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type QuarterlyStatusResponse struct {
	UserID          string     `json:"user_id"`
	Quarter         string     `json:"quarter"`
	Completed       bool       `json:"completed"`
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`
}
