package server

import (
	"context"

	auditdomain "github.com/smallbiznis/claimaudit/internal/audit/domain"
	caseauditdomain "github.com/smallbiznis/claimaudit/internal/caseaudit/domain"
	"github.com/smallbiznis/claimaudit/internal/quarter"
	reviewerdomain "github.com/smallbiznis/claimaudit/internal/reviewer/domain"
	"github.com/stretchr/testify/mock"
)

type mockCaseAuditSvc struct {
	mock.Mock
}

func (m *mockCaseAuditSvc) StartOrUpdate(ctx context.Context, req caseauditdomain.ActionRequest) (*caseauditdomain.CaseAuditRecord, error) {
	args := m.Called(ctx, req)
	record, _ := args.Get(0).(*caseauditdomain.CaseAuditRecord)
	return record, args.Error(1)
}

func (m *mockCaseAuditSvc) Complete(ctx context.Context, req caseauditdomain.ActionRequest) (*caseauditdomain.CaseAuditRecord, error) {
	args := m.Called(ctx, req)
	record, _ := args.Get(0).(*caseauditdomain.CaseAuditRecord)
	return record, args.Error(1)
}

func (m *mockCaseAuditSvc) Reopen(ctx context.Context, req caseauditdomain.ActionRequest) (*caseauditdomain.CaseAuditRecord, error) {
	args := m.Called(ctx, req)
	record, _ := args.Get(0).(*caseauditdomain.CaseAuditRecord)
	return record, args.Error(1)
}

func (m *mockCaseAuditSvc) Act(ctx context.Context, req caseauditdomain.ActionRequest) (*caseauditdomain.CaseAuditRecord, error) {
	args := m.Called(ctx, req)
	record, _ := args.Get(0).(*caseauditdomain.CaseAuditRecord)
	return record, args.Error(1)
}

func (m *mockCaseAuditSvc) CanAct(ctx context.Context, recordID string, actorID string) (caseauditdomain.Decision, error) {
	args := m.Called(ctx, recordID, actorID)
	return args.Get(0).(caseauditdomain.Decision), args.Error(1)
}

func (m *mockCaseAuditSvc) QuarterlyStatus(ctx context.Context, userID string, q quarter.Period) (caseauditdomain.QuarterlyStatusResponse, error) {
	args := m.Called(ctx, userID, q)
	return args.Get(0).(caseauditdomain.QuarterlyStatusResponse), args.Error(1)
}

func (m *mockCaseAuditSvc) Get(ctx context.Context, id string) (*caseauditdomain.CaseAuditRecord, error) {
	args := m.Called(ctx, id)
	record, _ := args.Get(0).(*caseauditdomain.CaseAuditRecord)
	return record, args.Error(1)
}

func (m *mockCaseAuditSvc) List(ctx context.Context, req caseauditdomain.ListRequest) (caseauditdomain.ListResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(caseauditdomain.ListResponse), args.Error(1)
}

type mockBatchSvc struct {
	mock.Mock
}

func (m *mockBatchSvc) Plan(ctx context.Context, q quarter.Period, preLoadedCount int) ([]caseauditdomain.CaseAuditRecord, error) {
	args := m.Called(ctx, q, preLoadedCount)
	records, _ := args.Get(0).([]caseauditdomain.CaseAuditRecord)
	return records, args.Error(1)
}

func (m *mockBatchSvc) BuildQuarter(ctx context.Context, q quarter.Period) ([]caseauditdomain.CaseAuditRecord, error) {
	args := m.Called(ctx, q)
	records, _ := args.Get(0).([]caseauditdomain.CaseAuditRecord)
	return records, args.Error(1)
}

func (m *mockBatchSvc) ImportPreloaded(ctx context.Context, records []caseauditdomain.CaseAuditRecord) ([]caseauditdomain.CaseAuditRecord, error) {
	args := m.Called(ctx, records)
	stored, _ := args.Get(0).([]caseauditdomain.CaseAuditRecord)
	return stored, args.Error(1)
}

type mockReviewerSvc struct {
	mock.Mock
}

func (m *mockReviewerSvc) Upsert(ctx context.Context, req reviewerdomain.UpsertRequest) (*reviewerdomain.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*reviewerdomain.Response)
	return resp, args.Error(1)
}

func (m *mockReviewerSvc) Get(ctx context.Context, id string) (*reviewerdomain.Response, error) {
	args := m.Called(ctx, id)
	resp, _ := args.Get(0).(*reviewerdomain.Response)
	return resp, args.Error(1)
}

func (m *mockReviewerSvc) List(ctx context.Context, req reviewerdomain.ListRequest) ([]reviewerdomain.Response, error) {
	args := m.Called(ctx, req)
	items, _ := args.Get(0).([]reviewerdomain.Response)
	return items, args.Error(1)
}

func (m *mockReviewerSvc) ActiveUsers(ctx context.Context) ([]reviewerdomain.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]reviewerdomain.User)
	return users, args.Error(1)
}

func (m *mockReviewerSvc) Lookup(ctx context.Context, id string) (*reviewerdomain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*reviewerdomain.User)
	return user, args.Error(1)
}

type mockAuditSvc struct {
	mock.Mock
}

func (m *mockAuditSvc) AuditLog(ctx context.Context, actorID string, action string, targetType string, targetID string, metadata map[string]any) error {
	args := m.Called(ctx, actorID, action, targetType, targetID, metadata)
	return args.Error(0)
}

func (m *mockAuditSvc) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(auditdomain.ListResponse), args.Error(1)
}

type mockCandidates struct {
	mock.Mock
}

func (m *mockCandidates) Add(ctx context.Context, cases []caseauditdomain.CandidateCase) (int, error) {
	args := m.Called(ctx, cases)
	return args.Int(0), args.Error(1)
}
