package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/claimaudit/internal/audit/domain"
	caseauditdomain "github.com/smallbiznis/claimaudit/internal/caseaudit/domain"
	"github.com/smallbiznis/claimaudit/internal/observability"
	"github.com/smallbiznis/claimaudit/internal/quarter"
	reviewerdomain "github.com/smallbiznis/claimaudit/internal/reviewer/domain"
	"github.com/smallbiznis/claimaudit/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router     *gin.Engine
	caseAudit  *mockCaseAuditSvc
	batch      *mockBatchSvc
	reviewer   *mockReviewerSvc
	audit      *mockAuditSvc
	candidates *mockCandidates
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		router:     gin.New(),
		caseAudit:  new(mockCaseAuditSvc),
		batch:      new(mockBatchSvc),
		reviewer:   new(mockReviewerSvc),
		audit:      new(mockAuditSvc),
		candidates: new(mockCandidates),
	}
	t.Cleanup(func() {
		ts.caseAudit.AssertExpectations(t)
		ts.batch.AssertExpectations(t)
		ts.reviewer.AssertExpectations(t)
		ts.audit.AssertExpectations(t)
		ts.candidates.AssertExpectations(t)
	})
	ts.router.Use(ErrorHandlingMiddleware())
	ts.router.Use(ActorContext())

	srv := &Server{
		engine:       ts.router,
		reviewerSvc:  ts.reviewer,
		caseAuditSvc: ts.caseAudit,
		batchSvc:     ts.batch,
		auditSvc:     ts.audit,
		candidates:   ts.candidates,
	}
	srv.registerAPIRoutes()
	return ts
}

func (ts *testServer) do(method, path, userID, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.Error
}

func TestActOnRecordRequiresCaller(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/records/case-1/actions", "", `{"kind":"start"}`)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "unauthorized", decodeError(t, resp).Type)
	ts.caseAudit.AssertNotCalled(t, "Act", mock.Anything, mock.Anything)
}

func TestActOnRecordPassesCallerAndPayload(t *testing.T) {
	ts := newTestServer(t)
	var got caseauditdomain.ActionRequest
	ts.caseAudit.On("Act", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(caseauditdomain.ActionRequest) }).
		Return(&caseauditdomain.CaseAuditRecord{ID: "case-1", Version: 3}, nil).
		Once()

	resp := ts.do(http.MethodPost, "/api/records/case-1/actions", "staff-1",
		`{"kind":"complete","review":{"rating":"A","comment":"ok"},"expected_version":2}`)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "case-1", got.RecordID)
	assert.Equal(t, "staff-1", got.ActorID)
	assert.Equal(t, caseauditdomain.ActionComplete, got.Kind)
	require.NotNil(t, got.Review)
	require.NotNil(t, got.Review.Rating)
	assert.Equal(t, "A", *got.Review.Rating)
	require.NotNil(t, got.ExpectedVersion)
	assert.Equal(t, int64(2), *got.ExpectedVersion)

	var body struct {
		Data caseauditdomain.CaseAuditRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "case-1", body.Data.ID)
	assert.Equal(t, int64(3), body.Data.Version)
}

func TestActOnRecordErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		errType string
		errCode string
	}{
		{"denied", caseauditdomain.ErrPermissionDenied, http.StatusForbidden, "forbidden", "permission_denied"},
		{"unknown user", fmt.Errorf("%w: %w", caseauditdomain.ErrPermissionDenied, caseauditdomain.ErrUnknownUser), http.StatusForbidden, "forbidden", "permission_denied"},
		{"not found", caseauditdomain.ErrCaseNotFound, http.StatusNotFound, "not_found", ""},
		{"conflict", caseauditdomain.ErrConcurrentModification, http.StatusConflict, "conflict", "concurrent_modification"},
		{"transition", caseauditdomain.ErrInvalidTransition, http.StatusConflict, "conflict", "invalid_transition"},
		{"incomplete", caseauditdomain.ErrIncompleteReview, http.StatusUnprocessableEntity, "unprocessable", "incomplete_review"},
		{"kind", caseauditdomain.ErrInvalidActionKind, http.StatusBadRequest, "validation_error", ""},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal_error", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.caseAudit.On("Act", mock.Anything, mock.Anything).Return(nil, tc.err).Once()

			resp := ts.do(http.MethodPost, "/api/records/case-1/actions", "staff-1", `{"kind":"start"}`)

			assert.Equal(t, tc.status, resp.Code)
			payload := decodeError(t, resp)
			assert.Equal(t, tc.errType, payload.Type)
			if tc.errCode != "" {
				assert.Equal(t, tc.errCode, payload.Code)
			}
		})
	}
}

func TestActOnRecordRejectsMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/records/case-1/actions", "staff-1", `{"kind":`)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	ts.caseAudit.AssertNotCalled(t, "Act", mock.Anything, mock.Anything)
}

func TestCanActUsesCaller(t *testing.T) {
	ts := newTestServer(t)
	ts.caseAudit.On("CanAct", mock.Anything, "case-1", "owner-1").
		Return(caseauditdomain.Decision{Allowed: false, Reason: "own_case"}, nil).
		Once()

	resp := ts.do(http.MethodGet, "/api/records/case-1/can-act", "owner-1", "")

	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Data caseauditdomain.Decision `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.False(t, body.Data.Allowed)
	assert.Equal(t, "own_case", body.Data.Reason)
}

func TestPlanBatch(t *testing.T) {
	q2 := quarter.Period{Number: 2, Year: 2025}

	t.Run("without body derives pre-loaded count", func(t *testing.T) {
		ts := newTestServer(t)
		ts.batch.On("BuildQuarter", mock.Anything, q2).Return([]caseauditdomain.CaseAuditRecord{}, nil).Once()

		resp := ts.do(http.MethodPost, "/api/quarters/Q2-2025/batch", "lead-1", "")

		require.Equal(t, http.StatusCreated, resp.Code)
		ts.batch.AssertNotCalled(t, "Plan", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("explicit pre-loaded count", func(t *testing.T) {
		ts := newTestServer(t)
		ts.batch.On("Plan", mock.Anything, q2, 3).Return([]caseauditdomain.CaseAuditRecord{}, nil).Once()

		resp := ts.do(http.MethodPost, "/api/quarters/Q2-2025/batch", "lead-1", `{"pre_loaded_count":3}`)

		require.Equal(t, http.StatusCreated, resp.Code)
	})

	t.Run("invalid quarter", func(t *testing.T) {
		ts := newTestServer(t)

		resp := ts.do(http.MethodPost, "/api/quarters/Q5-2025/batch", "lead-1", "")

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		payload := decodeError(t, resp)
		require.Len(t, payload.Errors, 1)
		assert.Equal(t, "quarter", payload.Errors[0].Field)
		ts.batch.AssertNotCalled(t, "BuildQuarter", mock.Anything, mock.Anything)
	})

	t.Run("batch in progress", func(t *testing.T) {
		ts := newTestServer(t)
		ts.batch.On("Plan", mock.Anything, q2, 0).Return(nil, caseauditdomain.ErrBatchInProgress).Once()

		resp := ts.do(http.MethodPost, "/api/quarters/Q2-2025/batch", "lead-1", `{"pre_loaded_count":0}`)

		assert.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, "batch_in_progress", decodeError(t, resp).Code)
	})
}

func TestImportPreloadedQuarter(t *testing.T) {
	t.Run("fills missing quarter from path", func(t *testing.T) {
		ts := newTestServer(t)
		var imported []caseauditdomain.CaseAuditRecord
		ts.batch.On("ImportPreloaded", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { imported = args.Get(1).([]caseauditdomain.CaseAuditRecord) }).
			Return([]caseauditdomain.CaseAuditRecord{}, nil).
			Once()

		resp := ts.do(http.MethodPost, "/api/quarters/Q2-2025/preloaded", "lead-1",
			`{"records":[{"id":"pre-1","owner_user_id":"owner-1","coverage_amount":"1000","claims_status":"OPEN","status":"PENDING","notification_date":"2025-01-10T00:00:00Z"}]}`)

		require.Equal(t, http.StatusCreated, resp.Code)
		require.Len(t, imported, 1)
		assert.Equal(t, quarter.Period{Number: 2, Year: 2025}, imported[0].Quarter)
		assert.True(t, decimal.NewFromInt(1000).Equal(imported[0].CoverageAmount))
	})

	t.Run("rejects another quarter", func(t *testing.T) {
		ts := newTestServer(t)

		resp := ts.do(http.MethodPost, "/api/quarters/Q2-2025/preloaded", "lead-1",
			`{"records":[{"id":"pre-1","owner_user_id":"owner-1","quarter":"Q1-2025","coverage_amount":"1000","status":"PENDING"}]}`)

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		ts.batch.AssertNotCalled(t, "ImportPreloaded", mock.Anything, mock.Anything)
	})
}

func TestListRecordsBindsFilters(t *testing.T) {
	ts := newTestServer(t)
	var got caseauditdomain.ListRequest
	ts.caseAudit.On("List", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(caseauditdomain.ListRequest) }).
		Return(caseauditdomain.ListResponse{Records: []caseauditdomain.CaseAuditRecord{}}, nil).
		Once()

	resp := ts.do(http.MethodGet, "/api/records?quarter=Q2-2025&status=pending&auditor=staff-1&owner=owner-1&page_size=10&page_token=abc", "", "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Q2-2025", got.Quarter)
	assert.Equal(t, "pending", got.Status)
	assert.Equal(t, "staff-1", got.AuditorUserID)
	assert.Equal(t, "owner-1", got.OwnerUserID)
	assert.Equal(t, 10, got.PageSize)
	assert.Equal(t, "abc", got.PageToken)
}

func TestListRecordsInvalidFilter(t *testing.T) {
	ts := newTestServer(t)
	ts.caseAudit.On("List", mock.Anything, mock.Anything).
		Return(caseauditdomain.ListResponse{}, caseauditdomain.ErrInvalidFilter).
		Once()

	resp := ts.do(http.MethodGet, "/api/records?status=done", "", "")

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListRecordEventsScopesToRecord(t *testing.T) {
	ts := newTestServer(t)
	ts.caseAudit.On("Get", mock.Anything, "case-1").
		Return(&caseauditdomain.CaseAuditRecord{ID: "case-1"}, nil).
		Once()
	ts.audit.On("List", mock.Anything, mock.MatchedBy(func(req auditdomain.ListRequest) bool {
		return req.TargetType == targetTypeRecord &&
			req.TargetID == "case-1" &&
			req.Pagination == pagination.Pagination{PageSize: 5}
	})).Return(auditdomain.ListResponse{Entries: []auditdomain.Entry{}}, nil).Once()

	resp := ts.do(http.MethodGet, "/api/records/case-1/events?page_size=5", "", "")

	require.Equal(t, http.StatusOK, resp.Code)
}

func TestListRecordEventsUnknownRecord(t *testing.T) {
	ts := newTestServer(t)
	ts.caseAudit.On("Get", mock.Anything, "missing").Return(nil, caseauditdomain.ErrCaseNotFound).Once()

	resp := ts.do(http.MethodGet, "/api/records/missing/events", "", "")

	assert.Equal(t, http.StatusNotFound, resp.Code)
	ts.audit.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestUpsertUser(t *testing.T) {
	ts := newTestServer(t)
	var got reviewerdomain.UpsertRequest
	ts.reviewer.On("Upsert", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(reviewerdomain.UpsertRequest) }).
		Return(&reviewerdomain.Response{ID: "staff-9", Role: reviewerdomain.RoleStaff}, nil).
		Once()

	resp := ts.do(http.MethodPut, "/api/users/staff-9", "lead-1", `{"role":"staff","enabled":false}`)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "staff-9", got.ID)
	assert.Equal(t, "staff", got.Role)
	require.NotNil(t, got.Enabled)
	assert.False(t, *got.Enabled)
}

func TestUpsertUserInvalidRole(t *testing.T) {
	ts := newTestServer(t)
	ts.reviewer.On("Upsert", mock.Anything, mock.Anything).Return(nil, reviewerdomain.ErrInvalidRole).Once()

	resp := ts.do(http.MethodPut, "/api/users/staff-9", "lead-1", `{"role":"boss"}`)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_role", payload.Errors[0].Code)
}

func TestListUsersEnabledOnly(t *testing.T) {
	ts := newTestServer(t)
	ts.reviewer.On("List", mock.Anything, reviewerdomain.ListRequest{Role: "reader", EnabledOnly: true}).
		Return([]reviewerdomain.Response{}, nil).
		Once()

	resp := ts.do(http.MethodGet, "/api/users?enabled_only=true&role=reader", "", "")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.do(http.MethodGet, "/api/users?enabled_only=maybe", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetUserNotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.reviewer.On("Get", mock.Anything, "ghost").Return(nil, reviewerdomain.ErrNotFound).Once()

	resp := ts.do(http.MethodGet, "/api/users/ghost", "", "")

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestQuarterlyStatus(t *testing.T) {
	ts := newTestServer(t)
	q3 := quarter.Period{Number: 3, Year: 2025}
	ts.caseAudit.On("QuarterlyStatus", mock.Anything, "owner-1", q3).
		Return(caseauditdomain.QuarterlyStatusResponse{UserID: "owner-1", Quarter: q3.String(), Completed: true}, nil).
		Once()

	resp := ts.do(http.MethodGet, "/api/users/owner-1/quarters/Q3-2025/status", "", "")

	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Data caseauditdomain.QuarterlyStatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "owner-1", body.Data.UserID)
	assert.True(t, body.Data.Completed)
}

func TestAddCandidates(t *testing.T) {
	ts := newTestServer(t)
	ts.candidates.On("Add", mock.Anything, mock.MatchedBy(func(cases []caseauditdomain.CandidateCase) bool {
		return len(cases) == 1 && cases[0].CaseID == "c-1" && cases[0].CoverageAmount.Equal(decimal.RequireFromString("250.50"))
	})).Return(1, nil).Once()

	resp := ts.do(http.MethodPost, "/api/candidates", "", `{"cases":[{"case_id":"c-1","owner_user_id":"owner-1","coverage_amount":"250.50","claims_status":"OPEN","notification_date":"2025-04-03T00:00:00Z"}]}`)
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = ts.do(http.MethodPost, "/api/candidates", "", `{"cases":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	ts.candidates.On("Add", mock.Anything, mock.Anything).Return(0, caseauditdomain.ErrDuplicateCase).Once()
	resp = ts.do(http.MethodPost, "/api/candidates", "", `{"cases":[{"case_id":"c-1"}]}`)
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestEngineHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := NewEngine(observability.Config{Environment: "test"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))
}

func TestClassifyErrorForLog(t *testing.T) {
	errType, code := classifyErrorForLog(caseauditdomain.ErrConcurrentModification)
	assert.Equal(t, "conflict", errType)
	assert.Equal(t, "concurrent_modification", code)

	errType, code = classifyErrorForLog(quarter.ErrInvalidQuarterFormat)
	assert.Equal(t, "validation_error", errType)
	assert.Equal(t, "invalid_quarter_format", code)

	errType, code = classifyErrorForLog(errors.New("boom"))
	assert.Equal(t, "internal_error", errType)
	assert.Equal(t, "internal_error", code)
}
