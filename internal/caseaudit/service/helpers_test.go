package service

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/claimaudit/internal/audit/domain"
	auditrepository "github.com/smallbiznis/claimaudit/internal/audit/repository"
	auditservice "github.com/smallbiznis/claimaudit/internal/audit/service"
	"github.com/smallbiznis/claimaudit/internal/authorization"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/domain"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/feed"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/permission"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/repository"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/selection"
	"github.com/smallbiznis/claimaudit/internal/clock"
	"github.com/smallbiznis/claimaudit/internal/config"
	"github.com/smallbiznis/claimaudit/internal/lock"
	"github.com/smallbiznis/claimaudit/internal/quarter"
	reviewerdomain "github.com/smallbiznis/claimaudit/internal/reviewer/domain"
	reviewerrepository "github.com/smallbiznis/claimaudit/internal/reviewer/repository"
	reviewerservice "github.com/smallbiznis/claimaudit/internal/reviewer/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var q2 = quarter.Period{Number: 2, Year: 2025}

type fixture struct {
	conn   *gorm.DB
	clock  *clock.FakeClock
	repo   domain.Repository
	roster reviewerdomain.Service
	audit  auditdomain.Service
	locker *lock.LocalLocker
	svc    domain.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(
		&reviewerdomain.User{},
		&domain.CaseAuditRecord{},
		&domain.QuarterlyUserStatus{},
		&auditdomain.Entry{},
	))

	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	roster := reviewerservice.New(reviewerservice.Params{
		DB: conn, Log: log, Clock: clk, Repo: reviewerrepository.Provide(),
	})
	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer})
	audit := auditservice.NewService(auditservice.Params{
		DB: conn, Log: log, Clock: clk, GenID: node, Repo: auditrepository.Provide(),
	})
	repo := repository.NewRepository(conn)

	f := &fixture{
		conn:   conn,
		clock:  clk,
		repo:   repo,
		roster: roster,
		audit:  audit,
		locker: lock.NewLocalLocker(clk),
	}
	f.svc = New(Params{
		DB:        conn,
		Log:       log,
		Clock:     clk,
		Repo:      repo,
		Roster:    roster,
		Evaluator: permission.NewEvaluator(authz),
		Policy:    config.NewStaticAuditPolicyHolder(config.DefaultAuditPolicy()),
		AuditSvc:  audit,
	})

	for id, role := range map[string]string{
		"owner-1":      "STAFF",
		"owner-2":      "STAFF",
		"staff-1":      "STAFF",
		"staff-2":      "STAFF",
		"specialist-1": "SPECIALIST",
		"lead-1":       "TEAM_LEADER",
		"reader-1":     "READER",
	} {
		_, err := roster.Upsert(context.Background(), reviewerdomain.UpsertRequest{ID: id, Role: role})
		require.NoError(t, err)
	}
	disabled := false
	_, err = roster.Upsert(context.Background(), reviewerdomain.UpsertRequest{ID: "gone-1", Role: "STAFF", Enabled: &disabled})
	require.NoError(t, err)

	return f
}

func (f *fixture) batch(t *testing.T, pool []domain.CandidateCase) domain.BatchService {
	t.Helper()

	log := zaptest.NewLogger(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	return NewBatch(BatchParams{
		DB:       f.conn,
		Log:      log,
		Clock:    f.clock,
		Repo:     f.repo,
		Feed:     feed.Static(pool),
		Planner:  selection.NewWithSource(log, f.clock, node, rand.NewPCG(7, 11)),
		Roster:   f.roster,
		Policy:   config.NewStaticAuditPolicyHolder(config.DefaultAuditPolicy()),
		Locker:   f.locker,
		AuditSvc: f.audit,
	})
}

func (f *fixture) insert(t *testing.T, record domain.CaseAuditRecord) domain.CaseAuditRecord {
	t.Helper()
	require.NoError(t, f.repo.Insert(context.Background(), &record))
	return record
}

func pendingRecord(id, owner, coverage string) domain.CaseAuditRecord {
	notified := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	return domain.CaseAuditRecord{
		ID:               id,
		OwnerUserID:      owner,
		CoverageAmount:   decimal.RequireFromString(coverage),
		ClaimsStatus:     "OPEN",
		Quarter:          q2,
		Origin:           domain.OriginUserQuarterly,
		Status:           domain.StatusPending,
		NotificationDate: notified,
		Version:          1,
		CreatedAt:        notified,
		UpdatedAt:        notified,
	}
}

func inProgressRecord(id, owner, auditor string) domain.CaseAuditRecord {
	r := pendingRecord(id, owner, "5000")
	r.Status = domain.StatusInProgress
	r.AuditorUserID = auditor
	r.Comment = "draft"
	return r
}

func completedRecord(id, owner, auditor string) domain.CaseAuditRecord {
	r := inProgressRecord(id, owner, auditor)
	completed := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)
	r.Status = domain.StatusCompleted
	r.Rating = "GOOD"
	r.CompletionDate = &completed
	return r
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }
