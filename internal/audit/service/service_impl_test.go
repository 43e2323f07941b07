package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/claimaudit/internal/audit/domain"
	"github.com/smallbiznis/claimaudit/internal/audit/repository"
	"github.com/smallbiznis/claimaudit/internal/clock"
	obscontext "github.com/smallbiznis/claimaudit/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (auditdomain.Service, *gorm.DB) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&auditdomain.Entry{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    conn,
		Log:   zaptest.NewLogger(t),
		Clock: clock.NewFakeClock(time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, conn
}

func TestAuditLogWritesEntry(t *testing.T) {
	svc, conn := setupService(t)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithActor(ctx, "user", "u-2")

	err := svc.AuditLog(ctx, "", "case_audit.started", "case_audit_record", "CASE-1", map[string]any{
		"from": "PENDING",
		"to":   "IN_PROGRESS",
		"":     "dropped",
	})
	require.NoError(t, err)

	var entry auditdomain.Entry
	require.NoError(t, conn.First(&entry).Error)
	assert.Equal(t, "user", entry.ActorType)
	assert.Equal(t, "u-2", entry.ActorID)
	assert.Equal(t, "case_audit.started", entry.Action)
	assert.Equal(t, "CASE-1", entry.TargetID)
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	assert.Equal(t, "IN_PROGRESS", entry.Metadata["to"])
	assert.NotContains(t, entry.Metadata, "")
}

func TestAuditLogRejectsInvalidInput(t *testing.T) {
	svc, _ := setupService(t)

	err := svc.AuditLog(context.Background(), "u-1", " ", "case_audit_record", "CASE-1", nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)

	err = svc.AuditLog(context.Background(), "u-1", "case_audit.saved", "case_audit_record", "", nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTarget)
}

func TestListPagesNewestFirst(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	for _, action := range []string{"case_audit.started", "case_audit.saved", "case_audit.completed"} {
		require.NoError(t, svc.AuditLog(ctx, "u-2", action, "case_audit_record", "CASE-1", nil))
	}
	require.NoError(t, svc.AuditLog(ctx, "", "case_audit.started", "case_audit_record", "CASE-2", nil))

	req := auditdomain.ListRequest{TargetID: "CASE-1"}
	req.PageSize = 2
	first, err := svc.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, first.Entries, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "case_audit.completed", first.Entries[0].Action)
	assert.Equal(t, "case_audit.saved", first.Entries[1].Action)

	req.PageToken = first.NextPageToken
	second, err := svc.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, second.Entries, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, "case_audit.started", second.Entries[0].Action)

	system, err := svc.List(ctx, auditdomain.ListRequest{TargetID: "CASE-2"})
	require.NoError(t, err)
	require.Len(t, system.Entries, 1)
	assert.Equal(t, "system", system.Entries[0].ActorType)

	req.PageToken = "not-a-token"
	_, err = svc.List(ctx, req)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
