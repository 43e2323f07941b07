package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/domain"
	"github.com/smallbiznis/claimaudit/internal/quarter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var q2 = quarter.Period{Number: 2, Year: 2025}

func setupRepo(t *testing.T) (domain.Repository, *gorm.DB) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.CaseAuditRecord{}, &domain.QuarterlyUserStatus{}))
	return NewRepository(conn), conn
}

func pending(id, owner string, coverage string) *domain.CaseAuditRecord {
	now := time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)
	return &domain.CaseAuditRecord{
		ID:               id,
		OwnerUserID:      owner,
		CoverageAmount:   decimal.RequireFromString(coverage),
		ClaimsStatus:     "OPEN",
		Quarter:          q2,
		Origin:           domain.OriginUserQuarterly,
		Status:           domain.StatusPending,
		NotificationDate: now,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestInsertAndFind(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, pending("CASE-1", "owner-a", "100000.00")))

	got, err := repo.FindByID(ctx, "CASE-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, q2, got.Quarter)
	assert.True(t, decimal.RequireFromString("100000").Equal(got.CoverageAmount))
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Nil(t, got.CompletionDate)

	missing, err := repo.FindForUpdate(ctx, "CASE-404")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.Insert(ctx, pending("CASE-1", "owner-b", "5.00"))
	assert.ErrorIs(t, err, domain.ErrDuplicateCase)
}

func TestUpdateIfVersion(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, pending("CASE-1", "owner-a", "10.00")))

	record, err := repo.FindByID(ctx, "CASE-1")
	require.NoError(t, err)

	completedAt := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	record.Status = domain.StatusCompleted
	record.AuditorUserID = "auditor-1"
	record.Rating = "GOOD"
	record.CompletionDate = &completedAt
	record.Version = 2

	ok, err := repo.UpdateIfVersion(ctx, record, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// Stale version loses.
	record.Version = 3
	ok, err = repo.UpdateIfVersion(ctx, record, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.FindByID(ctx, "CASE-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletionDate)
	assert.True(t, completedAt.Equal(*stored.CompletionDate))

	// Clearing the completion date writes NULL.
	stored.Status = domain.StatusInProgress
	stored.CompletionDate = nil
	stored.Version = 3
	ok, err = repo.UpdateIfVersion(ctx, stored, 2)
	require.NoError(t, err)
	require.True(t, ok)

	reopened, err := repo.FindByID(ctx, "CASE-1")
	require.NoError(t, err)
	assert.Nil(t, reopened.CompletionDate)
	assert.Equal(t, "GOOD", reopened.Rating)
}

func TestListCountAndExisting(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, repo.Insert(ctx, pending(fmt.Sprintf("CASE-%d", i), fmt.Sprintf("owner-%d", i%2), "1.00")))
	}
	other := pending("CASE-9", "owner-1", "1.00")
	other.Quarter = q2.Previous()
	require.NoError(t, repo.Insert(ctx, other))

	count, err := repo.CountByQuarter(ctx, q2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	page, err := repo.List(ctx, domain.ListFilter{Quarter: &q2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 3, "limit+1 rows signal another page")
	assert.Equal(t, "CASE-1", page[0].ID)

	rest, err := repo.List(ctx, domain.ListFilter{Quarter: &q2, AfterID: "CASE-3"})
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "CASE-4", rest[0].ID)

	owned, err := repo.List(ctx, domain.ListFilter{OwnerUserID: "owner-1", Status: domain.StatusPending})
	require.NoError(t, err)
	assert.Len(t, owned, 4)

	existing, err := repo.ExistingIDs(ctx, []string{"CASE-2", "CASE-9", "CASE-77"})
	require.NoError(t, err)
	assert.Len(t, existing, 2)
	assert.Contains(t, existing, "CASE-9")
	assert.NotContains(t, existing, "CASE-77")

	none, err := repo.ExistingIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestQuarterlyStatusUpsert(t *testing.T) {
	repo, conn := setupRepo(t)
	ctx := context.Background()

	missing, err := repo.FindQuarterlyStatus(ctx, "owner-a", q2)
	require.NoError(t, err)
	assert.Nil(t, missing)

	first := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpsertQuarterlyStatus(ctx, &domain.QuarterlyUserStatus{
		UserID: "owner-a", QuarterKey: q2, Completed: true, LastCompletedAt: &first, UpdatedAt: first,
	}))

	second := first.Add(48 * time.Hour)
	require.NoError(t, repo.WithTx(conn).UpsertQuarterlyStatus(ctx, &domain.QuarterlyUserStatus{
		UserID: "owner-a", QuarterKey: q2, Completed: true, LastCompletedAt: &second, UpdatedAt: second,
	}))

	got, err := repo.FindQuarterlyStatus(ctx, "owner-a", q2)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Completed)
	require.NotNil(t, got.LastCompletedAt)
	assert.True(t, second.Equal(*got.LastCompletedAt))

	var rows int64
	require.NoError(t, conn.Model(&domain.QuarterlyUserStatus{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}
