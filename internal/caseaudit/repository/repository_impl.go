package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/claimaudit/internal/caseaudit/domain"
	"github.com/smallbiznis/claimaudit/internal/quarter"
	"github.com/smallbiznis/claimaudit/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const existingIDsChunk = 500

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) domain.Repository {
	return &RepositoryImpl{db: conn}
}

func (r *RepositoryImpl) WithTx(tx *gorm.DB) domain.Repository {
	return &RepositoryImpl{db: tx}
}

func (r *RepositoryImpl) Insert(ctx context.Context, record *domain.CaseAuditRecord) error {
	if record == nil {
		return gorm.ErrInvalidData
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrDuplicateCase
		}
		return err
	}
	return nil
}

func (r *RepositoryImpl) FindByID(ctx context.Context, id string) (*domain.CaseAuditRecord, error) {
	return r.find(ctx, r.db.WithContext(ctx), id)
}

func (r *RepositoryImpl) FindForUpdate(ctx context.Context, id string) (*domain.CaseAuditRecord, error) {
	stmt := r.db.WithContext(ctx)
	if r.db.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.find(ctx, stmt, id)
}

func (r *RepositoryImpl) find(_ context.Context, stmt *gorm.DB, id string) (*domain.CaseAuditRecord, error) {
	var record domain.CaseAuditRecord
	err := stmt.Where("id = ?", id).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *RepositoryImpl) List(ctx context.Context, filter domain.ListFilter) ([]domain.CaseAuditRecord, error) {
	var items []domain.CaseAuditRecord
	stmt := r.db.WithContext(ctx).Model(&domain.CaseAuditRecord{})

	if filter.Quarter != nil {
		stmt = stmt.Where("quarter = ?", filter.Quarter.String())
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", string(filter.Status))
	}
	if auditor := strings.TrimSpace(filter.AuditorUserID); auditor != "" {
		stmt = stmt.Where("auditor_user_id = ?", auditor)
	}
	if owner := strings.TrimSpace(filter.OwnerUserID); owner != "" {
		stmt = stmt.Where("owner_user_id = ?", owner)
	}
	if filter.AfterID != "" {
		stmt = stmt.Where("id > ?", filter.AfterID)
	}

	stmt = stmt.Order("id asc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *RepositoryImpl) CountByQuarter(ctx context.Context, q quarter.Period) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.CaseAuditRecord{}).
		Where("quarter = ?", q.String()).
		Count(&count).Error
	return count, err
}

func (r *RepositoryImpl) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	for start := 0; start < len(ids); start += existingIDsChunk {
		end := min(start+existingIDsChunk, len(ids))

		var found []string
		if err := r.db.WithContext(ctx).
			Model(&domain.CaseAuditRecord{}).
			Where("id IN ?", ids[start:end]).
			Pluck("id", &found).Error; err != nil {
			return nil, err
		}
		for _, id := range found {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

func (r *RepositoryImpl) UpdateIfVersion(ctx context.Context, record *domain.CaseAuditRecord, expectedVersion int64) (bool, error) {
	if record == nil {
		return false, gorm.ErrInvalidData
	}
	res := r.db.WithContext(ctx).
		Model(&domain.CaseAuditRecord{}).
		Where("id = ? AND version = ?", record.ID, expectedVersion).
		Updates(map[string]any{
			"auditor_user_id":          record.AuditorUserID,
			"previous_auditor_user_id": record.PreviousAuditorUserID,
			"status":                   string(record.Status),
			"rating":                   record.Rating,
			"comment":                  record.Comment,
			"special_findings":         record.SpecialFindings,
			"detailed_findings":        record.DetailedFindings,
			"completion_date":          record.CompletionDate,
			"version":                  record.Version,
			"updated_at":               record.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *RepositoryImpl) UpsertQuarterlyStatus(ctx context.Context, status *domain.QuarterlyUserStatus) error {
	if status == nil {
		return gorm.ErrInvalidData
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "quarter_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"completed", "last_completed_at", "updated_at"}),
		}).
		Create(status).Error
}

func (r *RepositoryImpl) FindQuarterlyStatus(ctx context.Context, userID string, q quarter.Period) (*domain.QuarterlyUserStatus, error) {
	var status domain.QuarterlyUserStatus
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND quarter_key = ?", userID, q.String()).
		Take(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}
