package repository

import (
	"context"

	"github.com/smallbiznis/claimaudit/internal/reviewer/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	if user == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "role", "enabled", "updated_at"}),
		}).
		Create(user).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, display_name, role, enabled, created_at, updated_at
		 FROM reviewers WHERE id = ?`,
		id,
	).Scan(&u).Error
	if err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, nil
	}
	return &u, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.User, error) {
	var items []domain.User
	stmt := db.WithContext(ctx).Model(&domain.User{})
	if filter.EnabledOnly {
		stmt = stmt.Where("enabled = ?", true)
	}
	if filter.Role != "" {
		stmt = stmt.Where("role = ?", filter.Role)
	}
	if err := stmt.Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
