package domain

import (
	"context"

	"gorm.io/gorm"
)

type ListFilter struct {
	EnabledOnly bool
	Role        Role
}

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*User, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]User, error)
}
