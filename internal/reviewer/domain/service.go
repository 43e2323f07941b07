package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Upsert(ctx context.Context, req UpsertRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	// ActiveUsers returns enabled, non-reader users ordered by id.
	ActiveUsers(ctx context.Context) ([]User, error)
	// Lookup returns the roster entry used for permission checks.
	Lookup(ctx context.Context, id string) (*User, error)
}

type UpsertRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Enabled     *bool  `json:"enabled,omitempty"`
}

type ListRequest struct {
	EnabledOnly bool
	Role        string
}

type Response struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        Role      `json:"role"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var (
	ErrInvalidUserID = errors.New("invalid_user_id")
	ErrInvalidRole   = errors.New("invalid_role")
	ErrNotFound      = errors.New("user_not_found")
)
