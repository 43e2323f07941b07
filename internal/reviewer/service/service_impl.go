package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/claimaudit/internal/clock"
	"github.com/smallbiznis/claimaudit/internal/reviewer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("reviewer.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertRequest) (*domain.Response, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return nil, domain.ErrInvalidUserID
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	existing, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:          id,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Role:        role,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing != nil {
		user.CreatedAt = existing.CreatedAt
		user.Enabled = existing.Enabled
		if user.DisplayName == "" {
			user.DisplayName = existing.DisplayName
		}
	}
	if req.Enabled != nil {
		user.Enabled = *req.Enabled
	}

	if err := s.repo.Upsert(ctx, s.db, user); err != nil {
		return nil, err
	}
	s.log.Info("roster entry saved",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.Bool("enabled", user.Enabled),
	)

	resp := toResponse(user)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	user, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(user)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	filter := domain.ListFilter{EnabledOnly: req.EnabledOnly}
	if strings.TrimSpace(req.Role) != "" {
		role, err := domain.ParseRole(req.Role)
		if err != nil {
			return nil, err
		}
		filter.Role = role
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) ActiveUsers(ctx context.Context) ([]domain.User, error) {
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{EnabledOnly: true})
	if err != nil {
		return nil, err
	}
	active := items[:0]
	for _, u := range items {
		if u.Active() {
			active = append(active, u)
		}
	}
	return active, nil
}

func (s *Service) Lookup(ctx context.Context, id string) (*domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrInvalidUserID
	}
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func toResponse(u *domain.User) domain.Response {
	return domain.Response{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		Enabled:     u.Enabled,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
