package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	reviewerdomain "github.com/smallbiznis/claimaudit/internal/reviewer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer persists the role policy through gorm-adapter so operators can
// extend it in the casbin_rule table.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("casbin adapter: %w", err)
	}
	return buildEnforcer(adapter)
}

// NewMemoryEnforcer holds the seeded policy without a backing store.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	return buildEnforcer(nil)
}

func buildEnforcer(adapter persist.Adapter) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if adapter == nil {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	}
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoBuildRoleLinks(true)
	if adapter != nil {
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, enforcer.BuildRoleLinks()
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Capable(ctx context.Context, role reviewerdomain.Role, object string, action string) (bool, error) {
	if !role.Valid() {
		return false, ErrInvalidRole
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return false, ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return false, ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(subjectFor(role), object, action)
	if err != nil {
		return false, err
	}
	if !allowed {
		s.log.Debug("capability not held",
			zap.String("role", string(role)),
			zap.String("object", object),
			zap.String("action", action),
		)
	}
	return allowed, nil
}

func subjectFor(role reviewerdomain.Role) string {
	return fmt.Sprintf("role:%s", strings.ToLower(string(role)))
}

// Role capabilities. team_leader inherits specialist, which inherits staff.
// READER is never linked and holds nothing.
var (
	seedCapabilities = [][]string{
		{subjectFor(reviewerdomain.RoleStaff), ObjectCaseAudit, ActionAct},
		{subjectFor(reviewerdomain.RoleSpecialist), ObjectCaseAudit, ActionTakeover},
	}
	seedInheritance = [][]string{
		{subjectFor(reviewerdomain.RoleSpecialist), subjectFor(reviewerdomain.RoleStaff)},
		{subjectFor(reviewerdomain.RoleTeamLeader), subjectFor(reviewerdomain.RoleSpecialist)},
	}
)

// seedPolicies adds the built-in rules that are missing. Rules an operator
// added through the adapter are left alone.
func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	for _, rule := range seedCapabilities {
		has, err := enforcer.HasPolicy(rule)
		if err != nil {
			return err
		}
		if !has {
			if _, err := enforcer.AddPolicy(rule); err != nil {
				return err
			}
		}
	}
	for _, link := range seedInheritance {
		has, err := enforcer.HasGroupingPolicy(link)
		if err != nil {
			return err
		}
		if !has {
			if _, err := enforcer.AddGroupingPolicy(link); err != nil {
				return err
			}
		}
	}
	return nil
}
