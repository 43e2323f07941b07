package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	reviewerdomain "github.com/smallbiznis/claimaudit/internal/reviewer/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AuditPolicy is the tunable part of audit selection and permission checks.
type AuditPolicy struct {
	Limits reviewerdomain.RoleLimits
	// ClaimsStatuses are drawn from when synthesizing filler candidates.
	ClaimsStatuses []string
}

func DefaultAuditPolicy() AuditPolicy {
	return AuditPolicy{
		Limits:         reviewerdomain.DefaultRoleLimits(),
		ClaimsStatuses: []string{"OPEN", "SETTLED", "REJECTED", "PARTIALLY_SETTLED"},
	}
}

type AuditPolicyHolder struct {
	current atomic.Value // holds AuditPolicy
}

// NewStaticAuditPolicyHolder returns a holder that never reloads.
func NewStaticAuditPolicyHolder(policy AuditPolicy) *AuditPolicyHolder {
	holder := &AuditPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewAuditPolicyHolder(cfg Config, log *zap.Logger) (*AuditPolicyHolder, error) {
	log = log.Named("config.audit_policy")
	v := viper.New()

	v.SetConfigName("audit_policy")
	v.SetConfigType("yml")
	if cfg.AuditPolicyPath != "" {
		v.AddConfigPath(cfg.AuditPolicyPath)
	}
	v.AddConfigPath("/etc/claimaudit")
	v.AddConfigPath(".")

	// AUDIT_STAFF_LIMIT, AUDIT_SPECIALIST_LIMIT override the file.
	v.SetEnvPrefix("AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAuditPolicy()
	v.SetDefault("staff_limit", defaults.Limits.Staff.String())
	v.SetDefault("specialist_limit", defaults.Limits.Specialist.String())
	v.SetDefault("claims_statuses", defaults.ClaimsStatuses)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	policy, err := decodeAuditPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticAuditPolicyHolder(policy)
	log.Info("audit policy loaded",
		zap.Bool("from_file", fileFound),
		zap.String("staff_limit", policy.Limits.Staff.String()),
		zap.String("specialist_limit", policy.Limits.Specialist.String()),
	)

	if fileFound && cfg.AuditPolicyWatch {
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeAuditPolicy(v)
			if err != nil {
				log.Warn("invalid audit policy ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("audit policy reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

func (h *AuditPolicyHolder) Get() AuditPolicy {
	return h.current.Load().(AuditPolicy)
}

func (h *AuditPolicyHolder) Limits() reviewerdomain.RoleLimits {
	return h.Get().Limits
}

func decodeAuditPolicy(v *viper.Viper) (AuditPolicy, error) {
	staff, err := decimal.NewFromString(strings.TrimSpace(v.GetString("staff_limit")))
	if err != nil {
		return AuditPolicy{}, fmt.Errorf("staff_limit: %w", err)
	}
	specialist, err := decimal.NewFromString(strings.TrimSpace(v.GetString("specialist_limit")))
	if err != nil {
		return AuditPolicy{}, fmt.Errorf("specialist_limit: %w", err)
	}

	policy := AuditPolicy{
		Limits: reviewerdomain.RoleLimits{Staff: staff, Specialist: specialist},
	}
	for _, status := range v.GetStringSlice("claims_statuses") {
		if status = strings.TrimSpace(status); status != "" {
			policy.ClaimsStatuses = append(policy.ClaimsStatuses, status)
		}
	}
	if err := validateAuditPolicy(policy); err != nil {
		return AuditPolicy{}, err
	}
	return policy, nil
}

func validateAuditPolicy(policy AuditPolicy) error {
	if err := policy.Limits.Validate(); err != nil {
		return err
	}
	if len(policy.ClaimsStatuses) == 0 {
		return errors.New("claims_statuses cannot be empty")
	}
	return nil
}
