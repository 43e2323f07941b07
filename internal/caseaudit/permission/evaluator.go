package permission

import (
	"context"
	"errors"

	"github.com/smallbiznis/claimaudit/internal/authorization"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/domain"
	reviewerdomain "github.com/smallbiznis/claimaudit/internal/reviewer/domain"
)

// Decision reasons.
const (
	ReasonMissingActor       = "missing_actor"
	ReasonActorDisabled      = "actor_disabled"
	ReasonReaderRole         = "reader_role"
	ReasonRoleNotPermitted   = "role_not_permitted"
	ReasonTeamLeaderOwnCase  = "team_leader_own_case"
	ReasonAssignedAuditor    = "assigned_auditor"
	ReasonOwnCase            = "own_case"
	ReasonPrivilegedTakeover = "privileged_takeover"
	ReasonHeldByOther        = "in_progress_by_other"
	ReasonCoverageExceeded   = "coverage_limit_exceeded"
	ReasonEligible           = "eligible"
)

// Actor is the caller as known to the roster.
type Actor struct {
	ID      string
	Role    reviewerdomain.Role
	Enabled bool
}

func ActorFromUser(u reviewerdomain.User) Actor {
	return Actor{ID: u.ID, Role: u.Role, Enabled: u.Enabled}
}

// Evaluator answers whether an actor may act on a record in its current state.
type Evaluator struct {
	authz authorization.Service
}

func NewEvaluator(authz authorization.Service) *Evaluator {
	return &Evaluator{authz: authz}
}

// Evaluate applies the rules in order: identity, self-audit, in-progress
// exclusivity, then coverage limits. Earlier rules win.
func (e *Evaluator) Evaluate(ctx context.Context, actor Actor, record domain.CaseAuditRecord, limits reviewerdomain.RoleLimits) (domain.Decision, error) {
	if actor.ID == "" {
		return deny(ReasonMissingActor), nil
	}
	if actor.Role == reviewerdomain.RoleReader {
		return deny(ReasonReaderRole), nil
	}
	if !actor.Enabled {
		return deny(ReasonActorDisabled), nil
	}
	canAct, err := e.authz.Capable(ctx, actor.Role, authorization.ObjectCaseAudit, authorization.ActionAct)
	if err != nil {
		if errors.Is(err, authorization.ErrInvalidRole) {
			return deny(ReasonRoleNotPermitted), nil
		}
		return domain.Decision{}, err
	}
	if !canAct {
		return deny(ReasonRoleNotPermitted), nil
	}

	if actor.Role == reviewerdomain.RoleTeamLeader && record.OwnerUserID == actor.ID {
		return deny(ReasonTeamLeaderOwnCase), nil
	}

	if record.Status == domain.StatusInProgress {
		if record.AuditorUserID == actor.ID {
			return allow(ReasonAssignedAuditor), nil
		}
		if record.OwnerUserID == actor.ID {
			return deny(ReasonOwnCase), nil
		}
		takeover, err := e.authz.Capable(ctx, actor.Role, authorization.ObjectCaseAudit, authorization.ActionTakeover)
		if err != nil {
			return domain.Decision{}, err
		}
		if takeover {
			return allow(ReasonPrivilegedTakeover), nil
		}
		return deny(ReasonHeldByOther), nil
	}

	// PENDING or COMPLETED (reopen). No self-audit: the owner is never the auditor.
	if record.OwnerUserID == actor.ID {
		return deny(ReasonOwnCase), nil
	}
	if !limits.Allows(actor.Role, record.CoverageAmount) {
		return deny(ReasonCoverageExceeded), nil
	}
	return allow(ReasonEligible), nil
}

// CanAct is the boolean projection of Evaluate. Policy errors deny.
func (e *Evaluator) CanAct(ctx context.Context, actor Actor, record domain.CaseAuditRecord, limits reviewerdomain.RoleLimits) bool {
	decision, err := e.Evaluate(ctx, actor, record, limits)
	return err == nil && decision.Allowed
}

func allow(reason string) domain.Decision {
	return domain.Decision{Allowed: true, Reason: reason}
}

func deny(reason string) domain.Decision {
	return domain.Decision{Allowed: false, Reason: reason}
}
