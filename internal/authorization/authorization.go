package authorization

import (
	"context"
	"errors"

	reviewerdomain "github.com/smallbiznis/claimaudit/internal/reviewer/domain"
)

const (
	ObjectCaseAudit = "case_audit"
)

const (
	// ActionAct covers start, save, complete and reopen on an eligible record.
	ActionAct = "act"
	// ActionTakeover allows acting on a record another reviewer has in progress.
	ActionTakeover = "takeover"
)

type Service interface {
	// Capable reports whether role holds action on object, including inherited grants.
	Capable(ctx context.Context, role reviewerdomain.Role, object string, action string) (bool, error)
}

var (
	ErrInvalidRole   = errors.New("invalid_role")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)
