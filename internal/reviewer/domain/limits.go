package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// RoleLimits holds the highest coverage amount each role may review unsupervised.
// TEAM_LEADER is unlimited and READER may not review at all.
type RoleLimits struct {
	Staff      decimal.Decimal
	Specialist decimal.Decimal
}

func DefaultRoleLimits() RoleLimits {
	return RoleLimits{
		Staff:      decimal.NewFromInt(100_000),
		Specialist: decimal.NewFromInt(500_000),
	}
}

func (l RoleLimits) Validate() error {
	if !l.Staff.IsPositive() {
		return errors.New("staff coverage limit must be positive")
	}
	if !l.Staff.LessThan(l.Specialist) {
		return errors.New("staff coverage limit must be below specialist limit")
	}
	return nil
}

// Ceiling returns the role's limit; bounded is false for unlimited roles.
func (l RoleLimits) Ceiling(role Role) (limit decimal.Decimal, bounded bool) {
	switch role {
	case RoleStaff:
		return l.Staff, true
	case RoleSpecialist:
		return l.Specialist, true
	case RoleTeamLeader:
		return decimal.Zero, false
	default:
		return decimal.Zero, true
	}
}

// Allows reports whether role may review a claim with the given coverage.
// The ceiling itself is inclusive.
func (l RoleLimits) Allows(role Role, amount decimal.Decimal) bool {
	if role == RoleReader || !role.Valid() {
		return false
	}
	limit, bounded := l.Ceiling(role)
	if !bounded {
		return true
	}
	return amount.LessThanOrEqual(limit)
}
