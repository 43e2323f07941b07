package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleStaff      Role = "STAFF"
	RoleSpecialist Role = "SPECIALIST"
	RoleTeamLeader Role = "TEAM_LEADER"
	RoleReader     Role = "READER"
)

// ParseRole accepts any casing and "-" or " " as separators.
func ParseRole(raw string) (Role, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch Role(normalized) {
	case RoleStaff, RoleSpecialist, RoleTeamLeader, RoleReader:
		return Role(normalized), nil
	default:
		return "", ErrInvalidRole
	}
}

// Valid reports whether r is one of the canonical roles. Raw input goes
// through ParseRole first.
func (r Role) Valid() bool {
	switch r {
	case RoleStaff, RoleSpecialist, RoleTeamLeader, RoleReader:
		return true
	default:
		return false
	}
}

// User is a roster entry. Owners and auditors of case audits are users.
type User struct {
	ID          string    `gorm:"primaryKey;type:text"`
	DisplayName string    `gorm:"type:text"`
	Role        Role      `gorm:"type:text;not null"`
	Enabled     bool      `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (User) TableName() string { return "reviewers" }

// Active reports whether the user may take part in audits at all.
func (u User) Active() bool {
	return u.Enabled && u.Role != RoleReader
}
