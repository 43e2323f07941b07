package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/claimaudit/internal/quarter"
)

type Origin string

const (
	OriginUserQuarterly         Origin = "USER_QUARTERLY"
	OriginPreviousQuarterRandom Origin = "PREVIOUS_QUARTER_RANDOM"
	OriginPreLoaded             Origin = "PRE_LOADED"
)

func (o Origin) Valid() bool {
	switch o {
	case OriginUserQuarterly, OriginPreviousQuarterRandom, OriginPreLoaded:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// ParseStatus accepts any casing.
func ParseStatus(raw string) (Status, bool) {
	status := Status(strings.ToUpper(strings.TrimSpace(raw)))
	return status, status.Valid()
}

// CaseAuditRecord is one claim case under (or pending) review for one quarter.
type CaseAuditRecord struct {
	ID                    string          `gorm:"primaryKey;type:text" json:"id"`
	OwnerUserID           string          `gorm:"type:text;not null;index" json:"owner_user_id"`
	AuditorUserID         string          `gorm:"type:text;not null;default:''" json:"auditor_user_id,omitempty"`
	// PreviousAuditorUserID is the reviewer the record was last taken from.
	PreviousAuditorUserID string          `gorm:"type:text;not null;default:''" json:"previous_auditor_user_id,omitempty"`
	CoverageAmount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"coverage_amount"`
	ClaimsStatus          string          `gorm:"type:text;not null" json:"claims_status"`
	Quarter               quarter.Period  `gorm:"type:text;not null;index" json:"quarter"`
	Origin                Origin          `gorm:"type:text;not null" json:"origin"`
	Status                Status          `gorm:"type:text;not null;index" json:"status"`
	Rating                string          `gorm:"type:text;not null;default:''" json:"rating,omitempty"`
	Comment               string          `gorm:"type:text;not null;default:''" json:"comment,omitempty"`
	SpecialFindings       string          `gorm:"type:text;not null;default:''" json:"special_findings,omitempty"`
	DetailedFindings      string          `gorm:"type:text;not null;default:''" json:"detailed_findings,omitempty"`
	CompletionDate        *time.Time      `json:"completion_date,omitempty"`
	NotificationDate      time.Time       `gorm:"not null" json:"notification_date"`
	Version               int64           `gorm:"not null" json:"version"`
	CreatedAt             time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"not null" json:"updated_at"`
}

func (CaseAuditRecord) TableName() string {
	return "case_audit_records"
}

// Validate checks the structural invariants every stored record must hold.
func (r CaseAuditRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" || strings.TrimSpace(r.OwnerUserID) == "" {
		return ErrInvalidRecord
	}
	if r.CoverageAmount.IsNegative() {
		return ErrInvalidRecord
	}
	if !r.Quarter.Valid() || !r.Origin.Valid() || !r.Status.Valid() {
		return ErrInvalidRecord
	}

	assigned := r.Status == StatusInProgress || r.Status == StatusCompleted
	if assigned != (r.AuditorUserID != "") {
		return ErrInvalidRecord
	}
	if (r.Status == StatusCompleted) != (r.CompletionDate != nil) {
		return ErrInvalidRecord
	}
	if r.AuditorUserID != "" && r.AuditorUserID == r.OwnerUserID {
		return ErrInvalidRecord
	}
	return nil
}

// QuarterlyUserStatus records whether a user's quarterly review obligation is met.
type QuarterlyUserStatus struct {
	UserID          string         `gorm:"primaryKey;type:text" json:"user_id"`
	QuarterKey      quarter.Period `gorm:"primaryKey;type:text" json:"quarter"`
	Completed       bool           `gorm:"not null" json:"completed"`
	LastCompletedAt *time.Time     `json:"last_completed_at,omitempty"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
}

func (QuarterlyUserStatus) TableName() string {
	return "case_audit_quarterly_status"
}

// CandidateCase is one entry of the external case feed.
type CandidateCase struct {
	CaseID           string          `gorm:"column:case_id;primaryKey;type:text" json:"case_id"`
	OwnerUserID      string          `gorm:"type:text;not null" json:"owner_user_id"`
	CoverageAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"coverage_amount"`
	ClaimsStatus     string          `gorm:"type:text;not null" json:"claims_status"`
	NotificationDate time.Time       `gorm:"not null;index" json:"notification_date"`
	CreatedAt        time.Time       `gorm:"not null" json:"created_at"`
}

func (CandidateCase) TableName() string {
	return "candidate_cases"
}

func (c CandidateCase) Validate() error {
	if strings.TrimSpace(c.CaseID) == "" || strings.TrimSpace(c.OwnerUserID) == "" {
		return ErrInvalidCandidate
	}
	if c.CoverageAmount.IsNegative() || c.NotificationDate.IsZero() {
		return ErrInvalidCandidate
	}
	return nil
}
