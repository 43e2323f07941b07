package domain

// ReviewPayload carries review output. Nil fields are left untouched on merge.
type ReviewPayload struct {
	Rating           *string `json:"rating,omitempty" validate:"omitempty,max=64"`
	Comment          *string `json:"comment,omitempty" validate:"omitempty,max=4000"`
	SpecialFindings  *string `json:"special_findings,omitempty" validate:"omitempty,max=8000"`
	DetailedFindings *string `json:"detailed_findings,omitempty" validate:"omitempty,max=16000"`
}

// ApplyTo merges the populated fields into record.
func (p *ReviewPayload) ApplyTo(record *CaseAuditRecord) {
	if p == nil || record == nil {
		return
	}
	if p.Rating != nil {
		record.Rating = *p.Rating
	}
	if p.Comment != nil {
		record.Comment = *p.Comment
	}
	if p.SpecialFindings != nil {
		record.SpecialFindings = *p.SpecialFindings
	}
	if p.DetailedFindings != nil {
		record.DetailedFindings = *p.DetailedFindings
	}
}

func (p *ReviewPayload) HasRating() bool {
	return p != nil && p.Rating != nil && *p.Rating != ""
}
