package selection

const (
	// TargetTotal is the fixed number of audited cases per user batch and quarter.
	TargetTotal = 8
	// CurrentQuarterBase is the current-quarter share before carry-over is deducted.
	CurrentQuarterBase = 6
	// PreviousQuarterCap bounds the random previous-quarter draw.
	PreviousQuarterCap = 2
)

type Quota struct {
	Total    int `json:"total"`
	Current  int `json:"current"`
	Previous int `json:"previous"`
}

// ComputeQuota splits the remaining batch. Carry-over drains the current-quarter
// share first; the previous-quarter share only covers what is left above it.
func ComputeQuota(preLoadedCount int) Quota {
	total := max(0, TargetTotal-preLoadedCount)
	current := max(0, CurrentQuarterBase-preLoadedCount)
	previous := 0
	if total > current {
		previous = min(PreviousQuarterCap, total-current)
	}
	return Quota{Total: total, Current: current, Previous: previous}
}
