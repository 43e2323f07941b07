package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/domain"
	"github.com/smallbiznis/claimaudit/internal/quarter"
	"github.com/smallbiznis/claimaudit/pkg/db"
)

const (
	TriggerPlan   = "plan"
	TriggerBuild  = "build"
	TriggerImport = "import"
)

// Action outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeDenied     = "denied"
	OutcomeNotFound   = "not_found"
	OutcomeIncomplete = "incomplete"
	OutcomeConflict   = "conflict"
	OutcomeInvalid    = "invalid"
	OutcomeExhausted  = "exhausted"
	OutcomeCancelled  = "cancelled"
	OutcomeLocked     = "locked"
	OutcomeDB         = "db"
	OutcomeUnknown    = "unknown"
)

// BatchMetrics tracks quarterly batch planning on the prometheus registry.
type BatchMetrics struct {
	runs      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	errors    *prometheus.CounterVec
	records   *prometheus.CounterVec
	fillers   *prometheus.CounterVec
	lockWait  prometheus.Observer
	originCnt map[domain.Origin]prometheus.Counter
}

var (
	batchMetricsOnce sync.Once
	batchMetrics     *BatchMetrics
)

// Batch returns the process-wide batch metrics.
func Batch() *BatchMetrics {
	return BatchWithConfig(Config{})
}

// BatchWithConfig returns the process-wide batch metrics using config labels.
func BatchWithConfig(cfg Config) *BatchMetrics {
	batchMetricsOnce.Do(func() {
		batchMetrics = NewBatchMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return batchMetrics
}

// NewBatchMetrics registers a fresh set of collectors on registerer.
func NewBatchMetrics(registerer prometheus.Registerer, cfg Config) *BatchMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName(cfg.ServiceName),
		"env":     environment,
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "claimaudit_batch_runs_total",
		Help:        "Quarterly batch planning runs by trigger.",
		ConstLabels: constLabels,
	}, []string{"trigger"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "claimaudit_batch_duration_seconds",
		Help:        "Quarterly batch planning latency including persistence.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	}, []string{"trigger"})
	batchErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "claimaudit_batch_errors_total",
		Help:        "Batch planning failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"trigger", "reason"})
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "claimaudit_batch_records_total",
		Help:        "Case audit records created by origin.",
		ConstLabels: constLabels,
	}, []string{"origin"})
	fillers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "claimaudit_batch_fillers_total",
		Help:        "Synthesized filler cases by origin. A steady rate means the feed is starving.",
		ConstLabels: constLabels,
	}, []string{"origin"})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "claimaudit_batch_lock_wait_seconds",
		Help:        "Time spent acquiring the per-quarter planning lock.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(runs, duration, batchErrors, records, fillers, lockWait)

	originCnt := map[domain.Origin]prometheus.Counter{}
	for _, origin := range []domain.Origin{
		domain.OriginUserQuarterly,
		domain.OriginPreviousQuarterRandom,
		domain.OriginPreLoaded,
	} {
		originCnt[origin] = records.WithLabelValues(string(origin))
	}

	return &BatchMetrics{
		runs:      runs,
		duration:  duration,
		errors:    batchErrors,
		records:   records,
		fillers:   fillers,
		lockWait:  lockWait,
		originCnt: originCnt,
	}
}

// ObserveRun records one planning run and its failure reason, if any.
func (m *BatchMetrics) ObserveRun(trigger string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(trigger).Inc()
	m.duration.WithLabelValues(trigger).Observe(elapsed.Seconds())
	if err != nil {
		m.errors.WithLabelValues(trigger, ClassifyActionOutcome(err)).Inc()
	}
}

// AddRecords counts persisted records by origin.
func (m *BatchMetrics) AddRecords(records []domain.CaseAuditRecord) {
	if m == nil {
		return
	}
	for _, r := range records {
		if counter, ok := m.originCnt[r.Origin]; ok {
			counter.Inc()
			continue
		}
		m.records.WithLabelValues(string(r.Origin)).Inc()
	}
}

func (m *BatchMetrics) AddFillers(origin domain.Origin, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.fillers.WithLabelValues(string(origin)).Add(float64(count))
}

func (m *BatchMetrics) ObserveLockWait(elapsed time.Duration) {
	if m == nil {
		return
	}
	if elapsed < 0 {
		elapsed = 0
	}
	m.lockWait.Observe(elapsed.Seconds())
}

// ClassifyActionOutcome maps lifecycle and batch errors to low-cardinality outcomes.
func ClassifyActionOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return OutcomeCancelled
	case errors.Is(err, domain.ErrPermissionDenied) || errors.Is(err, domain.ErrUnknownUser):
		return OutcomeDenied
	case errors.Is(err, domain.ErrCaseNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrIncompleteReview):
		return OutcomeIncomplete
	case errors.Is(err, domain.ErrConcurrentModification) || db.IsSerializationFailure(err):
		return OutcomeConflict
	case errors.Is(err, domain.ErrSelectionExhausted):
		return OutcomeExhausted
	case errors.Is(err, domain.ErrBatchInProgress):
		return OutcomeLocked
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInvalidActor),
		errors.Is(err, domain.ErrInvalidActionKind),
		errors.Is(err, domain.ErrInvalidReview),
		errors.Is(err, domain.ErrInvalidRecord),
		errors.Is(err, domain.ErrInvalidPreloaded),
		errors.Is(err, domain.ErrDuplicateCase),
		errors.Is(err, quarter.ErrInvalidQuarterFormat):
		return OutcomeInvalid
	case db.IsDBError(err):
		return OutcomeDB
	default:
		return OutcomeUnknown
	}
}
