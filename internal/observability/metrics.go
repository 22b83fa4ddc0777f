package observability

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	domainjobs "github.com/yungbote/mindjourney-backend/internal/domain/jobs"
	"github.com/yungbote/mindjourney-backend/internal/platform/dbctx"
	"github.com/yungbote/mindjourney-backend/internal/platform/envutil"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *Series
	apiLatency  *Histogram

	llmRequests *Series
	llmLatency  *Histogram

	reconcilePasses   *Series
	reconcileDuration *Histogram
	insightsCreated   *Series
	duplicatesSkipped *Series
	geocodeOutcomes   *Series

	sweepRuns     *Series
	sweepEnqueued *Series
	unprocessed   *Series

	jobOutcomes *Series
	queueDepth  *Series
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process-wide registry, or nil when metrics are off.
// Every Observe method is nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	latency := []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}
	return &Metrics{
		apiRequests:       NewCounterVec("mj_api_requests_total", "API requests by method/route/status.", "method", "route", "status"),
		apiLatency:        NewHistogramVec("mj_api_request_duration_seconds", "API request latency.", latency, "method", "route"),
		llmRequests:       NewCounterVec("mj_llm_requests_total", "Model requests by operation/status.", "operation", "status"),
		llmLatency:        NewHistogramVec("mj_llm_request_duration_seconds", "Model request latency.", latency, "operation"),
		reconcilePasses:   NewCounterVec("mj_reconcile_passes_total", "Reconciliation passes by outcome.", "outcome"),
		reconcileDuration: NewHistogramVec("mj_reconcile_duration_seconds", "Reconciliation pass duration.", latency, "outcome"),
		insightsCreated:   NewCounterVec("mj_insights_created_total", "Insights written by category type.", "category_type"),
		duplicatesSkipped: NewCounterVec("mj_insights_duplicates_skipped_total", "Candidates skipped on the per-entry span constraint."),
		geocodeOutcomes:   NewCounterVec("mj_geocode_outcomes_total", "Geocoding outcomes during reconciliation.", "outcome"),
		sweepRuns:         NewCounterVec("mj_sweep_runs_total", "Sweep runs by trigger/outcome.", "trigger", "outcome"),
		sweepEnqueued:     NewCounterVec("mj_sweep_enqueued_total", "Entries scheduled by the sweeper."),
		unprocessed:       NewGaugeVec("mj_entries_unprocessed", "Entries awaiting a successful reconciliation at last sweep."),
		jobOutcomes:       NewCounterVec("mj_jobs_total", "Job executions by type/outcome.", "job_type", "outcome"),
		queueDepth:        NewGaugeVec("mj_job_queue_depth", "Job rows by status.", "status"),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		http.Error(w, "metrics disabled", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency,
		m.llmRequests, m.llmLatency,
		m.reconcilePasses, m.reconcileDuration, m.insightsCreated, m.duplicatesSkipped, m.geocodeOutcomes,
		m.sweepRuns, m.sweepEnqueued, m.unprocessed,
		m.jobOutcomes, m.queueDepth,
	}
	for _, wr := range writers {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(d.Seconds(), method, route)
}

func (m *Metrics) ObserveLLMRequest(operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.Inc(operation, status)
	m.llmLatency.Observe(d.Seconds(), operation)
}

func (m *Metrics) ObserveReconcile(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.reconcilePasses.Inc(outcome)
	m.reconcileDuration.Observe(d.Seconds(), outcome)
}

func (m *Metrics) IncInsightCreated(categoryType string) {
	if m == nil {
		return
	}
	m.insightsCreated.Inc(categoryType)
}

func (m *Metrics) IncDuplicateSkipped() {
	if m == nil {
		return
	}
	m.duplicatesSkipped.Inc()
}

func (m *Metrics) IncGeocode(outcome string) {
	if m == nil {
		return
	}
	m.geocodeOutcomes.Inc(outcome)
}

func (m *Metrics) ObserveSweep(trigger, outcome string, unprocessed, enqueued int) {
	if m == nil {
		return
	}
	m.sweepRuns.Inc(trigger, outcome)
	m.unprocessed.Set(float64(unprocessed))
	m.sweepEnqueued.Add(float64(enqueued))
}

func (m *Metrics) IncJob(jobType, outcome string) {
	if m == nil {
		return
	}
	m.jobOutcomes.Inc(jobType, outcome)
}

// JobStatusCounter is satisfied by the job_run repository.
type JobStatusCounter interface {
	CountByStatus(dbc dbctx.Context) (map[string]int64, error)
}

// StartJobQueueCollector refreshes the queue depth gauge until ctx ends.
func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, src JobStatusCounter) {
	if m == nil || src == nil {
		return
	}
	interval := envutil.Duration("METRICS_SCRAPE_INTERVAL", 15*time.Second)
	statuses := []string{
		domainjobs.StatusQueued, domainjobs.StatusRunning, domainjobs.StatusSucceeded,
		domainjobs.StatusFailed, domainjobs.StatusDead,
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				counts, err := src.CountByStatus(dbctx.Context{Ctx: ctx})
				if err != nil {
					if log != nil {
						log.Warn("metrics: job queue depth query failed", "error", err)
					}
					continue
				}
				for _, s := range statuses {
					m.queueDepth.Set(float64(counts[s]), s)
				}
			}
		}
	}()
}
