package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records per-stage outcomes of receipt processing.
type PipelineMetrics struct {
	stageDuration *prometheus.HistogramVec
	stageSuccess  *prometheus.CounterVec
	stageFailure  *prometheus.CounterVec
	ocrAttempts   *prometheus.CounterVec
	paidOCRCalls  prometheus.Counter
	retries       prometheus.Counter
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "receipt_stage_duration_seconds",
		Help:    "Duration of receipt pipeline stages in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	stageSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receipt_stage_success",
		Help: "Successful receipt pipeline stage executions.",
	}, []string{"stage"})
	stageFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receipt_stage_failure",
		Help: "Failed receipt pipeline stage executions.",
	}, []string{"stage"})
	ocrAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receipt_ocr_backend_attempts",
		Help: "OCR extraction attempts per backend.",
	}, []string{"backend", "outcome"})
	paidOCRCalls := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "receipt_paid_ocr_calls",
		Help: "Paid OCR backend invocations, successful or not.",
	})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "receipt_pipeline_retries",
		Help: "Receipt processing retries scheduled after recoverable failures.",
	})
	reg.MustRegister(stageDuration, stageSuccess, stageFailure, ocrAttempts, paidOCRCalls, retries)
	return &PipelineMetrics{
		stageDuration: stageDuration,
		stageSuccess:  stageSuccess,
		stageFailure:  stageFailure,
		ocrAttempts:   ocrAttempts,
		paidOCRCalls:  paidOCRCalls,
		retries:       retries,
	}
}

// ObserveStageDuration records the duration for the named stage.
func (p *PipelineMetrics) ObserveStageDuration(stage string, duration time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(normalizeLabel(stage)).Observe(duration.Seconds())
}

// IncStageSuccess increments the success counter for the named stage.
func (p *PipelineMetrics) IncStageSuccess(stage string) {
	if p == nil || p.stageSuccess == nil {
		return
	}
	p.stageSuccess.WithLabelValues(normalizeLabel(stage)).Inc()
}

// IncStageFailure increments the failure counter for the named stage.
func (p *PipelineMetrics) IncStageFailure(stage string) {
	if p == nil || p.stageFailure == nil {
		return
	}
	p.stageFailure.WithLabelValues(normalizeLabel(stage)).Inc()
}

// IncOCRAttempt records one OCR backend invocation with its outcome.
func (p *PipelineMetrics) IncOCRAttempt(backend, outcome string) {
	if p == nil || p.ocrAttempts == nil {
		return
	}
	p.ocrAttempts.WithLabelValues(normalizeLabel(backend), normalizeLabel(outcome)).Inc()
}

// IncPaidOCRCall records a paid OCR invocation. The counter moves whether the
// call succeeded or not, matching how the budget is spent.
func (p *PipelineMetrics) IncPaidOCRCall() {
	if p == nil || p.paidOCRCalls == nil {
		return
	}
	p.paidOCRCalls.Inc()
}

// IncRetry records a scheduled retry.
func (p *PipelineMetrics) IncRetry() {
	if p == nil || p.retries == nil {
		return
	}
	p.retries.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
