// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dmitrymomot/mailmerge/pkg/dispatch"
	"github.com/dmitrymomot/mailmerge/pkg/ingest"
	"github.com/dmitrymomot/mailmerge/pkg/personalize"
)

const namespace = "mailmerge"

// Label values.
const (
	StatusValid        = "valid"
	StatusInvalid      = "invalid"
	StatusDuplicate    = "duplicate"
	StatusBlank        = "blank"
	StatusRendered     = "rendered"
	StatusSkipped      = "skipped"
	StatusSent         = "sent"
	StatusFailed       = "failed"
	StatusCancelled    = "cancelled"
	StatusNotAttempted = "not_attempted"
)

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	IngestedRows    *prometheus.CounterVec
	RenderedEmails  *prometheus.CounterVec
	DispatchedMails *prometheus.CounterVec
	BatchOutcomes   *prometheus.CounterVec
	SendLatency     *prometheus.HistogramVec
	HTTPDuration    *prometheus.HistogramVec
	Batches         prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IngestedRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_rows_total",
			Help:      "Recipient rows read, by outcome.",
		}, []string{"status"}),
		RenderedEmails: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rendered_emails_total",
			Help:      "Personalized payloads, by outcome.",
		}, []string{"status"}),
		DispatchedMails: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatched_emails_total",
			Help:      "Emails handed to a provider, by provider and outcome.",
		}, []string{"provider", "status"}),
		BatchOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_outcomes_total",
			Help:      "Batch payloads by final dispatch outcome.",
		}, []string{"status"}),
		SendLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Provider send call latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}, []string{"provider"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"method", "route", "status"}),
		Batches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches ingested.",
		}),
	}
}

// Ingested records row counts of one ingest.
func (m *Metrics) Ingested(_ context.Context, res *ingest.Result) {
	m.Batches.Inc()
	m.IngestedRows.WithLabelValues(StatusValid).Add(float64(len(res.Valid)))
	m.IngestedRows.WithLabelValues(StatusInvalid).Add(float64(len(res.Invalid)))
	m.IngestedRows.WithLabelValues(StatusDuplicate).Add(float64(res.Duplicates))
	m.IngestedRows.WithLabelValues(StatusBlank).Add(float64(res.Blank))
}

// Personalized records rendered and skipped payloads.
func (m *Metrics) Personalized(_ context.Context, res *personalize.Result) {
	m.RenderedEmails.WithLabelValues(StatusRendered).Add(float64(len(res.Payloads)))
	m.RenderedEmails.WithLabelValues(StatusSkipped).Add(float64(len(res.Skipped)))
}

// Dispatched records the final outcome of every payload in a batch,
// including those the tracker never handed to a provider.
func (m *Metrics) Dispatched(_ context.Context, out dispatch.Outcome) {
	m.BatchOutcomes.WithLabelValues(StatusSent).Add(float64(len(out.Sent)))
	for _, f := range out.Failures {
		m.BatchOutcomes.WithLabelValues(failureStatus(f.Err)).Inc()
	}
}

func failureStatus(err error) string {
	switch {
	case errors.Is(err, dispatch.ErrNotAttempted):
		return StatusNotAttempted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

// RecordHTTPRequest observes one served request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, d time.Duration) {
	m.HTTPDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// InstrumentSender counts and times every send made through next.
func (m *Metrics) InstrumentSender(provider string, next dispatch.Sender) dispatch.Sender {
	return dispatch.SenderFunc(func(ctx context.Context, email *dispatch.Email) error {
		start := time.Now()
		err := next.Send(ctx, email)
		m.SendLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())

		status := StatusSent
		if err != nil {
			status = failureStatus(err)
		}
		m.DispatchedMails.WithLabelValues(provider, status).Inc()
		return err
	})
}
