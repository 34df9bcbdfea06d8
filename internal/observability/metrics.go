// Package observability provides OpenTelemetry instrumentation for tracing and metrics.
package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics initializes the OpenTelemetry metrics provider with a Prometheus exporter.
// It returns the HTTP handler for the /metrics endpoint and a shutdown function.
// The shutdown function should be called on application exit for graceful cleanup.
func InitMetrics() (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithReader(exporter),
	)

	otel.SetMeterProvider(provider)

	return promhttp.Handler(), provider.Shutdown, nil
}

// SchedulerMetrics holds the instruments recorded by the job scheduling path.
type SchedulerMetrics struct {
	JobsScheduled otelmetric.Int64Counter
	JobsFinished  otelmetric.Int64Counter
	JobsReaped    otelmetric.Int64Counter
}

// NewSchedulerMetrics registers the scheduler instruments, plus an
// observable gauge for currently live jobs fed by liveJobs.
func NewSchedulerMetrics(liveJobs func(ctx context.Context) (int64, error)) (*SchedulerMetrics, error) {
	meter := otel.Meter("cirelay/scheduler")

	scheduled, err := meter.Int64Counter("cirelay.jobs.scheduled",
		otelmetric.WithDescription("Jobs created through scheduling"))
	if err != nil {
		return nil, err
	}
	finished, err := meter.Int64Counter("cirelay.jobs.finished",
		otelmetric.WithDescription("Jobs that reached a terminal status"))
	if err != nil {
		return nil, err
	}
	reaped, err := meter.Int64Counter("cirelay.jobs.reaped",
		otelmetric.WithDescription("Stale jobs transitioned to killed"))
	if err != nil {
		return nil, err
	}

	if liveJobs != nil {
		gauge, err := meter.Int64ObservableGauge("cirelay.jobs.live",
			otelmetric.WithDescription("Jobs currently in a live status"))
		if err != nil {
			return nil, err
		}
		_, err = meter.RegisterCallback(func(ctx context.Context, o otelmetric.Observer) error {
			n, err := liveJobs(ctx)
			if err != nil {
				return err
			}
			o.ObserveInt64(gauge, n)
			return nil
		}, gauge)
		if err != nil {
			return nil, err
		}
	}

	return &SchedulerMetrics{
		JobsScheduled: scheduled,
		JobsFinished:  finished,
		JobsReaped:    reaped,
	}, nil
}

// RecordScheduled counts one scheduled job. Safe on a nil receiver.
func (m *SchedulerMetrics) RecordScheduled(ctx context.Context) {
	if m == nil {
		return
	}
	m.JobsScheduled.Add(ctx, 1)
}

// RecordFinished counts one job reaching a terminal status, labeled with it.
// Safe on a nil receiver.
func (m *SchedulerMetrics) RecordFinished(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.JobsFinished.Add(ctx, 1, StatusAttr(status))
}

// RecordReaped counts stale jobs moved to killed. Safe on a nil receiver.
func (m *SchedulerMetrics) RecordReaped(ctx context.Context, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.JobsReaped.Add(ctx, n)
}

// StatusAttr labels a metric point with a job status.
func StatusAttr(status string) otelmetric.MeasurementOption {
	return otelmetric.WithAttributes(attribute.String("status", status))
}
