package tracer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const serviceName = "sugarvoice-backend"

// Providers groups what InitTracingAndMetrics installed globally.
type Providers struct {
	Tracer         *trace.TracerProvider
	Meter          *metric.MeterProvider
	MetricsHandler http.Handler
}

// InitTracingAndMetrics installs the global tracer and meter providers and
// returns a Prometheus scrape handler for the meter.
func InitTracingAndMetrics() (*Providers, error) {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)

	tp := trace.NewTracerProvider(trace.WithResource(res))
	otel.SetTracerProvider(tp)

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	mp := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(mp)

	return &Providers{
		Tracer:         tp,
		Meter:          mp,
		MetricsHandler: promhttp.Handler(),
	}, nil
}

// Shutdown flushes both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	tErr := p.Tracer.Shutdown(ctx)
	mErr := p.Meter.Shutdown(ctx)
	if tErr != nil {
		return tErr
	}
	return mErr
}
