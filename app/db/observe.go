package database

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thebigby10/sugarvoice-backend/app/observability/metrics"
)

// ObserveQuery records duration and, on failure, an error count for one
// statement against table.
func ObserveQuery(ctx context.Context, table, operation string, start time.Time, err error) {
	m := metrics.Get()
	attrs := metric.WithAttributes(
		attribute.String("db.sql.table", table),
		attribute.String("db.operation", operation),
	)
	m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		m.DbQueryErrorsTotal.Add(ctx, 1, attrs)
	}
}
