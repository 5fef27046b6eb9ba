package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/corey/shapegrep/internal/ports"
)

const meterName = "github.com/corey/shapegrep"

// Metrics records search outcomes as OpenTelemetry instruments. Without an
// SDK installed the global meter is a no-op.
type Metrics struct {
	searches  metric.Int64Counter
	files     metric.Int64Counter
	matches   metric.Int64Counter
	errors    metric.Int64Counter
	cacheHits metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewMetrics creates the instruments on meter (the global meter when nil).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	m := &Metrics{}
	var err error

	if m.searches, err = meter.Int64Counter("shapegrep_searches_total",
		metric.WithDescription("Total number of searches run")); err != nil {
		return nil, fmt.Errorf("failed to create searches counter: %w", err)
	}
	if m.files, err = meter.Int64Counter("shapegrep_files_scanned_total",
		metric.WithDescription("Total number of files scanned")); err != nil {
		return nil, fmt.Errorf("failed to create files counter: %w", err)
	}
	if m.matches, err = meter.Int64Counter("shapegrep_matches_total",
		metric.WithDescription("Total number of matches reported")); err != nil {
		return nil, fmt.Errorf("failed to create matches counter: %w", err)
	}
	if m.errors, err = meter.Int64Counter("shapegrep_file_errors_total",
		metric.WithDescription("Total number of per-file search errors")); err != nil {
		return nil, fmt.Errorf("failed to create errors counter: %w", err)
	}
	if m.cacheHits, err = meter.Int64Counter("shapegrep_cache_hits_total",
		metric.WithDescription("Total number of searches answered from the report cache")); err != nil {
		return nil, fmt.Errorf("failed to create cache hits counter: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("shapegrep_search_duration_seconds",
		metric.WithDescription("Duration of searches"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	return m, nil
}

// Record adds one finished search.
func (m *Metrics) Record(ctx context.Context, report *ports.SearchReport) {
	if m == nil || report == nil {
		return
	}
	mode := metric.WithAttributes(attribute.String("mode", string(report.Mode)))
	m.searches.Add(ctx, 1, mode)
	if report.Cached {
		m.cacheHits.Add(ctx, 1, mode)
		return
	}
	m.files.Add(ctx, int64(report.FilesScanned), mode)
	m.matches.Add(ctx, int64(len(report.Matches)), mode)
	for _, e := range report.Errors {
		m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(e.Kind))))
	}
	m.duration.Record(ctx, report.Elapsed.Seconds(), mode)
}
