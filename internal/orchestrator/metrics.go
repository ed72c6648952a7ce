package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/thebtf/designpartner/internal/orchestrator"

type metrics struct {
	turns        metric.Int64Counter
	softFailures metric.Int64Counter
	retries      metric.Int64Counter
	revisions    metric.Int64Counter
	failures     metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	var (
		m   metrics
		err error
	)
	if m.turns, err = meter.Int64Counter("designpartner.turns",
		metric.WithDescription("Committed conversation turns")); err != nil {
		return nil, err
	}
	if m.softFailures, err = meter.Int64Counter("designpartner.extraction.soft_failures",
		metric.WithDescription("Extractions whose output could not be parsed")); err != nil {
		return nil, err
	}
	if m.retries, err = meter.Int64Counter("designpartner.provider.retries",
		metric.WithDescription("Provider calls retried after a transient error")); err != nil {
		return nil, err
	}
	if m.revisions, err = meter.Int64Counter("designpartner.document.revisions",
		metric.WithDescription("Topic values superseded by a later answer")); err != nil {
		return nil, err
	}
	if m.failures, err = meter.Int64Counter("designpartner.turns.failed",
		metric.WithDescription("Turns that ended in an error, by class")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *metrics) turnFailed(ctx context.Context, class string) {
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("class", class)))
}
