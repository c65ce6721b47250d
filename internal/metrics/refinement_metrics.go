package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("refinement-engine")

// RefinementMetrics records refinement run counters and distributions.
// A nil *RefinementMetrics is valid and records nothing.
type RefinementMetrics struct {
	runsStartedCounter   metric.Int64Counter
	runsCompletedCounter metric.Int64Counter
	runsFailedCounter    metric.Int64Counter
	runsRejectedCounter  metric.Int64Counter
	iterationsCounter    metric.Int64Counter
	runDurationHistogram metric.Float64Histogram
	confidenceHistogram  metric.Float64Histogram
	runsActiveGauge      metric.Int64UpDownCounter
}

// NewRefinementMetrics creates the refinement instruments on the global meter provider
func NewRefinementMetrics() (*RefinementMetrics, error) {
	runsStartedCounter, err := meter.Int64Counter(
		"refinement.runs.started",
		metric.WithDescription("Refinement runs that created an execution record"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runsCompletedCounter, err := meter.Int64Counter(
		"refinement.runs.completed",
		metric.WithDescription("Refinement runs that completed, by outcome and stop reason"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runsFailedCounter, err := meter.Int64Counter(
		"refinement.runs.failed",
		metric.WithDescription("Refinement runs aborted by a store failure"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runsRejectedCounter, err := meter.Int64Counter(
		"refinement.runs.rejected",
		metric.WithDescription("Refinement requests rejected before any side effect"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	iterationsCounter, err := meter.Int64Counter(
		"refinement.iterations",
		metric.WithDescription("Refinement iterations recorded in the audit trail"),
		metric.WithUnit("{iteration}"),
	)
	if err != nil {
		return nil, err
	}

	runDurationHistogram, err := meter.Float64Histogram(
		"refinement.run.duration",
		metric.WithDescription("Duration of refinement runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	confidenceHistogram, err := meter.Float64Histogram(
		"refinement.iteration.confidence",
		metric.WithDescription("Confidence score of recorded iterations"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.4, 0.6, 0.8, 1.0),
	)
	if err != nil {
		return nil, err
	}

	runsActiveGauge, err := meter.Int64UpDownCounter(
		"refinement.runs.active",
		metric.WithDescription("Refinement runs currently in progress"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	return &RefinementMetrics{
		runsStartedCounter:   runsStartedCounter,
		runsCompletedCounter: runsCompletedCounter,
		runsFailedCounter:    runsFailedCounter,
		runsRejectedCounter:  runsRejectedCounter,
		iterationsCounter:    iterationsCounter,
		runDurationHistogram: runDurationHistogram,
		confidenceHistogram:  confidenceHistogram,
		runsActiveGauge:      runsActiveGauge,
	}, nil
}

// RecordRunStarted records a run that has created its execution record
func (rm *RefinementMetrics) RecordRunStarted(ctx context.Context, workflowID, phaseID string) {
	if rm == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("workflow.id", workflowID),
		attribute.String("phase.id", phaseID),
	)
	rm.runsStartedCounter.Add(ctx, 1, attrs)
	rm.runsActiveGauge.Add(ctx, 1, attrs)
}

// RecordIteration records one adopted refinement result
func (rm *RefinementMetrics) RecordIteration(ctx context.Context, workflowID, modelName string, confidence float64) {
	if rm == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("workflow.id", workflowID),
		attribute.String("model.name", modelName),
	)
	rm.iterationsCounter.Add(ctx, 1, attrs)
	rm.confidenceHistogram.Record(ctx, confidence, attrs)
}

// RecordRunCompleted records a run whose execution record was completed
func (rm *RefinementMetrics) RecordRunCompleted(ctx context.Context, workflowID, phaseID, outcome, stopReason string, duration time.Duration) {
	if rm == nil {
		return
	}
	rm.runsCompletedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("outcome", outcome),
			attribute.String("stop_reason", stopReason),
		),
	)
	rm.runDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("status", "completed"),
		),
	)
	rm.runsActiveGauge.Add(ctx, -1,
		metric.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("phase.id", phaseID),
		),
	)
}

// RecordRunFailed records a run aborted by a store failure. started reports
// whether RecordRunStarted was called for it.
func (rm *RefinementMetrics) RecordRunFailed(ctx context.Context, workflowID, phaseID, errorType string, started bool, duration time.Duration) {
	if rm == nil {
		return
	}
	rm.runsFailedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("error.type", errorType),
		),
	)
	rm.runDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("status", "failed"),
		),
	)
	if started {
		rm.runsActiveGauge.Add(ctx, -1,
			metric.WithAttributes(
				attribute.String("workflow.id", workflowID),
				attribute.String("phase.id", phaseID),
			),
		)
	}
}

// RecordRejected records a request turned away before any side effect
func (rm *RefinementMetrics) RecordRejected(ctx context.Context, workflowID, reason string) {
	if rm == nil {
		return
	}
	rm.runsRejectedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("reason", reason),
		),
	)
}
