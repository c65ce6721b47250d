// Package refinement runs the bounded AI refinement loop over a text response.
package refinement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/metrics"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/orchestration"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/store"
)

const (
	// DefaultMaxIterations is used when Refine is called with a negative limit
	DefaultMaxIterations = 3
	// MinResponseLength is the shortest trimmed response, in characters, worth refining
	MinResponseLength = 10
	// ResponsePlaceholder is replaced by the current response in prompt templates
	ResponsePlaceholder = "{response}"

	DefaultStoreTimeout = 5 * time.Second
	DefaultModelTimeout = 60 * time.Second
)

// Observer receives run lifecycle events. Implementations must not block.
type Observer interface {
	OnRefinementEvent(event models.RefinementEvent)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(event models.RefinementEvent)

// OnRefinementEvent calls f
func (f ObserverFunc) OnRefinementEvent(event models.RefinementEvent) {
	f(event)
}

// Loop drives refinement runs against a config store and a model invoker.
// It is safe for concurrent use.
type Loop struct {
	store         store.ConfigStore
	invoker       orchestration.ModelInvoker
	scorer        Scorer
	observer      Observer
	metrics       *metrics.RefinementMetrics
	logger        *zap.Logger
	tracer        trace.Tracer
	maxIterations int
	storeTimeout  time.Duration
	modelTimeout  time.Duration
	now           func() time.Time
	flights       inflight
}

// Option configures a Loop
type Option func(*Loop)

// WithScorer replaces the default LengthScorer
func WithScorer(s Scorer) Option {
	return func(l *Loop) { l.scorer = s }
}

// WithObserver registers an event observer
func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observer = o }
}

// WithMetrics enables metric recording
func WithMetrics(m *metrics.RefinementMetrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithTracer sets the tracer
func WithTracer(tracer trace.Tracer) Option {
	return func(l *Loop) { l.tracer = tracer }
}

// WithMaxIterations sets the limit used when Refine is called with a negative one
func WithMaxIterations(n int) Option {
	return func(l *Loop) { l.maxIterations = n }
}

// WithStoreTimeout bounds every store call. Zero disables the deadline.
func WithStoreTimeout(d time.Duration) Option {
	return func(l *Loop) { l.storeTimeout = d }
}

// WithModelTimeout bounds every model call. Zero disables the deadline.
func WithModelTimeout(d time.Duration) Option {
	return func(l *Loop) { l.modelTimeout = d }
}

// WithClock sets the time source for audit records and events
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// New creates a refinement loop
func New(configStore store.ConfigStore, invoker orchestration.ModelInvoker, opts ...Option) *Loop {
	l := &Loop{
		store:         configStore,
		invoker:       invoker,
		scorer:        LengthScorer{Divisor: DefaultScoreDivisor},
		logger:        zap.NewNop(),
		tracer:        otel.Tracer("refinement-loop"),
		maxIterations: DefaultMaxIterations,
		storeTimeout:  DefaultStoreTimeout,
		modelTimeout:  DefaultModelTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.maxIterations < 0 {
		l.maxIterations = DefaultMaxIterations
	}
	return l
}

// ValidResponse reports whether response is long enough to refine
func ValidResponse(response string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(response)) >= MinResponseLength
}

// RenderPrompt substitutes response into template
func RenderPrompt(template, response string) string {
	return strings.ReplaceAll(template, ResponsePlaceholder, response)
}

// RefineText runs Refine and returns the refined text, or false when the
// run produced no net improvement for any reason
func (l *Loop) RefineText(ctx context.Context, workflowID, phaseID, response string, maxIterations int) (string, bool) {
	return l.Refine(ctx, workflowID, phaseID, response, maxIterations).Refined()
}

// Refine runs up to maxIterations refinement passes over response for the
// given workflow phase. A negative maxIterations uses the configured default.
// Refine never fails; causes are reported through the returned Outcome.
func (l *Loop) Refine(ctx context.Context, workflowID, phaseID, response string, maxIterations int) Outcome {
	if maxIterations < 0 {
		maxIterations = l.maxIterations
	}

	if !ValidResponse(response) {
		l.logger.Debug("Refinement input rejected",
			zap.String("workflow_id", workflowID),
			zap.String("phase_id", phaseID),
			zap.Int("length", utf8.RuneCountInString(strings.TrimSpace(response))))
		l.metrics.RecordRejected(ctx, workflowID, string(OutcomeInvalidInput))
		return Outcome{Kind: OutcomeInvalidInput}
	}

	key := phaseKey(workflowID, phaseID)
	out, ok := l.flights.do(ctx, key, fingerprint(response, maxIterations), func(runCtx context.Context) Outcome {
		return l.run(runCtx, workflowID, phaseID, response, maxIterations)
	})
	if !ok {
		l.logger.Info("Refinement already running for phase",
			zap.String("workflow_id", workflowID),
			zap.String("phase_id", phaseID))
		l.metrics.RecordRejected(ctx, workflowID, string(OutcomeInProgress))
		return Outcome{Kind: OutcomeInProgress, Err: ErrRunInProgress}
	}
	return out
}

func (l *Loop) run(ctx context.Context, workflowID, phaseID, response string, maxIterations int) Outcome {
	start := l.now()
	ctx, span := l.tracer.Start(ctx, "refinement.run", trace.WithAttributes(
		attribute.String("workflow.id", workflowID),
		attribute.String("phase.id", phaseID),
		attribute.Int("max_iterations", maxIterations),
	))
	defer span.End()

	logger := l.logger.With(zap.String("workflow_id", workflowID), zap.String("phase_id", phaseID))

	abort := func(out Outcome, stage string, err error, started bool) Outcome {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Refinement run aborted", zap.String("stage", stage), zap.Error(err))
		l.metrics.RecordRunFailed(ctx, workflowID, phaseID, stage, started, l.now().Sub(start))

		out.Kind = OutcomeInternalError
		out.Err = err
		if started {
			l.emit(models.RefinementEvent{
				Type:        models.EventTypeRunStopped,
				ExecutionID: out.ExecutionID,
				WorkflowID:  workflowID,
				PhaseID:     phaseID,
				Iteration:   out.Iterations,
				StopReason:  string(out.StopReason),
				Outcome:     string(out.Kind),
			})
		}
		return out
	}

	flow, err := l.getFlowContext(ctx, workflowID, phaseID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Debug("No refinement flow configured")
		l.metrics.RecordRejected(ctx, workflowID, string(OutcomeNoFlowConfigured))
		return Outcome{Kind: OutcomeNoFlowConfigured}
	}
	if err != nil {
		return abort(Outcome{}, "flow_context", fmt.Errorf("failed to get flow context: %w", err), false)
	}

	executionID, err := l.createExecution(ctx, workflowID, flow.AIModelID)
	if err != nil {
		return abort(Outcome{}, "create_execution", fmt.Errorf("failed to create execution: %w", err), false)
	}
	span.SetAttributes(attribute.String("execution.id", executionID.String()))
	logger = logger.With(zap.String("execution_id", executionID.String()))

	l.metrics.RecordRunStarted(ctx, workflowID, phaseID)
	l.emit(models.RefinementEvent{
		Type:        models.EventTypeRunStarted,
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		PhaseID:     phaseID,
	})

	current := response
	iterations := 0
	stop := StopMaxIterations
	for iteration := 1; iteration <= maxIterations; iteration++ {
		if ctx.Err() != nil {
			stop = StopCancelled
			break
		}
		next, reason := l.iterate(ctx, logger, flow, executionID, iteration, current)
		if reason != "" {
			stop = reason
			break
		}
		current = next
		iterations++
	}

	out := Outcome{
		Kind:        OutcomeNoImprovement,
		ExecutionID: executionID,
		Iterations:  iterations,
		StopReason:  stop,
	}

	// The execution must not be left running when the caller has gone away
	completeCtx, cancel := l.storeContext(context.WithoutCancel(ctx))
	err = l.store.CompleteExecution(completeCtx, executionID, current)
	cancel()
	if err != nil {
		return abort(out, "complete_execution", fmt.Errorf("failed to complete execution: %w", err), true)
	}

	if current != response {
		out.Kind = OutcomeRefined
		out.Text = current
	}

	span.SetAttributes(
		attribute.String("outcome", string(out.Kind)),
		attribute.String("stop_reason", string(stop)),
		attribute.Int("iterations", iterations),
	)
	l.emit(models.RefinementEvent{
		Type:        models.EventTypeRunStopped,
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		PhaseID:     phaseID,
		Iteration:   iterations,
		Text:        out.Text,
		StopReason:  string(stop),
		Outcome:     string(out.Kind),
	})
	l.metrics.RecordRunCompleted(ctx, workflowID, phaseID, string(out.Kind), string(stop), l.now().Sub(start))

	logger.Info("Refinement run completed",
		zap.String("outcome", string(out.Kind)),
		zap.String("stop_reason", string(stop)),
		zap.Int("iterations", iterations))
	return out
}

// iterate runs one refinement pass. It returns the adopted text, or the
// reason the loop must stop.
func (l *Loop) iterate(ctx context.Context, logger *zap.Logger, flow *models.FlowContext, executionID uuid.UUID, iteration int, current string) (next string, stop StopReason) {
	ctx, span := l.tracer.Start(ctx, "refinement.iteration", trace.WithAttributes(
		attribute.Int("iteration", iteration),
	))
	defer span.End()

	logger = logger.With(zap.Int("iteration", iteration))
	defer func() {
		if r := recover(); r != nil {
			next, stop = "", l.iterationFailed(ctx, span, logger, fmt.Errorf("refinement iteration panicked: %v", r))
		}
	}()

	action, err := l.getAction(ctx, flow.PhaseID, iteration)
	if errors.Is(err, store.ErrNotFound) {
		logger.Debug("No refinement action for iteration")
		return "", StopNoAction
	}
	if err != nil {
		return "", l.iterationFailed(ctx, span, logger, fmt.Errorf("failed to get refinement action: %w", err))
	}
	span.SetAttributes(
		attribute.String("action.name", action.ActionName),
		attribute.String("model.name", action.ModelName),
	)

	template, err := l.getPrompt(ctx, flow.UseCaseID, action.ModelID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Debug("No refinement prompt for model", zap.String("model_id", action.ModelID))
		return "", StopNoPrompt
	}
	if err != nil {
		return "", l.iterationFailed(ctx, span, logger, fmt.Errorf("failed to get refinement prompt: %w", err))
	}

	completion, err := l.invoke(ctx, RenderPrompt(template, current), action.ModelName)
	if err != nil {
		return "", l.iterationFailed(ctx, span, logger, fmt.Errorf("failed to invoke model %s: %w", action.ModelName, err))
	}

	result := completion.Text()
	if strings.TrimSpace(result) == "" {
		logger.Info("Model returned an empty result", zap.String("model", action.ModelName))
		return "", StopEmptyResult
	}
	if result == current {
		logger.Info("Model returned the response unchanged", zap.String("model", action.ModelName))
		return "", StopUnchanged
	}

	confidence := l.scorer.Score(result)
	record := models.LoopbackResponse{
		ExecutionID:     executionID,
		ModelName:       action.ModelName,
		RefinedResponse: result,
		Iteration:       iteration,
		ConfidenceScore: confidence,
		CreatedAt:       l.now(),
	}
	if err := l.appendResponse(ctx, record); err != nil {
		return "", l.iterationFailed(ctx, span, logger, fmt.Errorf("failed to record loopback response: %w", err))
	}

	span.SetAttributes(attribute.Float64("confidence", confidence))
	l.metrics.RecordIteration(ctx, flow.WorkflowID, action.ModelName, confidence)
	l.emit(models.RefinementEvent{
		Type:        models.EventTypeIterationRecorded,
		ExecutionID: executionID,
		WorkflowID:  flow.WorkflowID,
		PhaseID:     flow.PhaseID,
		Iteration:   iteration,
		ModelName:   action.ModelName,
		Confidence:  confidence,
		Text:        result,
	})
	logger.Debug("Refinement iteration recorded",
		zap.String("model", action.ModelName),
		zap.Float64("confidence", confidence))
	return result, ""
}

func (l *Loop) iterationFailed(ctx context.Context, span trace.Span, logger *zap.Logger, err error) StopReason {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if ctx.Err() != nil {
		logger.Warn("Refinement iteration cancelled", zap.Error(err))
		return StopCancelled
	}
	logger.Error("Refinement iteration failed", zap.Error(err))
	return StopError
}

func (l *Loop) emit(event models.RefinementEvent) {
	if l.observer == nil {
		return
	}
	event.Timestamp = l.now()
	l.observer.OnRefinementEvent(event)
}

func (l *Loop) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.storeTimeout)
}

func (l *Loop) getFlowContext(ctx context.Context, workflowID, phaseID string) (*models.FlowContext, error) {
	ctx, cancel := l.storeContext(ctx)
	defer cancel()
	return l.store.GetFlowContext(ctx, workflowID, phaseID)
}

func (l *Loop) createExecution(ctx context.Context, workflowID, modelID string) (uuid.UUID, error) {
	ctx, cancel := l.storeContext(ctx)
	defer cancel()
	return l.store.CreateExecution(ctx, workflowID, modelID)
}

func (l *Loop) getAction(ctx context.Context, phaseID string, iteration int) (*models.RefinementAction, error) {
	ctx, cancel := l.storeContext(ctx)
	defer cancel()
	return l.store.GetRefinementAction(ctx, phaseID, iteration)
}

func (l *Loop) getPrompt(ctx context.Context, useCaseID, modelID string) (string, error) {
	ctx, cancel := l.storeContext(ctx)
	defer cancel()
	return l.store.GetRefinementPrompt(ctx, useCaseID, modelID, models.PromptCategoryRefinement)
}

func (l *Loop) appendResponse(ctx context.Context, record models.LoopbackResponse) error {
	ctx, cancel := l.storeContext(ctx)
	defer cancel()
	return l.store.AppendLoopbackResponse(ctx, record)
}

func (l *Loop) invoke(ctx context.Context, prompt, modelName string) (models.Completion, error) {
	if l.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.modelTimeout)
		defer cancel()
	}
	return l.invoker.Invoke(ctx, prompt, modelName)
}
