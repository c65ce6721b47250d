package refinement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/store"
)

// fakeStore is an in-memory ConfigStore with error injection
type fakeStore struct {
	mu sync.Mutex

	flows   map[string]*models.FlowContext
	actions map[string]map[int]*models.RefinementAction
	prompts map[string]string

	executions map[uuid.UUID]*models.WorkflowExecution
	responses  []models.LoopbackResponse

	flowErr     error
	flowPanic   bool
	createErr   error
	completeErr error
	appendErr   func(iteration int) error

	// completeCtxErr is the context error seen by the last CompleteExecution
	completeCtxErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		flows:      make(map[string]*models.FlowContext),
		actions:    make(map[string]map[int]*models.RefinementAction),
		prompts:    make(map[string]string),
		executions: make(map[uuid.UUID]*models.WorkflowExecution),
	}
}

func (s *fakeStore) addFlow(fc models.FlowContext) {
	s.flows[fc.WorkflowID+"/"+fc.PhaseID] = &fc
}

func (s *fakeStore) addAction(phaseID string, iteration int, modelID, modelName string) {
	if s.actions[phaseID] == nil {
		s.actions[phaseID] = make(map[int]*models.RefinementAction)
	}
	s.actions[phaseID][iteration] = &models.RefinementAction{
		ActionName:     fmt.Sprintf("action-%d", iteration),
		ModelID:        modelID,
		ModelName:      modelName,
		IterationOrder: iteration,
	}
}

func (s *fakeStore) addPrompt(useCaseID, modelID, template string) {
	s.prompts[useCaseID+"/"+modelID] = template
}

func (s *fakeStore) GetFlowContext(ctx context.Context, workflowID, phaseID string) (*models.FlowContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flowPanic {
		var lookup map[string]int
		lookup[workflowID]++
	}
	if s.flowErr != nil {
		return nil, s.flowErr
	}
	fc, ok := s.flows[workflowID+"/"+phaseID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *fc
	return &copied, nil
}

func (s *fakeStore) GetRefinementAction(ctx context.Context, phaseID string, iteration int) (*models.RefinementAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	action, ok := s.actions[phaseID][iteration]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *action
	return &copied, nil
}

func (s *fakeStore) GetRefinementPrompt(ctx context.Context, useCaseID, modelID, category string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if category != models.PromptCategoryRefinement {
		return "", store.ErrNotFound
	}
	template, ok := s.prompts[useCaseID+"/"+modelID]
	if !ok {
		return "", store.ErrNotFound
	}
	return template, nil
}

func (s *fakeStore) CreateExecution(ctx context.Context, workflowID, modelID string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return uuid.Nil, s.createErr
	}
	id := uuid.New()
	s.executions[id] = &models.WorkflowExecution{
		ID:         id,
		WorkflowID: workflowID,
		AIModelID:  modelID,
		Status:     models.ExecutionStatusRunning,
		StartTime:  time.Now(),
	}
	return id, nil
}

func (s *fakeStore) CompleteExecution(ctx context.Context, executionID uuid.UUID, finalOutput string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeCtxErr = ctx.Err()
	if s.completeErr != nil {
		return s.completeErr
	}
	exec, ok := s.executions[executionID]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	exec.Status = models.ExecutionStatusCompleted
	exec.EndTime = &now
	exec.FinalOutput = &finalOutput
	return nil
}

func (s *fakeStore) AppendLoopbackResponse(ctx context.Context, resp models.LoopbackResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		if err := s.appendErr(resp.Iteration); err != nil {
			return err
		}
	}
	s.responses = append(s.responses, resp)
	return nil
}

func (s *fakeStore) executionList() []models.WorkflowExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WorkflowExecution
	for _, exec := range s.executions {
		out = append(out, *exec)
	}
	return out
}

func (s *fakeStore) responseList() []models.LoopbackResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LoopbackResponse(nil), s.responses...)
}

// scriptedInvoker answers each call with the next scripted step
type scriptedInvoker struct {
	mu      sync.Mutex
	steps   []step
	prompts []string
	models  []string
}

type step struct {
	parts []string
	err   error
	// block waits for the context to end, or for release when set
	block   bool
	release chan struct{}
	entered chan struct{}
	panics  bool
}

func reply(text string) step {
	return step{parts: []string{text}}
}

func (i *scriptedInvoker) Invoke(ctx context.Context, prompt, modelName string) (models.Completion, error) {
	i.mu.Lock()
	n := len(i.prompts)
	i.prompts = append(i.prompts, prompt)
	i.models = append(i.models, modelName)
	if n >= len(i.steps) {
		i.mu.Unlock()
		return models.Completion{}, fmt.Errorf("unexpected call %d", n+1)
	}
	st := i.steps[n]
	i.mu.Unlock()

	if st.entered != nil {
		close(st.entered)
	}
	if st.panics {
		var parts []string
		_ = parts[len(prompt)]
	}
	if st.block {
		select {
		case <-ctx.Done():
			return models.Completion{}, ctx.Err()
		case <-st.release:
		}
	}
	if st.err != nil {
		return models.Completion{}, st.err
	}
	return models.Completion{Parts: st.parts}, nil
}

func (i *scriptedInvoker) calls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.prompts)
}

// eventRecorder collects observer events
type eventRecorder struct {
	mu     sync.Mutex
	events []models.RefinementEvent
}

func (r *eventRecorder) OnRefinementEvent(event models.RefinementEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) types() []models.RefinementEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RefinementEventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
