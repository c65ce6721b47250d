package refinement

import (
	"errors"

	"github.com/google/uuid"
)

// ErrRunInProgress is carried by an in-progress outcome
var ErrRunInProgress = errors.New("refinement already running for workflow phase")

// OutcomeKind classifies how a refinement request ended
type OutcomeKind string

const (
	OutcomeInvalidInput     OutcomeKind = "invalid_input"
	OutcomeNoFlowConfigured OutcomeKind = "no_flow_configured"
	OutcomeNoImprovement    OutcomeKind = "no_improvement"
	OutcomeRefined          OutcomeKind = "refined"
	OutcomeInternalError    OutcomeKind = "internal_error"
	OutcomeInProgress       OutcomeKind = "in_progress"
)

// StopReason records why the iteration sequence ended
type StopReason string

const (
	StopMaxIterations StopReason = "max_iterations"
	StopNoAction      StopReason = "no_action"
	StopNoPrompt      StopReason = "no_prompt"
	StopEmptyResult   StopReason = "empty_result"
	StopUnchanged     StopReason = "unchanged"
	StopError         StopReason = "error"
	StopCancelled     StopReason = "cancelled"
)

// Outcome is the result of one Refine call.
//
// Text is set only for OutcomeRefined. ExecutionID is the zero UUID when no
// execution record was created. Err carries the cause for
// OutcomeInternalError and OutcomeInProgress.
type Outcome struct {
	Kind        OutcomeKind
	Text        string
	ExecutionID uuid.UUID
	Iterations  int
	StopReason  StopReason
	Err         error
}

// Retryable reports whether repeating the same request may produce a
// different outcome
func (o Outcome) Retryable() bool {
	return o.Kind == OutcomeInternalError || o.Kind == OutcomeInProgress
}

// Refined returns the refined text and true for OutcomeRefined
func (o Outcome) Refined() (string, bool) {
	if o.Kind != OutcomeRefined {
		return "", false
	}
	return o.Text, true
}
