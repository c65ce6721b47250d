package models

import (
	"time"

	"github.com/google/uuid"
)

// RefinementEventType names a point in the refinement run lifecycle
type RefinementEventType string

const (
	EventTypeRunStarted        RefinementEventType = "refinement.run_started"
	EventTypeIterationRecorded RefinementEventType = "refinement.iteration_recorded"
	EventTypeRunStopped        RefinementEventType = "refinement.run_stopped"
)

// RefinementEvent is published while a refinement run progresses
type RefinementEvent struct {
	Type        RefinementEventType `json:"type"`
	ExecutionID uuid.UUID           `json:"execution_id"`
	WorkflowID  string              `json:"workflow_id"`
	PhaseID     string              `json:"phase_id"`
	Iteration   int                 `json:"iteration,omitempty"`
	ModelName   string              `json:"model_name,omitempty"`
	Confidence  float64             `json:"confidence,omitempty"`
	Text        string              `json:"text,omitempty"`
	StopReason  string              `json:"stop_reason,omitempty"`
	Outcome     string              `json:"outcome,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}
