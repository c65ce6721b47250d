package models

import (
	"time"

	"github.com/google/uuid"
)

// PromptCategoryRefinement is the prompt template category used by the refinement loop
const PromptCategoryRefinement = "refinement"

// ExecutionStatus represents the lifecycle state of a workflow execution
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
)

// FlowContext identifies which refinement configuration applies to a workflow phase
type FlowContext struct {
	WorkflowID string `json:"workflow_id" db:"workflow_id"`
	UseCaseID  string `json:"use_case_id" db:"use_case_id"`
	PhaseID    string `json:"phase_id" db:"phase_id"`
	PhaseName  string `json:"phase_name" db:"phase_name"`
	AIModelID  string `json:"ai_model_id" db:"ai_model_id"`
}

// RefinementAction is the configured step for one iteration of a phase
type RefinementAction struct {
	ActionName     string `json:"action_name" db:"action_name"`
	ModelID        string `json:"model_id" db:"ai_model_id"`
	ModelName      string `json:"model_name" db:"model_name"`
	IterationOrder int    `json:"iteration_order" db:"iteration_order"`
	Priority       int    `json:"priority" db:"priority"`
}

// WorkflowExecution tracks one full refinement run
type WorkflowExecution struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	WorkflowID  string          `json:"workflow_id" db:"workflow_id"`
	AIModelID   string          `json:"ai_model_id" db:"ai_model_id"`
	Status      ExecutionStatus `json:"status" db:"status"`
	StartTime   time.Time       `json:"start_time" db:"start_time"`
	EndTime     *time.Time      `json:"end_time,omitempty" db:"end_time"`
	FinalOutput *string         `json:"final_output,omitempty" db:"final_output"`
}

// LoopbackResponse is the append-only audit record written for every accepted iteration
type LoopbackResponse struct {
	ID              int64     `json:"id" db:"id"`
	ExecutionID     uuid.UUID `json:"execution_id" db:"execution_id"`
	ModelName       string    `json:"model_name" db:"model_name"`
	RefinedResponse string    `json:"refined_response" db:"refined_response"`
	Iteration       int       `json:"iteration" db:"iteration"`
	ConfidenceScore float64   `json:"confidence_score" db:"confidence_score"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// AIModel describes a model that refinement actions can reference
type AIModel struct {
	ID       string `json:"id" yaml:"id" db:"id"`
	Name     string `json:"name" yaml:"name" db:"name"`
	Provider string `json:"provider" yaml:"provider" db:"provider"`
}
