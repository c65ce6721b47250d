package models

// RefineRequest is the body of a refinement request
type RefineRequest struct {
	Response      string `json:"response" binding:"required"`
	MaxIterations *int   `json:"max_iterations,omitempty"`
}

// RefineResponse reports how a refinement request ended
type RefineResponse struct {
	Outcome         string `json:"outcome"`
	RefinedResponse string `json:"refined_response,omitempty"`
	ExecutionID     string `json:"execution_id,omitempty"`
	Iterations      int    `json:"iterations"`
	StopReason      string `json:"stop_reason,omitempty"`
	Retryable       bool   `json:"retryable"`
	Error           string `json:"error,omitempty"`
}

// ExecutionDetail is an execution record with its audit trail
type ExecutionDetail struct {
	Execution WorkflowExecution  `json:"execution"`
	Responses []LoopbackResponse `json:"responses"`
}
