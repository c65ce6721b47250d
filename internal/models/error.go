package models

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeFlowNotFound     = "FLOW_NOT_CONFIGURED"
	ErrCodeRunInProgress    = "RUN_IN_PROGRESS"
	ErrCodeUpstreamFailure  = "UPSTREAM_FAILURE"
	ErrCodeResponseTooShort = "RESPONSE_TOO_SHORT"
)
