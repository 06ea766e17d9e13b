package nodetool

import "time"

// Envelope is the response shape handed to MCP and HTTP clients
type Envelope struct {
	Status        string  `json:"status"`
	Data          *string `json:"data"`
	Error         *string `json:"error"`
	ExecutionTime float64 `json:"execution_time"`
	Timestamp     string  `json:"timestamp"`
	TargetHost    *string `json:"target_host"`
	ParsedData    any     `json:"parsed_data,omitempty"`
	RequestID     string  `json:"request_id,omitempty"`
}

// Envelope converts the result into its wire shape
func (r Result) Envelope() Envelope {
	env := Envelope{
		Status:        "error",
		ExecutionTime: r.ElapsedSeconds,
		Timestamp:     r.StartedAt.Format(time.RFC3339Nano),
	}
	if r.Success {
		env.Status = "success"
		stdout := r.Stdout
		env.Data = &stdout
	} else {
		stderr := r.Stderr
		env.Error = &stderr
	}
	if r.TargetHost != "" {
		host := r.TargetHost
		env.TargetHost = &host
	}
	return env
}

// Error codes used in ErrorResponse
const (
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeInvalidTool      = "INVALID_TOOL"
	CodeInvalidArguments = "INVALID_ARGUMENTS"
	CodeExecutionError   = "EXECUTION_ERROR"
)

// ErrorDetail is the error object inside ErrorResponse
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// ErrorResponse is returned when a call is refused before dispatch
type ErrorResponse struct {
	Status    string      `json:"status"`
	Error     ErrorDetail `json:"error"`
	Timestamp string      `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// NewErrorResponse builds an ErrorResponse stamped with the current time
func NewErrorResponse(code, message string, details map[string]any) ErrorResponse {
	return ErrorResponse{
		Status:    "error",
		Error:     ErrorDetail{Code: code, Message: message, Details: details},
		Timestamp: time.Now().Format(time.RFC3339Nano),
	}
}
