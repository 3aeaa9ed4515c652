package errors

const (
	HttpInternalError    = "internal_error"
	HttpNoRunYet         = "no_run_yet"
	HttpRunFailed        = "run_failed"
	HttpStoreUnreachable = "store_unreachable"
)

// ErrorResponse is the error body of the operational HTTP surface.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
