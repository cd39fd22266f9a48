package errors

const (
	HttpInternalError       = "internal_error"
	HttpInvalidJsonError    = "invalid_json"
	HttpBadRequestError     = "bad_request"
	HttpNotFoundError       = "not_found"
	HttpPartialFailureError = "partial_failure"
	HttpTimeoutError        = "timeout"
)

// ErrorResponse is the error response body for ingestion and query transport errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
