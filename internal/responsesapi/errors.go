package responsesapi

// ErrorDetail is the OpenAI-style error body nested under "error" in every
// non-2xx response, matching the shape clients already expect from the
// upstream's own error envelope so a passthrough status needs no translation.
type ErrorDetail struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param,omitempty"`
	Code    *string `json:"code,omitempty"`
}

// ErrorResponse is the full JSON body written for a failed request. Detail
// duplicates Error.Message at the top level for clients written against the
// upstream's older flat-string error convention.
type ErrorResponse struct {
	Error  ErrorDetail `json:"error"`
	Detail string      `json:"detail"`
}

// NewErrorResponse builds a minimal error envelope with no param/code.
func NewErrorResponse(message, errType string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Message: message, Type: errType}, Detail: message}
}

// ErrorTypeForStatus classifies an HTTP status into the error "type" field
// clients key off of, independent of the internal reason a handler reached
// that status.
func ErrorTypeForStatus(status int) string {
	switch {
	case status == 401 || status == 403:
		return "authentication_error"
	case status == 404:
		return "invalid_request_error"
	case status == 429:
		return "rate_limit_error"
	case status >= 500:
		return "server_error"
	default:
		return "invalid_request_error"
	}
}
