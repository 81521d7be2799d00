package common

import "net/http"

// Error codes returned alongside failed responses so clients can branch
// without parsing messages.
const (
	CodeUnauthorized    = "unauthorized"
	CodeBadRequest      = "invalid_input"
	CodeNotFound        = "not_found"
	CodeConflict        = "invalid_state"
	CodePolicyViolation = "policy_violation"
	CodeInternal        = "internal"
)

type SuccessResponse struct {
	Status  int         `json:"status"`
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type ErrorResponse struct {
	Status  int         `json:"status"`
	Success bool        `json:"success"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}, message string) SuccessResponse {
	return NewSuccessResponseWithStatus(data, message, http.StatusOK)
}

func NewSuccessResponseWithStatus(data interface{}, message string, status int) SuccessResponse {
	return SuccessResponse{Status: status, Success: true, Message: message, Data: data}
}

// NewErrorResponse builds a failed envelope. The code defaults from the
// HTTP status when empty.
func NewErrorResponse(code, message string, data interface{}, status int) ErrorResponse {
	if code == "" {
		code = codeForStatus(status)
	}
	return ErrorResponse{Status: status, Code: code, Message: message, Data: data}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusUnprocessableEntity:
		return CodePolicyViolation
	default:
		return CodeInternal
	}
}
