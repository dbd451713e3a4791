package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lexandro/codesync/project"
)

// ErrorType classifies an API error.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "VALIDATION"
	ErrorTypeForbidden   ErrorType = "FORBIDDEN"
	ErrorTypeNotFound    ErrorType = "NOT_FOUND"
	ErrorTypeTooLarge    ErrorType = "TOO_LARGE"
	ErrorTypeTimeout     ErrorType = "TIMEOUT"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
	ErrorTypeInternal    ErrorType = "INTERNAL"
)

// apiError is the error shape returned to HTTP clients.
type apiError struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *apiError) Error() string {
	return e.Message
}

func validationError(message string) *apiError {
	return &apiError{Type: ErrorTypeValidation, Message: message, Code: http.StatusBadRequest}
}

func internalError(message string) *apiError {
	return &apiError{Type: ErrorTypeInternal, Message: message, Code: http.StatusInternalServerError}
}

// toAPIError maps project errors onto HTTP statuses.
func toAPIError(err error) *apiError {
	var apiErr *apiError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, project.ErrInvalidPath):
		return &apiError{Type: ErrorTypeValidation, Message: err.Error(), Code: http.StatusBadRequest}
	case errors.Is(err, project.ErrTooLarge):
		return &apiError{Type: ErrorTypeTooLarge, Message: "File too large to read", Code: http.StatusBadRequest}
	case errors.Is(err, project.ErrExcluded):
		return &apiError{Type: ErrorTypeForbidden, Message: err.Error(), Code: http.StatusForbidden}
	case errors.Is(err, project.ErrNotFound):
		return &apiError{Type: ErrorTypeNotFound, Message: err.Error(), Code: http.StatusNotFound}
	default:
		return internalError(err.Error())
	}
}

type errorBody struct {
	Error string    `json:"error"`
	Type  ErrorType `json:"type"`
}

func writeError(w http.ResponseWriter, err error) {
	apiErr := toAPIError(err)
	writeJSON(w, apiErr.Code, errorBody{Error: apiErr.Message, Type: apiErr.Type})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
