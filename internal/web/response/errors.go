// Package response renders JSON bodies and maps engine errors onto HTTP
// status codes.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/conduit-lang/contenttype/internal/content"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ValidationErrorResponse represents validation errors
type ValidationErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Code    string              `json:"code"`
	Fields  map[string][]string `json:"fields"`
}

// RenderJSON writes payload with status
func RenderJSON(w http.ResponseWriter, status int, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err = w.Write(data)
	return err
}

// RenderError renders a standard error response
func RenderError(w http.ResponseWriter, statusCode int, err error) {
	var valErr *content.ValidationError
	if errors.As(err, &valErr) {
		RenderValidationError(w, valErr)
		return
	}

	RenderJSON(w, statusCode, &ErrorResponse{
		Error:   "error",
		Message: err.Error(),
		Code:    errorCodeFromStatus(statusCode),
	})
}

// RenderValidationError renders validation errors
func RenderValidationError(w http.ResponseWriter, valErr *content.ValidationError) {
	fields := make(map[string][]string, len(valErr.Errors))
	for _, fe := range valErr.Errors {
		fields[fe.Field] = append(fields[fe.Field], fe.Message)
	}

	RenderJSON(w, http.StatusUnprocessableEntity, &ValidationErrorResponse{
		Error:   "validation_failed",
		Message: "The request contains invalid data",
		Code:    "validation_error",
		Fields:  fields,
	})
}

// RenderEngineError picks the status for an error returned by the content
// engine. Internal errors are not exposed to the client.
func RenderEngineError(w http.ResponseWriter, err error) {
	switch {
	case content.IsValidationFailed(err):
		RenderError(w, http.StatusUnprocessableEntity, err)
	case content.IsNotFound(err):
		RenderNotFound(w, "")
	case content.IsDuplicate(err):
		RenderError(w, http.StatusConflict, err)
	default:
		RenderError(w, http.StatusInternalServerError, fmt.Errorf("internal server error"))
	}
}

// RenderUnauthorized renders a 401 Unauthorized error
func RenderUnauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Authentication required"
	}
	RenderError(w, http.StatusUnauthorized, errors.New(message))
}

// RenderNotFound renders a 404 Not Found error
func RenderNotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RenderError(w, http.StatusNotFound, errors.New(message))
}

func errorCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return "error"
	}
}
