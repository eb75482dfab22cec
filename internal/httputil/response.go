// Package httputil holds JSON request and response helpers shared by handlers
// and middleware.
package httputil

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/R3E-Network/opxpress/internal/errors"
	"github.com/R3E-Network/opxpress/internal/logging"
)

// maxBodyBytes bounds request bodies accepted by DecodeJSON.
const maxBodyBytes = 1 << 20

// ErrorResponse is the failure envelope returned by every endpoint.
type ErrorResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	TraceID string                 `json:"trace_id,omitempty"`
}

// WriteJSON writes data as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteErrorResponse writes the failure envelope.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, code errors.Code, message string, details map[string]interface{}) {
	resp := ErrorResponse{
		Success: false,
		Message: message,
		Code:    string(code),
		Details: details,
	}
	if r != nil {
		resp.TraceID = logging.GetTraceID(r.Context())
	}
	WriteJSON(w, status, resp)
}

// WriteError maps err to its envelope. Anything that is not a ServiceError is
// reported as an internal error without leaking its text.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	if svcErr := errors.GetServiceError(err); svcErr != nil {
		WriteErrorResponse(w, r, svcErr.HTTPStatus, svcErr.Code, svcErr.Message, svcErr.Details)
		return
	}
	InternalError(w, r, "Internal Server Error")
}

// BadRequest writes a 400 validation failure.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteErrorResponse(w, r, http.StatusBadRequest, errors.CodeValidation, message, nil)
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	WriteErrorResponse(w, r, http.StatusNotFound, errors.CodeNotFound, message, nil)
}

// Unauthorized writes a 401.
func Unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	WriteErrorResponse(w, r, http.StatusUnauthorized, errors.CodeUnauthorized, message, nil)
}

// InternalError writes a 500.
func InternalError(w http.ResponseWriter, r *http.Request, message string) {
	WriteErrorResponse(w, r, http.StatusInternalServerError, errors.CodeInternal, message, nil)
}

// DecodeJSON reads a single JSON object from the request body into v.
func DecodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.Validation("Request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if stderrors.Is(err, io.EOF) {
			return errors.Validation("Request body is required")
		}
		return errors.Validation(fmt.Sprintf("Invalid request body: %v", err))
	}
	return nil
}
