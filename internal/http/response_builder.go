// Package http exposes the ledger, statistics and directory services as a
// JSON API.
//
// This file builds the response envelope shared by every endpoint and maps
// domain errors to status codes.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"budgetbook/internal/core"
	"budgetbook/internal/log"
)

// Error codes carried in APIError.Code.
const (
	CodeNotFound            = "NOT_FOUND"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeInvalidArgument     = "INVALID_ARGUMENT"
	CodeCategoryInUse       = "CATEGORY_IN_USE"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeUnavailable         = "UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSONResponseBuilder provides a fluent API for building envelope responses.
type JSONResponseBuilder struct {
	statusCode int
	resp       APIResponse
	headers    map[string]string
}

// NewJSONResponse creates a successful response builder with status 200.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		resp:       APIResponse{Success: true},
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Data(data any) *JSONResponseBuilder {
	b.resp.Data = data
	return b
}

func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	b.resp.Message = msg
	return b
}

// Fail turns the response into an error envelope.
func (b *JSONResponseBuilder) Fail(code, message string) *JSONResponseBuilder {
	b.resp.Success = false
	b.resp.Error = &APIError{Code: code, Message: message}
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	b.resp.Timestamp = time.Now().UTC()
	body, err := json.Marshal(b.resp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"INTERNAL_ERROR","message":"response encoding failed"}}`))
		return
	}
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
}

// ErrorResponse creates an error envelope with the given status.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Fail(code, message)
}

// classifyError maps a service error to status, code and client message.
// Ownership failures are reported exactly like missing records.
func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrOwnershipViolation):
		return http.StatusNotFound, CodeNotFound, "resource not found"
	case errors.Is(err, core.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, CodeInsufficientBalance, "insufficient balance"
	case errors.Is(err, core.ErrCategoryInUse):
		return http.StatusConflict, CodeCategoryInUse, "category is still used by transactions"
	case core.IsInvalidInput(err):
		return http.StatusBadRequest, CodeInvalidArgument, err.Error()
	default:
		return http.StatusInternalServerError, CodeInternal, "internal server error"
	}
}

// writeError logs unexpected failures and writes the mapped envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classifyError(err)
	if status >= http.StatusInternalServerError {
		ctx := r.Context()
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Request failed", err,
			log.ComponentHTTP, r.Method+" "+r.URL.Path,
			log.NewFields().WithUser(userFromContext(ctx)))
	}
	ErrorResponse(status, code, msg).Write(w)
}
