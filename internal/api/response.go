package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dpup/routesafe/server/internal/services"
	"github.com/dpup/routesafe/server/internal/store"
)

// maxRequestBodySize caps request bodies at 4 MB, enough for long routes
const maxRequestBodySize = 4 << 20

// Stable error codes returned in the error envelope
const (
	CodeInvalidJSON    = "invalid_json"
	CodeInvalidRequest = "invalid_request"
	CodeConflict       = "conflict"
	CodeInternal       = "internal_error"
)

// ErrorResponse is the envelope for every error reply
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestError is a client error raised by the HTTP layer itself
type requestError struct {
	code    string
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(message string) error {
	return &requestError{code: CodeInvalidRequest, message: message}
}

// writeJSON marshals data and writes it with the given status
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to marshal response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"internal_error","message":"failed to marshal response"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError maps err onto a status and error code. Internal failures are
// logged and never exposed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	var valErrs validator.ValidationErrors

	switch {
	case errors.As(err, &reqErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{Code: reqErr.code, Message: reqErr.message}})
	case errors.As(err, &valErrs):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{Code: CodeInvalidRequest, Message: describeValidation(valErrs)}})
	case services.IsInvalidInput(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{Code: CodeInvalidRequest, Message: err.Error()}})
	case errors.Is(err, store.ErrDuplicateID):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: ErrorDetail{Code: CodeConflict, Message: err.Error()}})
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{Code: CodeInternal, Message: "an unexpected error occurred"}})
	}
}

func describeValidation(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		switch fe.Tag() {
		case "required", "required_if", "required_without_all":
			msgs = append(msgs, field+" is required")
		case "min", "gte", "gt":
			msgs = append(msgs, field+" must be at least "+fe.Param())
		case "max", "lte", "lt":
			msgs = append(msgs, field+" must be at most "+fe.Param())
		case "oneof":
			msgs = append(msgs, field+" must be one of: "+fe.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}
	if dec.More() {
		return &requestError{code: CodeInvalidJSON, message: "request body must contain a single JSON object"}
	}
	return nil
}

func mapDecodeError(err error) error {
	var maxBytesErr *http.MaxBytesError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.As(err, &maxBytesErr):
		return &requestError{code: CodeInvalidJSON, message: "request body is too large"}
	case errors.As(err, &syntaxErr):
		return &requestError{code: CodeInvalidJSON, message: "malformed JSON in request body"}
	case errors.As(err, &typeErr):
		return &requestError{code: CodeInvalidJSON, message: "invalid value for field " + typeErr.Field}
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		return &requestError{code: CodeInvalidJSON, message: "unknown field in request body: " + strings.TrimPrefix(err.Error(), "json: unknown field ")}
	case errors.Is(err, io.EOF):
		return &requestError{code: CodeInvalidJSON, message: "request body must not be empty"}
	default:
		return &requestError{code: CodeInvalidJSON, message: "invalid request body: " + err.Error()}
	}
}
