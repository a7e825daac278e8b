package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// APIError is the JSON error body used by every endpoint.
type APIError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e APIError) Error() string { return e.Code }

// WithDescription returns a copy of e with a different description.
func (e APIError) WithDescription(desc string) APIError {
	e.Description = desc
	return e
}

var (
	ErrInvalidRequest  = APIError{Code: "invalid_request", Description: "The request is malformed."}
	ErrInvalidToken    = APIError{Code: "invalid_token", Description: "The access token is invalid."}
	ErrUnauthorized    = APIError{Code: "unauthorized", Description: "Authentication is required."}
	ErrNotFound        = APIError{Code: "not_found", Description: "The resource does not exist."}
	ErrConflict        = APIError{Code: "conflict", Description: "The resource already exists."}
	ErrServerError     = APIError{Code: "server_error", Description: "An internal error occurred."}
	ErrTooManyRequests = APIError{Code: "rate_limit_exceeded", Description: "Too many requests. Please try again later."}
)

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes e as a JSON error body.
func WriteError(w http.ResponseWriter, code int, e APIError) {
	WriteJSON(w, code, e)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// Token responses must never be cached.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// DecodeJSON reads a single JSON object from the request body into v.
// Unknown fields are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
