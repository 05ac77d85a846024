package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rhuss/watchtracker/pkg/api"
	"github.com/rhuss/watchtracker/pkg/storage"
)

// HTTPStatusFromError maps an APIError type to the corresponding HTTP status
// code. Transport-level errors (body too large, unsupported content type)
// are handled separately by the HTTP adapter.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeServiceUnavailable:
		return http.StatusServiceUnavailable
	case api.ErrorTypeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Client-facing messages for failures whose cause stays in the server log.
const (
	msgUnavailable = "entry store unavailable"
	msgServerError = "internal server error"
)

// APIErrorFrom converts an error returned by an EntryService into an
// APIError. Validation errors pass through unchanged. Store outages become
// service_unavailable and anything else a server error, both with a fixed
// message so driver details never reach the client.
func APIErrorFrom(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, storage.ErrUnavailable) {
		return api.NewUnavailableError(msgUnavailable)
	}
	return api.NewServerError(msgServerError)
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api. It sets the Content-Type header and writes
// the HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteError converts err with APIErrorFrom and writes it.
func WriteError(w http.ResponseWriter, err error) {
	WriteAPIError(w, APIErrorFrom(err))
}

// WriteJSON writes v as a 200 JSON response.
func WriteJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
