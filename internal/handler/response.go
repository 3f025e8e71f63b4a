// Package handler contains the HTTP request handlers of the API.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming HTTP request (path ids, JSON or multipart body)
//  2. Call the service layer with the authenticated user id
//  3. Write the HTTP response (status code, JSON body)
//
// Handlers contain no business rules. Validation, authorization and
// transactions all live in internal/service.
package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response has the same shape, the one the web client reads:
//   {"error": "row not found with id 7"}

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/obsidian/internal/apperror"
)

// maxJSONBody bounds JSON request bodies. Uploads have their own limit.
const maxJSONBody = 1 << 20

// ErrorResponse is the error format returned by all API endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse acknowledges an operation that returns no entity.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body is written. Once Encode
// writes, the headers are on the wire and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent: we can only log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// ERROR MAPPING:
//
//	ErrValidation, ErrConflict → 400
//	ErrUnauthorized            → 401
//	ErrForbidden               → 403
//	ErrNotFound                → notFound (chosen per route)
//	anything else              → 500, logged, with a generic message
//
// WHY IS NOT-FOUND PER ROUTE?
// Existing clients were written against routes that answer a missing
// entity differently: reading a project says 403, mutating one says 400,
// reading a work item says 404. The route knows which contract it keeps.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, notFound int) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrConflict):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(err, apperror.ErrNotFound):
			status = notFound
		}

		if status != http.StatusInternalServerError {
			writeJSON(w, status, ErrorResponse{Error: appErr.Message})
			return
		}
	}

	// Unknown error: NEVER expose internal details to the client.
	// The raw message might contain SQL or file paths.
	logger.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("requestID", chimiddleware.GetReqID(r.Context())),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Server error"})
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%s must be a positive integer", name))
	}
	return id, nil
}

// decodeJSON reads a JSON request body into dst.
// An empty body decodes to the zero value, like an empty object.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("body", "request body too large")
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}

// flexID is an id field that accepts a JSON number or a numeric string,
// since browser clients often send ids taken from form values or URLs.
type flexID int64

func (f *flexID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s", data)
	}
	*f = flexID(n)
	return nil
}
