// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/taskhive/taskhive/pkg/rbac"
	"github.com/taskhive/taskhive/pkg/validation"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteValidationError writes a validation error response (400 Bad Request)
func WriteValidationError(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a forbidden error (403)
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusForbidden, message)
}

// WriteNotFoundError writes a not found error response (404 Not Found)
func WriteNotFoundError(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteConflict writes a conflict error (409)
func WriteConflict(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusConflict, message)
}

// WriteTooManyRequests writes a rate limit error (429)
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusTooManyRequests, message)
}

// WriteInternalError writes an internal server error response (500 Internal Server Error)
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusInternalServerError, err)
}

// WriteServiceUnavailable writes a service unavailable error (503)
func WriteServiceUnavailable(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusServiceUnavailable, message)
}

// DenialStatus maps a policy denial kind to an HTTP status code.
func DenialStatus(kind rbac.DenialKind) int {
	switch kind {
	case rbac.DenialNotFound:
		return http.StatusNotFound
	case rbac.DenialAmbiguousOrg:
		return http.StatusBadRequest
	case rbac.DenialAlreadyMember, rbac.DenialAlreadyInvited:
		return http.StatusConflict
	default:
		return http.StatusForbidden
	}
}

// WriteDenial writes a structured policy denial with the status code its
// kind maps to.
func WriteDenial(w http.ResponseWriter, d *rbac.Denial) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(DenialStatus(d.Kind))
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  d.Message,
		"kind":   d.Kind,
		"fields": d.Fields,
	})
}

// WriteServiceError writes a denial or validation failure when err is
// one, an internal error otherwise. The standard tail of every handler
// that calls a service.
func WriteServiceError(w http.ResponseWriter, err error) {
	if d, ok := rbac.AsDenial(err); ok {
		WriteDenial(w, d)
		return
	}
	if v, ok := validation.AsError(err); ok {
		WriteValidationError(w, v.Message)
		return
	}
	WriteInternalError(w, err)
}
