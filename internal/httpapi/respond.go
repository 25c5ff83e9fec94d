package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mesh-intelligence/cypress/pkg/types"
)

// envelope is the body of every JSON response. Exactly one of Data and
// Error is meaningful.
type envelope struct {
	Data  any     `json:"data"`
	Error *string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: &message})
}

// writeErr maps err onto a status via its sentinel.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrInvalidData),
		errors.Is(err, types.ErrInvalidName),
		errors.Is(err, types.ErrNoCollaborators):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, types.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, types.ErrFolderLimit):
		return http.StatusPaymentRequired
	case errors.Is(err, types.ErrBackendDetached):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body of at most s.maxBody bytes into dst.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}
