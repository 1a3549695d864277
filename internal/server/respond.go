package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/credential"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/member"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/provision"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/session"
)

type errorBody struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// unauthorized rejects a request whose session cookie failed verification.
// The failed cookie is cleared in the same response, so the client is left
// fully anonymous rather than holding a credential that will keep failing.
func (s *Server) unauthorized(w http.ResponseWriter) {
	s.sessions.Clear(w)
	writeError(w, http.StatusUnauthorized, "invalid session")
}

// writeServiceError maps domain errors onto HTTP statuses. Unrecognized
// errors are logged and reported as an opaque 500 so internals never leak.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *provision.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: verr.Fields})
		return
	}

	switch {
	case errors.Is(err, provision.ErrDuplicateOrganization):
		writeError(w, http.StatusConflict, "organization name already in use")
	case errors.Is(err, provision.ErrCredentialConflict):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, provision.ErrNoInvitation):
		writeError(w, http.StatusForbidden, "no pending invitation for this email")
	case errors.Is(err, provision.ErrLastAdmin):
		writeError(w, http.StatusConflict, "cannot remove the organization's last administrator")
	case errors.Is(err, member.ErrSelfChange):
		writeError(w, http.StatusForbidden, "cannot change your own membership")
	case errors.Is(err, member.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, member.ErrAlreadyMember):
		writeError(w, http.StatusConflict, "already a member of this organization")
	case errors.Is(err, member.ErrNotFound):
		writeError(w, http.StatusNotFound, "member not found")
	case errors.Is(err, member.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, credential.ErrInvalidCredential):
		writeError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, session.ErrInvalidSession):
		writeError(w, http.StatusUnauthorized, "invalid session")
	default:
		log.Error().Err(err).Msg("Unhandled service error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
