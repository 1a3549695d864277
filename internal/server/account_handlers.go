package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/store"
)

type accountResponse struct {
	IdentityID  uuid.UUID  `json:"identity_id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	PhotoURL    *string    `json:"photo_url,omitempty"`
	OrgID       *uuid.UUID `json:"org_id,omitempty"`
	IsAdmin     bool       `json:"is_admin"`
	CreatedAt   time.Time  `json:"created_at"`
}

// handleGetAccount returns the caller's profile and organization context.
// Verification includes the revocation check so a revoked session cannot
// read account data.
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identityID, err := s.sessions.Verify(ctx, r, true)
	if err != nil {
		s.unauthorized(w)
		return
	}

	identity, err := s.identities.Get(ctx, identityID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load identity for account")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := accountResponse{
		IdentityID:  identity.IdentityID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		PhotoURL:    identity.PhotoURL,
		CreatedAt:   identity.CreatedAt,
	}

	mapping, err := s.mappings.Get(ctx, identityID)
	switch {
	case err == nil:
		resp.OrgID = &mapping.OrgID
		membership, err := s.memberships.Get(ctx, mapping.OrgID, identityID)
		if err == nil {
			resp.IsAdmin = membership.IsAdmin && !membership.IsInvited()
		} else if !errors.Is(err, store.ErrMembershipNotFound) {
			log.Error().Err(err).Msg("Failed to load membership for account")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	case errors.Is(err, store.ErrMappingNotFound):
		// No organization context for this identity.
	default:
		log.Error().Err(err).Msg("Failed to load organization mapping for account")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleDeleteAccount removes the caller's account and membership records,
// then clears the session cookie. Refused when the caller is the
// organization's only administrator.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identityID, err := s.sessions.Verify(ctx, r, true)
	if err != nil {
		s.unauthorized(w)
		return
	}

	if err := s.provisioner.DeleteAccount(ctx, identityID); err != nil {
		writeServiceError(w, err)
		return
	}

	s.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}
