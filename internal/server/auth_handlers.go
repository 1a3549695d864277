package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	httpmiddleware "github.com/Mike-SamaSama/comelec-compliance-suite/internal/http"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/provision"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/session"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/store"
)

type signUpRequest struct {
	OrganizationName string `json:"organization_name"`
	DisplayName      string `json:"display_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	Consent          bool   `json:"consent"`
}

type signUpResponse struct {
	IdentityID uuid.UUID `json:"identity_id"`
	OrgID      uuid.UUID `json:"org_id"`
}

// handleSignUp provisions a new tenant, or completes an invited signup when
// no organization name is supplied. On success the session cookie is set
// directly so the client lands signed in.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	in := provision.SignUpInput{
		OrganizationName: req.OrganizationName,
		DisplayName:      req.DisplayName,
		Email:            req.Email,
		Password:         req.Password,
		Consent:          req.Consent,
	}

	var (
		result *provision.Result
		err    error
	)
	if req.OrganizationName == "" {
		result, err = s.provisioner.CompleteInvitedSignup(ctx, in)
	} else {
		result, err = s.provisioner.Provision(ctx, in)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := s.sessions.Issue(ctx, w, result.Assertion); err != nil {
		log.Error().Err(err).Msg("Failed to issue session after signup")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Info().
		Str("identity_id", result.IdentityID.String()).
		Str("org_id", result.OrgID.String()).
		Str("client_ip", httpmiddleware.ClientIPFromContext(ctx)).
		Msg("Signup completed")

	writeJSON(w, http.StatusCreated, signUpResponse{
		IdentityID: result.IdentityID,
		OrgID:      result.OrgID,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	IdentityID uuid.UUID  `json:"identity_id"`
	OrgID      *uuid.UUID `json:"org_id,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	assertion, err := s.creds.VerifyIdentity(ctx, req.Email, req.Password)
	if err != nil {
		log.Info().
			Str("client_ip", httpmiddleware.ClientIPFromContext(ctx)).
			Msg("Sign-in rejected")
		writeServiceError(w, err)
		return
	}

	if err := s.sessions.Issue(ctx, w, assertion); err != nil {
		log.Error().Err(err).Msg("Failed to issue session after login")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	identity, err := s.identities.GetByEmail(ctx, req.Email)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load identity after login")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := loginResponse{IdentityID: identity.IdentityID}
	mapping, err := s.mappings.Get(ctx, identity.IdentityID)
	switch {
	case err == nil:
		resp.OrgID = &mapping.OrgID
	case errors.Is(err, store.ErrMappingNotFound):
		// Identity with no organization mapping can still sign in.
	default:
		log.Error().Err(err).Msg("Failed to load organization mapping")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Info().
		Str("identity_id", identity.IdentityID.String()).
		Str("client_ip", httpmiddleware.ClientIPFromContext(ctx)).
		Msg("Sign-in completed")

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

type createSessionRequest struct {
	Assertion string `json:"assertion"`
}

// handleCreateSession exchanges a short-lived assertion for a session
// cookie. This is the cookie-minting endpoint clients call right after
// authenticating.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.sessions.Issue(r.Context(), w, req.Assertion); err != nil {
		if errors.Is(err, session.ErrInvalidSession) {
			writeError(w, http.StatusUnauthorized, "invalid assertion")
			return
		}
		log.Error().Err(err).Msg("Failed to mint session cookie")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{
		"expires_in": int64(s.sessions.TTL().Seconds()),
	})
}

type sessionResponse struct {
	IdentityID uuid.UUID `json:"identity_id"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	identityID, err := s.sessions.Verify(r.Context(), r, false)
	if err != nil {
		s.unauthorized(w)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{IdentityID: identityID})
}

// handleRevokeSessions invalidates every session cookie minted for the
// caller, on this device and any other. The current cookie is cleared too.
func (s *Server) handleRevokeSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identityID, err := s.sessions.Verify(ctx, r, true)
	if err != nil {
		s.unauthorized(w)
		return
	}

	if err := s.creds.RevokeSessions(ctx, identityID); err != nil {
		log.Error().Err(err).Msg("Failed to revoke sessions")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Info().
		Str("identity_id", identityID.String()).
		Str("client_ip", httpmiddleware.ClientIPFromContext(ctx)).
		Msg("All sessions revoked")

	s.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}
