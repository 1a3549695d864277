package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/models"
)

type memberResponse struct {
	MemberID    uuid.UUID `json:"member_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	PhotoURL    *string   `json:"photo_url,omitempty"`
	IsAdmin     bool      `json:"is_admin"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func toMemberResponse(m *models.Membership) memberResponse {
	return memberResponse{
		MemberID:    m.MemberID,
		DisplayName: m.DisplayName,
		Email:       m.Email,
		PhotoURL:    m.PhotoURL,
		IsAdmin:     m.IsAdmin,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
	}
}

// memberRequestContext resolves the caller and the org path parameter for
// member administration routes. Session verification includes the revocation
// check: these routes act on other members.
func (s *Server) memberRequestContext(w http.ResponseWriter, r *http.Request) (caller, orgID uuid.UUID, ok bool) {
	caller, err := s.sessions.Verify(r.Context(), r, true)
	if err != nil {
		s.unauthorized(w)
		return uuid.Nil, uuid.Nil, false
	}

	orgID, err = uuid.Parse(r.PathValue("org"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return uuid.Nil, uuid.Nil, false
	}

	return caller, orgID, true
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	caller, orgID, ok := s.memberRequestContext(w, r)
	if !ok {
		return
	}

	memberships, err := s.members.List(r.Context(), orgID, caller)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]memberResponse, 0, len(memberships))
	for _, m := range memberships {
		resp = append(resp, toMemberResponse(m))
	}

	writeJSON(w, http.StatusOK, map[string][]memberResponse{"members": resp})
}

type inviteRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	caller, orgID, ok := s.memberRequestContext(w, r)
	if !ok {
		return
	}

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	invited, err := s.members.Invite(r.Context(), orgID, req.DisplayName, req.Email, caller)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMemberResponse(invited))
}

type updateRoleRequest struct {
	IsAdmin bool `json:"is_admin"`
}

func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	caller, orgID, ok := s.memberRequestContext(w, r)
	if !ok {
		return
	}

	target, err := uuid.Parse(r.PathValue("member"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.members.UpdateRole(r.Context(), orgID, target, req.IsAdmin, caller); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	caller, orgID, ok := s.memberRequestContext(w, r)
	if !ok {
		return
	}

	target, err := uuid.Parse(r.PathValue("member"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	if err := s.members.Remove(r.Context(), orgID, target, caller); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
