// Package server exposes the tenant identity subsystem over HTTP. All API
// routes live under /api/ and perform their own session verification; page
// routes are filtered by the route gate upstream of this handler.
package server

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/credential"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/logger"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/member"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/provision"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/session"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/store"
)

// Server wraps the HTTP handlers and the services they delegate to.
type Server struct {
	sessions    *session.Authority
	creds       credential.Store
	provisioner *provision.Service
	members     *member.Service
	identities  store.IdentityStore
	mappings    store.MappingStore
	memberships store.MembershipStore
}

// NewServer creates a new server with the given services and stores.
func NewServer(
	sessions *session.Authority,
	creds credential.Store,
	provisioner *provision.Service,
	members *member.Service,
	identities store.IdentityStore,
	mappings store.MappingStore,
	memberships store.MembershipStore,
) *Server {
	return &Server{
		sessions:    sessions,
		creds:       creds,
		provisioner: provisioner,
		members:     members,
		identities:  identities,
		mappings:    mappings,
		memberships: memberships,
	}
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler(log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Signup and sign-in
	mux.HandleFunc("POST /api/signup", s.handleSignUp)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)

	// Session exchange and introspection
	mux.HandleFunc("POST /api/session", s.handleCreateSession)
	mux.HandleFunc("GET /api/session", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions", s.handleRevokeSessions)

	// Account
	mux.HandleFunc("GET /api/me", s.handleGetAccount)
	mux.HandleFunc("DELETE /api/me", s.handleDeleteAccount)

	// Member administration
	mux.HandleFunc("GET /api/orgs/{org}/members", s.handleListMembers)
	mux.HandleFunc("POST /api/orgs/{org}/invitations", s.handleInvite)
	mux.HandleFunc("PATCH /api/orgs/{org}/members/{member}", s.handleUpdateRole)
	mux.HandleFunc("DELETE /api/orgs/{org}/members/{member}", s.handleRemoveMember)

	RegisterPages(mux)

	return logger.NewRequests(log).Wrap(mux)
}
