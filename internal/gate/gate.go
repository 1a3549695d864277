// Package gate implements the edge-level request filter evaluated before
// page logic. It operates only on the request's cookie and path and keeps no
// state of its own; all state lives in the cookie and the session authority.
package gate

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/session"
)

// Outcome is the gate's decision for a request.
type Outcome int

const (
	// Allow passes the request through unchanged.
	Allow Outcome = iota

	// Redirect sends the requester elsewhere (login for anonymous requests
	// to protected paths, the landing page for authenticated requests to
	// auth-only pages).
	Redirect
)

// Decision is the gate's full answer: an outcome, an optional redirect
// target, and whether the response must clear a failed session cookie.
type Decision struct {
	Outcome     Outcome
	Target      string
	ClearCookie bool
}

// Config defines the gate's path classification.
type Config struct {
	// LoginPath is where anonymous requests to protected paths are sent.
	LoginPath string

	// LandingPath is where authenticated requests to auth-only pages are sent.
	LandingPath string

	// Protected are path prefixes that require a valid session.
	Protected []string

	// AuthPages are pages only meaningful to anonymous users (login, signup).
	AuthPages []string

	// Skip are path prefixes the gate ignores entirely: static assets and
	// API routes, which perform their own session verification.
	Skip []string
}

// DefaultConfig returns the path classification used by the server.
func DefaultConfig() Config {
	return Config{
		LoginPath:   "/login",
		LandingPath: "/dashboard",
		Protected:   []string{"/dashboard"},
		AuthPages:   []string{"/login", "/signup"},
		Skip:        []string{"/api/", "/public/", "/favicon.ico", "/health"},
	}
}

// Gate filters requests using the session authority.
type Gate struct {
	sessions *session.Authority
	cfg      Config
}

// New creates a route gate.
func New(sessions *session.Authority, cfg Config) *Gate {
	return &Gate{
		sessions: sessions,
		cfg:      cfg,
	}
}

// Decide classifies a request. The gate verifies without the revocation
// check: its outcomes are low stakes (redirects and cookie hygiene), and any
// action that needs authorization re-verifies with revocation checking
// before acting.
func (g *Gate) Decide(ctx context.Context, r *http.Request) Decision {
	path := r.URL.Path

	if g.matches(path, g.cfg.Skip) {
		return Decision{Outcome: Allow}
	}

	cookie, err := r.Cookie(session.CookieName)
	if err != nil {
		if g.matches(path, g.cfg.Protected) {
			return Decision{Outcome: Redirect, Target: g.loginRedirect(path)}
		}
		return Decision{Outcome: Allow}
	}

	if _, err := g.sessions.VerifyToken(ctx, cookie.Value, false); err != nil {
		log.Debug().Str("path", path).Msg("Session verification failed at gate, clearing cookie")
		if g.matches(path, g.cfg.Protected) {
			return Decision{Outcome: Redirect, Target: g.loginRedirect(path), ClearCookie: true}
		}
		return Decision{Outcome: Allow, ClearCookie: true}
	}

	// Authenticated users have no business on the login or signup pages.
	if g.matches(path, g.cfg.AuthPages) {
		return Decision{Outcome: Redirect, Target: g.cfg.LandingPath}
	}

	return Decision{Outcome: Allow}
}

// Middleware applies Decide to every request.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := g.Decide(r.Context(), r)

		if decision.ClearCookie {
			g.sessions.Clear(w)
		}

		if decision.Outcome == Redirect {
			http.Redirect(w, r, decision.Target, http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loginRedirect preserves the intended destination as a return-path
// parameter.
func (g *Gate) loginRedirect(path string) string {
	return g.cfg.LoginPath + "?return_to=" + url.QueryEscape(path)
}

func (g *Gate) matches(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasSuffix(prefix, "/") {
			if strings.HasPrefix(path, prefix) {
				return true
			}
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
