package gate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/credential"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/session"
	memorystore "github.com/Mike-SamaSama/comelec-compliance-suite/internal/store/memory"
)

type fixture struct {
	gate     *Gate
	sessions *session.Authority
	creds    credential.Store
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()

	creds, err := credential.NewLocal(memorystore.NewIdentityStore(), []byte(strings.Repeat("s", 32)))
	require.NoError(t, err)

	sessions, err := session.New(creds, ttl)
	require.NoError(t, err)

	return &fixture{
		gate:     New(sessions, DefaultConfig()),
		sessions: sessions,
		creds:    creds,
	}
}

// signedInCookie provisions an identity and returns its session cookie.
func (f *fixture) signedInCookie(t *testing.T) *http.Cookie {
	t.Helper()
	ctx := context.Background()

	_, assertion, err := f.creds.CreateIdentity(ctx, "juan@example.com", "hunter2hunter2", "Juan")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, f.sessions.Issue(ctx, rec, assertion))

	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func request(path string, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func TestGate_Decide(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous on public page is allowed", func(t *testing.T) {
		f := newFixture(t, time.Hour)

		d := f.gate.Decide(ctx, request("/", nil))
		require.Equal(t, Allow, d.Outcome)
		require.False(t, d.ClearCookie)
	})

	t.Run("anonymous on protected page is sent to login", func(t *testing.T) {
		f := newFixture(t, time.Hour)

		d := f.gate.Decide(ctx, request("/dashboard/reports", nil))
		require.Equal(t, Redirect, d.Outcome)
		require.Equal(t, "/login?return_to=%2Fdashboard%2Freports", d.Target)
	})

	t.Run("signed in on protected page is allowed", func(t *testing.T) {
		f := newFixture(t, time.Hour)
		cookie := f.signedInCookie(t)

		d := f.gate.Decide(ctx, request("/dashboard", cookie))
		require.Equal(t, Allow, d.Outcome)
	})

	t.Run("signed in on auth page is sent to the landing page", func(t *testing.T) {
		f := newFixture(t, time.Hour)
		cookie := f.signedInCookie(t)

		for _, path := range []string{"/login", "/signup"} {
			d := f.gate.Decide(ctx, request(path, cookie))
			require.Equal(t, Redirect, d.Outcome)
			require.Equal(t, "/dashboard", d.Target)
		}
	})

	t.Run("garbage cookie on protected page redirects and clears", func(t *testing.T) {
		f := newFixture(t, time.Hour)

		d := f.gate.Decide(ctx, request("/dashboard", &http.Cookie{Name: session.CookieName, Value: "garbage"}))
		require.Equal(t, Redirect, d.Outcome)
		require.True(t, d.ClearCookie)
	})

	t.Run("garbage cookie on public page allows but clears", func(t *testing.T) {
		f := newFixture(t, time.Hour)

		d := f.gate.Decide(ctx, request("/", &http.Cookie{Name: session.CookieName, Value: "garbage"}))
		require.Equal(t, Allow, d.Outcome)
		require.True(t, d.ClearCookie)
	})

	t.Run("expired cookie is treated as invalid", func(t *testing.T) {
		f := newFixture(t, time.Millisecond)
		cookie := f.signedInCookie(t)
		time.Sleep(5 * time.Millisecond)

		d := f.gate.Decide(ctx, request("/dashboard", cookie))
		require.Equal(t, Redirect, d.Outcome)
		require.True(t, d.ClearCookie)
	})

	t.Run("api and static paths are skipped", func(t *testing.T) {
		f := newFixture(t, time.Hour)

		for _, path := range []string{"/api/session", "/public/app.js", "/favicon.ico", "/health"} {
			d := f.gate.Decide(ctx, request(path, nil))
			require.Equal(t, Allow, d.Outcome, path)
		}
	})
}

func TestGate_Middleware(t *testing.T) {
	f := newFixture(t, time.Hour)

	var reached bool
	handler := f.gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("redirects anonymous protected requests", func(t *testing.T) {
		reached = false
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request("/dashboard", nil))

		require.False(t, reached)
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, "/login?return_to=%2Fdashboard", rec.Header().Get("Location"))
	})

	t.Run("clears bad cookies", func(t *testing.T) {
		reached = false
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request("/", &http.Cookie{Name: session.CookieName, Value: "garbage"}))

		require.True(t, reached)
		var cleared bool
		for _, c := range rec.Result().Cookies() {
			if c.Name == session.CookieName && c.MaxAge < 0 {
				cleared = true
			}
		}
		require.True(t, cleared)
	})

	t.Run("passes valid sessions through", func(t *testing.T) {
		reached = false
		cookie := f.signedInCookie(t)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request("/dashboard", cookie))

		require.True(t, reached)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}
