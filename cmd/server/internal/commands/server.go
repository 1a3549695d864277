package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"filippo.io/csrf"
	"github.com/rs/cors"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/authz"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/credential"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/gate"
	httpmiddleware "github.com/Mike-SamaSama/comelec-compliance-suite/internal/http"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/logger"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/member"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/provision"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/server"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/session"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/store"
	memorystore "github.com/Mike-SamaSama/comelec-compliance-suite/internal/store/memory"
	postgresstore "github.com/Mike-SamaSama/comelec-compliance-suite/internal/store/postgres"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"COMELEC_LISTEN"`

	// Session configuration
	SessionSecret string        `help:"secret key for HMAC signing of session credentials" env:"COMELEC_SESSION_SECRET"`
	SessionTTL    time.Duration `help:"session cookie lifetime" default:"120h" env:"COMELEC_SESSION_TTL"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"http://localhost:8080" env:"COMELEC_CORS_ORIGINS"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"COMELEC_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns          int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns          int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime   int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime   int32 `help:"maximum connection idle time in seconds" default:"1800"`
	HealthCheckPeriod int32 `help:"health check period in seconds" default:"60"`
	ConnectTimeout    int32 `help:"connection timeout in seconds" default:"10"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"COMELEC_POSTGRES_AUTO_MIGRATE"`
}

func (c *ServerCmd) Validate() error {
	if c.SessionSecret == "" {
		return errors.New("session secret is required (--session-secret or COMELEC_SESSION_SECRET)")
	}
	if len(c.SessionSecret) < 32 {
		return errors.New("session secret must be at least 32 bytes (256 bits) for HMAC-SHA256")
	}
	return nil
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	// Create stores based on store type
	var (
		identityStore     store.IdentityStore
		organizationStore store.OrganizationStore
		membershipStore   store.MembershipStore
		mappingStore      store.MappingStore
		provisioner       store.TenantProvisioner
	)

	switch c.StoreType {
	case "postgres":
		if c.PostgresStore.ConnString == "" {
			return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
		}

		// Shared connection pool for all PostgreSQL stores
		poolCfg := &postgresstore.PoolConfig{
			ConnString:        c.PostgresStore.ConnString,
			MaxConns:          c.PostgresStore.MaxConns,
			MinConns:          c.PostgresStore.MinConns,
			MaxConnLifetime:   c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime:   c.PostgresStore.MaxConnIdleTime,
			HealthCheckPeriod: c.PostgresStore.HealthCheckPeriod,
			ConnectTimeout:    c.PostgresStore.ConnectTimeout,
		}
		pool, err := postgresstore.NewPool(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		identityStore = postgresstore.NewIdentityStore(pool)
		organizationStore = postgresstore.NewOrganizationStore(pool)
		membershipStore = postgresstore.NewMembershipStore(pool)
		mappingStore = postgresstore.NewMappingStore(pool)
		provisioner = postgresstore.NewTenantProvisioner(pool)

		log.Info().Msg("Using PostgreSQL stores with shared connection pool")

	default:
		tenantStore := memorystore.NewTenantStore()
		identityStore = memorystore.NewIdentityStore()
		organizationStore = tenantStore.Organizations()
		membershipStore = tenantStore.Memberships()
		mappingStore = tenantStore.Mappings()
		provisioner = tenantStore

		log.Info().Msg("Using in-memory stores")
	}

	// Wire services
	creds, err := credential.NewLocal(identityStore, []byte(c.SessionSecret))
	if err != nil {
		return fmt.Errorf("failed to create credential store: %w", err)
	}

	sessions, err := session.New(creds, c.SessionTTL)
	if err != nil {
		return fmt.Errorf("failed to create session authority: %w", err)
	}

	guard := authz.NewGuard(membershipStore)
	provisionService := provision.NewService(creds, organizationStore, membershipStore, mappingStore, provisioner)
	memberService := member.NewService(guard, membershipStore)

	srv := server.NewServer(
		sessions,
		creds,
		provisionService,
		memberService,
		identityStore,
		mappingStore,
		membershipStore,
	)

	routeGate := gate.New(sessions, gate.DefaultConfig())
	handler := routeGate.Middleware(srv.Handler(log))
	handler = httpmiddleware.ClientIPMiddleware()(handler)

	// CSRF protection for HTML pages (not applied to API routes)
	protection := csrf.New()

	apiHandler := withCORS(c.CORSOrigins, handler)
	pageHandler := protection.Handler(handler)

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// API routes get CORS, HTML routes get CSRF
		if isAPIRoute(r.URL.Path) {
			apiHandler.ServeHTTP(w, r)
		} else {
			pageHandler.ServeHTTP(w, r)
		}
	})

	log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
	return configureHTTPServer(c.Listen, root).ListenAndServe()
}

// isAPIRoute returns true if the path is an API route that needs CORS instead of CSRF
func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/api/") || path == "/health"
}

// withCORS adds CORS support for browser clients on other origins.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true, // Required for cookie-based authentication
	})
	return middleware.Handler(h)
}
