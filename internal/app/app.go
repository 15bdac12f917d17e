// Package app wires configuration into the collaborator adapters and the
// console. Both the HTTP server and the CLI build their console here.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/occurrence-console/internal/config"
	"github.com/boddenberg/occurrence-console/internal/infra/cache"
	"github.com/boddenberg/occurrence-console/internal/infra/client"
	"github.com/boddenberg/occurrence-console/internal/infra/firebase"
	"github.com/boddenberg/occurrence-console/internal/infra/identity"
	"github.com/boddenberg/occurrence-console/internal/infra/observability"
	"github.com/boddenberg/occurrence-console/internal/infra/resilience"
	"github.com/boddenberg/occurrence-console/internal/infra/supabase"
	"github.com/boddenberg/occurrence-console/internal/port"
	"github.com/boddenberg/occurrence-console/internal/service"

	"go.uber.org/zap"
)

// Backend holds the three collaborators for the configured backend family.
type Backend struct {
	Name      string
	Auth      *identity.Manager
	Store     port.DocumentStore
	Functions port.FunctionInvoker

	closers []func()
}

// NewBackend builds the auth session manager, document store and function
// invoker selected by cfg.Backend.
func NewBackend(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) (*Backend, error) {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.RealtimeMaxBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	settings := identity.Settings{
		RefreshMargin: cfg.TokenRefreshMargin,
		MaxAttempts:   cfg.SignInMaxAttempts,
		Lockout:       cfg.SignInLockout,
	}

	// --- Sign-in throttle ---
	attempts := cache.New[int](cfg.SignInLockout)
	b := &Backend{Name: cfg.Backend, closers: []func(){attempts.Close}}

	switch cfg.Backend {
	case config.BackendSupabase:
		if cfg.SupabaseURL == "" || cfg.SupabaseAnonKey == "" {
			attempts.Close()
			return nil, fmt.Errorf("supabase backend needs SUPABASE_URL and SUPABASE_ANON_KEY")
		}
		logger.Info("using Supabase backend", zap.String("supabase_url", cfg.SupabaseURL))

		sb := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase-rest", logger),
			resilienceCfg,
			supabase.RealtimeSettings{
				Heartbeat:      cfg.RealtimeHeartbeat,
				InitialBackoff: cfg.InitialBackoff,
				MaxBackoff:     cfg.RealtimeMaxBackoff,
			},
			logger,
		)
		authBackend := supabase.NewAuthBackend(sb, resilience.NewCircuitBreaker("supabase-auth", logger))
		b.Auth = identity.NewManager(authBackend, settings, attempts, metrics, logger)
		b.Store = sb
		b.Functions = supabase.NewFunctions(
			sb,
			resilience.NewCircuitBreaker("supabase-functions", logger),
			b.Auth.AccessToken,
		)

	case config.BackendFirebase:
		if cfg.FirebaseProjectID == "" || cfg.FirebaseAPIKey == "" {
			attempts.Close()
			return nil, fmt.Errorf("firebase backend needs FIREBASE_PROJECT_ID and FIREBASE_API_KEY")
		}
		logger.Info("using Firebase backend", zap.String("project_id", cfg.FirebaseProjectID))

		fs, err := firebase.OpenFirestore(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
		if err != nil {
			attempts.Close()
			return nil, fmt.Errorf("open firestore: %w", err)
		}
		b.closers = append(b.closers, func() { fs.Close() })

		authBackend := firebase.NewAuthBackend(
			httpClient,
			firebase.AuthConfig{APIKey: cfg.FirebaseAPIKey},
			resilience.NewCircuitBreaker("firebase-auth", logger),
			logger,
		)
		b.Auth = identity.NewManager(authBackend, settings, attempts, metrics, logger)
		b.Store = firebase.NewStore(fs, resilience.NewCircuitBreaker("firestore", logger), resilienceCfg, logger)
		b.Functions = client.NewCallableClient(
			httpClient,
			cfg.FunctionsURL,
			resilience.NewCircuitBreaker("callable-functions", logger),
			b.Auth.AccessToken,
		)

	default:
		attempts.Close()
		return nil, fmt.Errorf("unknown backend %q (want %s or %s)", cfg.Backend, config.BackendSupabase, config.BackendFirebase)
	}

	b.closers = append(b.closers, b.Auth.Close)
	return b, nil
}

// NewConsole composes the console over b.
func NewConsole(b *Backend, cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) *service.Console {
	return service.NewConsole(b.Auth, b.Store, b.Functions, service.Options{
		Backend:        b.Name,
		Collections:    cfg.Collections,
		PageSize:       cfg.PageSize,
		MaxConcurrency: cfg.MaxConcurrency,
		RelayFunction:  cfg.RelayFunction,
		LookupTimeout:  cfg.HTTPTimeout,
	}, metrics, logger)
}

// Close releases the backend in reverse order of creation.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// ShutdownTimeout bounds graceful teardown in both binaries.
const ShutdownTimeout = 15 * time.Second
