// Package identity turns a request/response auth backend into the session
// stream the console consumes: it holds the tokens, refreshes them before
// they expire and publishes every sign-in, refresh and sign-out to subscribers.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/infra/observability"
	"github.com/boddenberg/occurrence-console/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("identity")

// Token is what a backend returns for a successful sign-in or refresh.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	Identity     domain.Identity
}

// Backend is the hosted auth service's REST surface.
type Backend interface {
	Name() string
	SignIn(ctx context.Context, email, password string) (*Token, error)
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
	SignOut(ctx context.Context, accessToken string) error
	SendPasswordReset(ctx context.Context, email string) error
}

// Settings tunes refresh scheduling and sign-in throttling.
type Settings struct {
	RefreshMargin  time.Duration
	MaxAttempts    int
	Lockout        time.Duration
	RefreshTimeout time.Duration
}

// Manager implements port.AuthProvider on top of a Backend.
type Manager struct {
	backend  Backend
	settings Settings
	attempts port.Cache[int]
	metrics  *observability.Metrics
	logger   *zap.Logger

	// emitMu serializes state changes with their delivery so subscribers
	// observe events in the order they happened. Always taken before mu.
	emitMu sync.Mutex

	mu      sync.Mutex
	token   *Token
	gen     uint64
	timer   *time.Timer
	subs    map[int]func(*domain.Identity)
	nextSub int
	closed  bool
}

var _ port.AuthProvider = (*Manager)(nil)

// NewManager creates a session manager. attempts backs the sign-in throttle.
func NewManager(backend Backend, settings Settings, attempts port.Cache[int], metrics *observability.Metrics, logger *zap.Logger) *Manager {
	if settings.RefreshTimeout == 0 {
		settings.RefreshTimeout = 30 * time.Second
	}
	return &Manager{
		backend:  backend,
		settings: settings,
		attempts: attempts,
		metrics:  metrics,
		logger:   logger.With(zap.String("auth_backend", backend.Name())),
		subs:     make(map[int]func(*domain.Identity)),
	}
}

// Subscribe registers fn and immediately delivers the current identity.
func (m *Manager) Subscribe(fn func(*domain.Identity)) func() {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	current := m.currentLocked()
	m.mu.Unlock()

	fn(current)

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// SignIn authenticates and publishes the new identity.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	ctx, span := tracer.Start(ctx, "Identity.SignIn")
	defer span.End()

	key := strings.ToLower(strings.TrimSpace(email))
	span.SetAttributes(attribute.String("auth.email", key))

	if n, ok := m.attempts.Get(key); ok && m.settings.MaxAttempts > 0 && n >= m.settings.MaxAttempts {
		m.logger.Warn("sign-in throttled", zap.String("email", key), zap.Int("attempts", n))
		return &domain.ErrAuth{Kind: domain.AuthRateLimited}
	}

	tok, err := m.backend.SignIn(ctx, key, password)
	if err != nil {
		var authErr *domain.ErrAuth
		if errors.As(err, &authErr) && (authErr.Kind == domain.AuthInvalidCredentials || authErr.Kind == domain.AuthUnknownAccount) {
			n, _ := m.attempts.Get(key)
			m.attempts.Set(key, n+1)
		}
		m.logger.Warn("sign-in failed", zap.String("email", key), zap.Error(err))
		return err
	}
	m.attempts.Delete(key)
	if tok.Identity.Email == "" {
		tok.Identity.Email = key
	}

	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	m.setTokenLocked(tok)
	current := m.currentLocked()
	subs := m.subscribersLocked()
	m.mu.Unlock()

	m.logger.Info("signed in", zap.String("identity_id", tok.Identity.ID))
	m.metrics.IncrAuthEvent("signed_in")
	deliver(subs, current)
	return nil
}

// SignOut revokes the session remotely (best effort) and publishes nil.
func (m *Manager) SignOut(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Identity.SignOut")
	defer span.End()

	m.mu.Lock()
	var access string
	if m.token != nil {
		access = m.token.AccessToken
	}
	m.mu.Unlock()

	var remoteErr error
	if access != "" {
		if remoteErr = m.backend.SignOut(ctx, access); remoteErr != nil {
			m.logger.Warn("remote sign-out failed", zap.Error(remoteErr))
		}
	}

	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	m.setTokenLocked(nil)
	subs := m.subscribersLocked()
	m.mu.Unlock()

	m.metrics.IncrAuthEvent("signed_out")
	deliver(subs, nil)
	return remoteErr
}

// SendPasswordReset asks the auth service to email a reset link.
func (m *Manager) SendPasswordReset(ctx context.Context, email string) error {
	ctx, span := tracer.Start(ctx, "Identity.SendPasswordReset")
	defer span.End()

	if strings.TrimSpace(email) == "" {
		return &domain.ErrValidation{Field: "email", Message: "is required"}
	}
	return m.backend.SendPasswordReset(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// AccessToken returns the current bearer token.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return ""
	}
	return m.token.AccessToken
}

// Close stops the refresh timer. Subscribers receive nothing further.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) refresh(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.token == nil || m.closed {
		m.mu.Unlock()
		return
	}
	refreshToken := m.token.RefreshToken
	previous := m.token.Identity
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.settings.RefreshTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "Identity.Refresh")
	defer span.End()

	tok, err := m.backend.Refresh(ctx, refreshToken)

	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	if gen != m.gen || m.closed {
		// signed out or signed in again while refreshing
		m.mu.Unlock()
		return
	}
	var current *domain.Identity
	event := "refreshed"
	if err != nil {
		m.logger.Warn("token refresh failed, session ended", zap.Error(err))
		m.setTokenLocked(nil)
		event = "expired"
	} else {
		if tok.Identity.ID == "" {
			tok.Identity.ID = previous.ID
		}
		if tok.Identity.Email == "" {
			tok.Identity.Email = previous.Email
		}
		m.setTokenLocked(tok)
		current = m.currentLocked()
	}
	subs := m.subscribersLocked()
	m.mu.Unlock()

	m.metrics.IncrAuthEvent(event)
	deliver(subs, current)
}

// setTokenLocked swaps the session and reschedules the refresh. Caller holds mu.
func (m *Manager) setTokenLocked(tok *Token) {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.token = tok
	if tok == nil || tok.RefreshToken == "" || tok.ExpiresIn <= 0 || m.closed {
		return
	}

	delay := tok.ExpiresIn - m.settings.RefreshMargin
	if delay < time.Second {
		delay = time.Second
	}
	gen := m.gen
	m.timer = time.AfterFunc(delay, func() { m.refresh(gen) })
}

func (m *Manager) currentLocked() *domain.Identity {
	if m.token == nil {
		return nil
	}
	id := m.token.Identity
	return &id
}

func (m *Manager) subscribersLocked() []func(*domain.Identity) {
	out := make([]func(*domain.Identity), 0, len(m.subs))
	for i := 0; i < m.nextSub; i++ {
		if fn, ok := m.subs[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func deliver(subs []func(*domain.Identity), id *domain.Identity) {
	for _, fn := range subs {
		if id == nil {
			fn(nil)
			continue
		}
		cp := *id
		fn(&cp)
	}
}
