package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var sessionTracer = otel.Tracer("service/session")

// SessionResolver maps the auth identity to the UserProfile whose email
// matches it. The lookup is one-shot per identity event; later edits to the
// profile show up only through the users subscription.
type SessionResolver struct {
	auth          port.AuthProvider
	store         port.DocumentStore
	users         string
	lookupTimeout time.Duration
	logger        *zap.Logger

	mu          sync.Mutex
	gen         uint64
	identity    *domain.Identity
	profile     *domain.UserProfile
	pending     chan struct{} // open while the current lookup runs
	unsubscribe func()
}

// NewSessionResolver creates a resolver over the given users collection.
func NewSessionResolver(auth port.AuthProvider, store port.DocumentStore, usersCollection string, lookupTimeout time.Duration, logger *zap.Logger) *SessionResolver {
	if lookupTimeout <= 0 {
		lookupTimeout = 10 * time.Second
	}
	return &SessionResolver{
		auth:          auth,
		store:         store,
		users:         usersCollection,
		lookupTimeout: lookupTimeout,
		logger:        logger,
	}
}

// Start subscribes to the session stream. Calling it twice is a no-op.
func (r *SessionResolver) Start() {
	r.mu.Lock()
	started := r.unsubscribe != nil
	r.mu.Unlock()
	if started {
		return
	}
	unsub := r.auth.Subscribe(r.onIdentity)
	r.mu.Lock()
	r.unsubscribe = unsub
	r.mu.Unlock()
}

// Stop unsubscribes and abandons any lookup in flight.
func (r *SessionResolver) Stop() {
	r.mu.Lock()
	unsub := r.unsubscribe
	r.unsubscribe = nil
	r.gen++
	r.releaseLocked()
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (r *SessionResolver) onIdentity(id *domain.Identity) {
	r.mu.Lock()
	r.gen++
	gen := r.gen

	if id == nil {
		r.identity = nil
		r.profile = nil
		r.releaseLocked()
		r.mu.Unlock()
		r.logger.Info("session cleared")
		return
	}

	if r.identity == nil || r.identity.ID != id.ID {
		r.profile = nil
	}
	cp := *id
	r.identity = &cp
	if r.pending == nil {
		r.pending = make(chan struct{})
	}
	r.mu.Unlock()

	go r.lookup(gen, cp)
}

func (r *SessionResolver) lookup(gen uint64, id domain.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), r.lookupTimeout)
	defer cancel()
	ctx, span := sessionTracer.Start(ctx, "SessionResolver.Lookup")
	defer span.End()

	var match *domain.UserProfile
	docs, err := r.store.GetOnce(ctx, r.users)
	if err != nil {
		r.logger.Warn("profile lookup failed", zap.String("identity_id", id.ID), zap.Error(err))
	} else {
		for _, d := range docs {
			u := domain.UserFromDocument(d)
			if strings.EqualFold(strings.TrimSpace(u.Email), strings.TrimSpace(id.Email)) {
				match = &u
				break
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		// a newer identity event owns the result
		return
	}
	r.profile = match
	r.releaseLocked()

	if match == nil && err == nil {
		r.logger.Info("identity has no user profile", zap.String("email", id.Email))
	} else if match != nil {
		r.logger.Info("profile resolved", zap.String("profile_id", match.ID), zap.String("role", string(match.Role)))
	}
}

func (r *SessionResolver) releaseLocked() {
	if r.pending != nil {
		close(r.pending)
		r.pending = nil
	}
}

// Profile returns the resolved profile, nil when signed out, not provisioned
// or still resolving.
func (r *SessionResolver) Profile() *domain.UserProfile {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.profile == nil {
		return nil
	}
	cp := *r.profile
	return &cp
}

// Identity returns the current auth identity.
func (r *SessionResolver) Identity() *domain.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.identity == nil {
		return nil
	}
	cp := *r.identity
	return &cp
}

// Await blocks until no lookup is in flight and returns the profile.
func (r *SessionResolver) Await(ctx context.Context) (*domain.UserProfile, error) {
	for {
		r.mu.Lock()
		ch := r.pending
		r.mu.Unlock()
		if ch == nil {
			return r.Profile(), nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// View is what the session routes report.
func (r *SessionResolver) View() domain.SessionView {
	p := r.Profile()
	if p == nil {
		return domain.SessionView{Authenticated: false, View: "sign-in"}
	}
	p.Password = ""
	return domain.SessionView{Authenticated: true, View: "dashboard", Profile: p}
}
