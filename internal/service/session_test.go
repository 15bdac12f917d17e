package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/service"

	"go.uber.org/zap"
)

func newResolver(auth *fakeAuth, store *fakeStore) *service.SessionResolver {
	r := service.NewSessionResolver(auth, store, "users", time.Second, zap.NewNop())
	r.Start()
	return r
}

func await(t *testing.T, r *service.SessionResolver) *domain.UserProfile {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p, err := r.Await(ctx)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	return p
}

func TestSessionResolver_MatchesEmailCaseInsensitive(t *testing.T) {
	store := newFakeStore()
	store.seed("users",
		userDoc("u1", "Bruno", "bruno@example.com", "h1", domain.RoleUser),
		userDoc("u2", "Ana", "Ana.Silva@Example.com", "h2", domain.RoleAdministrator),
	)
	auth := newFakeAuth()
	r := newResolver(auth, store)
	defer r.Stop()

	auth.emit(&domain.Identity{ID: "id-ana", Email: "ana.silva@example.COM"})

	p := await(t, r)
	if p == nil || p.ID != "u2" || !p.IsAdmin() {
		t.Fatalf("expected admin profile u2, got %+v", p)
	}
	view := r.View()
	if !view.Authenticated || view.View != "dashboard" || view.Profile.Password != "" {
		t.Errorf("unexpected view %+v", view)
	}
}

func TestSessionResolver_NotProvisionedResolvesToNil(t *testing.T) {
	store := newFakeStore()
	store.seed("users", userDoc("u1", "Bruno", "bruno@example.com", "h1", domain.RoleUser))
	auth := newFakeAuth()
	r := newResolver(auth, store)
	defer r.Stop()

	auth.emit(&domain.Identity{ID: "id-x", Email: "stranger@example.com"})

	if p := await(t, r); p != nil {
		t.Fatalf("expected nil profile, got %+v", p)
	}
	view := r.View()
	if view.Authenticated || view.View != "sign-in" {
		t.Errorf("expected sign-in view, got %+v", view)
	}
	if r.Identity() == nil {
		t.Error("expected identity to remain set")
	}
}

func TestSessionResolver_QueryErrorLeavesProfileNil(t *testing.T) {
	store := newFakeStore()
	store.seed("users", userDoc("u1", "Bruno", "bruno@example.com", "h1", domain.RoleUser))
	store.getErr = errors.New("unavailable")
	auth := newFakeAuth()
	r := newResolver(auth, store)
	defer r.Stop()

	auth.emit(&domain.Identity{ID: "id-b", Email: "bruno@example.com"})

	if p := await(t, r); p != nil {
		t.Fatalf("expected nil profile on query error, got %+v", p)
	}
}

func TestSessionResolver_SignOutClearsProfile(t *testing.T) {
	store := newFakeStore()
	store.seed("users", userDoc("u1", "Bruno", "bruno@example.com", "h1", domain.RoleUser))
	auth := newFakeAuth()
	r := newResolver(auth, store)
	defer r.Stop()

	auth.emit(&domain.Identity{ID: "id-b", Email: "bruno@example.com"})
	if p := await(t, r); p == nil {
		t.Fatal("expected profile after sign-in")
	}

	auth.emit(nil)
	if r.Profile() != nil || r.Identity() != nil {
		t.Error("expected profile and identity cleared on sign-out")
	}
}

func TestSessionResolver_StaleLookupIsDiscarded(t *testing.T) {
	store := newFakeStore()
	store.seed("users", userDoc("u1", "Bruno", "bruno@example.com", "h1", domain.RoleUser))
	gate := make(chan struct{})
	store.getGate = gate

	auth := newFakeAuth()
	r := newResolver(auth, store)
	defer r.Stop()

	// lookup for bruno blocks; sign-out arrives before it completes
	auth.emit(&domain.Identity{ID: "id-b", Email: "bruno@example.com"})
	auth.emit(nil)
	close(gate)

	// give the blocked lookup time to finish
	time.Sleep(50 * time.Millisecond)
	if p := r.Profile(); p != nil {
		t.Fatalf("expected stale lookup to be discarded, got %+v", p)
	}
}

func TestSessionResolver_NewIdentityClearsPreviousProfileImmediately(t *testing.T) {
	store := newFakeStore()
	store.seed("users",
		userDoc("u1", "Bruno", "bruno@example.com", "h1", domain.RoleUser),
		userDoc("u2", "Carla", "carla@example.com", "h2", domain.RoleUser),
	)
	auth := newFakeAuth()
	r := newResolver(auth, store)
	defer r.Stop()

	auth.emit(&domain.Identity{ID: "id-b", Email: "bruno@example.com"})
	if p := await(t, r); p == nil || p.ID != "u1" {
		t.Fatalf("expected u1, got %+v", p)
	}

	gate := make(chan struct{})
	store.mu.Lock()
	store.getGate = gate
	store.mu.Unlock()

	auth.emit(&domain.Identity{ID: "id-c", Email: "carla@example.com"})
	if p := r.Profile(); p != nil {
		t.Errorf("expected previous profile cleared while resolving, got %+v", p)
	}
	close(gate)
	if p := await(t, r); p == nil || p.ID != "u2" {
		t.Fatalf("expected u2, got %+v", p)
	}
}
