// Package port defines the interfaces (ports) for the external collaborators.
// Following hexagonal architecture, these ports decouple the service layer
// from the concrete auth, document-store and function backends.
package port

import (
	"context"
	"encoding/json"

	"github.com/boddenberg/occurrence-console/internal/domain"
)

// AuthProvider is the hosted authentication collaborator.
type AuthProvider interface {
	// Subscribe registers fn for session changes (sign-in, sign-out, token
	// refresh). fn is called once immediately with the current identity,
	// nil when signed out. The returned func removes the subscription.
	Subscribe(fn func(*domain.Identity)) (unsubscribe func())
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
	// AccessToken returns the current bearer token, empty when signed out.
	AccessToken() string
}

// DocumentStore is the realtime multi-collection document database.
type DocumentStore interface {
	// Subscribe delivers a full snapshot of collection on every change until
	// unsubscribe is called or ctx ends. Deliveries for one subscription are
	// never concurrent.
	Subscribe(ctx context.Context, collection string, onSnapshot func([]domain.Document)) (unsubscribe func(), err error)
	// Add creates a document and returns its id. A string "id" field names
	// the document instead of a generated id.
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Update writes the given fields only. A missing document is *domain.ErrNotFound.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete removes a document. A missing document is *domain.ErrNotFound.
	Delete(ctx context.Context, collection, id string) error
	GetOnce(ctx context.Context, collection string) ([]domain.Document, error)
}

// FunctionInvoker calls a named remote function.
type FunctionInvoker interface {
	Call(ctx context.Context, name string, payload any) (json.RawMessage, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
