package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/boddenberg/occurrence-console/internal/domain"
)

// --- Mocks ---

type writeCall struct {
	collection string
	id         string
	fields     map[string]any
}

// fakeStore keeps documents per collection. Writes change the stored docs
// but reach subscribers only when a test calls push.
type fakeStore struct {
	mu      sync.Mutex
	docs    map[string][]domain.Document
	subs    map[string]map[int]func([]domain.Document)
	nextSub int
	nextID  int

	adds    []writeCall
	updates []writeCall
	deletes []writeCall

	getErr       error
	subscribeErr map[string]error
	getGate      chan struct{} // when set, GetOnce waits on it
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:         map[string][]domain.Document{},
		subs:         map[string]map[int]func([]domain.Document){},
		subscribeErr: map[string]error{},
	}
}

func (f *fakeStore) seed(collection string, docs ...domain.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[collection] = append(f.docs[collection], docs...)
}

func (f *fakeStore) push(collection string) {
	f.mu.Lock()
	docs := append([]domain.Document(nil), f.docs[collection]...)
	var fns []func([]domain.Document)
	for _, fn := range f.subs[collection] {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(docs)
	}
}

func (f *fakeStore) subscriberCount(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[collection])
}

func (f *fakeStore) Subscribe(_ context.Context, collection string, fn func([]domain.Document)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.subscribeErr[collection]; err != nil {
		return nil, err
	}
	if f.subs[collection] == nil {
		f.subs[collection] = map[int]func([]domain.Document){}
	}
	id := f.nextSub
	f.nextSub++
	f.subs[collection][id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs[collection], id)
	}, nil
}

func (f *fakeStore) Add(_ context.Context, collection string, fields map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := fields["id"].(string)
	if id == "" {
		f.nextID++
		id = fmt.Sprintf("new-%d", f.nextID)
	}
	f.adds = append(f.adds, writeCall{collection: collection, id: id, fields: fields})
	f.docs[collection] = append(f.docs[collection], domain.Document{ID: id, Fields: fields})
	return id, nil
}

func (f *fakeStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, writeCall{collection: collection, id: id, fields: fields})
	for i, d := range f.docs[collection] {
		if d.ID == id {
			merged := map[string]any{}
			for k, v := range d.Fields {
				merged[k] = v
			}
			for k, v := range fields {
				merged[k] = v
			}
			f.docs[collection][i].Fields = merged
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: collection, ID: id}
}

func (f *fakeStore) Delete(_ context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, writeCall{collection: collection, id: id})
	docs := f.docs[collection]
	for i, d := range docs {
		if d.ID == id {
			f.docs[collection] = append(docs[:i:i], docs[i+1:]...)
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: collection, ID: id}
}

func (f *fakeStore) GetOnce(ctx context.Context, collection string) ([]domain.Document, error) {
	f.mu.Lock()
	gate := f.getGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return append([]domain.Document(nil), f.docs[collection]...), nil
}

// fakeAuth publishes whatever identity the test emits.
type fakeAuth struct {
	mu        sync.Mutex
	current   *domain.Identity
	subs      map[int]func(*domain.Identity)
	next      int
	signInErr error
	resets    []string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{subs: map[int]func(*domain.Identity){}}
}

func (a *fakeAuth) Subscribe(fn func(*domain.Identity)) func() {
	a.mu.Lock()
	id := a.next
	a.next++
	a.subs[id] = fn
	cur := a.current
	a.mu.Unlock()
	fn(cur)
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subs, id)
	}
}

func (a *fakeAuth) emit(id *domain.Identity) {
	a.mu.Lock()
	a.current = id
	var fns []func(*domain.Identity)
	for i := 0; i < a.next; i++ {
		if fn, ok := a.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

func (a *fakeAuth) SignIn(_ context.Context, email, _ string) error {
	if a.signInErr != nil {
		return a.signInErr
	}
	a.emit(&domain.Identity{ID: "uid-" + email, Email: email})
	return nil
}

func (a *fakeAuth) SignOut(context.Context) error {
	a.emit(nil)
	return nil
}

func (a *fakeAuth) SendPasswordReset(_ context.Context, email string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resets = append(a.resets, email)
	return nil
}

func (a *fakeAuth) AccessToken() string { return "" }

// fakeFunctions records relay calls.
type fakeFunctions struct {
	mu    sync.Mutex
	calls []any
	err   error
}

func (f *fakeFunctions) Call(_ context.Context, _ string, payload any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, payload)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"ok":true}`), nil
}

// fixedProfile is a ProfileSource for orchestrator tests.
type fixedProfile struct {
	profile *domain.UserProfile
}

func (p fixedProfile) Profile() *domain.UserProfile { return p.profile }

func userDoc(id, name, email, password string, role domain.Role) domain.Document {
	return domain.Document{ID: id, Fields: map[string]any{
		"name": name, "email": email, "password": password, "role": string(role),
	}}
}
