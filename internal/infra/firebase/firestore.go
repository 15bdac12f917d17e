// Package firebase provides the Firebase collaborators: Firestore as the
// realtime document store and the Identity Toolkit REST API as auth backend.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/infra/resilience"
	"github.com/boddenberg/occurrence-console/internal/port"

	"cloud.google.com/go/firestore"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var tracer = otel.Tracer("firebase")

// OpenFirestore connects to the project's default database. An empty
// credentialsFile falls back to application default credentials.
func OpenFirestore(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return client, nil
}

// Store implements port.DocumentStore on Firestore.
type Store struct {
	client *firestore.Client
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
	logger *zap.Logger
}

var _ port.DocumentStore = (*Store)(nil)

// NewStore creates a Firestore-backed document store.
func NewStore(client *firestore.Client, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Store {
	return &Store{client: client, cb: cb, cfg: cfg, logger: logger}
}

// Subscribe listens to a collection. Firestore delivers the full result set
// on every change and reconnects on its own, so a terminal iterator error
// is only logged.
func (s *Store) Subscribe(ctx context.Context, collection string, onSnapshot func([]domain.Document)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	it := s.client.Collection(collection).Snapshots(ctx)
	logger := s.logger.With(zap.String("collection", collection))
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer it.Stop()
		for {
			qs, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
					return
				}
				logger.Error("firestore: snapshot listener stopped", zap.Error(err))
				return
			}
			snaps, err := qs.Documents.GetAll()
			if err != nil {
				logger.Warn("firestore: snapshot read failed", zap.Error(err))
				continue
			}
			if ctx.Err() != nil {
				return
			}
			onSnapshot(toDocuments(snaps))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (s *Store) GetOnce(ctx context.Context, collection string) ([]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Firestore.GetOnce")
	defer span.End()
	span.SetAttributes(attribute.String("firestore.collection", collection))

	var docs []domain.Document
	err := resilience.RetryWithBackoff(ctx, s.cfg, func() error {
		snaps, err := resilience.Execute(s.cb, "firestore", func() ([]*firestore.DocumentSnapshot, error) {
			return s.client.Collection(collection).Documents(ctx).GetAll()
		})
		if err != nil {
			return err
		}
		docs = toDocuments(snaps)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, mapError(err, collection, "")
	}
	return docs, nil
}

func (s *Store) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	ctx, span := tracer.Start(ctx, "Firestore.Add")
	defer span.End()
	span.SetAttributes(attribute.String("firestore.collection", collection))

	if id, _ := fields["id"].(string); id != "" {
		data := make(map[string]any, len(fields))
		for k, v := range fields {
			if k != "id" {
				data[k] = v
			}
		}
		_, err := resilience.Execute(s.cb, "firestore", func() (*firestore.WriteResult, error) {
			return s.client.Collection(collection).Doc(id).Set(ctx, data, firestore.MergeAll)
		})
		if err != nil {
			span.RecordError(err)
			return "", mapError(err, collection, id)
		}
		return id, nil
	}

	ref, err := resilience.Execute(s.cb, "firestore", func() (*firestore.DocumentRef, error) {
		ref, _, err := s.client.Collection(collection).Add(ctx, fields)
		return ref, err
	})
	if err != nil {
		span.RecordError(err)
		return "", mapError(err, collection, "")
	}
	return ref.ID, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	ctx, span := tracer.Start(ctx, "Firestore.Update")
	defer span.End()
	span.SetAttributes(attribute.String("firestore.collection", collection), attribute.String("firestore.id", id))

	updates := toUpdates(fields)
	if len(updates) == 0 {
		return nil
	}
	_, err := resilience.Execute(s.cb, "firestore", func() (*firestore.WriteResult, error) {
		return s.client.Collection(collection).Doc(id).Update(ctx, updates)
	})
	if err != nil {
		span.RecordError(err)
		return mapError(err, collection, id)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	ctx, span := tracer.Start(ctx, "Firestore.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("firestore.collection", collection), attribute.String("firestore.id", id))

	_, err := resilience.Execute(s.cb, "firestore", func() (*firestore.WriteResult, error) {
		return s.client.Collection(collection).Doc(id).Delete(ctx, firestore.Exists)
	})
	if err != nil {
		span.RecordError(err)
		return mapError(err, collection, id)
	}
	return nil
}

func toDocuments(snaps []*firestore.DocumentSnapshot) []domain.Document {
	docs := make([]domain.Document, 0, len(snaps))
	for _, snap := range snaps {
		if snap == nil || !snap.Exists() {
			continue
		}
		docs = append(docs, domain.Document{ID: snap.Ref.ID, Fields: snap.Data()})
	}
	return docs
}

// toUpdates turns a field map into top-level field updates in key order.
func toUpdates(fields map[string]any) []firestore.Update {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "id" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	updates := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: fields[k]})
	}
	return updates
}

func mapError(err error, collection, id string) error {
	var notFound *domain.ErrNotFound
	var open *domain.ErrCircuitOpen
	switch {
	case errors.As(err, &notFound), errors.As(err, &open):
		return err
	case status.Code(err) == codes.NotFound:
		return &domain.ErrNotFound{Resource: collection, ID: id}
	case errors.Is(err, context.Canceled):
		return err
	}
	return &domain.ErrExternalService{Service: "firestore", Err: err}
}
