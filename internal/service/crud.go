package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/infra/observability"
	"github.com/boddenberg/occurrence-console/internal/infra/resilience"
	"github.com/boddenberg/occurrence-console/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var crudTracer = otel.Tracer("service/crud")

// ProfileSource reports the signed-in user's profile.
type ProfileSource interface {
	Profile() *domain.UserProfile
}

// Orchestrator turns create/update/delete intents into remote writes. It
// never touches ViewState: results become visible with the next push.
type Orchestrator struct {
	store       port.DocumentStore
	view        *ViewState
	session     ProfileSource
	collections domain.Collections
	bulkhead    *resilience.Bulkhead
	metrics     *observability.Metrics
	logger      *zap.Logger

	listMu sync.Mutex // serializes read-modify-write of the shared lists
}

// NewOrchestrator creates the write orchestrator. view is only read, for
// list membership warnings.
func NewOrchestrator(store port.DocumentStore, view *ViewState, session ProfileSource, collections domain.Collections, bulkhead *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:       store,
		view:        view,
		session:     session,
		collections: collections,
		bulkhead:    bulkhead,
		metrics:     metrics,
		logger:      logger,
	}
}

// ============================================================
// Occurrences
// ============================================================

func (o *Orchestrator) CreateOccurrence(ctx context.Context, in domain.OccurrenceInput) (string, error) {
	ctx, span := crudTracer.Start(ctx, "Orchestrator.CreateOccurrence")
	defer span.End()

	if err := in.Validate(); err != nil {
		return "", err
	}
	o.warnOffList(in)

	var id string
	err := o.write(ctx, o.collections.Occurrences, "create", func(ctx context.Context) error {
		var err error
		id, err = o.store.Add(ctx, o.collections.Occurrences, in.Fields())
		return err
	})
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("occurrence.id", id))
	return id, nil
}

func (o *Orchestrator) UpdateOccurrence(ctx context.Context, id string, in domain.OccurrenceInput) error {
	ctx, span := crudTracer.Start(ctx, "Orchestrator.UpdateOccurrence")
	defer span.End()
	span.SetAttributes(attribute.String("occurrence.id", id))

	if strings.TrimSpace(id) == "" {
		return &domain.ErrValidation{Field: "id", Message: "is required"}
	}
	if err := in.Validate(); err != nil {
		return err
	}
	o.warnOffList(in)

	return o.write(ctx, o.collections.Occurrences, "update", func(ctx context.Context) error {
		return o.store.Update(ctx, o.collections.Occurrences, id, in.Fields())
	})
}

func (o *Orchestrator) DeleteOccurrence(ctx context.Context, id string) error {
	ctx, span := crudTracer.Start(ctx, "Orchestrator.DeleteOccurrence")
	defer span.End()
	span.SetAttributes(attribute.String("occurrence.id", id))

	if strings.TrimSpace(id) == "" {
		return &domain.ErrValidation{Field: "id", Message: "is required"}
	}
	return o.write(ctx, o.collections.Occurrences, "delete", func(ctx context.Context) error {
		return o.store.Delete(ctx, o.collections.Occurrences, id)
	})
}

// warnOffList logs values missing from the shared lists. Membership is
// advisory; the write goes ahead.
func (o *Orchestrator) warnOffList(in domain.OccurrenceInput) {
	lists := o.view.Lists()
	checks := []struct {
		list  domain.ListName
		value string
	}{
		{domain.ListCategories, in.Category},
		{domain.ListDetectionAreas, in.DetectionArea},
		{domain.ListOriginAreas, in.OriginArea},
		{domain.ListSalespeople, in.Salesperson},
	}
	for _, c := range checks {
		if len(lists.Get(c.list)) > 0 && !lists.Contains(c.list, c.value) {
			o.logger.Warn("value not in shared list",
				zap.String("list", string(c.list)),
				zap.String("value", c.value),
			)
		}
	}
}

// ============================================================
// Users (administrators only)
// ============================================================

func (o *Orchestrator) CreateUser(ctx context.Context, in domain.UserInput) (string, error) {
	ctx, span := crudTracer.Start(ctx, "Orchestrator.CreateUser")
	defer span.End()

	if err := o.requireAdmin("create users"); err != nil {
		return "", err
	}
	if err := in.Validate(true); err != nil {
		return "", err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return "", err
	}

	var id string
	err = o.write(ctx, o.collections.Users, "create", func(ctx context.Context) error {
		var err error
		id, err = o.store.Add(ctx, o.collections.Users, in.Fields(hash))
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateUser writes the profile fields. With no new password the stored
// value is read back and written again, so it is never blanked.
func (o *Orchestrator) UpdateUser(ctx context.Context, id string, in domain.UserInput) error {
	ctx, span := crudTracer.Start(ctx, "Orchestrator.UpdateUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id))

	if err := o.requireAdmin("update users"); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return &domain.ErrValidation{Field: "id", Message: "is required"}
	}
	if err := in.Validate(false); err != nil {
		return err
	}

	var password string
	if in.Password == "" {
		stored, err := o.storedPassword(ctx, id)
		if err != nil {
			return err
		}
		password = stored
	} else {
		hash, err := hashPassword(in.Password)
		if err != nil {
			return err
		}
		password = hash
	}

	return o.write(ctx, o.collections.Users, "update", func(ctx context.Context) error {
		return o.store.Update(ctx, o.collections.Users, id, in.Fields(password))
	})
}

// storedPassword reads the current password straight from the store; the
// pushed view may lag behind.
func (o *Orchestrator) storedPassword(ctx context.Context, id string) (string, error) {
	docs, err := o.store.GetOnce(ctx, o.collections.Users)
	if err != nil {
		o.metrics.IncrExternalError("document_store")
		return "", fmt.Errorf("read stored password: %w", err)
	}
	for _, d := range docs {
		if d.ID == id {
			return domain.UserFromDocument(d).Password, nil
		}
	}
	return "", &domain.ErrNotFound{Resource: o.collections.Users, ID: id}
}

func (o *Orchestrator) DeleteUser(ctx context.Context, id string) error {
	ctx, span := crudTracer.Start(ctx, "Orchestrator.DeleteUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id))

	if err := o.requireAdmin("delete users"); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return &domain.ErrValidation{Field: "id", Message: "is required"}
	}
	if p := o.session.Profile(); p != nil && p.ID == id {
		return &domain.ErrForbidden{Action: "delete your own profile"}
	}

	return o.write(ctx, o.collections.Users, "delete", func(ctx context.Context) error {
		return o.store.Delete(ctx, o.collections.Users, id)
	})
}

func (o *Orchestrator) requireAdmin(action string) error {
	p := o.session.Profile()
	if p == nil {
		return &domain.ErrUnauthorized{Message: "sign in required"}
	}
	if !p.IsAdmin() {
		return &domain.ErrForbidden{Action: action}
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ============================================================
// Shared lists
// ============================================================

// SetList replaces one named list on the shared configuration document,
// creating the document when the store has none yet.
func (o *Orchestrator) SetList(ctx context.Context, name domain.ListName, items []string) error {
	ctx, span := crudTracer.Start(ctx, "Orchestrator.SetList")
	defer span.End()
	span.SetAttributes(attribute.String("list.name", string(name)))

	if !name.Valid() {
		return &domain.ErrValidation{Field: "list", Message: fmt.Sprintf("unknown list %q", name)}
	}
	o.listMu.Lock()
	defer o.listMu.Unlock()
	return o.writeList(ctx, name, items)
}

// AddListItem appends item to the list as currently stored.
func (o *Orchestrator) AddListItem(ctx context.Context, name domain.ListName, item string) error {
	ctx, span := crudTracer.Start(ctx, "Orchestrator.AddListItem")
	defer span.End()
	span.SetAttributes(attribute.String("list.name", string(name)))

	if !name.Valid() {
		return &domain.ErrValidation{Field: "list", Message: fmt.Sprintf("unknown list %q", name)}
	}
	item = strings.TrimSpace(item)
	if item == "" {
		return &domain.ErrValidation{Field: "item", Message: "is required"}
	}

	o.listMu.Lock()
	defer o.listMu.Unlock()
	current, err := o.storedList(ctx, name)
	if err != nil {
		return err
	}
	for _, v := range current {
		if v == item {
			return nil
		}
	}
	return o.writeList(ctx, name, append(current, item))
}

// RemoveListItem drops item from the list as currently stored. Occurrences
// that already carry the value keep it.
func (o *Orchestrator) RemoveListItem(ctx context.Context, name domain.ListName, item string) error {
	ctx, span := crudTracer.Start(ctx, "Orchestrator.RemoveListItem")
	defer span.End()
	span.SetAttributes(attribute.String("list.name", string(name)))

	if !name.Valid() {
		return &domain.ErrValidation{Field: "list", Message: fmt.Sprintf("unknown list %q", name)}
	}

	o.listMu.Lock()
	defer o.listMu.Unlock()
	current, err := o.storedList(ctx, name)
	if err != nil {
		return err
	}
	next := make([]string, 0, len(current))
	found := false
	for _, v := range current {
		if v == item {
			found = true
			continue
		}
		next = append(next, v)
	}
	if !found {
		return &domain.ErrNotFound{Resource: "list item", ID: item}
	}
	return o.writeList(ctx, name, next)
}

// storedList reads one list straight from the store rather than from the
// last push, so edits issued before the next push build on each other.
// Callers hold listMu.
func (o *Orchestrator) storedList(ctx context.Context, name domain.ListName) ([]string, error) {
	docs, err := o.store.GetOnce(ctx, o.collections.Lists)
	if err != nil {
		o.logger.Warn("shared list read failed", zap.String("list", string(name)), zap.Error(err))
		return nil, err
	}
	for _, d := range docs {
		if d.ID == o.collections.ListsDocument {
			return domain.ListsFromDocument(d).Get(name), nil
		}
	}
	return []string{}, nil
}

// writeList writes the cleaned list. Callers hold listMu.
func (o *Orchestrator) writeList(ctx context.Context, name domain.ListName, items []string) error {
	cleaned := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if _, dup := seen[it]; dup {
			continue
		}
		seen[it] = struct{}{}
		cleaned = append(cleaned, it)
	}

	return o.write(ctx, o.collections.Lists, "update", func(ctx context.Context) error {
		err := o.store.Update(ctx, o.collections.Lists, o.collections.ListsDocument, map[string]any{
			string(name): cleaned,
		})
		var notFound *domain.ErrNotFound
		if !errors.As(err, &notFound) {
			return err
		}
		o.logger.Info("creating shared list document",
			zap.String("collection", o.collections.Lists),
			zap.String("id", o.collections.ListsDocument),
		)
		_, err = o.store.Add(ctx, o.collections.Lists, map[string]any{
			"id":         o.collections.ListsDocument,
			string(name): cleaned,
		})
		return err
	})
}

// write runs one remote call under the bulkhead and records its outcome.
func (o *Orchestrator) write(ctx context.Context, collection, op string, fn func(context.Context) error) error {
	if err := o.bulkhead.Acquire(ctx); err != nil {
		return err
	}
	defer o.bulkhead.Release()

	start := time.Now()
	err := fn(ctx)
	o.metrics.RecordDuration(collection+"."+op, time.Since(start))

	if err != nil {
		o.metrics.IncrWrite(collection, op, "error")
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			o.logger.Info("remote write target missing",
				zap.String("collection", collection),
				zap.String("op", op),
				zap.Error(err),
			)
		} else {
			o.metrics.IncrExternalError("document_store")
			o.logger.Warn("remote write failed",
				zap.String("collection", collection),
				zap.String("op", op),
				zap.Error(err),
			)
		}
		return err
	}
	o.metrics.IncrWrite(collection, op, "ok")
	o.logger.Info("remote write accepted", zap.String("collection", collection), zap.String("op", op))
	return nil
}
