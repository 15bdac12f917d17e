package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/infra/observability"
	"github.com/boddenberg/occurrence-console/internal/port"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Subscriptions keeps one live subscription per remote collection and
// replaces the matching ViewState slice on every push.
type Subscriptions struct {
	store       port.DocumentStore
	view        *ViewState
	collections domain.Collections
	metrics     *observability.Metrics
	logger      *zap.Logger

	mu     sync.Mutex
	unsubs []func()
}

// NewSubscriptions creates the subscription set. Nothing is opened until Start.
func NewSubscriptions(store port.DocumentStore, view *ViewState, collections domain.Collections, metrics *observability.Metrics, logger *zap.Logger) *Subscriptions {
	return &Subscriptions{
		store:       store,
		view:        view,
		collections: collections,
		metrics:     metrics,
		logger:      logger,
	}
}

// Start opens all collection subscriptions concurrently. They stay open
// until Stop, independent of the session. If any fails to open, the ones
// already opened are closed again.
func (s *Subscriptions) Start(ctx context.Context) error {
	targets := []struct {
		collection string
		onSnapshot func([]domain.Document)
	}{
		{s.collections.Occurrences, s.onOccurrences},
		{s.collections.Users, s.onUsers},
		{s.collections.Lists, s.onLists},
	}

	unsubs := make([]func(), len(targets))
	var g errgroup.Group
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			// ctx, not a group context: subscriptions outlive Start
			unsub, err := s.store.Subscribe(ctx, t.collection, t.onSnapshot)
			if err != nil {
				return fmt.Errorf("subscribe %s: %w", t.collection, err)
			}
			unsubs[i] = unsub
			return nil
		})
	}
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range unsubs {
		if u == nil {
			continue
		}
		if err != nil {
			u()
			continue
		}
		s.unsubs = append(s.unsubs, u)
	}
	if err != nil {
		s.logger.Error("failed to open subscriptions", zap.Error(err))
		return err
	}
	s.logger.Info("subscriptions open",
		zap.String("occurrences", s.collections.Occurrences),
		zap.String("users", s.collections.Users),
		zap.String("lists", s.collections.Lists),
	)
	return nil
}

// Stop tears every subscription down.
func (s *Subscriptions) Stop() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

func (s *Subscriptions) onOccurrences(docs []domain.Document) {
	list := make([]domain.Occurrence, 0, len(docs))
	for _, d := range docs {
		list = append(list, domain.OccurrenceFromDocument(d))
	}
	SortOccurrences(list)
	s.view.ReplaceOccurrences(list)
	s.metrics.RecordSnapshot(s.collections.Occurrences, len(list))
	s.logger.Debug("occurrences pushed", zap.Int("count", len(list)))
}

func (s *Subscriptions) onUsers(docs []domain.Document) {
	list := make([]domain.UserProfile, 0, len(docs))
	for _, d := range docs {
		list = append(list, domain.UserFromDocument(d))
	}
	s.view.ReplaceUsers(list)
	s.metrics.RecordSnapshot(s.collections.Users, len(list))
	s.logger.Debug("users pushed", zap.Int("count", len(list)))
}

// onLists picks the shared configuration document out of the collection.
// A snapshot without it empties every list.
func (s *Subscriptions) onLists(docs []domain.Document) {
	var cfg domain.ListConfiguration
	found := false
	for _, d := range docs {
		if d.ID == s.collections.ListsDocument {
			cfg = domain.ListsFromDocument(d)
			found = true
			break
		}
	}
	if !found {
		s.logger.Warn("list configuration document missing",
			zap.String("collection", s.collections.Lists),
			zap.String("document", s.collections.ListsDocument),
		)
	}
	s.view.ReplaceLists(cfg)
	s.metrics.RecordSnapshot(s.collections.Lists, len(docs))
}

// SortOccurrences orders by date, most recent first; equal dates by id.
func SortOccurrences(list []domain.Occurrence) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].Date.Equal(list[j].Date) {
			return list[i].Date.After(list[j].Date)
		}
		return list[i].ID < list[j].ID
	})
}
