package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/infra/observability"
	"github.com/boddenberg/occurrence-console/internal/service"

	"go.uber.org/zap"
)

func newSubscriptions(store *fakeStore, view *service.ViewState) *service.Subscriptions {
	return service.NewSubscriptions(store, view, domain.DefaultCollections(), observability.NewMetrics(), zap.NewNop())
}

func TestSubscriptions_ReplaceSlicesOnPush(t *testing.T) {
	store := newFakeStore()
	view := service.NewViewState()
	subs := newSubscriptions(store, view)
	if err := subs.Start(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer subs.Stop()

	select {
	case <-view.Loaded(service.SliceOccurrences):
		t.Fatal("occurrences must not be loaded before the first push")
	default:
	}

	store.seed("occurrences",
		domain.Document{ID: "old", Fields: map[string]any{"date": "2024-01-10", "status": "Open"}},
		domain.Document{ID: "new", Fields: map[string]any{"date": "2024-03-02", "status": "Resolved"}},
		domain.Document{ID: "mid", Fields: map[string]any{"date": "2024-02-15", "status": "Open"}},
	)
	store.push("occurrences")

	<-view.Loaded(service.SliceOccurrences)
	got := view.Occurrences()
	if len(got) != 3 || got[0].ID != "new" || got[1].ID != "mid" || got[2].ID != "old" {
		t.Fatalf("expected date-descending order, got %+v", got)
	}
	if view.Version(service.SliceOccurrences) != 1 {
		t.Errorf("expected version 1, got %d", view.Version(service.SliceOccurrences))
	}

	store.seed("lists",
		domain.Document{ID: "other", Fields: map[string]any{"categories": []any{"ignored"}}},
		domain.Document{ID: "config", Fields: map[string]any{"categories": []any{"Billing", "Logistics"}}},
	)
	store.push("lists")
	if cats := view.Lists().Categories; len(cats) != 2 || cats[0] != "Billing" {
		t.Errorf("expected categories from config doc, got %v", cats)
	}

	store.seed("users", userDoc("u1", "ana", "ana@example.com", "h", domain.RoleUser))
	store.push("users")
	if users := view.Users(); len(users) != 1 || users[0].Avatar != "A" {
		t.Errorf("unexpected users %+v", users)
	}
}

func TestSubscriptions_StopTearsDown(t *testing.T) {
	store := newFakeStore()
	subs := newSubscriptions(store, service.NewViewState())
	if err := subs.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	subs.Stop()

	for _, c := range []string{"occurrences", "users", "lists"} {
		if n := store.subscriberCount(c); n != 0 {
			t.Errorf("expected no subscribers on %s, got %d", c, n)
		}
	}
}

func TestSubscriptions_FailedOpenClosesOthers(t *testing.T) {
	store := newFakeStore()
	store.subscribeErr["users"] = errors.New("permission denied")
	subs := newSubscriptions(store, service.NewViewState())

	if err := subs.Start(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if store.subscriberCount("occurrences") != 0 || store.subscriberCount("lists") != 0 {
		t.Error("expected opened subscriptions to be closed again")
	}
}

func TestViewState_ReadsAreCopies(t *testing.T) {
	view := service.NewViewState()
	view.ReplaceOccurrences([]domain.Occurrence{{ID: "a", SaleID: "S-1"}})

	got := view.Occurrences()
	got[0].SaleID = "changed"

	if view.Occurrences()[0].SaleID != "S-1" {
		t.Error("mutating a read must not change the view state")
	}
}
