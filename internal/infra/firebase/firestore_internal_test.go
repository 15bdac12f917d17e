package firebase

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/occurrence-console/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToUpdates_SkipsIDAndSortsKeys(t *testing.T) {
	updates := toUpdates(map[string]any{"status": "Resolved", "id": "x", "category": "Billing"})
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[0].FieldPath[0] != "category" || updates[1].FieldPath[0] != "status" {
		t.Errorf("unexpected order %+v", updates)
	}
}

func TestMapError(t *testing.T) {
	var notFound *domain.ErrNotFound
	if err := mapError(status.Error(codes.NotFound, "no doc"), "occurrences", "o1"); !errors.As(err, &notFound) || notFound.ID != "o1" {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	var ext *domain.ErrExternalService
	if err := mapError(status.Error(codes.PermissionDenied, "nope"), "occurrences", "o1"); !errors.As(err, &ext) {
		t.Errorf("expected ErrExternalService, got %v", err)
	}

	if err := mapError(context.Canceled, "occurrences", ""); !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation to pass through, got %v", err)
	}
}
