package observability_test

import (
	"testing"

	"github.com/boddenberg/occurrence-console/internal/infra/observability"
)

func TestMetrics_Counters(t *testing.T) {
	m := observability.NewMetrics()

	m.RecordSnapshot("occurrences", 12)
	m.RecordSnapshot("occurrences", 13)
	m.IncrAuthEvent("signed_in")
	m.IncrRelay("error")

	got := m.Counters("occurrences", "users")

	if got["pushes_occurrences"] != 2 {
		t.Errorf("expected 2 occurrence pushes, got %d", got["pushes_occurrences"])
	}
	if got["pushes_users"] != 0 {
		t.Errorf("expected 0 user pushes, got %d", got["pushes_users"])
	}
	if got["auth_signed_in"] != 1 {
		t.Errorf("expected 1 sign-in, got %d", got["auth_signed_in"])
	}
	if got["relay_error"] != 1 || got["relay_ok"] != 0 {
		t.Errorf("unexpected relay counters %v", got)
	}
}

func TestNewMetrics_Repeatable(t *testing.T) {
	// private registries must not collide
	_ = observability.NewMetrics()
	_ = observability.NewMetrics()
}
