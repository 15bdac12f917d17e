package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/occurrence-console/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	if cfg.Backend != config.BackendSupabase {
		t.Errorf("expected supabase backend, got %q", cfg.Backend)
	}
	if cfg.PageSize != 10 {
		t.Errorf("expected page size 10, got %d", cfg.PageSize)
	}
	if cfg.Collections.Occurrences != "occurrences" {
		t.Errorf("unexpected occurrences collection %q", cfg.Collections.Occurrences)
	}
	if cfg.Collections.ListsDocument != "config" {
		t.Errorf("unexpected lists document %q", cfg.Collections.ListsDocument)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BACKEND", "FIREBASE")
	t.Setenv("PAGE_SIZE", "25")
	t.Setenv("SIGNIN_LOCKOUT", "2m")
	t.Setenv("SUPABASE_URL", "https://x.supabase.co/")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg := config.Load()

	if cfg.Backend != config.BackendFirebase {
		t.Errorf("expected firebase backend, got %q", cfg.Backend)
	}
	if cfg.PageSize != 25 {
		t.Errorf("expected page size 25, got %d", cfg.PageSize)
	}
	if cfg.SignInLockout != 2*time.Minute {
		t.Errorf("expected 2m lockout, got %s", cfg.SignInLockout)
	}
	if cfg.SupabaseURL != "https://x.supabase.co" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.SupabaseURL)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected fallback 3 retries, got %d", cfg.MaxRetries)
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "RELAY_FUNCTION=fromfile\nCOLLECTION_USERS=\"profiles\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RELAY_FUNCTION", "fromenv")
	t.Setenv("COLLECTION_USERS", "")
	os.Unsetenv("COLLECTION_USERS")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer os.Unsetenv("COLLECTION_USERS")

	cfg := config.Load()
	if cfg.RelayFunction != "fromenv" {
		t.Errorf("expected env to win, got %q", cfg.RelayFunction)
	}
	if cfg.Collections.Users != "profiles" {
		t.Errorf("expected value from file, got %q", cfg.Collections.Users)
	}
}
