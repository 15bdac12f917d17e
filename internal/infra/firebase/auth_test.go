package firebase_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/infra/firebase"
	"github.com/boddenberg/occurrence-console/internal/infra/resilience"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

func newBackend(srvURL string) *firebase.AuthBackend {
	return firebase.NewAuthBackend(
		&http.Client{Timeout: 2 * time.Second},
		firebase.AuthConfig{APIKey: "web-key", IdentityURL: srvURL + "/v1", TokenURL: srvURL + "/token-api"},
		resilience.NewCircuitBreaker("test", zap.NewNop()),
		zap.NewNop(),
	)
}

func writeGoogleError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

func TestAuthBackend_SignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts:signInWithPassword" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "web-key" {
			t.Error("expected api key in query")
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["returnSecureToken"] != true {
			t.Error("expected returnSecureToken")
		}
		switch body["email"] {
		case "ana@example.com":
			w.Write([]byte(`{"idToken":"id-1","refreshToken":"r-1","expiresIn":"3600","localId":"uid-1","email":"ana@example.com"}`))
		case "ghost@example.com":
			writeGoogleError(w, http.StatusBadRequest, "EMAIL_NOT_FOUND")
		case "spam@example.com":
			writeGoogleError(w, http.StatusBadRequest, "TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account has been temporarily disabled")
		case "off@example.com":
			writeGoogleError(w, http.StatusBadRequest, "USER_DISABLED")
		default:
			writeGoogleError(w, http.StatusBadRequest, "INVALID_LOGIN_CREDENTIALS")
		}
	}))
	defer srv.Close()

	b := newBackend(srv.URL)

	tok, err := b.SignIn(context.Background(), "ana@example.com", "pw")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tok.AccessToken != "id-1" || tok.ExpiresIn != time.Hour || tok.Identity.ID != "uid-1" {
		t.Errorf("unexpected token %+v", tok)
	}

	tests := []struct {
		email string
		kind  domain.AuthErrorKind
	}{
		{"ghost@example.com", domain.AuthUnknownAccount},
		{"spam@example.com", domain.AuthRateLimited},
		{"off@example.com", domain.AuthDisabled},
		{"bad@example.com", domain.AuthInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			_, err := b.SignIn(context.Background(), tt.email, "pw")
			var authErr *domain.ErrAuth
			if !errors.As(err, &authErr) {
				t.Fatalf("expected ErrAuth, got %v", err)
			}
			if authErr.Kind != tt.kind {
				t.Errorf("expected %s, got %s", tt.kind, authErr.Kind)
			}
		})
	}
}

func TestAuthBackend_RefreshReadsEmailFromToken(t *testing.T) {
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "uid-1",
		"email": "ana@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token-api/token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "refresh_token" {
			t.Errorf("expected refresh_token grant, got %v", r.PostForm)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id_token":      idToken,
			"refresh_token": "r-2",
			"expires_in":    "3600",
			"user_id":       "uid-1",
		})
	}))
	defer srv.Close()

	tok, err := newBackend(srv.URL).Refresh(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tok.Identity.Email != "ana@example.com" || tok.RefreshToken != "r-2" {
		t.Errorf("unexpected token %+v", tok)
	}
}

func TestAuthBackend_SendPasswordReset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["requestType"] != "PASSWORD_RESET" {
			t.Errorf("unexpected request type %q", body["requestType"])
		}
		if body["email"] == "ghost@example.com" {
			writeGoogleError(w, http.StatusBadRequest, "EMAIL_NOT_FOUND")
			return
		}
		w.Write([]byte(`{"email":"ana@example.com"}`))
	}))
	defer srv.Close()

	b := newBackend(srv.URL)
	if err := b.SendPasswordReset(context.Background(), "ana@example.com"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	var authErr *domain.ErrAuth
	if err := b.SendPasswordReset(context.Background(), "ghost@example.com"); !errors.As(err, &authErr) || authErr.Kind != domain.AuthUnknownAccount {
		t.Errorf("expected unknown account, got %v", err)
	}
}

func TestAuthBackend_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newBackend(srv.URL).SignIn(context.Background(), "ana@example.com", "pw")
	var authErr *domain.ErrAuth
	if !errors.As(err, &authErr) || authErr.Kind != domain.AuthUnavailable {
		t.Errorf("expected unavailable, got %v", err)
	}
}
