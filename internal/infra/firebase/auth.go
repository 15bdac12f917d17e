package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/infra/identity"
	"github.com/boddenberg/occurrence-console/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Default Google endpoints; overridable for the auth emulator and tests.
const (
	DefaultIdentityURL = "https://identitytoolkit.googleapis.com/v1"
	DefaultTokenURL    = "https://securetoken.googleapis.com/v1"
)

// AuthConfig configures the Identity Toolkit backend.
type AuthConfig struct {
	APIKey      string
	IdentityURL string
	TokenURL    string
}

// AuthBackend implements identity.Backend with the Identity Toolkit REST API.
type AuthBackend struct {
	httpClient *http.Client
	cfg        AuthConfig
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

var _ identity.Backend = (*AuthBackend)(nil)

// NewAuthBackend creates the Identity Toolkit backend.
func NewAuthBackend(httpClient *http.Client, cfg AuthConfig, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *AuthBackend {
	if cfg.IdentityURL == "" {
		cfg.IdentityURL = DefaultIdentityURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	cfg.IdentityURL = strings.TrimRight(cfg.IdentityURL, "/")
	cfg.TokenURL = strings.TrimRight(cfg.TokenURL, "/")
	return &AuthBackend{httpClient: httpClient, cfg: cfg, cb: cb, logger: logger}
}

func (a *AuthBackend) Name() string { return "firebase" }

type signInResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

type googleError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type rawResponse struct {
	status int
	body   []byte
}

func (a *AuthBackend) SignIn(ctx context.Context, email, password string) (*identity.Token, error) {
	ctx, span := tracer.Start(ctx, "Firebase.Auth.SignIn")
	defer span.End()

	resp, err := a.postJSON(ctx, a.cfg.IdentityURL+"/accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, authError(resp)
	}

	var out signInResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, &domain.ErrAuth{Kind: domain.AuthUnavailable, Err: fmt.Errorf("decode sign-in: %w", err)}
	}
	return &identity.Token{
		AccessToken:  out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    seconds(out.ExpiresIn),
		Identity:     domain.Identity{ID: out.LocalID, Email: out.Email},
	}, nil
}

// Refresh exchanges a refresh token. The response carries no email, so the
// identity is read from the new ID token when possible.
func (a *AuthBackend) Refresh(ctx context.Context, refreshToken string) (*identity.Token, error) {
	ctx, span := tracer.Start(ctx, "Firebase.Auth.Refresh")
	defer span.End()

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	resp, err := a.do(ctx, a.cfg.TokenURL+"/token", "application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, authError(resp)
	}

	var out refreshResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, &domain.ErrAuth{Kind: domain.AuthUnavailable, Err: fmt.Errorf("decode refresh: %w", err)}
	}
	tok := &identity.Token{
		AccessToken:  out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    seconds(out.ExpiresIn),
		Identity:     domain.Identity{ID: out.UserID},
	}
	if id, _, err := identity.IdentityFromToken(out.IDToken); err == nil {
		if tok.Identity.ID == "" {
			tok.Identity.ID = id.ID
		}
		tok.Identity.Email = id.Email
	}
	return tok, nil
}

// SignOut is local only: ID tokens cannot be revoked from the client.
func (a *AuthBackend) SignOut(context.Context, string) error { return nil }

func (a *AuthBackend) SendPasswordReset(ctx context.Context, email string) error {
	ctx, span := tracer.Start(ctx, "Firebase.Auth.SendPasswordReset")
	defer span.End()

	resp, err := a.postJSON(ctx, a.cfg.IdentityURL+"/accounts:sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	})
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK {
		return authError(resp)
	}
	return nil
}

func (a *AuthBackend) postJSON(ctx context.Context, endpoint string, payload any) (*rawResponse, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return a.do(ctx, endpoint, "application/json", raw)
}

// do sends one request with the API key. Transport failures and 5xx trip the
// breaker; 4xx answers are returned for classification.
func (a *AuthBackend) do(ctx context.Context, endpoint, contentType string, body []byte) (*rawResponse, error) {
	resp, err := resilience.Execute(a.cb, "firebase-auth", func() (*rawResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?key="+url.QueryEscape(a.cfg.APIKey), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)

		httpResp, err := a.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()
		b, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, err
		}
		if httpResp.StatusCode >= 500 {
			return nil, fmt.Errorf("identity toolkit returned %d", httpResp.StatusCode)
		}
		return &rawResponse{status: httpResp.StatusCode, body: b}, nil
	})
	if err != nil {
		a.logger.Warn("firebase auth: request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, &domain.ErrAuth{Kind: domain.AuthUnavailable, Err: err}
	}
	return resp, nil
}

// authError maps Identity Toolkit error codes onto the auth taxonomy. The
// message may carry a suffix ("TOO_MANY_ATTEMPTS_TRY_LATER : ...").
func authError(resp *rawResponse) error {
	var e googleError
	_ = json.Unmarshal(resp.body, &e)
	code := strings.TrimSpace(strings.SplitN(e.Error.Message, ":", 2)[0])
	err := fmt.Errorf("identity toolkit %d: %s", resp.status, e.Error.Message)

	switch code {
	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL", "INVALID_REFRESH_TOKEN", "TOKEN_EXPIRED":
		return &domain.ErrAuth{Kind: domain.AuthInvalidCredentials, Err: err}
	case "EMAIL_NOT_FOUND", "USER_NOT_FOUND":
		return &domain.ErrAuth{Kind: domain.AuthUnknownAccount, Err: err}
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return &domain.ErrAuth{Kind: domain.AuthRateLimited, Err: err}
	case "USER_DISABLED":
		return &domain.ErrAuth{Kind: domain.AuthDisabled, Err: err}
	}
	if resp.status == http.StatusTooManyRequests {
		return &domain.ErrAuth{Kind: domain.AuthRateLimited, Err: err}
	}
	return &domain.ErrAuth{Kind: domain.AuthUnavailable, Err: err}
}

func seconds(s string) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return time.Duration(n) * time.Second
}
