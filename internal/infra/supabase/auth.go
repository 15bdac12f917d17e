package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/infra/identity"
	"github.com/boddenberg/occurrence-console/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ============================================================
// GoTrue auth backend
// ============================================================

// AuthBackend implements identity.Backend against GoTrue (/auth/v1).
type AuthBackend struct {
	client *Client
	cb     *gobreaker.CircuitBreaker
}

var _ identity.Backend = (*AuthBackend)(nil)

// NewAuthBackend creates the GoTrue backend. It has its own breaker so auth
// outages do not block table reads.
func NewAuthBackend(client *Client, cb *gobreaker.CircuitBreaker) *AuthBackend {
	return &AuthBackend{client: client, cb: cb}
}

func (a *AuthBackend) Name() string { return "supabase" }

type gotrueSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type gotrueError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
}

type authResponse struct {
	status int
	body   []byte
}

func (a *AuthBackend) SignIn(ctx context.Context, email, password string) (*identity.Token, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Auth.SignIn")
	defer span.End()

	resp, err := a.post(ctx, "/auth/v1/token?grant_type=password", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	return a.session(resp)
}

func (a *AuthBackend) Refresh(ctx context.Context, refreshToken string) (*identity.Token, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Auth.Refresh")
	defer span.End()

	resp, err := a.post(ctx, "/auth/v1/token?grant_type=refresh_token", "", map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return nil, err
	}
	return a.session(resp)
}

func (a *AuthBackend) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "Supabase.Auth.SignOut")
	defer span.End()

	resp, err := a.post(ctx, "/auth/v1/logout", accessToken, map[string]string{})
	if err != nil {
		return err
	}
	// an already expired session is as good as logged out
	if resp.status >= 400 && resp.status != http.StatusUnauthorized && resp.status != http.StatusNotFound {
		return authError(resp)
	}
	return nil
}

func (a *AuthBackend) SendPasswordReset(ctx context.Context, email string) error {
	ctx, span := tracer.Start(ctx, "Supabase.Auth.SendPasswordReset")
	defer span.End()

	resp, err := a.post(ctx, "/auth/v1/recover", "", map[string]string{"email": email})
	if err != nil {
		return err
	}
	if resp.status >= 300 {
		return authError(resp)
	}
	return nil
}

func (a *AuthBackend) session(resp *authResponse) (*identity.Token, error) {
	if resp.status >= 300 {
		return nil, authError(resp)
	}
	var s gotrueSession
	if err := json.Unmarshal(resp.body, &s); err != nil {
		return nil, &domain.ErrAuth{Kind: domain.AuthUnavailable, Err: fmt.Errorf("decode session: %w", err)}
	}
	tok := &identity.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresIn:    time.Duration(s.ExpiresIn) * time.Second,
		Identity:     domain.Identity{ID: s.User.ID, Email: s.User.Email},
	}
	if tok.Identity.ID == "" || tok.ExpiresIn == 0 {
		if id, ttl, err := identity.IdentityFromToken(s.AccessToken); err == nil {
			if tok.Identity.ID == "" {
				tok.Identity = id
			}
			if tok.ExpiresIn == 0 {
				tok.ExpiresIn = ttl
			}
		}
	}
	return tok, nil
}

// post sends a GoTrue request. Transport failures and 5xx go through the
// breaker; 4xx answers are returned for the caller to classify.
func (a *AuthBackend) post(ctx context.Context, path, accessToken string, payload any) (*authResponse, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	resp, err := resilience.Execute(a.cb, "supabase-auth", func() (*authResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.client.baseURL+path, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		bearer := a.client.apiKey
		if accessToken != "" {
			bearer = accessToken
		}
		req.Header.Set("apikey", a.client.apiKey)
		req.Header.Set("Authorization", "Bearer "+bearer)
		req.Header.Set("Content-Type", "application/json")

		httpResp, err := a.client.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()
		body, err := readBody(httpResp)
		if err != nil {
			return nil, err
		}
		if httpResp.StatusCode >= 500 {
			return nil, fmt.Errorf("gotrue returned %d: %s", httpResp.StatusCode, string(body))
		}
		return &authResponse{status: httpResp.StatusCode, body: body}, nil
	})
	if err != nil {
		a.client.logger.Warn("supabase auth: request failed", zap.String("path", path), zap.Error(err))
		return nil, &domain.ErrAuth{Kind: domain.AuthUnavailable, Err: err}
	}
	return resp, nil
}

// authError maps a GoTrue 4xx onto the auth taxonomy.
func authError(resp *authResponse) error {
	var e gotrueError
	_ = json.Unmarshal(resp.body, &e)
	code := e.ErrorCode
	if code == "" {
		code = e.Error
	}
	detail := e.Msg
	if detail == "" {
		detail = e.ErrorDescription
	}
	err := fmt.Errorf("gotrue %d %s: %s", resp.status, code, detail)

	if resp.status == http.StatusTooManyRequests {
		return &domain.ErrAuth{Kind: domain.AuthRateLimited, Err: err}
	}
	switch code {
	case "invalid_credentials", "invalid_grant":
		return &domain.ErrAuth{Kind: domain.AuthInvalidCredentials, Err: err}
	case "user_not_found":
		return &domain.ErrAuth{Kind: domain.AuthUnknownAccount, Err: err}
	case "over_request_rate_limit", "over_email_send_rate_limit":
		return &domain.ErrAuth{Kind: domain.AuthRateLimited, Err: err}
	case "user_banned":
		return &domain.ErrAuth{Kind: domain.AuthDisabled, Err: err}
	}
	return &domain.ErrAuth{Kind: domain.AuthUnavailable, Err: err}
}
