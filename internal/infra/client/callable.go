package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/infra/resilience"
	"github.com/boddenberg/occurrence-console/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// CallableClient invokes HTTPS callable functions (POST <base>/<name>).
type CallableClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	token      func() string
}

var _ port.FunctionInvoker = (*CallableClient)(nil)

// NewCallableClient creates a new CallableClient. token supplies the
// signed-in user's ID token and may be nil.
func NewCallableClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, token func() string) *CallableClient {
	return &CallableClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		token:      token,
	}
}

type callableRequest struct {
	Data any `json:"data"`
}

type callableResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// Call invokes the function once. Failures are not retried.
func (c *CallableClient) Call(ctx context.Context, name string, payload any) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "CallableClient.Call")
	defer span.End()
	span.SetAttributes(attribute.String("function.name", name))

	if c.baseURL == "" {
		return nil, &domain.ErrExternalService{Service: name, Err: errors.New("functions url not configured")}
	}

	result, err := resilience.Execute(c.cb, name, func() (json.RawMessage, error) {
		body, err := json.Marshal(callableRequest{Data: payload})
		if err != nil {
			return nil, err
		}

		url := fmt.Sprintf("%s/%s", c.baseURL, name)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.token != nil {
			if t := c.token(); t != "" {
				httpReq.Header.Set("Authorization", "Bearer "+t)
			}
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		var out callableResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("function %s returned status %d: %w", name, resp.StatusCode, err)
		}
		if out.Error != nil {
			return nil, fmt.Errorf("%s: %s", out.Error.Status, out.Error.Message)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("function %s returned status %d", name, resp.StatusCode)
		}
		return out.Result, nil
	})
	if err != nil {
		var open *domain.ErrCircuitOpen
		if errors.As(err, &open) {
			return nil, err
		}
		span.RecordError(err)
		return nil, &domain.ErrExternalService{Service: name, Err: err}
	}

	return result, nil
}
