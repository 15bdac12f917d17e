package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/boddenberg/occurrence-console/internal/infra/resilience"
	"github.com/boddenberg/occurrence-console/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Functions invokes Edge Functions (/functions/v1/<name>) as the signed-in user.
type Functions struct {
	client *Client
	cb     *gobreaker.CircuitBreaker
	token  func() string
}

var _ port.FunctionInvoker = (*Functions)(nil)

// NewFunctions creates an Edge Function invoker. cb must not be shared with
// the document store. token supplies the user's access token; the anon key
// is used when it returns "".
func NewFunctions(client *Client, cb *gobreaker.CircuitBreaker, token func() string) *Functions {
	return &Functions{client: client, cb: cb, token: token}
}

// Call posts payload as JSON and returns the raw response body. No retry.
func (f *Functions) Call(ctx context.Context, name string, payload any) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Functions.Call")
	defer span.End()
	span.SetAttributes(attribute.String("function.name", name))

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	body, err := resilience.Execute(f.cb, "supabase-functions", func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			fmt.Sprintf("%s/functions/v1/%s", f.client.baseURL, name), bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		bearer := f.client.apiKey
		if f.token != nil {
			if t := f.token(); t != "" {
				bearer = t
			}
		}
		req.Header.Set("apikey", f.client.apiKey)
		req.Header.Set("Authorization", "Bearer "+bearer)
		req.Header.Set("Content-Type", "application/json")

		resp, err := f.client.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := readBody(resp)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("function %s returned %d: %s", name, resp.StatusCode, string(body))
		}
		return body, nil
	})
	if err != nil {
		f.client.logger.Warn("supabase: function call failed", zap.String("function", name), zap.Error(err))
		span.RecordError(err)
		return nil, wrapErr(err)
	}
	return json.RawMessage(body), nil
}
