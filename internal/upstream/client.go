// Package upstream provides typed clients for the external data
// sources the dashboard depends on: the chain RPC, the token price
// API, the asset registry, the BIM gateway and the AI narrative
// endpoint. Clients do request/response marshaling and failure
// classification only; retries are the retry package's job.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/tokendash/internal/model"
)

// HTTPClient is the shared transport for all JSON upstreams. Every
// failure is converted to a typed model.Failure; it never panics and
// never returns a Go error to its callers.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient creates a transport with the given per-call budget.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
	}
}

// GetJSON performs a GET against base+path and decodes the response
// body into a generic JSON object.
func (c *HTTPClient) GetJSON(ctx context.Context, base, path string, query url.Values) model.Result {
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Fail(model.FailureUnreachable, "building request for %s: %v", u, err)
	}
	req.Header.Set("Accept", "application/json")

	logrus.Debugf("Fetching %s", u)
	resp, err := c.client.Do(req)
	if err != nil {
		return classifyTransportError(u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return model.Fail(model.FailureRateLimited, "%s returned 429", u)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.Fail(model.FailureUnreachable, "%s returned status %d: %s", u, resp.StatusCode, string(body))
	}

	var payload map[string]any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return model.Fail(model.FailureMalformed, "decoding response from %s: %v", u, err)
	}

	return model.Success(payload)
}

// classifyTransportError maps Go transport errors onto the failure
// taxonomy. Deadline errors become timeouts; everything else at this
// layer is a connectivity problem.
func classifyTransportError(u string, err error) model.Result {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.Fail(model.FailureTimeout, "request to %s timed out", u)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return model.Fail(model.FailureTimeout, "request to %s timed out", u)
	}
	return model.Fail(model.FailureUnreachable, "request to %s failed: %v", u, err)
}

// malformed flags a schema violation found after transport succeeded.
func malformed(source string, err error) model.Result {
	return model.Fail(model.FailureMalformed, "%s: %v", source, err)
}
