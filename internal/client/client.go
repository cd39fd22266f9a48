// Package client is the HTTP implementation of the child-node calls the
// aggregating tiers make: query fan-out, ingest forwarding, and health
// pings. A transport-level failure surfaces as a Go error, distinct from
// an in-band failure QueryResponse.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	v1 "github.com/Warrelis/huba/internal/api/v1"
	httperr "github.com/Warrelis/huba/internal/core/errors"
)

type HTTP struct {
	httpClient *http.Client
}

// NewHTTP builds a client. timeout is a transport-level cap per request;
// callers typically pass tighter per-query deadlines via context.
func NewHTTP(timeout time.Duration) *HTTP {
	return &HTTP{httpClient: &http.Client{Timeout: timeout}}
}

// Query executes q against the child at endpoint.
func (c *HTTP) Query(ctx context.Context, endpoint string, q *v1.Query) (*v1.QueryResponse, error) {
	var resp v1.QueryResponse
	if err := c.post(ctx, endpoint+"/v1/query", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ingest forwards a batch to the child at endpoint.
func (c *HTTP) Ingest(ctx context.Context, endpoint string, batch *v1.LogBatch) (*v1.IngestResponse, error) {
	var resp v1.IngestResponse
	if err := c.post(ctx, endpoint+"/v1/ingest", batch, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ping probes the child's readiness endpoint.
func (c *HTTP) Ping(ctx context.Context, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("child %s unhealthy: status %d", endpoint, resp.StatusCode)
	}
	return nil
}

func (c *HTTP) post(ctx context.Context, url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		var errBody httperr.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil && errBody.Message != "" {
			return fmt.Errorf("%s: %s (%s)", url, errBody.Message, errBody.ErrorType)
		}
		return fmt.Errorf("%s: unexpected status %d", url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}
