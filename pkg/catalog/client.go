// Package catalog is the HTTP client for the component catalog service:
// part lookup, candidate pools per family, and the streaming batch
// validation endpoint.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/xref-cli/internal/model"
	"github.com/sells-group/xref-cli/internal/resilience"
)

const defaultBaseURL = "http://localhost:8180/api/v1"

// ErrPartNotFound is returned when the catalog has no part for an MPN.
var ErrPartNotFound = eris.New("catalog: part not found")

// Client defines the catalog service operations.
type Client interface {
	GetPart(ctx context.Context, mpn string) (*model.PartAttributes, error)
	GetCandidates(ctx context.Context, family, mpn string) ([]model.PartAttributes, error)
	ValidateBatch(ctx context.Context, reqs []RowRequest, currency string) (io.ReadCloser, error)
}

// RowRequest identifies one parts-list row submitted for validation.
type RowRequest struct {
	RowIndex     int    `json:"rowIndex"`
	MPN          string `json:"mpn"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Description  string `json:"description,omitempty"`
}

// validateBatchRequest is the body for POST /validate/batch.
type validateBatchRequest struct {
	Currency string       `json:"currency,omitempty"`
	Rows     []RowRequest `json:"rows"`
}

// candidatesResponse is the response from GET /parts.
type candidatesResponse struct {
	Parts []model.PartAttributes `json:"parts"`
}

// APIError is returned when the catalog responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound request rate.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxRetries sets the retry budget for transient failures.
func WithMaxRetries(n int) Option {
	return func(c *httpClient) {
		c.retry.MaxAttempts = n
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewClient creates a catalog client. The zero timeout on the underlying
// http.Client is intentional: ValidateBatch holds its response open for the
// life of the stream, so per-call deadlines come from the context instead.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		limiter: rate.NewLimiter(20, 20),
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
			OnRetry:        resilience.RetryLogger("catalog", "request"),
		},
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			ShouldTrip:    resilience.IsTransient,
			OnStateChange: resilience.BreakerLogger("catalog"),
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPart fetches a single part's attribute set by MPN.
func (c *httpClient) GetPart(ctx context.Context, mpn string) (*model.PartAttributes, error) {
	var part model.PartAttributes
	err := c.getJSON(ctx, "/parts/"+url.PathEscape(mpn), &part)
	if err != nil {
		var apiErr *APIError
		if eris.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, eris.Wrap(ErrPartNotFound, mpn)
		}
		return nil, eris.Wrapf(err, "catalog: get part %s", mpn)
	}
	return &part, nil
}

// GetCandidates fetches the candidate pool for a family. The source MPN is
// passed as an exclusion so the server can pre-filter it.
func (c *httpClient) GetCandidates(ctx context.Context, family, mpn string) ([]model.PartAttributes, error) {
	q := url.Values{}
	q.Set("family", family)
	if mpn != "" {
		q.Set("exclude", mpn)
	}

	var resp candidatesResponse
	if err := c.getJSON(ctx, "/parts?"+q.Encode(), &resp); err != nil {
		return nil, eris.Wrapf(err, "catalog: get candidates for %s", family)
	}
	return resp.Parts, nil
}

// ValidateBatch opens the streaming batch-validation call and returns the
// raw NDJSON body. The caller owns the ReadCloser; retries cover only the
// connection attempt, never a stream that has already produced bytes.
func (c *httpClient) ValidateBatch(ctx context.Context, reqs []RowRequest, currency string) (io.ReadCloser, error) {
	body, err := json.Marshal(validateBatchRequest{Currency: currency, Rows: reqs})
	if err != nil {
		return nil, eris.Wrap(err, "catalog: marshal batch request")
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/validate/batch", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/x-ndjson")
		return req, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "catalog: open validation stream")
	}

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		_ = resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return resp.Body, nil
}

func (c *httpClient) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

// doWithRetry executes a request through the circuit breaker and under the
// rate limiter, retrying connection errors and transient statuses with
// exponential backoff. The request is rebuilt each attempt so bodies are
// always fresh. Non-transient statuses are returned to the caller unread.
func (c *httpClient) doWithRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*http.Response, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*http.Response, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "rate limiter wait")
			}

			req, err := build()
			if err != nil {
				return nil, eris.Wrap(err, "create request")
			}
			if c.apiKey != "" {
				req.Header.Set("Authorization", "Bearer "+c.apiKey)
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return nil, resilience.NewTransientError(err, 0)
			}

			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				data, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
				_ = resp.Body.Close()
				apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}
				return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
			}

			return resp, nil
		})
	})
}
