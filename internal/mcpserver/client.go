package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/storefront-admin/commissions/internal/auth"
	"github.com/storefront-admin/commissions/internal/circuitbreaker"
	"github.com/storefront-admin/commissions/internal/commission"
	"github.com/storefront-admin/commissions/internal/plans"
)

// Config holds the configuration for connecting to the commissions API.
type Config struct {
	APIURL        string // Base URL, e.g. "http://localhost:8080"
	AdminSecret   string
	BillingSecret string // sent on compute calls
	Operator      string // recorded as the operator on audited calls
}

// Client is a pure HTTP client for the commissions admin API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
}

// NewClient creates a new client for the commissions API. After five
// consecutive transport or 5xx failures calls fail fast for 15 seconds.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker:    circuitbreaker.New("commissions_api", 5, 15*time.Second),
	}
}

// ErrAPIUnavailable is returned while the API is considered down.
var ErrAPIUnavailable = errors.New("commissions API unavailable, retry shortly")

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string   `json:"error"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Code)
}

// do makes an HTTP request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(auth.HeaderAdminSecret, c.cfg.AdminSecret)
	if c.cfg.BillingSecret != "" {
		req.Header.Set(auth.HeaderBillingSecret, c.cfg.BillingSecret)
	}
	if c.cfg.Operator != "" {
		req.Header.Set(auth.HeaderAdminIdentity, c.cfg.Operator)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var status int
	var respBody []byte
	err = c.breaker.Do(func() error {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		status = resp.StatusCode
		if respBody, err = io.ReadAll(resp.Body); err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if status >= 500 {
			return errUpstream
		}
		return nil
	}, func(err error) bool {
		return !errors.Is(err, context.Canceled)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return ErrAPIUnavailable
	}
	if err != nil && !errors.Is(err, errUpstream) {
		return err
	}

	if status >= 400 {
		apiErr := &APIError{Status: status}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Code == "" {
			apiErr.Message = string(respBody)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errUpstream marks a 5xx so the breaker counts it; do still returns the
// decoded APIError.
var errUpstream = errors.New("upstream 5xx")

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}

// GetActiveSettings returns the active settings version.
func (c *Client) GetActiveSettings(ctx context.Context) (*commission.Settings, error) {
	var resp struct {
		Settings *commission.Settings `json:"settings"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/admin/commission/settings/active", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Settings, nil
}

// ListVersions returns settings versions, newest first.
func (c *Client) ListVersions(ctx context.Context, limit int) ([]*commission.Settings, error) {
	var resp struct {
		Versions []*commission.Settings `json:"versions"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/admin/commission/settings/versions", limitQuery(limit), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Versions, nil
}

// DiffResponse is the body of the diff endpoint.
type DiffResponse struct {
	From     int                              `json:"from"`
	To       int                              `json:"to"`
	Summary  *commission.ChangeSummary        `json:"summary"`
	Messages map[commission.Category][]string `json:"messages"`
}

// DiffVersions summarises the changes between two versions.
func (c *Client) DiffVersions(ctx context.Context, from, to int) (*DiffResponse, error) {
	q := url.Values{"from": {strconv.Itoa(from)}, "to": {strconv.Itoa(to)}}
	var resp DiffResponse
	if err := c.do(ctx, http.MethodGet, "/v1/admin/commission/settings/diff", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListAudit returns audit records, newest first.
func (c *Client) ListAudit(ctx context.Context, limit int) ([]*commission.AuditRecord, error) {
	var resp struct {
		Records []*commission.AuditRecord `json:"records"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/admin/commission/audit", limitQuery(limit), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// ValidateSettings runs the validator on a candidate without activating it.
func (c *Client) ValidateSettings(ctx context.Context, candidate json.RawMessage) (commission.Result, error) {
	var res commission.Result
	err := c.do(ctx, http.MethodPost, "/v1/admin/commission/settings/validate", nil, candidate, &res)
	return res, err
}

// Compute asks the engine what a payment earns.
func (c *Client) Compute(ctx context.Context, req commission.ComputeRequest) (*commission.Computation, error) {
	var out commission.Computation
	if err := c.do(ctx, http.MethodPost, "/v1/commissions/compute", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPlans returns the subscription plan catalog.
func (c *Client) ListPlans(ctx context.Context) ([]*plans.Plan, error) {
	var resp struct {
		Plans []*plans.Plan `json:"plans"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/admin/plans", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Plans, nil
}
