// Package sevenshifts is a minimal read-side client for the 7shifts v2 REST
// API: token auth, transparent cursor pagination, and a client-side rate
// limit matching the API's published request budget.
//
// List endpoints return a Pager, an iterator in the sql.Rows style that
// fetches pages lazily so callers never hold more than one page of records
// in memory. Records are untyped maps; shaping them into table rows is the
// sync engine's job.
//
// There is deliberately no retry or backoff here: a failed request surfaces
// immediately to the caller.
package sevenshifts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.7shifts.com"

// DefaultPageSize is the per-page limit requested on list calls.
const DefaultPageSize = 250

// userAgent identifies this client to the API.
const userAgent = "sevensync"

// Record is one entity as delivered by the API: field name to value, with
// nested sub-records and lists left in place.
type Record map[string]any

// APIError is a non-2xx response from the API.
type APIError struct {
	Status int
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("7shifts API returned %d for %s: %s", e.Status, e.Path, e.Body)
}

// Client talks to the 7shifts v2 API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	pageSize   int
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at an alternate endpoint. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient substitutes the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithPageSize overrides the per-page limit on list calls.
func WithPageSize(n int) Option {
	return func(c *Client) { c.pageSize = n }
}

// WithLogger substitutes the client's logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client authenticated with the given access token.
//
// The default rate limit is 10 requests/second with a small burst, inside
// the API's documented budget.
func New(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(10), 5),
		pageSize:   DefaultPageSize,
		logger:     log.New(os.Stderr, "[7shifts] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the common response wrapper: a data payload plus an optional
// pagination cursor.
type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta struct {
		Cursor struct {
			Next string `json:"next"`
		} `json:"cursor"`
	} `json:"meta"`
}

// getJSON performs one GET and decodes the response envelope.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<24))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Path: path, Body: string(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return &env, nil
}

// getRecord fetches a single-object endpoint.
func (c *Client) getRecord(ctx context.Context, path string, params url.Values) (Record, error) {
	env, err := c.getJSON(ctx, path, params)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record from %s: %w", path, err)
	}
	return rec, nil
}

// getRecordList fetches a list endpoint that is not paginated.
func (c *Client) getRecordList(ctx context.Context, path string, params url.Values) ([]Record, error) {
	env, err := c.getJSON(ctx, path, params)
	if err != nil {
		return nil, err
	}
	var recs []Record
	if err := json.Unmarshal(env.Data, &recs); err != nil {
		return nil, fmt.Errorf("failed to decode records from %s: %w", path, err)
	}
	return recs, nil
}

// Pager iterates over a paginated list endpoint, fetching pages on demand.
//
// Usage follows sql.Rows:
//
//	pager := client.ListShifts(ctx, companyID, params)
//	for pager.Next() {
//	    rec := pager.Record()
//	    ...
//	}
//	if err := pager.Err(); err != nil {
//	    return err
//	}
type Pager struct {
	ctx    context.Context
	c      *Client
	path   string
	params url.Values

	page   []Record
	i      int
	cursor string
	done   bool
	err    error
}

func (c *Client) newPager(ctx context.Context, path string, params url.Values) *Pager {
	if params == nil {
		params = url.Values{}
	}
	if params.Get("limit") == "" {
		params.Set("limit", fmt.Sprint(c.pageSize))
	}
	return &Pager{ctx: ctx, c: c, path: path, params: params}
}

// Next advances to the next record, fetching the next page when the current
// one is exhausted. It returns false at the end of the result set or on
// error; check Err afterwards.
func (p *Pager) Next() bool {
	if p.err != nil {
		return false
	}
	for p.i >= len(p.page) {
		if p.done {
			return false
		}
		if !p.fetchPage() {
			return false
		}
	}
	p.i++
	return true
}

// Record returns the current record. Only valid after a true Next.
func (p *Pager) Record() Record {
	return p.page[p.i-1]
}

// Err returns the first error encountered during iteration.
func (p *Pager) Err() error {
	return p.err
}

func (p *Pager) fetchPage() bool {
	params := p.params
	if p.cursor != "" {
		params = cloneValues(p.params)
		params.Set("cursor", p.cursor)
	}

	env, err := p.c.getJSON(p.ctx, p.path, params)
	if err != nil {
		p.err = err
		return false
	}

	p.page = nil
	p.i = 0
	if err := json.Unmarshal(env.Data, &p.page); err != nil {
		p.err = fmt.Errorf("failed to decode page from %s: %w", p.path, err)
		return false
	}

	p.cursor = env.Meta.Cursor.Next
	if p.cursor == "" || len(p.page) == 0 {
		p.done = true
	}
	return len(p.page) > 0
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
