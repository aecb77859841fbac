package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"
)

const (
	restPath           = "/rest/v1"
	returnRows         = "representation"
	defaultRESTTimeout = 30 * time.Second

	// maxErrorBody bounds how much of an error response is kept for the error message.
	maxErrorBody = 4 << 10
)

// StatusError is an error response from the table API.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
}

// RESTClient talks to a hosted PostgREST endpoint (the table API exposed by
// Supabase and similar backends) through postgrest-go.
type RESTClient struct {
	pg      *postgrest.Client
	timeout time.Duration
	idle    *http.Transport
}

// RESTOption configures a RESTClient.
type RESTOption func(*RESTClient)

// WithTimeout bounds each request, response body included.
func WithTimeout(d time.Duration) RESTOption {
	return func(r *RESTClient) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewREST creates a client for the project at baseURL authenticating with key.
func NewREST(baseURL, key string, opts ...RESTOption) (*RESTClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("store url must be http(s), got %q", u.Scheme)
	}
	if key == "" {
		return nil, fmt.Errorf("store key is required")
	}

	c := &RESTClient{timeout: defaultRESTTimeout}
	for _, opt := range opts {
		opt(c)
	}

	c.pg = postgrest.NewClient(strings.TrimRight(u.String(), "/")+restPath, "", map[string]string{
		"apikey":        key,
		"Authorization": "Bearer " + key,
	})
	if c.pg.ClientError != nil {
		return nil, fmt.Errorf("create store client: %w", c.pg.ClientError)
	}
	c.idle = http.DefaultTransport.(*http.Transport).Clone()
	c.pg.Transport.Parent = &statusTransport{base: c.idle, timeout: c.timeout}
	return c, nil
}

var _ Client = (*RESTClient)(nil)

// Select issues GET /rest/v1/<collection>?select=*&col=eq.value.
func (c *RESTClient) Select(ctx context.Context, collection string, filters ...Filter) ([]Record, error) {
	q := c.pg.From(collection).Select("*", "", false)
	rows, err := c.rows(ctx, eqAll(q, filters))
	return rows, wrapErr("select", collection, err)
}

// Insert issues POST /rest/v1/<collection> and returns the created rows.
func (c *RESTClient) Insert(ctx context.Context, collection string, record Record) ([]Record, error) {
	q := c.pg.From(collection).Insert([]Record{record}, false, "", returnRows, "")
	rows, err := c.rows(ctx, q)
	return rows, wrapErr("insert", collection, err)
}

// Update issues PATCH /rest/v1/<collection>?col=eq.value.
func (c *RESTClient) Update(ctx context.Context, collection string, patch Record, filters ...Filter) ([]Record, error) {
	q := c.pg.From(collection).Update(patch, returnRows, "")
	rows, err := c.rows(ctx, eqAll(q, filters))
	return rows, wrapErr("update", collection, err)
}

// Ping reads at most one user id, which needs the key, the API and the users table.
func (c *RESTClient) Ping(ctx context.Context) error {
	q := c.pg.From(UsersTable).Select("id", "", false).Limit(1, "")
	_, err := c.rows(ctx, q)
	return wrapErr("ping", UsersTable, err)
}

// Close releases idle connections.
func (c *RESTClient) Close() error {
	c.idle.CloseIdleConnections()
	return nil
}

func eqAll(q *postgrest.FilterBuilder, filters []Filter) *postgrest.FilterBuilder {
	for _, f := range filters {
		q = q.Eq(f.Column, fmt.Sprint(f.Value))
	}
	return q
}

// rows executes q and decodes the JSON array it returns. postgrest-go has no
// context support, so ctx only bounds the wait; the request itself is bounded
// by the client timeout.
func (c *RESTClient) rows(ctx context.Context, q *postgrest.FilterBuilder) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		body []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, _, err := q.Execute()
		done <- result{body, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}
	return decodeRows(res.body)
}

func decodeRows(body []byte) ([]Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rows []Record
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return rows, nil
}

// statusTransport turns every error response into a *StatusError before
// postgrest-go sees it, keeping the status code and a plain-text body that
// the library would otherwise drop. It also applies the request timeout.
type statusTransport struct {
	base    http.RoundTripper
	timeout time.Duration
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cancel := context.CancelFunc(func() {})
	if t.timeout > 0 {
		var ctx context.Context
		ctx, cancel = context.WithTimeout(req.Context(), t.timeout)
		req = req.WithContext(ctx)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode < http.StatusBadRequest {
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}

	defer cancel()
	defer func() { _ = resp.Body.Close() }()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &StatusError{
		Method:  req.Method,
		Path:    req.URL.Path,
		Code:    resp.StatusCode,
		Message: strings.TrimSpace(string(msg)),
	}
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// StatusCode returns the table API status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
