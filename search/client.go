// Package search provides clients for the external search services the
// assistant consults: general web search and the arXiv paper index.
//
// Information Hiding:
// - HTTP client construction and timeouts
// - Request encoding and response decoding per service
// - Status code and transport error classification
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single search request.
const DefaultTimeout = 20 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

const userAgent = "docqa/1.0 (+https://github.com/richinex/docqa)"

// ErrEmptyQuery is returned when a search is attempted without a query.
var ErrEmptyQuery = errors.New("empty search query")

// StatusError reports a non-2xx response from a search service.
type StatusError struct {
	Service string
	Code    int
	Status  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %s", e.Service, e.Status)
}

// Option configures a search client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	endpoint   string
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithEndpoint overrides the service URL. Tests point clients at httptest
// servers. An empty URL keeps the default.
func WithEndpoint(u string) Option {
	return func(o *clientOptions) {
		if u != "" {
			o.endpoint = u
		}
	}
}

// WithTimeout sets the HTTP client timeout. A non-positive value keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.httpClient = &http.Client{Timeout: d}
		}
	}
}

func buildOptions(defaultEndpoint string, opts []Option) clientOptions {
	o := clientOptions{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		endpoint:   defaultEndpoint,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// do sends req and returns the body of a 2xx response.
func do(ctx context.Context, client *http.Client, service string, req *http.Request) ([]byte, error) {
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s request: %w", service, ctx.Err())
		}
		return nil, fmt.Errorf("%s request failed: %w", service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", service, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Service: service, Code: resp.StatusCode, Status: resp.Status}
	}
	return body, nil
}
