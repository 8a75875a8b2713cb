// Package fetch provides the HTTP client shared by the file server and webhook callers.
// Every call returns either a Result or a *Error classifying what went wrong.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 300 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "ByBot/1.0"

// Kind classifies a failed call
type Kind string

const (
	KindTransport    Kind = "transport"    // connection, DNS, timeout
	KindUnauthorized Kind = "unauthorized" // 401
	KindForbidden    Kind = "forbidden"    // 403
	KindNotFound     Kind = "not_found"    // 404
	KindStatus       Kind = "status"       // any other non-2xx
	KindDecode       Kind = "decode"       // body is not what the caller expected
	KindEmpty        Kind = "empty"        // 2xx with no content
	KindRejected     Kind = "rejected"     // 2xx whose payload reports failure
)

// Result holds a completed HTTP exchange
type Result struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte // nil when the body was streamed to a writer
	Size       int64
}

// Error represents a classified failure of an HTTP call
type Error struct {
	URL        string
	Kind       Kind
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s (%s): %s: %v", e.URL, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s (%s): %s", e.URL, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retriable reports whether repeating the same call may succeed
func (e *Error) Retriable() bool {
	switch e.Kind {
	case KindTransport:
		return true
	case KindStatus:
		return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}

// KindOf returns the Kind of err, or "" if it is not a *Error
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Options configures the client.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// Client performs HTTP calls with fixed headers and timeout
type Client struct {
	http *http.Client
	opts Options
}

// New creates a client. Nil options use DefaultOptions.
func New(opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
	}
}

// Get retrieves url and buffers the body
func (c *Client) Get(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Kind: KindTransport, Message: "failed to create request", Cause: err}
	}
	return c.Do(req, nil)
}

// GetTo retrieves url and streams a successful body into w
func (c *Client) GetTo(ctx context.Context, url string, w io.Writer) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Kind: KindTransport, Message: "failed to create request", Cause: err}
	}
	return c.Do(req, w)
}

// PostJSON sends payload as JSON
func (c *Client) PostJSON(ctx context.Context, url string, payload any, headers map[string]string) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{URL: url, Kind: KindTransport, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.Do(req, nil)
}

// PostFile sends a multipart form with the given fields and the file at path
// under fileField
func (c *Client) PostFile(ctx context.Context, url string, fields map[string]string, fileField, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", k, err)
		}
	}
	part, err := mw.CreateFormFile(fileField, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to copy %s into form: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, &Error{URL: url, Kind: KindTransport, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.Do(req, nil)
}

// Do executes req with the client's headers. A 2xx body is streamed into w when
// w is non-nil and buffered otherwise; error bodies are always buffered so the
// message can be reported.
func (c *Client) Do(req *http.Request, w io.Writer) (*Result, error) {
	url := req.URL.String()
	req.Header.Set("User-Agent", c.opts.UserAgent)
	for k, v := range c.opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Kind: KindTransport, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	result := &Result{
		URL:        url,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if ok && w != nil {
		n, err := io.Copy(w, resp.Body)
		result.Size = n
		if err != nil {
			return result, &Error{URL: url, Kind: KindTransport, StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
		}
		return result, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, &Error{URL: url, Kind: KindTransport, StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}
	result.Body = body
	result.Size = int64(len(body))

	if !ok {
		return result, &Error{
			URL:        url,
			Kind:       Classify(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP status %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}
	return result, nil
}

// DecodeJSON unmarshals a buffered result body into out
func DecodeJSON(result *Result, out any) error {
	if err := json.Unmarshal(result.Body, out); err != nil {
		return &Error{
			URL:        result.URL,
			Kind:       KindDecode,
			StatusCode: result.StatusCode,
			Message:    "invalid JSON response: " + truncate(string(result.Body), 200),
			Cause:      err,
		}
	}
	return nil
}

// Classify maps a non-2xx status code to a Kind
func Classify(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindStatus
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
