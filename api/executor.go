package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/abacushq/abacus-go/internal/config"
	"github.com/rs/zerolog/log"
)

// RetryPolicy makes the executor's retry behaviour a caller-visible decision.
// The zero value performs a single attempt; setting MaxAttempts enables
// re-sending on transport failures only. Provider rejections (non-2xx) are
// never retried.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Response is the outcome of a successful (2xx) API call.
type Response struct {
	StatusCode int
	Body       []byte
}

// RequestOptions carries the optional parts of a request.
type RequestOptions struct {
	Body    any // JSON-encoded when non-nil
	Headers map[string]string
	Query   url.Values
}

// Executor performs authenticated HTTP calls against the provider. It is the
// single choke point every API call passes through: it attaches the bearer
// token it is given, classifies the result, and nothing else. The access token
// is an explicit argument on every call; the executor never holds one.
type Executor struct {
	httpClient *http.Client
	retry      RetryPolicy
}

// ExecutorOption modifies an Executor at construction time.
type ExecutorOption func(*Executor)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) ExecutorOption {
	return func(e *Executor) {
		e.httpClient = client
	}
}

// WithRetryPolicy enables transport-failure retries.
func WithRetryPolicy(policy RetryPolicy) ExecutorOption {
	return func(e *Executor) {
		e.retry = policy
	}
}

// NewExecutor creates an Executor with the SDK defaults.
func NewExecutor(options ...ExecutorOption) *Executor {
	cfg := config.New()
	e := &Executor{
		httpClient: &http.Client{Timeout: cfg.GetHTTPTimeout()},
		retry:      RetryPolicy{MaxAttempts: cfg.GetMaxRetryAttempts()},
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Do sends one authenticated request. A 2xx response yields a Response; any
// other status yields *Error carrying the status code and the body verbatim;
// a failure to complete the request at all yields *TransportError.
func (e *Executor) Do(ctx context.Context, method, uri, accessToken string, opts *RequestOptions) (*Response, error) {
	attempts := e.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && e.retry.Backoff > 0 {
			select {
			case <-ctx.Done():
				return nil, &TransportError{Err: ctx.Err()}
			case <-time.After(e.retry.Backoff):
			}
		}

		resp, err := e.send(ctx, method, uri, accessToken, opts)
		if err == nil {
			return resp, nil
		}
		if _, transient := err.(*TransportError); !transient {
			return nil, err
		}
		lastErr = err
		log.Debug().Str("method", method).Str("uri", uri).Int("attempt", attempt+1).Err(err).Msg("api call failed")
	}
	return nil, lastErr
}

func (e *Executor) send(ctx context.Context, method, uri, accessToken string, opts *RequestOptions) (*Response, error) {
	var body io.Reader
	if opts != nil && opts.Body != nil {
		encoded, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, &TransportError{Err: err}
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts != nil {
		for key, value := range opts.Headers {
			req.Header.Set(key, value)
		}
		if len(opts.Query) > 0 {
			query := req.URL.Query()
			for key, values := range opts.Query {
				for _, value := range values {
					query.Add(key, value)
				}
			}
			req.URL.RawQuery = query.Encode()
		}
	}

	httpResp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &Error{StatusCode: httpResp.StatusCode, Body: string(raw)}
	}
	return &Response{StatusCode: httpResp.StatusCode, Body: raw}, nil
}

// Get issues an authenticated GET.
func (e *Executor) Get(ctx context.Context, uri, accessToken string) (*Response, error) {
	return e.Do(ctx, http.MethodGet, uri, accessToken, nil)
}

// Post issues an authenticated POST with a JSON body.
func (e *Executor) Post(ctx context.Context, uri, accessToken string, body any) (*Response, error) {
	return e.Do(ctx, http.MethodPost, uri, accessToken, &RequestOptions{Body: body})
}

// Put issues an authenticated PUT with a JSON body.
func (e *Executor) Put(ctx context.Context, uri, accessToken string, body any) (*Response, error) {
	return e.Do(ctx, http.MethodPut, uri, accessToken, &RequestOptions{Body: body})
}

// Patch issues an authenticated PATCH with a JSON body.
func (e *Executor) Patch(ctx context.Context, uri, accessToken string, body any) (*Response, error) {
	return e.Do(ctx, http.MethodPatch, uri, accessToken, &RequestOptions{Body: body})
}

// Delete issues an authenticated DELETE.
func (e *Executor) Delete(ctx context.Context, uri, accessToken string) (*Response, error) {
	return e.Do(ctx, http.MethodDelete, uri, accessToken, nil)
}

// DecodeJSON unmarshals a response body into v.
func DecodeJSON(resp *Response, v any) error {
	return json.Unmarshal(resp.Body, v)
}
