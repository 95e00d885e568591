// Package client talks to the storefront REST API on behalf of a browser
// session: cart mirroring, orders, payment initiation and auth.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"shophub.store/storefront/pkg/global"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
	Errors  []global.ValidationError
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() []error {
	var errs []error
	switch {
	case e.Status == http.StatusBadRequest:
		errs = append(errs, global.ErrInvalidRequest)
	case e.Status == http.StatusUnauthorized:
		errs = append(errs, global.ErrUnauthenticated)
	case e.Status == http.StatusForbidden:
		errs = append(errs, global.ErrUnauthorized)
	case e.Status == http.StatusNotFound:
		errs = append(errs, global.ErrNotFound)
	case e.Status == http.StatusConflict:
		errs = append(errs, global.ErrConflict)
	case e.Status >= 500:
		errs = append(errs, global.ErrUpstreamFailure)
	}
	for _, ve := range e.Errors {
		if ve.Code == global.CodeInsufficientStock {
			errs = append(errs, global.ErrInsufficientStock)
			break
		}
	}
	return errs
}

type envelope struct {
	Success bool                     `json:"success"`
	Data    json.RawMessage          `json:"data"`
	Message string                   `json:"message"`
	Errors  []global.ValidationError `json:"errors"`
}

type reply struct {
	status int
	body   []byte
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[reply]
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[reply](gobreaker.Settings{
		Name:        "storefront-api",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return c
}

// do sends one request. Transport errors and 5xx answers count against the
// breaker; 4xx answers are the caller's problem and do not.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.breaker.Execute(func() (reply, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return reply{}, err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return reply{}, err
		}
		r := reply{status: resp.StatusCode, body: raw}
		if resp.StatusCode >= 500 {
			return r, apiError(r)
		}
		return r, nil
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		return fmt.Errorf("%w: %s %s: %v", global.ErrUpstreamFailure, method, path, err)
	}
	if res.status >= 400 {
		return apiError(res)
	}
	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(res.body, &env); err != nil {
		return fmt.Errorf("%w: malformed response from %s: %v", global.ErrUpstreamFailure, path, err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: malformed data from %s: %v", global.ErrUpstreamFailure, path, err)
	}
	return nil
}

func apiError(r reply) *APIError {
	e := &APIError{Status: r.status}
	var env envelope
	if json.Unmarshal(r.body, &env) == nil {
		e.Message = env.Message
		e.Errors = env.Errors
	}
	return e
}
