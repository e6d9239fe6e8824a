package devkit

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

	"github.com/google/uuid"
)

const (
	DefaultBaseURL = "http://localhost:8080"
	DefaultTimeout = 10 * time.Second

	userAgent = "ds-devkit-go-sdk"
)

// HTTPTransport issues authenticated JSON requests to the DevKit service.
// Every call carries the bearer token and is bounded by a fixed timeout. It
// never retries.
type HTTPTransport struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPTransport builds a transport. A zero timeout means DefaultTimeout;
// a nil client means a fresh http.Client.
func NewHTTPTransport(baseURL, apiKey string, timeout time.Duration, client *http.Client) *HTTPTransport {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		client:  client,
	}
}

// Timeout returns the per-request deadline.
func (t *HTTPTransport) Timeout() time.Duration { return t.timeout }

// Get decodes the JSON body of GET path into out.
func (t *HTTPTransport) Get(ctx context.Context, path string, out any) error {
	return t.do(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the response into out.
func (t *HTTPTransport) Post(ctx context.Context, path string, body, out any) error {
	return t.do(ctx, http.MethodPost, path, body, out)
}

// Put sends body as JSON and decodes the response into out.
func (t *HTTPTransport) Put(ctx context.Context, path string, body, out any) error {
	return t.do(ctx, http.MethodPut, path, body, out)
}

// Delete issues DELETE path and discards the body.
func (t *HTTPTransport) Delete(ctx context.Context, path string) error {
	return t.do(ctx, http.MethodDelete, path, nil, nil)
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body, out any) error {
	requestID := uuid.NewString()
	remoteErr := func(status int, err error) error {
		return &RemoteError{Method: method, Path: path, StatusCode: status, RequestID: requestID, Err: err}
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, t.baseURL+path, reader)
	if err != nil {
		return remoteErr(0, err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)

	resp, err := t.client.Do(req)
	if err != nil {
		if t.timedOut(ctx, reqCtx, err) {
			return fmt.Errorf("%w after %s: %s %s", ErrTimeout, t.timeout, method, path)
		}
		return remoteErr(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrAuthentication
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		var detail error
		if s := strings.TrimSpace(string(msg)); s != "" {
			detail = errors.New(s)
		}
		return remoteErr(resp.StatusCode, detail)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if t.timedOut(ctx, reqCtx, err) {
			return fmt.Errorf("%w after %s: %s %s", ErrTimeout, t.timeout, method, path)
		}
		return remoteErr(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// timedOut is true only when our own deadline fired, not when the caller
// cancelled or set a shorter deadline of their own.
func (t *HTTPTransport) timedOut(parent, reqCtx context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	return errors.Is(reqCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}
