// Package api is the transport client for the HDT backend: REST calls with
// validated responses and the realtime event channel.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iksnae/hdt-console/internal"
)

var errMissing = errors.New("missing required field")

// ClientConfig configures a Client
type ClientConfig struct {
	BaseURL     string // e.g. http://localhost:5000/api
	Origin      string // e.g. http://localhost:5000, for /health
	WSURL       string
	HTTPClient  *http.Client
	Credentials internal.CredentialStore
	Timeout     time.Duration
}

// Client executes requests against the backend. It holds the auth token in
// memory and mirrors it to the credential store.
type Client struct {
	baseURL string
	origin  string
	wsURL   string
	http    *http.Client
	creds   internal.CredentialStore

	mu      sync.RWMutex
	token   string
	channel *Channel
}

// NewClient creates a client and loads any stored token
func NewClient(cfg ClientConfig) (*Client, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	creds := cfg.Credentials
	if creds == nil {
		creds = &internal.MemoryCredentialStore{}
	}
	origin := cfg.Origin
	if origin == "" {
		origin = strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/api")
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		origin:  strings.TrimRight(origin, "/"),
		wsURL:   cfg.WSURL,
		http:    httpClient,
		creds:   creds,
	}

	token, err := creds.Load()
	if err != nil {
		internal.LogWarn("Failed to load stored credentials: %v", err)
	}
	c.token = token
	return c, nil
}

// Token returns the in-memory auth token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Authenticated reports whether a token is held
func (c *Client) Authenticated() bool {
	return c.Token() != ""
}

func (c *Client) setToken(token string) error {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	if token == "" {
		return c.creds.Clear()
	}
	return c.creds.Save(token)
}

// validator is implemented by response types that check their own schema
type validator interface {
	Validate() error
}

// errorBody is the backend's error envelope
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do executes a request against the API base path
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.doURL(ctx, method, c.baseURL+path, path, body, out)
}

func (c *Client) doURL(ctx context.Context, method, url, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &internal.TransportError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		internal.LogDebug("%s %s failed after %v: %v", method, path, time.Since(start), err)
		return &internal.TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &internal.TransportError{Method: method, Path: path, Err: err}
	}
	internal.LogDebug("%s %s -> %d (%v)", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &internal.APIError{Method: method, Path: path, Status: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			apiErr.Message = eb.Error
			if apiErr.Message == "" {
				apiErr.Message = eb.Message
			}
		}
		internal.LogDebug("%s", apiErr.Detail())
		return apiErr
	}

	if out == nil {
		return nil
	}
	return decode(data, out)
}

// decode unmarshals data into out and runs schema validation on it
func decode(data []byte, out any) error {
	typeName := fmt.Sprintf("%T", out)
	if err := json.Unmarshal(data, out); err != nil {
		return &internal.DecodeError{Type: typeName, Err: err}
	}
	if v, ok := out.(validator); ok {
		if err := v.Validate(); err != nil {
			var decErr *internal.DecodeError
			if errors.As(err, &decErr) {
				if decErr.Type == "" {
					decErr.Type = typeName
				}
				return decErr
			}
			return &internal.DecodeError{Type: typeName, Err: err}
		}
	}
	return nil
}
