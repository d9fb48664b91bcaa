package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/edosecure/console/internal/model"
)

var (
	// ErrUnauthorized maps 401/403 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound maps 404 responses.
	ErrNotFound = errors.New("not found")
)

// StatusError is a non-2xx response from the platform API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: status=%d, body=%s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	}
	return false
}

// LoginResult is the payload of POST /api/auth/login.
type LoginResult struct {
	AccessToken string     `json:"access_token"`
	User        model.User `json:"user"`
}

// Client wraps the three remote operations of the incident platform: fetch
// incidents, fetch cameras, submit a status mutation. It never retries;
// retry policy belongs to the caller.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	log zerolog.Logger

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// Login authenticates and retains the access token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body := map[string]string{"username": username, "password": password}
	var out LoginResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.token = out.AccessToken
	c.mu.Unlock()
	return &out, nil
}

// Token returns the retained access token, empty before login.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// FetchIncidents returns the baseline incident list, newest first.
func (c *Client) FetchIncidents(ctx context.Context) ([]model.Incident, error) {
	var out []model.Incident
	if err := c.do(ctx, http.MethodGet, "/api/incidents", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchCameras returns the full camera catalog.
func (c *Client) FetchCameras(ctx context.Context) ([]model.Camera, error) {
	var out []model.Camera
	if err := c.do(ctx, http.MethodGet, "/api/cameras", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateIncidentStatus submits a status mutation and returns the updated
// record as echoed by the server.
func (c *Client) UpdateIncidentStatus(ctx context.Context, incidentID, status string) (*model.Incident, error) {
	body := map[string]string{"status": status}
	var out model.Incident
	if err := c.do(ctx, http.MethodPatch, "/api/incidents/"+incidentID, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, &buf)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		sample, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("api error response")
		return &StatusError{Code: resp.StatusCode, Body: string(sample)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
	}
	return nil
}
