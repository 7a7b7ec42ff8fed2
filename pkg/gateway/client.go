/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package gateway implements the client for the router's proprietary
// HTTP API: challenge/response sessions, the WiFi MAC filter used for
// enforcement, the LAN browser and the one-time pairing flow.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lanwarden/lanwarden/pkg/logger"
	"github.com/lanwarden/lanwarden/pkg/models"
	"github.com/lanwarden/lanwarden/pkg/version"
)

const (
	sessionHeader = "X-Fbx-App-Auth"

	// defaultAPIVersion is used when an endpoint answers discovery but
	// omits the api_version field.
	defaultAPIVersion = "v8"

	defaultAppID      = "lanwarden"
	defaultAppName    = "LAN Warden"
	defaultDeviceName = "lanwarden"
	defaultTimeout    = 10 * time.Second

	errCodeAuthRequired   = "auth_required"
	errCodeInvalidSession = "invalid_session"
	errCodeInvalidToken   = "invalid_token"

	filterTypeBlacklist = "blacklist"
)

// DefaultEndpoints returns the gateway base URLs probed in order.
func DefaultEndpoints() []string {
	return []string{
		"http://mafreebox.freebox.fr",
		"http://192.168.1.1",
		"http://192.168.0.1",
	}
}

// Config holds gateway client settings.
type Config struct {
	Endpoints  []string        `json:"endpoints,omitempty"` // candidate base URLs, probed in order
	AppID      string          `json:"app_id,omitempty"`
	AppName    string          `json:"app_name,omitempty"`
	AppVersion string          `json:"app_version,omitempty"`
	DeviceName string          `json:"device_name,omitempty"`
	Timeout    models.Duration `json:"timeout,omitempty"` // per-request timeout
}

// Validate checks the configured endpoints and fills defaults.
func (c *Config) Validate() error {
	if len(c.Endpoints) == 0 {
		c.Endpoints = DefaultEndpoints()
	}

	for _, endpoint := range c.Endpoints {
		parsed, err := url.Parse(endpoint)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
		}
	}

	if c.AppID == "" {
		c.AppID = defaultAppID
	}

	if c.AppName == "" {
		c.AppName = defaultAppName
	}

	if c.AppVersion == "" {
		c.AppVersion = version.GetVersion()
	}

	if c.DeviceName == "" {
		c.DeviceName = defaultDeviceName
	}

	if c.Timeout <= 0 {
		c.Timeout = models.Duration(defaultTimeout)
	}

	return nil
}

// Client talks to the gateway API. All methods are safe for concurrent
// use; session state is shared across calls.
type Client struct {
	config     Config
	store      SessionStore
	httpClient HTTPClient
	logger     logger.Logger

	mu           sync.Mutex
	baseURL      string
	apiVersion   string
	sessionToken string
	connected    bool
}

// New creates a gateway client. A nil httpClient gets a default client
// with the configured timeout.
func New(config *Config, store SessionStore, httpClient HTTPClient, log logger.Logger) (*Client, error) {
	if config == nil {
		config = &Config{}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(config.Timeout)}
	}

	return &Client{
		config:     *config,
		store:      store,
		httpClient: httpClient,
		logger:     log,
	}, nil
}

// Initialize detects the gateway, opens a session and verifies API
// access. Failure leaves the client disconnected but usable for a later
// retry.
func (c *Client) Initialize(ctx context.Context) error {
	if err := c.DetectVersion(ctx); err != nil {
		return err
	}

	if err := c.EnsureSession(ctx); err != nil {
		return err
	}

	return c.TestConnection(ctx)
}

// Connected reports whether the last connection check succeeded.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

// DetectVersion walks the candidate endpoints and derives the versioned
// API base from the first one that answers discovery.
func (c *Client) DetectVersion(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.detectLocked(ctx)
}

func (c *Client) detectLocked(ctx context.Context) error {
	for _, endpoint := range c.config.Endpoints {
		info, err := c.fetchVersion(ctx, endpoint)
		if err != nil {
			c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("Gateway endpoint did not answer discovery")
			continue
		}

		apiVersion := defaultAPIVersion
		if info.APIVersion != "" {
			apiVersion = "v" + strings.SplitN(info.APIVersion, ".", 2)[0]
		}

		c.baseURL = endpoint
		c.apiVersion = apiVersion

		c.logger.Info().
			Str("endpoint", endpoint).
			Str("api_version", apiVersion).
			Str("device", info.DeviceName).
			Msg("Gateway detected")

		return nil
	}

	return fmt.Errorf("%w: tried %s", ErrNoEndpoint, strings.Join(c.config.Endpoints, ", "))
}

// fetchVersion reads the discovery document, which is served outside the
// versioned API prefix and outside the response envelope.
func (c *Client) fetchVersion(ctx context.Context, endpoint string) (*versionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/api_version", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var info versionInfo

	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to parse version info: %w", err)
	}

	return &info, nil
}

func (c *Client) ensureEndpointLocked(ctx context.Context) error {
	if c.baseURL != "" {
		return nil
	}

	return c.detectLocked(ctx)
}

// endpointURL builds the full URL for a versioned API path, running
// endpoint discovery first if it has not happened yet.
func (c *Client) endpointURL(ctx context.Context, path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureEndpointLocked(ctx); err != nil {
		return "", err
	}

	return c.apiURLLocked(path), nil
}

func (c *Client) apiURLLocked(path string) string {
	return fmt.Sprintf("%s/api/%s/%s", c.baseURL, c.apiVersion, path)
}

func (c *Client) currentSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sessionToken
}

// doAuthed performs an authenticated API call. A session rejection
// triggers exactly one fresh handshake and one retry of the call before
// the operation fails.
func (c *Client) doAuthed(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, error) {
	if c.currentSession() == "" {
		if err := c.EnsureSession(ctx); err != nil {
			return nil, err
		}
	}

	requestURL, err := c.endpointURL(ctx, path)
	if err != nil {
		return nil, err
	}

	status, envelope, err := c.roundTrip(ctx, method, requestURL, payload, c.currentSession())
	if err != nil {
		return nil, err
	}

	if !isSessionRejection(status, envelope) {
		return unwrapResult(status, envelope)
	}

	c.logger.Warn().Str("path", path).Msg("Session rejected by gateway, re-authenticating")

	if err := c.renewSession(ctx); err != nil {
		return nil, err
	}

	status, envelope, err = c.roundTrip(ctx, method, requestURL, payload, c.currentSession())
	if err != nil {
		return nil, err
	}

	if isSessionRejection(status, envelope) {
		return nil, fmt.Errorf("%w: %s %s", ErrSessionRejected, method, path)
	}

	return unwrapResult(status, envelope)
}

// roundTrip sends one request and decodes the response envelope. A body
// that is not an envelope yields a nil envelope, not an error, so that
// callers can still act on the HTTP status.
func (c *Client) roundTrip(ctx context.Context, method, requestURL string, payload interface{}, sessionToken string) (int, *apiResponse, error) {
	var body io.Reader

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal payload: %w", err)
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if sessionToken != "" {
		req.Header.Set(sessionHeader, sessionToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	var envelope apiResponse

	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Str("body", string(data)).
			Msg("Gateway reply is not an API envelope")

		return resp.StatusCode, nil, nil
	}

	return resp.StatusCode, &envelope, nil
}

// isSessionRejection reports whether a reply means the session token is
// no longer accepted.
func isSessionRejection(status int, envelope *apiResponse) bool {
	if status == http.StatusForbidden {
		return true
	}

	if envelope == nil || envelope.Success {
		return false
	}

	return envelope.ErrorCode == errCodeAuthRequired || envelope.ErrorCode == errCodeInvalidSession
}

// unwrapResult reduces a gateway reply to its result payload or a typed
// error.
func unwrapResult(status int, envelope *apiResponse) (json.RawMessage, error) {
	if envelope == nil {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnexpectedStatus, status)
	}

	if !envelope.Success {
		if envelope.ErrorCode != "" {
			return nil, fmt.Errorf("%w: %s (%s)", ErrRequestFailed, envelope.Message, envelope.ErrorCode)
		}

		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, envelope.Message)
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnexpectedStatus, status)
	}

	return envelope.Result, nil
}
