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

package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // the gateway protocol mandates HMAC-SHA1
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
)

// EnsureSession makes sure the client holds a session token the gateway
// accepts. Candidates are tried in order: the in-memory token, the token
// cached by the store, the token re-read from disk (another process may
// have rotated it), and finally a fresh challenge handshake.
func (c *Client) EnsureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ensureSessionLocked(ctx)
}

func (c *Client) ensureSessionLocked(ctx context.Context) error {
	if err := c.ensureEndpointLocked(ctx); err != nil {
		return err
	}

	tried := ""

	if c.sessionToken != "" {
		if c.probeLocked(ctx, c.sessionToken) {
			return nil
		}

		tried = c.sessionToken
		c.sessionToken = ""
	}

	if token := c.store.SessionToken(); token != "" && token != tried {
		if c.probeLocked(ctx, token) {
			c.sessionToken = token
			return nil
		}

		tried = token
	}

	if token, err := c.store.Refresh(); err == nil && token != "" && token != tried {
		if c.probeLocked(ctx, token) {
			c.sessionToken = token
			return nil
		}
	}

	if err := c.handshakeLocked(ctx); err != nil {
		c.connected = false
		return err
	}

	return nil
}

// renewSession replaces a rejected session token. The credential file is
// re-read first: with last-write-wins sharing a sibling process may have
// already rotated the token, and adopting it avoids invalidating theirs.
func (c *Client) renewSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rejected := c.sessionToken
	c.sessionToken = ""

	if token, err := c.store.Refresh(); err == nil && token != "" && token != rejected {
		if c.probeLocked(ctx, token) {
			c.sessionToken = token

			c.logger.Info().Msg("Adopted session token rotated by another process")

			return nil
		}
	}

	if err := c.handshakeLocked(ctx); err != nil {
		c.connected = false
		return err
	}

	return nil
}

// probeLocked checks a session token with a lightweight authenticated
// read of the login endpoint.
func (c *Client) probeLocked(ctx context.Context, token string) bool {
	status, envelope, err := c.roundTrip(ctx, http.MethodGet, c.apiURLLocked("login"), nil, token)
	if err != nil || status != http.StatusOK || envelope == nil || !envelope.Success {
		return false
	}

	var login challengeResult

	if err := json.Unmarshal(envelope.Result, &login); err != nil {
		return false
	}

	return login.LoggedIn
}

// handshakeLocked runs the challenge/response login: fetch a challenge,
// sign it with the app token, trade the signature for a session token.
func (c *Client) handshakeLocked(ctx context.Context) error {
	appToken, err := c.store.AppToken()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}

	status, envelope, err := c.roundTrip(ctx, http.MethodGet, c.apiURLLocked("login"), nil, "")
	if err != nil {
		return fmt.Errorf("failed to fetch login challenge: %w", err)
	}

	result, err := unwrapResult(status, envelope)
	if err != nil {
		return fmt.Errorf("failed to fetch login challenge: %w", err)
	}

	var login challengeResult

	if err := json.Unmarshal(result, &login); err != nil {
		return fmt.Errorf("failed to parse login challenge: %w", err)
	}

	if login.Challenge == "" {
		return ErrChallengeMissing
	}

	payload := sessionRequest{
		AppID:    c.config.AppID,
		Password: sessionPassword(appToken, login.Challenge),
	}

	status, envelope, err = c.roundTrip(ctx, http.MethodPost, c.apiURLLocked("login/session"), payload, "")
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	result, err = unwrapResult(status, envelope)
	if err != nil {
		if envelope != nil && envelope.ErrorCode == errCodeInvalidToken {
			return fmt.Errorf("%w: app token no longer valid, pair again", ErrAuthRequired)
		}

		return fmt.Errorf("failed to open session: %w", err)
	}

	var session sessionResult

	if err := json.Unmarshal(result, &session); err != nil {
		return fmt.Errorf("failed to parse session response: %w", err)
	}

	if session.SessionToken == "" {
		return fmt.Errorf("%w: empty session token", ErrRequestFailed)
	}

	c.sessionToken = session.SessionToken

	c.logger.Info().Msg("Gateway session established")

	if err := c.store.SaveSessionToken(session.SessionToken); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to persist session token")
	}

	return nil
}

// sessionPassword derives the login password from the pairing token and
// the server challenge. The key is the raw app token string.
func sessionPassword(appToken, challenge string) string {
	mac := hmac.New(sha1.New, []byte(appToken))
	mac.Write([]byte(challenge))

	return hex.EncodeToString(mac.Sum(nil))
}

// TestConnection verifies API access by reading the system endpoint and
// marks the client connected on success.
func (c *Client) TestConnection(ctx context.Context) error {
	result, err := c.doAuthed(ctx, http.MethodGet, "system", nil)
	if err != nil {
		return err
	}

	var system systemInfo

	if err := json.Unmarshal(result, &system); err != nil {
		return fmt.Errorf("failed to parse system info: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.logger.Info().
		Str("uptime", system.Uptime).
		Str("board", system.BoardName).
		Msg("Gateway API connection verified")

	return nil
}
