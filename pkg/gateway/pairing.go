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
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultPairingPoll = 2 * time.Second

// PairingStatus is the gateway-side state of a pairing request.
type PairingStatus string

const (
	PairingPending PairingStatus = "pending"
	PairingGranted PairingStatus = "granted"
	PairingDenied  PairingStatus = "denied"
	PairingTimeout PairingStatus = "timeout"
)

// PairingTicket is an in-flight pairing request. The app token becomes
// usable only once the user confirms on the gateway's front panel and
// tracking reports granted.
type PairingTicket struct {
	AppToken string
	TrackID  int
}

// RequestAuthorization asks the gateway to start the pairing flow.
func (c *Client) RequestAuthorization(ctx context.Context) (*PairingTicket, error) {
	requestURL, err := c.endpointURL(ctx, "login/authorize")
	if err != nil {
		return nil, err
	}

	payload := authorizeRequest{
		AppID:      c.config.AppID,
		AppName:    c.config.AppName,
		AppVersion: c.config.AppVersion,
		DeviceName: c.config.DeviceName,
	}

	status, envelope, err := c.roundTrip(ctx, http.MethodPost, requestURL, payload, "")
	if err != nil {
		return nil, fmt.Errorf("failed to request authorization: %w", err)
	}

	result, err := unwrapResult(status, envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to request authorization: %w", err)
	}

	var grant authorizeResult

	if err := json.Unmarshal(result, &grant); err != nil {
		return nil, fmt.Errorf("failed to parse authorization grant: %w", err)
	}

	c.logger.Info().
		Int("track_id", grant.TrackID).
		Str("app_id", c.config.AppID).
		Msg("Pairing requested, confirm on the gateway front panel")

	return &PairingTicket{AppToken: grant.AppToken, TrackID: grant.TrackID}, nil
}

// TrackAuthorization reads the current state of a pairing request.
func (c *Client) TrackAuthorization(ctx context.Context, trackID int) (PairingStatus, error) {
	requestURL, err := c.endpointURL(ctx, fmt.Sprintf("login/authorize/%d", trackID))
	if err != nil {
		return "", err
	}

	status, envelope, err := c.roundTrip(ctx, http.MethodGet, requestURL, nil, "")
	if err != nil {
		return "", err
	}

	result, err := unwrapResult(status, envelope)
	if err != nil {
		return "", err
	}

	var track trackResult

	if err := json.Unmarshal(result, &track); err != nil {
		return "", fmt.Errorf("failed to parse authorization state: %w", err)
	}

	return PairingStatus(track.Status), nil
}

// WaitForAuthorization polls the pairing request until the user grants
// or rejects it, or ctx expires. Transient poll errors keep the wait
// going; the context bounds the whole flow.
func (c *Client) WaitForAuthorization(ctx context.Context, trackID int, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultPairingPoll
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.TrackAuthorization(ctx, trackID)
		if err != nil {
			c.logger.Warn().Err(err).Int("track_id", trackID).Msg("Pairing state check failed, retrying")
		}

		switch status {
		case PairingGranted:
			c.logger.Info().Int("track_id", trackID).Msg("Pairing granted")
			return nil
		case PairingDenied:
			return ErrPairingDenied
		case PairingTimeout:
			return ErrPairingTimeout
		case PairingPending, "":
		default:
			c.logger.Debug().Str("state", string(status)).Msg("Pairing state")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
