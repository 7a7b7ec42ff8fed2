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

// Package notify delivers operator alerts for device state changes.
package notify

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

	"github.com/lanwarden/lanwarden/pkg/logger"
	"github.com/lanwarden/lanwarden/pkg/models"
)

const (
	defaultTimeout  = 10 * time.Second
	unknownHostname = "unknown device"
	eventTimeLayout = "2006-01-02 15:04:05"

	colorAuthorized = "#36a64f"
	colorQuarantine = "#ff9900"
	colorBanned     = "#ff0000"
)

var errWebhookStatus = errors.New("webhook delivery failed")

// Event describes a device state change worth telling an operator about.
type Event struct {
	MAC      string
	Hostname string
	Status   models.Status
	At       time.Time
}

// Notifier delivers alerts. Deliveries are best effort: callers log a
// returned error and carry on, enforcement never waits on a webhook.
type Notifier interface {
	NewDevice(ctx context.Context, event Event) error
	DeviceBlocked(ctx context.Context, event Event) error
}

// Config holds the webhook notifier settings. An empty URL disables
// notifications entirely.
type Config struct {
	WebhookURL string          `json:"webhook_url,omitempty"`
	Timeout    models.Duration `json:"timeout,omitempty"`
}

// New returns a webhook notifier, or a no-op notifier when no webhook is
// configured.
func New(config *Config, log logger.Logger) Notifier {
	if config == nil || config.WebhookURL == "" {
		log.Info().Msg("No webhook configured, notifications disabled")
		return NoopNotifier{}
	}

	timeout := time.Duration(config.Timeout)
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &WebhookNotifier{
		url:        config.WebhookURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

// NoopNotifier drops all events.
type NoopNotifier struct{}

// NewDevice implements Notifier.
func (NoopNotifier) NewDevice(context.Context, Event) error { return nil }

// DeviceBlocked implements Notifier.
func (NoopNotifier) DeviceBlocked(context.Context, Event) error { return nil }

// WebhookNotifier posts Slack-compatible attachment messages to a webhook.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	logger     logger.Logger
}

type webhookMessage struct {
	Text        string              `json:"text"`
	Attachments []webhookAttachment `json:"attachments"`
}

type webhookAttachment struct {
	Color  string         `json:"color"`
	Fields []webhookField `json:"fields"`
	Footer string         `json:"footer"`
	Ts     int64          `json:"ts"`
}

type webhookField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// NewDevice announces a device seen on the segment for the first time.
func (n *WebhookNotifier) NewDevice(ctx context.Context, event Event) error {
	at := eventTime(event)

	message := &webhookMessage{
		Text: "New device detected on the network",
		Attachments: []webhookAttachment{{
			Color: statusColor(event.Status),
			Fields: []webhookField{
				{Title: "Device", Value: hostnameOrFallback(event), Short: true},
				{Title: "MAC address", Value: macField(event.MAC), Short: true},
				{Title: "Status", Value: string(event.Status), Short: true},
				{Title: "Detected", Value: at.Format(eventTimeLayout), Short: true},
			},
			Footer: "lanwarden network monitor",
			Ts:     at.Unix(),
		}},
	}

	return n.post(ctx, message)
}

// DeviceBlocked announces that enforcement took effect on the gateway.
func (n *WebhookNotifier) DeviceBlocked(ctx context.Context, event Event) error {
	at := eventTime(event)

	message := &webhookMessage{
		Text: "Device blocked on the gateway",
		Attachments: []webhookAttachment{{
			Color: colorBanned,
			Fields: []webhookField{
				{Title: "Device", Value: hostnameOrFallback(event), Short: true},
				{Title: "MAC address", Value: macField(event.MAC), Short: true},
				{Title: "Action", Value: "WiFi filter blacklist", Short: true},
				{Title: "Blocked", Value: at.Format(eventTimeLayout), Short: true},
			},
			Footer: "lanwarden enforcement",
			Ts:     at.Unix(),
		}},
	}

	return n.post(ctx, message)
}

func (n *WebhookNotifier) post(ctx context.Context, message *webhookMessage) error {
	bodyBytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d, response: %s", errWebhookStatus, resp.StatusCode, string(respBody))
	}

	n.logger.Debug().Str("text", message.Text).Msg("Webhook notification delivered")

	return nil
}

func eventTime(event Event) time.Time {
	if event.At.IsZero() {
		return time.Now()
	}

	return event.At
}

func hostnameOrFallback(event Event) string {
	if event.Hostname == "" {
		return unknownHostname
	}

	return event.Hostname
}

func macField(mac string) string {
	return "`" + strings.ToUpper(mac) + "`"
}

func statusColor(status models.Status) string {
	switch status {
	case models.StatusQuarantine:
		return colorQuarantine
	case models.StatusBanned:
		return colorBanned
	default:
		return colorAuthorized
	}
}
