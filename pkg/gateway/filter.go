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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/lanwarden/lanwarden/pkg/models"
)

const macFilterPath = "wifi/mac_filter/"

// ListFilter returns the gateway MAC filter normalized to a flat list.
// Depending on firmware the result is a JSON array of rules or an object
// keyed by MAC; both shapes collapse here, nowhere else.
func (c *Client) ListFilter(ctx context.Context) ([]FilterEntry, error) {
	if !c.Connected() {
		return nil, ErrNotConnected
	}

	result, err := c.doAuthed(ctx, http.MethodGet, macFilterPath, nil)
	if err != nil {
		return nil, err
	}

	return parseFilterEntries(result)
}

// Block adds the device to the gateway blacklist. A MAC already present
// in the filter is left alone, so repeated blocks never pile up rules.
func (c *Client) Block(ctx context.Context, mac string) error {
	if !c.Connected() {
		return fmt.Errorf("%w: cannot block %s", ErrNotConnected, mac)
	}

	canonical, err := models.NormalizeMAC(mac)
	if err != nil {
		return err
	}

	entries, err := c.ListFilter(ctx)
	if err != nil {
		// Listing is advisory here, the add below does the enforcing.
		c.logger.Warn().Err(err).Str("mac", canonical).Msg("Could not read MAC filter before blocking")
	}

	for _, entry := range entries {
		if strings.EqualFold(entry.MAC, canonical) {
			c.logger.Debug().Str("mac", canonical).Msg("MAC already present in gateway blacklist")
			return nil
		}
	}

	payload := filterRequest{MAC: strings.ToUpper(canonical), Type: filterTypeBlacklist}

	if _, err := c.doAuthed(ctx, http.MethodPost, macFilterPath, payload); err != nil {
		return fmt.Errorf("failed to blacklist %s: %w", canonical, err)
	}

	c.logger.Info().Str("mac", canonical).Msg("Device blocked on gateway")

	return nil
}

// Allow removes the device from the gateway blacklist. A MAC without a
// filter entry is already allowed and succeeds without a write.
func (c *Client) Allow(ctx context.Context, mac string) error {
	if !c.Connected() {
		return fmt.Errorf("%w: cannot allow %s", ErrNotConnected, mac)
	}

	canonical, err := models.NormalizeMAC(mac)
	if err != nil {
		return err
	}

	entries, err := c.ListFilter(ctx)
	if err != nil {
		return fmt.Errorf("failed to read MAC filter: %w", err)
	}

	var entry *FilterEntry

	for i := range entries {
		if strings.EqualFold(entries[i].MAC, canonical) {
			entry = &entries[i]
			break
		}
	}

	if entry == nil || entry.ID == "" {
		c.logger.Debug().Str("mac", canonical).Msg("MAC not present in gateway filter, nothing to remove")
		return nil
	}

	if _, err := c.doAuthed(ctx, http.MethodDelete, macFilterPath+entry.ID, nil); err != nil {
		return fmt.Errorf("failed to remove filter entry %s: %w", entry.ID, err)
	}

	c.logger.Info().Str("mac", canonical).Str("filter_id", entry.ID).Msg("Device allowed on gateway")

	return nil
}

func parseFilterEntries(raw json.RawMessage) ([]FilterEntry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var rules []filterRule

		if err := json.Unmarshal(trimmed, &rules); err != nil {
			return nil, fmt.Errorf("failed to parse filter list: %w", err)
		}

		entries := make([]FilterEntry, 0, len(rules))
		for _, rule := range rules {
			entries = append(entries, FilterEntry{
				ID:      string(rule.ID),
				MAC:     rule.MAC,
				Type:    rule.Type,
				Comment: rule.Comment,
			})
		}

		return entries, nil
	}

	var byMAC map[string]json.RawMessage

	if err := json.Unmarshal(trimmed, &byMAC); err != nil {
		return nil, fmt.Errorf("failed to parse filter map: %w", err)
	}

	entries := make([]FilterEntry, 0, len(byMAC))

	for mac, value := range byMAC {
		entry := FilterEntry{MAC: mac}

		detail := bytes.TrimSpace(value)
		if len(detail) > 0 && detail[0] == '{' {
			var rule filterRule

			if err := json.Unmarshal(detail, &rule); err != nil {
				return nil, fmt.Errorf("failed to parse filter entry for %s: %w", mac, err)
			}

			entry.ID = string(rule.ID)
			entry.Type = rule.Type
			entry.Comment = rule.Comment
		} else {
			// Older firmwares key scalar rules by MAC and address them
			// with a synthetic "<mac>-blacklist" id.
			entry.ID = mac + "-" + filterTypeBlacklist
			entry.Type = filterTypeBlacklist
		}

		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].MAC < entries[j].MAC })

	return entries, nil
}
