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

	"github.com/lanwarden/lanwarden/pkg/models"
)

// ListLanHosts returns the gateway's LAN browser view of the segment.
// Entries without a usable MAC are dropped; an absent access flag is
// reported as granted.
func (c *Client) ListLanHosts(ctx context.Context) ([]LanHost, error) {
	if !c.Connected() {
		return nil, ErrNotConnected
	}

	result, err := c.doAuthed(ctx, http.MethodGet, "lan/browser/pub/", nil)
	if err != nil {
		return nil, err
	}

	var records []lanHostRecord

	if err := json.Unmarshal(result, &records); err != nil {
		return nil, fmt.Errorf("failed to parse lan hosts: %w", err)
	}

	hosts := make([]LanHost, 0, len(records))

	for _, record := range records {
		mac, err := models.NormalizeMAC(record.L2Ident.ID)
		if err != nil {
			continue
		}

		host := LanHost{
			MAC:      mac,
			Hostname: record.PrimaryName,
			Active:   record.Active,
			Access:   true,
		}

		if record.Access != nil {
			host.Access = *record.Access
		}

		hosts = append(hosts, host)
	}

	return hosts, nil
}

// Hostname resolves a MAC to the gateway's primary name for it. Unknown
// devices yield an empty name, not an error.
func (c *Client) Hostname(ctx context.Context, mac string) (string, error) {
	canonical, err := models.NormalizeMAC(mac)
	if err != nil {
		return "", err
	}

	hosts, err := c.ListLanHosts(ctx)
	if err != nil {
		return "", err
	}

	for _, host := range hosts {
		if host.MAC == canonical {
			return host.Hostname, nil
		}
	}

	return "", nil
}
