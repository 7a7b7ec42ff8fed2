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
	"encoding/json"
)

// apiResponse is the envelope every gateway endpoint wraps its reply in.
type apiResponse struct {
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result,omitempty"`
	Message   string          `json:"msg,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
}

// versionInfo is the unversioned discovery document served at /api_version.
type versionInfo struct {
	APIVersion string `json:"api_version"`
	DeviceName string `json:"device_name"`
	BoxModel   string `json:"box_model,omitempty"`
}

type challengeResult struct {
	LoggedIn  bool   `json:"logged_in"`
	Challenge string `json:"challenge"`
}

type sessionRequest struct {
	AppID    string `json:"app_id"`
	Password string `json:"password"`
}

type sessionResult struct {
	SessionToken string          `json:"session_token"`
	Permissions  map[string]bool `json:"permissions,omitempty"`
}

type systemInfo struct {
	Uptime    string `json:"uptime"`
	UptimeVal int64  `json:"uptime_val"`
	BoardName string `json:"board_name"`
}

// flexID tolerates firmwares that serve filter rule ids as numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*f = flexID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}

	*f = flexID(n.String())

	return nil
}

// FilterEntry is one MAC filter rule, normalized from either wire shape.
type FilterEntry struct {
	ID      string `json:"id"`
	MAC     string `json:"mac"`
	Type    string `json:"type"`
	Comment string `json:"comment,omitempty"`
}

// filterRule is the wire shape of a filter rule.
type filterRule struct {
	ID      flexID `json:"id"`
	MAC     string `json:"mac"`
	Type    string `json:"type"`
	Comment string `json:"comment"`
}

// filterRequest is the payload that creates a filter rule.
type filterRequest struct {
	MAC  string `json:"mac"`
	Type string `json:"type"`
}

// LanHost is one device in the gateway's LAN browser view.
type LanHost struct {
	MAC      string `json:"mac"`
	Hostname string `json:"hostname"`
	Active   bool   `json:"active"`
	Access   bool   `json:"access"`
}

// lanHostRecord is the wire shape of a LAN browser entry. The access
// flag is absent on some firmwares and then means granted.
type lanHostRecord struct {
	PrimaryName string `json:"primary_name"`
	Active      bool   `json:"active"`
	Access      *bool  `json:"access"`
	L2Ident     struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"l2ident"`
}

type authorizeRequest struct {
	AppID      string `json:"app_id"`
	AppName    string `json:"app_name"`
	AppVersion string `json:"app_version"`
	DeviceName string `json:"device_name"`
}

type authorizeResult struct {
	AppToken string `json:"app_token"`
	TrackID  int    `json:"track_id"`
}

type trackResult struct {
	Status    string `json:"status"`
	Challenge string `json:"challenge"`
}
