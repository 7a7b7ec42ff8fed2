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

package api

import "github.com/lanwarden/lanwarden/pkg/models"

// Enforcement outcomes reported by device updates.
const (
	enforcementApplied  = "applied"
	enforcementFailed   = "failed"
	enforcementDeferred = "deferred"
)

// statusResponse is the GET /api/status payload.
type statusResponse struct {
	GatewayConnected bool                  `json:"gateway_connected"`
	Devices          map[models.Status]int `json:"devices"`
	Version          string                `json:"version"`
}

// addDeviceRequest is the POST /api/devices payload.
type addDeviceRequest struct {
	MAC     string `json:"mac"`
	Status  string `json:"status,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// updateDeviceRequest is the POST /api/devices/{mac} payload. Pointers
// distinguish an omitted field from an explicit empty value; an empty
// comment clears the stored one.
type updateDeviceRequest struct {
	Status  *string `json:"status,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

// updateDeviceResponse reports the updated row and what happened on the
// gateway. Enforcement is empty when the status did not change.
type updateDeviceResponse struct {
	Device           models.Device `json:"device"`
	Enforcement      string        `json:"enforcement,omitempty"`
	EnforcementError string        `json:"enforcement_error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
