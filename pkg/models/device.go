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

// Package models contains the shared domain types for lanwarden.
package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Status is the access policy assigned to a device.
type Status string

const (
	// StatusAuthorized devices are granted network access.
	StatusAuthorized Status = "authorized"
	// StatusQuarantine is the default for newly observed devices; access is blocked.
	StatusQuarantine Status = "quarantine"
	// StatusBanned devices are blocked permanently until an operator intervenes.
	StatusBanned Status = "banned"
)

// Valid reports whether s is one of the closed set of policy statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAuthorized, StatusQuarantine, StatusBanned:
		return true
	default:
		return false
	}
}

// ShouldBlock reports whether the gateway filter must contain the device.
func (s Status) ShouldBlock() bool {
	return s != StatusAuthorized
}

// ParseStatus validates operator-supplied status strings.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}

	return s, nil
}

// Device is one row of the policy registry, keyed by canonical MAC.
type Device struct {
	MAC       string    `json:"mac"`
	Status    Status    `json:"status"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Comment   string    `json:"comment,omitempty"`
}

// macPattern matches the canonical lowercase colon-separated form.
var macPattern = regexp.MustCompile(`^([0-9a-f]{2}:){5}[0-9a-f]{2}$`)

// NormalizeMAC converts a MAC address to the canonical lowercase
// colon-separated form used as the registry key. Gateway responses and
// operator input may carry uppercase or dash-separated variants.
func NormalizeMAC(raw string) (string, error) {
	mac := strings.ToLower(strings.TrimSpace(raw))
	mac = strings.ReplaceAll(mac, "-", ":")

	if !macPattern.MatchString(mac) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMAC, raw)
	}

	return mac, nil
}
