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

package reconciler

import (
	"time"

	"github.com/lanwarden/lanwarden/pkg/gateway"
	"github.com/lanwarden/lanwarden/pkg/logger"
	"github.com/lanwarden/lanwarden/pkg/models"
	"github.com/lanwarden/lanwarden/pkg/notify"
	"github.com/lanwarden/lanwarden/pkg/scanner"
)

const (
	defaultScanInterval       = 5 * time.Minute
	defaultDriftCheckInterval = 3
	defaultDBPath             = "/var/lib/lanwarden/lanwarden.db"
)

// Config holds the reconciliation daemon configuration.
type Config struct {
	ScanInterval       models.Duration `json:"scan_interval,omitempty"`
	DriftCheckInterval int             `json:"drift_check_interval,omitempty"`
	DBPath             string          `json:"db_path,omitempty"`
	TokenPaths         []string        `json:"token_paths,omitempty"`
	Scan               scanner.Config  `json:"scan"`
	Gateway            gateway.Config  `json:"gateway"`
	Notifications      notify.Config   `json:"notifications,omitempty"`
	Logging            *logger.Config  `json:"logging,omitempty"`
}

// Validate checks the configuration and fills defaults.
func (c *Config) Validate() error {
	if c.ScanInterval == 0 {
		c.ScanInterval = models.Duration(defaultScanInterval)
	}

	if c.DriftCheckInterval <= 0 {
		c.DriftCheckInterval = defaultDriftCheckInterval
	}

	if c.DBPath == "" {
		c.DBPath = defaultDBPath
	}

	if err := c.Scan.Validate(); err != nil {
		return err
	}

	return c.Gateway.Validate()
}
