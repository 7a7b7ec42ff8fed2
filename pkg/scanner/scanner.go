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

// Package scanner discovers the devices present on the local segment by
// driving the arp-scan binary.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/lanwarden/lanwarden/pkg/logger"
	"github.com/lanwarden/lanwarden/pkg/models"
)

const (
	arpScanBinary  = "arp-scan"
	defaultTimeout = 30 * time.Second
)

// Config holds the scan adapter settings.
type Config struct {
	Interface string          `json:"interface"`
	Timeout   models.Duration `json:"timeout,omitempty"`
}

// Validate checks required fields and applies defaults.
func (c *Config) Validate() error {
	if c.Interface == "" {
		return ErrNoInterface
	}

	if c.Timeout == 0 {
		c.Timeout = models.Duration(defaultTimeout)
	}

	return nil
}

// runner abstracts command execution so tests can inject canned output.
type runner interface {
	run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// ArpScanner shells out to arp-scan and normalizes its output.
type ArpScanner struct {
	config *Config
	runner runner
	logger logger.Logger
}

// New creates a scanner for the configured interface.
func New(config *Config, log logger.Logger) (*ArpScanner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &ArpScanner{
		config: config,
		runner: execRunner{},
		logger: log,
	}, nil
}

// Scan runs one sweep of the segment and returns the canonical MACs that
// answered. The result is complete or the call fails; a partial set is
// never returned, and an empty sweep is an error.
func (s *ArpScanner) Scan(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.config.Timeout))
	defer cancel()

	output, err := s.runner.run(ctx, arpScanBinary,
		"--interface", s.config.Interface, "--localnet", "--quiet")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %v: %s",
				ErrScanFailed, err, strings.TrimSpace(string(exitErr.Stderr)))
		}

		return nil, fmt.Errorf("%w: %v", ErrScanFailed, err)
	}

	macs := parseScanOutput(output)
	if len(macs) == 0 {
		return nil, fmt.Errorf("%w: interface %s", ErrEmptyScan, s.config.Interface)
	}

	s.logger.Debug().
		Int("devices", len(macs)).
		Str("interface", s.config.Interface).
		Msg("Network scan complete")

	return macs, nil
}

// parseScanOutput extracts MACs from arp-scan result lines of the form
// "192.168.1.34<tab>aa:bb:cc:dd:ee:ff<tab>Vendor". The second field of the
// header and footer lines never validates as a MAC, so they fall out here.
func parseScanOutput(output []byte) []string {
	seen := make(map[string]struct{})

	var macs []string

	for _, line := range strings.Split(string(output), "\n") {
		if !strings.Contains(line, ":") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		mac, err := models.NormalizeMAC(fields[1])
		if err != nil {
			continue
		}

		if _, ok := seen[mac]; ok {
			continue
		}

		seen[mac] = struct{}{}

		macs = append(macs, mac)
	}

	sort.Strings(macs)

	return macs
}
