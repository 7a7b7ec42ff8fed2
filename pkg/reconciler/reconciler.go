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

// Package reconciler runs the periodic scan, classify, and enforce loop
// that keeps the gateway's WiFi filter aligned with the policy registry.
package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lanwarden/lanwarden/pkg/gateway"
	"github.com/lanwarden/lanwarden/pkg/logger"
	"github.com/lanwarden/lanwarden/pkg/models"
	"github.com/lanwarden/lanwarden/pkg/notify"
)

// Service owns the reconciliation loop. Cycles run sequentially; a cycle
// finishes before the next tick is honored.
type Service struct {
	config   Config
	registry Registry
	gateway  Gateway
	scanner  Scanner
	notifier notify.Notifier
	clock    Clock
	logger   logger.Logger

	done      chan struct{}
	closeOnce sync.Once

	// Cycles since the last drift check. Only touched by the loop goroutine.
	cyclesSinceDriftCheck int
}

// New creates the reconciliation service. A nil clock selects the real one.
func New(
	config *Config,
	reg Registry,
	gw Gateway,
	scan Scanner,
	notifier notify.Notifier,
	clock Clock,
	log logger.Logger,
) (*Service, error) {
	if config == nil {
		config = &Config{}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if clock == nil {
		clock = realClock{}
	}

	return &Service{
		config:   *config,
		registry: reg,
		gateway:  gw,
		scanner:  scan,
		notifier: notifier,
		clock:    clock,
		logger:   log,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the loop until ctx is canceled or Stop is called. The first
// cycle runs immediately so a restart converges without waiting a full
// interval.
func (s *Service) Start(ctx context.Context) error {
	interval := time.Duration(s.config.ScanInterval)
	ticker := s.clock.Ticker(interval)

	defer ticker.Stop()

	s.logger.Info().
		Str("scan_interval", interval.String()).
		Int("drift_check_interval", s.config.DriftCheckInterval).
		Str("interface", s.config.Scan.Interface).
		Msg("Starting reconciliation loop")

	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-ticker.Chan():
			s.runCycle(ctx)
		}
	}
}

// Stop signals the loop to exit after the in-flight cycle.
func (s *Service) Stop(_ context.Context) error {
	s.closeOnce.Do(func() {
		close(s.done)
	})

	return nil
}

// runCycle performs one reconciliation pass. Every failure is contained
// here so the loop survives flaky scans, a rebooting gateway, and
// registry hiccups alike.
func (s *Service) runCycle(ctx context.Context) {
	log := s.logger.WithFields(map[string]interface{}{
		"cycle_id": uuid.New().String(),
	})

	s.ensureGateway(ctx, log)

	macs, err := s.scanner.Scan(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Scan failed, leaving policy state untouched")
		return
	}

	known, err := s.knownStatuses(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load policy registry")
		return
	}

	for _, mac := range macs {
		s.classifyDevice(ctx, log, mac, known)
	}

	s.cyclesSinceDriftCheck++
	if s.cyclesSinceDriftCheck >= s.config.DriftCheckInterval {
		s.checkDrift(ctx, log)
		s.cyclesSinceDriftCheck = 0
	}

	log.Debug().
		Int("devices", len(macs)).
		Msg("Reconciliation cycle complete")
}

// ensureGateway re-establishes the gateway session when it is down. A
// fresh session replays the banned list so the blacklist covers devices
// that went offline while the gateway was unreachable.
func (s *Service) ensureGateway(ctx context.Context, log zerolog.Logger) {
	if s.gateway.Connected() {
		return
	}

	if err := s.gateway.Initialize(ctx); err != nil {
		log.Warn().Err(err).Msg("Gateway unavailable, enforcement degraded to registry only")
		return
	}

	log.Info().Msg("Gateway session established")
	s.syncBanned(ctx, log)
}

func (s *Service) syncBanned(ctx context.Context, log zerolog.Logger) {
	banned, err := s.registry.ListByStatus(ctx, models.StatusBanned)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list banned devices")
		return
	}

	for _, device := range banned {
		if err := s.gateway.Block(ctx, device.MAC); err != nil {
			log.Error().Err(err).Str("mac", device.MAC).Msg("Failed to push banned device to blacklist")
		}
	}

	if len(banned) > 0 {
		log.Info().Int("count", len(banned)).Msg("Replayed banned devices to gateway blacklist")
	}
}

func (s *Service) knownStatuses(ctx context.Context) (map[string]models.Status, error) {
	devices, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]models.Status, len(devices))
	for _, device := range devices {
		known[device.MAC] = device.Status
	}

	return known, nil
}

// classifyDevice applies policy to one present device. Unknown MACs are
// quarantined; known ones get their status re-asserted and last_seen
// refreshed. Gateway errors never block the registry update.
func (s *Service) classifyDevice(ctx context.Context, log zerolog.Logger, mac string, known map[string]models.Status) {
	status, ok := known[mac]
	if !ok {
		s.handleNewDevice(ctx, log, mac)
		return
	}

	switch status {
	case models.StatusBanned, models.StatusQuarantine:
		if err := s.gateway.Block(ctx, mac); err != nil && !errors.Is(err, gateway.ErrNotConnected) {
			log.Error().Err(err).Str("mac", mac).Msg("Failed to block device")
		}
	case models.StatusAuthorized:
		if err := s.gateway.Allow(ctx, mac); err != nil && !errors.Is(err, gateway.ErrNotConnected) {
			log.Error().Err(err).Str("mac", mac).Msg("Failed to allow device")
		}
	}

	if err := s.registry.Touch(ctx, mac); err != nil {
		log.Error().Err(err).Str("mac", mac).Msg("Failed to refresh device last seen")
	}
}

// handleNewDevice quarantines a MAC seen for the first time. Each step
// runs even if the previous one failed: a device that could not be
// recorded must still be blocked, and vice versa.
func (s *Service) handleNewDevice(ctx context.Context, log zerolog.Logger, mac string) {
	log.Info().Str("mac", mac).Msg("New device detected, quarantining")

	if err := s.registry.Upsert(ctx, mac, models.StatusQuarantine, ""); err != nil {
		log.Error().Err(err).Str("mac", mac).Msg("Failed to record quarantined device")
	}

	if err := s.gateway.Block(ctx, mac); err != nil && !errors.Is(err, gateway.ErrNotConnected) {
		log.Error().Err(err).Str("mac", mac).Msg("Failed to block new device")
	}

	event := notify.Event{
		MAC:      mac,
		Hostname: s.lookupHostname(ctx, mac),
		Status:   models.StatusQuarantine,
		At:       s.clock.Now(),
	}

	if err := s.notifier.NewDevice(ctx, event); err != nil {
		log.Error().Err(err).Str("mac", mac).Msg("Failed to send new device notification")
	}
}

// checkDrift compares the gateway's per-host access flags against the
// registry and corrects mismatches. Hosts the gateway does not report
// are skipped; there is nothing to compare against.
func (s *Service) checkDrift(ctx context.Context, log zerolog.Logger) {
	if !s.gateway.Connected() {
		return
	}

	hosts, err := s.gateway.ListLanHosts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read gateway host list for drift check")
		return
	}

	access := make(map[string]bool, len(hosts))
	for _, host := range hosts {
		access[host.MAC] = host.Access
	}

	devices, err := s.registry.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load policy registry for drift check")
		return
	}

	corrections := 0

	for _, device := range devices {
		hasAccess, seen := access[device.MAC]
		if !seen {
			continue
		}

		if device.Status.ShouldBlock() == !hasAccess {
			continue
		}

		s.correctDrift(ctx, log, device, !device.Status.ShouldBlock())

		corrections++
	}

	log.Debug().
		Int("hosts", len(hosts)).
		Int("corrections", corrections).
		Msg("Drift check complete")
}

// correctDrift re-asserts the registry's verdict for one drifted device.
// Blocking corrections raise a notification; someone or something turned
// access back on behind our back.
func (s *Service) correctDrift(ctx context.Context, log zerolog.Logger, device models.Device, allow bool) {
	if allow {
		log.Warn().
			Str("mac", device.MAC).
			Str("status", string(device.Status)).
			Msg("Authorized device lost gateway access, restoring")

		if err := s.gateway.Allow(ctx, device.MAC); err != nil {
			log.Error().Err(err).Str("mac", device.MAC).Msg("Failed to restore device access")
		}

		return
	}

	log.Warn().
		Str("mac", device.MAC).
		Str("status", string(device.Status)).
		Msg("Restricted device regained gateway access, blocking")

	if err := s.gateway.Block(ctx, device.MAC); err != nil {
		log.Error().Err(err).Str("mac", device.MAC).Msg("Failed to re-block device")
		return
	}

	event := notify.Event{
		MAC:      device.MAC,
		Hostname: s.lookupHostname(ctx, device.MAC),
		Status:   device.Status,
		At:       s.clock.Now(),
	}

	if err := s.notifier.DeviceBlocked(ctx, event); err != nil {
		log.Error().Err(err).Str("mac", device.MAC).Msg("Failed to send drift notification")
	}
}

func (s *Service) lookupHostname(ctx context.Context, mac string) string {
	hostname, err := s.gateway.Hostname(ctx, mac)
	if err != nil {
		return ""
	}

	return hostname
}
