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

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lanwarden/lanwarden/pkg/models"
	"github.com/lanwarden/lanwarden/pkg/registry"
	"github.com/lanwarden/lanwarden/pkg/version"
)

var errEmptyUpdate = errors.New("request must set status or comment")

// getStatus reports gateway reachability and registry counts. The probe
// runs on every request so a recovered or vanished gateway shows up
// without restarting the admin process.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	probeCtx, cancel := context.WithTimeout(r.Context(), statusProbeTimeout)
	defer cancel()

	connected := s.gateway.TestConnection(probeCtx) == nil

	counts, err := s.registry.CountByStatus(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, statusResponse{
		GatewayConnected: connected,
		Devices:          counts,
		Version:          version.GetVersion(),
	})
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	if devices == nil {
		devices = []models.Device{}
	}

	s.writeJSON(w, http.StatusOK, devices)
}

// addDevice records a device by hand. Like devices found by scanning,
// manual adds default to quarantine. The gateway is not touched; the
// next engine cycle applies the policy.
func (s *Server) addDevice(w http.ResponseWriter, r *http.Request) {
	var req addDeviceRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	mac, err := models.NormalizeMAC(req.MAC)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	status := models.StatusQuarantine

	if req.Status != "" {
		status, err = models.ParseStatus(req.Status)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	if err := s.registry.Upsert(r.Context(), mac, status, req.Comment); err != nil {
		s.writeRegistryError(w, err)
		return
	}

	device, err := s.registry.Get(r.Context(), mac)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.logger.Info().
		Str("mac", mac).
		Str("status", string(status)).
		Msg("Device added via admin API")

	s.writeJSON(w, http.StatusCreated, device)
}

// updateDevice changes status and/or comment for an existing row. A
// status change is pushed to the gateway right away; the outcome is
// reported but never rolls back the registry write, the engine's drift
// check converges the gateway later.
func (s *Server) updateDevice(w http.ResponseWriter, r *http.Request) {
	var req updateDeviceRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	if req.Status == nil && req.Comment == nil {
		s.writeError(w, http.StatusBadRequest, errEmptyUpdate)
		return
	}

	current, err := s.registry.Get(r.Context(), mux.Vars(r)["mac"])
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	resp := updateDeviceResponse{}

	if req.Status != nil {
		status, err := models.ParseStatus(*req.Status)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}

		if err := s.registry.UpdateStatus(r.Context(), current.MAC, status); err != nil {
			s.writeRegistryError(w, err)
			return
		}

		if status != current.Status {
			resp.Enforcement, resp.EnforcementError = s.enforce(r.Context(), current.MAC, status)
		}
	}

	if req.Comment != nil {
		if err := s.registry.UpdateComment(r.Context(), current.MAC, *req.Comment); err != nil {
			s.writeRegistryError(w, err)
			return
		}
	}

	device, err := s.registry.Get(r.Context(), current.MAC)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	resp.Device = *device

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) deleteDevice(w http.ResponseWriter, r *http.Request) {
	mac := mux.Vars(r)["mac"]

	if err := s.registry.Delete(r.Context(), mac); err != nil {
		s.writeRegistryError(w, err)
		return
	}

	s.logger.Info().Str("mac", mac).Msg("Device deleted via admin API")

	w.WriteHeader(http.StatusNoContent)
}

// enforce applies a status change on the gateway immediately instead of
// waiting for the next engine cycle. A disconnected gateway gets one
// bounded reconnect attempt per request.
func (s *Server) enforce(ctx context.Context, mac string, status models.Status) (outcome, detail string) {
	if !s.gateway.Connected() {
		probeCtx, cancel := context.WithTimeout(ctx, statusProbeTimeout)
		defer cancel()

		if err := s.gateway.TestConnection(probeCtx); err != nil {
			s.logger.Warn().Err(err).
				Str("mac", mac).
				Msg("Gateway unavailable, enforcement deferred to next engine cycle")

			return enforcementDeferred, ""
		}
	}

	var err error

	if status.ShouldBlock() {
		err = s.gateway.Block(ctx, mac)
	} else {
		err = s.gateway.Allow(ctx, mac)
	}

	if err != nil {
		s.logger.Error().Err(err).
			Str("mac", mac).
			Str("status", string(status)).
			Msg("Immediate enforcement failed")

		return enforcementFailed, err.Error()
	}

	s.logger.Info().
		Str("mac", mac).
		Str("status", string(status)).
		Msg("Policy change enforced on gateway")

	return enforcementApplied, ""
}

func (s *Server) writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, models.ErrInvalidMAC), errors.Is(err, models.ErrInvalidStatus):
		s.writeError(w, http.StatusBadRequest, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}
