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

// Package api serves the admin and status HTTP API over the policy
// registry, with immediate enforcement through its own gateway client.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lanwarden/lanwarden/pkg/gateway"
	"github.com/lanwarden/lanwarden/pkg/logger"
)

const (
	defaultListenAddr = ":5000"
	defaultDBPath     = "/var/lib/lanwarden/lanwarden.db"

	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultIdleTimeout  = 60 * time.Second

	// statusProbeTimeout caps the gateway probe so a dead gateway cannot
	// stall a request into the server write timeout.
	statusProbeTimeout = 5 * time.Second
)

// Config holds the admin API daemon configuration.
type Config struct {
	ListenAddr string         `json:"listen_addr,omitempty"`
	DBPath     string         `json:"db_path,omitempty"`
	TokenPaths []string       `json:"token_paths,omitempty"`
	Gateway    gateway.Config `json:"gateway"`
	Logging    *logger.Config `json:"logging,omitempty"`
}

// Validate checks the configuration and fills defaults.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.DBPath == "" {
		c.DBPath = defaultDBPath
	}

	return c.Gateway.Validate()
}

// Server is the admin API HTTP server.
type Server struct {
	config   Config
	registry Registry
	gateway  Gateway
	router   *mux.Router
	httpSrv  *http.Server
	logger   logger.Logger
}

// New creates the admin API server and wires its routes.
func New(config *Config, reg Registry, gw Gateway, log logger.Logger) (*Server, error) {
	if config == nil {
		config = &Config{}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config:   *config,
		registry: reg,
		gateway:  gw,
		router:   mux.NewRouter(),
		logger:   log,
	}

	s.setupRoutes()

	s.httpSrv = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestLogging)

	routes := s.router.PathPrefix("/api").Subrouter()
	routes.HandleFunc("/status", s.getStatus).Methods(http.MethodGet)
	routes.HandleFunc("/devices", s.listDevices).Methods(http.MethodGet)
	routes.HandleFunc("/devices", s.addDevice).Methods(http.MethodPost)
	routes.HandleFunc("/devices/{mac}", s.updateDevice).Methods(http.MethodPost)
	routes.HandleFunc("/devices/{mac}", s.deleteDevice).Methods(http.MethodDelete)
}

// Router exposes the handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves HTTP until Stop shuts the listener down.
func (s *Server) Start(_ context.Context) error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting admin API")

	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Stop drains in-flight requests and closes the listener.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Debug().
			Str("remote", r.RemoteAddr).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
