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

// lanwarden-pair performs the one-time pairing handshake with the
// gateway. The user must confirm the request on the gateway's front
// panel while this tool polls; on grant the credential file is written
// for the engine and admin processes to share.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/lanwarden/lanwarden/pkg/config"
	"github.com/lanwarden/lanwarden/pkg/credstore"
	"github.com/lanwarden/lanwarden/pkg/gateway"
	"github.com/lanwarden/lanwarden/pkg/lifecycle"
	"github.com/lanwarden/lanwarden/pkg/logger"
)

const pairingTimeout = 60 * time.Second

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

// pairConfig is the subset of the engine configuration pairing needs.
// Reading the engine's config file works; unknown fields are ignored.
type pairConfig struct {
	TokenPaths []string       `json:"token_paths,omitempty"`
	Gateway    gateway.Config `json:"gateway"`
	Logging    *logger.Config `json:"logging,omitempty"`
}

func (c *pairConfig) Validate() error {
	return c.Gateway.Validate()
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/lanwarden/lanwarden.json", "Path to config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg pairConfig

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
		}

		// Pairing usually runs before any config exists; defaults cover it.
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	pairLogger, err := lifecycle.CreateComponentLogger("lanwarden-pair", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	store := credstore.New(cfg.TokenPaths, pairLogger)

	gw, err := gateway.New(&cfg.Gateway, store, nil, pairLogger)
	if err != nil {
		return err
	}

	ticket, err := gw.RequestAuthorization(ctx)
	if err != nil {
		return fmt.Errorf("failed to start pairing: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, pairingTimeout)
	defer cancel()

	if err := gw.WaitForAuthorization(waitCtx, ticket.TrackID, 0); err != nil {
		return fmt.Errorf("pairing not granted: %w", err)
	}

	if err := store.Save(&credstore.Credentials{
		AppToken:  ticket.AppToken,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	// One full authenticated round trip proves the granted token works
	// before the user walks away.
	if err := gw.TestConnection(ctx); err != nil {
		return fmt.Errorf("pairing verification failed: %w", err)
	}

	pairLogger.Info().Msg("Pairing complete, credentials saved")

	return nil
}
