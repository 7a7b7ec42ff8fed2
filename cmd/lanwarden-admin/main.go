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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/lanwarden/lanwarden/pkg/api"
	"github.com/lanwarden/lanwarden/pkg/config"
	"github.com/lanwarden/lanwarden/pkg/credstore"
	"github.com/lanwarden/lanwarden/pkg/gateway"
	"github.com/lanwarden/lanwarden/pkg/lifecycle"
	"github.com/lanwarden/lanwarden/pkg/logger"
	"github.com/lanwarden/lanwarden/pkg/registry"
	"github.com/lanwarden/lanwarden/pkg/version"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/lanwarden/admin.json", "Path to admin API config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg api.Config

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	adminLogger, err := lifecycle.CreateComponentLogger("lanwarden-admin", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	adminLogger.Info().
		Str("version", version.GetVersion()).
		Str("addr", cfg.ListenAddr).
		Msg("Starting lanwarden admin API")

	store, err := registry.New(ctx, cfg.DBPath, adminLogger)
	if err != nil {
		return err
	}
	defer store.Close()

	creds := credstore.New(cfg.TokenPaths, adminLogger)

	gw, err := gateway.New(&cfg.Gateway, creds, nil, adminLogger)
	if err != nil {
		return err
	}

	server, err := api.New(&cfg, store, gw, adminLogger)
	if err != nil {
		return err
	}

	return lifecycle.Run(ctx, server, adminLogger)
}
