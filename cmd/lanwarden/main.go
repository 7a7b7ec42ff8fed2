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

	"github.com/lanwarden/lanwarden/pkg/config"
	"github.com/lanwarden/lanwarden/pkg/credstore"
	"github.com/lanwarden/lanwarden/pkg/gateway"
	"github.com/lanwarden/lanwarden/pkg/lifecycle"
	"github.com/lanwarden/lanwarden/pkg/logger"
	"github.com/lanwarden/lanwarden/pkg/notify"
	"github.com/lanwarden/lanwarden/pkg/reconciler"
	"github.com/lanwarden/lanwarden/pkg/registry"
	"github.com/lanwarden/lanwarden/pkg/scanner"
	"github.com/lanwarden/lanwarden/pkg/version"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/lanwarden/lanwarden.json", "Path to engine config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg reconciler.Config

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

	engineLogger, err := lifecycle.CreateComponentLogger("lanwarden", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	engineLogger.Info().
		Str("version", version.GetVersion()).
		Msg("Starting lanwarden engine")

	store, err := registry.New(ctx, cfg.DBPath, engineLogger)
	if err != nil {
		return err
	}
	defer store.Close()

	creds := credstore.New(cfg.TokenPaths, engineLogger)

	gw, err := gateway.New(&cfg.Gateway, creds, nil, engineLogger)
	if err != nil {
		return err
	}

	scan, err := scanner.New(&cfg.Scan, engineLogger)
	if err != nil {
		return err
	}

	notifier := notify.New(&cfg.Notifications, engineLogger)

	engine, err := reconciler.New(&cfg, store, gw, scan, notifier, nil, engineLogger)
	if err != nil {
		return err
	}

	return lifecycle.Run(ctx, engine, engineLogger)
}
