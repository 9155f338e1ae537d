/*
 * Copyright 2024 The Strata Authors
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
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/stratacache/strata/pkg/cache/metadata"
	"github.com/stratacache/strata/pkg/cache/registry"
	"github.com/stratacache/strata/pkg/config"
	"github.com/stratacache/strata/pkg/observability/logging"
	"github.com/stratacache/strata/pkg/observability/logging/logger"
	"github.com/stratacache/strata/pkg/observability/metrics"
	"github.com/stratacache/strata/pkg/replication"
)

const (
	applicationName    = "strata"
	applicationVersion = "0.1.0"
)

func main() {
	var (
		configPath   string
		logLevel     string
		printVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to the configuration file")
	flag.StringVar(&logLevel, "log-level", "", "override the configured log level")
	flag.BoolVar(&printVersion, "version", false, "print version and exit")
	flag.Parse()

	if printVersion {
		fmt.Println(applicationName, applicationVersion)
		return
	}

	cfg := config.New()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			fmt.Fprintln(os.Stderr, "unable to load configuration:", err)
			os.Exit(1)
		}
	} else if err := cfg.Process(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid default configuration:", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Logging.LogLevel = logLevel
	}

	log := logging.New(cfg.Logging)
	logger.SetLogger(log)
	defer log.Close()

	if cfg.Main.PidFile != "" {
		if err := os.WriteFile(cfg.Main.PidFile,
			[]byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
			logger.Fatal(1, "unable to write pid file",
				logging.Pairs{"pidFile": cfg.Main.PidFile, "detail": err.Error()})
		}
		defer os.Remove(cfg.Main.PidFile)
	}

	clients, err := registry.LoadCachesFromConfig(cfg.Tiers)
	if err != nil {
		logger.Fatal(1, "unable to connect tier clients",
			logging.Pairs{"detail": err.Error()})
	}

	var flushClient = clients[cfg.Metadata.FlushTier]
	store := metadata.NewStore(applicationName, cfg.Metadata, flushClient)

	mgr, err := replication.New(cfg.Replication, clients, store)
	if err != nil {
		logger.Fatal(1, "unable to start the replication manager",
			logging.Pairs{"detail": err.Error()})
	}

	if cfg.Metrics.ListenAddress != "" {
		go func() {
			logger.Info("metrics listener starting",
				logging.Pairs{"address": cfg.Metrics.ListenAddress})
			if err := metrics.ListenAndServe(cfg.Metrics.ListenAddress); err != nil {
				logger.Error("metrics listener failed",
					logging.Pairs{"detail": err.Error()})
			}
		}()
	}

	logger.Info("strata started", logging.Pairs{
		"version":    applicationVersion,
		"instanceId": cfg.Main.InstanceID,
		"tiers":      len(cfg.Tiers),
		"mode":       string(cfg.Replication.Mode),
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info("shutting down", logging.Pairs{"signal": s.String()})

	if err := mgr.Close(); err != nil {
		logger.Error("error during shutdown", logging.Pairs{"detail": err.Error()})
	}
}
