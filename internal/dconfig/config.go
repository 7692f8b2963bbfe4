// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dconfig is the runtime bring-up configuration: the handful of
// settings a host must supply before a Runtime is usable, loaded from
// the environment via godotenv rather than a bespoke env parser.
package dconfig

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/ClusterCockpit/decoderuntime/pkg/rlog"
)

// Config holds the runtime's bring-up settings.
type Config struct {
	// SearchPaths lists directories scanned for decoder modules at
	// startup, in the order they were added. runtime.NewFromConfig hands
	// each to registry.SearchPathAdd in turn, which prepends, so the
	// registry's list ends up in the reverse order.
	SearchPaths []string

	// LogLevel is one of "debug", "info", "warn", "err", "crit" — see
	// pkg/rlog.SetLogLevel.
	LogLevel string

	// WatchEnabled turns on registry.WatchSearchPaths hot-reload.
	WatchEnabled bool
}

// Load reads .env (if present, via godotenv — missing is not an error)
// and then the process environment, applying defaults for anything
// unset.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg := &Config{
		LogLevel:     envOr("DECODERUNTIME_LOG_LEVEL", "info"),
		WatchEnabled: envBool("DECODERUNTIME_WATCH", true),
	}
	if p := os.Getenv("DECODERUNTIME_SEARCH_DIR"); p != "" {
		cfg.SearchPaths = append(cfg.SearchPaths, p)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		rlog.Warnf("dconfig: %s=%q is not a bool, using default %v", key, v, fallback)
		return fallback
	}
	return b
}
