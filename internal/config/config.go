// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads the runtime's process-level configuration: worker
// pool size, log verbosity, and the metrics listen address.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"nuclear.run/internal/logger"
)

// Level is a coarse log verbosity, matching what the CLI exposes as -verbose.
type Level int

const (
	LevelInfo Level = iota
	LevelDebug
)

func (l Level) String() string {
	if l == LevelDebug {
		return "debug"
	}
	return "info"
}

// Config is the runtime's process-level configuration. Zero value is not
// valid on its own; use Default and override from there.
type Config struct {
	// ThreadCount is the number of scheduler worker goroutines. Zero means
	// "unset"; Default fills it with runtime.GOMAXPROCS(0).
	ThreadCount int `yaml:"thread_count"`
	// LogLevel is set from LogLevelName by Load and read by DebugLogf. The
	// PowerPlant does not consult it, so it does not change what the runtime
	// itself logs.
	LogLevel Level `yaml:"-"`
	LogLevelName string `yaml:"log_level"`
	// MetricsAddr, if non-empty, is the address the CLI binds an HTTP
	// /metrics handler to. Empty disables the metrics server.
	MetricsAddr string `yaml:"metrics_addr"`
	// SyncGroupFairness orders same-priority ready tasks from distinct sync
	// groups by which group has gone longest without running, instead of by
	// arrival order. Priority still comes first, and tasks within one group
	// stay FIFO. Off by default.
	SyncGroupFairness bool `yaml:"sync_group_fairness"`
}

// Default returns a Config with every field set to its runtime default.
func Default() Config {
	return Config{
		ThreadCount: runtime.GOMAXPROCS(0),
		LogLevel:    LevelInfo,
		MetricsAddr: "",
	}
}

// Load reads and parses a YAML config file at path, applying it on top of
// Default. A missing ThreadCount or LogLevelName in the file keeps the
// default.
func Load(path string) (Config, error) {
	c := Default()
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if c.ThreadCount <= 0 {
		c.ThreadCount = runtime.GOMAXPROCS(0)
	}
	switch c.LogLevelName {
	case "", "info":
		c.LogLevel = LevelInfo
	case "debug":
		c.LogLevel = LevelDebug
	default:
		return Config{}, fmt.Errorf("config: unknown log_level %q", c.LogLevelName)
	}
	return c, nil
}

// DebugLogf returns base unchanged if LogLevel is LevelDebug, or
// [logger.Discard] otherwise. Use it to wrap the runtime's verbose,
// per-dispatch tracing calls, as opposed to the always-on error logf passed
// to the scheduler.
func (c Config) DebugLogf(base logger.Logf) logger.Logf {
	if c.LogLevel >= LevelDebug {
		return base
	}
	return logger.Discard
}
