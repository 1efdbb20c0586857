// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package cli

import (
	"context"
	"flag"

	"github.com/peterbourgon/ff/v3/ffcli"

	"nuclear.run/internal/config"
)

// RootOptions holds the flags shared by every subcommand.
type RootOptions struct {
	ConfigPath        string
	ThreadCount       int
	Verbose           bool
	SyncGroupFairness bool
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}

// NewRootCommand builds the nuclearctl root command.
func NewRootCommand() *ffcli.Command {
	opts := &RootOptions{}

	fs := newFlagSet("nuclearctl")
	fs.StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file (overrides defaults; flags override the file)")
	fs.IntVar(&opts.ThreadCount, "threads", 0, "scheduler worker count (0 = runtime.GOMAXPROCS)")
	fs.BoolVar(&opts.Verbose, "verbose", false, "set the config's log level to debug (the runtime's own log output does not depend on it)")
	fs.BoolVar(&opts.SyncGroupFairness, "fair-sync-groups", false, "round-robin promotion across distinct sync groups instead of arrival order")

	return &ffcli.Command{
		Name:       "nuclearctl",
		ShortUsage: "nuclearctl [flags] <subcommand> [command flags]",
		ShortHelp:  "Operate a nuclear PowerPlant",
		LongHelp:   "nuclearctl installs a demonstration reactor against a nuclear.PowerPlant and runs it until told to stop.",
		FlagSet:    fs,
		Subcommands: []*ffcli.Command{
			newRunCommand(opts),
		},
		Exec: func(context.Context, []string) error { return flag.ErrHelp },
	}
}

// loadConfig applies opts.ConfigPath (if set) on top of config.Default,
// then applies any explicitly set flags on top of that.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		cfg, err = config.Load(opts.ConfigPath)
		if err != nil {
			return config.Config{}, err
		}
	}
	if opts.ThreadCount > 0 {
		cfg.ThreadCount = opts.ThreadCount
	}
	if opts.Verbose {
		cfg.LogLevel = config.LevelDebug
	}
	if opts.SyncGroupFairness {
		cfg.SyncGroupFairness = true
	}
	return cfg, nil
}
