// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Command nuclearctl is a small operator/demonstration CLI for the nuclear
// runtime: it installs a demo reactor, starts a PowerPlant, optionally
// serves its Prometheus metrics over HTTP, and blocks until an OS signal
// requests a graceful shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"nuclear.run/cmd/nuclearctl/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := root.Run(context.Background()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
