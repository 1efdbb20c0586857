// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	nuclear "nuclear.run"
	"nuclear.run/internal/logger"
)

// heartbeat is not used by the demo reactor: its Every callback takes a
// nuclear.Tick and keeps its own count.
type heartbeat struct{ N int }

// RunOptions holds the run subcommand's own flags, layered on RootOptions.
type RunOptions struct {
	*RootOptions
	MetricsAddr string
	Period      time.Duration
}

func newRunCommand(root *RootOptions) *ffcli.Command {
	opts := &RunOptions{RootOptions: root}

	fs := newFlagSet("nuclearctl run")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", "", "address to serve /metrics on (empty disables it)")
	fs.DurationVar(&opts.Period, "period", time.Second, "heartbeat period for the demo reactor's Every source")

	return &ffcli.Command{
		Name:       "run",
		ShortUsage: "nuclearctl run [flags]",
		ShortHelp:  "Install the demo reactor and run until interrupted",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return runPowerPlant(opts)
		},
	}
}

func runPowerPlant(opts *RunOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.MetricsAddr != "" {
		cfg.MetricsAddr = opts.MetricsAddr
	}

	logf := logger.WithPrefix(stdoutLogf, "nuclearctl: ")
	pp := nuclear.New(nuclear.WithConfig(cfg), nuclear.WithLogf(logf))

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.HandlerFor(pp.Metrics().Registry(), promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logf("metrics server: %v", err)
			}
		}()
		defer srv.Close()
	}

	if err := installDemoReactor(pp, opts.Period, logf); err != nil {
		return err
	}

	if err := pp.Start(); err != nil {
		return err
	}
	logf("started with %d worker(s)", cfg.ThreadCount)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logf("received shutdown signal, draining")
	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- pp.Shutdown() }()

	select {
	case err := <-shutdownErr:
		return err
	case <-time.After(10 * time.Second):
		logf("still waiting on workers after 10s")
		<-pp.Done()
		return <-shutdownErr
	}
}

func installDemoReactor(pp *nuclear.PowerPlant, period time.Duration, logf logger.Logf) error {
	r := nuclear.NewReactor(pp, "demo")

	if _, err := r.On(func() {
		logf("startup")
	}, nuclear.Startup(), nuclear.Label("demo.startup")); err != nil {
		return err
	}

	if _, err := r.On(func() {
		logf("shutdown")
	}, nuclear.Shutdown(), nuclear.Label("demo.shutdown")); err != nil {
		return err
	}

	n := 0
	if _, err := r.On(func(nuclear.Tick) {
		n++
		logf("heartbeat %d", n)
	}, nuclear.Every(period), nuclear.Label("demo.heartbeat")); err != nil {
		return err
	}

	return nil
}

func stdoutLogf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}
