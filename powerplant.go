// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package nuclear implements an in-process, type-indexed reactive dispatch
// runtime: reactors declare reactions that trigger on emitted values, data
// joins against other types' latest or historical values, and targeted
// dispatch sources (startup, shutdown, periodic timers, I/O readiness).
package nuclear

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"nuclear.run/internal/chrono"
	"nuclear.run/internal/config"
	"nuclear.run/internal/diag"
	"nuclear.run/internal/eventbus"
	"nuclear.run/internal/ioready"
	"nuclear.run/internal/logger"
	"nuclear.run/internal/netbridge"
	"nuclear.run/internal/registry"
	"nuclear.run/internal/scheduler"
	"nuclear.run/internal/store"
)

// PowerPlant owns every collaborator backing the runtime: the type-indexed
// store, event bus, reaction registry, scheduler, periodic timer service,
// and the I/O and network backends. Application code creates exactly one
// PowerPlant, installs reactors against it, and calls Start.
type PowerPlant struct {
	id     uuid.UUID
	store  *store.TypeStore
	bus    *eventbus.Bus
	reg    *registry.Registry
	sched  *scheduler.Scheduler
	clock  *chrono.Service
	io     IOBackend
	net    NetworkBackend
	metrics *diag.Metrics
	logf   logger.Logf
	closeLogf func()
	cfg    config.Config

	mu       sync.Mutex
	started  bool
	shutdown bool

	startup  []*registry.Handle
	shutdownRx []*registry.Handle
	everyPending []everyReg
	ioPending    []ioReg
	everyStop    []func()
	ioTokens     []ioready.Token
	initPending  []initEmit
}

// initEmit is a value queued by EmitInitialize before Start, to be
// delivered as an ordinary Local emit once Start begins.
type initEmit struct {
	t reflect.Type
	v any
}

type everyReg struct {
	handle *registry.Handle
	period time.Duration
	hasArg bool
}

type ioReg struct {
	handle *registry.Handle
	fd     int
	events Event
	hasArg bool
}

// PowerPlantOption configures a PowerPlant at construction time.
type PowerPlantOption func(*PowerPlant)

// WithConfig overrides the default configuration (thread count, log level).
func WithConfig(cfg config.Config) PowerPlantOption {
	return func(p *PowerPlant) { p.cfg = cfg }
}

// WithLogf overrides the logger used for panic recovery and diagnostics.
// Default is [logger.Discard].
func WithLogf(logf logger.Logf) PowerPlantOption {
	return func(p *PowerPlant) { p.logf = logf }
}

// WithMetrics overrides the metrics sink. Default is a private, freshly
// registered [diag.Metrics].
func WithMetrics(m *diag.Metrics) PowerPlantOption {
	return func(p *PowerPlant) { p.metrics = m }
}

// WithIOBackend overrides the I/O readiness backend used by IO reactions.
// Default is a [ioready.ReferenceBackend].
func WithIOBackend(b IOBackend) PowerPlantOption {
	return func(p *PowerPlant) { p.io = b }
}

// WithNetworkBackend overrides the transport used by EmitNetwork. Default
// is a [netbridge.Loopback], which delivers every network emit back to the
// same process.
func WithNetworkBackend(b NetworkBackend) PowerPlantOption {
	return func(p *PowerPlant) { p.net = b }
}

// WithClock overrides the clock driving Every reactions. Default is
// [chrono.RealClock].
func WithClock(c chrono.Clock) PowerPlantOption {
	return func(p *PowerPlant) { p.clock = chrono.New(c) }
}

// New returns a PowerPlant ready to have reactors installed against it.
func New(opts ...PowerPlantOption) *PowerPlant {
	p := &PowerPlant{
		id:   uuid.New(),
		cfg:  config.Default(),
		logf: logger.Discard,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = diag.New()
	}
	if p.io == nil {
		p.io = ioready.NewReferenceBackend()
	}
	if p.net == nil {
		p.net = netbridge.NewLoopback()
	}
	if p.clock == nil {
		p.clock = chrono.New(chrono.RealClock{})
	}

	// Rate-limit first so a reaction panicking in a tight loop can't flood
	// the configured logger, then wrap in a closer so Shutdown can silence
	// logging once every collaborator has actually stopped.
	limited := logger.RateLimitedFn(p.logf, time.Second, 5, 256)
	p.logf, p.closeLogf = logger.LogfCloser(limited)

	p.store = store.New()
	p.bus = eventbus.New()
	p.reg = registry.New(p.bus)
	p.sched = scheduler.New(p.cfg.ThreadCount, p.logf, p.cfg.SyncGroupFairness)
	p.sched.OnTaskDone(p.onTaskDone)

	p.net.SetDeliver(func(t reflect.Type, v any) {
		store.SetAny(p.store, t, v)
		p.dispatch(t, v)
	})

	return p
}

func (p *PowerPlant) onTaskDone(t *scheduler.Task, ran bool) {
	if !ran {
		p.metrics.DispatchSkipped("disabled_or_unbound")
	}
}

// ID returns the PowerPlant's process-lifetime unique identifier, suitable
// for tagging log lines and metrics when more than one PowerPlant runs in
// the same process.
func (p *PowerPlant) ID() uuid.UUID { return p.id }

// Store exposes the type-indexed store for advanced callers (diagnostics,
// tests) that need direct read access outside a reaction.
func (p *PowerPlant) Store() *store.TypeStore { return p.store }

// Metrics returns the runtime's Prometheus metrics sink.
func (p *PowerPlant) Metrics() *diag.Metrics { return p.metrics }

// Done returns a channel that closes once every scheduler worker goroutine
// has exited. It is only meaningful once Shutdown has been called (or is in
// flight on another goroutine); callers that want to bound how long they
// wait for a graceful shutdown can select on it against a deadline instead
// of blocking on Shutdown's return.
func (p *PowerPlant) Done() <-chan struct{} { return p.sched.Done() }

// CurrentCause returns the type and value of the event that caused the
// reaction currently executing on the calling goroutine, if any.
func (p *PowerPlant) CurrentCause() (reflect.Type, any, bool) {
	return currentCause(p.store)
}

func (p *PowerPlant) registerSource(src *sourceSpec, h *registry.Handle, hasArg bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch src.kind {
	case sourceStartup:
		p.startup = append(p.startup, h)
	case sourceShutdown:
		p.shutdownRx = append(p.shutdownRx, h)
	case sourceEvery:
		p.everyPending = append(p.everyPending, everyReg{handle: h, period: src.period, hasArg: hasArg})
	case sourceIO:
		p.ioPending = append(p.ioPending, ioReg{handle: h, fd: src.fd, events: src.events, hasArg: hasArg})
	}
}

// Start activates every Every and IO source, then runs every Startup
// reaction to completion, in bind order. Start must be called at most once.
func (p *PowerPlant) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("nuclear: Start called twice")
	}
	p.started = true
	every := p.everyPending
	io := p.ioPending
	startup := p.startup
	init := p.initPending
	p.initPending = nil
	p.mu.Unlock()

	for _, e := range init {
		store.SetAny(p.store, e.t, e.v)
		p.dispatch(e.t, e.v)
	}

	for _, e := range every {
		e := e
		stop := p.clock.Register(e.handle.ID(), e.period, func(t time.Time) {
			p.runSourceTask(e.handle, e.hasArg, Tick(t))
		})
		p.mu.Lock()
		p.everyStop = append(p.everyStop, stop)
		p.mu.Unlock()
	}

	for _, r := range io {
		r := r
		tok, err := p.io.Register(r.fd, ioready.Event(r.events), func(ev ioready.Event) {
			p.runSourceTask(r.handle, r.hasArg, Event(ev))
		})
		if err != nil {
			return fmt.Errorf("nuclear: registering io source: %w", err)
		}
		p.mu.Lock()
		p.ioTokens = append(p.ioTokens, tok)
		p.mu.Unlock()
	}

	var wg sync.WaitGroup
	for _, h := range startup {
		r := h.Record()
		if !r.TryReserveInflight() {
			continue
		}
		wg.Add(1)
		run := p.runWrapper(h, nil)
		p.sched.Submit(&scheduler.Task{
			Record:    r,
			Priority:  r.Options.Priority,
			SyncGroup: r.Options.SyncGroup,
			Run: func() {
				defer wg.Done()
				run()
			},
		})
	}
	wg.Wait()
	p.logf("nuclear: powerplant %s started", p.id)
	return nil
}

// runSourceTask submits one task for an Every- or IO-bound record, with a
// single synthetic argument if hasArg, or none otherwise.
func (p *PowerPlant) runSourceTask(h *registry.Handle, hasArg bool, arg any) {
	r := h.Record()
	if !r.TryReserveInflight() {
		p.metrics.SingleDropped(r.Label)
		return
	}
	p.sched.Submit(&scheduler.Task{
		Record:    r,
		Priority:  r.Options.Priority,
		SyncGroup: r.Options.SyncGroup,
		Run:       p.runWrapper(h, sourceArgs(hasArg, arg)),
	})
}

func sourceArgs(hasArg bool, arg any) []any {
	if !hasArg {
		return nil
	}
	return []any{arg}
}

// runWrapper returns the Task.Run closure for a source-bound reaction
// (Startup, Shutdown, Every, or IO): it installs the synthetic argument (if
// any) as the goroutine's current cause, invokes the callback, recovers a
// panic into a metrics/log record the same way dispatchOne does for
// event-bus reactions, and unbinds the handle if Once was set.
func (p *PowerPlant) runWrapper(h *registry.Handle, args []any) func() {
	r := h.Record()
	return func() {
		if !r.TryClaimOnce() {
			return
		}
		cause := registry.Cause{}
		if len(args) == 1 {
			cause = registry.Cause{Type: reflect.TypeOf(args[0]), Value: args[0]}
		}
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					p.metrics.CallbackFailure(r.Label)
					p.logf("nuclear: reaction %q (id=%d) panicked: %v", r.Label, r.ID, rec)
				}
			}()
			store.WithTransient(p.store, cause, func() {
				r.Invoke(args)
			})
		}()
		if r.Options.Once {
			h.Unbind()
		}
	}
}

// Shutdown drains every queued and in-flight ordinary task, deactivates
// Every and IO sources, runs every Shutdown reaction to completion, and
// stops the scheduler's workers. Shutdown must be called at most once, and
// only after Start.
func (p *PowerPlant) Shutdown() error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return fmt.Errorf("nuclear: Shutdown called twice")
	}
	p.shutdown = true
	everyStop := p.everyStop
	ioTokens := p.ioTokens
	shutdownRx := p.shutdownRx
	p.mu.Unlock()

	p.sched.Drain()

	for _, stop := range everyStop {
		stop()
	}
	for _, tok := range ioTokens {
		p.io.Unregister(tok)
	}

	var wg sync.WaitGroup
	for _, h := range shutdownRx {
		r := h.Record()
		if !r.TryReserveInflight() {
			continue
		}
		wg.Add(1)
		run := p.runWrapper(h, nil)
		p.sched.SubmitShutdown(&scheduler.Task{
			Record:    r,
			Priority:  r.Options.Priority,
			SyncGroup: r.Options.SyncGroup,
			Run: func() {
				defer wg.Done()
				run()
			},
		})
	}
	wg.Wait()

	p.sched.Close()
	p.logf("nuclear: powerplant %s stopped", p.id)
	err := p.io.Close()
	p.closeLogf()
	return err
}
