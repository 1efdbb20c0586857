// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package nuclear

import "errors"

var (
	// ErrEmptyTriggerSet is returned by On when no Trigger, Startup,
	// Shutdown, Every, or IO modifier was supplied, leaving the reaction
	// with nothing that could ever dispatch it.
	ErrEmptyTriggerSet = errors.New("nuclear: reaction has no trigger, and is not a startup/shutdown/every/io source")

	// ErrConflictingSource is returned by On when more than one of
	// Startup, Shutdown, Every, and IO is supplied; a reaction may bind to
	// at most one targeted source.
	ErrConflictingSource = errors.New("nuclear: reaction declares more than one of startup/shutdown/every/io")

	// ErrSourceWithTrigger is returned by On when a targeted source
	// modifier (Startup, Shutdown, Every, IO) is combined with a Trigger
	// or With argument modifier; targeted sources supply their own single
	// synthetic argument and cannot also join the event bus.
	ErrSourceWithTrigger = errors.New("nuclear: startup/shutdown/every/io cannot be combined with trigger/with arguments")

	// ErrBadCallbackSignature is returned by On when the callback's
	// parameter list doesn't match the positional argument modifiers in
	// count or type.
	ErrBadCallbackSignature = errors.New("nuclear: callback signature does not match declared arguments")

	// ErrNotAFunction is returned by On when callback is not a function
	// value at all.
	ErrNotAFunction = errors.New("nuclear: callback must be a function")

	// ErrClosed is returned by Emit and On when called once Shutdown has
	// begun.
	ErrClosed = errors.New("nuclear: powerplant is shut down")
)
