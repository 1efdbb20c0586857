// Copyright (c) 2020 Tailscale Inc & AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logger defines the powerplant's logging primitive: a
// printf-like func type, rather than a concrete *log.Logger or
// *slog.Logger, so that callback panics and scheduler diagnostics can
// be logged without forcing a particular logging library on callers.
package logger

import (
	"container/list"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Logf is the basic logging primitive: a printf-like func.
// Like log.Printf, the format need not end in a newline.
// Logf functions must be safe for concurrent use.
type Logf func(format string, args ...interface{})

// WithPrefix wraps f, prefixing each format with the provided prefix.
func WithPrefix(f Logf, prefix string) Logf {
	return func(format string, args ...interface{}) {
		f(prefix+format, args...)
	}
}

// Discard is a Logf that throws away the logs given to it. It is the
// PowerPlant's default until a caller supplies one via WithLogf.
func Discard(string, ...interface{}) {}

// limitData tracks the rate-limiting state for one format string.
type limitData struct {
	lim        *rate.Limiter
	msgBlocked bool
	ele        *list.Element
}

var disableRateLimit = os.Getenv("NUCLEAR_DEBUG_LOG_RATE") == "all"

// rateFreePrefix are format string prefixes that are exempt from rate
// limiting. Invariant-violation diagnostics are never suppressed: a
// scheduler or registry corruption must always reach the log.
var rateFreePrefix = []string{
	"nuclear: invariant violation: ",
}

// RateLimitedFn returns a rate-limiting Logf wrapping logf. Messages are
// allowed through at a maximum of one message every f (a time.Duration),
// in bursts of up to burst messages at a time. Up to maxCache distinct
// format strings are tracked at once; the powerplant uses this to keep a
// repeatedly panicking reaction from flooding the configured logger.
func RateLimitedFn(logf Logf, f time.Duration, burst int, maxCache int) Logf {
	if disableRateLimit {
		return logf
	}
	r := rate.Every(f)
	var (
		mu       sync.Mutex
		msgLim   = make(map[string]*limitData)
		msgCache = list.New()
	)

	type verdict int
	const (
		allow verdict = iota
		warn
		block
	)

	judge := func(format string) (v verdict) {
		for _, pfx := range rateFreePrefix {
			if strings.HasPrefix(format, pfx) {
				return allow
			}
		}

		mu.Lock()
		defer mu.Unlock()
		rl, ok := msgLim[format]
		if ok {
			msgCache.MoveToFront(rl.ele)
		} else {
			rl = &limitData{
				lim: rate.NewLimiter(r, burst),
				ele: msgCache.PushFront(format),
			}
			msgLim[format] = rl
			if msgCache.Len() > maxCache {
				delete(msgLim, msgCache.Back().Value.(string))
				msgCache.Remove(msgCache.Back())
			}
		}
		if rl.lim.Allow() {
			rl.msgBlocked = false
			return allow
		}
		if !rl.msgBlocked {
			rl.msgBlocked = true
			return warn
		}
		return block
	}

	return func(format string, args ...interface{}) {
		switch judge(format) {
		case allow:
			logf(format, args...)
		case warn:
			logf("[RATE LIMITED] format string %q (example: %q)", format, strings.TrimSpace(fmt.Sprintf(format, args...)))
		}
	}
}

// LogfCloser wraps logf to create a logger that can be closed. Calling
// close makes all future calls to newLogf into no-ops; the powerplant
// uses this so that panic-recovery or lifecycle logging never races a
// logger the caller has already torn down after Shutdown returns.
func LogfCloser(logf Logf) (newLogf Logf, close func()) {
	var (
		mu     sync.Mutex
		closed bool
	)
	close = func() {
		mu.Lock()
		defer mu.Unlock()
		closed = true
	}
	newLogf = func(format string, args ...interface{}) {
		mu.Lock()
		if closed {
			mu.Unlock()
			return
		}
		mu.Unlock()
		logf(format, args...)
	}
	return newLogf, close
}
