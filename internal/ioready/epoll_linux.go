// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

package ioready

import (
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// EpollBackend is a Backend built on a real Linux epoll instance, for hosts
// that want genuine syscall-driven readiness instead of ReferenceBackend's
// re-poll-on-demand model. One background goroutine blocks in epoll_wait
// and dispatches directly to each fd's registered notify callback.
type EpollBackend struct {
	epfd   int
	wakeFD int // eventfd registered in the epoll set solely to unblock loop on Close

	mu        sync.Mutex
	nextToken Token
	regs      map[Token]*epollReg
	byFD      map[int]Token

	closeOnce sync.Once
	closed    chan struct{}
}

type epollReg struct {
	fd       int
	interest Event
	notify   func(Event)
}

// NewEpollBackend creates a Linux epoll instance and starts its wait loop.
func NewEpollBackend() (*EpollBackend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("ioready: epoll_create1: %w", err)
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("ioready: eventfd: %w", err)
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFD, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFD)}); err != nil {
		unix.Close(epfd)
		unix.Close(wakeFD)
		return nil, fmt.Errorf("ioready: epoll_ctl add wake fd: %w", err)
	}

	b := &EpollBackend{
		epfd:   epfd,
		wakeFD: wakeFD,
		regs:   map[Token]*epollReg{},
		byFD:   map[int]Token{},
		closed: make(chan struct{}),
	}
	go b.loop()
	return b, nil
}

func toEpollEvents(e Event) uint32 {
	var out uint32
	if e&Readable != 0 {
		out |= unix.EPOLLIN
	}
	if e&Writable != 0 {
		out |= unix.EPOLLOUT
	}
	if e&Closed != 0 {
		out |= unix.EPOLLHUP
	}
	if e&Errored != 0 {
		out |= unix.EPOLLERR
	}
	return out
}

func fromEpollEvents(e uint32) Event {
	var out Event
	if e&unix.EPOLLIN != 0 {
		out |= Readable
	}
	if e&unix.EPOLLOUT != 0 {
		out |= Writable
	}
	if e&unix.EPOLLHUP != 0 {
		out |= Closed
	}
	if e&unix.EPOLLERR != 0 {
		out |= Errored
	}
	return out
}

// Register arranges for notify to be called, from the backend's internal
// wait loop, every time fd becomes ready for any event in interest.
func (b *EpollBackend) Register(fd int, interest Event, notify func(Event)) (Token, error) {
	ev := &unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return 0, fmt.Errorf("ioready: epoll_ctl add fd=%d: %w", fd, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextToken++
	tok := b.nextToken
	b.regs[tok] = &epollReg{fd: fd, interest: interest, notify: notify}
	b.byFD[fd] = tok
	return tok, nil
}

// Unregister removes token's fd from the epoll instance. A no-op if token
// is unknown.
func (b *EpollBackend) Unregister(token Token) {
	b.mu.Lock()
	reg, ok := b.regs[token]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.regs, token)
	delete(b.byFD, reg.fd)
	b.mu.Unlock()

	unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, reg.fd, nil)
}

func (b *EpollBackend) loop() {
	events := make([]unix.EpollEvent, 64)
	for {
		n, err := unix.EpollWait(b.epfd, events, -1)
		select {
		case <-b.closed:
			return
		default:
		}
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == b.wakeFD {
				continue
			}
			b.mu.Lock()
			tok, ok := b.byFD[fd]
			var reg *epollReg
			if ok {
				reg = b.regs[tok]
			}
			b.mu.Unlock()
			if reg == nil {
				continue
			}
			if ready := fromEpollEvents(events[i].Events) & reg.interest; ready != 0 {
				reg.notify(ready)
			}
		}
	}
}

// Close stops the wait loop and closes the epoll file descriptor.
func (b *EpollBackend) Close() error {
	b.closeOnce.Do(func() {
		close(b.closed)
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], 1)
		unix.Write(b.wakeFD, buf[:])
	})
	unix.Close(b.wakeFD)
	return unix.Close(b.epfd)
}

var _ Backend = (*EpollBackend)(nil)
