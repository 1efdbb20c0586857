// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package netbridge_test

import (
	"encoding/gob"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nuclear.run/internal/netbridge"
)

func init() { gob.Register(gobPayload{}) }

func TestLoopbackDeliversToItself(t *testing.T) {
	l := netbridge.NewLoopback()

	var gotType reflect.Type
	var gotVal any
	l.SetDeliver(func(t reflect.Type, v any) {
		gotType = t
		gotVal = v
	})

	require.NoError(t, l.Send(reflect.TypeFor[int](), 42))
	require.Equal(t, reflect.TypeFor[int](), gotType)
	require.Equal(t, 42, gotVal)
}

type gobPayload struct {
	Msg string
}

func TestGobStreamRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	recv := make(chan any, 1)
	side2 := netbridge.NewGobStream(b, nil)
	side2.SetDeliver(func(t reflect.Type, v any) { recv <- v })

	side1 := netbridge.NewGobStream(a, nil)
	require.NoError(t, side1.Send(reflect.TypeFor[gobPayload](), gobPayload{Msg: "hello"}))

	select {
	case v := <-recv:
		require.Equal(t, gobPayload{Msg: "hello"}, v)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}
