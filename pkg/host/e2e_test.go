// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package host

import (
	"context"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/oxifoc/foclink/pkg/device"
	"github.com/oxifoc/foclink/pkg/filament"
	"github.com/oxifoc/foclink/pkg/probe"
)

// Full host pipeline against the in-process device over a loopback link:
// handshake, then gated keepalives from seq zero, then a button press, with
// the debug-log stream flowing the whole time.
func TestEndToEnd_LoopbackConversation(t *testing.T) {
	l := probe.NewLoopback()
	link, err := l.Host()
	if err != nil {
		t.Fatalf("claiming host end: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev := device.New(device.Config{
		Info:            filament.DeviceInfo{HW: "B-G431B-ESC1", SW: "0.1.0"},
		KeepAlivePeriod: 20 * time.Millisecond,
		Button:          device.ButtonClassifier{DoubleClickWindow: 40 * time.Millisecond, HoldWindow: 120 * time.Millisecond},
		Up:              l.DeviceUp(),
		Down:            l.DeviceDown(),
		DebugLog:        l.DeviceLog(),
	})
	edges := make(chan device.Edge)
	go dev.Run(ctx, edges)

	down, err := link.Down(probe.ChannelMessagesDown)
	if err != nil {
		t.Fatalf("down channel: %v", err)
	}

	keepalives := make(chan uint32, 64)
	buttons := make(chan filament.ButtonEvent, 8)
	logLines := make(chan string, 64)

	stack := filament.NewStack(filament.NetworkID, filament.NodeHost, func(frame []byte) error {
		_, werr := down.Write(frame)
		return werr
	})
	stack.Handle(filament.PortKeepAlive, func(_ filament.Address, payload cbor.RawMessage) (cbor.RawMessage, error) {
		var ka filament.KeepAlive
		if err := cbor.Unmarshal(payload, &ka); err != nil {
			return nil, err
		}
		keepalives <- ka.Seq
		return nil, nil
	})
	stack.Handle(filament.PortButton, func(_ filament.Address, payload cbor.RawMessage) (cbor.RawMessage, error) {
		var e filament.ButtonEvent
		if err := cbor.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		buttons <- e
		return nil, nil
	})

	reader := &Reader{
		Link:   link,
		Stack:  stack,
		Source: LogSourceAuto,
		OnLogLine: func(line string) {
			select {
			case logLines <- line:
			default:
			}
		},
	}
	go reader.Run(ctx)

	// Handshake resolves the startup race via retries
	hs := &Handshake{Stack: stack, InitialTimeout: 100 * time.Millisecond, MaxAttempts: 5}
	info, err := hs.Run(ctx)
	if err != nil {
		t.Fatalf("handshake failed: %v", err)
	}
	if info.HW != "B-G431B-ESC1" || info.SW != "0.1.0" {
		t.Fatalf("unexpected device info: %+v", info)
	}

	// The routed request opened the gate; keepalives count up from zero
	for want := uint32(0); want < 2; want++ {
		select {
		case seq := <-keepalives:
			if seq != want {
				t.Fatalf("expected keepalive seq %d, got %d", want, seq)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for keepalive seq %d", want)
		}
	}

	device.Press(ctx, edges, 10*time.Millisecond)
	select {
	case e := <-buttons:
		if e != filament.ButtonSingleClick {
			t.Fatalf("expected SINGLE_CLICK, got %v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for button event")
	}

	// The debug-log channel was draining alongside the message traffic
	select {
	case <-logLines:
	case <-time.After(time.Second):
		t.Fatal("no debug-log output received")
	}
}
