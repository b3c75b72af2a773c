// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

// Package device is an in-process stand-in for the motor-controller firmware:
// the same task set the embedded side runs (inbound message pump, info
// responder, gated keepalive emitter, button classifier) mapped onto
// goroutines over a probe link's device end.
package device

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"

	"github.com/oxifoc/foclink/pkg/filament"
)

// DefaultKeepAlivePeriod is the KeepAlive emission period once the liveness
// gate opens.
const DefaultKeepAlivePeriod = time.Second

// Config wires a Device to the device end of a link
type Config struct {
	Info            filament.DeviceInfo
	KeepAlivePeriod time.Duration
	Button          ButtonClassifier

	// Up carries framed device→host messages
	Up io.Writer
	// Down carries framed host→device messages
	Down io.Reader
	// DebugLog receives the device's raw human-readable log stream; may be nil
	DebugLog io.Writer
}

// Device runs the device-side tasks of the messaging layer
type Device struct {
	cfg   Config
	stack *filament.Stack
	log   zerolog.Logger

	sendMu sync.Mutex

	suppressedTicks atomic.Uint64
}

// New creates a device bound to the given link end
func New(cfg Config) *Device {
	if cfg.KeepAlivePeriod <= 0 {
		cfg.KeepAlivePeriod = DefaultKeepAlivePeriod
	}

	d := &Device{cfg: cfg}

	if cfg.DebugLog != nil {
		d.log = zerolog.New(zerolog.ConsoleWriter{Out: cfg.DebugLog, NoColor: true, TimeFormat: "15:04:05.000"}).
			With().Timestamp().Logger()
	} else {
		d.log = zerolog.Nop()
	}

	d.stack = filament.NewStack(filament.NetworkID, filament.NodeDevice, d.sendFrame)
	d.stack.Handle(filament.PortDeviceInfo, d.serveInfo)
	return d
}

// Stack exposes the device's message stack (stats, liveness gate)
func (d *Device) Stack() *filament.Stack {
	return d.stack
}

// SuppressedTicks reports how many keepalive ticks were swallowed while the
// liveness gate was still closed.
func (d *Device) SuppressedTicks() uint64 {
	return d.suppressedTicks.Load()
}

// sendFrame serializes writers so concurrent tasks never interleave the
// bytes of two frames on the up channel.
func (d *Device) sendFrame(frame []byte) error {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	_, err := d.cfg.Up.Write(frame)
	return err
}

func (d *Device) serveInfo(src filament.Address, _ cbor.RawMessage) (cbor.RawMessage, error) {
	d.log.Info().Stringer("from", src).Msg("info request")
	return cbor.Marshal(&d.cfg.Info)
}

// Run starts the device tasks and blocks until the context is cancelled.
// Each task suspends only at its own await point (timer tick, inbound data,
// button edge); none can stall the others.
func (d *Device) Run(ctx context.Context, edges <-chan Edge) error {
	d.log.Info().Str("hw", d.cfg.Info.HW).Str("sw", d.cfg.Info.SW).Msg("device starting")

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); d.inboundPump(ctx) }()
	go func() { defer wg.Done(); d.keepAliveTask(ctx) }()
	go func() { defer wg.Done(); d.buttonTask(ctx, edges) }()

	<-ctx.Done()
	wg.Wait()
	return nil
}

// inboundPump decodes frames from the down channel and routes them
func (d *Device) inboundPump(ctx context.Context) {
	decoder := filament.NewDecoder()
	buf := make([]byte, 512)

	for {
		n, err := d.cfg.Down.Read(buf)
		for i := 0; i < n; i++ {
			payload, derr := decoder.DecodeByte(buf[i])
			if derr != nil {
				d.stack.Stats().FrameErrors.Add(1)
				d.log.Debug().Err(derr).Msg("dropped malformed frame")
				continue
			}
			if payload == nil {
				continue
			}
			if herr := d.stack.HandleFrame(payload); herr != nil {
				d.log.Debug().Err(herr).Msg("undeliverable message")
			}
		}
		if err != nil {
			if ctx.Err() == nil {
				d.log.Warn().Err(err).Msg("down channel closed")
			}
			return
		}
	}
}

// keepAliveTask emits KeepAlive at a fixed period once the liveness gate has
// opened. The gate is checked at each tick, never awaited: until the host
// has proven it is listening, a tick is simply a suppressed tick rather than
// undeliverable traffic.
func (d *Device) keepAliveTask(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.KeepAlivePeriod)
	defer ticker.Stop()

	var seq uint32
	gateSeen := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !d.stack.FirstRequestRouted() {
				d.suppressedTicks.Add(1)
				continue
			}
			if !gateSeen {
				gateSeen = true
				d.log.Info().Uint64("suppressed_ticks", d.suppressedTicks.Load()).Msg("liveness gate open, keepalive starting")
			}
			if err := d.stack.Publish(filament.HostAddr(filament.PortKeepAlive), &filament.KeepAlive{Seq: seq}); err != nil {
				d.log.Warn().Err(err).Msg("keepalive send failed")
				continue
			}
			seq++
		}
	}
}

// buttonTask classifies edges and publishes the resulting events
func (d *Device) buttonTask(ctx context.Context, edges <-chan Edge) {
	events := make(chan filament.ButtonEvent, 4)
	go d.cfg.Button.Run(ctx, edges, events)

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			d.log.Info().Stringer("event", e).Msg("button")
			if err := d.stack.Publish(filament.HostAddr(filament.PortButton), e); err != nil {
				d.log.Warn().Err(err).Msg("button event send failed")
			}
		}
	}
}
