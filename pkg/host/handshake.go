// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package host

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/oxifoc/foclink/pkg/filament"
)

// ErrUnresponsive is surfaced after the handshake exhausts its retries.
// It is not fatal to the host: spontaneous device traffic is still delivered
// once the device's own gate opens.
var ErrUnresponsive = errors.New("device unresponsive")

// Handshake backoff defaults. The firmware gives no production values, so
// these are the chosen bounds: probe fast at first, back off to a ceiling.
const (
	DefaultInitialTimeout = 100 * time.Millisecond
	DefaultTimeoutCeiling = 1600 * time.Millisecond
	DefaultMaxAttempts    = 5
)

// HandshakeState tracks the controller's progress
type HandshakeState int

const (
	HandshakeIdle HandshakeState = iota
	HandshakeProbing
	HandshakeResponded
	HandshakeExhausted
)

func (s HandshakeState) String() string {
	switch s {
	case HandshakeProbing:
		return "probing"
	case HandshakeResponded:
		return "responded"
	case HandshakeExhausted:
		return "exhausted"
	default:
		return "idle"
	}
}

// Handshake probes the device with InfoRequests until one is answered or the
// attempts run out. Timeouts grow by doubling, clamped to the ceiling,
// so retries are non-decreasing and bounded. The device may start after the
// host; retrying here is what resolves that startup race.
type Handshake struct {
	Stack          *filament.Stack
	InitialTimeout time.Duration
	TimeoutCeiling time.Duration
	MaxAttempts    int
	Log            zerolog.Logger

	mu    sync.Mutex
	state HandshakeState
}

// State returns the controller's current state
func (h *Handshake) State() HandshakeState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handshake) setState(s HandshakeState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// retryBounds repairs unset or inconsistent retry parameters. The ceiling is
// never left below the initial timeout, so the schedule stays non-decreasing
// even when only the initial timeout is configured.
func retryBounds(initial, ceiling time.Duration, attempts int) (time.Duration, time.Duration, int) {
	if initial <= 0 {
		initial = DefaultInitialTimeout
	}
	if ceiling <= 0 {
		ceiling = DefaultTimeoutCeiling
	}
	if ceiling < initial {
		ceiling = initial
	}
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	return initial, ceiling, attempts
}

// backoff returns the timeout for a zero-based attempt index
func backoff(initial, ceiling time.Duration, attempt int) time.Duration {
	d := initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return d
}

// Run probes until a response arrives or attempts are exhausted. On success
// the controller goes quiet; it issues no further requests unless Run is
// invoked again explicitly.
func (h *Handshake) Run(ctx context.Context) (filament.DeviceInfo, error) {
	initial, ceiling, attempts := retryBounds(h.InitialTimeout, h.TimeoutCeiling, h.MaxAttempts)

	h.setState(HandshakeProbing)

	var info filament.DeviceInfo
	for attempt := 0; attempt < attempts; attempt++ {
		timeout := backoff(initial, ceiling, attempt)
		actx, cancel := context.WithTimeout(ctx, timeout)
		err := h.Stack.Request(actx, filament.DeviceAddr(filament.PortDeviceInfo), &filament.InfoRequest{}, &info)
		cancel()

		if err == nil {
			if verr := info.Validate(); verr != nil {
				h.Log.Warn().Err(verr).Msg("device info failed validation")
			}
			h.setState(HandshakeResponded)
			return info, nil
		}
		if ctx.Err() != nil {
			h.setState(HandshakeExhausted)
			return filament.DeviceInfo{}, ctx.Err()
		}
		if !errors.Is(err, filament.ErrTimedOut) {
			// Busy or a transport write failure: not something more probing fixes
			h.setState(HandshakeExhausted)
			return filament.DeviceInfo{}, err
		}
		h.Log.Debug().
			Int("attempt", attempt+1).
			Dur("timeout", timeout).
			Msg("info request timed out")
	}

	h.setState(HandshakeExhausted)
	return filament.DeviceInfo{}, ErrUnresponsive
}
