// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package device

import (
	"context"
	"time"

	"github.com/oxifoc/foclink/pkg/filament"
)

// Edge is a raw button edge from the input pin
type Edge struct {
	Rising bool
}

// Button timing windows matching the firmware
const (
	DefaultDoubleClickWindow = 250 * time.Millisecond
	DefaultHoldWindow        = 1000 * time.Millisecond
)

// ButtonClassifier turns raw press/release edges into ButtonEvents. A press
// held past the hold window is a Hold; a release followed by another press
// inside the double-click window is a DoubleClick; anything else is a
// SingleClick.
type ButtonClassifier struct {
	DoubleClickWindow time.Duration
	HoldWindow        time.Duration
}

// Run consumes edges and emits classified events until the context is
// cancelled or the edge channel closes.
func (c *ButtonClassifier) Run(ctx context.Context, edges <-chan Edge, events chan<- filament.ButtonEvent) {
	doubleClick := c.DoubleClickWindow
	if doubleClick <= 0 {
		doubleClick = DefaultDoubleClickWindow
	}
	hold := c.HoldWindow
	if hold <= 0 {
		hold = DefaultHoldWindow
	}

	emit := func(e filament.ButtonEvent) bool {
		select {
		case events <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// next waits for an edge of the wanted polarity, ignoring repeats of the
	// other polarity. timeout <= 0 waits forever.
	next := func(rising bool, timeout time.Duration) (got, timedOut bool) {
		var timeoutC <-chan time.Time
		var timer *time.Timer
		if timeout > 0 {
			timer = time.NewTimer(timeout)
			timeoutC = timer.C
		}
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return false, false
			case e, ok := <-edges:
				if !ok {
					return false, false
				}
				if e.Rising == rising {
					return true, false
				}
			case <-timeoutC:
				return false, true
			}
		}
	}

	for {
		// Wait for a press
		if got, _ := next(true, 0); !got {
			return
		}

		// Held past the hold window?
		got, timedOut := next(false, hold)
		if timedOut {
			if !emit(filament.ButtonHold) {
				return
			}
			// Swallow the eventual release
			if got, _ := next(false, 0); !got {
				return
			}
			continue
		}
		if !got {
			return
		}

		// Released; second press inside the double-click window?
		got, timedOut = next(true, doubleClick)
		if timedOut {
			if !emit(filament.ButtonSingleClick) {
				return
			}
			continue
		}
		if !got {
			return
		}
		if !emit(filament.ButtonDoubleClick) {
			return
		}
		if got, _ := next(false, 0); !got {
			return
		}
	}
}

// Press injects one press/release pair into an edge channel, holding the
// button down for the given duration. Used by the simulator and tests.
func Press(ctx context.Context, edges chan<- Edge, duration time.Duration) {
	select {
	case edges <- Edge{Rising: true}:
	case <-ctx.Done():
		return
	}
	select {
	case <-time.After(duration):
	case <-ctx.Done():
		return
	}
	select {
	case edges <- Edge{Rising: false}:
	case <-ctx.Done():
	}
}
