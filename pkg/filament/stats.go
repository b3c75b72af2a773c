// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package filament

import (
	"fmt"
	"sync/atomic"
)

// Stats tracks per-stack traffic and error counters. Every degraded-but-
// continuing condition in the protocol (frame malformation, NoRoute, stale
// responses) lands here rather than surfacing as a hard failure.
type Stats struct {
	FramesOut      atomic.Uint64
	FramesIn       atomic.Uint64
	FrameErrors    atomic.Uint64 // malformed frames dropped by the decoder
	EnvelopeErrors atomic.Uint64
	NoRoute        atomic.Uint64
	HandlerErrors  atomic.Uint64
	StaleResponses atomic.Uint64
}

// Snapshot is a plain-value copy of the counters at one point in time
type Snapshot struct {
	FramesOut      uint64
	FramesIn       uint64
	FrameErrors    uint64
	EnvelopeErrors uint64
	NoRoute        uint64
	HandlerErrors  uint64
	StaleResponses uint64
}

// Snapshot returns a consistent-enough copy of the counters
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		FramesOut:      s.FramesOut.Load(),
		FramesIn:       s.FramesIn.Load(),
		FrameErrors:    s.FrameErrors.Load(),
		EnvelopeErrors: s.EnvelopeErrors.Load(),
		NoRoute:        s.NoRoute.Load(),
		HandlerErrors:  s.HandlerErrors.Load(),
		StaleResponses: s.StaleResponses.Load(),
	}
}

// Format renders the counters as a single human-readable line
func (s Snapshot) Format() string {
	return fmt.Sprintf("in=%d out=%d frame_err=%d envelope_err=%d no_route=%d handler_err=%d stale=%d",
		s.FramesIn, s.FramesOut, s.FrameErrors, s.EnvelopeErrors,
		s.NoRoute, s.HandlerErrors, s.StaleResponses)
}
