// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package filament

import "fmt"

// SeqTracker watches the KeepAlive sequence for gaps and resets.
// Consecutive messages must differ by exactly one; anything else is an
// anomaly worth surfacing to the operator, though never fatal.
type SeqTracker struct {
	last    uint32
	primed  bool
	Gaps    uint64
	Resets  uint64
	Checked uint64
}

// Check records one observed sequence number. It returns a non-nil
// description when the sequence is anomalous.
func (t *SeqTracker) Check(seq uint32) error {
	t.Checked++
	if !t.primed {
		t.primed = true
		t.last = seq
		return nil
	}

	expected := t.last + 1
	prev := t.last
	t.last = seq

	switch {
	case seq == expected:
		return nil
	case seq < prev:
		t.Resets++
		return fmt.Errorf("keepalive sequence reset: %d after %d (device restarted?)", seq, prev)
	default:
		t.Gaps++
		return fmt.Errorf("keepalive gap: expected %d, got %d (%d missed)", expected, seq, seq-expected)
	}
}
