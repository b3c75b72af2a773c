// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package filament

import "fmt"

// Decoder implements the Filament frame decoder.
//
// It accumulates stuffed bytes until a delimiter, then unstuffs and verifies
// the CRC trailer. A malformed or oversized frame is discarded and decoding
// resumes at the next delimiter; the error is reported but the decoder stays
// usable. Memory use is bounded by MaxFrameSize regardless of stream length.
type Decoder struct {
	buf      []byte
	overflow bool
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		buf: make([]byte, 0, MaxFrameSize),
	}
}

// Reset discards any partially accumulated frame
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.overflow = false
}

// DecodeByte processes a single byte from the stream.
// Returns a completed message payload when b terminates a valid frame, or nil
// if the frame is still incomplete. Returns an error for malformed frames;
// the stream is not poisoned and decoding continues with the next byte.
func (d *Decoder) DecodeByte(b byte) ([]byte, error) {
	if b != FrameDelimiter {
		if d.overflow {
			// Discarding until the next delimiter
			return nil, nil
		}
		if len(d.buf) >= MaxFrameSize {
			d.overflow = true
			d.buf = d.buf[:0]
			return nil, fmt.Errorf("frame exceeds %d bytes, resynchronizing", MaxFrameSize)
		}
		d.buf = append(d.buf, b)
		return nil, nil
	}

	if d.overflow {
		d.overflow = false
		d.buf = d.buf[:0]
		return nil, nil
	}

	if len(d.buf) == 0 {
		// Idle delimiter between frames
		return nil, nil
	}

	data, err := UnstuffBytes(d.buf)
	d.buf = d.buf[:0]
	if err != nil {
		return nil, fmt.Errorf("bad stuffing: %w", err)
	}

	if len(data) < crcSize {
		return nil, fmt.Errorf("frame too short: %d bytes", len(data))
	}

	payload := data[:len(data)-crcSize]
	wire := uint16(data[len(data)-2])<<8 | uint16(data[len(data)-1])
	if calculated := CalculateCRC(payload); calculated != wire {
		return nil, fmt.Errorf("CRC mismatch: expected 0x%04X, got 0x%04X", calculated, wire)
	}

	return payload, nil
}
