// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package filament

import (
	"bytes"
	"testing"
)

// ============================================================
// Test Helpers
// ============================================================

// decodeStream feeds a byte stream through a fresh decoder and collects
// every decoded payload and every decode error.
func decodeStream(t *testing.T, stream []byte) ([][]byte, []error) {
	t.Helper()
	d := NewDecoder()
	var payloads [][]byte
	var errs []error
	for _, b := range stream {
		payload, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if payload != nil {
			cp := make([]byte, len(payload))
			copy(cp, payload)
			payloads = append(payloads, cp)
		}
	}
	return payloads, errs
}

func mustEncode(t *testing.T, payload []byte) []byte {
	t.Helper()
	frame, err := EncodeFrame(payload)
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}
	return frame
}

// ============================================================
// Encoding Tests
// ============================================================

func TestEncodeFrame_ZeroFree(t *testing.T) {
	// A payload full of delimiter bytes must produce a frame whose only
	// delimiter is the terminator.
	payload := bytes.Repeat([]byte{FrameDelimiter}, 32)
	frame := mustEncode(t, payload)

	if frame[len(frame)-1] != FrameDelimiter {
		t.Errorf("frame must end with delimiter, got 0x%02X", frame[len(frame)-1])
	}
	for i, b := range frame[:len(frame)-1] {
		if b == FrameDelimiter {
			t.Errorf("delimiter inside frame body at offset %d", i)
		}
	}
}

func TestEncodeFrame_SizeBound(t *testing.T) {
	for _, n := range []int{1, 64, 254, 255, 300, MaxPayloadSize} {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i + 1)
		}
		frame := mustEncode(t, payload)

		// payload + CRC + one stuffing byte per 254 bytes + group header + delimiter
		bound := n + crcSize + (n+crcSize)/254 + 2
		if len(frame) > bound {
			t.Errorf("n=%d: frame %d bytes exceeds bound %d", n, len(frame), bound)
		}
	}
}

func TestEncodeFrame_TooLarge(t *testing.T) {
	_, err := EncodeFrame(make([]byte, MaxPayloadSize+1))
	if err == nil {
		t.Error("expected error for oversized payload")
	}
}

// ============================================================
// Round-Trip Tests
// ============================================================

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"single byte", []byte{0x42}},
		{"all delimiters", bytes.Repeat([]byte{0x00}, 10)},
		{"mixed", []byte{0x00, 0x7E, 0xFF, 0x00, 0x01}},
		{"group boundary", bytes.Repeat([]byte{0xAA}, 254)},
		{"over group boundary", bytes.Repeat([]byte{0xAA}, 255)},
		{"max payload", bytes.Repeat([]byte{0x55}, MaxPayloadSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := mustEncode(t, tt.payload)
			payloads, errs := decodeStream(t, frame)
			if len(errs) != 0 {
				t.Fatalf("decode errors: %v", errs)
			}
			if len(payloads) != 1 {
				t.Fatalf("expected 1 payload, got %d", len(payloads))
			}
			if !bytes.Equal(payloads[0], tt.payload) {
				t.Errorf("round trip mismatch:\n  sent %x\n  got  %x", tt.payload, payloads[0])
			}
		})
	}
}

func TestRoundTrip_Concatenated(t *testing.T) {
	a := []byte{0x01, 0x00, 0x02}
	b := []byte{0xFE, 0xFF}

	var stream []byte
	stream = append(stream, mustEncode(t, a)...)
	stream = append(stream, mustEncode(t, b)...)

	payloads, errs := decodeStream(t, stream)
	if len(errs) != 0 {
		t.Fatalf("decode errors: %v", errs)
	}
	if len(payloads) != 2 || !bytes.Equal(payloads[0], a) || !bytes.Equal(payloads[1], b) {
		t.Errorf("expected payloads %x and %x, got %x", a, b, payloads)
	}
}

// ============================================================
// Resynchronization Tests
// ============================================================

func TestDecoder_ResyncAfterTruncatedFrame(t *testing.T) {
	good := []byte{0x10, 0x20, 0x30, 0x40}

	corrupt := mustEncode(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05})
	// Truncate mid-frame, keeping the terminating delimiter. The stuffing
	// group header now points past the end of the body.
	corrupt = append(corrupt[:len(corrupt)-4], FrameDelimiter)

	var stream []byte
	stream = append(stream, corrupt...)
	stream = append(stream, mustEncode(t, good)...)

	payloads, errs := decodeStream(t, stream)
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 decode error, got %d: %v", len(errs), errs)
	}
	if len(payloads) != 1 {
		t.Fatalf("expected exactly 1 payload, got %d", len(payloads))
	}
	if !bytes.Equal(payloads[0], good) {
		t.Errorf("corrupt frame poisoned the next one: got %x, want %x", payloads[0], good)
	}
}

func TestDecoder_ResyncAfterOversizedFrame(t *testing.T) {
	good := []byte{0xAB, 0xCD}

	var stream []byte
	// Unterminated garbage well past the frame size limit
	for i := 0; i < MaxFrameSize+100; i++ {
		stream = append(stream, 0x11)
	}
	stream = append(stream, FrameDelimiter)
	stream = append(stream, mustEncode(t, good)...)

	payloads, errs := decodeStream(t, stream)
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 decode error, got %d: %v", len(errs), errs)
	}
	if len(payloads) != 1 || !bytes.Equal(payloads[0], good) {
		t.Errorf("expected single payload %x after resync, got %x", good, payloads)
	}
}

func TestDecoder_CRCMismatch(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	data := append([]byte{}, payload...)
	crc := CalculateCRC(payload) ^ 0x5A5A // deliberately wrong
	data = append(data, byte(crc>>8), byte(crc&0xFF))
	frame := append(stuffBytes(data), FrameDelimiter)

	payloads, errs := decodeStream(t, frame)
	if len(payloads) != 0 {
		t.Errorf("corrupt frame produced output: %x", payloads)
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 CRC error, got %v", errs)
	}
}

func TestDecoder_IdleDelimiters(t *testing.T) {
	payloads, errs := decodeStream(t, []byte{0x00, 0x00, 0x00, 0x00})
	if len(payloads) != 0 || len(errs) != 0 {
		t.Errorf("idle delimiters produced output: payloads=%v errs=%v", payloads, errs)
	}
}

// ============================================================
// Stuffing Tests
// ============================================================

func TestUnstuffBytes_GroupOverrun(t *testing.T) {
	// Code byte claims 10 following bytes, only 2 present
	if _, err := UnstuffBytes([]byte{0x0B, 0x01, 0x02}); err == nil {
		t.Error("expected error for overrunning stuffing group")
	}
}

func TestUnstuffBytes_EmbeddedDelimiter(t *testing.T) {
	if _, err := UnstuffBytes([]byte{0x02, 0x01, 0x00, 0x01}); err == nil {
		t.Error("expected error for delimiter inside frame body")
	}
}

func TestCalculateCRC_KnownValue(t *testing.T) {
	// Standard CRC-16-CCITT check value
	if crc := CalculateCRC([]byte("123456789")); crc != 0x29B1 {
		t.Errorf("CRC mismatch: expected 0x29B1, got 0x%04X", crc)
	}
}
