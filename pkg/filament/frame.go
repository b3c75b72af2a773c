// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package filament

import "fmt"

// EncodeFrame encodes a message payload to wire format.
// The payload gets a CRC-16-CCITT trailer, is COBS-stuffed so it contains no
// delimiter bytes, and is terminated with a single delimiter. Worst-case
// expansion is bounded: one stuffing byte per 254 payload bytes, plus the CRC
// trailer and the delimiter.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize)
	}

	data := make([]byte, 0, len(payload)+crcSize)
	data = append(data, payload...)

	crc := CalculateCRC(payload)
	data = append(data, byte(crc>>8), byte(crc&0xFF))

	stuffed := stuffBytes(data)

	frame := make([]byte, 0, len(stuffed)+1)
	frame = append(frame, stuffed...)
	frame = append(frame, FrameDelimiter)
	return frame, nil
}

// stuffBytes applies COBS stuffing so the output contains no delimiter bytes.
// Each group starts with a code byte giving the offset to the next delimiter
// (or group boundary for maximal groups).
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)+len(data)/254+1)

	codeIdx := len(result)
	result = append(result, 0)
	code := byte(1)

	for _, b := range data {
		if b == FrameDelimiter {
			result[codeIdx] = code
			codeIdx = len(result)
			result = append(result, 0)
			code = 1
			continue
		}
		result = append(result, b)
		code++
		if code == cobsMaxGroup {
			result[codeIdx] = code
			codeIdx = len(result)
			result = append(result, 0)
			code = 1
		}
	}

	result[codeIdx] = code
	return result
}

// UnstuffBytes removes COBS stuffing from a frame body.
// This is the inverse of stuffBytes.
func UnstuffBytes(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))

	for i := 0; i < len(data); {
		code := data[i]
		if code == FrameDelimiter {
			return nil, fmt.Errorf("delimiter inside frame body at offset %d", i)
		}
		i++
		end := i + int(code) - 1
		if end > len(data) {
			return nil, fmt.Errorf("stuffing group overruns frame: code %d with %d bytes left", code, len(data)-i)
		}
		result = append(result, data[i:end]...)
		i = end
		if code < cobsMaxGroup && i < len(data) {
			result = append(result, FrameDelimiter)
		}
	}

	return result, nil
}
