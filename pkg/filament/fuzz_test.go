// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package filament

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// newFuzzRng creates a seeded random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func TestFuzz_FrameRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		payload := make([]byte, 1+rng.Intn(MaxPayloadSize))
		rng.Read(payload)

		frame, err := EncodeFrame(payload)
		if err != nil {
			t.Fatalf("round %d: EncodeFrame failed: %v", round, err)
		}

		d := NewDecoder()
		var got []byte
		for _, b := range frame {
			out, err := d.DecodeByte(b)
			if err != nil {
				t.Fatalf("round %d: decode error: %v", round, err)
			}
			if out != nil {
				got = out
			}
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("round %d: round trip mismatch (%d bytes in, %d out)", round, len(payload), len(got))
		}
	}
}

func TestFuzz_GarbageNeverPoisonsNextFrame(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		payload := make([]byte, 1+rng.Intn(64))
		rng.Read(payload)
		frame, err := EncodeFrame(payload)
		if err != nil {
			t.Fatalf("round %d: EncodeFrame failed: %v", round, err)
		}

		// Random garbage terminated by a delimiter, then the valid frame
		garbage := make([]byte, rng.Intn(200))
		rng.Read(garbage)
		stream := append(garbage, FrameDelimiter)
		stream = append(stream, frame...)

		d := NewDecoder()
		var decoded [][]byte
		for _, b := range stream {
			out, err := d.DecodeByte(b)
			if err != nil {
				continue // garbage is allowed to produce errors
			}
			if out != nil {
				cp := make([]byte, len(out))
				copy(cp, out)
				decoded = append(decoded, cp)
			}
		}

		// The valid frame must always come out last; garbage may in rare
		// cases form an accidentally valid frame before it.
		if len(decoded) == 0 {
			t.Fatalf("round %d: valid frame not decoded after garbage", round)
		}
		if !bytes.Equal(decoded[len(decoded)-1], payload) {
			t.Fatalf("round %d: garbage corrupted the following frame", round)
		}
	}
}
