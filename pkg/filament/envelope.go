// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package filament

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Envelope is the addressed wrapper around every message on the wire,
// encoded as a fixed CBOR array: [kind, seq, src, dst, payload].
//
// Seq carries the request identifier for Request/Response pairs and is zero
// for Publish envelopes. Payload is the raw CBOR encoding of the endpoint
// message and is decoded lazily by the routed handler.
type Envelope struct {
	_       struct{} `cbor:",toarray"`
	Kind    uint8
	Seq     uint16
	Src     Address
	Dst     Address
	Payload cbor.RawMessage
}

// Encode serializes the envelope to CBOR, ready for framing
func (e *Envelope) Encode() ([]byte, error) {
	data, err := cbor.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// DecodeEnvelope parses a deframed message payload into an Envelope
func DecodeEnvelope(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty envelope")
	}
	var e Envelope
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	switch e.Kind {
	case KindPublish, KindRequest, KindResponse:
	default:
		return nil, fmt.Errorf("unknown envelope kind 0x%02X", e.Kind)
	}
	return &e, nil
}

// FormatKind returns the human-readable name for an envelope kind
func FormatKind(kind uint8) string {
	switch kind {
	case KindPublish:
		return "PUBLISH"
	case KindRequest:
		return "REQUEST"
	case KindResponse:
		return "RESPONSE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", kind)
	}
}
