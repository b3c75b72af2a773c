// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package filament

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// FormatEnvelope formats a decoded envelope into a human-readable line,
// decoding the payload for known endpoint ports.
func FormatEnvelope(env *Envelope) string {
	timestamp := time.Now().Format("15:04:05.000")
	head := fmt.Sprintf("[%s] %s %s %s → %s",
		timestamp, FormatKind(env.Kind), FormatPort(env.Dst.Port), env.Src, env.Dst)

	if detail := formatPayload(env); detail != "" {
		return head + " " + detail
	}
	return head
}

func formatPayload(env *Envelope) string {
	switch env.Dst.Port {
	case PortButton:
		var e ButtonEvent
		if err := cbor.Unmarshal(env.Payload, &e); err != nil {
			return fmt.Sprintf("(undecodable button event: %v)", err)
		}
		return e.String()

	case PortKeepAlive:
		var ka KeepAlive
		if err := cbor.Unmarshal(env.Payload, &ka); err != nil {
			return fmt.Sprintf("(undecodable keepalive: %v)", err)
		}
		return fmt.Sprintf("seq=%d", ka.Seq)

	case PortDeviceInfo:
		if env.Kind != KindResponse {
			return ""
		}
		var info DeviceInfo
		if err := cbor.Unmarshal(env.Payload, &info); err != nil {
			return fmt.Sprintf("(undecodable device info: %v)", err)
		}
		return fmt.Sprintf("hw=%q sw=%q", info.HW, info.SW)

	default:
		return fmt.Sprintf("%d payload bytes", len(env.Payload))
	}
}
