// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package filament

import "fmt"

// The endpoint catalog is fixed at build time: the device publishes
// ButtonEvent and KeepAlive to host-side ports, and serves DeviceInfo
// requests on its own port. There is no dynamic endpoint registration.

// ButtonEvent is a user-input event detected by the device.
// Device → host only; transient, never persisted.
type ButtonEvent uint8

func (e ButtonEvent) String() string {
	switch e {
	case ButtonSingleClick:
		return "SINGLE_CLICK"
	case ButtonDoubleClick:
		return "DOUBLE_CLICK"
	case ButtonHold:
		return "HOLD"
	default:
		return fmt.Sprintf("BUTTON_UNKNOWN(0x%02X)", uint8(e))
	}
}

// Valid reports whether the event is a known variant
func (e ButtonEvent) Valid() bool {
	return e <= ButtonHold
}

// KeepAlive is the periodic liveness message. Seq increases by exactly one
// per emitted message; emission is gated until the device has routed its
// first inbound request.
type KeepAlive struct {
	_   struct{} `cbor:",toarray"`
	Seq uint32
}

// InfoRequest queries the device for its identity. No payload.
type InfoRequest struct {
	_ struct{} `cbor:",toarray"`
}

// DeviceInfo is the response to an InfoRequest
type DeviceInfo struct {
	_  struct{} `cbor:",toarray"`
	HW string
	SW string
}

// Validate checks the firmware's fixed string bounds
func (d *DeviceInfo) Validate() error {
	if len(d.HW) > MaxInfoStringLen {
		return fmt.Errorf("hw string too long: %d bytes (max %d)", len(d.HW), MaxInfoStringLen)
	}
	if len(d.SW) > MaxInfoStringLen {
		return fmt.Errorf("sw string too long: %d bytes (max %d)", len(d.SW), MaxInfoStringLen)
	}
	return nil
}

// FormatPort returns the human-readable name for a service port
func FormatPort(port uint8) string {
	switch port {
	case PortButton:
		return "event/button"
	case PortKeepAlive:
		return "event/keepalive"
	case PortDeviceInfo:
		return "req/device_info"
	default:
		return fmt.Sprintf("port/0x%02X", port)
	}
}
