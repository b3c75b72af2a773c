// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

// Package filament provides a reference Go implementation of the Filament
// messaging protocol.
//
// Filament is a framed, addressed message protocol carried over the unframed
// byte channels of a debug-probe link between an embedded motor controller
// and a host tool. This package provides frame encoding/decoding, CRC
// validation, the addressed message stack, and the fixed endpoint catalog.
package filament

// Frame delimiter. Frames are COBS-stuffed so the delimiter never appears
// inside a frame body; a frame is terminated by exactly one delimiter byte.
const (
	FrameDelimiter = 0x00
	cobsMaxGroup   = 0xFF // longest COBS group: 254 data bytes + group header
)

// Frame size limits
const (
	MaxFrameSize   = 512 // stuffed bytes between delimiters
	MaxPayloadSize = 504 // leaves room for worst-case COBS overhead + CRC
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
	crcSize       = 2
)

// Network addressing. Both endpoints are fixed at build time; nothing on the
// wire negotiates addresses.
const (
	NetworkID  = 1
	NodeHost   = 1
	NodeDevice = 2
)

// Service ports - host-side services (device → host traffic)
const (
	PortButton    = 0x10
	PortKeepAlive = 0x11
)

// Service ports - device-side services (host → device traffic)
const (
	PortDeviceInfo = 0x20
)

// Envelope kinds
const (
	KindPublish  = 0x00
	KindRequest  = 0x01
	KindResponse = 0x02
)

// ButtonEvent values
const (
	ButtonSingleClick ButtonEvent = 0x00
	ButtonDoubleClick ButtonEvent = 0x01
	ButtonHold        ButtonEvent = 0x02
)

// DeviceInfo field limits. The firmware stores both strings in fixed 32-byte
// buffers; longer values are rejected rather than truncated.
const MaxInfoStringLen = 32
