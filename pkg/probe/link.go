// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

// Package probe abstracts the physical debug-probe transport: a set of named
// unidirectional byte channels shared over one link. The messaging layer only
// requires ordered, reliable (or detectably broken) byte delivery per channel;
// it does not care what actually carries them.
package probe

import (
	"errors"
	"io"
)

// Channel naming convention shared with the firmware
const (
	// ChannelDebugLog carries unframed human-readable log bytes (up)
	ChannelDebugLog = "debug-log"
	// ChannelMessages carries framed protocol bytes device→host (up)
	ChannelMessages = "messages"
	// ChannelMessagesDown carries framed protocol bytes host→device (down)
	ChannelMessagesDown = "messages-down"
)

// Link errors
var (
	// ErrNoChannel is returned when a link does not carry the named channel
	ErrNoChannel = errors.New("channel not carried by this link")
	// ErrLinkBusy is returned when the link is already owned by another connection
	ErrLinkBusy = errors.New("link already in use")
)

// Link is the boundary to a debug-probe transport. A link is an exclusively
// owned resource: exactly one process (or in-process owner) holds it, and a
// second connection attempt fails cleanly instead of corrupting the stream.
type Link interface {
	// Up returns the reader for a named device→host channel
	Up(name string) (io.Reader, error)
	// Down returns the writer for a named host→device channel
	Down(name string) (io.Writer, error)
	io.Closer
}
