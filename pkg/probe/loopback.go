// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package probe

import (
	"fmt"
	"io"
	"sync"
)

// Loopback is an in-memory link pair carrying all three channels. The host
// side is claimed through Host() and behaves like any other Link; the device
// side exposes the raw pipe ends for a simulated or in-process device.
type Loopback struct {
	mu        sync.Mutex
	hostTaken bool

	debugLogR *io.PipeReader
	debugLogW *io.PipeWriter
	msgUpR    *io.PipeReader
	msgUpW    *io.PipeWriter
	msgDownR  *io.PipeReader
	msgDownW  *io.PipeWriter
}

// NewLoopback creates a connected loopback link
func NewLoopback() *Loopback {
	l := &Loopback{}
	l.debugLogR, l.debugLogW = io.Pipe()
	l.msgUpR, l.msgUpW = io.Pipe()
	l.msgDownR, l.msgDownW = io.Pipe()
	return l
}

// Host claims the host end of the link. The link is exclusively owned: a
// second claim fails with ErrLinkBusy instead of sharing the stream.
func (l *Loopback) Host() (Link, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hostTaken {
		return nil, ErrLinkBusy
	}
	l.hostTaken = true
	return &loopbackHost{l: l}, nil
}

// DeviceLog is where the device writes its raw debug-log bytes
func (l *Loopback) DeviceLog() io.Writer { return l.debugLogW }

// DeviceUp is where the device writes framed device→host messages
func (l *Loopback) DeviceUp() io.Writer { return l.msgUpW }

// DeviceDown is where the device reads framed host→device messages
func (l *Loopback) DeviceDown() io.Reader { return l.msgDownR }

// CloseDevice tears down the device end; host readers see EOF
func (l *Loopback) CloseDevice() {
	l.debugLogW.Close()
	l.msgUpW.Close()
	l.msgDownR.Close()
}

type loopbackHost struct {
	l *Loopback
}

func (h *loopbackHost) Up(name string) (io.Reader, error) {
	switch name {
	case ChannelDebugLog:
		return h.l.debugLogR, nil
	case ChannelMessages:
		return h.l.msgUpR, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrNoChannel, name)
	}
}

func (h *loopbackHost) Down(name string) (io.Writer, error) {
	if name != ChannelMessagesDown {
		return nil, fmt.Errorf("%w: %q", ErrNoChannel, name)
	}
	return h.l.msgDownW, nil
}

func (h *loopbackHost) Close() error {
	h.l.debugLogR.Close()
	h.l.msgUpR.Close()
	h.l.msgDownW.Close()
	return nil
}
