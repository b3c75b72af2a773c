// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

package probe

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// SerialLink carries the framed message channels over a plain serial port.
// A serial line has no channel multiplexing, so only the "messages" /
// "messages-down" pair is available; the debug-log channel is absent and the
// reader simply runs without it.
type SerialLink struct {
	port serial.Port
}

// OpenSerialLink opens a serial port as a probe link
func OpenSerialLink(portName string, baudRate int) (*SerialLink, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialLink{port: port}, nil
}

func (s *SerialLink) Up(name string) (io.Reader, error) {
	if name != ChannelMessages {
		return nil, fmt.Errorf("%w: %q", ErrNoChannel, name)
	}
	return s.port, nil
}

func (s *SerialLink) Down(name string) (io.Writer, error) {
	if name != ChannelMessagesDown {
		return nil, fmt.Errorf("%w: %q", ErrNoChannel, name)
	}
	return s.port, nil
}

func (s *SerialLink) Close() error {
	return s.port.Close()
}
