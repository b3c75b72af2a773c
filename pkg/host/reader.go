// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

// Package host implements the host side of the Filament link: the dual-stream
// reader that drains the probe channels and the handshake controller that
// establishes device liveness.
package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/oxifoc/foclink/pkg/filament"
	"github.com/oxifoc/foclink/pkg/probe"
)

// LogSource selects which up channels the reader drains
type LogSource int

const (
	// LogSourceAuto drains every up channel the link carries
	LogSourceAuto LogSource = iota
	// LogSourceMessages drains only the framed-message channel
	LogSourceMessages
	// LogSourceDebugLog drains only the raw debug-log channel
	LogSourceDebugLog
)

// ParseLogSource parses the CLI --log-source value
func ParseLogSource(s string) (LogSource, error) {
	switch s {
	case "", "auto":
		return LogSourceAuto, nil
	case "messages":
		return LogSourceMessages, nil
	case "debug-log":
		return LogSourceDebugLog, nil
	default:
		return 0, fmt.Errorf("unknown log source %q (use auto, messages or debug-log)", s)
	}
}

func (s LogSource) String() string {
	switch s {
	case LogSourceMessages:
		return "messages"
	case LogSourceDebugLog:
		return "debug-log"
	default:
		return "auto"
	}
}

// LogDecoder turns raw debug-log bytes into display lines. The default is a
// plain line splitter; a defmt-style decoder keyed off the firmware ELF can
// be plugged in here.
type LogDecoder interface {
	Decode(chunk []byte) []string
}

// LineDecoder splits the raw stream on newlines, holding partial lines until
// they complete.
type LineDecoder struct {
	partial []byte
}

func (d *LineDecoder) Decode(chunk []byte) []string {
	d.partial = append(d.partial, chunk...)
	var lines []string
	for {
		i := bytes.IndexByte(d.partial, '\n')
		if i < 0 {
			return lines
		}
		line := d.partial[:i]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		lines = append(lines, string(line))
		d.partial = d.partial[i+1:]
	}
}

// Reader concurrently drains the raw debug-log channel and the framed-message
// channel of a probe link. Each channel is decoded independently on its own
// goroutine, so a silent or backlogged channel never stalls the other; output
// per channel stays in arrival order, and no cross-channel ordering exists.
type Reader struct {
	Link       probe.Link
	Stack      *filament.Stack
	Source     LogSource
	LogDecoder LogDecoder   // nil selects LineDecoder
	OnLogLine  func(string) // nil logs through Log
	OnEnvelope func(*filament.Envelope)
	Log        zerolog.Logger
}

// Run drains the selected channels until the context is cancelled or the
// transport breaks. Cancellation closes the link to unblock channel reads;
// read failures after cancellation are treated as a clean stop.
func (r *Reader) Run(ctx context.Context) error {
	logCh, msgCh, err := r.channels()
	if err != nil {
		return err
	}

	// The watcher closes the link to unblock channel reads on cancellation;
	// done stops it when Run returns for any other reason, leaving the link
	// to the caller.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			select {
			case <-done:
				// Run already returned, the link belongs to the caller
			default:
				r.Link.Close()
			}
		case <-done:
		}
	}()

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	if msgCh != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.drainMessages(msgCh)
		}()
	}
	if logCh != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.drainDebugLog(logCh)
		}()
	}

	wg.Wait()
	close(errs)

	if ctx.Err() != nil {
		return nil
	}
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// channels resolves the up channels for the selected log source. In auto
// mode a link that simply lacks a channel (a bare serial line has no
// debug-log) is fine; an explicitly requested channel must exist.
func (r *Reader) channels() (logCh, msgCh io.Reader, err error) {
	if r.Source != LogSourceDebugLog {
		msgCh, err = r.Link.Up(probe.ChannelMessages)
		if err != nil {
			if r.Source == LogSourceMessages || !errors.Is(err, probe.ErrNoChannel) {
				return nil, nil, err
			}
			msgCh = nil
		}
	}
	if r.Source != LogSourceMessages {
		logCh, err = r.Link.Up(probe.ChannelDebugLog)
		if err != nil {
			if r.Source == LogSourceDebugLog || !errors.Is(err, probe.ErrNoChannel) {
				return nil, nil, err
			}
			logCh = nil
		}
	}
	if logCh == nil && msgCh == nil {
		return nil, nil, fmt.Errorf("link carries none of the requested channels")
	}
	return logCh, msgCh, nil
}

func (r *Reader) drainMessages(ch io.Reader) error {
	decoder := filament.NewDecoder()
	buf := make([]byte, 2048)

	for {
		n, err := ch.Read(buf)
		for i := 0; i < n; i++ {
			payload, derr := decoder.DecodeByte(buf[i])
			if derr != nil {
				r.Stack.Stats().FrameErrors.Add(1)
				r.Log.Debug().Err(derr).Msg("dropped malformed frame")
				continue
			}
			if payload == nil {
				continue
			}
			if r.OnEnvelope != nil {
				if env, eerr := filament.DecodeEnvelope(payload); eerr == nil {
					r.OnEnvelope(env)
				}
			}
			if herr := r.Stack.HandleFrame(payload); herr != nil {
				r.Log.Debug().Err(herr).Msg("undeliverable message")
			}
		}
		if err != nil {
			return readResult(err)
		}
	}
}

func (r *Reader) drainDebugLog(ch io.Reader) error {
	decoder := r.LogDecoder
	if decoder == nil {
		decoder = &LineDecoder{}
	}
	buf := make([]byte, 2048)

	for {
		n, err := ch.Read(buf)
		if n > 0 {
			for _, line := range decoder.Decode(buf[:n]) {
				if r.OnLogLine != nil {
					r.OnLogLine(line)
				} else {
					r.Log.Info().Str("channel", probe.ChannelDebugLog).Msg(line)
				}
			}
		}
		if err != nil {
			return readResult(err)
		}
	}
}

// readResult maps end-of-stream conditions to a clean stop
func readResult(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
