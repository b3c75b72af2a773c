// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Oxifoc Project

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"github.com/oxifoc/foclink/internal/logging"
	"github.com/oxifoc/foclink/pkg/filament"
	"github.com/oxifoc/foclink/pkg/host"
	"github.com/oxifoc/foclink/pkg/probe"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Stream device logs and messages in human-readable form",
	Long: `Continuously drain the debug-log and framed-message channels, printing
each log line and decoded message as it arrives.

On startup the device is probed for its identity with retries; an unresponsive
device is reported but not fatal, since spontaneous traffic may still arrive
once the device comes up. Keepalive sequence numbers are checked for gaps and
resets.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// buildHostStack creates the host-side stack with its endpoint handlers
// bound. The returned stack routes ButtonEvent and KeepAlive publishes to the
// given callbacks; onKeepAlive also receives any sequence anomaly.
func buildHostStack(down io.Writer, onButton func(filament.ButtonEvent), onKeepAlive func(filament.KeepAlive, error)) *filament.Stack {
	stack := filament.NewStack(filament.NetworkID, filament.NodeHost, func(frame []byte) error {
		_, err := down.Write(frame)
		return err
	})

	tracker := &filament.SeqTracker{}
	stack.Handle(filament.PortButton, func(_ filament.Address, payload cbor.RawMessage) (cbor.RawMessage, error) {
		var e filament.ButtonEvent
		if err := cbor.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		if onButton != nil {
			onButton(e)
		}
		return nil, nil
	})
	stack.Handle(filament.PortKeepAlive, func(_ filament.Address, payload cbor.RawMessage) (cbor.RawMessage, error) {
		var ka filament.KeepAlive
		if err := cbor.Unmarshal(payload, &ka); err != nil {
			return nil, err
		}
		if onKeepAlive != nil {
			onKeepAlive(ka, tracker.Check(ka.Seq))
		}
		return nil, nil
	})
	return stack
}

func runMonitor(cmd *cobra.Command, args []string) error {
	params, err := loadParams()
	if err != nil {
		return err
	}

	link, connInfo, err := OpenLink()
	if err != nil {
		return err
	}
	defer link.Close()

	logger := logging.New()

	down, err := link.Down(probe.ChannelMessagesDown)
	if err != nil {
		return fmt.Errorf("opening down channel: %w", err)
	}

	stack := buildHostStack(down,
		nil, // button publishes are printed via OnEnvelope like all traffic
		func(_ filament.KeepAlive, anomaly error) {
			if anomaly != nil {
				logger.Warn().Msg(anomaly.Error())
			}
		})

	fmt.Printf("Foclink - Device Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if params.cfg.Chip != "" {
		fmt.Printf("Chip: %s\n", params.cfg.Chip)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if params.cfg.ELF != "" {
		// TODO: decode defmt-encoded log streams using the ELF's symbol table;
		// until then the debug-log channel is displayed as plain text lines.
		logger.Debug().Str("elf", params.cfg.ELF).Msg("ELF given, displaying debug log as plain text")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := &host.Reader{
		Link:       link,
		Stack:      stack,
		Source:     params.source,
		OnLogLine:  func(line string) { fmt.Println(line) },
		OnEnvelope: func(env *filament.Envelope) { fmt.Println(filament.FormatEnvelope(env)) },
		Log:        logger,
	}

	// Probe for identity in the background; the streams flow regardless
	go func() {
		hs := &host.Handshake{Stack: stack, Log: logger}
		info, herr := hs.Run(ctx)
		switch {
		case herr == nil:
			logger.Info().Str("hw", info.HW).Str("sw", info.SW).Msg("device identified")
		case ctx.Err() != nil:
			// shutting down, nothing to report
		default:
			logger.Warn().Err(herr).Msg("device did not answer the handshake")
		}
	}()

	err = reader.Run(ctx)

	fmt.Printf("\nStats: %s\n", stack.Stats().Snapshot().Format())
	return err
}
