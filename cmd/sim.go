// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Oxifoc Project

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oxifoc/foclink/internal/logging"
	"github.com/oxifoc/foclink/pkg/device"
	"github.com/oxifoc/foclink/pkg/filament"
	"github.com/oxifoc/foclink/pkg/host"
	"github.com/oxifoc/foclink/pkg/probe"
)

var (
	simDuration        time.Duration
	simKeepAlivePeriod time.Duration
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run a simulated device over an in-memory link",
	Long: `Run the full host pipeline against an in-process simulated device.

The simulator runs the same task set as the firmware (log emitter, info
responder, gated keepalives, button classifier) over an in-memory loopback
link, and scripts a sequence of button presses: a single click, a double
click, and a hold. Useful for demos and for exercising the pipeline without
hardware.`,
	RunE: runSim,
}

func init() {
	simCmd.Flags().DurationVar(&simDuration, "duration", 10*time.Second, "How long to run")
	simCmd.Flags().DurationVar(&simKeepAlivePeriod, "keepalive-period", time.Second, "Device keepalive period")
	rootCmd.AddCommand(simCmd)
}

// pressScript plays the demo button sequence once
func pressScript(ctx context.Context, edges chan<- device.Edge) {
	pause := func(d time.Duration) bool {
		select {
		case <-time.After(d):
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !pause(time.Second) {
		return
	}
	device.Press(ctx, edges, 50*time.Millisecond) // single click

	if !pause(time.Second) {
		return
	}
	device.Press(ctx, edges, 50*time.Millisecond) // double click
	if !pause(100 * time.Millisecond) {
		return
	}
	device.Press(ctx, edges, 50*time.Millisecond)

	if !pause(time.Second) {
		return
	}
	device.Press(ctx, edges, 1200*time.Millisecond) // hold
}

func runSim(cmd *cobra.Command, args []string) error {
	logger := logging.New()

	loop := probe.NewLoopback()
	link, err := loop.Host()
	if err != nil {
		return err
	}
	defer link.Close()

	dev := device.New(device.Config{
		Info:            filament.DeviceInfo{HW: "B-G431B-ESC1", SW: "0.1.0-sim"},
		KeepAlivePeriod: simKeepAlivePeriod,
		Up:              loop.DeviceUp(),
		Down:            loop.DeviceDown(),
		DebugLog:        loop.DeviceLog(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, simDuration)
	defer cancel()

	edges := make(chan device.Edge)
	go dev.Run(ctx, edges)
	go pressScript(ctx, edges)

	down, err := link.Down(probe.ChannelMessagesDown)
	if err != nil {
		return err
	}
	stack := buildHostStack(down, nil, func(_ filament.KeepAlive, anomaly error) {
		if anomaly != nil {
			logger.Warn().Msg(anomaly.Error())
		}
	})

	fmt.Printf("Foclink - Simulated Device\n")
	fmt.Printf("Running for %v (Ctrl+C to stop early)\n\n", simDuration)

	go func() {
		hs := &host.Handshake{Stack: stack, Log: logger}
		info, herr := hs.Run(ctx)
		if herr != nil {
			logger.Error().Err(herr).Msg("simulated device did not answer; this is a bug")
			return
		}
		logger.Info().Str("hw", info.HW).Str("sw", info.SW).Msg("device identified")
	}()

	reader := &host.Reader{
		Link:       link,
		Stack:      stack,
		Source:     host.LogSourceAuto,
		OnLogLine:  func(line string) { fmt.Println(line) },
		OnEnvelope: func(env *filament.Envelope) { fmt.Println(filament.FormatEnvelope(env)) },
		Log:        logger,
	}
	err = reader.Run(ctx)

	fmt.Printf("\nStats: %s\n", stack.Stats().Snapshot().Format())
	return err
}
