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
	"github.com/oxifoc/foclink/pkg/host"
	"github.com/oxifoc/foclink/pkg/probe"
)

var (
	infoAttempts int
	infoTimeout  time.Duration
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Query the device for its hardware and software identity",
	Long: `Send an info request to the device and print the response.

The request is retried with growing timeouts, so a device that boots after
the host is still caught. Exits non-zero if the device never answers.`,
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().IntVar(&infoAttempts, "attempts", host.DefaultMaxAttempts, "Maximum probe attempts")
	infoCmd.Flags().DurationVar(&infoTimeout, "timeout", host.DefaultInitialTimeout, "First attempt timeout (doubles per retry)")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	if _, err := loadParams(); err != nil {
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
	stack := buildHostStack(down, nil, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The reader must be draining the up channel for the response to land
	reader := &host.Reader{
		Link:      link,
		Stack:     stack,
		Source:    host.LogSourceMessages,
		OnLogLine: func(string) {},
		Log:       logger,
	}
	readerDone := make(chan struct{})
	rctx, rcancel := context.WithCancel(ctx)
	go func() {
		defer close(readerDone)
		if rerr := reader.Run(rctx); rerr != nil {
			logger.Warn().Err(rerr).Msg("reader stopped")
		}
	}()

	hs := &host.Handshake{
		Stack:          stack,
		InitialTimeout: infoTimeout,
		MaxAttempts:    infoAttempts,
		Log:            logger,
	}
	info, err := hs.Run(ctx)

	rcancel()
	<-readerDone

	if err != nil {
		return fmt.Errorf("device info (%s): %w", connInfo, err)
	}

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Hardware:   %s\n", info.HW)
	fmt.Printf("Software:   %s\n", info.SW)
	return nil
}
