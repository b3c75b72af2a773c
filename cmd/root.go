// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Oxifoc Project

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Config file override
	cfgPath string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Probe / firmware selection flags
	probeSel string
	chipName string
	elfPath  string

	// Stream selection
	logSource string
)

var rootCmd = &cobra.Command{
	Use:   "foclink",
	Short: "Filament debug-link host tool",
	Long: `Foclink - host-side tool for the Filament device messaging layer.

Talks to a motor-controller board over its debug link, draining the raw
debug-log stream and the framed message stream concurrently, probing the
device for its identity, and watching keepalives and button events.

Connection modes:
  Serial:    --port /dev/ttyACM0 [--baud 115200]
  WebSocket: --url ws://host/probe [--username user]

A WebSocket link multiplexes the per-stream channels as separate connections
under the base URL. For WebSocket authentication, the password is read from
the FOCLINK_PASSWORD environment variable, or prompted interactively if not
set. The --password flag is intentionally not provided to avoid leaking
credentials in shell history.

Startup defaults may also come from a TOML config file (--config, the
FOCLINK_HOST_CONFIG environment variable, or ./foclink-host.toml).`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Host config file (TOML)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket base URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Probe / firmware selection flags
	rootCmd.PersistentFlags().StringVar(&probeSel, "probe", "", "Debug probe selector, e.g. 0483:374b[:serial]")
	rootCmd.PersistentFlags().StringVar(&chipName, "chip", "", "Target chip name, e.g. STM32G431CBTx")
	rootCmd.PersistentFlags().StringVar(&elfPath, "elf", "", "Firmware ELF for log decoding")

	rootCmd.PersistentFlags().StringVar(&logSource, "log-source", "auto", "Which up channels to drain: auto, messages or debug-log")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
