// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Oxifoc Project

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/oxifoc/foclink/pkg/config"
	"github.com/oxifoc/foclink/pkg/host"
	"github.com/oxifoc/foclink/pkg/probe"
)

// hostParams is the merged startup configuration: config file values with
// command-line flags layered on top.
type hostParams struct {
	cfg    *config.Host
	source host.LogSource
}

// loadParams loads the config file and applies flag overrides
func loadParams() (*hostParams, error) {
	var cfg *config.Host
	var err error
	if cfgPath != "" {
		cfg, err = config.FromPath(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if probeSel != "" {
		cfg.Probe = probeSel
	}
	if chipName != "" {
		cfg.Chip = chipName
	}
	if elfPath != "" {
		cfg.ELF = elfPath
	}

	source, err := host.ParseLogSource(logSource)
	if err != nil {
		return nil, err
	}
	// Stream switches in the config narrow the auto selection
	if source == host.LogSourceAuto {
		switch {
		case !cfg.DebugLogEnabled() && !cfg.MessagesEnabled():
			return nil, fmt.Errorf("config disables both streams")
		case !cfg.DebugLogEnabled():
			source = host.LogSourceMessages
		case !cfg.MessagesEnabled():
			source = host.LogSourceDebugLog
		}
	}

	return &hostParams{cfg: cfg, source: source}, nil
}

// GetPassword retrieves the WebSocket password from the environment or
// prompts the user.
func GetPassword() (string, error) {
	if pw := os.Getenv("FOCLINK_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenLink opens either a serial or WebSocket probe link based on flags
func OpenLink() (probe.Link, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		link, err := probe.OpenWebSocketLink(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return link, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		link, err := probe.OpenSerialLink(portName, baudRate)
		if err != nil {
			return nil, "", err
		}
		return link, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}
