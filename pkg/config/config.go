// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

// Package config loads the optional host-side TOML configuration. It is read
// once at startup; the messaging core treats every field as a static
// parameter, never runtime-mutable state.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Configuration file locations, in priority order
const (
	EnvConfigPath = "FOCLINK_HOST_CONFIG"
	DefaultPath   = "foclink-host.toml"
)

// Host holds the optional startup overrides
type Host struct {
	Probe          string `toml:"probe"` // probe selector, e.g. "0483:374b" or "0483:374b:<serial>"
	Chip           string `toml:"chip"`  // e.g. "STM32G431CBTx"
	ELF            string `toml:"elf"`   // firmware ELF for log decoding
	StreamDebugLog *bool  `toml:"stream_debug_log"`
	StreamMessages *bool  `toml:"stream_messages"`
}

// DebugLogEnabled defaults to true when unset
func (h *Host) DebugLogEnabled() bool {
	return h.StreamDebugLog == nil || *h.StreamDebugLog
}

// MessagesEnabled defaults to true when unset
func (h *Host) MessagesEnabled() bool {
	return h.StreamMessages == nil || *h.StreamMessages
}

// Load reads the config from $FOCLINK_HOST_CONFIG, falling back to
// ./foclink-host.toml. No file at all is fine and yields an empty config;
// a file that exists but fails to parse is an error.
func Load() (*Host, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return FromPath(p)
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return FromPath(DefaultPath)
	}
	return &Host{}, nil
}

// FromPath reads and parses one TOML config file
func FromPath(path string) (*Host, error) {
	var h Host
	if _, err := toml.DecodeFile(path, &h); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return &h, nil
}
