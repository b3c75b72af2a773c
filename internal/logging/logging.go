// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Oxifoc Project

// Package logging builds the process-wide console logger.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Environment overrides
const (
	EnvLogLevel   = "FOCLINK_LOG_LEVEL"
	EnvLogNoColor = "FOCLINK_LOG_NOCOLOR"
)

// New returns a console logger honoring the environment overrides
func New() zerolog.Logger {
	level := zerolog.InfoLevel
	if s := os.Getenv(EnvLogLevel); s != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(s)); err == nil {
			level = parsed
		}
	}

	w := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		NoColor:    os.Getenv(EnvLogNoColor) != "",
		TimeFormat: "15:04:05.000",
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
