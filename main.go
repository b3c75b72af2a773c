// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Oxifoc Project
//
// Foclink - host-side tool for the Filament device messaging layer.

package main

import (
	"os"

	"github.com/oxifoc/foclink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
