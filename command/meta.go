// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

// Package command holds the mural CLI commands.
package command

import (
	"flag"
	"os"

	"github.com/fatih/color"
	"github.com/hashicorp/cli"
	"github.com/mitchellh/colorstring"
	"github.com/posener/complete"
	"golang.org/x/crypto/ssh/terminal"
)

// Meta contains the meta-options and functionality that every mural command
// inherits.
type Meta struct {
	Ui cli.Ui

	// Whether to not-colorize output
	noColor bool

	// Whether to force colorized output
	forceColor bool
}

// FlagSet returns a FlagSet with the common flags that every command
// implements.
func (m *Meta) FlagSet(n string) *flag.FlagSet {
	f := flag.NewFlagSet(n, flag.ContinueOnError)
	f.BoolVar(&m.noColor, "no-color", false, "")
	f.BoolVar(&m.forceColor, "force-color", false, "")
	return f
}

// AutocompleteFlags returns the flag completions shared by every command.
func (m *Meta) AutocompleteFlags() complete.Flags {
	return complete.Flags{
		"-no-color":    complete.PredictNothing,
		"-force-color": complete.PredictNothing,
	}
}

// Colorize returns a colorizer honoring the color flags and whether stdout
// is a terminal.
func (m *Meta) Colorize() *colorstring.Colorize {
	_, coloredUi := m.Ui.(*cli.ColoredUi)

	stdoutIsTTY := terminal.IsTerminal(int(os.Stdout.Fd()))
	disable := m.noColor || (!stdoutIsTTY && !m.forceColor) || color.NoColor

	return &colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: disable && !coloredUi,
		Reset:   true,
	}
}
