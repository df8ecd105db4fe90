// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/cli"
	colorable "github.com/mattn/go-colorable"
	"github.com/muralhq/mural/command"
	"github.com/muralhq/mural/version"
)

func main() {
	os.Exit(Run(os.Args[1:]))
}

// Run runs the CLI with the given arguments.
func Run(args []string) int {
	metaPtr := new(command.Meta)

	// The agent command streams its own output; everything else goes
	// through the shared UI.
	agentUi := &cli.BasicUi{
		Reader:      os.Stdin,
		Writer:      colorable.NewColorableStdout(),
		ErrorWriter: colorable.NewColorableStderr(),
	}

	commands := command.Commands(metaPtr, agentUi)
	cliRunner := &cli.CLI{
		Name:     "mural",
		Version:  version.GetVersion().FullVersionNumber(true),
		Args:     args,
		Commands: commands,

		Autocomplete: true,
	}

	exitCode, err := cliRunner.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing CLI: %s\n", err.Error())
		return 1
	}

	return exitCode
}
