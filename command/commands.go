// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"os"

	"github.com/hashicorp/cli"
	colorable "github.com/mattn/go-colorable"
	"github.com/muralhq/mural/command/agent"
	"github.com/muralhq/mural/version"
)

const (
	// EnvMuralCLINoColor is an env var that toggles colored UI output.
	EnvMuralCLINoColor = `MURAL_CLI_NO_COLOR`

	// EnvMuralCLIForceColor is an env var that forces colored UI output.
	EnvMuralCLIForceColor = `MURAL_CLI_FORCE_COLOR`
)

// Commands returns the mapping of CLI commands for mural. The meta
// parameter lets you set meta options for all commands.
func Commands(metaPtr *Meta, agentUi cli.Ui) map[string]cli.CommandFactory {
	if metaPtr == nil {
		metaPtr = new(Meta)
	}

	meta := *metaPtr
	if meta.Ui == nil {
		meta.Ui = &cli.BasicUi{
			Reader:      os.Stdin,
			Writer:      colorable.NewColorableStdout(),
			ErrorWriter: colorable.NewColorableStderr(),
		}
	}
	if _, ok := os.LookupEnv(EnvMuralCLINoColor); ok {
		meta.noColor = true
	}
	if _, ok := os.LookupEnv(EnvMuralCLIForceColor); ok {
		meta.forceColor = true
	}

	all := map[string]cli.CommandFactory{
		"agent": func() (cli.Command, error) {
			return &agent.Command{
				Ui: agentUi,
			}, nil
		},
		"version": func() (cli.Command, error) {
			return &VersionCommand{
				Version: version.GetVersion(),
				Ui:      meta.Ui,
			}, nil
		},
	}

	return all
}
