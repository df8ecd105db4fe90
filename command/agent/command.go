// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hashicorp/cli"
	"github.com/hashicorp/go-hclog"
	"github.com/muralhq/mural/version"
	"github.com/posener/complete"
)

// Command is the "mural agent" CLI command: load config from the
// environment, wire the agent, serve HTTP until signalled.
type Command struct {
	Ui cli.Ui
}

func (c *Command) Help() string {
	helpText := `
Usage: mural agent

  Starts the mural coordinator. All configuration is read from the
  environment; see the project README for the full list of variables.
  The process runs until SIGINT or SIGTERM.
`
	return strings.TrimSpace(helpText)
}

func (c *Command) Synopsis() string {
	return "Run the mural coordinator agent"
}

func (c *Command) AutocompleteFlags() complete.Flags {
	return nil
}

func (c *Command) AutocompleteArgs() complete.Predictor {
	return complete.PredictNothing
}

func (c *Command) Run(args []string) int {
	if len(args) > 0 {
		c.Ui.Error("agent takes no arguments; configuration is environment driven")
		return 1
	}

	config, err := LoadConfig(nil)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Failed to read configuration: %s", err))
		return 1
	}
	if err := config.Validate(); err != nil {
		c.Ui.Error(fmt.Sprintf("Invalid configuration: %s", err))
		return 1
	}

	logger := hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:       "mural",
		Level:      hclog.LevelFromString(config.LogLevel),
		Output:     os.Stderr,
		JSONFormat: false,
	})

	logger.Info("starting mural agent", "version", version.GetVersion().VersionNumber())

	agent, err := NewAgent(config, logger)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Failed to start agent: %s", err))
		return 1
	}
	defer agent.Shutdown()

	srv, err := NewHTTPServer(agent, config)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Failed to start HTTP server: %s", err))
		return 1
	}
	defer srv.Shutdown()

	logger.Info("mural agent started", "http", srv.Addr)
	c.Ui.Output(fmt.Sprintf("Mural agent started! Listening on %s", srv.Addr))

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	sig := <-signalCh

	logger.Info("caught signal, shutting down", "signal", sig.String())
	return 0
}
