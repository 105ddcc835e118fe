package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

var version = "dev"

func app() *cli.Command {
	return &cli.Command{
		Name:    "vmjobs",
		Version: version,
		Usage:   "Vector model action service with durable background jobs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				Sources: cli.EnvVars("VMJOBS_CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error); overrides log.level",
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			versionCmd(),
		},
	}
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the version",
		Action: func(_ context.Context, cmd *cli.Command) error {
			_, err := fmt.Fprintln(cmd.Root().Writer, version)
			return err
		},
	}
}
