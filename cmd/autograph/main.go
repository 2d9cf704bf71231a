// Package main provides the offline autograph CLI: it extracts, validates, scans and
// dispatches automation graphs without the API server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dukex/autograph/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func newApp(stdin io.Reader, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:                  "autograph",
		Usage:                 "Inspect and dispatch n8n automation graphs",
		EnableShellCompletion: true,
		Reader:                stdin,
		Writer:                stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			NewExtractCommand(),
			NewValidateCommand(),
			NewScanCommand(),
			NewDispatchCommand(),
		},
	}
}

func main() {
	err := newApp(os.Stdin, os.Stdout).Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "autograph:", err)
		os.Exit(1)
	}
}
