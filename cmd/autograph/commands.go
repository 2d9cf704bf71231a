package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dukex/autograph/pkg/apperr"
	"github.com/dukex/autograph/pkg/config"
	"github.com/dukex/autograph/pkg/dispatch"
	"github.com/dukex/autograph/pkg/extract"
	"github.com/dukex/autograph/pkg/log"
	"github.com/dukex/autograph/pkg/models"
	"github.com/dukex/autograph/pkg/validation"
	cli "github.com/urfave/cli/v3"
)

var errNoInput = errors.New("a file argument is required (use - for stdin)")

func securityPolicyFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "security-policy",
		Usage:   "Path to a YAML security policy (defaults to the built-in policy)",
		Sources: cli.EnvVars("SECURITY_POLICY_FILE"),
	}
}

func NewExtractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Print the first JSON object found in a model output",
		ArgsUsage: "<file>",
		Action: func(_ context.Context, command *cli.Command) error {
			text, err := readInput(command)
			if err != nil {
				return err
			}

			candidate, err := extract.Object(text)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(command.Root().Writer, candidate)

			return err
		},
	}
}

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Extract and validate an automation graph",
		ArgsUsage: "<file>",
		Action: func(_ context.Context, command *cli.Command) error {
			out := command.Root().Writer

			outcome, err := validateInput(command)
			if err != nil {
				printViolations(out, err)

				return err
			}

			printOutcome(out, outcome)

			return nil
		},
	}
}

func NewScanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Validate an automation graph and check it against the security policy",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{securityPolicyFlag()},
		Action: func(_ context.Context, command *cli.Command) error {
			out := command.Root().Writer

			scanner, err := config.ScannerFromFile(command.String("security-policy"))
			if err != nil {
				return err
			}

			outcome, err := validateInput(command)
			if err != nil {
				printViolations(out, err)

				return err
			}

			if outcome.IsRefusal() {
				printOutcome(out, outcome)

				return nil
			}

			result := scanner.Scan(outcome.Graph)
			if !result.Safe {
				for _, finding := range result.Findings {
					fmt.Fprintf(out, "  %s %s: %s\n", finding.Check, finding.Path, finding.Reason)
				}

				return apperr.New("scan", apperr.KindSecurityPolicy, result.Reason)
			}

			fmt.Fprintf(out, "safe: %s (%d nodes)\n", outcome.Graph.Name, len(outcome.Graph.Nodes))

			return nil
		},
	}
}

func NewDispatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "dispatch",
		Usage:     "Validate, scan and create an automation graph on an n8n instance",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "instance-url",
				Usage:    "Base URL of the n8n instance",
				Required: true,
				Sources:  cli.EnvVars("N8N_INSTANCE_URL"),
			},
			&cli.StringFlag{
				Name:     "api-key",
				Usage:    "n8n API key",
				Required: true,
				Sources:  cli.EnvVars("N8N_API_KEY"),
			},
			securityPolicyFlag(),
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			out := command.Root().Writer

			scanner, err := config.ScannerFromFile(command.String("security-policy"))
			if err != nil {
				return err
			}

			outcome, err := validateInput(command)
			if err != nil {
				printViolations(out, err)

				return err
			}

			if outcome.IsRefusal() {
				return apperr.New("dispatch", apperr.KindInput, "a refusal cannot be dispatched: "+outcome.Refusal.Reason)
			}

			if _, err := scanner.Check(outcome.Graph); err != nil {
				printViolations(out, err)

				return err
			}

			result, err := dispatch.New(log.WithModule("dispatch")).Dispatch(ctx, dispatch.Request{
				InstanceURL: command.String("instance-url"),
				APIKey:      command.String("api-key"),
				Graph:       outcome.Graph,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "dispatched: %s (engine id %s)\n", outcome.Graph.Name, result.EngineID)

			return nil
		},
	}
}

func readInput(command *cli.Command) (string, error) {
	path := command.Args().First()

	switch path {
	case "":
		return "", errNoInput
	case "-":
		data, err := io.ReadAll(command.Root().Reader)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}

		return string(data), nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}

		return string(data), nil
	}
}

func validateInput(command *cli.Command) (validation.Outcome, error) {
	text, err := readInput(command)
	if err != nil {
		return validation.Outcome{}, err
	}

	candidate, err := extract.Object(text)
	if err != nil {
		return validation.Outcome{}, err
	}

	return validation.Default().Validate(candidate)
}

func printOutcome(out io.Writer, outcome validation.Outcome) {
	if outcome.IsRefusal() {
		fmt.Fprintf(out, "refusal: %s\n", outcome.Refusal.Reason)

		return
	}

	fmt.Fprintf(out, "valid: %s (%d nodes)\n", outcome.Graph.Name, len(outcome.Graph.Nodes))
	printNodes(out, outcome.Graph)
}

func printNodes(out io.Writer, graph *models.AutomationGraph) {
	for _, node := range graph.Nodes {
		fmt.Fprintf(out, "  %s (%s)\n", node.Name, node.Type)
	}
}

func printViolations(out io.Writer, err error) {
	for _, violation := range apperr.ViolationsOf(err) {
		fmt.Fprintf(out, "  %s\n", violation)
	}
}
