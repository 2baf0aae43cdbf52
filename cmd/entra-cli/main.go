package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	usecases "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/application"
	"github.com/entra-mcp/entra-mcp/pkg/config"
	"github.com/entra-mcp/entra-mcp/pkg/fxapp"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var Version = "dev"

// errCommandFailed marks a command whose result was already printed.
var errCommandFailed = errors.New("command failed")

type options struct {
	json    bool
	dryRun  bool
	verbose bool
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "entra-cli <command...>",
		Short: "Create Entra ID application registrations from plain-language commands",
		Example: `  entra-cli Create an app called billing-api with User.Read.All to sync invoices
  entra-cli --json Register reporting-portal with Sites.Read.All`,
		Args:          cobra.MinimumNArgs(1),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), stdout, strings.Join(args, " "), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the directory plan without creating anything")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")
	return cmd
}

func run(ctx context.Context, stdout io.Writer, command string, opts options) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if !opts.verbose {
		cfg.LogLevel = "error"
	}

	var service *usecases.CommandService
	app := fxapp.NewCLI(cfg, fx.Populate(&service))
	if err := app.Err(); err != nil {
		return fmt.Errorf("failed to initialise: %w", err)
	}

	if opts.dryRun {
		plan, err := service.PlanCommand(ctx, command)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	}

	result := service.ProcessCommand(ctx, command)
	if opts.json {
		if err := renderJSON(stdout, result); err != nil {
			return err
		}
	} else {
		renderText(stdout, result)
	}
	if !result.Success() {
		return errCommandFailed
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errCommandFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
