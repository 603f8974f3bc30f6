// Package cli builds the command line of the two service binaries.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/golovatskygroup/mcp-atlassian/internal/config"
	"github.com/golovatskygroup/mcp-atlassian/internal/logging"
	"github.com/golovatskygroup/mcp-atlassian/internal/server"
)

// Version is reported in the MCP handshake and by --version.
const Version = "1.0.0"

// Service describes one MCP server binary.
type Service struct {
	Name  string
	Short string
	// Build wires the tool catalog. It must not contact the remote service; the
	// session is established on the first tool call.
	Build func(cfg config.Config, log zerolog.Logger) (server.Catalog, error)
}

type options struct {
	configPath string
	envFile    string
	logLevel   string
}

// NewRootCommand returns the root command serving svc over stdin/stdout.
func NewRootCommand(svc Service) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   svc.Name,
		Short: svc.Short,
		Long: fmt.Sprintf(`%s is a Model Context Protocol server speaking JSON-RPC over stdio.

Credentials are read from the environment when the first tool is called.
Stdout carries the protocol; logs go to stderr.`, svc.Name),
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, svc, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to YAML config file")
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "Path to a KEY=VALUE file loaded into the environment (existing variables win)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level: trace|debug|info|warn|error (overrides config)")
	return cmd
}

func run(cmd *cobra.Command, svc Service, opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	log := logging.New(cmd.ErrOrStderr(), svc.Name, cfg.Log.Level, cfg.Log.Format)

	loaded, err := config.LoadEnvFile(opts.envFile)
	if err != nil {
		return fmt.Errorf("load env file %s: %w", opts.envFile, err)
	}
	if loaded {
		log.Debug().Str("path", opts.envFile).Msg("loaded env file")
	}

	catalog, err := svc.Build(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(server.Info{Name: svc.Name, Version: Version}, catalog, cmd.InOrStdin(), cmd.OutOrStdout(), log).Run(ctx)
}

// Execute runs the root command for svc and exits non-zero on failure.
func Execute(svc Service) {
	if err := execute(context.Background(), svc, os.Args[1:], os.Stderr); err != nil {
		os.Exit(1)
	}
}

func execute(ctx context.Context, svc Service, args []string, stderr io.Writer) error {
	cmd := NewRootCommand(svc)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", svc.Name, err)
		return err
	}
	return nil
}
