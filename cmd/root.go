// Package cmd defines the CLI commands of the mini-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/config"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/logging"
)

type envKeyType struct{}

// cliEnv is what PersistentPreRunE hands to every subcommand.
type cliEnv struct {
	cfg    config.Config
	logger *zap.Logger
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "mini-crawler",
		Short: "Crawler feeding the MiNI department chatbot.",
		Long: `mini-crawler walks the MiNI faculty website breadth-first, stores HTML,
PDF and DOCX documents with their provenance, and promotes new files into
durable storage for the chatbot ingestion pipeline.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), envKeyType{}, &cliEnv{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, err := resolveEnv(cmd.Context()); err == nil {
				logging.Sync(rt.logger)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (MINI_* env vars override it)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newScheduleCmd())
	cmd.AddCommand(newCorpusCmd())
	return cmd
}

func resolveEnv(ctx context.Context) (*cliEnv, error) {
	rt, ok := ctx.Value(envKeyType{}).(*cliEnv)
	if !ok || rt == nil {
		return nil, errors.New("configuration not loaded")
	}
	return rt, nil
}

// Execute runs the root command until it returns or the process is
// signalled.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "mini-crawler:", err)
		stop()
		os.Exit(1)
	}
}
