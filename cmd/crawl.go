package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/app"
)

// newCrawlCmd runs one crawl pass followed by promotion.
func newCrawlCmd() *cobra.Command {
	var maxPages int
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl pass and promote new files",
		Long: `Resumes from the files already in durable storage, crawls the
configured seeds breadth-first, and promotes every new document. URLs left
queued by --max-pages or an interruption are saved in the staging directory
and crawled first by the next run. The run summary is printed as JSON.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-pages") {
				rt.cfg.Crawler.MaxPages = maxPages
			}
			return runCrawl(cmd, rt)
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "cap the URLs dispatched in this run; the rest carry over to the next run (0 = unlimited)")
	return cmd
}

func runCrawl(cmd *cobra.Command, rt *cliEnv) error {
	a, err := app.New(cmd.Context(), rt.cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	defer func() { _ = a.Close() }()

	summary, err := a.Pipeline().RunOnce(cmd.Context())
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(summary); encErr != nil {
		rt.logger.Warn("write run summary failed", zap.Error(encErr))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}
	rt.logger.Info("crawl command finished", zap.String("run_id", summary.RunID))
	return nil
}
