package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/api"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/app"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/crawler"
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/trigger"
)

const shutdownTimeout = 10 * time.Second

// newScheduleCmd runs the pipeline periodically next to the operator server.
func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Crawl now and then on every schedule interval",
		Long: `Runs the crawl pipeline immediately and then once per
schedule.interval until interrupted. When server.enabled is set, the operator
HTTP server (health, metrics, run history, manual trigger) listens on
server.port.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			return runSchedule(cmd.Context(), rt)
		},
	}
}

func runSchedule(ctx context.Context, rt *cliEnv) error {
	a, err := app.New(ctx, rt.cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	defer func() { _ = a.Close() }()
	logger := rt.logger

	var srv *http.Server
	if rt.cfg.Server.Enabled {
		srv = &http.Server{
			Addr:              ":" + strconv.Itoa(rt.cfg.Server.Port),
			Handler:           api.NewServer(ctx, a.Pipeline(), a.Runs(), rt.cfg.Auth, logger).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("http server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", zap.Error(err))
			}
		}()
	}

	pipeline := a.Pipeline()
	t := &trigger.Trigger{
		Interval: rt.cfg.Schedule.Interval,
		Logger:   logger,
		Job: func(ctx context.Context) error {
			_, err := pipeline.RunOnce(ctx)
			if errors.Is(err, crawler.ErrRunInProgress) {
				logger.Info("scheduled run skipped, another run is active")
				return nil
			}
			return err
		},
	}
	runErr := t.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown failed", zap.Error(err))
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("schedule loop: %w", runErr)
	}
	logger.Info("schedule command finished")
	return nil
}
