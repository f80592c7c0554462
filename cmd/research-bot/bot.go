package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mikeboe/research-bot/pkg/config"
	"github.com/mikeboe/research-bot/pkg/discord"
	"github.com/mikeboe/research-bot/pkg/research"
)

func newBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Serve the /research slash command on Discord",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.Load()
			rcfg := config.LoadResearch()

			engine, err := research.NewEngineFromConfig(ctx, cfg, rcfg, slog.Default())
			if err != nil {
				return err
			}
			bot, err := discord.New(cfg.DiscordToken, cfg.DiscordGuildID, cfg.ReportDir, engine, rcfg)
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return bot.Run(ctx) })
			if cfg.MetricsAddr != "" {
				g.Go(func() error { return serveMetrics(ctx, cfg.MetricsAddr) })
			}
			return g.Wait()
		},
	}
}

// serveMetrics exposes Prometheus metrics on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
