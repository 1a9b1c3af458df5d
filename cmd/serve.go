package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"qrshield/internal/api"
	"qrshield/internal/api/handler/v1handler"
	"qrshield/internal/config"
	"qrshield/pkg/logger"
	"qrshield/pkg/metrics"
	"qrshield/pkg/ratelimit"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func setupServer(ctx context.Context, cfg *config.Config, deps api.Deps) func(ctx context.Context) {
	server, err := api.NewServer(deps, api.NewOptions(cfg))
	if err != nil {
		logger.Fatal(ctx, "could not create webserver", zap.Error(err))
	}

	go func() {
		logger.Info(ctx, "starting webserver...", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "could not start webserver", zap.Error(err))
			}
		}
	}()

	return func(ctx context.Context) {
		logger.Info(ctx, "stopping webserver...")
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(ctx, "could not stop webserver", zap.Error(err))
		}
	}
}

func serveCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the API server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mp, err := metrics.NewMeterProvider(prometheus.DefaultRegisterer)
			if err != nil {
				logger.Fatal(ctx, "could not create meter provider", zap.Error(err))
			}
			otel.SetMeterProvider(mp)

			eng, err := newEngine(ctx, cfg, mp)
			if err != nil {
				logger.Fatal(ctx, "could not create analyzer", zap.Error(err))
			}
			defer eng.Close()

			if cfg.Lists.ShortenersPath != "" && cfg.Lists.ReloadInterval > 0 {
				go reloadLists(ctx, eng.Shorteners, cfg.Lists.ReloadInterval)
			}

			deps := api.Deps{Deps: v1handler.Deps{Analyzer: eng.Analyzer}}
			if cfg.RateLimit.Enabled {
				deps.Limiter = ratelimit.New(ratelimit.Options{
					Limit:  cfg.RateLimit.Limit,
					Window: cfg.RateLimit.Window,
				})
			}

			stopWebserver := setupServer(ctx, cfg, deps)

			// wait for interrupt
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
			defer cancel()

			stopWebserver(shutdownCtx)
			if err := mp.Shutdown(shutdownCtx); err != nil {
				logger.Warn(shutdownCtx, "could not stop meter provider", zap.Error(err))
			}
		},
	}

	return cmd
}
