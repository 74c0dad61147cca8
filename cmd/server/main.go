package main

import (
	"context"
	"fmt"
	"net/http"

	"arena-tracker/internal/config"
	"arena-tracker/internal/constants"
	"arena-tracker/internal/feed"
	fxmodules "arena-tracker/internal/fx"
	"arena-tracker/internal/middleware"
	"arena-tracker/internal/server"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	apiServer *server.Server,
	coord *feed.Coordinator,
	cfg *config.Config,
	logger zerolog.Logger,
) {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := middleware.RequestID(logger)(c.Handler(apiServer.Routes()))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: handler,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Warm the cache so the first query doesn't pay for the
			// initial fetch. Startup proceeds even if the feed is down;
			// queries return 503 until it recovers.
			go func() {
				warmCtx, cancel := context.WithTimeout(context.Background(), constants.RequestTimeout)
				defer cancel()
				if _, _, _, err := coord.Snapshot(warmCtx); err != nil {
					logger.Warn().Err(err).Msg("initial feed load failed, serving 503 until feed recovers")
				}
			}()

			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			coord.Close()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
