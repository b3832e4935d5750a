package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantfold/gexengine/internal/backtest"
	"github.com/quantfold/gexengine/internal/gex"
	"github.com/quantfold/gexengine/internal/server"
	"github.com/quantfold/gexengine/internal/signal"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer syncLogger()
			ctx := cmd.Context()

			alertStore, closeAlerts, err := buildAlertStore()
			if err != nil {
				return err
			}
			defer closeAlerts()

			snapshots, closeSnapshots, err := buildSnapshotStore()
			if err != nil {
				return err
			}
			defer closeSnapshots()

			window := buildWindow()
			calc := gex.NewCalculator(logger)
			generator := signal.NewGenerator(window, alertStore, buildNotifier(), logger)
			engine := backtest.NewEngine(snapshots, window, logger)

			srv := server.NewServer(buildProvider(), calc, generator, engine, alertStore, window, logger)
			router := server.NewRouter(srv, logger)

			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("http server listening", zap.String("addr", addr))
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			}
		},
	}
}
