package main

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantfold/gexengine/internal/gex"
	"github.com/quantfold/gexengine/internal/provider"
	"github.com/quantfold/gexengine/internal/signal"
)

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <symbol>",
		Short: "Fetch the live chain and print GEX metrics plus signals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer syncLogger()
			symbol := args[0]
			ctx := cmd.Context()
			now := time.Now()

			alertStore, closeStore, err := buildAlertStore()
			if err != nil {
				return err
			}
			defer closeStore()

			chains := buildProvider()
			calc := gex.NewCalculator(logger)
			generator := signal.NewGenerator(buildWindow(), alertStore, buildNotifier(), logger)

			ch, err := chains.GetOptionsChain(ctx, symbol)
			if err != nil && !errors.Is(err, provider.ErrNotFound) {
				logger.Warn("chain fetch failed", zap.String("symbol", symbol), zap.Error(err))
			}

			metrics, reason := calc.Compute(ch, now)
			if reason != gex.ReasonNone {
				logger.Warn("metrics degraded to safe default", zap.String("reason", string(reason)))
			}
			alerts := generator.Generate(ctx, ch, metrics, 0, now)

			out := map[string]any{
				"metrics": metrics,
				"alerts":  alerts,
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
