package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantfold/gexengine/internal/backtest"
)

func backtestCmd() *cobra.Command {
	var withSignals bool

	cmd := &cobra.Command{
		Use:   "backtest <symbol>",
		Short: "Replay stored snapshots and report strategy performance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer syncLogger()
			symbol := args[0]

			snapshots, closeStore, err := buildSnapshotStore()
			if err != nil {
				return err
			}
			defer closeStore()

			engine := backtest.NewEngine(snapshots, buildWindow(), logger)
			summary, signals, err := engine.Run(cmd.Context(), symbol)
			if err != nil {
				return err
			}

			logger.Info("backtest complete",
				zap.String("symbol", symbol),
				zap.Int("trades", summary.TotalTrades),
				zap.Float64("winRate", summary.WinRate),
				zap.Float64("totalPnl", summary.TotalPnl),
			)

			out := map[string]any{"summary": summary}
			if withSignals {
				out["signals"] = signals
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().BoolVar(&withSignals, "signals", false, "include per-trade signals in the output")
	return cmd
}
