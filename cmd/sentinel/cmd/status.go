package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/optryx/riskgate/gate"
	"github.com/optryx/riskgate/notify"
	"github.com/optryx/riskgate/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the execution state snapshot",
	Long: `Print today's execution state as JSON: executions used and remaining,
open position count, daily P/L, consecutive losses and circuit breaker state.`,
	RunE: runStatus,
}

var statusConfigPath string

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(statusConfigPath)
	if err != nil {
		return err
	}

	store, err := state.NewStore(cfg.State.SnapshotPath)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	st := state.New(zap.NewNop(), cfg.Safety.ConsecutiveLossLimit, cfg.Safety.DailyLossLimit,
		cfg.Safety.CircuitBreakerDuration, state.WithStore(store))
	g := gate.New(zap.NewNop(), cfg.Safety, st, notify.Nop{})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(g.Snapshot())
}
