package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/optryx/riskgate/broker"
	"github.com/optryx/riskgate/market"
	"github.com/optryx/riskgate/risk"
)

var exitCmd = &cobra.Command{
	Use:   "exit-check",
	Short: "Evaluate whether an open position should be closed",
	Long: `Run the exit evaluator against one open position and print the verdict.

The recorded thesis is loaded from the thesis store, current conviction comes
from the agent when one is wired (falling back to the conviction recorded at
entry), and the verdict weighs profit/stop triggers, thesis validity,
conviction decay, gamma risk and concentration.

Example:
  sentinel exit-check --symbol DEMO --demo`,
	RunE: runExitCheck,
}

var (
	exitConfigPath string
	exitSymbol     string
	exitConviction int
	exitDemo       bool
)

func init() {
	rootCmd.AddCommand(exitCmd)

	exitCmd.Flags().StringVarP(&exitConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
	exitCmd.Flags().StringVar(&exitSymbol, "symbol", "", "symbol or underlying of the open position")
	exitCmd.Flags().IntVar(&exitConviction, "conviction", -1, "override current conviction 0-100 (negative to resolve from the agent)")
	exitCmd.Flags().BoolVar(&exitDemo, "demo", false, "seed the sim broker with a demo position")
	_ = exitCmd.MarkFlagRequired("symbol")
}

func runExitCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(exitConfigPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	bk, _ := buildBroker(exitDemo)

	positions, err := bk.GetOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}
	var pos market.Position
	found := false
	for _, p := range positions {
		if p.Symbol == exitSymbol || p.Underlying() == exitSymbol {
			pos = p
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("no open position matches %q", exitSymbol)
	}

	equity, err := bk.GetAccountEquity(ctx)
	if err != nil {
		return fmt.Errorf("fetch equity: %w", err)
	}
	portfolio := risk.CalculatePortfolio(positions, risk.AggregateGreeks(positions), equity, cfg.Risk)

	theses, err := risk.NewThesisStore(cfg.State.ThesisPath)
	if err != nil {
		return fmt.Errorf("open thesis store: %w", err)
	}
	thesis, hasThesis := theses.Get(pos.Symbol)

	conviction := exitConviction
	if conviction < 0 {
		conviction = thesis.OriginalConviction
		if ag, ok := bk.(broker.Agent); ok {
			if c, err := ag.Conviction(ctx, pos.Underlying()); err == nil {
				conviction = c
			}
		}
	}

	trend := market.Sideways
	if rs, ok := bk.(broker.RegimeSource); ok {
		if t, err := rs.MarketTrend(ctx); err == nil {
			trend = t
		}
	}

	verdict := risk.EvaluateExit(risk.ExitInput{
		Position:          pos,
		CurrentPnLPct:     pos.PnLPct(),
		CurrentConviction: conviction,
		Thesis:            thesis,
		MarketTrend:       trend,
		Portfolio:         portfolio,
		Now:               time.Now(),
	}, cfg.Exit)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"symbol":       pos.Symbol,
		"pnl_pct":      pos.PnLPct(),
		"dte":          pos.DTE(time.Now()),
		"days_held":    pos.DaysHeld(time.Now()),
		"thesis_found": hasThesis,
		"market_trend": trend,
		"conviction":   conviction,
		"verdict":      verdict,
	})
}
