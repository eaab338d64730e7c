package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/optryx/riskgate/broker"
	"github.com/optryx/riskgate/market"
	"github.com/optryx/riskgate/risk"
)

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Compute portfolio risk, optionally evaluating a candidate entry",
	Long: `Compute the current portfolio risk score from open positions and Greeks.

When --symbol is given, additionally run the entry evaluator against a
hypothetical signal and print the verdict.

Example:
  sentinel risk --symbol NVDA --type call --premium 350 --dte 14 --conviction 80`,
	RunE: runRisk,
}

var (
	riskConfigPath string
	riskSymbol     string
	riskType       string
	riskPremium    float64
	riskDTE        int
	riskConviction int
	riskIVRank     float64
)

func init() {
	rootCmd.AddCommand(riskCmd)

	riskCmd.Flags().StringVarP(&riskConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
	riskCmd.Flags().StringVar(&riskSymbol, "symbol", "", "underlying of a candidate entry to evaluate")
	riskCmd.Flags().StringVar(&riskType, "type", "call", "option type of the candidate (call|put)")
	riskCmd.Flags().Float64Var(&riskPremium, "premium", 0, "candidate premium per contract, cents")
	riskCmd.Flags().IntVar(&riskDTE, "dte", 0, "candidate days to expiration")
	riskCmd.Flags().IntVar(&riskConviction, "conviction", 0, "agent conviction 0-100")
	riskCmd.Flags().Float64Var(&riskIVRank, "iv-rank", -1, "IV rank of the underlying (negative when unknown)")
}

func runRisk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(riskConfigPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	bk, md := buildBroker(false)

	positions, err := bk.GetOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}
	equity, err := bk.GetAccountEquity(ctx)
	if err != nil {
		return fmt.Errorf("fetch equity: %w", err)
	}

	p := risk.CalculatePortfolio(positions, risk.AggregateGreeks(positions), equity, cfg.Risk)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	out := map[string]any{
		"risk_score":        p.RiskScore,
		"risk_level":        p.RiskLevel,
		"risk_capacity_pct": p.RiskCapacityPct,
		"can_add_positions": p.CanAddPositions,
		"net_delta":         p.NetDelta,
		"total_gamma":       p.TotalGamma,
		"daily_theta":       p.DailyTheta,
		"options_value":     p.OptionsValue,
		"equity":            p.Equity,
	}
	if riskSymbol == "" {
		return enc.Encode(out)
	}

	trend := market.Sideways
	if rs, ok := bk.(broker.RegimeSource); ok {
		if t, err := rs.MarketTrend(ctx); err == nil {
			trend = t
		}
	}
	ivRank := riskIVRank
	if ivRank < 0 {
		if r, err := md.IVRank(ctx, riskSymbol); err == nil {
			ivRank = r
		}
	}

	sig := risk.Signal{
		Symbol:     riskSymbol,
		OptionType: market.OptionType(riskType),
		Premium:    riskPremium,
		DTE:        riskDTE,
		IVRank:     ivRank,
		Conviction: riskConviction,
	}
	verdict := risk.EvaluateEntry(sig, p, trend, cfg.Risk)
	out["entry_verdict"] = verdict
	return enc.Encode(out)
}
