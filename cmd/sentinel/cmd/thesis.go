package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/optryx/riskgate/market"
	"github.com/optryx/riskgate/risk"
)

var thesisCmd = &cobra.Command{
	Use:   "thesis",
	Short: "Manage per-position entry theses",
	Long: `Record or remove the thesis behind an open position.

A thesis is written at entry and consulted by exit-check; the monitor drops
it automatically when it auto-closes the position.`,
}

var thesisSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Record the thesis for a position",
	RunE:  runThesisSet,
}

var thesisRmCmd = &cobra.Command{
	Use:   "rm",
	Short: "Remove the thesis for a position",
	RunE:  runThesisRm,
}

var (
	thesisConfigPath   string
	thesisSymbol       string
	thesisTrend        string
	thesisConviction   int
	thesisEntryPrice   float64
	thesisCatalyst     string
	thesisCatalystDate string
)

func init() {
	rootCmd.AddCommand(thesisCmd)
	thesisCmd.AddCommand(thesisSetCmd, thesisRmCmd)

	thesisCmd.PersistentFlags().StringVarP(&thesisConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
	thesisCmd.PersistentFlags().StringVar(&thesisSymbol, "symbol", "", "position symbol the thesis belongs to")
	_ = thesisCmd.MarkPersistentFlagRequired("symbol")

	thesisSetCmd.Flags().StringVar(&thesisTrend, "trend", "bullish", "trend the thesis rests on (bullish|bearish|sideways)")
	thesisSetCmd.Flags().IntVar(&thesisConviction, "conviction", 0, "conviction at entry 0-100")
	thesisSetCmd.Flags().Float64Var(&thesisEntryPrice, "entry-price", 0, "entry price per unit")
	thesisSetCmd.Flags().StringVar(&thesisCatalyst, "catalyst", "", "expected catalyst, if any")
	thesisSetCmd.Flags().StringVar(&thesisCatalystDate, "catalyst-date", "", "catalyst date as YYYY-MM-DD")
}

func runThesisSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(thesisConfigPath)
	if err != nil {
		return err
	}

	trend := market.Trend(thesisTrend)
	switch trend {
	case market.Bullish, market.Bearish, market.Sideways:
	default:
		return fmt.Errorf("unknown trend %q", thesisTrend)
	}

	t := risk.Thesis{
		OriginalTrend:      trend,
		OriginalConviction: thesisConviction,
		EntryPrice:         thesisEntryPrice,
		EntryDate:          time.Now(),
		Catalyst:           thesisCatalyst,
	}
	if thesisCatalystDate != "" {
		d, err := time.Parse("2006-01-02", thesisCatalystDate)
		if err != nil {
			return fmt.Errorf("parse catalyst date: %w", err)
		}
		t.CatalystDate = d
	}

	store, err := risk.NewThesisStore(cfg.State.ThesisPath)
	if err != nil {
		return fmt.Errorf("open thesis store: %w", err)
	}
	if err := store.Put(thesisSymbol, t); err != nil {
		return err
	}
	fmt.Printf("thesis recorded for %s\n", thesisSymbol)
	return nil
}

func runThesisRm(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(thesisConfigPath)
	if err != nil {
		return err
	}
	store, err := risk.NewThesisStore(cfg.State.ThesisPath)
	if err != nil {
		return fmt.Errorf("open thesis store: %w", err)
	}
	if err := store.Delete(thesisSymbol); err != nil {
		return err
	}
	fmt.Printf("thesis removed for %s\n", thesisSymbol)
	return nil
}
