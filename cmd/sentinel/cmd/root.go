package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Safety and risk control engine for automated trading",
	Long: `Sentinel is the safety layer that sits between trading agents and the broker.

It provides:
  - A safety gate with hard daily limits and a loss circuit breaker
  - A portfolio risk engine scoring Greeks and concentration 0-100
  - Entry and exit risk evaluators layered on top of the hard limits
  - A reversal monitor that scores open positions and auto-closes the worst
  - A SQLite journal of trades, reversal checks and poor-signal samples`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Secrets (TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID) come from the
	// environment; a .env file is honored when present.
	_ = godotenv.Load()
}
