package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/optryx/riskgate/broker"
	"github.com/optryx/riskgate/broker/sim"
	"github.com/optryx/riskgate/config"
	"github.com/optryx/riskgate/gate"
	"github.com/optryx/riskgate/journal"
	"github.com/optryx/riskgate/market"
	"github.com/optryx/riskgate/monitor"
	"github.com/optryx/riskgate/notify"
	"github.com/optryx/riskgate/risk"
	"github.com/optryx/riskgate/state"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the periodic monitoring loop",
	Long: `Run the reversal monitor on its polling cadence until interrupted.

The loop fetches open positions from the broker, scores each against its
daily bars, raises alerts past the alert threshold and auto-closes positions
past the auto-close threshold, subject to min-hold and the daily exit cap.

The binary ships with the in-memory sim broker wired for dry runs (--demo
seeds it with a deteriorating position); a live deployment supplies its own
broker behind the same interfaces.

Example:
  sentinel run -f sentinel.yaml --demo`,
	RunE: runRun,
}

var (
	runConfigPath  string
	runOverlayPath string
	runForce       bool
	runDemo        bool
	runMetricsAddr string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
	runCmd.Flags().StringVar(&runOverlayPath, "overlay", "data/runtime.json", "runtime overlay path")
	runCmd.Flags().BoolVar(&runForce, "force", false, "run passes even outside market hours")
	runCmd.Flags().BoolVar(&runDemo, "demo", false, "seed the sim broker with a demo position")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", ":9105", "prometheus metrics listen address (empty to disable)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(runConfigPath)
	if err != nil {
		return err
	}
	overlay, err := config.LoadOverlay(runOverlayPath)
	if err != nil {
		return err
	}
	cfg.Monitor = overlay.Apply(cfg.Monitor)

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	store, err := state.NewStore(cfg.State.SnapshotPath)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	st := state.New(log, cfg.Safety.ConsecutiveLossLimit, cfg.Safety.DailyLossLimit,
		cfg.Safety.CircuitBreakerDuration, state.WithStore(store))

	notifier := buildNotifier(log, cfg.Notify)
	g := gate.New(log, cfg.Safety, st, notifier)

	jnl, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jnl.Close()

	theses, err := risk.NewThesisStore(cfg.State.ThesisPath)
	if err != nil {
		return fmt.Errorf("open thesis store: %w", err)
	}

	bk, md := buildBroker(runDemo)
	mon := monitor.New(log, cfg.Monitor, g, bk, md, jnl, notifier, st,
		monitor.WithThesisStore(theses))

	if runMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(runMetricsAddr, mux); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		log.Info("metrics listening", zap.String("addr", runMetricsAddr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("monitor loop starting",
		zap.Duration("poll_interval", cfg.Monitor.PollInterval),
		zap.Bool("auto_close", cfg.Monitor.AutoCloseEnabled),
		zap.Int("auto_close_threshold", cfg.Monitor.AutoCloseThreshold))

	ticker := time.NewTicker(cfg.Monitor.PollInterval)
	defer ticker.Stop()

	for {
		if err := mon.RunPass(ctx, runForce); err != nil {
			log.Error("monitor pass failed", zap.Error(err))
		}
		if err := recordEquity(ctx, bk, jnl); err != nil {
			log.Warn("equity snapshot failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func buildNotifier(log *zap.Logger, cfg config.NotifyConfig) notify.Notifier {
	token := cfg.BotToken
	chatID := cfg.ChatID
	if token == "" {
		token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if chatID == "" {
		chatID = os.Getenv("TELEGRAM_CHAT_ID")
	}
	if token == "" || chatID == "" {
		log.Info("telegram not configured, alerts disabled")
		return notify.Nop{}
	}
	return notify.NewTelegram(log, token, chatID)
}

// buildBroker returns the broker and market-data collaborators. Only the sim
// is wired in this binary; live brokers plug in behind the same interfaces.
func buildBroker(demo bool) (broker.Broker, broker.MarketData) {
	s := sim.New(100000)
	if demo {
		seedDemo(s)
	}
	return s, s
}

// seedDemo installs one position with a deteriorating bar history so a dry
// run exercises the alert and auto-close paths end to end.
func seedDemo(s *sim.Sim) {
	now := time.Now()
	bars := make([]market.Candle, 30)
	price := 110.0
	for i := range bars {
		if i >= 20 {
			price -= 1.5 // the slide begins
		}
		bars[i] = market.Candle{
			Open:   price + 0.5,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Time:   now.AddDate(0, 0, i-30),
			Volume: 1e6,
		}
	}
	bars[29].Volume = 2.5e6

	s.AddPosition(market.Position{
		Symbol:       "DEMO",
		Qty:          10,
		EntryPrice:   108,
		CurrentPrice: price,
		EntryTime:    now.AddDate(0, 0, -6),
	})
	s.SetBars("DEMO", bars)
}

func recordEquity(ctx context.Context, bk broker.Broker, jnl journal.Journal) error {
	equity, err := bk.GetAccountEquity(ctx)
	if err != nil {
		return err
	}
	return jnl.RecordEquity(journal.EquitySnapshot{Time: time.Now(), Equity: equity})
}
