package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration. Every tunable is enumerated
// here with a documented default and validated at startup.
type Config struct {
	Safety  SafetyConfig  `json:"safety" yaml:"safety"`
	Risk    RiskConfig    `json:"risk" yaml:"risk"`
	Exit    ExitConfig    `json:"exit" yaml:"exit"`
	Monitor MonitorConfig `json:"monitor" yaml:"monitor"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Notify  NotifyConfig  `json:"notify" yaml:"notify"`
	State   StateConfig   `json:"state" yaml:"state"`
}

// SafetyConfig holds the hard limits enforced by the safety gate. These can
// never be overridden by an agent's conviction.
type SafetyConfig struct {
	ShadowMode           bool    `json:"shadow_mode" yaml:"shadow_mode"`
	MaxExecutionsPerDay  int     `json:"max_executions_per_day" yaml:"max_executions_per_day"`
	MaxPositions         int     `json:"max_positions" yaml:"max_positions"`
	MaxSpreadPct         float64 `json:"max_spread_pct" yaml:"max_spread_pct"`
	ExitSpreadWarnPct    float64 `json:"exit_spread_warn_pct" yaml:"exit_spread_warn_pct"`
	EarningsBlackoutDays int     `json:"earnings_blackout_days" yaml:"earnings_blackout_days"`

	// Circuit breaker tuning. DailyLossLimit is an absolute currency amount;
	// whether it should scale with equity is an owner decision, so it is a
	// plain tunable here rather than derived arithmetic.
	ConsecutiveLossLimit   int           `json:"consecutive_loss_limit" yaml:"consecutive_loss_limit"`
	DailyLossLimit         float64       `json:"daily_loss_limit" yaml:"daily_loss_limit"`
	CircuitBreakerDuration time.Duration `json:"circuit_breaker_duration" yaml:"circuit_breaker_duration"`
}

// RiskConfig holds the soft, risk-based limits consumed by the portfolio risk
// engine and the entry evaluator.
type RiskConfig struct {
	MaxPortfolioDeltaPer100K  float64 `json:"max_portfolio_delta_per_100k" yaml:"max_portfolio_delta_per_100k"`
	MaxPortfolioGammaPer100K  float64 `json:"max_portfolio_gamma_per_100k" yaml:"max_portfolio_gamma_per_100k"`
	MaxPortfolioThetaDailyPct float64 `json:"max_portfolio_theta_daily_pct" yaml:"max_portfolio_theta_daily_pct"`
	MaxSingleUnderlyingPct    float64 `json:"max_single_underlying_pct" yaml:"max_single_underlying_pct"`

	HealthyScore  int `json:"healthy_score" yaml:"healthy_score"`
	CautiousScore int `json:"cautious_score" yaml:"cautious_score"`
	ElevatedScore int `json:"elevated_score" yaml:"elevated_score"`

	MinRiskCapacityPct             float64 `json:"min_risk_capacity_pct" yaml:"min_risk_capacity_pct"`
	MinConvictionForEntry          int     `json:"min_conviction_for_entry" yaml:"min_conviction_for_entry"`
	ExceptionalConvictionThreshold int     `json:"exceptional_conviction_threshold" yaml:"exceptional_conviction_threshold"`
	RequireTrendAlignment          bool    `json:"require_trend_alignment" yaml:"require_trend_alignment"`
	MinDTEForEntry                 int     `json:"min_dte_for_entry" yaml:"min_dte_for_entry"`
	MaxIVRankForEntry              float64 `json:"max_iv_rank_for_entry" yaml:"max_iv_rank_for_entry"`
	MaxPremiumPerContract          float64 `json:"max_premium_per_contract" yaml:"max_premium_per_contract"`
}

// ExitConfig holds the exit evaluator thresholds.
type ExitConfig struct {
	ProfitTargetPct float64 `json:"profit_target_pct" yaml:"profit_target_pct"`
	StopLossPct     float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`

	// Tiered profit targets by remaining DTE; positions close to expiry take
	// profits earlier. Keys are minimum DTE for the tier.
	ProfitTargetsByDTE map[int]float64 `json:"profit_targets_by_dte,omitempty" yaml:"profit_targets_by_dte,omitempty"`

	ExitOnThesisInvalidation  bool `json:"exit_on_thesis_invalidation" yaml:"exit_on_thesis_invalidation"`
	ConvictionExitThreshold   int  `json:"conviction_exit_threshold" yaml:"conviction_exit_threshold"`
	ConvictionHoldThreshold   int  `json:"conviction_hold_threshold" yaml:"conviction_hold_threshold"`
	ExitOnGammaRisk           bool `json:"exit_on_gamma_risk" yaml:"exit_on_gamma_risk"`
	GammaRiskDTEThreshold     int  `json:"gamma_risk_dte_threshold" yaml:"gamma_risk_dte_threshold"`
	ExitOnConcentrationBreach bool `json:"exit_on_concentration_breach" yaml:"exit_on_concentration_breach"`
}

// MonitorConfig holds the reversal monitor settings. These are the values the
// runtime overlay may override between restarts.
type MonitorConfig struct {
	PollInterval       time.Duration `json:"poll_interval" yaml:"poll_interval"`
	AutoCloseEnabled   bool          `json:"auto_close_enabled" yaml:"auto_close_enabled"`
	AutoCloseThreshold int           `json:"auto_close_threshold" yaml:"auto_close_threshold"`
	AlertThreshold     int           `json:"alert_threshold" yaml:"alert_threshold"`
	MinHoldDays        int           `json:"min_hold_days" yaml:"min_hold_days"`
	MaxAutoExitsPerDay int           `json:"max_auto_exits_per_day" yaml:"max_auto_exits_per_day"`
	BarsLookbackDays   int           `json:"bars_lookback_days" yaml:"bars_lookback_days"`

	OrderPollWindow      time.Duration `json:"order_poll_window" yaml:"order_poll_window"`
	ProtectiveRetries    int           `json:"protective_retries" yaml:"protective_retries"`
	ProtectiveBackoff    time.Duration `json:"protective_backoff" yaml:"protective_backoff"`
	LockPath             string        `json:"lock_path" yaml:"lock_path"`
}

// JournalConfig selects the journal backend.
type JournalConfig struct {
	DBPath string `json:"db_path" yaml:"db_path"`
}

// NotifyConfig configures the fire-and-forget alert channel.
type NotifyConfig struct {
	BotToken string `json:"bot_token,omitempty" yaml:"bot_token,omitempty"`
	ChatID   string `json:"chat_id,omitempty" yaml:"chat_id,omitempty"`
}

// StateConfig locates the persisted execution state snapshot and the
// per-position thesis store.
type StateConfig struct {
	SnapshotPath string `json:"snapshot_path" yaml:"snapshot_path"`
	ThesisPath   string `json:"thesis_path" yaml:"thesis_path"`
}

// LoadFromFile loads configuration from a file (JSON or YAML based on content).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (YAML for .yaml/.yml, else JSON).
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Safety.MaxExecutionsPerDay <= 0 {
		return fmt.Errorf("safety.max_executions_per_day must be positive")
	}
	if c.Safety.MaxPositions <= 0 {
		return fmt.Errorf("safety.max_positions must be positive")
	}
	if c.Safety.MaxSpreadPct <= 0 || c.Safety.MaxSpreadPct >= 1 {
		return fmt.Errorf("safety.max_spread_pct must be in (0, 1)")
	}
	if c.Safety.ExitSpreadWarnPct < c.Safety.MaxSpreadPct {
		return fmt.Errorf("safety.exit_spread_warn_pct must be at least max_spread_pct")
	}
	if c.Safety.ConsecutiveLossLimit <= 0 {
		return fmt.Errorf("safety.consecutive_loss_limit must be positive")
	}
	if c.Safety.DailyLossLimit <= 0 {
		return fmt.Errorf("safety.daily_loss_limit must be positive (absolute loss)")
	}
	if c.Safety.CircuitBreakerDuration <= 0 {
		return fmt.Errorf("safety.circuit_breaker_duration must be positive")
	}
	if c.Risk.MaxPortfolioDeltaPer100K <= 0 ||
		c.Risk.MaxPortfolioGammaPer100K <= 0 ||
		c.Risk.MaxPortfolioThetaDailyPct <= 0 ||
		c.Risk.MaxSingleUnderlyingPct <= 0 {
		return fmt.Errorf("risk limits must all be positive")
	}
	if !(c.Risk.HealthyScore < c.Risk.CautiousScore && c.Risk.CautiousScore < c.Risk.ElevatedScore) {
		return fmt.Errorf("risk score thresholds must be strictly increasing")
	}
	if c.Risk.ElevatedScore > 100 {
		return fmt.Errorf("risk.elevated_score cannot exceed 100")
	}
	if c.Risk.MinConvictionForEntry < 0 || c.Risk.MinConvictionForEntry > 100 {
		return fmt.Errorf("risk.min_conviction_for_entry must be in [0, 100]")
	}
	if c.Risk.ExceptionalConvictionThreshold <= c.Risk.MinConvictionForEntry {
		return fmt.Errorf("risk.exceptional_conviction_threshold must exceed min_conviction_for_entry")
	}
	if c.Exit.ProfitTargetPct <= 0 || c.Exit.StopLossPct <= 0 {
		return fmt.Errorf("exit.profit_target_pct and exit.stop_loss_pct must be positive")
	}
	if c.Exit.ConvictionHoldThreshold < c.Exit.ConvictionExitThreshold {
		return fmt.Errorf("exit.conviction_hold_threshold must be at least conviction_exit_threshold")
	}
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be positive")
	}
	if c.Monitor.AutoCloseThreshold < c.Monitor.AlertThreshold {
		return fmt.Errorf("monitor.auto_close_threshold must be at least alert_threshold")
	}
	if c.Monitor.BarsLookbackDays < 21 {
		return fmt.Errorf("monitor.bars_lookback_days must be at least 21")
	}
	if c.Journal.DBPath == "" {
		return fmt.Errorf("journal.db_path is required")
	}
	if c.State.SnapshotPath == "" {
		return fmt.Errorf("state.snapshot_path is required")
	}
	if c.State.ThesisPath == "" {
		return fmt.Errorf("state.thesis_path is required")
	}
	return nil
}

// Default returns a configuration with documented defaults.
func Default() *Config {
	return &Config{
		Safety: SafetyConfig{
			ShadowMode:             false,
			MaxExecutionsPerDay:    3,
			MaxPositions:           4,
			MaxSpreadPct:           0.15,
			ExitSpreadWarnPct:      0.25,
			EarningsBlackoutDays:   2,
			ConsecutiveLossLimit:   3,
			DailyLossLimit:         1000,
			CircuitBreakerDuration: 60 * time.Minute,
		},
		Risk: RiskConfig{
			MaxPortfolioDeltaPer100K:       150,
			MaxPortfolioGammaPer100K:       10,
			MaxPortfolioThetaDailyPct:      0.003,
			MaxSingleUnderlyingPct:         0.25,
			HealthyScore:                   30,
			CautiousScore:                  55,
			ElevatedScore:                  75,
			MinRiskCapacityPct:             0.30,
			MinConvictionForEntry:          70,
			ExceptionalConvictionThreshold: 90,
			RequireTrendAlignment:          true,
			MinDTEForEntry:                 7,
			MaxIVRankForEntry:              80,
			MaxPremiumPerContract:          500, // cents
		},
		Exit: ExitConfig{
			ProfitTargetPct: 0.40,
			StopLossPct:     0.50,
			ProfitTargetsByDTE: map[int]float64{
				14: 0.50,
				7:  0.40,
				3:  0.30,
				0:  0.20,
			},
			ExitOnThesisInvalidation:  true,
			ConvictionExitThreshold:   40,
			ConvictionHoldThreshold:   60,
			ExitOnGammaRisk:           true,
			GammaRiskDTEThreshold:     3,
			ExitOnConcentrationBreach: true,
		},
		Monitor: MonitorConfig{
			PollInterval:       45 * time.Second,
			AutoCloseEnabled:   true,
			AutoCloseThreshold: 5,
			AlertThreshold:     3,
			MinHoldDays:        2,
			MaxAutoExitsPerDay: 5,
			BarsLookbackDays:   30,
			OrderPollWindow:    30 * time.Second,
			ProtectiveRetries:  3,
			ProtectiveBackoff:  2 * time.Second,
			LockPath:           "data/monitor.lock",
		},
		Journal: JournalConfig{
			DBPath: "data/riskgate.db",
		},
		State: StateConfig{
			SnapshotPath: "data/execution_state.json",
			ThesisPath:   "data/theses.json",
		},
	}
}
