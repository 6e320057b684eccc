// Package config loads the backtest run's settings from environment
// variables (for ambient/deployment-level defaults) overlaid with an
// optional JSON file (for the nested risk/regime/signal blocks a single
// CLI flag can't express), following a
// getEnv*-helper loading style.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kasyap1234/trendback/pkg/regime"
	"github.com/kasyap1234/trendback/pkg/risk"
	"github.com/kasyap1234/trendback/pkg/signal"
)

// Config is the fully resolved settings bundle a backtest run is built from.
type Config struct {
	Symbols       []string
	DataPath      string
	Interval      string
	InitialEquity float64
	FeePct        float64
	ExecutionModel string // "ideal" | "realistic" | "spread_aware"
	SlippagePct   float64
	RandomSeed    int64
	OutDir        string
	StrategyName  string
	DefaultLeverage int

	Risk   risk.Config
	Regime regime.Config
	Signal signal.Config
}

// Default returns the baseline configuration before any env/file overlay.
func Default() Config {
	return Config{
		Interval:       "4h",
		InitialEquity:  10000,
		FeePct:         0.0004,
		ExecutionModel: "realistic",
		SlippagePct:    0.0005,
		RandomSeed:     42,
		OutDir:         "./out",
		StrategyName:   "trend_following",
		DefaultLeverage: 3,
		Risk: risk.Config{
			RiskPerTradePct: 1, MaxLeverage: 5, MaxDailyLossPct: 3,
			MaxDrawdownPct: 10, MaxPositions: 1, MaxConsecutiveLosses: 3,
			CooldownAfterLossHours: 4,
		},
		Regime: regime.DefaultConfig(),
		Signal: signal.DefaultConfig(),
	}
}

// LoadFromEnv overlays environment variables onto cfg, following the
// teacher's getEnv*-with-fallback pattern.
func LoadFromEnv(cfg Config) Config {
	cfg.DataPath = getEnvString("BACKTEST_DATA_PATH", cfg.DataPath)
	cfg.Interval = getEnvString("BACKTEST_INTERVAL", cfg.Interval)
	cfg.InitialEquity = getEnvFloat("BACKTEST_INITIAL_EQUITY", cfg.InitialEquity)
	cfg.FeePct = getEnvFloat("BACKTEST_FEE_PCT", cfg.FeePct)
	cfg.ExecutionModel = getEnvString("BACKTEST_EXECUTION_MODEL", cfg.ExecutionModel)
	cfg.SlippagePct = getEnvFloat("BACKTEST_SLIPPAGE_PCT", cfg.SlippagePct)
	cfg.RandomSeed = getEnvInt64("BACKTEST_RANDOM_SEED", cfg.RandomSeed)
	cfg.OutDir = getEnvString("BACKTEST_OUT_DIR", cfg.OutDir)
	cfg.StrategyName = getEnvString("BACKTEST_STRATEGY", cfg.StrategyName)
	cfg.DefaultLeverage = int(getEnvFloat("BACKTEST_DEFAULT_LEVERAGE", float64(cfg.DefaultLeverage)))

	if symbols := os.Getenv("BACKTEST_SYMBOLS"); symbols != "" {
		cfg.Symbols = parseSymbols(symbols)
	}
	return cfg
}

// overlayDocument mirrors the nested JSON shape an overlay file may carry:
// risk, regime and signal blocks, each replacing its section wholesale.
type overlayDocument struct {
	Risk   *risk.Config   `json:"risk"`
	Regime *regime.Config `json:"regime"`
	Signal *signal.Config `json:"signal"`
}

// LoadFromFile overlays a JSON document at path onto cfg; a missing file
// is not an error (the CLI's overlay is optional).
func LoadFromFile(cfg Config, path string) (Config, error) {
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	var doc overlayDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if doc.Risk != nil {
		cfg.Risk = *doc.Risk
	}
	if doc.Regime != nil {
		cfg.Regime = *doc.Regime
	}
	if doc.Signal != nil {
		cfg.Signal = *doc.Signal
	}
	return cfg, nil
}

func parseSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}
