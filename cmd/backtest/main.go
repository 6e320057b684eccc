// Command backtest runs the event-driven multi-symbol trend-following
// backtester end to end: it loads OHLCV bars and funding rates from disk,
// replays them through the risk/signal/execution pipeline, and reports the
// resulting performance summary as JSON.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kasyap1234/trendback/pkg/config"
	"github.com/kasyap1234/trendback/pkg/events"
	"github.com/kasyap1234/trendback/pkg/execution"
	"github.com/kasyap1234/trendback/pkg/funding"
	"github.com/kasyap1234/trendback/pkg/ledger"
	"github.com/kasyap1234/trendback/pkg/logger"
	"github.com/kasyap1234/trendback/pkg/metrics"
	"github.com/kasyap1234/trendback/pkg/model"
	"github.com/kasyap1234/trendback/pkg/portfolio"
	"github.com/kasyap1234/trendback/pkg/regime"
	"github.com/kasyap1234/trendback/pkg/replay"
	"github.com/kasyap1234/trendback/pkg/risk"
	"github.com/kasyap1234/trendback/pkg/rules"
	"github.com/kasyap1234/trendback/pkg/scoring"
	"github.com/kasyap1234/trendback/pkg/signal"
)

func main() {
	os.Exit(run())
}

func run() int {
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols, e.g. BTCUSDT,ETHUSDT")
	dataPath := flag.String("data-path", "", "directory containing <SYMBOL>.csv bar files")
	interval := flag.String("interval", "4h", "bar interval")
	startFlag := flag.String("start", "", "RFC3339 start time (optional)")
	endFlag := flag.String("end", "", "RFC3339 end time (optional)")
	initialEquity := flag.Float64("capital", 10000, "starting equity")
	feePct := flag.Float64("fee-pct", 0.0004, "taker fee percentage per side")
	executionModel := flag.String("execution-model", "realistic", "ideal|realistic|spread_aware")
	slippagePct := flag.Float64("slippage-pct", 0.0005, "ideal-model fixed slippage percentage")
	randomSeed := flag.Int64("seed", 42, "seed for the realistic execution model's PRNG")
	outDir := flag.String("out", "./out", "output directory for the event ledger")
	strategyName := flag.String("strategy", "trend_following", "strategy label recorded in the summary")
	rulesPath := flag.String("rules", "", "optional symbol rules snapshot JSON file")
	configPath := flag.String("config", "", "optional JSON overlay for risk/regime/signal tuning")
	jsonOutput := flag.Bool("json", true, "print the summary as JSON to stdout")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: "INFO"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "building logger:", err)
		return 1
	}

	if *symbolsFlag == "" || *dataPath == "" {
		log.Error("missing required flags", "symbols", *symbolsFlag, "data_path", *dataPath)
		return 1
	}

	cfg := config.LoadFromEnv(config.Default())
	cfg.Symbols = parseSymbols(*symbolsFlag)
	cfg.DataPath = *dataPath
	cfg.Interval = *interval
	cfg.InitialEquity = *initialEquity
	cfg.FeePct = *feePct
	cfg.ExecutionModel = *executionModel
	cfg.SlippagePct = *slippagePct
	cfg.RandomSeed = *randomSeed
	cfg.OutDir = *outDir
	cfg.StrategyName = *strategyName

	cfg, err = config.LoadFromFile(cfg, *configPath)
	if err != nil {
		log.Error("loading config overlay", "error", err)
		return 1
	}

	start, end, err := parseTimeWindow(*startFlag, *endFlag)
	if err != nil {
		log.Error("parsing time window", "error", err)
		return 1
	}

	result, summary, err := runBacktest(cfg, *rulesPath, start, end, log)
	if err != nil {
		log.Error("backtest failed", "error", err)
		return 1
	}

	if *jsonOutput {
		if err := outputJSON(result, summary); err != nil {
			log.Error("encoding summary", "error", err)
			return 1
		}
	}
	return 0
}

func runBacktest(cfg config.Config, rulesPath string, start, end time.Time, log *slog.Logger) (replay.Result, metrics.Summary, error) {
	mux := events.NewMux()

	for _, symbol := range cfg.Symbols {
		bars, err := loadBars(symbol, cfg.DataPath, cfg.Interval)
		if err != nil {
			return replay.Result{}, metrics.Summary{}, fmt.Errorf("loading bars for %s: %w", symbol, err)
		}
		for _, bar := range bars {
			if !start.IsZero() && bar.CloseTime.Before(start) {
				continue
			}
			if !end.IsZero() && bar.CloseTime.After(end) {
				continue
			}
			mux.PushBar(bar)
		}

		fundingEvents, err := loadOrSynthesizeFunding(symbol, cfg.DataPath, bars)
		if err != nil {
			return replay.Result{}, metrics.Summary{}, fmt.Errorf("loading funding for %s: %w", symbol, err)
		}
		for _, fe := range fundingEvents {
			mux.PushFunding(fe)
		}
		log.Info("loaded symbol history", "symbol", symbol, "bars", len(bars), "funding_events", len(fundingEvents))
	}

	var ruleBook *rules.Book
	if cfg.OutDir != "" {
		if snap, err := tryLoadRules(cfg, rulesPath); err == nil && snap != nil {
			ruleBook = rules.NewBook([]*rules.Snapshot{snap})
		}
	}

	led, err := ledger.New(cfg.OutDir, 100)
	if err != nil {
		return replay.Result{}, metrics.Summary{}, fmt.Errorf("opening ledger: %w", err)
	}
	defer led.Close()

	execModel := buildExecutionModel(cfg)
	riskEngine := risk.New(cfg.Risk)
	selector := portfolio.New(cfg.Risk.MaxPositions)
	signalGen := signal.New(cfg.Signal, regime.New(cfg.Regime), scoring.New(scoring.DefaultWeights()))

	engine := replay.New(replay.Config{
		Symbols: cfg.Symbols, ExecModel: execModel, RiskEngine: riskEngine,
		Selector: selector, SignalGenerator: signalGen, RuleBook: ruleBook,
		Ledger: led, FeePct: cfg.FeePct, InitialEquity: cfg.InitialEquity,
		Leverage: cfg.DefaultLeverage,
	})

	result, err := engine.Run(mux)
	if err != nil {
		return replay.Result{}, metrics.Summary{}, fmt.Errorf("replay loop: %w", err)
	}

	summary := metrics.Compute(result.Trades, result.EquityCurve, intervalsPerYearSqrt(cfg.Interval))
	return result, summary, nil
}

func buildExecutionModel(cfg config.Config) execution.Model {
	var base execution.Model
	switch cfg.ExecutionModel {
	case "ideal":
		base = execution.Ideal{SlippagePct: cfg.SlippagePct}
	default:
		base = execution.NewRealistic(cfg.RandomSeed, 2, 0.5, 3, 0.3)
	}
	if cfg.ExecutionModel == "spread_aware" {
		return execution.SpreadAware{Inner: base, MaxSpreadBps: 15}
	}
	return base
}

func tryLoadRules(cfg config.Config, rulesPath string) (*rules.Snapshot, error) {
	path := rulesPath
	if path == "" {
		path = filepath.Join(cfg.DataPath, "symbol_rules.json")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return rules.Load(path)
}

func loadBars(symbol, dataPath, interval string) ([]model.Bar, error) {
	path := filepath.Join(dataPath, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var bars []model.Bar
	var seq int64
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if first {
			first = false
			if _, perr := strconv.ParseFloat(record[1], 64); perr != nil {
				continue // header row: timestamp,open,high,low,close,volume
			}
		}
		closeTime, err := time.Parse(time.RFC3339, strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", record[0], err)
		}
		values, err := parseFloats(record[1:5])
		if err != nil {
			return nil, err
		}
		volume := 0.0
		if len(record) > 5 {
			volume, _ = strconv.ParseFloat(strings.TrimSpace(record[5]), 64)
		}
		seq++
		bars = append(bars, model.Bar{
			Symbol: symbol, Interval: interval, CloseTime: closeTime,
			Open: values[0], High: values[1], Low: values[2], Close: values[3],
			Volume: volume, Sequence: seq,
		})
	}
	return bars, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("bad numeric field %q: %w", f, err)
		}
		out[i] = v
	}
	return out, nil
}

func loadOrSynthesizeFunding(symbol, dataPath string, bars []model.Bar) ([]model.FundingEvent, error) {
	path := filepath.Join(dataPath, symbol+"_funding.csv")
	if _, err := os.Stat(path); err == nil {
		return funding.LoadHistorical(symbol, path)
	}
	if len(bars) == 0 {
		return nil, nil
	}
	return funding.Synthesize(symbol, bars[0].CloseTime, bars[len(bars)-1].CloseTime, 0.0001), nil
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

func parseTimeWindow(startFlag, endFlag string) (start, end time.Time, err error) {
	if startFlag != "" {
		start, err = time.Parse(time.RFC3339, startFlag)
		if err != nil {
			return start, end, fmt.Errorf("bad -start: %w", err)
		}
	}
	if endFlag != "" {
		end, err = time.Parse(time.RFC3339, endFlag)
		if err != nil {
			return start, end, fmt.Errorf("bad -end: %w", err)
		}
	}
	return start, end, nil
}

func intervalsPerYearSqrt(interval string) float64 {
	perDay := 6.0 // 4h bars
	switch interval {
	case "1h":
		perDay = 24
	case "1d":
		perDay = 1
	}
	return math.Sqrt(perDay * 365)
}

func outputJSON(result replay.Result, summary metrics.Summary) error {
	payload := map[string]any{
		"initial_equity":           result.InitialEquity,
		"final_equity":             result.FinalEquity,
		"total_return":             result.TotalReturn,
		"bars_processed":           result.BarsProcessed,
		"funding_events_processed": result.FundingEventsProcessed,
		"fill_count":               result.FillCount,
		"rejection_count":          result.RejectionCount,
		"partial_fill_count":       result.PartialFillCount,
		"missed_entries":           result.MissedEntries,
		"fill_rate":                result.FillRate,
		"avg_slippage_bps":         result.AvgSlippageBps,
		"total_funding_paid":       result.TotalFundingPaid,
		"trades_by_symbol":         result.TradesBySymbol,
		"total_trades":             summary.TotalTrades,
		"win_rate":                 summary.WinRate,
		"profit_factor":            summary.ProfitFactor,
		"total_net_pnl":            summary.TotalNetPnL,
		"max_drawdown_pct":         summary.MaxDrawdownPct,
		"sharpe_ratio":             summary.SharpeRatio,
		"sortino_ratio":            summary.SortinoRatio,
		"calmar_ratio":             summary.CalmarRatio,
		"symbols_traded":           summary.SymbolsTraded,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
