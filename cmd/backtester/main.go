// Command backtester runs an event-driven, bar-by-bar backtest over
// historical OHLCV data for one or more symbols and prints the resulting
// performance statistics.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ridopark/benchtrade/internal/data"
	"github.com/ridopark/benchtrade/pkg/backtester"
	"github.com/ridopark/benchtrade/pkg/feed"
	"github.com/ridopark/benchtrade/pkg/logging"
	"github.com/ridopark/benchtrade/pkg/strategy"
	"github.com/ridopark/benchtrade/pkg/strategy/examples"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "backtester",
		Short: "Run an event-driven backtest against historical OHLCV data",
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	run := &cobra.Command{
		Use:   "run",
		Short: "Run a backtest for one strategy over one or more symbols",
		RunE:  runBacktest,
	}

	flags := run.Flags()
	flags.StringSlice("symbols", []string{"AAPL"}, "symbols to backtest")
	flags.String("strategy", "buy_and_hold", "strategy to run: buy_and_hold, ma_crossover, rsi, multi_indicator, rebalance")
	flags.String("start", "2024-01-01", "start date (YYYY-MM-DD)")
	flags.String("end", "2024-12-31", "end date (YYYY-MM-DD)")
	flags.Float64("cash", 100_000, "initial account cash")
	flags.Float64("commission-rate", 0.0005, "per-trade commission rate")
	flags.Float64("min-commission", 5.0, "floor commission per trade")
	flags.Float64("slippage-bps", 1.0, "slippage in basis points")
	flags.Float64("stamp-tax-rate", 0.001, "sell-side stamp tax rate")
	flags.Int("lot-size", 100, "share rounding unit")
	flags.String("period", "auto", "bar period hint for bars-per-year inference")
	flags.String("source", "postgres", "historical data source (only postgres is implemented)")
	flags.String("db-host", "localhost", "database host")
	flags.String("db-port", "5432", "database port")
	flags.String("db-user", "postgres", "database user")
	flags.String("db-password", "", "database password")
	flags.String("db-name", "trading_data", "database name")

	viper.BindPFlags(flags)
	return run
}

func runBacktest(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()
	viper.SetEnvPrefix("backtester")
	viper.AutomaticEnv()

	logging.Initialize(logging.DefaultConfig())
	logger := logging.GetLogger("cli")

	start, err := time.Parse("2006-01-02", viper.GetString("start"))
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", viper.GetString("end"))
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}
	end = end.Add(24 * time.Hour).Add(-time.Nanosecond)

	symbols := viper.GetStringSlice("symbols")
	if len(symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}

	cfg := backtester.DefaultConfig()
	cfg.Start = start
	cfg.End = end
	cfg.Cash = viper.GetFloat64("cash")
	cfg.CommissionRate = viper.GetFloat64("commission-rate")
	cfg.MinCommission = viper.GetFloat64("min-commission")
	cfg.SlippageBps = viper.GetFloat64("slippage-bps")
	cfg.StampTaxRate = viper.GetFloat64("stamp-tax-rate")
	cfg.LotSize = viper.GetInt("lot-size")
	cfg.Period = viper.GetString("period")

	strategyInstance, err := buildStrategy(viper.GetString("strategy"), symbols)
	if err != nil {
		return err
	}

	if strings.ToLower(viper.GetString("source")) != "postgres" {
		return fmt.Errorf("unsupported data source %q: only postgres is implemented", viper.GetString("source"))
	}
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		viper.GetString("db-host"), viper.GetString("db-port"), viper.GetString("db-user"),
		viper.GetString("db-password"), viper.GetString("db-name"))

	logger.Info().Msg("connecting to data source")
	provider, err := data.NewPostgresBarSource(connStr)
	if err != nil {
		return fmt.Errorf("failed to create data provider: %w", err)
	}
	defer provider.Close()

	historicalFeed := feed.NewHistoricalFeed(provider, symbols, cfg.Period, cfg.Start, cfg.End)
	bars, err := historicalFeed.Load()
	if err != nil {
		return fmt.Errorf("failed to load bar data: %w", err)
	}

	engine, err := backtester.NewEngine(cfg, strategyInstance)
	if err != nil {
		return fmt.Errorf("failed to construct engine: %w", err)
	}

	var benchmarkBars []strategy.Bar
	var timestamps []time.Time
	for _, symbol := range symbols {
		symbolBars := bars[symbol]
		if err := engine.AddMarketData(symbol, symbolBars); err != nil {
			return fmt.Errorf("failed to load market data for %s: %w", symbol, err)
		}
		if len(symbolBars) > len(benchmarkBars) {
			benchmarkBars = symbolBars
		}
	}
	for _, bar := range benchmarkBars {
		timestamps = append(timestamps, bar.Timestamp)
	}
	if err := engine.SetBenchmark(timestamps); err != nil {
		return fmt.Errorf("failed to set benchmark: %w", err)
	}

	logger.Info().Strs("symbols", symbols).Str("strategy", viper.GetString("strategy")).Msg("running backtest")
	result, err := engine.Run(benchmarkBars)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	printSummary(result)
	return nil
}

func buildStrategy(name string, symbols []string) (strategy.Strategy, error) {
	switch name {
	case "buy_and_hold":
		return examples.NewBuyAndHoldStrategy(symbols[0]), nil
	case "ma_crossover":
		return examples.NewMovingAverageCrossoverStrategy(symbols, 5, 20), nil
	case "rsi":
		return examples.NewRSIStrategy(symbols, 14, 30, 70, 0.95), nil
	case "multi_indicator":
		return examples.NewMultiIndicatorStrategy(symbols), nil
	case "rebalance":
		return examples.NewRebalanceStrategy(symbols, "monthly"), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q: available strategies are buy_and_hold, ma_crossover, rsi, multi_indicator, rebalance", name)
	}
}

func printSummary(result backtester.Result) {
	fmt.Println("\nBacktest Results")
	fmt.Println("================")
	fmt.Printf("Total return:       %.2f%%\n", result.Stats.TotalReturn*100)
	fmt.Printf("Annualized return:  %.2f%%\n", result.Stats.AnnualizedReturn*100)
	fmt.Printf("Volatility:         %.2f%%\n", result.Stats.Volatility*100)
	fmt.Printf("Sharpe:             %.2f\n", result.Stats.Sharpe)
	fmt.Printf("Calmar:             %.2f\n", result.Stats.Calmar)
	fmt.Printf("Max drawdown:       %.2f%%\n", result.Stats.Drawdown.MaxDrawdown*100)
	fmt.Printf("Win rate:           %.2f%%\n", result.Stats.WinRate*100)
	fmt.Printf("Profit/loss ratio:  %.2f\n", result.Stats.ProfitLossRatio)
	fmt.Printf("Open/close counts:  %d/%d\n", result.Stats.OpenCount, result.Stats.CloseCount)
	fmt.Printf("Trades recorded:    %d\n", len(result.Trades))
	fmt.Printf("Rejections:         %d\n", len(result.Rejections))
}
