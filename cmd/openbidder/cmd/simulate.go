package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidder/internal/engine"
	"github.com/patrickwarner/openbidder/internal/observability"
	"github.com/patrickwarner/openbidder/internal/simulation"
)

var (
	simPeriods  int
	simSeed     int64
	simServer   string
	simCapacity int
	simJSON     bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play the bidder against a synthetic auction market",
	Long: `Run a bidder through a synthetic market and print the outcome.

Without --server the bidder runs in process. With --server the market drives
a running bidder over its HTTP API and finishes the run afterwards.`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().IntVarP(&simPeriods, "periods", "n", 60, "number of periods to play")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "market random seed")
	simulateCmd.Flags().StringVar(&simServer, "server", "", "bidder base URL (empty runs in process)")
	simulateCmd.Flags().IntVar(&simCapacity, "capacity", 0, "override total distribution capacity")
	simulateCmd.Flags().BoolVar(&simJSON, "json", false, "print the summary as JSON")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger, err := observability.InitLoggerWithLevel(logLevel(), "market-simulator")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	marketCfg := simulation.DefaultMarketConfig()
	marketCfg.Seed = simSeed
	if simCapacity > 0 {
		marketCfg.Capacity.TotalCapacity = simCapacity
	}
	market := simulation.NewMarket(marketCfg)

	var host simulation.Host
	var finish func(context.Context) error
	if simServer != "" {
		h := simulation.NewHTTPHost(simServer)
		host, finish = h, h.Finish
	} else {
		eng, err := engine.New(cfg, logger, observability.NewNoOpRegistry(), nil)
		if err != nil {
			return err
		}
		host = eng
	}

	logger.Info("simulation started",
		zap.Int("periods", simPeriods),
		zap.Int64("seed", simSeed),
		zap.String("server", simServer),
		zap.String("strategy", cfg.Strategy),
	)
	sum, err := simulation.Run(ctx, host, market, simPeriods, logger)
	if finish != nil {
		if ferr := finish(context.Background()); ferr != nil {
			logger.Warn("finish run", zap.Error(ferr))
		}
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if simJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			simulation.Summary
			Profit float64 `json:"profit"`
		}{sum, sum.Profit()})
	}
	fmt.Fprintf(out, "periods      %d\n", sum.Periods)
	fmt.Fprintf(out, "impressions  %d\n", sum.Impressions)
	fmt.Fprintf(out, "clicks       %d\n", sum.Clicks)
	fmt.Fprintf(out, "conversions  %d\n", sum.Conversions)
	fmt.Fprintf(out, "capped bids  %d\n", sum.CappedBids)
	fmt.Fprintf(out, "revenue      %.2f\n", sum.Revenue)
	fmt.Fprintf(out, "cost         %.2f\n", sum.Cost)
	fmt.Fprintf(out, "profit       %.2f\n", sum.Profit())
	return nil
}
