package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidder/internal/config"
	"github.com/patrickwarner/openbidder/internal/db"
	"github.com/patrickwarner/openbidder/internal/engine"
	"github.com/patrickwarner/openbidder/internal/models"
	"github.com/patrickwarner/openbidder/internal/observability"
	"github.com/patrickwarner/openbidder/internal/simulation"
)

// maxPeriods bounds a single simulate_run call.
const maxPeriods = 500

type SimulateRunInput struct {
	Periods  int    `json:"periods" jsonschema:"number of periods to play, defaults to 60"`
	Strategy string `json:"strategy,omitempty" jsonschema:"admission strategy preset: naive, capacity or demand"`
	Seed     int64  `json:"seed,omitempty" jsonschema:"market random seed"`
	Capacity int    `json:"capacity,omitempty" jsonschema:"total distribution capacity override"`
}

type SimulateRunOutput struct {
	Strategy string             `json:"strategy"`
	Summary  simulation.Summary `json:"summary"`
	Profit   float64            `json:"profit"`
}

type RunBidsInput struct {
	RunID  string `json:"run_id" jsonschema:"run identifier reported by the bidder"`
	Period *int   `json:"period,omitempty" jsonschema:"period to read, latest when omitted"`
}

type BidView struct {
	Manufacturer string  `json:"manufacturer,omitempty"`
	Component    string  `json:"component,omitempty"`
	Price        float64 `json:"price"`
	Targeted     bool    `json:"targeted"`
	Capped       bool    `json:"capped"`
	SpendCap     float64 `json:"spend_cap,omitempty"`
}

type RunBidsOutput struct {
	RunID   string    `json:"run_id"`
	Period  int       `json:"period"`
	Bids    []BidView `json:"bids"`
	Periods []int     `json:"periods"`
}

func bidViews(sub models.BidSubmission) []BidView {
	out := make([]BidView, 0, len(sub.Bids))
	for _, b := range sub.Bids {
		out = append(out, BidView{
			Manufacturer: b.Segment.Manufacturer,
			Component:    b.Segment.Component,
			Price:        b.Price,
			Targeted:     b.Creative.Targeted(),
			Capped:       b.SpendCap.Limited,
			SpendCap:     b.SpendCap.Amount,
		})
	}
	return out
}

// BidderTools holds the dependencies of the MCP tools.
type BidderTools struct {
	cfg    config.Config
	store  *db.RedisStore
	logger *zap.Logger
}

// SimulateRun plays a fresh in-process bidder against the synthetic market.
func (s *BidderTools) SimulateRun(ctx context.Context, req *mcp.CallToolRequest, input SimulateRunInput) (*mcp.CallToolResult, SimulateRunOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	periods := input.Periods
	if periods <= 0 {
		periods = 60
	}
	if periods > maxPeriods {
		return nil, SimulateRunOutput{}, fmt.Errorf("periods must be at most %d", maxPeriods)
	}

	cfg := s.cfg
	if input.Strategy != "" {
		cfg.Strategy = input.Strategy
	}
	eng, err := engine.New(cfg, s.logger, observability.NewNoOpRegistry(), nil)
	if err != nil {
		return nil, SimulateRunOutput{}, err
	}

	marketCfg := simulation.DefaultMarketConfig()
	if input.Seed != 0 {
		marketCfg.Seed = input.Seed
	}
	if input.Capacity > 0 {
		marketCfg.Capacity.TotalCapacity = input.Capacity
	}

	sum, err := simulation.Run(ctx, eng, simulation.NewMarket(marketCfg), periods, s.logger)
	if err != nil {
		return nil, SimulateRunOutput{}, fmt.Errorf("simulation failed: %w", err)
	}
	s.logger.Info("simulation finished",
		zap.String("strategy", cfg.Strategy),
		zap.Int("periods", sum.Periods),
		zap.Float64("profit", sum.Profit()),
	)
	return nil, SimulateRunOutput{Strategy: cfg.Strategy, Summary: sum, Profit: sum.Profit()}, nil
}

// RunBids reads a mirrored bid submission of a live run.
func (s *BidderTools) RunBids(ctx context.Context, req *mcp.CallToolRequest, input RunBidsInput) (*mcp.CallToolResult, RunBidsOutput, error) {
	if s.store == nil {
		return nil, RunBidsOutput{}, errors.New("run mirror disabled, set REDIS_ENABLED=true")
	}
	if input.RunID == "" {
		return nil, RunBidsOutput{}, errors.New("run_id is required")
	}

	var (
		sub models.BidSubmission
		err error
	)
	if input.Period == nil {
		sub, err = s.store.Latest(ctx, input.RunID)
	} else {
		sub, err = s.store.Submission(ctx, input.RunID, *input.Period)
	}
	if err != nil {
		return nil, RunBidsOutput{}, fmt.Errorf("read run %s: %w", input.RunID, err)
	}
	periods, err := s.store.Periods(ctx, input.RunID)
	if err != nil {
		return nil, RunBidsOutput{}, fmt.Errorf("list periods: %w", err)
	}
	return nil, RunBidsOutput{
		RunID:   sub.RunID,
		Period:  sub.Period,
		Bids:    bidViews(sub),
		Periods: periods,
	}, nil
}

func newMCPServer(tools *BidderTools) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "openbidder",
		Version: observability.Version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "simulate_run",
		Description: "Play a fresh bidder against a synthetic keyword auction market and summarise revenue, cost and conversions",
	}, tools.SimulateRun)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_bids",
		Description: "Read the bid set a running bidder submitted for a period, from the Redis run mirror",
	}, tools.RunBids)

	return server
}

func main() {
	cfg := config.Load()

	// stdout carries the protocol, so logs go to stderr only
	logger, err := observability.InitLoggerWithService("openbidder-mcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	tools := &BidderTools{cfg: cfg, logger: logger}
	if cfg.RedisEnabled {
		store, err := db.InitRedis(context.Background(), cfg.RedisAddr, cfg.RunTTL)
		if err != nil {
			logger.Warn("Redis unavailable, run_bids disabled", zap.Error(err))
		} else {
			defer store.Close()
			tools.store = store
		}
	}

	server := newMCPServer(tools)

	var logBuffer bytes.Buffer
	transport := &mcp.LoggingTransport{
		Transport: &mcp.StdioTransport{},
		Writer:    &logBuffer,
	}

	logger.Info("MCP Server running via stdio")
	if err := server.Run(context.Background(), transport); err != nil {
		logger.Fatal("Server error", zap.Error(err), zap.String("mcp_logs", logBuffer.String()))
	}
}
