package simulation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/patrickwarner/openbidder/internal/models"
)

// Host is the bidder side of a run.
type Host interface {
	HandleCatalog(models.CatalogSnapshot) error
	HandleCapacity(models.CapacityInfo) error
	HandleAuctionReport(models.AuctionReport) error
	HandleResultReport(models.ResultReport) error
	Tick(ctx context.Context) (models.BidSubmission, error)
}

// Summary aggregates a simulated run.
type Summary struct {
	Periods     int     `json:"periods"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	Conversions int     `json:"conversions"`
	Revenue     float64 `json:"revenue"`
	Cost        float64 `json:"cost"`
	CappedBids  int     `json:"capped_bids"`
}

// Profit is revenue minus cost.
func (s Summary) Profit() float64 { return s.Revenue - s.Cost }

// Run drives host through periods of the market and summarises the outcome.
func Run(ctx context.Context, host Host, market *Market, periods int, logger *zap.Logger) (Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := host.HandleCatalog(market.Catalog()); err != nil {
		return Summary{}, fmt.Errorf("send catalog: %w", err)
	}
	if err := host.HandleCapacity(market.Capacity()); err != nil {
		return Summary{}, fmt.Errorf("send capacity: %w", err)
	}

	var sum Summary
	for p := 0; p < periods; p++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sub, err := host.Tick(ctx)
		if err != nil {
			return sum, fmt.Errorf("tick %d: %w", p, err)
		}
		for _, b := range sub.Bids {
			if b.SpendCap.Limited {
				sum.CappedBids++
			}
		}

		auction, result := market.Clear(sub)
		if err := host.HandleAuctionReport(auction); err != nil {
			return sum, fmt.Errorf("auction report %d: %w", p, err)
		}
		if err := host.HandleResultReport(result); err != nil {
			return sum, fmt.Errorf("result report %d: %w", p, err)
		}

		var revenue, cost float64
		conversions := 0
		for _, a := range auction.Segments {
			sum.Impressions += a.Impressions
			sum.Clicks += a.Clicks
			cost += a.Cost
		}
		for _, r := range result.Segments {
			conversions += r.Conversions
			revenue += r.Revenue
		}
		sum.Periods++
		sum.Cost += cost
		sum.Revenue += revenue
		sum.Conversions += conversions

		logger.Debug("period cleared",
			zap.Int("period", sub.Period),
			zap.Int("conversions", conversions),
			zap.Float64("revenue", revenue),
			zap.Float64("cost", cost),
		)
	}
	return sum, nil
}
