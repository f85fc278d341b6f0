package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/openbidder/internal/config"
	"github.com/patrickwarner/openbidder/internal/models"
)

type fakeDemand map[models.Segment]int

func (d fakeDemand) Predict(s models.Segment) int { return d[s] }

func (d fakeDemand) PredictTotal() int {
	total := 0
	for _, v := range d {
		total += v
	}
	return total
}

type periodOutcome struct {
	cost        float64
	conversions int
}

func newTestPortfolio(t *testing.T, strategy string, capacity models.CapacityInfo, segs ...models.Segment) *Portfolio {
	t.Helper()
	policy, err := Preset(strategy)
	require.NoError(t, err)
	p := NewPortfolio(policy, capacity, flatConfig(), NewRounder(3),
		func(models.Segment) float64 { return 100 }, nil, nil)
	for _, s := range segs {
		p.Controller(s)
	}
	return p
}

// playPeriod submits bids and then reports the given outcome per segment.
func playPeriod(p *Portfolio, demand DemandForecaster, outcome map[models.Segment]periodOutcome) {
	p.Bids(demand)
	var auction models.AuctionReport
	var result models.ResultReport
	for s, o := range outcome {
		auction.Segments = append(auction.Segments, models.SegmentAuction{
			Segment: s, Impressions: 50, Clicks: 5, Cost: o.cost, AvgPosition: 2,
		})
		result.Segments = append(result.Segments, models.SegmentResult{
			Segment: s, Revenue: 10 * float64(o.conversions), Conversions: o.conversions,
		})
	}
	p.RecordAuction(auction)
	p.RecordResult(result)
}

func homeCapacity(total int) models.CapacityInfo {
	return models.CapacityInfo{
		TotalCapacity:         total,
		WindowLength:          5,
		SpecialtyManufacturer: "m1",
		SpecialtyComponent:    "c1",
	}
}

func TestPortfolioControllerIsIdempotent(t *testing.T) {
	p := newTestPortfolio(t, config.StrategyDemand, homeCapacity(100))
	a := p.Controller(segM1)
	b := p.Controller(segM1)
	assert.Same(t, a, b)
	assert.Equal(t, []models.Segment{segM1}, p.Segments())
	assert.InDelta(t, 10.0, a.Bid().Price, 1e-9)
}

func TestPortfolioOpenBelowThreshold(t *testing.T) {
	p := newTestPortfolio(t, config.StrategyCapacity, homeCapacity(100), segBroad, segM1, segM1C1)
	p.Bids(nil)
	playPeriod(p, nil, map[models.Segment]periodOutcome{
		segBroad: {cost: 10, conversions: 10},
		segM1:    {cost: 10, conversions: 10},
	})

	bids := p.Bids(nil)
	require.Len(t, bids, 3)
	for _, b := range bids {
		assert.Equal(t, models.NoSpendCap, b.SpendCap, b.Segment.String())
	}
	assert.Equal(t, OutcomeOpen, p.LastAdmission().Outcome)
	assert.Equal(t, 20, p.LastAdmission().UsedCapacity)
	assert.Equal(t, models.NoSpendCap, p.DailyCap())
}

func TestPortfolioShapesLeastEfficient(t *testing.T) {
	p := newTestPortfolio(t, config.StrategyCapacity, homeCapacity(100),
		segBroad, segM1, segC1, segM1C1, segM2, segM2C1)
	p.Bids(nil)
	playPeriod(p, nil, map[models.Segment]periodOutcome{
		segBroad: {cost: 50, conversions: 10},
		segM1:    {cost: 10, conversions: 10},
		segC1:    {cost: 20, conversions: 10},
		segM1C1:  {cost: 5, conversions: 15},
		segM2:    {cost: 40, conversions: 10},
		segM2C1:  {cost: 1, conversions: 10},
	})
	require.InDelta(t, 0.65, p.UsedCapacityFraction(), 1e-9)

	p.Bids(nil)

	adm := p.LastAdmission()
	assert.Equal(t, OutcomeShaped, adm.Outcome)
	assert.Equal(t, 65, adm.UsedCapacity)
	assert.Equal(t, 5, adm.Ranked)
	assert.Equal(t, 2, adm.Cutoff)
	require.Len(t, adm.Ranking, 5)
	assert.Equal(t, segBroad, adm.Ranking[0].Segment)
	assert.InDelta(t, 5.0, adm.Ranking[0].Score, 1e-9)
	assert.Equal(t, ActionSuppressed, adm.Ranking[1].Action)
	assert.Equal(t, ActionReleased, adm.Ranking[2].Action)
	assert.Equal(t, segM2C1, adm.Ranking[4].Segment)

	assert.Equal(t, StateSuppressed, p.Controller(segBroad).State())
	assert.Equal(t, StateSuppressed, p.Controller(segM2).State())
	assert.Equal(t, models.CapAt(1), p.Controller(segBroad).Bid().SpendCap)
	for _, s := range []models.Segment{segM1, segC1, segM1C1, segM2C1} {
		assert.Equal(t, StateActive, p.Controller(s).State(), s.String())
		assert.Equal(t, models.NoSpendCap, p.Controller(s).Bid().SpendCap, s.String())
	}
}

func TestPortfolioNeverSuppressesHome(t *testing.T) {
	p := newTestPortfolio(t, config.StrategyCapacity, homeCapacity(10), segM1, segM1C1)
	p.Bids(nil)
	playPeriod(p, nil, map[models.Segment]periodOutcome{
		segM1:   {cost: 1, conversions: 5},
		segM1C1: {cost: 500, conversions: 5},
	})
	p.Bids(nil)

	assert.Equal(t, StateActive, p.Controller(segM1C1).State())
	assert.Equal(t, StateSuppressed, p.Controller(segM1).State())
}

func TestPortfolioDemandWeightedRanking(t *testing.T) {
	outcome := map[models.Segment]periodOutcome{
		segBroad: {cost: 40, conversions: 10},
		segM1:    {cost: 30, conversions: 10},
		segC1:    {cost: 20, conversions: 10},
		segM2:    {cost: 10, conversions: 10},
	}
	demand := fakeDemand{segBroad: 1, segM1: 10, segC1: 100, segM2: 10}

	plain := newTestPortfolio(t, config.StrategyCapacity, homeCapacity(100), segBroad, segM1, segC1, segM2, segM1C1)
	plain.policy.Threshold = 0.25
	plain.policy.ScaleFactor = 4.0 / 3.0
	plain.Bids(demand)
	playPeriod(plain, demand, outcome)
	plain.Bids(demand)
	require.Equal(t, 1, plain.LastAdmission().Cutoff)
	assert.Equal(t, StateSuppressed, plain.Controller(segBroad).State())

	weighted := newTestPortfolio(t, config.StrategyDemand, homeCapacity(100), segBroad, segM1, segC1, segM2, segM1C1)
	weighted.Bids(demand)
	playPeriod(weighted, demand, outcome)
	weighted.Bids(demand)
	require.Equal(t, 1, weighted.LastAdmission().Cutoff)
	assert.Equal(t, StateSuppressed, weighted.Controller(segC1).State())
	assert.Equal(t, StateActive, weighted.Controller(segBroad).State())
}

func TestPortfolioDegenerateFallback(t *testing.T) {
	p := newTestPortfolio(t, config.StrategyDemand, homeCapacity(100),
		segBroad, segM1, segC1, segM2, segM1C1, segM2C1)
	p.Bids(nil)
	playPeriod(p, nil, map[models.Segment]periodOutcome{
		segBroad: {cost: 20, conversions: 20},
		segM1:    {cost: 20, conversions: 20},
		segC1:    {cost: 20, conversions: 20},
		segM2:    {cost: 20, conversions: 20},
		segM1C1:  {cost: 3, conversions: 5},
		segM2C1:  {cost: 9, conversions: 5},
	})
	p.Bids(nil)

	adm := p.LastAdmission()
	assert.Equal(t, OutcomeDegenerate, adm.Outcome)
	assert.Equal(t, 4, adm.Ranked)
	assert.GreaterOrEqual(t, adm.Cutoff, adm.Ranked-1)

	capped := p.Controller(segM2C1)
	assert.Equal(t, StateActive, capped.State())
	require.True(t, capped.Bid().SpendCap.Limited)
	assert.InDelta(t, 10.0, capped.Bid().SpendCap.Amount, 1e-9)

	assert.Equal(t, models.NoSpendCap, p.Controller(segM1C1).Bid().SpendCap)
	assert.Equal(t, StateSuppressed, p.Controller(segBroad).State())
}

func TestPortfolioDegenerateFallbackLeavesUnspentSegmentsUncapped(t *testing.T) {
	p := newTestPortfolio(t, config.StrategyDemand, homeCapacity(100),
		segBroad, segM1, segC1, segM2, segM1C1, segM2C1)
	p.Bids(nil)
	playPeriod(p, nil, map[models.Segment]periodOutcome{
		segBroad: {cost: 20, conversions: 20},
		segM1:    {cost: 20, conversions: 20},
		segC1:    {cost: 20, conversions: 20},
		segM2:    {cost: 20, conversions: 20},
		segM1C1:  {cost: 3, conversions: 5},
		segM2C1:  {cost: 0, conversions: 5},
	})
	p.Bids(nil)

	require.Equal(t, OutcomeDegenerate, p.LastAdmission().Outcome)
	unspent := p.Controller(segM2C1)
	assert.Equal(t, StateActive, unspent.State())
	assert.Equal(t, models.NoSpendCap, unspent.Bid().SpendCap)
}

func TestPortfolioAdmissionOncePerPeriod(t *testing.T) {
	p := newTestPortfolio(t, config.StrategyCapacity, homeCapacity(10), segM1, segM2)
	p.Bids(nil)
	playPeriod(p, nil, map[models.Segment]periodOutcome{
		segM1: {cost: 10, conversions: 4},
		segM2: {cost: 50, conversions: 4},
	})
	p.Bid(segM1, nil)
	require.Equal(t, StateSuppressed, p.Controller(segM2).State())

	// no new reports, so the release sticks
	p.Controller(segM2).Release()
	p.Bid(segM2, nil)
	assert.Equal(t, StateActive, p.Controller(segM2).State())

	p.RecordResult(models.ResultReport{})
	p.Bid(segM2, nil)
	assert.Equal(t, StateSuppressed, p.Controller(segM2).State())
}

func TestPortfolioMissingSegmentsRecordNoActivity(t *testing.T) {
	p := newTestPortfolio(t, config.StrategyDemand, homeCapacity(100), segBroad, segM1)
	p.Bids(nil)
	p.Bids(nil)
	p.RecordAuction(models.AuctionReport{Segments: []models.SegmentAuction{
		{Segment: segBroad, Impressions: 5, Cost: 2, AvgPosition: 1},
	}})

	m1 := p.Controller(segM1)
	assert.Equal(t, 1, m1.CostCount())
	assert.Equal(t, m1.Bid().Price, m1.Floor())
	assert.Equal(t, 0.0, p.Controller(segBroad).Floor())
}

func TestPortfolioCreatesUnknownSegments(t *testing.T) {
	p := newTestPortfolio(t, config.StrategyDemand, homeCapacity(100), segBroad)
	p.RecordResult(models.ResultReport{Segments: []models.SegmentResult{
		{Segment: segM2C1, Conversions: 3},
	}})
	assert.Equal(t, []models.Segment{segBroad, segM2C1}, p.Segments())
	assert.Equal(t, 3, p.UsedCapacity())
}

func TestPortfolioUsedCapacityWindow(t *testing.T) {
	capacity := homeCapacity(100)
	capacity.WindowLength = 2
	p := newTestPortfolio(t, config.StrategyDemand, capacity, segM1)
	for _, n := range []int{5, 6, 7} {
		p.RecordResult(models.ResultReport{Segments: []models.SegmentResult{{Segment: segM1, Conversions: n}}})
	}
	assert.Equal(t, 13, p.UsedCapacity())
	assert.InDelta(t, 0.13, p.UsedCapacityFraction(), 1e-9)
}

func TestPortfolioUnknownCapacity(t *testing.T) {
	p := newTestPortfolio(t, config.StrategyDemand, models.CapacityInfo{}, segM1)
	p.RecordResult(models.ResultReport{Segments: []models.SegmentResult{{Segment: segM1, Conversions: 9}}})
	assert.Equal(t, 9, p.UsedCapacity())
	assert.Equal(t, 0.0, p.UsedCapacityFraction())
}
