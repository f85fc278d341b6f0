package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidder/internal/config"
	"github.com/patrickwarner/openbidder/internal/logic"
	"github.com/patrickwarner/openbidder/internal/models"
	"github.com/patrickwarner/openbidder/internal/observability"
)

type recordingSink struct {
	published []models.BidSubmission
	purged    []string
	err       error
}

func (s *recordingSink) Publish(_ context.Context, sub models.BidSubmission) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, sub)
	return nil
}

func (s *recordingSink) Purge(_ context.Context, runID string) error {
	s.purged = append(s.purged, runID)
	return s.err
}

var (
	broad = models.Segment{}
	mfg   = models.Segment{Manufacturer: "lioneer"}
	comp  = models.Segment{Component: "tv"}
	home  = models.Segment{Manufacturer: "lioneer", Component: "tv"}
)

func testConfig() config.Config {
	return config.Config{
		Strategy:        config.StrategyDemand,
		MinimalSpendCap: 1,
		PricePrecision:  3,
		RandomSeed:      7,
	}
}

func testCatalog() models.CatalogSnapshot {
	return models.CatalogSnapshot{Products: []models.Product{
		{Manufacturer: "lioneer", Component: "tv", SalesProfit: 100},
	}}
}

func testCapacity() models.CapacityInfo {
	return models.CapacityInfo{
		TotalCapacity:         100,
		WindowLength:          5,
		SpecialtyManufacturer: "lioneer",
		SpecialtyComponent:    "tv",
	}
}

func newTestEngine(t *testing.T, cfg config.Config, sink Sink) *Engine {
	t.Helper()
	e, err := New(cfg, zap.NewNop(), observability.NewNoOpRegistry(), sink)
	require.NoError(t, err)
	return e
}

func readyEngine(t *testing.T, cfg config.Config, sink Sink) *Engine {
	t.Helper()
	e := newTestEngine(t, cfg, sink)
	require.NoError(t, e.HandleCatalog(testCatalog()))
	require.NoError(t, e.HandleCapacity(testCapacity()))
	return e
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy = "greedy"
	_, err := New(cfg, nil, nil, nil)
	assert.ErrorIs(t, err, logic.ErrUnknownStrategy)
}

func TestTickRequiresSetup(t *testing.T) {
	e := newTestEngine(t, testConfig(), nil)
	_, err := e.Tick(context.Background())
	assert.ErrorIs(t, err, ErrNoCatalog)

	require.NoError(t, e.HandleCatalog(testCatalog()))
	_, err = e.Tick(context.Background())
	assert.ErrorIs(t, err, ErrNoCapacity)
}

func TestCatalogOncePerRun(t *testing.T) {
	e := newTestEngine(t, testConfig(), nil)
	require.NoError(t, e.HandleCatalog(testCatalog()))
	assert.ErrorIs(t, e.HandleCatalog(testCatalog()), ErrCatalogLoaded)
}

func TestCapacityValidation(t *testing.T) {
	e := newTestEngine(t, testConfig(), nil)
	assert.ErrorIs(t, e.HandleCapacity(models.CapacityInfo{TotalCapacity: 0, WindowLength: 5}), ErrInvalidCapacity)
	assert.ErrorIs(t, e.HandleCapacity(models.CapacityInfo{TotalCapacity: 10, WindowLength: 0}), ErrInvalidCapacity)

	// replacing capacity is fine until bidding state exists
	require.NoError(t, e.HandleCapacity(testCapacity()))
	require.NoError(t, e.HandleCapacity(testCapacity()))
	require.NoError(t, e.HandleCatalog(testCatalog()))
	assert.ErrorIs(t, e.HandleCapacity(testCapacity()), ErrCapacityLoaded)
}

func TestReportsBeforeSetupAreDropped(t *testing.T) {
	e := newTestEngine(t, testConfig(), nil)
	assert.ErrorIs(t, e.HandleAuctionReport(models.AuctionReport{}), ErrNoCatalog)
	assert.ErrorIs(t, e.HandleResultReport(models.ResultReport{}), ErrNoCatalog)
}

func TestTickProducesBidSet(t *testing.T) {
	sink := &recordingSink{}
	e := readyEngine(t, testConfig(), sink)

	sub, err := e.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, e.RunID(), sub.RunID)
	assert.Equal(t, 0, sub.Period)
	assert.Equal(t, models.NoSpendCap, sub.DailyCap)
	require.Len(t, sub.Bids, 4)

	want := map[models.Segment]float64{broad: 5.25, mfg: 6.3, comp: 6.3, home: 11.55}
	for _, b := range sub.Bids {
		assert.InDelta(t, want[b.Segment], b.Price, 1e-9, b.Segment.String())
	}
	assert.Equal(t, home, sub.Bids[3].Segment)
	assert.True(t, sub.Bids[3].Creative.Targeted())
	assert.False(t, sub.Bids[0].Creative.Targeted())

	assert.Equal(t, 1, e.Period())
	require.Len(t, sink.published, 1)
	assert.Equal(t, sub.RunID, sink.published[0].RunID)
}

func TestTickSurvivesSinkFailure(t *testing.T) {
	sink := &recordingSink{err: errors.New("connection refused")}
	e := readyEngine(t, testConfig(), sink)

	sub, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Len(t, sub.Bids, 4)
	assert.Equal(t, 1, e.Period())
}

func TestReportsFeedPortfolioAndForecasters(t *testing.T) {
	e := readyEngine(t, testConfig(), nil)
	ctx := context.Background()
	_, err := e.Tick(ctx)
	require.NoError(t, err)
	_, err = e.Tick(ctx)
	require.NoError(t, err)

	require.NoError(t, e.HandleAuctionReport(models.AuctionReport{Period: 1, Segments: []models.SegmentAuction{
		{Segment: mfg, Impressions: 40, Clicks: 4, Cost: 9, AvgPosition: 2, Competitors: []models.AdObservation{
			{Advertiser: "rival", Ad: &models.Creative{Manufacturer: "lioneer", Component: "tv"}, Position: 1},
		}},
	}}))
	require.NoError(t, e.HandleResultReport(models.ResultReport{Period: 1, Segments: []models.SegmentResult{
		{Segment: mfg, Revenue: 2, Conversions: 1},
	}}))

	snaps, err := e.Segments()
	require.NoError(t, err)
	require.Len(t, snaps, 4)
	require.NotNil(t, snaps[1].Profit)
	assert.InDelta(t, -7.0, *snaps[1].Profit, 1e-9)

	assert.Equal(t, []string{"rival"}, e.Competitors())
	view, ok := e.Competitor("rival")
	require.True(t, ok)
	assert.Equal(t, mfg, view[1].Segment)
	assert.True(t, view[1].PredictedTargeted)
	_, ok = e.Competitor("nobody")
	assert.False(t, ok)

	sub, err := e.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Period)
	assert.Less(t, sub.Bids[1].Price, 6.6)

	adm, err := e.Admission()
	require.NoError(t, err)
	assert.Equal(t, logic.OutcomeOpen, adm.Outcome)
	assert.Equal(t, 1, adm.UsedCapacity)
}

func TestOmittedSegmentForecastsNoDemand(t *testing.T) {
	e := readyEngine(t, testConfig(), nil)

	require.NoError(t, e.HandleAuctionReport(models.AuctionReport{Period: 0, Segments: []models.SegmentAuction{
		{Segment: mfg, Impressions: 500},
		{Segment: home, Impressions: 10},
	}}))
	require.NoError(t, e.HandleAuctionReport(models.AuctionReport{Period: 1, Segments: []models.SegmentAuction{
		{Segment: home, Impressions: 10},
	}}))

	assert.Equal(t, 0, e.demand.Predict(mfg))
	assert.Equal(t, 2, e.demand.Periods(mfg))
	assert.Equal(t, 2, e.demand.Periods(broad))
	assert.Equal(t, 10, e.demand.PredictTotal())
}

func TestBroadMinCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.BroadMinCapacity = 500
	e := readyEngine(t, cfg, nil)

	sub, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, broad, sub.Bids[0].Segment)
	assert.Equal(t, 0.0, sub.Bids[0].Price)
}

func TestSeedJitterIsDeterministic(t *testing.T) {
	cfg := testConfig()
	cfg.SeedJitter = 0.2

	a, err := readyEngine(t, cfg, nil).Tick(context.Background())
	require.NoError(t, err)
	b, err := readyEngine(t, cfg, nil).Tick(context.Background())
	require.NoError(t, err)

	for i := range a.Bids {
		assert.Equal(t, a.Bids[i].Price, b.Bids[i].Price)
	}
}

func TestFinishStartsNewRun(t *testing.T) {
	sink := &recordingSink{}
	e := readyEngine(t, testConfig(), sink)
	_, err := e.Tick(context.Background())
	require.NoError(t, err)

	first := e.RunID()
	ended := e.Finish(context.Background())
	assert.Equal(t, first, ended)
	assert.Equal(t, []string{first}, sink.purged)
	assert.NotEqual(t, first, e.RunID())
	assert.Equal(t, 0, e.Period())

	_, err = e.Tick(context.Background())
	assert.ErrorIs(t, err, ErrNoCatalog)
	assert.Empty(t, e.Competitors())
	require.NoError(t, e.HandleCatalog(testCatalog()))
}
