// Package engine drives one bidding run: it takes the setup messages and the
// per-period reports from the auction host, feeds them to the portfolio and
// the forecasters, and produces the bid set for every period tick.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidder/internal/config"
	"github.com/patrickwarner/openbidder/internal/forecasting"
	"github.com/patrickwarner/openbidder/internal/logic"
	"github.com/patrickwarner/openbidder/internal/models"
	"github.com/patrickwarner/openbidder/internal/observability"
)

// Sink receives every bid submission of a run. Implementations must not
// retain the submission.
type Sink interface {
	Publish(ctx context.Context, sub models.BidSubmission) error
	Purge(ctx context.Context, runID string) error
}

// Engine owns every piece of state of one run. It is not safe for concurrent
// use; callers serialize access.
type Engine struct {
	cfg     config.Config
	policy  logic.AdmissionPolicy
	ctrlCfg logic.ControllerConfig
	rounder logic.Rounder
	logger  *zap.Logger
	metrics observability.MetricsRegistry
	sink    Sink
	tracer  trace.Tracer
	rng     *rand.Rand

	runID       string
	period      int
	catalog     *models.CatalogSnapshot
	capacity    *models.CapacityInfo
	segments    *models.SegmentRegistry
	portfolio   *logic.Portfolio
	demand      *forecasting.DemandPredictor
	competitors *forecasting.CompetitorRegistry
}

// New creates an engine for a fresh run. sink may be nil.
func New(cfg config.Config, logger *zap.Logger, metrics observability.MetricsRegistry, sink Sink) (*Engine, error) {
	policy, err := logic.PolicyFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("admission policy: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	e := &Engine{
		cfg:     cfg,
		policy:  policy,
		ctrlCfg: logic.ControllerConfigFromConfig(cfg),
		rounder: logic.NewRounder(cfg.PricePrecision),
		logger:  logger,
		metrics: metrics,
		sink:    sink,
		tracer:  observability.Tracer("engine"),
	}
	e.reset()
	return e, nil
}

func (e *Engine) reset() {
	e.runID = uuid.NewString()
	e.period = 0
	e.catalog = nil
	e.capacity = nil
	e.segments = nil
	e.portfolio = nil
	e.demand = nil
	e.competitors = nil
	e.rng = rand.New(rand.NewSource(e.cfg.RandomSeed))
}

// RunID identifies the current run.
func (e *Engine) RunID() string { return e.runID }

// Period is the number of bid sets produced so far in this run.
func (e *Engine) Period() int { return e.period }

// HandleCatalog builds the segment registry from the product catalog.
func (e *Engine) HandleCatalog(catalog models.CatalogSnapshot) error {
	if e.segments != nil {
		return ErrCatalogLoaded
	}
	e.catalog = &catalog
	e.segments = models.NewSegmentRegistry(catalog)
	e.demand = forecasting.NewDemandPredictor(e.segments.Segments())
	e.competitors = forecasting.NewCompetitorRegistry(e.segments.Segments(), e.logger)
	e.logger.Info("catalog loaded",
		zap.String("run_id", e.runID),
		zap.Int("products", len(catalog.Products)),
		zap.Int("segments", e.segments.Len()),
	)
	e.maybeBuildPortfolio()
	return nil
}

// HandleCapacity records the advertiser's distribution constraints.
func (e *Engine) HandleCapacity(info models.CapacityInfo) error {
	if info.TotalCapacity <= 0 || info.WindowLength <= 0 {
		return fmt.Errorf("%w: capacity %d, window %d", ErrInvalidCapacity, info.TotalCapacity, info.WindowLength)
	}
	if e.portfolio != nil {
		return ErrCapacityLoaded
	}
	e.capacity = &info
	e.logger.Info("capacity loaded",
		zap.String("run_id", e.runID),
		zap.Int("capacity", info.TotalCapacity),
		zap.Int("window", info.WindowLength),
		zap.Stringer("home", info.Home()),
	)
	e.maybeBuildPortfolio()
	return nil
}

func (e *Engine) maybeBuildPortfolio() {
	if e.segments == nil || e.capacity == nil || e.portfolio != nil {
		return
	}
	e.portfolio = logic.NewPortfolio(e.policy, *e.capacity, e.ctrlCfg, e.rounder, e.seed, e.logger, e.metrics)
	for _, s := range e.segments.Segments() {
		e.portfolio.Controller(s)
	}
}

// seed returns the average profit a segment's first price derives from.
func (e *Engine) seed(s models.Segment) float64 {
	if s.Level() == models.LevelBroad && e.cfg.BroadMinCapacity > 0 &&
		e.capacity.TotalCapacity < e.cfg.BroadMinCapacity {
		return 0
	}
	avg := 0.0
	if e.catalog != nil {
		avg = e.catalog.AverageProfit(s)
	}
	if e.cfg.SeedJitter > 0 {
		avg *= 1 + e.cfg.SeedJitter*(2*e.rng.Float64()-1)
	}
	return avg
}

func (e *Engine) ready() error {
	if e.segments == nil {
		return ErrNoCatalog
	}
	if e.capacity == nil {
		return ErrNoCapacity
	}
	return nil
}

// HandleAuctionReport ingests one period's auction feedback. Reports that
// arrive before setup completes are dropped.
func (e *Engine) HandleAuctionReport(report models.AuctionReport) error {
	if err := e.ready(); err != nil {
		e.logger.Warn("dropping auction report", zap.Int("period", report.Period), zap.Error(err))
		return err
	}
	e.demand.HandleAuctionReport(report)
	e.competitors.HandleAuctionReport(report)
	e.portfolio.RecordAuction(report)
	e.metrics.IncrementReports("auction")
	e.logger.Debug("auction report ingested",
		zap.Int("period", report.Period),
		zap.Int("segments", len(report.Segments)),
	)
	return nil
}

// HandleResultReport ingests one period's sales outcome.
func (e *Engine) HandleResultReport(report models.ResultReport) error {
	if err := e.ready(); err != nil {
		e.logger.Warn("dropping result report", zap.Int("period", report.Period), zap.Error(err))
		return err
	}
	e.portfolio.RecordResult(report)
	e.metrics.IncrementReports("result")
	e.logger.Debug("result report ingested",
		zap.Int("period", report.Period),
		zap.Int("segments", len(report.Segments)),
		zap.Int("used_capacity", e.portfolio.UsedCapacity()),
	)
	return nil
}

// Tick computes the bid set for the current period and advances the period.
func (e *Engine) Tick(ctx context.Context) (models.BidSubmission, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Tick")
	defer span.End()

	if err := e.ready(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return models.BidSubmission{}, err
	}

	start := time.Now()
	sub := models.BidSubmission{
		RunID:    e.runID,
		Period:   e.period,
		Bids:     e.portfolio.Bids(e.demand),
		DailyCap: e.portfolio.DailyCap(),
	}
	e.period++

	e.metrics.IncrementTicks()
	e.metrics.RecordTickLatency(time.Since(start))

	rate := observability.GetSamplingRate()
	for _, b := range sub.Bids {
		e.metrics.SetSegmentPrice(b.Segment.String(), b.Price)
		if observability.ShouldSample(rate) {
			e.logger.Debug("segment bid",
				zap.Int("period", sub.Period),
				zap.Stringer("segment", b.Segment),
				zap.Float64("price", b.Price),
				zap.Bool("capped", b.SpendCap.Limited),
			)
		}
	}

	adm := e.portfolio.LastAdmission()
	span.SetAttributes(
		attribute.String("run_id", e.runID),
		attribute.Int("period", sub.Period),
		attribute.Int("bids", len(sub.Bids)),
		attribute.String("admission", adm.Outcome),
		attribute.Float64("used_capacity", adm.UsedFraction),
	)

	if e.sink != nil {
		if err := e.sink.Publish(ctx, sub); err != nil {
			e.metrics.IncrementMirrorErrors()
			span.RecordError(err)
			e.logger.Error("mirror bid submission", zap.Int("period", sub.Period), zap.Error(err))
		}
	}
	return sub, nil
}

// Finish discards the run's state and mirrored data and starts a new run.
// It returns the identifier of the run that ended.
func (e *Engine) Finish(ctx context.Context) string {
	ended := e.runID
	if e.sink != nil {
		if err := e.sink.Purge(ctx, ended); err != nil {
			e.metrics.IncrementMirrorErrors()
			e.logger.Error("purge run mirror", zap.String("run_id", ended), zap.Error(err))
		}
	}
	e.logger.Info("run finished", zap.String("run_id", ended), zap.Int("periods", e.period))
	e.reset()
	return ended
}

// Segments returns a snapshot of every segment controller.
func (e *Engine) Segments() ([]logic.ControllerSnapshot, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	segs := e.portfolio.Segments()
	out := make([]logic.ControllerSnapshot, 0, len(segs))
	for _, s := range segs {
		out = append(out, e.portfolio.Controller(s).Snapshot())
	}
	return out, nil
}

// Admission returns the outcome of the last capacity admission run.
func (e *Engine) Admission() (logic.Admission, error) {
	if err := e.ready(); err != nil {
		return logic.Admission{}, err
	}
	return e.portfolio.LastAdmission(), nil
}

// Competitor returns what is known of the named competitor.
func (e *Engine) Competitor(name string) ([]forecasting.SegmentView, bool) {
	if e.competitors == nil {
		return nil, false
	}
	c, ok := e.competitors.Lookup(name)
	if !ok {
		return nil, false
	}
	return c.View(e.competitors.Segments()), true
}

// Competitors returns the names of every competitor seen in this run.
func (e *Engine) Competitors() []string {
	if e.competitors == nil {
		return nil
	}
	return e.competitors.Names()
}
