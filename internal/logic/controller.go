// Package logic contains the runtime decision making of the bidder.
//
// A SegmentController hill-climbs the bid price of one market segment using
// the profit it observes with a one-period lag. The Portfolio owns every
// controller and, once per period, runs a capacity admission policy that
// suppresses the least efficient segments when the advertiser is close to
// exhausting its distribution capacity.
//
// Everything here is single-threaded: callers ingest all reports for a period
// before asking for that period's bids.
package logic

import (
	"math"

	"github.com/patrickwarner/openbidder/internal/models"
)

// ControllerState is the lifecycle state of a SegmentController.
type ControllerState int

const (
	StateUninitialized ControllerState = iota
	StateActive
	StateSuppressed
)

func (s ControllerState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateSuppressed:
		return "suppressed"
	default:
		return "uninitialized"
	}
}

// ControllerConfig tunes the hill-climbing of every segment controller.
type ControllerConfig struct {
	// SeedFractions maps a segment's specificity level to the fraction of
	// the segment's average profit used as the initial price.
	SeedFractions [3]float64
	// Movement is the step size as a fraction of the seed price.
	Movement float64
}

// DefaultControllerConfig returns the tuned production defaults.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		SeedFractions: [3]float64{0.05, 0.06, 0.11},
		Movement:      0.05,
	}
}

// SegmentController is the adaptive price state machine of one segment.
type SegmentController struct {
	segment models.Segment
	cfg     ControllerConfig
	rounder Rounder

	state ControllerState
	bid   models.Bid
	step  float64
	floor float64

	prices    history[float64]
	costs     history[float64]
	revenues  history[float64]
	cpcs      history[float64]
	positions history[float64]
	clicks    history[int]
	convs     history[int]
}

// NewSegmentController returns an uninitialized controller for segment.
func NewSegmentController(segment models.Segment, cfg ControllerConfig, rounder Rounder) *SegmentController {
	return &SegmentController{
		segment: segment,
		cfg:     cfg,
		rounder: rounder,
	}
}

// Initialize seeds the price at a level-dependent fraction of the segment's
// average profit and sets a symmetric step. Fully specified segments show
// the matching product; broader segments show the generic ad.
func (c *SegmentController) Initialize(avgSegmentProfit float64) {
	level := c.segment.Level()
	seed := c.rounder.Round(avgSegmentProfit * c.cfg.SeedFractions[level])
	if seed < 0 || math.IsNaN(seed) {
		seed = 0
	}

	var creative models.Creative
	if c.segment.FullySpecified() {
		creative = models.Creative{Manufacturer: c.segment.Manufacturer, Component: c.segment.Component}
	}

	c.bid = models.Bid{Price: seed, Creative: creative, SpendCap: c.bid.SpendCap}
	c.step = c.cfg.Movement * seed
	if c.state == StateUninitialized {
		c.state = StateActive
	}
}

// NextBid computes and records the price for the coming period.
func (c *SegmentController) NextBid() models.Bid {
	switch c.state {
	case StateUninitialized:
		return c.bid
	case StateSuppressed:
		// frozen, but still recorded so the feedback lag stays aligned
		c.prices.push(c.bid.Price)
		return c.bid
	}

	if c.shouldReverse() {
		c.step = -c.step
	}

	price := c.rounder.Round(c.bid.Price + c.step)
	if price < c.floor {
		price = c.floor
	}
	c.bid.Price = price
	c.prices.push(price)
	return c.bid
}

func (c *SegmentController) shouldReverse() bool {
	p0, ok0 := c.Profit(0)
	if ok0 && p0 < 0 && c.step > 0 {
		return true
	}
	if c.step < 0 && c.bid.Price+c.step < c.floor {
		return true
	}
	if p1, ok1 := c.Profit(1); ok0 && ok1 && p1 > p0 {
		return true
	}
	return false
}

// RecordAuction ingests the segment's auction feedback. Cost is only kept once
// at least two prices have been submitted, since the first report describes a
// period the controller did not price.
func (c *SegmentController) RecordAuction(a models.SegmentAuction) {
	if c.lagged(c.costs.len()) {
		c.costs.push(a.Cost)
	}
	c.clicks.push(a.Clicks)
	c.cpcs.push(a.AvgCPC)
	c.positions.push(a.AvgPosition)

	// not shown at all: never go below what we bid then
	if c.state != StateUninitialized &&
		(a.Impressions == 0 || a.AvgPosition == 0 || math.IsNaN(a.AvgPosition)) {
		c.floor = c.bid.Price
	}
}

// RecordResult ingests the segment's sales outcome. Revenue follows the same
// lag rule as cost.
func (c *SegmentController) RecordResult(r models.SegmentResult) {
	if c.lagged(c.revenues.len()) {
		c.revenues.push(r.Revenue)
	}
	c.convs.push(r.Conversions)
}

func (c *SegmentController) lagged(n int) bool {
	return c.prices.len() >= 2 && n < c.prices.len()-1
}

// Suppress freezes the price and imposes a blocking spend cap.
func (c *SegmentController) Suppress(spendCap float64) {
	c.bid.SpendCap = models.CapAt(spendCap)
	if c.state != StateUninitialized {
		c.state = StateSuppressed
	}
}

// Limit imposes a spend cap while the price keeps exploring.
func (c *SegmentController) Limit(spendCap float64) {
	c.bid.SpendCap = models.CapAt(spendCap)
	if c.state != StateUninitialized {
		c.state = StateActive
	}
}

// Release removes any spend cap.
func (c *SegmentController) Release() {
	c.bid.SpendCap = models.NoSpendCap
	if c.state != StateUninitialized {
		c.state = StateActive
	}
}

// Segment is the segment this controller prices.
func (c *SegmentController) Segment() models.Segment { return c.segment }

// State is the controller's lifecycle state.
func (c *SegmentController) State() ControllerState { return c.state }

// Bid is the most recent bid, including its creative and spend cap.
func (c *SegmentController) Bid() models.Bid { return c.bid }

// Step is the signed price change applied on the next active bid.
func (c *SegmentController) Step() float64 { return c.step }

// Floor is the lowest price the controller will bid.
func (c *SegmentController) Floor() float64 { return c.floor }

// PriceCount is the number of prices submitted so far.
func (c *SegmentController) PriceCount() int { return c.prices.len() }

// CostCount is the number of cost entries recorded so far.
func (c *SegmentController) CostCount() int { return c.costs.len() }

// Profit returns revenue minus cost offset periods ago. ok is false when that
// period has not completed yet.
func (c *SegmentController) Profit(offset int) (float64, bool) {
	rev, ok := c.revenues.at(offset)
	if !ok {
		return 0, false
	}
	cost, ok := c.costs.at(offset)
	if !ok {
		return 0, false
	}
	return rev - cost, true
}

// Conversions returns the conversions offset periods ago, 0 if unknown.
func (c *SegmentController) Conversions(offset int) int {
	v, _ := c.convs.at(offset)
	return v
}

// AverageCostPerConversion is total cost over the conversions of the same
// periods. A segment that spent without converting is charged as if it
// converted once.
func (c *SegmentController) AverageCostPerConversion() float64 {
	cost := 0.0
	for _, v := range c.costs.all() {
		cost += v
	}
	// conversions of periods that were never priced have no cost entry
	convs := 0
	for i := 0; i < c.costs.len(); i++ {
		convs += c.Conversions(i)
	}
	if convs == 0 {
		return cost
	}
	return cost / float64(convs)
}

// AverageCost is the mean cost over periods with non-zero cost.
func (c *SegmentController) AverageCost() float64 {
	total, count := 0.0, 0
	for _, v := range c.costs.all() {
		if v > 0 {
			total += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// MaxObservedCost is the largest single-period cost seen.
func (c *SegmentController) MaxObservedCost() float64 {
	m := 0.0
	for _, v := range c.costs.all() {
		if v > m {
			m = v
		}
	}
	return m
}

// LatestClicks is the click count of the most recent auction report.
func (c *SegmentController) LatestClicks() int { return c.clicks.latest() }

// LatestCPC is the average cost per click of the most recent auction report.
func (c *SegmentController) LatestCPC() float64 { return c.cpcs.latest() }

// LatestPosition is the average position of the most recent auction report.
func (c *SegmentController) LatestPosition() float64 { return c.positions.latest() }

// LatestRevenue is the most recent lagged revenue entry.
func (c *SegmentController) LatestRevenue() float64 { return c.revenues.latest() }

// ControllerSnapshot is a read-only view of a controller for reporting.
type ControllerSnapshot struct {
	Segment           models.Segment `json:"segment"`
	State             string         `json:"state"`
	Bid               models.Bid     `json:"bid"`
	Step              float64        `json:"step"`
	Floor             float64        `json:"floor"`
	AverageCost       float64        `json:"average_cost"`
	CostPerConversion float64        `json:"cost_per_conversion"`
	Profit            *float64       `json:"profit,omitempty"`
}

// Snapshot returns the controller's current state and derived metrics.
func (c *SegmentController) Snapshot() ControllerSnapshot {
	s := ControllerSnapshot{
		Segment:           c.segment,
		State:             c.state.String(),
		Bid:               c.bid,
		Step:              c.step,
		Floor:             c.floor,
		AverageCost:       c.AverageCost(),
		CostPerConversion: c.AverageCostPerConversion(),
	}
	if p, ok := c.Profit(0); ok {
		s.Profit = &p
	}
	return s
}
