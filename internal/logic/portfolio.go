package logic

import (
	"sort"

	"go.uber.org/zap"

	"github.com/patrickwarner/openbidder/internal/models"
	"github.com/patrickwarner/openbidder/internal/observability"
)

// Admission outcomes.
const (
	OutcomeOpen       = "open"
	OutcomeShaped     = "shaped"
	OutcomeDegenerate = "degenerate"
)

// DemandForecaster predicts per-segment and total impressions.
type DemandForecaster interface {
	Predict(segment models.Segment) int
	PredictTotal() int
}

// Seeder returns the average profit a new controller is seeded from.
type Seeder func(segment models.Segment) float64

// Actions taken on a ranked segment.
const (
	ActionSuppressed = "suppressed"
	ActionReleased   = "released"
	ActionLimited    = "limited"
)

// RankedSegment is one entry of the admission ranking, least efficient first.
type RankedSegment struct {
	Segment models.Segment `json:"segment"`
	Score   float64        `json:"score"`
	Action  string         `json:"action"`
}

// Admission summarises the last capacity admission run.
type Admission struct {
	UsedCapacity int             `json:"used_capacity"`
	UsedFraction float64         `json:"used_fraction"`
	Ranked       int             `json:"ranked"`
	Cutoff       int             `json:"cutoff"`
	Outcome      string          `json:"outcome"`
	Ranking      []RankedSegment `json:"ranking,omitempty"`
}

// Portfolio owns every SegmentController and shapes their spend caps to keep
// conversions inside the distribution capacity.
type Portfolio struct {
	policy   AdmissionPolicy
	capacity models.CapacityInfo
	ctrlCfg  ControllerConfig
	rounder  Rounder
	seed     Seeder

	controllers map[models.Segment]*SegmentController
	order       []models.Segment
	dirty       bool
	last        Admission

	logger  *zap.Logger
	metrics observability.MetricsRegistry
}

// NewPortfolio creates an empty portfolio. seed may be nil, in which case new
// controllers are seeded at price 0.
func NewPortfolio(policy AdmissionPolicy, capacity models.CapacityInfo, ctrlCfg ControllerConfig, rounder Rounder, seed Seeder, logger *zap.Logger, metrics observability.MetricsRegistry) *Portfolio {
	if seed == nil {
		seed = func(models.Segment) float64 { return 0 }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Portfolio{
		policy:      policy,
		capacity:    capacity,
		ctrlCfg:     ctrlCfg,
		rounder:     rounder,
		seed:        seed,
		controllers: make(map[models.Segment]*SegmentController),
		dirty:       true,
		logger:      logger,
		metrics:     metrics,
	}
}

// Controller returns the controller for segment, creating and seeding it on
// first reference.
func (p *Portfolio) Controller(segment models.Segment) *SegmentController {
	if c, ok := p.controllers[segment]; ok {
		return c
	}
	c := NewSegmentController(segment, p.ctrlCfg, p.rounder)
	c.Initialize(p.seed(segment))
	p.controllers[segment] = c
	p.order = append(p.order, segment)
	return c
}

// Segments returns the segments in creation order.
func (p *Portfolio) Segments() []models.Segment {
	out := make([]models.Segment, len(p.order))
	copy(out, p.order)
	return out
}

// RecordAuction feeds a period's auction report to every controller. Known
// segments missing from the report record a no-activity period.
func (p *Portfolio) RecordAuction(report models.AuctionReport) {
	entries := make(map[models.Segment]models.SegmentAuction, len(report.Segments))
	for _, e := range report.Segments {
		entries[e.Segment] = e
		p.Controller(e.Segment)
	}
	for _, s := range p.order {
		e, ok := entries[s]
		if !ok {
			e = models.SegmentAuction{Segment: s}
		}
		p.controllers[s].RecordAuction(e)
	}
	p.dirty = true
}

// RecordResult feeds a period's result report to every controller.
func (p *Portfolio) RecordResult(report models.ResultReport) {
	entries := make(map[models.Segment]models.SegmentResult, len(report.Segments))
	for _, e := range report.Segments {
		entries[e.Segment] = e
		p.Controller(e.Segment)
	}
	for _, s := range p.order {
		e, ok := entries[s]
		if !ok {
			e = models.SegmentResult{Segment: s}
		}
		p.controllers[s].RecordResult(e)
	}
	p.dirty = true
}

// UsedCapacity sums conversions over the distribution window across segments.
func (p *Portfolio) UsedCapacity() int {
	window := p.capacity.WindowLength
	if window <= 0 {
		window = 1
	}
	used := 0
	for _, s := range p.order {
		c := p.controllers[s]
		for i := 0; i < window; i++ {
			used += c.Conversions(i)
		}
	}
	return used
}

// UsedCapacityFraction is UsedCapacity over total capacity, 0 when the total
// is unknown.
func (p *Portfolio) UsedCapacityFraction() float64 {
	if p.capacity.TotalCapacity <= 0 {
		return 0
	}
	return float64(p.UsedCapacity()) / float64(p.capacity.TotalCapacity)
}

// Bid returns the segment's bid for this period, running the admission
// policy first if new reports arrived since it last ran.
func (p *Portfolio) Bid(segment models.Segment, demand DemandForecaster) models.Bid {
	if p.dirty {
		p.admit(demand)
	}
	return p.Controller(segment).NextBid()
}

// Bids returns the bid of every segment for this period.
func (p *Portfolio) Bids(demand DemandForecaster) []models.SegmentBid {
	out := make([]models.SegmentBid, 0, len(p.order))
	for _, s := range p.Segments() {
		out = append(out, models.SegmentBid{Segment: s, Bid: p.Bid(s, demand)})
	}
	return out
}

// DailyCap is the portfolio-level aggregate cap. Shaping happens per segment,
// so it is always unlimited.
func (p *Portfolio) DailyCap() models.SpendCap {
	return models.NoSpendCap
}

// LastAdmission returns the summary of the most recent admission run.
func (p *Portfolio) LastAdmission() Admission {
	return p.last
}

func (p *Portfolio) admit(demand DemandForecaster) {
	p.dirty = false

	used := p.UsedCapacity()
	frac := p.UsedCapacityFraction()
	p.metrics.SetUsedCapacity(frac)

	if frac < p.policy.Threshold {
		for _, s := range p.order {
			p.controllers[s].Release()
		}
		p.record(Admission{UsedCapacity: used, UsedFraction: frac, Outcome: OutcomeOpen})
		return
	}

	home := p.capacity.Home()
	ranked := make([]*SegmentController, 0, len(p.order))
	for _, s := range p.order {
		c := p.controllers[s]
		if p.policy.Protection.protects(s, home) {
			c.Release()
			continue
		}
		ranked = append(ranked, c)
	}

	scores := make(map[models.Segment]float64, len(ranked))
	for _, c := range ranked {
		scores[c.Segment()] = p.inefficiency(c, demand)
	}
	// least efficient first; ties keep creation order
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].Segment()] > scores[ranked[j].Segment()]
	})

	cutoff := p.policy.CutoffCount(len(ranked), frac)
	ranking := make([]RankedSegment, len(ranked))
	for i, c := range ranked {
		ranking[i] = RankedSegment{Segment: c.Segment(), Score: scores[c.Segment()], Action: ActionReleased}
		if i < cutoff {
			c.Suppress(p.policy.MinimalSpendCap)
			ranking[i].Action = ActionSuppressed
		} else {
			c.Release()
		}
	}

	outcome := OutcomeShaped
	if p.policy.Fallback == FallbackProportionalCap && cutoff >= len(ranked)-1 {
		outcome = OutcomeDegenerate
		limited := p.softenFullySpecified(home, frac)
		for i := range ranking {
			if limited[ranking[i].Segment] {
				ranking[i].Action = ActionLimited
			}
		}
	}

	p.record(Admission{
		UsedCapacity: used,
		UsedFraction: frac,
		Ranked:       len(ranked),
		Cutoff:       cutoff,
		Outcome:      outcome,
		Ranking:      ranking,
	})
}

// softenFullySpecified caps every non-home fully specified segment in
// proportion to what it usually spends, keeping a minimal presence there.
// Segments that never spent stay uncapped. It returns the segments that
// received a cap.
func (p *Portfolio) softenFullySpecified(home models.Segment, frac float64) map[models.Segment]bool {
	limited := make(map[models.Segment]bool)
	for _, s := range p.order {
		if s == home || !s.FullySpecified() {
			continue
		}
		c := p.controllers[s]
		avg := c.AverageCost()
		// without spend history a proportional cap would be the blocking one
		if frac <= 0 || avg <= 0 {
			c.Release()
			continue
		}
		limit := avg / frac
		if limit < p.policy.MinimalSpendCap {
			limit = p.policy.MinimalSpendCap
		}
		c.Limit(limit)
		limited[s] = true
	}
	return limited
}

func (p *Portfolio) inefficiency(c *SegmentController, demand DemandForecaster) float64 {
	score := c.AverageCostPerConversion()
	if p.policy.Ranking != RankDemandWeighted || demand == nil {
		return score
	}
	total := demand.PredictTotal()
	if total <= 0 {
		return score
	}
	return score * float64(demand.Predict(c.Segment())) / float64(total)
}

func (p *Portfolio) record(a Admission) {
	p.last = a
	p.metrics.SetCutoffCount(a.Cutoff)
	p.metrics.IncrementAdmissions(a.Outcome)
	p.logger.Info("capacity admission",
		zap.String("outcome", a.Outcome),
		zap.Int("used_capacity", a.UsedCapacity),
		zap.Float64("used_fraction", a.UsedFraction),
		zap.Int("cutoff", a.Cutoff),
		zap.Int("ranked", a.Ranked),
	)
}
