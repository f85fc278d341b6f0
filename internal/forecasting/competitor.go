package forecasting

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/patrickwarner/openbidder/internal/models"
)

// CompetitorProfile is what has been seen of one competitor in one segment.
type CompetitorProfile struct {
	Targeted  int
	Generic   int
	Positions []float64
}

func (p *CompetitorProfile) observations() int {
	return p.Targeted + p.Generic
}

// CompetitorPredictor models one competitor's creative choice and ad position
// per segment.
type CompetitorPredictor struct {
	name     string
	profiles map[models.Segment]*CompetitorProfile
}

func newCompetitorPredictor(name string, segments []models.Segment) *CompetitorPredictor {
	c := &CompetitorPredictor{
		name:     name,
		profiles: make(map[models.Segment]*CompetitorProfile, len(segments)),
	}
	for _, s := range segments {
		c.profiles[s] = &CompetitorProfile{}
	}
	return c
}

// Name returns the competitor identifier.
func (c *CompetitorPredictor) Name() string { return c.name }

func (c *CompetitorPredictor) profile(segment models.Segment) *CompetitorProfile {
	p, ok := c.profiles[segment]
	if !ok {
		p = &CompetitorProfile{}
		c.profiles[segment] = p
	}
	return p
}

// HandleObservation records one sighting. A nil or generic ad counts as
// generic.
func (c *CompetitorPredictor) HandleObservation(segment models.Segment, ad *models.Creative, position float64) {
	p := c.profile(segment)
	if ad != nil && ad.Targeted() {
		p.Targeted++
	} else {
		p.Generic++
	}
	p.Positions = append(p.Positions, position)
}

// PredictTargetingProbability is the fraction of sightings in segment that
// showed a targeted ad, 0 without data.
func (c *CompetitorPredictor) PredictTargetingProbability(segment models.Segment) float64 {
	p, ok := c.profiles[segment]
	if !ok || p.observations() == 0 {
		return 0
	}
	return float64(p.Targeted) / float64(p.observations())
}

// PredictTargeted reports whether the competitor most likely shows a targeted
// ad in segment.
func (c *CompetitorPredictor) PredictTargeted(segment models.Segment) bool {
	return c.PredictTargetingProbability(segment) > 0.5
}

// HasPosition reports whether PredictPosition may be called for segment.
func (c *CompetitorPredictor) HasPosition(segment models.Segment) bool {
	p, ok := c.profiles[segment]
	return ok && len(p.Positions) > 0
}

// PredictPosition returns the latest observed position rounded to the nearest
// integer. It panics when the competitor was never observed in segment; check
// HasPosition first.
func (c *CompetitorPredictor) PredictPosition(segment models.Segment) int {
	if !c.HasPosition(segment) {
		panic(fmt.Sprintf("forecasting: no position observed for %s in %s", c.name, segment))
	}
	pos := c.profiles[segment].Positions
	return int(math.Round(pos[len(pos)-1]))
}

// SegmentView is the reporting view of one competitor in one segment.
type SegmentView struct {
	Segment              models.Segment `json:"segment"`
	Targeted             int            `json:"targeted"`
	Generic              int            `json:"generic"`
	TargetingProbability float64        `json:"targeting_probability"`
	PredictedTargeted    bool           `json:"predicted_targeted"`
	PredictedPosition    *int           `json:"predicted_position,omitempty"`
}

// View summarises the competitor over segments.
func (c *CompetitorPredictor) View(segments []models.Segment) []SegmentView {
	out := make([]SegmentView, 0, len(segments))
	for _, s := range segments {
		v := SegmentView{
			Segment:              s,
			TargetingProbability: c.PredictTargetingProbability(s),
			PredictedTargeted:    c.PredictTargeted(s),
		}
		if p, ok := c.profiles[s]; ok {
			v.Targeted, v.Generic = p.Targeted, p.Generic
		}
		if c.HasPosition(s) {
			pos := c.PredictPosition(s)
			v.PredictedPosition = &pos
		}
		out = append(out, v)
	}
	return out
}

// CompetitorRegistry owns one predictor per competitor, created on first
// reference.
type CompetitorRegistry struct {
	segments    []models.Segment
	competitors map[string]*CompetitorPredictor
	names       []string
	logger      *zap.Logger
}

// NewCompetitorRegistry returns a registry whose predictors start with an
// empty profile for each of segments.
func NewCompetitorRegistry(segments []models.Segment, logger *zap.Logger) *CompetitorRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := make([]models.Segment, len(segments))
	copy(s, segments)
	return &CompetitorRegistry{
		segments:    s,
		competitors: make(map[string]*CompetitorPredictor),
		logger:      logger,
	}
}

// Get returns the predictor for name, creating it if needed.
func (r *CompetitorRegistry) Get(name string) *CompetitorPredictor {
	if c, ok := r.competitors[name]; ok {
		return c
	}
	c := newCompetitorPredictor(name, r.segments)
	r.competitors[name] = c
	r.names = append(r.names, name)
	r.logger.Debug("tracking competitor", zap.String("competitor", name))
	return c
}

// Lookup returns the predictor for name without creating it.
func (r *CompetitorRegistry) Lookup(name string) (*CompetitorPredictor, bool) {
	c, ok := r.competitors[name]
	return c, ok
}

// HandleAuctionReport routes every competitor observation in report to its
// predictor. Observations without an advertiser are ignored.
func (r *CompetitorRegistry) HandleAuctionReport(report models.AuctionReport) {
	for _, e := range report.Segments {
		for _, obs := range e.Competitors {
			if obs.Advertiser == "" {
				continue
			}
			r.Get(obs.Advertiser).HandleObservation(e.Segment, obs.Ad, obs.Position)
		}
	}
}

// Names returns competitor identifiers in first-seen order.
func (r *CompetitorRegistry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Segments returns the segments predictors are pre-seeded with.
func (r *CompetitorRegistry) Segments() []models.Segment {
	out := make([]models.Segment, len(r.segments))
	copy(out, r.segments)
	return out
}
