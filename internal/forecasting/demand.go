// Package forecasting predicts what the market will do next period: how many
// impressions each segment will see and how competitors will present
// themselves. Predictions are inputs to the admission policy and never change
// prices directly.
package forecasting

import (
	"github.com/patrickwarner/openbidder/internal/models"
)

// DemandPredictor forecasts per-segment impressions as the last observed
// count.
type DemandPredictor struct {
	counts map[models.Segment][]int
	order  []models.Segment
}

// NewDemandPredictor returns a predictor tracking the known segments. Each
// auction report records a count for every one of them.
func NewDemandPredictor(segments []models.Segment) *DemandPredictor {
	d := &DemandPredictor{counts: make(map[models.Segment][]int, len(segments))}
	for _, s := range segments {
		if _, ok := d.counts[s]; ok {
			continue
		}
		d.counts[s] = nil
		d.order = append(d.order, s)
	}
	return d
}

// Record appends the impressions seen for segment this period.
func (d *DemandPredictor) Record(segment models.Segment, impressions int) {
	if _, ok := d.counts[segment]; !ok {
		d.order = append(d.order, segment)
	}
	d.counts[segment] = append(d.counts[segment], impressions)
}

// HandleAuctionReport records the impressions of every segment in report.
// Known segments the report leaves out saw no impressions.
func (d *DemandPredictor) HandleAuctionReport(report models.AuctionReport) {
	seen := make(map[models.Segment]bool, len(report.Segments))
	for _, e := range report.Segments {
		d.Record(e.Segment, e.Impressions)
		seen[e.Segment] = true
	}
	for _, s := range d.order {
		if !seen[s] {
			d.Record(s, 0)
		}
	}
}

// Predict returns the most recent impression count for segment, 0 without
// history.
func (d *DemandPredictor) Predict(segment models.Segment) int {
	c := d.counts[segment]
	if len(c) == 0 {
		return 0
	}
	return c[len(c)-1]
}

// PredictTotal sums the latest counts of every segment with history.
func (d *DemandPredictor) PredictTotal() int {
	total := 0
	for _, s := range d.order {
		total += d.Predict(s)
	}
	return total
}

// Share is the segment's predicted fraction of total impressions.
func (d *DemandPredictor) Share(segment models.Segment) float64 {
	total := d.PredictTotal()
	if total == 0 {
		return 0
	}
	return float64(d.Predict(segment)) / float64(total)
}

// Periods returns how many counts were recorded for segment.
func (d *DemandPredictor) Periods(segment models.Segment) int {
	return len(d.counts[segment])
}
