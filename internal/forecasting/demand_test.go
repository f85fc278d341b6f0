package forecasting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patrickwarner/openbidder/internal/models"
)

var (
	segA = models.Segment{Manufacturer: "flat"}
	segB = models.Segment{Component: "tv"}
	segC = models.Segment{Manufacturer: "flat", Component: "tv"}
)

func TestDemandPredictLatest(t *testing.T) {
	d := NewDemandPredictor(nil)
	assert.Equal(t, 0, d.Predict(segA))

	d.Record(segA, 120)
	d.Record(segA, 80)
	assert.Equal(t, 80, d.Predict(segA))
	assert.Equal(t, 2, d.Periods(segA))
}

func TestDemandTotalAndShare(t *testing.T) {
	d := NewDemandPredictor(nil)
	assert.Equal(t, 0, d.PredictTotal())
	assert.Equal(t, 0.0, d.Share(segA))

	d.HandleAuctionReport(models.AuctionReport{Segments: []models.SegmentAuction{
		{Segment: segA, Impressions: 30},
		{Segment: segB, Impressions: 10},
	}})
	d.HandleAuctionReport(models.AuctionReport{Segments: []models.SegmentAuction{
		{Segment: segA, Impressions: 60},
	}})

	assert.Equal(t, 70, d.PredictTotal())
	assert.InDelta(t, 60.0/70.0, d.Share(segA), 1e-12)
	assert.Equal(t, 0.0, d.Share(segC))
}

func TestDemandMissingSegmentSeesNoImpressions(t *testing.T) {
	d := NewDemandPredictor([]models.Segment{segA, segC})
	assert.Equal(t, 0, d.Periods(segA))

	d.HandleAuctionReport(models.AuctionReport{Segments: []models.SegmentAuction{
		{Segment: segA, Impressions: 500},
		{Segment: segC, Impressions: 10},
	}})
	d.HandleAuctionReport(models.AuctionReport{Segments: []models.SegmentAuction{
		{Segment: segC, Impressions: 10},
	}})

	assert.Equal(t, 0, d.Predict(segA))
	assert.Equal(t, 2, d.Periods(segA))
	assert.Equal(t, 10, d.PredictTotal())
	assert.Equal(t, 1.0, d.Share(segC))
}

func TestDemandEmptyReportRecordsZeroForKnown(t *testing.T) {
	d := NewDemandPredictor([]models.Segment{segA, segA, segB})
	d.HandleAuctionReport(models.AuctionReport{Period: 0})

	assert.Equal(t, 1, d.Periods(segA))
	assert.Equal(t, 1, d.Periods(segB))
	assert.Equal(t, 0, d.PredictTotal())
}
