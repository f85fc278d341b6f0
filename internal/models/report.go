package models

// CapacityInfo describes the advertiser's distribution constraints and home
// specialization. Only conversions inside the last WindowLength periods count
// against TotalCapacity.
type CapacityInfo struct {
	TotalCapacity         int    `json:"total_distribution_capacity"`
	WindowLength          int    `json:"distribution_window_length"`
	SpecialtyManufacturer string `json:"specialty_manufacturer"`
	SpecialtyComponent    string `json:"specialty_component"`
}

// Home returns the fully specialized segment of the advertiser.
func (c CapacityInfo) Home() Segment {
	return Segment{Manufacturer: c.SpecialtyManufacturer, Component: c.SpecialtyComponent}
}

// AdObservation is what the host reveals about one advertiser's presence in a
// segment during a period. Ad is nil when no ad was seen.
type AdObservation struct {
	Advertiser string    `json:"advertiser"`
	Ad         *Creative `json:"ad,omitempty"`
	Position   float64   `json:"position"`
}

// SegmentAuction is the auction feedback for one segment and period. Missing
// fields are zero and mean no activity.
type SegmentAuction struct {
	Segment     Segment         `json:"segment"`
	Impressions int             `json:"impressions"`
	Clicks      int             `json:"clicks"`
	Cost        float64         `json:"cost"`
	AvgCPC      float64         `json:"avg_cpc"`
	AvgPosition float64         `json:"avg_position"`
	Competitors []AdObservation `json:"competitors,omitempty"`
}

// AuctionReport is the per-period auction feedback over all segments.
type AuctionReport struct {
	Period   int              `json:"period"`
	Segments []SegmentAuction `json:"segments"`
}

// SegmentResult is the sales outcome for one segment and period.
type SegmentResult struct {
	Segment     Segment `json:"segment"`
	Revenue     float64 `json:"revenue"`
	Conversions int     `json:"conversions"`
}

// ResultReport is delivered after the AuctionReport of the same period.
type ResultReport struct {
	Period   int             `json:"period"`
	Segments []SegmentResult `json:"segments"`
}
