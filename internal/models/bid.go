package models

// Creative is the ad shown for a segment. A creative with a product
// reference is targeted; the zero value is the generic ad.
type Creative struct {
	Manufacturer string `json:"manufacturer,omitempty"`
	Component    string `json:"component,omitempty"`
}

// Targeted reports whether the creative references a product.
func (c Creative) Targeted() bool {
	return c.Manufacturer != "" || c.Component != ""
}

// SpendCap limits what the auctioneer may charge for a segment in one period.
// The zero value is unlimited.
type SpendCap struct {
	Limited bool    `json:"limited"`
	Amount  float64 `json:"amount,omitempty"`
}

// NoSpendCap is the unlimited spend cap.
var NoSpendCap = SpendCap{}

// CapAt returns a spend cap limited to amount.
func CapAt(amount float64) SpendCap {
	return SpendCap{Limited: true, Amount: amount}
}

// Bid is the per-segment decision for one period.
type Bid struct {
	Price    float64  `json:"price"`
	Creative Creative `json:"creative"`
	SpendCap SpendCap `json:"spend_cap"`
}

// SegmentBid pairs a bid with the segment it is placed on.
type SegmentBid struct {
	Segment Segment `json:"segment"`
	Bid
}

// BidSubmission is the full bid set sent to the auction host for a period.
// DailyCap is the portfolio-level aggregate cap and is always unlimited.
type BidSubmission struct {
	RunID    string       `json:"run_id"`
	Period   int          `json:"period"`
	Bids     []SegmentBid `json:"bids"`
	DailyCap SpendCap     `json:"daily_cap"`
}
