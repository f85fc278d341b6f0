// Package simulation provides a small synthetic auction host. It is used to
// exercise a bidder end to end, in process or over HTTP, without the real
// game server.
package simulation

import (
	"math"
	"math/rand"
	"sort"

	"github.com/patrickwarner/openbidder/internal/models"
)

// Slots is the number of ad positions shown per segment.
const Slots = 5

// MarketConfig describes the synthetic market.
type MarketConfig struct {
	Catalog     models.CatalogSnapshot
	Capacity    models.CapacityInfo
	Competitors []string
	// Impressions per period by segment specificity level.
	Impressions [3]int
	// ClickRate is the click probability in the first position.
	ClickRate float64
	// ConversionRate is the conversion probability of a click while the
	// advertiser is within capacity.
	ConversionRate float64
	// Overload discounts conversions per unit sold above capacity.
	Overload float64
	Seed     int64
}

// DefaultMarketConfig returns a nine product market with seven competitors.
func DefaultMarketConfig() MarketConfig {
	var products []models.Product
	profit := 10.0
	for _, m := range []string{"lioneer", "pg", "flat"} {
		for _, c := range []string{"tv", "dvd", "audio"} {
			products = append(products, models.Product{Manufacturer: m, Component: c, SalesProfit: profit})
			profit += 0.5
		}
	}
	return MarketConfig{
		Catalog: models.CatalogSnapshot{Products: products},
		Capacity: models.CapacityInfo{
			TotalCapacity:         400,
			WindowLength:          5,
			SpecialtyManufacturer: "lioneer",
			SpecialtyComponent:    "tv",
		},
		Competitors:    []string{"adv2", "adv3", "adv4", "adv5", "adv6", "adv7", "adv8"},
		Impressions:    [3]int{300, 150, 80},
		ClickRate:      0.3,
		ConversionRate: 0.2,
		Overload:       0.995,
		Seed:           1,
	}
}

type rival struct {
	name       string
	aggression float64
	targeting  float64
}

// Market clears bid submissions into auction and result reports.
type Market struct {
	cfg    MarketConfig
	rng    *rand.Rand
	rivals []rival
	sold   []int
}

// NewMarket creates a market seeded from cfg.Seed.
func NewMarket(cfg MarketConfig) *Market {
	rng := rand.New(rand.NewSource(cfg.Seed))
	rivals := make([]rival, 0, len(cfg.Competitors))
	for _, name := range cfg.Competitors {
		rivals = append(rivals, rival{
			name:       name,
			aggression: 0.6 + 0.8*rng.Float64(),
			targeting:  rng.Float64(),
		})
	}
	return &Market{cfg: cfg, rng: rng, rivals: rivals}
}

// Catalog returns the market's product catalog.
func (m *Market) Catalog() models.CatalogSnapshot { return m.cfg.Catalog }

// Capacity returns the advertiser's distribution constraints.
func (m *Market) Capacity() models.CapacityInfo { return m.cfg.Capacity }

// backlog is the number of units sold in the periods still inside the window.
func (m *Market) backlog() int {
	window := m.cfg.Capacity.WindowLength - 1
	total := 0
	for i := len(m.sold) - 1; i >= 0 && i >= len(m.sold)-window; i-- {
		total += m.sold[i]
	}
	return total
}

type entry struct {
	name  string
	price float64
	ad    *models.Creative
}

// Clear runs one period of auctions for sub and returns what the host would
// report back.
func (m *Market) Clear(sub models.BidSubmission) (models.AuctionReport, models.ResultReport) {
	auction := models.AuctionReport{Period: sub.Period}
	result := models.ResultReport{Period: sub.Period}

	backlog := m.backlog()
	sold := 0
	for _, b := range sub.Bids {
		a, r := m.clearSegment(b, backlog+sold)
		sold += r.Conversions
		auction.Segments = append(auction.Segments, a)
		result.Segments = append(result.Segments, r)
	}
	m.sold = append(m.sold, sold)
	return auction, result
}

func (m *Market) clearSegment(b models.SegmentBid, used int) (models.SegmentAuction, models.SegmentResult) {
	seg := b.Segment
	profit := m.cfg.Catalog.AverageProfit(seg)
	reference := math.Max(0.08*profit, 0.1)

	entries := []entry{{price: b.Price}}
	for _, r := range m.rivals {
		e := entry{name: r.name, price: reference * r.aggression * (0.75 + 0.5*m.rng.Float64())}
		if m.rng.Float64() < r.targeting {
			e.ad = &models.Creative{Manufacturer: seg.Manufacturer, Component: seg.Component}
		} else {
			e.ad = &models.Creative{}
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].price > entries[j].price })

	a := models.SegmentAuction{Segment: seg}
	r := models.SegmentResult{Segment: seg}

	position := 0
	for i, e := range entries {
		if e.name == "" {
			position = i + 1
			continue
		}
		if i < Slots {
			a.Competitors = append(a.Competitors, models.AdObservation{Advertiser: e.name, Ad: e.ad, Position: float64(i + 1)})
		}
	}
	if b.Price <= 0 || position > Slots {
		return a, r
	}

	base := m.cfg.Impressions[seg.Level()]
	a.Impressions = int(float64(base) * (0.8 + 0.4*m.rng.Float64()))
	a.AvgPosition = float64(position)

	cpc := b.Price * 0.5
	if position < len(entries) {
		cpc = math.Min(b.Price, entries[position].price+0.01)
	}

	ctr := m.cfg.ClickRate / float64(position)
	if b.Creative.Targeted() && seg.FullySpecified() {
		ctr *= 1.5
	}
	clicks := int(math.Round(float64(a.Impressions) * ctr))
	if b.SpendCap.Limited && float64(clicks)*cpc > b.SpendCap.Amount {
		clicks = int(math.Floor(b.SpendCap.Amount / cpc))
	}
	a.Clicks = clicks
	a.Cost = float64(clicks) * cpc
	if clicks > 0 {
		a.AvgCPC = cpc
	}

	rate := m.cfg.ConversionRate
	if over := used - m.cfg.Capacity.TotalCapacity; over > 0 {
		rate *= math.Pow(m.cfg.Overload, float64(over))
	}
	r.Conversions = int(math.Round(float64(clicks) * rate))
	r.Revenue = float64(r.Conversions) * profit
	return a, r
}
