package models

import "fmt"

// Specificity levels of a segment. A segment's level is the number of
// attributes it pins down; broader segments attract more, less decided
// shoppers.
const (
	LevelBroad   = 0 // manufacturer and component both wildcards
	LevelPartial = 1 // exactly one of manufacturer or component set
	LevelFull    = 2 // manufacturer and component both set
)

// Segment identifies a market/query class by its manufacturer/component
// specialization. An empty attribute is a wildcard. Segments are comparable
// and are used directly as map keys.
type Segment struct {
	Manufacturer string `json:"manufacturer,omitempty"`
	Component    string `json:"component,omitempty"`
}

// Level returns the count of non-wildcard attributes (0, 1 or 2).
func (s Segment) Level() int {
	level := 0
	if s.Manufacturer != "" {
		level++
	}
	if s.Component != "" {
		level++
	}
	return level
}

// FullySpecified reports whether both attributes are set.
func (s Segment) FullySpecified() bool {
	return s.Level() == LevelFull
}

// Matches reports whether a product falls inside the segment.
func (s Segment) Matches(p Product) bool {
	return (s.Manufacturer == "" || s.Manufacturer == p.Manufacturer) &&
		(s.Component == "" || s.Component == p.Component)
}

// String renders the segment as "manufacturer/component" with "*" for
// wildcards. It is used as a metric label and Redis key fragment.
func (s Segment) String() string {
	m, c := s.Manufacturer, s.Component
	if m == "" {
		m = "*"
	}
	if c == "" {
		c = "*"
	}
	return fmt.Sprintf("%s/%s", m, c)
}

// Product is a catalog entry the advertiser can sell.
type Product struct {
	Manufacturer string  `json:"manufacturer"`
	Component    string  `json:"component"`
	SalesProfit  float64 `json:"sales_profit"`
}

// CatalogSnapshot is the one-time retail catalog delivered at simulation start.
type CatalogSnapshot struct {
	Products []Product `json:"products"`
}

// AverageProfit returns the mean sales profit over the catalog products that
// fall inside the segment, or 0 when none do.
func (c CatalogSnapshot) AverageProfit(s Segment) float64 {
	total, count := 0.0, 0
	for _, p := range c.Products {
		if s.Matches(p) {
			total += p.SalesProfit
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// SegmentRegistry is the fixed, ordered set of segments for one run.
type SegmentRegistry struct {
	ordered []Segment
	index   map[Segment]int
}

// NewSegmentRegistry builds the segment space from a catalog: one broad
// segment when the catalog is non-empty, then for every product a
// manufacturer-only, a component-only and a fully specified segment.
// Duplicates are dropped; first-seen order is kept.
func NewSegmentRegistry(catalog CatalogSnapshot) *SegmentRegistry {
	r := &SegmentRegistry{index: make(map[Segment]int)}
	if len(catalog.Products) > 0 {
		r.add(Segment{})
	}
	for _, p := range catalog.Products {
		r.add(Segment{Manufacturer: p.Manufacturer})
		r.add(Segment{Component: p.Component})
		r.add(Segment{Manufacturer: p.Manufacturer, Component: p.Component})
	}
	return r
}

func (r *SegmentRegistry) add(s Segment) {
	if _, ok := r.index[s]; ok {
		return
	}
	r.index[s] = len(r.ordered)
	r.ordered = append(r.ordered, s)
}

// Segments returns a copy of the registered segments in registration order.
func (r *SegmentRegistry) Segments() []Segment {
	out := make([]Segment, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Contains reports whether s is a registered segment.
func (r *SegmentRegistry) Contains(s Segment) bool {
	_, ok := r.index[s]
	return ok
}

// Len returns the number of registered segments.
func (r *SegmentRegistry) Len() int {
	return len(r.ordered)
}
