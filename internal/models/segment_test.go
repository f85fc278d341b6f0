package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSegmentRegistry_SingleProduct(t *testing.T) {
	reg := NewSegmentRegistry(CatalogSnapshot{Products: []Product{
		{Manufacturer: "M", Component: "C", SalesProfit: 10},
	}})

	assert.Equal(t, []Segment{
		{},
		{Manufacturer: "M"},
		{Component: "C"},
		{Manufacturer: "M", Component: "C"},
	}, reg.Segments())
}

func TestNewSegmentRegistry_Deduplicates(t *testing.T) {
	reg := NewSegmentRegistry(CatalogSnapshot{Products: []Product{
		{Manufacturer: "pg", Component: "tv"},
		{Manufacturer: "pg", Component: "dvd"},
		{Manufacturer: "lioneer", Component: "tv"},
	}})

	// 1 broad + 2 manufacturers + 2 components + 3 products
	assert.Equal(t, 8, reg.Len())
	assert.True(t, reg.Contains(Segment{Manufacturer: "lioneer", Component: "tv"}))
	assert.False(t, reg.Contains(Segment{Manufacturer: "lioneer", Component: "dvd"}))
}

func TestNewSegmentRegistry_EmptyCatalog(t *testing.T) {
	reg := NewSegmentRegistry(CatalogSnapshot{})
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.Segments())
}

func TestSegment_Level(t *testing.T) {
	tests := []struct {
		segment Segment
		level   int
	}{
		{Segment{}, LevelBroad},
		{Segment{Manufacturer: "M"}, LevelPartial},
		{Segment{Component: "C"}, LevelPartial},
		{Segment{Manufacturer: "M", Component: "C"}, LevelFull},
	}
	for _, tt := range tests {
		t.Run(tt.segment.String(), func(t *testing.T) {
			assert.Equal(t, tt.level, tt.segment.Level())
		})
	}
}

func TestCatalogSnapshot_AverageProfit(t *testing.T) {
	catalog := CatalogSnapshot{Products: []Product{
		{Manufacturer: "pg", Component: "tv", SalesProfit: 10},
		{Manufacturer: "pg", Component: "dvd", SalesProfit: 20},
		{Manufacturer: "flat", Component: "tv", SalesProfit: 30},
	}}

	assert.InDelta(t, 20.0, catalog.AverageProfit(Segment{}), 1e-9)
	assert.InDelta(t, 15.0, catalog.AverageProfit(Segment{Manufacturer: "pg"}), 1e-9)
	assert.InDelta(t, 20.0, catalog.AverageProfit(Segment{Component: "tv"}), 1e-9)
	assert.InDelta(t, 30.0, catalog.AverageProfit(Segment{Manufacturer: "flat", Component: "tv"}), 1e-9)
	assert.Zero(t, catalog.AverageProfit(Segment{Manufacturer: "nobody"}))
}

func TestSegment_String(t *testing.T) {
	assert.Equal(t, "*/*", Segment{}.String())
	assert.Equal(t, "pg/*", Segment{Manufacturer: "pg"}.String())
	assert.Equal(t, "*/tv", Segment{Component: "tv"}.String())
}

func TestSpendCap_ZeroValueIsUnlimited(t *testing.T) {
	var b Bid
	assert.False(t, b.SpendCap.Limited)
	assert.Equal(t, NoSpendCap, b.SpendCap)
	assert.Equal(t, SpendCap{Limited: true, Amount: 1}, CapAt(1))
}
