package logic

import (
	"fmt"
	"math"

	"github.com/patrickwarner/openbidder/internal/config"
	"github.com/patrickwarner/openbidder/internal/models"
)

// RankingWeight selects the inefficiency score used to rank segments for
// shaping.
type RankingWeight int

const (
	// RankPlain ranks by cost per conversion.
	RankPlain RankingWeight = iota
	// RankDemandWeighted multiplies cost per conversion by the segment's
	// predicted share of total impressions.
	RankDemandWeighted
)

// Protection selects which segments are never ranked for suppression.
type Protection int

const (
	// ProtectHome protects only the advertiser's home segment.
	ProtectHome Protection = iota
	// ProtectHomeAndFull additionally protects every fully specified segment.
	ProtectHomeAndFull
)

func (p Protection) protects(s, home models.Segment) bool {
	if s == home {
		return true
	}
	return p == ProtectHomeAndFull && s.FullySpecified()
}

// Fallback selects what happens when shaping would block almost every
// ranked segment.
type Fallback int

const (
	// FallbackNone leaves the blocking caps in place.
	FallbackNone Fallback = iota
	// FallbackProportionalCap gives non-home fully specified segments a cap
	// of averageCost / usedCapacityFraction instead of a blocking cap.
	FallbackProportionalCap
)

// AdmissionPolicy parameterizes the Portfolio's capacity admission.
type AdmissionPolicy struct {
	Threshold       float64
	ScaleFactor     float64
	Ranking         RankingWeight
	Protection      Protection
	Fallback        Fallback
	MinimalSpendCap float64
}

// CutoffCount returns how many of ranked segments to suppress at the given
// used capacity fraction. It never decreases as used grows.
func (p AdmissionPolicy) CutoffCount(ranked int, used float64) int {
	if ranked <= 0 || used <= p.Threshold || math.IsNaN(used) {
		return 0
	}
	n := math.Ceil(float64(ranked) * (used - p.Threshold) * p.ScaleFactor)
	if math.IsNaN(n) || n < 0 {
		return 0
	}
	if n > float64(ranked) {
		return ranked
	}
	return int(n)
}

// Preset returns one of the named policies.
//
//	naive     never shapes
//	capacity  threshold 0.5, scale 2, plain ranking, home protected
//	demand    threshold 0.25, scale 4/3, demand-weighted ranking, every fully
//	          specified segment protected, proportional-cap fallback
func Preset(name string) (AdmissionPolicy, error) {
	switch name {
	case config.StrategyNaive:
		return AdmissionPolicy{
			Threshold:       math.Inf(1),
			ScaleFactor:     1,
			MinimalSpendCap: 1,
		}, nil
	case config.StrategyCapacity:
		return AdmissionPolicy{
			Threshold:       0.5,
			ScaleFactor:     2,
			Ranking:         RankPlain,
			Protection:      ProtectHome,
			Fallback:        FallbackNone,
			MinimalSpendCap: 1,
		}, nil
	case config.StrategyDemand, "":
		const threshold = 0.25
		return AdmissionPolicy{
			Threshold:       threshold,
			ScaleFactor:     1 / (1 - threshold),
			Ranking:         RankDemandWeighted,
			Protection:      ProtectHomeAndFull,
			Fallback:        FallbackProportionalCap,
			MinimalSpendCap: 1,
		}, nil
	}
	return AdmissionPolicy{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// PolicyFromConfig builds the admission policy from the configured preset and
// any explicit knob overrides.
func PolicyFromConfig(cfg config.Config) (AdmissionPolicy, error) {
	p, err := Preset(cfg.Strategy)
	if err != nil {
		return AdmissionPolicy{}, err
	}
	if t := cfg.AdmissionThreshold; t != nil {
		if *t < 0 || math.IsNaN(*t) {
			return AdmissionPolicy{}, fmt.Errorf("%w: threshold %v", ErrInvalidPolicy, *t)
		}
		p.Threshold = *t
	}
	if sf := cfg.AdmissionScale; sf != nil {
		if *sf < 0 || math.IsNaN(*sf) {
			return AdmissionPolicy{}, fmt.Errorf("%w: scale %v", ErrInvalidPolicy, *sf)
		}
		p.ScaleFactor = *sf
	}
	if cfg.MinimalSpendCap > 0 {
		p.MinimalSpendCap = cfg.MinimalSpendCap
	}

	switch cfg.RankingWeight {
	case "":
	case "plain":
		p.Ranking = RankPlain
	case "demand":
		p.Ranking = RankDemandWeighted
	default:
		return AdmissionPolicy{}, fmt.Errorf("%w: ranking weight %q", ErrInvalidPolicy, cfg.RankingWeight)
	}

	switch cfg.Protection {
	case "":
	case "home":
		p.Protection = ProtectHome
	case "home_and_full":
		p.Protection = ProtectHomeAndFull
	default:
		return AdmissionPolicy{}, fmt.Errorf("%w: protection %q", ErrInvalidPolicy, cfg.Protection)
	}

	switch cfg.DegenerateFallback {
	case "":
	case "none":
		p.Fallback = FallbackNone
	case "proportional":
		p.Fallback = FallbackProportionalCap
	default:
		return AdmissionPolicy{}, fmt.Errorf("%w: fallback %q", ErrInvalidPolicy, cfg.DegenerateFallback)
	}

	return p, nil
}

// ControllerConfigFromConfig builds the controller tuning from cfg.
func ControllerConfigFromConfig(cfg config.Config) ControllerConfig {
	c := DefaultControllerConfig()
	if cfg.Movement > 0 {
		c.Movement = cfg.Movement
	}
	if cfg.SeedFractionBroad > 0 {
		c.SeedFractions[models.LevelBroad] = cfg.SeedFractionBroad
	}
	if cfg.SeedFractionPart > 0 {
		c.SeedFractions[models.LevelPartial] = cfg.SeedFractionPart
	}
	if cfg.SeedFractionFull > 0 {
		c.SeedFractions[models.LevelFull] = cfg.SeedFractionFull
	}
	return c
}
