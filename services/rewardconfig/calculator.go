package rewardconfig

import (
	"fmt"
	"math"

	"caremarket-rewards/pkg/errutil"
)

// DefaultBaseRate applies when no configuration is active: 10 points per
// currency unit, no multipliers.
const DefaultBaseRate float64 = 10

type CalculationInput struct {
	Category string
	Price    float64
	Quantity int
}

// Breakdown records every intermediate value of a calculation. It is part of
// the response contract for auditability, not a debug aid.
type Breakdown struct {
	BaseRate           float64 `json:"base_rate"`
	Price              float64 `json:"price"`
	BasePoints         float64 `json:"base_points"`
	Season             string  `json:"season"`
	SeasonalMultiplier float64 `json:"seasonal_multiplier"`
	Category           string  `json:"category"`
	CategoryMultiplier float64 `json:"category_multiplier"`
	Quantity           int     `json:"quantity"`
	Calculation        string  `json:"calculation"`
	Note               string  `json:"note,omitempty"`
}

type Calculation struct {
	Points             int64     `json:"points"`
	BasePoints         float64   `json:"base_points"`
	SeasonalMultiplier float64   `json:"seasonal_multiplier"`
	CategoryMultiplier float64   `json:"category_multiplier"`
	Breakdown          Breakdown `json:"calculation_breakdown"`
}

// CalculatePoints is the pure core of the reward engine:
//
//	base_points = price * base_rate
//	total       = base_points * seasonal * category * quantity
//	points      = floor(total)
//
// A nil config selects the documented default rate; a nil season means no
// seasonal bonus. Degraded stored values (non-positive rate or multiplier,
// unknown category) fall back to neutral factors so a calculation never
// fails once its input validates.
func CalculatePoints(in CalculationInput, cfg *RewardConfig, season *Season) (*Calculation, error) {
	if in.Quantity < 1 {
		return nil, errutil.ValidationFailed("quantity must be a positive integer", nil)
	}
	if in.Price < 0 {
		return nil, errutil.ValidationFailed("price must be non-negative", nil)
	}

	baseRate := DefaultBaseRate
	note := ""
	rules := map[string]float64{}

	if cfg == nil {
		note = "Using default configuration"
	} else {
		if cfg.BaseRate > 0 {
			baseRate = cfg.BaseRate
		}
		rules = cfg.ParseCategoryRules()
	}

	seasonal := 1.0
	seasonLabel := "No active season"
	if season != nil {
		if season.Multiplier > 0 {
			seasonal = season.Multiplier
		}
		seasonLabel = fmt.Sprintf("%s (multiplier: %gx)", season.Name, seasonal)
	}

	categoryMultiplier := 1.0
	if in.Category != "" {
		if m, ok := rules[in.Category]; ok {
			categoryMultiplier = m
		}
	}

	basePoints := in.Price * baseRate
	total := basePoints * seasonal * categoryMultiplier * float64(in.Quantity)

	return &Calculation{
		Points:             int64(math.Floor(total)),
		BasePoints:         basePoints,
		SeasonalMultiplier: seasonal,
		CategoryMultiplier: categoryMultiplier,
		Breakdown: Breakdown{
			BaseRate:           baseRate,
			Price:              in.Price,
			BasePoints:         basePoints,
			Season:             seasonLabel,
			SeasonalMultiplier: seasonal,
			Category:           categoryLabel(in.Category),
			CategoryMultiplier: categoryMultiplier,
			Quantity:           in.Quantity,
			Calculation: fmt.Sprintf("(%g × %g) × %g × %g × %d = %g",
				in.Price, baseRate, seasonal, categoryMultiplier, in.Quantity, total),
			Note: note,
		},
	}, nil
}

func categoryLabel(category string) string {
	if category == "" {
		return "Unknown"
	}
	return category
}
