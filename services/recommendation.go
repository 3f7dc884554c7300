package services

import (
	"rental-pricer/models"
	"rental-pricer/utils"
)

// Recommender turns a panel into a recommended nightly price.
type Recommender struct {
	logger *utils.Logger
}

// NewRecommender creates a Recommender with the given logger.
func NewRecommender(logger *utils.Logger) *Recommender {
	return &Recommender{logger: logger}
}

// Compute returns nil when the panel is empty, has no price column, or has
// no priced row. Callers must report that as "insufficient comparables",
// never as a zero price.
func (r *Recommender) Compute(panel *models.Panel, target models.Target, params models.Params) *models.Recommendation {
	if panel.Size() == 0 || !panel.HasPriceColumn {
		return nil
	}
	prices := panel.Prices()
	if len(prices) == 0 {
		r.logger.Debug("[reco] panel of %d has no priced rows", panel.Size())
		return nil
	}

	sorted := sortedCopy(prices)
	med := percentile(sorted, 0.50)
	q1 := percentile(sorted, 0.25)
	q3 := percentile(sorted, 0.75)

	return &models.Recommendation{
		PanelSize:        panel.Size(),
		Median:           med,
		Q1:               q1,
		Q3:               q3,
		RecommendedPrice: Adjust(med, target.Features, params),
		PriceRange: models.PriceRange{
			Low:  Adjust(q1, target.Features, params),
			High: Adjust(q3, target.Features, params),
		},
	}
}

// Adjust applies the amenity percentages. Percentages add up before being
// applied, so the order of features does not matter and the result is
// linear in base.
func Adjust(base float64, f models.Features, params models.Params) float64 {
	return base * (1 + AdjustmentRate(f, params))
}

// AdjustmentRate is the summed adjustment as a fraction (0.17 for +17%).
func AdjustmentRate(f models.Features, params models.Params) float64 {
	rate := 0.0
	for _, a := range []struct {
		on  bool
		pct float64
	}{
		{f.Pool, params.PoolPct},
		{f.SpaOrHotTub, params.SpaPct},
		{f.AirConditioning, params.ACPct},
		{f.PrivateGarden, params.PrivateGardenPct},
		{f.Wifi, params.WifiPct},
		{f.PetsAllowed, params.PetsPct},
	} {
		if a.on {
			rate += a.pct / 100.0
		}
	}
	return rate
}

// Classify positions a proposed price against the range. Prices equal to
// either bound are aligned.
func Classify(proposed float64, r models.PriceRange) models.Positioning {
	switch {
	case proposed < r.Low:
		return models.PositioningCompetitive
	case proposed > r.High:
		return models.PositioningHigh
	default:
		return models.PositioningAligned
	}
}
