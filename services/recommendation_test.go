package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-pricer/models"
	"rental-pricer/utils"
)

func recommend(ds *models.Dataset, target models.Target, params models.Params) *models.Recommendation {
	panel := buildPanel(ds, target, params)
	return NewRecommender(utils.Discard()).Compute(panel, target, params)
}

func TestComputeEndToEnd(t *testing.T) {
	target := models.Target{
		Stars:    models.IntPtr(3),
		Capacity: models.IntPtr(4),
		Features: models.Features{Pool: true},
	}
	reco := recommend(exampleDataset(), target, models.DefaultParams())

	require.NotNil(t, reco)
	assert.Equal(t, 10, reco.PanelSize)
	assert.InDelta(t, 102.5, reco.Median, 1e-9)
	assert.InDelta(t, 91.25, reco.Q1, 1e-9)
	assert.InDelta(t, 113.75, reco.Q3, 1e-9)
	assert.InDelta(t, 114.8, reco.RecommendedPrice, 1e-9)
	assert.InDelta(t, 91.25*1.12, reco.PriceRange.Low, 1e-9)
	assert.InDelta(t, 113.75*1.12, reco.PriceRange.High, 1e-9)
}

func TestComputeWithoutFeaturesIsRawQuartiles(t *testing.T) {
	reco := recommend(exampleDataset(), models.Target{Stars: models.IntPtr(3)}, models.DefaultParams())

	require.NotNil(t, reco)
	assert.Equal(t, reco.Median, reco.RecommendedPrice)
	assert.Equal(t, reco.Q1, reco.PriceRange.Low)
	assert.Equal(t, reco.Q3, reco.PriceRange.High)
	assert.LessOrEqual(t, reco.PriceRange.Low, reco.RecommendedPrice)
	assert.LessOrEqual(t, reco.RecommendedPrice, reco.PriceRange.High)
}

func TestComputeEmptyPanelIsNil(t *testing.T) {
	r := NewRecommender(utils.Discard())

	assert.Nil(t, r.Compute(&models.Panel{HasPriceColumn: true}, models.Target{}, models.DefaultParams()))
	assert.Nil(t, r.Compute(nil, models.Target{}, models.DefaultParams()))

	noPriceColumn := &models.Panel{Listings: []*models.Listing{{Name: "A"}}}
	assert.Nil(t, r.Compute(noPriceColumn, models.Target{}, models.DefaultParams()))

	unpriced := &models.Panel{HasPriceColumn: true, Listings: []*models.Listing{{Name: "A"}}}
	assert.Nil(t, r.Compute(unpriced, models.Target{}, models.DefaultParams()))
}

func TestComputeZeroPricesAreNotEmpty(t *testing.T) {
	panel := &models.Panel{HasPriceColumn: true, Listings: []*models.Listing{
		{PricePerNight: models.FloatPtr(0)},
	}}
	reco := NewRecommender(utils.Discard()).Compute(panel, models.Target{}, models.DefaultParams())

	require.NotNil(t, reco)
	assert.Zero(t, reco.RecommendedPrice)
	assert.Equal(t, 1, reco.PanelSize)
}

func TestComputeSingleRow(t *testing.T) {
	panel := &models.Panel{HasPriceColumn: true, Listings: []*models.Listing{
		{PricePerNight: models.FloatPtr(90)},
	}}
	reco := NewRecommender(utils.Discard()).Compute(panel, models.Target{}, models.DefaultParams())

	require.NotNil(t, reco)
	assert.Equal(t, 90.0, reco.Q1)
	assert.Equal(t, 90.0, reco.Median)
	assert.Equal(t, 90.0, reco.Q3)
}

func TestAdjustLinearInBase(t *testing.T) {
	f := models.Features{Pool: true, PetsAllowed: true}
	params := models.DefaultParams()

	for _, base := range []float64{1, 50, 102.5, 1000} {
		assert.InDelta(t, 2*Adjust(base, f, params), Adjust(2*base, f, params), 1e-9)
	}
}

func TestAdjustPercentagesAdd(t *testing.T) {
	params := models.DefaultParams()

	assert.InDelta(t, 117.0, Adjust(100, models.Features{Pool: true, AirConditioning: true}, params), 1e-9)
	assert.InDelta(t, 100.0, Adjust(100, models.Features{Wifi: true}, params), 1e-9)
	assert.InDelta(t, 97.0, Adjust(100, models.Features{PetsAllowed: true}, params), 1e-9)
	assert.InDelta(t, 125.0, Adjust(100, models.Features{
		Pool: true, SpaOrHotTub: true, AirConditioning: true,
		PrivateGarden: true, Wifi: true, PetsAllowed: true,
	}, params), 1e-9)
}

func TestAdjustmentRate(t *testing.T) {
	params := models.Params{PoolPct: 10, SpaPct: 5}
	assert.InDelta(t, 0.15, AdjustmentRate(models.Features{Pool: true, SpaOrHotTub: true}, params), 1e-12)
	assert.Zero(t, AdjustmentRate(models.Features{}, params))
}

func TestClassifyBoundaries(t *testing.T) {
	r := models.PriceRange{Low: 90, High: 110}

	tests := []struct {
		price float64
		want  models.Positioning
	}{
		{0, models.PositioningCompetitive},
		{89.999, models.PositioningCompetitive},
		{90, models.PositioningAligned},
		{100, models.PositioningAligned},
		{110, models.PositioningAligned},
		{110.001, models.PositioningHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.price, r), "Classify(%v)", tt.price)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.75, percentile(sorted, 0.25), 1e-12)
	assert.InDelta(t, 2.5, percentile(sorted, 0.50), 1e-12)
	assert.InDelta(t, 3.25, percentile(sorted, 0.75), 1e-12)
	assert.InDelta(t, 4.0, percentile(sorted, 1), 1e-12)
}
