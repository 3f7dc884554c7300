package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-pricer/models"
	"rental-pricer/utils"
)

func priced(price float64, stars, capacity int) *models.Listing {
	return &models.Listing{
		Commune: "Sarlat", PostalCode: "24200",
		Stars: models.IntPtr(stars), Capacity: models.IntPtr(capacity),
		SurfaceM2: models.FloatPtr(70), Season: "Haute", DayType: "Weekend",
		PricePerNight: models.FloatPtr(price),
	}
}

// exampleDataset is twelve three-star rows with two extreme prices.
func exampleDataset() *models.Dataset {
	prices := []float64{80, 85, 90, 95, 100, 105, 110, 115, 120, 125, 500, 5}
	rows := make([]*models.Listing, 0, len(prices))
	for i, p := range prices {
		rows = append(rows, priced(p, 3, 2+i%5))
	}
	return &models.Dataset{Listings: rows, HasPriceColumn: true}
}

func buildPanel(ds *models.Dataset, target models.Target, params models.Params) *models.Panel {
	return NewPanelBuilder(utils.Discard()).Build(ds, target, params)
}

func TestBuildTrimsOutliers(t *testing.T) {
	target := models.Target{Stars: models.IntPtr(3), Capacity: models.IntPtr(4)}
	panel := buildPanel(exampleDataset(), target, models.DefaultParams())

	require.Equal(t, 10, panel.Size())
	for _, p := range panel.Prices() {
		assert.True(t, p >= 80 && p <= 125, "price %v should have survived trimming", p)
	}
}

func TestBuildUnsetFieldsSkipStages(t *testing.T) {
	ds := exampleDataset()
	ds.Listings = append(ds.Listings, &models.Listing{Commune: "Domme", PricePerNight: models.FloatPtr(100)})

	panel := buildPanel(ds, models.Target{}, models.Params{OutlierSigmaThreshold: 100})
	assert.Equal(t, len(ds.Listings), panel.Size())
}

func TestBuildNilNeverMatchesFilter(t *testing.T) {
	ds := &models.Dataset{HasPriceColumn: true, Listings: []*models.Listing{
		{Capacity: nil, PricePerNight: models.FloatPtr(100)},
		{Capacity: models.IntPtr(4), PricePerNight: models.FloatPtr(100)},
	}}
	panel := buildPanel(ds, models.Target{Capacity: models.IntPtr(4)}, models.DefaultParams())
	assert.Equal(t, 1, panel.Size())
}

func TestBuildLocationFilters(t *testing.T) {
	ds := exampleDataset()
	ds.Listings = append(ds.Listings, &models.Listing{Commune: "Domme", PostalCode: "24250", PricePerNight: models.FloatPtr(100)})

	byPostal := buildPanel(ds, models.Target{PostalCode: "24250"}, models.DefaultParams())
	assert.Equal(t, 1, byPostal.Size())

	byCommune := buildPanel(ds, models.Target{Commune: "sarlat"}, models.Params{OutlierSigmaThreshold: 100})
	assert.Equal(t, 12, byCommune.Size())

	both := buildPanel(ds, models.Target{Commune: "Sarlat", PostalCode: "24250"}, models.DefaultParams())
	assert.Zero(t, both.Size())
}

func TestBuildStarsExactWhenEnough(t *testing.T) {
	ds := exampleDataset()
	ds.Listings = append(ds.Listings, priced(100, 2, 4), priced(100, 4, 4))

	panel := buildPanel(ds, models.Target{Stars: models.IntPtr(3)}, models.Params{OutlierSigmaThreshold: 100})
	assert.Equal(t, 12, panel.Size())
	for _, l := range panel.Listings {
		assert.Equal(t, 3, *l.Stars)
	}
}

func TestBuildStarsRelaxedReplacesExact(t *testing.T) {
	ds := &models.Dataset{HasPriceColumn: true, Listings: []*models.Listing{
		priced(100, 3, 4),
		priced(101, 2, 4),
		priced(102, 4, 4),
		priced(103, 5, 4),
		priced(104, 1, 4),
	}}

	panel := buildPanel(ds, models.Target{Stars: models.IntPtr(3)}, models.Params{OutlierSigmaThreshold: 100})
	require.Equal(t, 3, panel.Size())
	for _, l := range panel.Listings {
		assert.InDelta(t, 3, *l.Stars, 1)
	}
}

func TestBuildStarsZeroIsAValue(t *testing.T) {
	ds := &models.Dataset{HasPriceColumn: true, Listings: []*models.Listing{
		priced(100, 0, 4),
		priced(100, 1, 4),
		priced(100, 2, 4),
	}}
	panel := buildPanel(ds, models.Target{Stars: models.IntPtr(0)}, models.DefaultParams())
	assert.Equal(t, 2, panel.Size())
}

func TestBuildCapacityAndSurfaceTolerances(t *testing.T) {
	ds := &models.Dataset{HasPriceColumn: true}
	for c := 1; c <= 9; c++ {
		l := priced(100, 3, c)
		l.SurfaceM2 = models.FloatPtr(float64(c * 10))
		ds.Listings = append(ds.Listings, l)
	}

	params := models.DefaultParams()
	panel := buildPanel(ds, models.Target{Capacity: models.IntPtr(5)}, params)
	assert.Equal(t, 5, panel.Size())

	panel = buildPanel(ds, models.Target{SurfaceM2: models.FloatPtr(50)}, params)
	assert.Equal(t, 5, panel.Size(), "surface 30..70 inclusive")

	params.CapacityTolerance = 0
	panel = buildPanel(ds, models.Target{Capacity: models.IntPtr(5)}, params)
	assert.Equal(t, 1, panel.Size())
}

func TestBuildSeasonAndDayType(t *testing.T) {
	ds := exampleDataset()
	ds.Listings[0].Season = "Basse"
	ds.Listings[1].DayType = "Semaine"

	panel := buildPanel(ds, models.Target{Season: "haute", DayType: "weekend"}, models.Params{OutlierSigmaThreshold: 100})
	assert.Equal(t, 10, panel.Size())
}

func TestBuildIsMonotoneInFilters(t *testing.T) {
	ds := exampleDataset()
	params := models.Params{CapacityTolerance: 1, SurfaceToleranceM2: 20, OutlierSigmaThreshold: 100}

	loose := buildPanel(ds, models.Target{Stars: models.IntPtr(3)}, params)
	tight := buildPanel(ds, models.Target{Stars: models.IntPtr(3), Capacity: models.IntPtr(3)}, params)

	assert.LessOrEqual(t, tight.Size(), loose.Size())
	in := make(map[*models.Listing]bool)
	for _, l := range loose.Listings {
		in[l] = true
	}
	for _, l := range tight.Listings {
		assert.True(t, in[l])
	}
}

func TestTrimOutliersIdempotent(t *testing.T) {
	panel := &models.Panel{Listings: exampleDataset().Listings, HasPriceColumn: true}
	TrimOutliers(panel, 2.0)
	once := append([]*models.Listing(nil), panel.Listings...)

	TrimOutliers(panel, 2.0)
	assert.Equal(t, once, panel.Listings)
}

func TestTrimOutliersSmallPanelUntouched(t *testing.T) {
	panel := &models.Panel{HasPriceColumn: true, Listings: []*models.Listing{
		priced(10, 3, 4), priced(10, 3, 4), priced(10, 3, 4), priced(1000, 3, 4),
	}}
	TrimOutliers(panel, 0.5)
	assert.Equal(t, 4, panel.Size())
}

func TestTrimOutliersZeroVariance(t *testing.T) {
	panel := &models.Panel{HasPriceColumn: true}
	for i := 0; i < 6; i++ {
		panel.Listings = append(panel.Listings, priced(100, 3, 4))
	}
	TrimOutliers(panel, 2.0)
	assert.Equal(t, 6, panel.Size())
}

func TestTrimOutliersDropsUnpriced(t *testing.T) {
	panel := &models.Panel{HasPriceColumn: true}
	for i := 0; i < 5; i++ {
		panel.Listings = append(panel.Listings, priced(100+float64(i), 3, 4))
	}
	panel.Listings = append(panel.Listings, &models.Listing{})

	TrimOutliers(panel, 2.0)
	assert.Equal(t, 5, panel.Size())
	for _, l := range panel.Listings {
		assert.True(t, l.HasPrice())
	}
}

func TestTrimOutliersWithoutPriceColumn(t *testing.T) {
	panel := &models.Panel{}
	for i := 0; i < 6; i++ {
		panel.Listings = append(panel.Listings, &models.Listing{})
	}
	TrimOutliers(panel, 2.0)
	assert.Equal(t, 6, panel.Size())
}
