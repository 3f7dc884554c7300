package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rental-pricer/models"
	"rental-pricer/utils"
)

func TestParseParamsDefaults(t *testing.T) {
	assert.Equal(t, models.DefaultParams(), ParseParams(nil, utils.Discard()))
	assert.Equal(t, models.DefaultParams(), ParseParams(map[string]string{"unrelated": "1"}, nil))
}

func TestParseParamsKeysAndAliases(t *testing.T) {
	p := ParseParams(map[string]string{
		"capacity_tolerance":           "3",
		"filtre_surface_plus_moins_m2": "15,5",
		"seuil_outliers_sigma":         "2.5",
		"facteur_piscine_pct":          "10",
		"pool_pct":                     "14",
		"facteur_animaux_pct":          "-5",
	}, utils.Discard())

	assert.Equal(t, 3, p.CapacityTolerance)
	assert.InDelta(t, 15.5, p.SurfaceToleranceM2, 1e-9)
	assert.InDelta(t, 2.5, p.OutlierSigmaThreshold, 1e-9)
	assert.InDelta(t, 14.0, p.PoolPct, 1e-9, "canonical key wins over the legacy alias")
	assert.InDelta(t, -5.0, p.PetsPct, 1e-9)
	assert.InDelta(t, 8.0, p.SpaPct, 1e-9)
}

func TestParseParamsFallsBackPerField(t *testing.T) {
	p := ParseParams(map[string]string{
		"capacity_tolerance": "lots",
		"pool_pct":           "",
		"spa_pct":            "NaN",
		"ac_pct":             "7",
	}, utils.Discard())

	def := models.DefaultParams()
	assert.Equal(t, def.CapacityTolerance, p.CapacityTolerance)
	assert.Equal(t, def.PoolPct, p.PoolPct)
	assert.Equal(t, def.SpaPct, p.SpaPct)
	assert.InDelta(t, 7.0, p.ACPct, 1e-9)
}

func TestParseParamsTruncatesIntegers(t *testing.T) {
	p := ParseParams(map[string]string{"capacity_tolerance": "2.9"}, nil)
	assert.Equal(t, 2, p.CapacityTolerance)
}

func TestMergeParamsKeepsBase(t *testing.T) {
	base := models.DefaultParams()
	base.PoolPct = 20
	base.CapacityTolerance = 4

	p := MergeParams(base, map[string]string{"spa_pct": "1"}, nil)
	assert.InDelta(t, 20.0, p.PoolPct, 1e-9)
	assert.Equal(t, 4, p.CapacityTolerance)
	assert.InDelta(t, 1.0, p.SpaPct, 1e-9)

	p = MergeParams(base, map[string]string{"pool_pct": "bad"}, nil)
	assert.InDelta(t, models.DefaultParams().PoolPct, p.PoolPct, 1e-9)
}

func TestParamsToMapParsesBack(t *testing.T) {
	p := models.DefaultParams()
	p.SurfaceToleranceM2 = 12.5
	assert.Equal(t, p, ParseParams(ParamsToMap(p), nil))
}
