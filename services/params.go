package services

import (
	"math"
	"strconv"
	"strings"

	"rental-pricer/models"
	"rental-pricer/utils"
)

// Parameter keys recognised in the parameters table.
const (
	KeyCapacityTolerance     = "capacity_tolerance"
	KeySurfaceToleranceM2    = "surface_tolerance_m2"
	KeyOutlierSigmaThreshold = "outlier_sigma_threshold"
	KeyPoolPct               = "pool_pct"
	KeySpaPct                = "spa_pct"
	KeyACPct                 = "ac_pct"
	KeyPrivateGardenPct      = "private_garden_pct"
	KeyWifiPct               = "wifi_pct"
	KeyPetsPct               = "pets_pct"
)

// legacyParamKeys are the keys used by existing French workbooks.
var legacyParamKeys = map[string]string{
	KeyCapacityTolerance:     "filtre_capacite_plus_moins",
	KeySurfaceToleranceM2:    "filtre_surface_plus_moins_m2",
	KeyOutlierSigmaThreshold: "seuil_outliers_sigma",
	KeyPoolPct:               "facteur_piscine_pct",
	KeySpaPct:                "facteur_spa_pct",
	KeyACPct:                 "facteur_clim_pct",
	KeyPrivateGardenPct:      "facteur_jardin_prive_pct",
	KeyWifiPct:               "facteur_wifi_pct",
	KeyPetsPct:               "facteur_animaux_pct",
}

// ParseParams turns the raw parameters table into typed Params. Missing or
// unparseable values fall back to the default of their field; this never
// fails. logger may be nil.
func ParseParams(raw map[string]string, logger *utils.Logger) models.Params {
	return MergeParams(models.DefaultParams(), raw, logger)
}

// MergeParams overlays raw values on base. Keys absent from raw keep the
// base value; unparseable values fall back to the documented default.
func MergeParams(base models.Params, raw map[string]string, logger *utils.Logger) models.Params {
	def := models.DefaultParams()
	p := base

	p.CapacityTolerance = paramInt(raw, KeyCapacityTolerance, p.CapacityTolerance, def.CapacityTolerance, logger)
	p.SurfaceToleranceM2 = paramFloat(raw, KeySurfaceToleranceM2, p.SurfaceToleranceM2, def.SurfaceToleranceM2, logger)
	p.OutlierSigmaThreshold = paramFloat(raw, KeyOutlierSigmaThreshold, p.OutlierSigmaThreshold, def.OutlierSigmaThreshold, logger)
	p.PoolPct = paramFloat(raw, KeyPoolPct, p.PoolPct, def.PoolPct, logger)
	p.SpaPct = paramFloat(raw, KeySpaPct, p.SpaPct, def.SpaPct, logger)
	p.ACPct = paramFloat(raw, KeyACPct, p.ACPct, def.ACPct, logger)
	p.PrivateGardenPct = paramFloat(raw, KeyPrivateGardenPct, p.PrivateGardenPct, def.PrivateGardenPct, logger)
	p.WifiPct = paramFloat(raw, KeyWifiPct, p.WifiPct, def.WifiPct, logger)
	p.PetsPct = paramFloat(raw, KeyPetsPct, p.PetsPct, def.PetsPct, logger)

	return p
}

// ParamsToMap renders p back into the parameters table form.
func ParamsToMap(p models.Params) map[string]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return map[string]string{
		KeyCapacityTolerance:     strconv.Itoa(p.CapacityTolerance),
		KeySurfaceToleranceM2:    f(p.SurfaceToleranceM2),
		KeyOutlierSigmaThreshold: f(p.OutlierSigmaThreshold),
		KeyPoolPct:               f(p.PoolPct),
		KeySpaPct:                f(p.SpaPct),
		KeyACPct:                 f(p.ACPct),
		KeyPrivateGardenPct:      f(p.PrivateGardenPct),
		KeyWifiPct:               f(p.WifiPct),
		KeyPetsPct:               f(p.PetsPct),
	}
}

// lookupParam finds key, then its legacy alias.
func lookupParam(raw map[string]string, key string) (string, bool) {
	if v, ok := raw[key]; ok {
		return v, true
	}
	if legacy, ok := legacyParamKeys[key]; ok {
		if v, ok := raw[legacy]; ok {
			return v, true
		}
	}
	return "", false
}

func paramFloat(raw map[string]string, key string, current, fallback float64, logger *utils.Logger) float64 {
	v, ok := lookupParam(raw, key)
	if !ok {
		return current
	}
	f, ok := parseNumber(v)
	if !ok {
		if logger != nil {
			logger.Debug("[params] %s=%q is not a number, using default %v", key, v, fallback)
		}
		return fallback
	}
	return f
}

func paramInt(raw map[string]string, key string, current, fallback int, logger *utils.Logger) int {
	v, ok := lookupParam(raw, key)
	if !ok {
		return current
	}
	f, ok := parseNumber(v)
	if !ok {
		if logger != nil {
			logger.Debug("[params] %s=%q is not a number, using default %d", key, v, fallback)
		}
		return fallback
	}
	return int(f)
}

// parseNumber accepts plain numbers and a decimal comma ("2,5").
// NaN and infinities are rejected.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		f, err = strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		if err != nil {
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
