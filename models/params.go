package models

// Params are the tunable coefficients of the panel builder and the price
// adjustment. Percentages are whole percents (12 means +12%).
type Params struct {
	CapacityTolerance     int     `json:"capacity_tolerance"`
	SurfaceToleranceM2    float64 `json:"surface_tolerance_m2"`
	OutlierSigmaThreshold float64 `json:"outlier_sigma_threshold"`

	PoolPct          float64 `json:"pool_pct"`
	SpaPct           float64 `json:"spa_pct"`
	ACPct            float64 `json:"ac_pct"`
	PrivateGardenPct float64 `json:"private_garden_pct"`
	WifiPct          float64 `json:"wifi_pct"`
	PetsPct          float64 `json:"pets_pct"`
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		CapacityTolerance:     2,
		SurfaceToleranceM2:    20,
		OutlierSigmaThreshold: 2.0,
		PoolPct:               12,
		SpaPct:                8,
		ACPct:                 5,
		PrivateGardenPct:      3,
		WifiPct:               0,
		PetsPct:               -3,
	}
}
