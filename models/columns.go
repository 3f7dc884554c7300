package models

import "strings"

// Canonical column names of the listings and parameters tables.
const (
	ColName          = "name"
	ColCommune       = "commune"
	ColPostalCode    = "postal_code"
	ColStars         = "stars"
	ColType          = "type"
	ColCapacity      = "capacity"
	ColSurfaceM2     = "surface_m2"
	ColSeason        = "season"
	ColDayType       = "day_type"
	ColPricePerNight = "price_per_night"

	ColPool            = "pool"
	ColSpaOrHotTub     = "spa_or_hot_tub"
	ColAirConditioning = "air_conditioning"
	ColPrivateGarden   = "private_garden"
	ColWifi            = "wifi"
	ColPetsAllowed     = "pets_allowed"

	ColParamKey   = "key"
	ColParamValue = "value"
)

// ListingColumns is the listings table layout used when writing datasets.
var ListingColumns = []string{
	ColName, ColCommune, ColPostalCode, ColStars, ColType, ColCapacity,
	ColSurfaceM2, ColSeason, ColDayType, ColPricePerNight,
	ColPool, ColSpaOrHotTub, ColAirConditioning, ColPrivateGarden, ColWifi, ColPetsAllowed,
}

// columnAliases maps headers found in existing French workbooks onto the
// canonical names.
var columnAliases = map[string]string{
	"nom":               ColName,
	"code_postal":       ColPostalCode,
	"cp":                ColPostalCode,
	"epis_gdf":          ColStars,
	"epis":              ColStars,
	"épis_gdf":          ColStars,
	"épis":              ColStars,
	"type_logement":     ColType,
	"capacite":          ColCapacity,
	"capacité":          ColCapacity,
	"surface":           ColSurfaceM2,
	"surface_area":      ColSurfaceM2,
	"saison":            ColSeason,
	"jour_semaine":      ColDayType,
	"prix_par_nuit_ttc": ColPricePerNight,
	"prix_par_nuit":     ColPricePerNight,
	"piscine":           ColPool,
	"spa_bain_nordique": ColSpaOrHotTub,
	"spa":               ColSpaOrHotTub,
	"climatisation":     ColAirConditioning,
	"jardin_prive":      ColPrivateGarden,
	"jardin_privé":      ColPrivateGarden,
	"animaux_acceptes":  ColPetsAllowed,
	"animaux_acceptés":  ColPetsAllowed,
	"cle":               ColParamKey,
	"valeur":            ColParamValue,
}

// CanonicalColumn normalises a header cell: trimmed, lower-cased, spaces
// and dashes turned into underscores, aliases resolved.
func CanonicalColumn(header string) string {
	key := headerReplacer.Replace(strings.ToLower(strings.TrimSpace(header)))
	if canonical, ok := columnAliases[key]; ok {
		return canonical
	}
	return key
}

var headerReplacer = strings.NewReplacer(" ", "_", "-", "_")
