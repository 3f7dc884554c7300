package services

import (
	"fmt"
	"math"
	"strings"

	"rental-pricer/models"
)

// CoerceFlag normalises boolean-like input. Present means 1, "1", "True",
// "true" or boolean true; anything else is absent.
func CoerceFlag(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int:
		return x == 1
	case int64:
		return x == 1
	case float64:
		return x == 1
	case string:
		switch strings.TrimSpace(x) {
		case "1", "True", "true":
			return true
		}
		return false
	default:
		return false
	}
}

// ParseTarget builds a Target from loosely typed input such as a decoded
// JSON object or form values. Keys use the canonical column names (French
// aliases accepted). Values that cannot be read leave the field unset.
func ParseTarget(raw map[string]any) models.Target {
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		fields[models.CanonicalColumn(k)] = v
	}

	t := models.Target{
		Commune:    textValue(fields[models.ColCommune]),
		PostalCode: normalisePostalCode(textValue(fields[models.ColPostalCode])),
		Stars:      intValue(fields[models.ColStars]),
		Type:       textValue(fields[models.ColType]),
		Capacity:   intValue(fields[models.ColCapacity]),
		SurfaceM2:  floatValue(fields[models.ColSurfaceM2]),
		Season:     textValue(fields[models.ColSeason]),
		DayType:    textValue(fields[models.ColDayType]),
		Features: models.Features{
			Pool:            CoerceFlag(fields[models.ColPool]),
			SpaOrHotTub:     CoerceFlag(fields[models.ColSpaOrHotTub]),
			AirConditioning: CoerceFlag(fields[models.ColAirConditioning]),
			PrivateGarden:   CoerceFlag(fields[models.ColPrivateGarden]),
			Wifi:            CoerceFlag(fields[models.ColWifi]),
			PetsAllowed:     CoerceFlag(fields[models.ColPetsAllowed]),
		},
	}
	return t
}

func textValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return normaliseText(x)
	case float64:
		if x == math.Trunc(x) {
			return fmt.Sprintf("%.0f", x)
		}
		return fmt.Sprint(x)
	default:
		return normaliseText(fmt.Sprint(x))
	}
}

func floatValue(v any) *float64 {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return &x
	case int:
		f := float64(x)
		return &f
	case int64:
		f := float64(x)
		return &f
	case string:
		return parseOptionalFloat(x)
	default:
		return nil
	}
}

func intValue(v any) *int {
	f := floatValue(v)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}
