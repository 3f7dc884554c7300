package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"rental-pricer/models"
	"rental-pricer/utils"
)

var (
	// amountRegexp captures the first numeric amount, with optional
	// thousands separators and a decimal point or comma.
	amountRegexp = regexp.MustCompile(`-?\d[\d\s\x{00a0}\x{202f}.,]*`)
	// nightsRegexp captures "X nights" / "X nuits" patterns on scraped prices
	nightsRegexp = regexp.MustCompile(`(\d+)\s*(?:nights?|nuits?)`)
)

// Cleaner transforms raw table rows into typed Listings.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean converts raw rows. Blank rows are dropped; cells that cannot be
// parsed become absent values rather than errors.
func (c *Cleaner) Clean(raw []*models.RawListing) []*models.Listing {
	result := make([]*models.Listing, 0, len(raw))

	for i, r := range raw {
		if isBlankRow(r) {
			c.logger.Debug("[cleaner] Dropping blank row %d", i+1)
			continue
		}

		listing := &models.Listing{
			Name:          normaliseText(r.Get(models.ColName)),
			Commune:       normaliseText(r.Get(models.ColCommune)),
			PostalCode:    normalisePostalCode(r.Get(models.ColPostalCode)),
			Stars:         parseOptionalInt(r.Get(models.ColStars)),
			Type:          normaliseText(r.Get(models.ColType)),
			Capacity:      parseOptionalInt(r.Get(models.ColCapacity)),
			SurfaceM2:     parseOptionalFloat(r.Get(models.ColSurfaceM2)),
			Season:        normaliseText(r.Get(models.ColSeason)),
			DayType:       normaliseText(r.Get(models.ColDayType)),
			PricePerNight: c.parsePrice(r.Get(models.ColPricePerNight)),
			Features: models.Features{
				Pool:            CoerceFlag(r.Get(models.ColPool)),
				SpaOrHotTub:     CoerceFlag(r.Get(models.ColSpaOrHotTub)),
				AirConditioning: CoerceFlag(r.Get(models.ColAirConditioning)),
				PrivateGarden:   CoerceFlag(r.Get(models.ColPrivateGarden)),
				Wifi:            CoerceFlag(r.Get(models.ColWifi)),
				PetsAllowed:     CoerceFlag(r.Get(models.ColPetsAllowed)),
			},
		}

		if listing.PricePerNight == nil {
			c.logger.Debug("[cleaner] Row %d (%s) has no usable price", i+1, listing.Name)
		}
		result = append(result, listing)
	}

	c.logger.Info("[cleaner] Cleaned %d -> %d listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

// parsePrice extracts a nightly amount and converts multi-night prices to a
// per-night rate:
//
//	"95"                 -> 95
//	"1 250,50 €"         -> 1250.50
//	"450 € pour 3 nuits" -> 150
func (c *Cleaner) parsePrice(raw string) *float64 {
	amount, ok := parseAmount(raw)
	if !ok {
		return nil
	}

	if m := nightsRegexp.FindStringSubmatch(strings.ToLower(raw)); len(m) >= 2 {
		if nights, err := strconv.Atoi(m[1]); err == nil && nights > 1 {
			perNight := amount / float64(nights)
			c.logger.Debug("[cleaner] Multi-night price: %.2f for %d nights = %.2f/night", amount, nights, perNight)
			return &perNight
		}
	}
	return &amount
}

// parseAmount reads the first number in s. A single comma or a trailing
// group of one or two digits after the last separator is a decimal part;
// other separators group thousands.
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f, true
	}
	match := strings.TrimRight(amountRegexp.FindString(s), " .,\u00a0\u202f")
	if match == "" {
		return 0, false
	}
	match = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\u202f' {
			return -1
		}
		return r
	}, match)

	lastSep := strings.LastIndexAny(match, ".,")
	if lastSep >= 0 && len(match)-lastSep-1 <= 2 {
		intPart := strings.NewReplacer(".", "", ",", "").Replace(match[:lastSep])
		match = intPart + "." + match[lastSep+1:]
	} else {
		match = strings.NewReplacer(".", "", ",", "").Replace(match)
	}
	return parseNumber(match)
}

func parseOptionalFloat(s string) *float64 {
	f, ok := parseNumber(s)
	if !ok {
		return nil
	}
	return &f
}

// parseOptionalInt accepts "3" and spreadsheet-style "3.0".
func parseOptionalInt(s string) *int {
	f, ok := parseNumber(s)
	if !ok {
		return nil
	}
	n := int(f)
	return &n
}

// normalisePostalCode keeps the code as text; spreadsheet numerics such as
// "75001.0" lose their decimal tail.
func normalisePostalCode(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, ".0") {
		if _, err := strconv.Atoi(strings.TrimSuffix(s, ".0")); err == nil {
			return strings.TrimSuffix(s, ".0")
		}
	}
	return s
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

func isBlankRow(r *models.RawListing) bool {
	if r == nil {
		return true
	}
	for _, v := range r.Fields {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
