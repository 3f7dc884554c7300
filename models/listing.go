package models

import "time"

// RawListing holds one unprocessed row of the listings table, keyed by
// canonical column name. Loaders and the scraper produce it; the cleaner
// turns it into a Listing.
type RawListing struct {
	Fields    map[string]string
	Source    string
	ScrapedAt time.Time
}

// Get returns the raw value of a column, or "" when the column is absent.
func (r *RawListing) Get(column string) string {
	if r == nil || r.Fields == nil {
		return ""
	}
	return r.Fields[column]
}

// Features are the amenity flags that drive the price adjustment.
type Features struct {
	Pool            bool `json:"pool"`
	SpaOrHotTub     bool `json:"spa_or_hot_tub"`
	AirConditioning bool `json:"air_conditioning"`
	PrivateGarden   bool `json:"private_garden"`
	Wifi            bool `json:"wifi"`
	PetsAllowed     bool `json:"pets_allowed"`
}

// Listing is one comparable lodging observation.
// Numeric attributes are nil when the source cell was empty or unparseable.
type Listing struct {
	ID            int64    `json:"id,omitempty"`
	Name          string   `json:"name"`
	Commune       string   `json:"commune"`
	PostalCode    string   `json:"postal_code"`
	Stars         *int     `json:"stars"`
	Type          string   `json:"type"`
	Capacity      *int     `json:"capacity"`
	SurfaceM2     *float64 `json:"surface_m2"`
	Season        string   `json:"season"`
	DayType       string   `json:"day_type"`
	PricePerNight *float64 `json:"price_per_night"`
	Features      Features `json:"features"`
}

// HasPrice reports whether the listing can take part in price statistics.
func (l *Listing) HasPrice() bool {
	return l != nil && l.PricePerNight != nil
}

// Target is the listing being priced. Empty strings and nil pointers mean
// "unset"; the matching filter stage is skipped.
type Target struct {
	Commune    string   `json:"commune,omitempty"`
	PostalCode string   `json:"postal_code,omitempty"`
	Stars      *int     `json:"stars,omitempty"`
	Type       string   `json:"type,omitempty"`
	Capacity   *int     `json:"capacity,omitempty"`
	SurfaceM2  *float64 `json:"surface_m2,omitempty"`
	Season     string   `json:"season,omitempty"`
	DayType    string   `json:"day_type,omitempty"`
	Features   Features `json:"features"`
}

// Dataset is the loaded workbook: the listings table, the raw parameters
// table and whether the listings table carried a price column.
type Dataset struct {
	Hash           string
	Listings       []*Listing
	Parameters     map[string]string
	HasPriceColumn bool
	LoadedAt       time.Time
}

// Panel is the filtered set of comparables for one target.
type Panel struct {
	Listings       []*Listing `json:"listings"`
	HasPriceColumn bool       `json:"-"`
}

// Size returns the number of rows in the panel.
func (p *Panel) Size() int {
	if p == nil {
		return 0
	}
	return len(p.Listings)
}

// Prices returns the prices of the priced rows, in panel order.
func (p *Panel) Prices() []float64 {
	if p == nil {
		return nil
	}
	out := make([]float64, 0, len(p.Listings))
	for _, l := range p.Listings {
		if l.HasPrice() {
			out = append(out, *l.PricePerNight)
		}
	}
	return out
}

// IntPtr and FloatPtr build optional values.
func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }
