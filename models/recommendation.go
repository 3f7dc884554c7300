package models

// PriceRange is the adjusted interquartile range of the panel.
type PriceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Recommendation is derived from one target/panel/params triple.
type Recommendation struct {
	PanelSize        int        `json:"panel_size"`
	Median           float64    `json:"median"`
	Q1               float64    `json:"q1"`
	Q3               float64    `json:"q3"`
	RecommendedPrice float64    `json:"recommended_price"`
	PriceRange       PriceRange `json:"price_range"`
}

// Positioning classifies a proposed price against a PriceRange.
type Positioning string

const (
	PositioningCompetitive Positioning = "competitive"
	PositioningAligned     Positioning = "aligned"
	PositioningHigh        Positioning = "high"
)

// InsightReport summarises a panel for display next to the recommendation.
type InsightReport struct {
	PanelSize           int            `json:"panel_size"`
	PricedListings      int            `json:"priced_listings"`
	AveragePrice        float64        `json:"average_price"`
	MinPrice            float64        `json:"min_price"`
	MaxPrice            float64        `json:"max_price"`
	MostExpensive       *Listing       `json:"most_expensive,omitempty"`
	ListingsByCommune   map[string]int `json:"listings_by_commune"`
	ListingsWithAmenity map[string]int `json:"listings_with_amenity"`
}
