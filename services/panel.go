package services

import (
	"math"
	"strings"

	"rental-pricer/models"
	"rental-pricer/utils"
)

const (
	// minExactStarsPanel is the exact-rating panel size below which the
	// rating filter widens to ±1.
	minExactStarsPanel = 10
	// minTrimPanel is the smallest panel outlier trimming runs on.
	minTrimPanel = 5
)

// PanelBuilder selects the comparables for a target.
type PanelBuilder struct {
	logger *utils.Logger
}

// NewPanelBuilder creates a PanelBuilder with the given logger.
func NewPanelBuilder(logger *utils.Logger) *PanelBuilder {
	return &PanelBuilder{logger: logger}
}

// Build narrows the dataset's listings stage by stage: location, stars
// (widened to ±1 below ten exact matches), capacity, surface, season, day
// type, then outlier trimming. Unset target fields skip their stage.
func (b *PanelBuilder) Build(ds *models.Dataset, target models.Target, params models.Params) *models.Panel {
	if ds == nil {
		return &models.Panel{}
	}

	rows := filterLocation(ds.Listings, target)
	b.logger.Debug("[panel] location: %d -> %d", len(ds.Listings), len(rows))

	if target.Stars != nil {
		before := len(rows)
		rows = filterStars(rows, *target.Stars)
		b.logger.Debug("[panel] stars=%d: %d -> %d", *target.Stars, before, len(rows))
	}

	if target.Capacity != nil {
		before := len(rows)
		lo, hi := *target.Capacity-params.CapacityTolerance, *target.Capacity+params.CapacityTolerance
		rows = filter(rows, func(l *models.Listing) bool {
			return l.Capacity != nil && *l.Capacity >= lo && *l.Capacity <= hi
		})
		b.logger.Debug("[panel] capacity [%d, %d]: %d -> %d", lo, hi, before, len(rows))
	}

	if target.SurfaceM2 != nil {
		before := len(rows)
		lo, hi := *target.SurfaceM2-params.SurfaceToleranceM2, *target.SurfaceM2+params.SurfaceToleranceM2
		rows = filter(rows, func(l *models.Listing) bool {
			return l.SurfaceM2 != nil && *l.SurfaceM2 >= lo && *l.SurfaceM2 <= hi
		})
		b.logger.Debug("[panel] surface [%.1f, %.1f]: %d -> %d", lo, hi, before, len(rows))
	}

	if target.Season != "" {
		rows = filter(rows, func(l *models.Listing) bool { return strings.EqualFold(l.Season, target.Season) })
	}
	if target.DayType != "" {
		rows = filter(rows, func(l *models.Listing) bool { return strings.EqualFold(l.DayType, target.DayType) })
	}

	panel := &models.Panel{Listings: rows, HasPriceColumn: ds.HasPriceColumn}
	before := panel.Size()
	TrimOutliers(panel, params.OutlierSigmaThreshold)
	if trimmed := before - panel.Size(); trimmed > 0 {
		b.logger.Debug("[panel] trimmed %d outliers (sigma %.2f)", trimmed, params.OutlierSigmaThreshold)
	}

	b.logger.Debug("[panel] %d comparables", panel.Size())
	return panel
}

// TrimOutliers drops rows whose price z-score exceeds sigma, repeating until
// a pass removes nothing. Panels with fewer than five rows or without a
// price column are left alone. Rows without a price have no z-score and are
// dropped. A zero standard deviation is treated as 1.
func TrimOutliers(panel *models.Panel, sigma float64) {
	for panel.Size() >= minTrimPanel && panel.HasPriceColumn {
		kept := trimOnce(panel.Listings, sigma)
		if len(kept) == len(panel.Listings) {
			return
		}
		panel.Listings = kept
	}
}

func trimOnce(rows []*models.Listing, sigma float64) []*models.Listing {
	prices := make([]float64, 0, len(rows))
	for _, l := range rows {
		if l.HasPrice() {
			prices = append(prices, *l.PricePerNight)
		}
	}
	if len(prices) == 0 {
		return nil
	}

	mu := mean(prices)
	sd := populationStddev(prices, mu)
	if sd == 0 {
		sd = 1.0
	}

	return filter(rows, func(l *models.Listing) bool {
		return l.HasPrice() && math.Abs((*l.PricePerNight-mu)/sd) <= sigma
	})
}

func filterLocation(rows []*models.Listing, target models.Target) []*models.Listing {
	postal := strings.TrimSpace(target.PostalCode)
	commune := strings.TrimSpace(target.Commune)
	if postal == "" && commune == "" {
		return rows
	}
	return filter(rows, func(l *models.Listing) bool {
		if postal != "" && l.PostalCode != postal {
			return false
		}
		if commune != "" && !strings.EqualFold(l.Commune, commune) {
			return false
		}
		return true
	})
}

// filterStars keeps the exact rating, or the ±1 range when the exact match
// is too thin. The widened result replaces the exact one.
func filterStars(rows []*models.Listing, stars int) []*models.Listing {
	exact := filter(rows, func(l *models.Listing) bool {
		return l.Stars != nil && *l.Stars == stars
	})
	if len(exact) >= minExactStarsPanel {
		return exact
	}
	return filter(rows, func(l *models.Listing) bool {
		return l.Stars != nil && *l.Stars >= stars-1 && *l.Stars <= stars+1
	})
}

func filter(rows []*models.Listing, keep func(*models.Listing) bool) []*models.Listing {
	out := make([]*models.Listing, 0, len(rows))
	for _, l := range rows {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}
