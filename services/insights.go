package services

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"rental-pricer/models"
	"rental-pricer/utils"
)

// InsightService summarises panels and renders the evaluation report.
type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate computes display statistics over the panel rows.
func (s *InsightService) Generate(panel []*models.Listing) *models.InsightReport {
	report := &models.InsightReport{
		ListingsByCommune:   make(map[string]int),
		ListingsWithAmenity: make(map[string]int),
	}
	report.PanelSize = len(panel)

	var prices []float64
	for _, l := range panel {
		if l.Commune != "" {
			report.ListingsByCommune[l.Commune]++
		}
		for name, on := range amenityFlags(l.Features) {
			if on {
				report.ListingsWithAmenity[name]++
			}
		}
		if !l.HasPrice() {
			continue
		}
		price := *l.PricePerNight
		prices = append(prices, price)
		if report.MostExpensive == nil || price > *report.MostExpensive.PricePerNight {
			report.MostExpensive = l
		}
	}

	report.PricedListings = len(prices)
	if len(prices) > 0 {
		sorted := sortedCopy(prices)
		report.MinPrice = round2(sorted[0])
		report.MaxPrice = round2(sorted[len(sorted)-1])
		report.AveragePrice = round2(mean(prices))
	}
	return report
}

// Print writes the evaluation report: the panel sorted by price, the
// recommendation and the positioning of the proposed price.
func (s *InsightService) Print(w io.Writer, ev *Evaluation, r *models.InsightReport) {
	sep := strings.Repeat("═", 72)
	thin := strings.Repeat("─", 72)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  NIGHTLY RATE COMPARISON\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Panel: %d comparables\033[0m\n", len(ev.Panel))
	fmt.Fprintf(w, "  %s\n", thin)
	if len(ev.Panel) > 0 {
		fmt.Fprintf(w, "  %-24s %-16s %5s %4s %7s %-10s %-9s %9s\n",
			"Name", "Commune", "Stars", "Cap", "m²", "Season", "Day", "€/night")
		for _, l := range ev.Panel {
			fmt.Fprintf(w, "  %-24s %-16s %5s %4s %7s %-10s %-9s %9s\n",
				truncate(l.Name, 24), truncate(l.Commune, 16), optInt(l.Stars), optInt(l.Capacity),
				optFloat(l.SurfaceM2), truncate(l.Season, 10), truncate(l.DayType, 9), optPrice(l.PricePerNight))
		}
	}
	fmt.Fprintln(w)

	reco := ev.Recommendation
	if reco == nil {
		fmt.Fprintf(w, "\033[1;31m  Empty panel: widen the filters (stars ±1, postal code/commune, tolerances).\033[0m\n")
		fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
		return
	}

	fmt.Fprintf(w, "\033[1;33m  Recommendation\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Recommended price : \033[1;32m%s €/night\033[0m\n", FormatEuros(reco.RecommendedPrice))
	fmt.Fprintf(w, "  Range             : \033[1m%s€–%s€\033[0m\n", FormatEuros(reco.PriceRange.Low), FormatEuros(reco.PriceRange.High))
	fmt.Fprintf(w, "  Median: %s€ | Q1: %s€ | Q3: %s€\n", FormatEuros(reco.Median), FormatEuros(reco.Q1), FormatEuros(reco.Q3))
	if ev.ProposedPrice != nil {
		fmt.Fprintf(w, "  Proposed %s€ : %s\n", FormatEuros(*ev.ProposedPrice), positioningMessage(ev.Positioning))
	}
	fmt.Fprintln(w)

	if r != nil && r.PricedListings > 0 {
		fmt.Fprintf(w, "\033[1;33m  Panel statistics\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  Average : %.2f €   Min : %.2f €   Max : %.2f €\n", r.AveragePrice, r.MinPrice, r.MaxPrice)
		if r.MostExpensive != nil {
			fmt.Fprintf(w, "  Most expensive : %s (%s)\n", truncate(r.MostExpensive.Name, 40), r.MostExpensive.Commune)
		}

		type commune struct {
			name  string
			count int
		}
		var communes []commune
		for name, cnt := range r.ListingsByCommune {
			communes = append(communes, commune{name, cnt})
		}
		sort.Slice(communes, func(i, j int) bool {
			if communes[i].count != communes[j].count {
				return communes[i].count > communes[j].count
			}
			return communes[i].name < communes[j].name
		})
		for _, c := range communes {
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(c.name, 28), strings.Repeat("█", c.count), c.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func positioningMessage(p models.Positioning) string {
	switch p {
	case models.PositioningCompetitive:
		return "competitive (below market)"
	case models.PositioningHigh:
		return "high (above market)"
	default:
		return "aligned with market"
	}
}

// FormatEuros renders a whole-euro amount with spaces between thousands:
// 1234.6 -> "1 235".
func FormatEuros(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	digits := fmt.Sprintf("%.0f", v)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(d)
	}
	if neg && digits != "0" {
		return "-" + b.String()
	}
	return b.String()
}

func amenityFlags(f models.Features) map[string]bool {
	return map[string]bool{
		models.ColPool:            f.Pool,
		models.ColSpaOrHotTub:     f.SpaOrHotTub,
		models.ColAirConditioning: f.AirConditioning,
		models.ColPrivateGarden:   f.PrivateGarden,
		models.ColWifi:            f.Wifi,
		models.ColPetsAllowed:     f.PetsAllowed,
	}
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *v)
}

func optPrice(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
