package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"rental-pricer/models"
)

// CSVWriter writes listings rows in the listings table layout, so its output
// loads back with Loader.LoadFile. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

var _ RawListingWriter = (*CSVWriter)(nil)

// csvHeader is the canonical listings layout plus provenance columns.
var csvHeader = append(append([]string{}, models.ListingColumns...), "source", "scraped_at")

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteRaw appends raw rows as scraped.
func (c *CSVWriter) WriteRaw(listings []*models.RawListing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		row := make([]string, 0, len(csvHeader))
		for _, col := range models.ListingColumns {
			row = append(row, l.Get(col))
		}
		scrapedAt := ""
		if !l.ScrapedAt.IsZero() {
			scrapedAt = l.ScrapedAt.Format(time.RFC3339)
		}
		row = append(row, l.Source, scrapedAt)
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// WriteListings appends cleaned listings.
func (c *CSVWriter) WriteListings(listings []*models.Listing, source string) error {
	raw := make([]*models.RawListing, 0, len(listings))
	for _, l := range listings {
		raw = append(raw, &models.RawListing{Fields: listingFields(l), Source: source})
	}
	return c.WriteRaw(raw)
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}

func listingFields(l *models.Listing) map[string]string {
	optInt := func(v *int) string {
		if v == nil {
			return ""
		}
		return strconv.Itoa(*v)
	}
	optFloat := func(v *float64) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	}
	flag := func(b bool) string {
		if b {
			return "1"
		}
		return "0"
	}
	return map[string]string{
		models.ColName:            l.Name,
		models.ColCommune:         l.Commune,
		models.ColPostalCode:      l.PostalCode,
		models.ColStars:           optInt(l.Stars),
		models.ColType:            l.Type,
		models.ColCapacity:        optInt(l.Capacity),
		models.ColSurfaceM2:       optFloat(l.SurfaceM2),
		models.ColSeason:          l.Season,
		models.ColDayType:         l.DayType,
		models.ColPricePerNight:   optFloat(l.PricePerNight),
		models.ColPool:            flag(l.Features.Pool),
		models.ColSpaOrHotTub:     flag(l.Features.SpaOrHotTub),
		models.ColAirConditioning: flag(l.Features.AirConditioning),
		models.ColPrivateGarden:   flag(l.Features.PrivateGarden),
		models.ColWifi:            flag(l.Features.Wifi),
		models.ColPetsAllowed:     flag(l.Features.PetsAllowed),
	}
}
