package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"rental-pricer/models"
	"rental-pricer/services"
)

// tableSet holds the raw listings and parameters tables of one source, each
// as a header row followed by data rows.
type tableSet struct {
	listings   [][]string
	parameters [][]string
}

// buildDataset turns raw tables into a Dataset. A listings table with no
// header row is treated as missing.
func buildDataset(tables tableSet, content []byte, cleaner *services.Cleaner) (*models.Dataset, error) {
	if len(tables.listings) == 0 {
		return nil, ErrMissingTable
	}

	header := make([]string, len(tables.listings[0]))
	hasPrice := false
	for i, h := range tables.listings[0] {
		header[i] = models.CanonicalColumn(h)
		if header[i] == models.ColPricePerNight {
			hasPrice = true
		}
	}

	raw := make([]*models.RawListing, 0, len(tables.listings)-1)
	for _, row := range tables.listings[1:] {
		fields := make(map[string]string, len(header))
		for i, col := range header {
			if col == "" || i >= len(row) {
				continue
			}
			fields[col] = row[i]
		}
		raw = append(raw, &models.RawListing{Fields: fields, Source: "table"})
	}

	return &models.Dataset{
		Hash:           ContentHash(content),
		Listings:       cleaner.Clean(raw),
		Parameters:     parameterMap(tables.parameters),
		HasPriceColumn: hasPrice,
		LoadedAt:       time.Now(),
	}, nil
}

// parameterMap reads a key/value table. Columns are found by header; without
// a recognised header the first two columns are used and every row is data.
func parameterMap(rows [][]string) map[string]string {
	params := make(map[string]string)
	if len(rows) == 0 {
		return params
	}

	keyCol, valCol, start := 0, 1, 0
	for i, h := range rows[0] {
		switch models.CanonicalColumn(h) {
		case models.ColParamKey:
			keyCol, start = i, 1
		case models.ColParamValue:
			valCol, start = i, 1
		}
	}

	for _, row := range rows[start:] {
		if keyCol >= len(row) {
			continue
		}
		key := strings.TrimSpace(row[keyCol])
		if key == "" {
			continue
		}
		val := ""
		if valCol < len(row) {
			val = strings.TrimSpace(row[valCol])
		}
		params[key] = val
	}
	return params
}

// ContentHash identifies a dataset by the bytes it was loaded from.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func isListingsTable(name string) bool {
	switch tableName(name) {
	case "listings", "hebergements", "hébergements":
		return true
	}
	return false
}

func isParametersTable(name string) bool {
	switch tableName(name) {
	case "parameters", "parametres", "paramètres", "params":
		return true
	}
	return false
}

func tableName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
