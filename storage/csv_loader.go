package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"rental-pricer/models"
	"rental-pricer/services"
)

// parseCSV reads a listings CSV and an optional parameters CSV (nil when
// absent). The delimiter is sniffed from the header line: ";" as written by
// French spreadsheet exports, "," otherwise.
func parseCSV(listings, parameters []byte, cleaner *services.Cleaner) (*models.Dataset, error) {
	listingRows, err := readCSV(listings)
	if err != nil {
		return nil, fmt.Errorf("csv: read listings: %w", err)
	}
	if len(listingRows) == 0 {
		return nil, fmt.Errorf("csv: %w", ErrMissingTable)
	}

	var paramRows [][]string
	if parameters != nil {
		paramRows, err = readCSV(parameters)
		if err != nil {
			return nil, fmt.Errorf("csv: read parameters: %w", err)
		}
	}

	content := append(append([]byte{}, listings...), parameters...)
	return buildDataset(tableSet{listings: listingRows, parameters: paramRows}, content, cleaner)
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}
