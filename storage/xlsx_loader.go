package storage

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"rental-pricer/models"
	"rental-pricer/services"
)

// parseXLSX reads the listings and parameters sheets of a workbook.
func parseXLSX(content []byte, cleaner *services.Cleaner) (*models.Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("xlsx: open workbook: %w", err)
	}
	defer f.Close()

	var tables tableSet
	for _, sheet := range f.GetSheetList() {
		switch {
		case isListingsTable(sheet) && tables.listings == nil:
			rows, err := f.GetRows(sheet)
			if err != nil {
				return nil, fmt.Errorf("xlsx: read sheet %q: %w", sheet, err)
			}
			tables.listings = rows
		case isParametersTable(sheet) && tables.parameters == nil:
			rows, err := f.GetRows(sheet)
			if err != nil {
				return nil, fmt.Errorf("xlsx: read sheet %q: %w", sheet, err)
			}
			tables.parameters = rows
		}
	}

	if tables.listings == nil {
		return nil, fmt.Errorf("xlsx: sheets %v: %w", f.GetSheetList(), ErrMissingTable)
	}
	return buildDataset(tables, content, cleaner)
}
