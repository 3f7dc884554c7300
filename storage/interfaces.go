package storage

import (
	"context"

	"rental-pricer/models"
)

// DatasetSource is anything a dataset can be loaded from.
type DatasetSource interface {
	Load(ctx context.Context) (*models.Dataset, error)
}

// DatasetWriter is the interface any storage backend must satisfy to
// receive an imported dataset.
type DatasetWriter interface {
	Write(ctx context.Context, ds *models.Dataset) error
	Close() error
}

// RawListingWriter persists unprocessed scraped rows.
type RawListingWriter interface {
	WriteRaw(listings []*models.RawListing) error
	Close() error
}
