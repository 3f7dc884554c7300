package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"rental-pricer/models"
	"rental-pricer/services"
	"rental-pricer/utils"
)

// Loader reads datasets from workbooks and CSV files. Datasets are immutable
// once loaded and memoized by content hash.
type Loader struct {
	logger  *utils.Logger
	cleaner *services.Cleaner
	cache   *DatasetCache
}

// NewLoader creates a Loader with its own cache.
func NewLoader(logger *utils.Logger) *Loader {
	return &Loader{
		logger:  logger,
		cleaner: services.NewCleaner(logger),
		cache:   NewDatasetCache(),
	}
}

// Cache exposes the loader's dataset cache.
func (l *Loader) Cache() *DatasetCache {
	return l.cache
}

// LoadFile loads a dataset from path: an .xlsx workbook, a listings .csv
// (with an optional parameters.csv next to it), or a directory holding
// listings.csv and optionally parameters.csv.
func (l *Loader) LoadFile(path string) (*models.Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}

	if info.IsDir() {
		return l.loadCSVFiles(filepath.Join(path, "listings.csv"), filepath.Join(path, "parameters.csv"))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return l.loadCSVFiles(path, filepath.Join(filepath.Dir(path), "parameters.csv"))
	default:
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loader: read %q: %w", path, err)
		}
		return l.LoadBytes(filepath.Base(path), content)
	}
}

// LoadBytes loads an uploaded file. name only selects the format.
func (l *Loader) LoadBytes(name string, content []byte) (*models.Dataset, error) {
	hash := ContentHash(content)
	if ds, ok := l.cache.Get(hash); ok {
		l.logger.Debug("[loader] Cache hit for %s (%s)", name, hash[:12])
		return ds, nil
	}

	var (
		ds  *models.Dataset
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		ds, err = parseXLSX(content, l.cleaner)
	case ".csv":
		ds, err = parseCSV(content, nil, l.cleaner)
	default:
		return nil, fmt.Errorf("loader: %q: %w", name, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", name, err)
	}

	ds.Hash = hash
	l.logger.Info("[loader] Loaded %s: %d listings, %d parameters", name, len(ds.Listings), len(ds.Parameters))
	return l.cache.Put(ds), nil
}

func (l *Loader) loadCSVFiles(listingsPath, paramsPath string) (*models.Dataset, error) {
	listings, err := os.ReadFile(listingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("loader: %s: %w", listingsPath, ErrMissingTable)
		}
		return nil, fmt.Errorf("loader: read %q: %w", listingsPath, err)
	}

	var params []byte
	if listingsPath != paramsPath {
		params, err = os.ReadFile(paramsPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loader: read %q: %w", paramsPath, err)
		}
		if err != nil {
			l.logger.Debug("[loader] No parameters file at %s, using defaults", paramsPath)
		}
	}

	hash := ContentHash(append(append([]byte{}, listings...), params...))
	if ds, ok := l.cache.Get(hash); ok {
		return ds, nil
	}

	ds, err := parseCSV(listings, params, l.cleaner)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", listingsPath, err)
	}
	l.logger.Info("[loader] Loaded %s: %d listings, %d parameters", listingsPath, len(ds.Listings), len(ds.Parameters))
	return l.cache.Put(ds), nil
}

// FileSource adapts a path to DatasetSource.
type FileSource struct {
	Path   string
	Loader *Loader
}

// Load implements DatasetSource.
func (s *FileSource) Load(_ context.Context) (*models.Dataset, error) {
	return s.Loader.LoadFile(s.Path)
}

// DatasetCache memoizes datasets by content hash. It is safe for
// concurrent use.
type DatasetCache struct {
	mu     sync.RWMutex
	byHash map[string]*models.Dataset
}

// NewDatasetCache creates an empty cache.
func NewDatasetCache() *DatasetCache {
	return &DatasetCache{byHash: make(map[string]*models.Dataset)}
}

// Get returns the dataset loaded from content with the given hash.
func (c *DatasetCache) Get(hash string) (*models.Dataset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ds, ok := c.byHash[hash]
	return ds, ok
}

// Put stores ds unless an entry with the same hash exists, and returns the
// cached dataset.
func (c *DatasetCache) Put(ds *models.Dataset) *models.Dataset {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.byHash[ds.Hash]; ok {
		return existing
	}
	c.byHash[ds.Hash] = ds
	return ds
}

// Len returns the number of cached datasets.
func (c *DatasetCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byHash)
}
