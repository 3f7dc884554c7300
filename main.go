package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"rental-pricer/config"
	"rental-pricer/models"
	"rental-pricer/scraper/gites"
	"rental-pricer/server"
	"rental-pricer/services"
	"rental-pricer/storage"
	"rental-pricer/utils"
)

const usage = `Usage: rental-pricer <command> [flags]

Commands:
  evaluate   price a target against the dataset (default)
  serve      run the JSON API
  import     copy a workbook or CSV dataset into the configured database
  scrape     collect listings from a gîtes directory into CSV (and the database)
`

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()
	logger.SetDebug(cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := "evaluate", os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var code int
	switch cmd {
	case "evaluate":
		code = runEvaluate(ctx, cfg, logger, args)
	case "serve":
		code = runServe(ctx, cfg, logger, args)
	case "import":
		code = runImport(ctx, cfg, logger, args)
	case "scrape":
		code = runScrape(ctx, cfg, logger, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		code = 1
	}
	os.Exit(code)
}

func runEvaluate(ctx context.Context, cfg *config.Config, logger *utils.Logger, args []string) int {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	datasetPath := fs.String("dataset", cfg.DatasetPath, "Workbook, listings CSV or directory (file source)")
	source := fs.String("source", cfg.DatasetSource, "Dataset source: file, postgres or sqlite")
	commune := fs.String("commune", "", "Commune")
	postal := fs.String("postal-code", "", "Postal code")
	stars := fs.String("stars", "", "Star rating (épis)")
	capacity := fs.String("capacity", "", "Capacity; dataset median when empty")
	surface := fs.String("surface", "", "Surface in m²; dataset median when empty")
	season := fs.String("season", "", "Season")
	dayType := fs.String("day-type", "", "Day type")
	pool := fs.Bool("pool", false, "Pool")
	spa := fs.Bool("spa", false, "Spa or hot tub")
	ac := fs.Bool("ac", false, "Air conditioning")
	garden := fs.Bool("garden", false, "Private garden")
	wifi := fs.Bool("wifi", false, "Wifi")
	pets := fs.Bool("pets", false, "Pets allowed")
	proposed := fs.String("price", "", "Proposed nightly price to position")
	asJSON := fs.Bool("json", false, "Print the evaluation as JSON")
	_ = fs.Parse(args)

	cfg.DatasetPath, cfg.DatasetSource = *datasetPath, *source
	loader := storage.NewLoader(logger)
	ds, err := loadDataset(ctx, cfg, loader, logger)
	if err != nil {
		logger.Error("Failed to load dataset: %v", err)
		return 1
	}

	target := services.ParseTarget(map[string]any{
		models.ColCommune:         *commune,
		models.ColPostalCode:      *postal,
		models.ColStars:           *stars,
		models.ColCapacity:        *capacity,
		models.ColSurfaceM2:       *surface,
		models.ColSeason:          *season,
		models.ColDayType:         *dayType,
		models.ColPool:            *pool,
		models.ColSpaOrHotTub:     *spa,
		models.ColAirConditioning: *ac,
		models.ColPrivateGarden:   *garden,
		models.ColWifi:            *wifi,
		models.ColPetsAllowed:     *pets,
	})
	target = services.WithDatasetMedians(target, ds)
	params := services.ParseParams(ds.Parameters, logger)

	var proposedPrice *float64
	if *proposed != "" {
		p, err := strconv.ParseFloat(*proposed, 64)
		if err != nil {
			logger.Error("Invalid -price %q: %v", *proposed, err)
			return 1
		}
		proposedPrice = &p
	}

	ev, err := services.NewPricer(logger).Evaluate(ds, target, params, proposedPrice)
	if err != nil && !errors.Is(err, services.ErrEmptyPanel) {
		logger.Error("Evaluation failed: %v", err)
		return 1
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(ev)
	} else {
		insightSvc := services.NewInsightService(logger)
		insightSvc.Print(os.Stdout, ev, insightSvc.Generate(ev.Panel))
	}

	if errors.Is(err, services.ErrEmptyPanel) {
		return 2
	}
	return 0
}

func runServe(ctx context.Context, cfg *config.Config, logger *utils.Logger, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", cfg.ServerAddr, "Listen address")
	preload := fs.Bool("preload", true, "Load the configured dataset at startup")
	_ = fs.Parse(args)

	loader := storage.NewLoader(logger)
	if *preload {
		ds, err := loadDataset(ctx, cfg, loader, logger)
		if err != nil {
			logger.Warn("Default dataset not loaded: %v", err)
		} else {
			logger.Info("Default dataset %s (%d listings)", ds.Hash, len(ds.Listings))
		}
	}

	srv := server.New(loader, logger, server.Options{
		MaxUploadBytes:   int64(cfg.MaxUploadMB) << 20,
		CacheEvaluations: cfg.PanelCacheOn,
	})
	if err := srv.Run(ctx, *addr); err != nil {
		logger.Error("Server failed: %v", err)
		return 1
	}
	return 0
}

func runImport(ctx context.Context, cfg *config.Config, logger *utils.Logger, args []string) int {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	from := fs.String("from", cfg.DatasetPath, "Workbook, listings CSV or directory to import")
	to := fs.String("to", config.SourceSQLite, "Destination: postgres or sqlite")
	_ = fs.Parse(args)

	ds, err := storage.NewLoader(logger).LoadFile(*from)
	if err != nil {
		logger.Error("Failed to load %s: %v", *from, err)
		return 1
	}

	store, err := openStore(ctx, cfg, *to, logger)
	if err != nil {
		logger.Error("Failed to open %s store: %v", *to, err)
		return 1
	}
	defer store.Close()

	if err := store.Write(ctx, ds); err != nil {
		logger.Error("Import failed: %v", err)
		return 1
	}
	logger.Info("Imported %d listings and %d parameters into %s", len(ds.Listings), len(ds.Parameters), *to)
	return 0
}

func runScrape(ctx context.Context, cfg *config.Config, logger *utils.Logger, args []string) int {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	startURL := fs.String("url", cfg.ScrapeStartURL, "First result page")
	out := fs.String("out", cfg.CSVOutputPath, "Raw CSV output path")
	store := fs.String("store", "", "Also store cleaned listings: postgres or sqlite")
	_ = fs.Parse(args)
	cfg.ScrapeStartURL = *startURL

	logger.Info("Config: pages %d | listings/page %d | concurrency %d | rate %dms",
		cfg.PagesToScrape, cfg.ListingsPerPage, cfg.MaxConcurrency, cfg.RateLimitMs)

	csvWriter, err := storage.NewCSVWriter(*out)
	if err != nil {
		logger.Error("Failed to create CSV writer: %v", err)
		return 1
	}
	defer csvWriter.Close()

	rawListings, err := gites.New(cfg, logger).Scrape(ctx)
	if err != nil {
		logger.Error("Scrape failed: %v", err)
	}
	if len(rawListings) == 0 {
		logger.Error("No listings were scraped")
		return 1
	}

	if err := csvWriter.WriteRaw(rawListings); err != nil {
		logger.Error("CSV write failed: %v", err)
		return 1
	}
	logger.Info("Raw listings saved to %s", *out)

	if *store == "" {
		return 0
	}

	listings := services.NewCleaner(logger).Clean(rawListings)
	dbStore, err := openStore(ctx, cfg, *store, logger)
	if err != nil {
		logger.Error("Failed to open %s store: %v", *store, err)
		return 1
	}
	defer dbStore.Close()

	if err := dbStore.ReplaceListings(ctx, listings); err != nil {
		logger.Error("Store write failed: %v", err)
		return 1
	}
	logger.Info("Stored %d cleaned listings in %s", len(listings), *store)
	return 0
}

// loadDataset reads the configured source and registers the dataset in the
// loader's cache.
func loadDataset(ctx context.Context, cfg *config.Config, loader *storage.Loader, logger *utils.Logger) (*models.Dataset, error) {
	var src storage.DatasetSource
	if cfg.DatasetSource == config.SourceFile || cfg.DatasetSource == "" {
		src = &storage.FileSource{Path: cfg.DatasetPath, Loader: loader}
	} else {
		store, err := openStore(ctx, cfg, cfg.DatasetSource, logger)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		src = store
	}

	ds, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return loader.Cache().Put(ds), nil
}

func openStore(ctx context.Context, cfg *config.Config, kind string, logger *utils.Logger) (*storage.SQLStore, error) {
	switch kind {
	case config.SourcePostgres:
		retry := &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: time.Second, Logger: logger}
		return storage.NewPostgresStore(ctx, cfg.DSN(), retry, logger)
	case config.SourceSQLite:
		return storage.NewSQLiteStore(ctx, cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}
