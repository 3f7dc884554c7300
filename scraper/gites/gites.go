package gites

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"rental-pricer/config"
	"rental-pricer/models"
	"rental-pricer/utils"
)

const source = "gites"

// ErrNoStartURL is returned when SCRAPE_START_URL is not configured.
var ErrNoStartURL = errors.New("gites: no start URL configured")

var (
	postalRegexp   = regexp.MustCompile(`\b(\d{5})\b`)
	starsRegexp    = regexp.MustCompile(`(\d)\s*(?:épis|epis|étoiles?|etoiles?|stars?|clés?|cles?)`)
	capacityRegexp = regexp.MustCompile(`(\d+)\s*(?:pers(?:onnes?)?|personnes?|guests?|couchages?)`)
	surfaceRegexp  = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*m(?:²|2)`)
)

// amenityKeywords maps amenity columns to the words a card or detail page
// uses for them.
var amenityKeywords = map[string][]string{
	models.ColPool:            {"piscine", "pool"},
	models.ColSpaOrHotTub:     {"spa", "jacuzzi", "bain nordique", "hot tub"},
	models.ColAirConditioning: {"climatisation", "climatisé", "air conditioning"},
	models.ColPrivateGarden:   {"jardin privé", "jardin privatif", "private garden"},
	models.ColWifi:            {"wifi", "wi-fi", "internet"},
	models.ColPetsAllowed:     {"animaux acceptés", "animaux admis", "pets allowed"},
}

// Card is what the listing page script extracts for one rental.
type Card struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Details  string `json:"details"`
	Price    string `json:"price"`
	URL      string `json:"url"`
}

// Scraper collects rental listings from a gîtes directory into raw rows
// shaped like the listings table.
type Scraper struct {
	cfg     *config.Config
	logger  *utils.Logger
	pool    *utils.WorkerPool
	visited *utils.KeySet
	retry   *utils.RetryConfig

	mu       sync.Mutex
	listings []*models.RawListing
}

// New creates a Scraper driven by cfg.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:     cfg,
		logger:  logger,
		pool:    utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
		visited: utils.NewKeySet(),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

// Scrape walks the result pages from the configured start URL and enriches
// each card from its detail page.
func (s *Scraper) Scrape(ctx context.Context) ([]*models.RawListing, error) {
	if s.cfg.ScrapeStartURL == "" {
		return nil, ErrNoStartURL
	}
	s.logger.Info("[gites] Starting scrape: %d pages, %d listings/page", s.cfg.PagesToScrape, s.cfg.ListingsPerPage)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if bin := findChromeBinary(s.cfg.ChromeBin); bin != "" {
		s.logger.Info("[gites] Using browser binary: %s", bin)
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))
	defer cancelBrowser()

	pageURL := s.cfg.ScrapeStartURL
	for page := 1; page <= s.cfg.PagesToScrape && pageURL != ""; page++ {
		s.logger.Info("[gites] Page %d: %s", page, pageURL)

		rows, next, err := s.scrapePage(browserCtx, pageURL, page)
		if err != nil {
			s.logger.Error("[gites] Page %d failed: %v", page, err)
			break
		}
		if len(rows) == 0 {
			s.logger.Warn("[gites] Page %d returned no listings, stopping", page)
			break
		}

		s.enrich(browserCtx, rows)

		s.mu.Lock()
		s.listings = append(s.listings, rows...)
		total := len(s.listings)
		s.mu.Unlock()
		s.logger.Info("[gites] Page %d done, %d listings so far", page, total)

		pageURL = next
		select {
		case <-ctx.Done():
			return s.listings, ctx.Err()
		case <-time.After(time.Duration(s.cfg.RateLimitMs) * time.Millisecond):
		}
	}

	s.logger.Info("[gites] Scrape complete: %d raw listings", len(s.listings))
	return s.listings, nil
}

const cardsScript = `
(function(limit) {
	var out = [], seen = {};
	var cards = document.querySelectorAll('article, [data-testid="listing-card"], .result-item, .card');
	for (var i = 0; i < cards.length && out.length < limit; i++) {
		var c = cards[i];
		var link = c.querySelector('a[href]');
		if (!link || seen[link.href]) continue;
		seen[link.href] = true;
		var txt = function(sel) { var e = c.querySelector(sel); return e ? e.innerText.trim() : ''; };
		out.push({
			name:     txt('h2, h3, .title'),
			location: txt('.location, .city, address'),
			details:  c.innerText,
			price:    txt('.price, [class*="price"], [data-testid="price"]'),
			url:      link.href
		});
	}
	return out;
})(%d)`

const nextScript = `
(function() {
	var a = document.querySelector('a[rel="next"], a[aria-label="Next"], a[aria-label="Suivant"], .pagination .next a');
	return a && a.href ? a.href : '';
})()`

func (s *Scraper) scrapePage(ctx context.Context, pageURL string, page int) ([]*models.RawListing, string, error) {
	var (
		rows []*models.RawListing
		next string
	)

	err := s.retry.Do(ctx, fmt.Sprintf("scrape-page-%d", page), func(ctx context.Context) error {
		tabCtx, cancel := chromedp.NewContext(ctx)
		defer cancel()
		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 90*time.Second)
		defer cancelTimeout()

		var cards []Card
		err := chromedp.Run(tabCtx,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(4*time.Second),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(2*time.Second),
			chromedp.Evaluate(fmt.Sprintf(cardsScript, s.cfg.ListingsPerPage), &cards),
			chromedp.Evaluate(nextScript, &next),
		)
		if err != nil {
			return fmt.Errorf("chromedp page scrape: %w", err)
		}

		s.logger.Debug("[gites] Page %d: %d cards", page, len(cards))
		rows = rows[:0]
		for _, c := range cards {
			if c.URL == "" || !s.visited.Add(c.URL) {
				continue
			}
			rows = append(rows, CardToRaw(c, time.Now()))
		}
		return nil
	})
	return rows, next, err
}

// enrich fills gaps in the card data from each detail page.
func (s *Scraper) enrich(ctx context.Context, rows []*models.RawListing) {
	for _, row := range rows {
		r := row
		url := r.Get("url")
		if url == "" {
			continue
		}
		err := s.pool.Submit(ctx, func(ctx context.Context) {
			text, err := s.detailText(ctx, url)
			if err != nil {
				s.logger.Warn("[gites] Detail page failed for %s: %v", url, err)
				return
			}
			s.mu.Lock()
			MergeDetails(r, text)
			s.mu.Unlock()
		})
		if err != nil {
			s.logger.Warn("[gites] Enrichment stopped: %v", err)
			break
		}
	}
	s.pool.Wait()
}

func (s *Scraper) detailText(ctx context.Context, url string) (string, error) {
	var text string
	err := s.retry.Do(ctx, "detail-page", func(ctx context.Context) error {
		tabCtx, cancel := chromedp.NewContext(ctx)
		defer cancel()
		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 60*time.Second)
		defer cancelTimeout()

		return chromedp.Run(tabCtx,
			chromedp.Navigate(url),
			chromedp.Sleep(3*time.Second),
			chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &text),
		)
	})
	return text, err
}

// CardToRaw maps a scraped card onto listings-table fields. Values are kept
// as text; the Cleaner parses them.
func CardToRaw(c Card, at time.Time) *models.RawListing {
	fields := map[string]string{
		models.ColName:          strings.TrimSpace(c.Name),
		models.ColPricePerNight: strings.TrimSpace(c.Price),
		"url":                   c.URL,
	}

	commune, postal := splitLocation(c.Location)
	fields[models.ColCommune] = commune
	fields[models.ColPostalCode] = postal
	if postal == "" {
		if m := postalRegexp.FindStringSubmatch(c.Details); m != nil {
			fields[models.ColPostalCode] = m[1]
		}
	}

	r := &models.RawListing{Fields: fields, Source: source, ScrapedAt: at}
	MergeDetails(r, c.Details)
	return r
}

// MergeDetails fills fields still empty in r from free text, and raises
// amenity flags whose keywords appear in it.
func MergeDetails(r *models.RawListing, text string) {
	lower := strings.ToLower(text)

	setIfEmpty := func(col string, re *regexp.Regexp) {
		if r.Fields[col] != "" {
			return
		}
		if m := re.FindStringSubmatch(lower); m != nil {
			r.Fields[col] = m[1]
		}
	}
	setIfEmpty(models.ColStars, starsRegexp)
	setIfEmpty(models.ColCapacity, capacityRegexp)
	setIfEmpty(models.ColSurfaceM2, surfaceRegexp)

	for col, words := range amenityKeywords {
		if r.Fields[col] == "1" {
			continue
		}
		r.Fields[col] = "0"
		for _, w := range words {
			if strings.Contains(lower, w) {
				r.Fields[col] = "1"
				break
			}
		}
	}
}

// splitLocation reads "Commune (12345)", "12345 Commune" or "Commune".
func splitLocation(loc string) (commune, postal string) {
	loc = strings.TrimSpace(loc)
	m := postalRegexp.FindStringSubmatchIndex(loc)
	if m == nil {
		return loc, ""
	}
	postal = loc[m[2]:m[3]]
	rest := loc[:m[0]] + loc[m[1]:]
	commune = strings.Trim(rest, " ,-()")
	return commune, postal
}

// findChromeBinary locates a Chrome or Chromium binary. configured wins.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	for _, name := range []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	for _, p := range []string{"/usr/bin/chromium", "/snap/bin/chromium", "/opt/google/chrome/google-chrome"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
