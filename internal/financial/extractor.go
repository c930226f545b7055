package financial

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/avinashsk/equitydesk/internal/cache"
	"github.com/avinashsk/equitydesk/internal/datasource"
	"github.com/avinashsk/equitydesk/pkg/models"
	"github.com/avinashsk/equitydesk/pkg/symbol"
)

const (
	screenerBaseURL = "https://www.screener.in"
	sourceName      = "screener"

	// DefaultQuarters is the report width when the caller does not ask for one.
	DefaultQuarters = 6
	// MaxQuarters caps the report width regardless of what the caller asks.
	MaxQuarters = 8
)

// urlVariants is tried in order per candidate ID until a page parses.
var urlVariants = []string{"consolidated/", "standalone/", ""}

// Options tunes one GetQuarterly call.
type Options struct {
	Limit        int  // quarters to return; clamped to [1, MaxQuarters]
	ForceRefresh bool // bypass the report cache
}

// Extractor scrapes quarterly results from Screener.in company pages.
// Successful reports are cached per (symbol, limit); failed extractions are
// reported as unavailable and never cached, so transient outages retry on the
// next call.
type Extractor struct {
	client  *http.Client
	limiter *datasource.RateLimiter
	lookup  symbol.Lookup
	store   *cache.Store[models.FinancialReport]
	ttl     time.Duration
}

// NewExtractor creates the extractor. ttl <= 0 selects the 6h default.
func NewExtractor(timeout, ttl time.Duration, lookup symbol.Lookup) *Extractor {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Extractor{
		client:  datasource.NewHTTPClient(timeout),
		limiter: datasource.NewRateLimiter(1, time.Second),
		lookup:  lookup,
		store:   cache.New[models.FinancialReport](ttl),
		ttl:     ttl,
	}
}

// GetQuarterly returns the quarterly report for a symbol. Extraction failures
// come back as a report with DataStatus unavailable and a diagnostic, never as
// an error.
func (e *Extractor) GetQuarterly(ctx context.Context, rawSym string, opts Options) models.FinancialReport {
	sym := symbol.Normalize(rawSym)
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultQuarters
	}
	if limit > MaxQuarters {
		limit = MaxQuarters
	}

	key := fmt.Sprintf("%s:%d", sym, limit)
	if !opts.ForceRefresh {
		if cached, ok := e.store.Get(key); ok {
			cached.DataStatus = models.StatusCached
			return cached
		}
	}

	var lastErr error
	for _, id := range e.candidates(ctx, sym) {
		for _, variant := range urlVariants {
			url := fmt.Sprintf("%s/company/%s/%s", screenerBaseURL, id, variant)
			report, err := e.extract(ctx, sym, url, limit)
			if err != nil {
				lastErr = err
				continue
			}
			e.store.Put(key, report)
			return report
		}
	}

	diag := "no quarterly results found for " + sym
	if lastErr != nil {
		diag = fmt.Sprintf("%s: %v", diag, lastErr)
	}
	return models.FinancialReport{
		Symbol:     sym,
		Source:     sourceName,
		DataStatus: models.StatusUnavailable,
		Diagnostic: diag,
		FetchedAt:  time.Now(),
	}
}

// extract downloads one page variant and builds a report from it.
func (e *Extractor) extract(ctx context.Context, sym, url string, limit int) (models.FinancialReport, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return models.FinancialReport{}, err
	}

	data, err := datasource.Get(ctx, e.client, url, map[string]string{"Accept": "text/html"})
	if err != nil {
		return models.FinancialReport{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return models.FinancialReport{}, fmt.Errorf("parse HTML: %w", err)
	}

	labels, raw, err := parseQuarterly(doc, limit)
	if err != nil {
		return models.FinancialReport{}, err
	}
	rows := deriveRows(raw)
	if len(rows) == 0 {
		return models.FinancialReport{}, &datasource.ParseError{Source: sourceName, What: "recognizable metric rows"}
	}

	return models.FinancialReport{
		Symbol:        sym,
		CompanyName:   strings.TrimSpace(doc.Find("h1").First().Text()),
		Source:        sourceName,
		SourceURL:     url,
		DataStatus:    models.StatusLive,
		QuarterLabels: labels,
		Rows:          rows,
		FetchedAt:     time.Now(),
	}, nil
}

// candidates lists the site IDs to try for a symbol: its own base (NSE ticker
// or BSE scrip code), then a symbol-master alias when one resolves.
func (e *Extractor) candidates(ctx context.Context, sym string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	add(symbol.Base(sym))
	if e.lookup != nil {
		if alias, err := e.lookup.ResolveAlias(ctx, sym); err == nil {
			add(symbol.Base(alias))
		}
	}
	return out
}

// Flush drops all cached reports.
func (e *Extractor) Flush() { e.store.Flush() }
