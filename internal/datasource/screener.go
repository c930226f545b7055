package datasource

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/guregu/null/v6"

	"github.com/avinashsk/equitydesk/pkg/models"
	"github.com/avinashsk/equitydesk/pkg/symbol"
)

const screenerBaseURL = "https://www.screener.in"

// Screener scrapes quotes from Screener.in company pages. It is the
// last-resort quote source: slower than the API vendors but keyless and
// independent of them. Price, market cap and ratios come from the
// labeled top-ratios list; parsing is best-effort against markup drift.
type Screener struct {
	client  *http.Client
	limiter *RateLimiter
}

// NewScreener creates the Screener.in scrape adapter.
func NewScreener(timeout time.Duration) *Screener {
	return &Screener{
		client:  NewHTTPClient(timeout),
		limiter: NewRateLimiter(1, time.Second), // conservative: 1 req/s
	}
}

// Name returns the adapter name.
func (s *Screener) Name() string { return "screener" }

// Ready always succeeds; scraping needs no key.
func (s *Screener) Ready() error { return nil }

// Fetch scrapes each symbol's company page sequentially.
func (s *Screener) Fetch(ctx context.Context, symbols []string) ([]models.Quote, error) {
	var quotes []models.Quote
	var lastErr error
	for _, sym := range symbols {
		q, err := s.fetchOne(ctx, sym)
		if err != nil {
			lastErr = err
			continue
		}
		quotes = append(quotes, *q)
	}
	if len(quotes) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return quotes, nil
}

func (s *Screener) fetchOne(ctx context.Context, sym string) (*models.Quote, error) {
	doc, err := s.fetchDoc(ctx, sym)
	if err != nil {
		return nil, err
	}

	fields := topRatioFields(doc)

	q := &models.Quote{
		Symbol:     sym,
		ShortName:  strings.TrimSpace(doc.Find("h1").First().Text()),
		Price:      fields.match("Current Price"),
		MarketCap:  fields.match("Market Cap"),
		PE:         fields.match("Stock P/E", "P/E"),
		PB:         fields.match("Price to book", "Price to Book"),
		WeekHigh52: fields.matchPair("High / Low", 0),
		WeekLow52:  fields.matchPair("High / Low", 1),
		EPS:        fields.match("EPS"),
	}
	NormalizeQuote(q, s.Name(), models.StatusDelayed)

	if !q.Usable() {
		return nil, &ParseError{Source: s.Name(), What: "price for " + sym}
	}
	return q, nil
}

// TechnicalFields scrapes the moving-average labels from the company page.
// Screener surfaces 50/200 DMA values in the ratios area on most pages.
func (s *Screener) TechnicalFields(ctx context.Context, sym string) (models.TechnicalSnapshot, error) {
	doc, err := s.fetchDoc(ctx, sym)
	if err != nil {
		return models.TechnicalSnapshot{}, err
	}

	fields := topRatioFields(doc)
	snap := models.TechnicalSnapshot{
		EMA50:  fields.match("50 DMA", "DMA 50"),
		EMA200: fields.match("200 DMA", "DMA 200"),
		Source: s.Name(),
	}
	if snap.Empty() {
		return snap, &ParseError{Source: s.Name(), What: "technical section for " + sym}
	}
	return snap, nil
}

// fetchDoc downloads the company page, preferring consolidated figures.
func (s *Screener) fetchDoc(ctx context.Context, sym string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	base := symbol.Base(sym)
	var lastErr error
	for _, variant := range []string{"consolidated/", ""} {
		url := fmt.Sprintf("%s/company/%s/%s", screenerBaseURL, base, variant)
		data, err := Get(ctx, s.client, url, map[string]string{"Accept": "text/html"})
		if err != nil {
			lastErr = err
			continue
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
		if err != nil {
			lastErr = fmt.Errorf("parse HTML: %w", err)
			continue
		}
		return doc, nil
	}
	return nil, &ProviderError{Provider: s.Name(), Err: lastErr}
}

// labeledFields holds the name/value pairs extracted from the page's
// top-ratios list.
type labeledFields []labeledField

type labeledField struct {
	name  string
	value string
}

func topRatioFields(doc *goquery.Document) labeledFields {
	var fields labeledFields
	doc.Find("#top-ratios li").Each(func(_ int, sel *goquery.Selection) {
		fields = append(fields, labeledField{
			name:  strings.TrimSpace(sel.Find(".name").Text()),
			value: strings.TrimSpace(sel.Find(".value").Text()),
		})
	})
	return fields
}

// match returns the parsed value of the first field whose name contains any
// of the given labels.
func (f labeledFields) match(labels ...string) null.Float {
	for _, field := range f {
		for _, label := range labels {
			if strings.Contains(field.name, label) {
				return ParseIndianNumber(field.value)
			}
		}
	}
	return null.Float{}
}

// matchPair splits a "x / y" field and returns part idx.
func (f labeledFields) matchPair(label string, idx int) null.Float {
	for _, field := range f {
		if !strings.Contains(field.name, label) {
			continue
		}
		parts := strings.Split(field.value, "/")
		if idx < len(parts) {
			return ParseIndianNumber(parts[idx])
		}
	}
	return null.Float{}
}
