package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/guregu/null/v6"

	"github.com/avinashsk/equitydesk/pkg/models"
	"github.com/avinashsk/equitydesk/pkg/symbol"
)

const scannerURL = "https://scanner.tradingview.com/india/scan"

// scannerColumns is the column set requested from the scan endpoint. Order
// matters: values come back positionally.
var scannerColumns = []string{
	"name",
	"description",
	"close",
	"change_abs",
	"change",
	"open",
	"high",
	"low",
	"volume",
	"market_cap_basic",
	"price_earnings_ttm",
	"earnings_per_share_basic_ttm",
	"price_book_fq",
	"EMA50",
	"EMA200",
}

// Scanner fetches quotes from the TradingView scan endpoint, which accepts
// the whole symbol batch in one request and also exposes EMA columns used by
// the technical cascade.
type Scanner struct {
	client  *http.Client
	limiter *RateLimiter
}

// NewScanner creates the scan-vendor adapter.
func NewScanner(timeout time.Duration) *Scanner {
	return &Scanner{
		client:  NewHTTPClient(timeout),
		limiter: NewRateLimiter(2, time.Second),
	}
}

// Name returns the adapter name.
func (s *Scanner) Name() string { return "scanner" }

// Ready always succeeds; the scan endpoint needs no key.
func (s *Scanner) Ready() error { return nil }

type scanRequest struct {
	Symbols scanSymbols `json:"symbols"`
	Columns []string    `json:"columns"`
}

type scanSymbols struct {
	Tickers []string `json:"tickers"`
}

type scanResponse struct {
	Data []struct {
		Ticker string `json:"s"` // e.g. "NSE:RELIANCE"
		Values []any  `json:"d"`
	} `json:"data"`
}

// Fetch issues a single batched scan for all symbols.
func (s *Scanner) Fetch(ctx context.Context, symbols []string) ([]models.Quote, error) {
	rows, err := s.scan(ctx, symbols)
	if err != nil {
		return nil, err
	}

	quotes := make([]models.Quote, 0, len(rows))
	for sym, vals := range rows {
		q := models.Quote{
			Symbol:    sym,
			ShortName: vals.str(1),
			Price:     vals.num(2),
			Change:    vals.num(3),
			ChangePct: vals.num(4),
			Open:      vals.num(5),
			High:      vals.num(6),
			Low:       vals.num(7),
			Volume:    vals.intNum(8),
			MarketCap: vals.num(9),
			PE:        vals.num(10),
			EPS:       vals.num(11),
			PB:        vals.num(12),
			EMA50:     vals.num(13),
			EMA200:    vals.num(14),
		}
		NormalizeQuote(&q, s.Name(), models.StatusDelayed)
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// TechnicalFields returns the scan vendor's own EMA columns for one symbol,
// used as a mid-cascade fallback by the technical resolver.
func (s *Scanner) TechnicalFields(ctx context.Context, sym string) (models.TechnicalSnapshot, error) {
	rows, err := s.scan(ctx, []string{sym})
	if err != nil {
		return models.TechnicalSnapshot{}, err
	}
	vals, ok := rows[sym]
	if !ok {
		return models.TechnicalSnapshot{}, &ProviderError{Provider: s.Name(), Err: fmt.Errorf("no scan row for %s", sym)}
	}
	return models.TechnicalSnapshot{
		EMA50:  vals.num(13),
		EMA200: vals.num(14),
		Source: s.Name(),
	}, nil
}

func (s *Scanner) scan(ctx context.Context, symbols []string) (map[string]scanValues, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	tickers := make([]string, 0, len(symbols))
	bySite := make(map[string]string, len(symbols)) // site ticker -> canonical
	for _, sym := range symbols {
		t := siteTicker(sym)
		tickers = append(tickers, t)
		bySite[t] = sym
	}

	payload, err := json.Marshal(scanRequest{
		Symbols: scanSymbols{Tickers: tickers},
		Columns: scannerColumns,
	})
	if err != nil {
		return nil, &ProviderError{Provider: s.Name(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, scannerURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Provider: s.Name(), Err: err}
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: s.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ProviderError{Provider: s.Name(), Err: &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: s.Name(), Err: err}
	}

	var parsed scanResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &ProviderError{Provider: s.Name(), Err: fmt.Errorf("parse scan response: %w", err)}
	}

	rows := make(map[string]scanValues, len(parsed.Data))
	for _, d := range parsed.Data {
		sym, ok := bySite[d.Ticker]
		if !ok {
			continue
		}
		rows[sym] = scanValues(d.Values)
	}
	return rows, nil
}

// siteTicker converts a canonical symbol to the scan vendor's EXCHANGE:BASE form.
func siteTicker(sym string) string {
	return symbol.Exchange(sym) + ":" + symbol.Base(sym)
}

// scanValues reads positional scan columns defensively: the endpoint returns
// null for unavailable cells.
type scanValues []any

func (v scanValues) num(i int) null.Float {
	if i >= len(v) {
		return null.Float{}
	}
	f, ok := v[i].(float64)
	if !ok || f == 0 {
		return null.Float{}
	}
	return null.FloatFrom(f)
}

func (v scanValues) intNum(i int) null.Int {
	f := v.num(i)
	if !f.Valid {
		return null.Int{}
	}
	return null.IntFrom(int64(f.Float64))
}

func (v scanValues) str(i int) string {
	if i >= len(v) {
		return ""
	}
	s, _ := v[i].(string)
	return s
}
