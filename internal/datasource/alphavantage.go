package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/avinashsk/equitydesk/pkg/models"
	"github.com/avinashsk/equitydesk/pkg/symbol"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantage fetches quotes and daily series from the Alpha Vantage API.
// The adapter is skipped entirely when no API key is configured.
// BSE symbols map to Alpha Vantage's BASE.BSE form; NSE is unsuffixed.
type AlphaVantage struct {
	apiKey  string
	client  *http.Client
	limiter *RateLimiter
}

// NewAlphaVantage creates the adapter; key may be empty.
func NewAlphaVantage(apiKey string, timeout time.Duration) *AlphaVantage {
	return &AlphaVantage{
		apiKey:  apiKey,
		client:  NewHTTPClient(timeout),
		limiter: NewRateLimiter(1, time.Second), // free tier is heavily limited
	}
}

// Name returns the adapter name.
func (a *AlphaVantage) Name() string { return "alphavantage" }

// Ready reports ErrNoAPIKey when the adapter is unconfigured.
func (a *AlphaVantage) Ready() error {
	if a.apiKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

type avGlobalQuote struct {
	GlobalQuote struct {
		Symbol        string `json:"01. symbol"`
		Open          string `json:"02. open"`
		High          string `json:"03. high"`
		Low           string `json:"04. low"`
		Price         string `json:"05. price"`
		Volume        string `json:"06. volume"`
		PreviousClose string `json:"08. previous close"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
	Note string `json:"Note"`
}

// Fetch resolves symbols sequentially; Alpha Vantage has no batch endpoint
// and the free tier cannot sustain parallel calls.
func (a *AlphaVantage) Fetch(ctx context.Context, symbols []string) ([]models.Quote, error) {
	if err := a.Ready(); err != nil {
		return nil, &ProviderError{Provider: a.Name(), Err: err}
	}

	var quotes []models.Quote
	var lastErr error
	for _, sym := range symbols {
		q, err := a.fetchOne(ctx, sym)
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

func (a *AlphaVantage) fetchOne(ctx context.Context, sym string) (*models.Quote, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		alphaVantageBaseURL, url.QueryEscape(a.siteSymbol(sym)), a.apiKey)
	data, err := Get(ctx, a.client, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, &ProviderError{Provider: a.Name(), Err: err}
	}

	var resp avGlobalQuote
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ProviderError{Provider: a.Name(), Err: fmt.Errorf("parse global quote: %w", err)}
	}
	if resp.Note != "" {
		return nil, &ProviderError{Provider: a.Name(), Err: ErrRateLimited}
	}

	q := &models.Quote{
		Symbol:    sym,
		Price:     ParseIndianNumber(resp.GlobalQuote.Price),
		Open:      ParseIndianNumber(resp.GlobalQuote.Open),
		High:      ParseIndianNumber(resp.GlobalQuote.High),
		Low:       ParseIndianNumber(resp.GlobalQuote.Low),
		PrevClose: ParseIndianNumber(resp.GlobalQuote.PreviousClose),
		Change:    ParseIndianNumber(resp.GlobalQuote.Change),
		ChangePct: ParseIndianNumber(resp.GlobalQuote.ChangePercent),
	}
	if v := ParseIndianNumber(resp.GlobalQuote.Volume); v.Valid {
		q.Volume = nzInt(int64(v.Float64))
	}
	NormalizeQuote(q, a.Name(), models.StatusDelayed)
	return q, nil
}

// DailySeries returns the adjusted daily close series, oldest-first.
func (a *AlphaVantage) DailySeries(ctx context.Context, sym string, lookbackDays int) ([]models.OHLCV, error) {
	if err := a.Ready(); err != nil {
		return nil, &ProviderError{Provider: a.Name(), Err: err}
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s?function=TIME_SERIES_DAILY&outputsize=full&symbol=%s&apikey=%s",
		alphaVantageBaseURL, url.QueryEscape(a.siteSymbol(sym)), a.apiKey)
	data, err := Get(ctx, a.client, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, &ProviderError{Provider: a.Name(), Err: err}
	}

	var resp struct {
		Series map[string]struct {
			Open   string `json:"1. open"`
			High   string `json:"2. high"`
			Low    string `json:"3. low"`
			Close  string `json:"4. close"`
			Volume string `json:"5. volume"`
		} `json:"Time Series (Daily)"`
		Note string `json:"Note"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ProviderError{Provider: a.Name(), Err: fmt.Errorf("parse daily series: %w", err)}
	}
	if resp.Note != "" {
		return nil, &ProviderError{Provider: a.Name(), Err: ErrRateLimited}
	}
	if len(resp.Series) == 0 {
		return nil, &ProviderError{Provider: a.Name(), Err: fmt.Errorf("empty series for %s", sym)}
	}

	cutoff := time.Now().AddDate(0, 0, -lookbackDays)
	candles := make([]models.OHLCV, 0, len(resp.Series))
	for date, bar := range resp.Series {
		ts, err := time.Parse("2006-01-02", date)
		if err != nil || ts.Before(cutoff) {
			continue
		}
		c := models.OHLCV{
			Timestamp: ts,
			Open:      ParseIndianNumber(bar.Open).ValueOrZero(),
			High:      ParseIndianNumber(bar.High).ValueOrZero(),
			Low:       ParseIndianNumber(bar.Low).ValueOrZero(),
			Close:     ParseIndianNumber(bar.Close).ValueOrZero(),
		}
		if v := ParseIndianNumber(bar.Volume); v.Valid {
			c.Volume = int64(v.Float64)
		}
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

// siteSymbol maps a canonical symbol to Alpha Vantage's form.
func (a *AlphaVantage) siteSymbol(sym string) string {
	base := symbol.Base(sym)
	if symbol.Exchange(sym) == "BSE" {
		return base + ".BSE"
	}
	return base + ".NSE"
}
