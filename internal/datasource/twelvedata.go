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

const twelveDataBaseURL = "https://api.twelvedata.com"

// TwelveData fetches quotes and daily series from the Twelve Data API.
// Skipped entirely when no API key is configured.
type TwelveData struct {
	apiKey  string
	client  *http.Client
	limiter *RateLimiter
}

// NewTwelveData creates the adapter; key may be empty.
func NewTwelveData(apiKey string, timeout time.Duration) *TwelveData {
	return &TwelveData{
		apiKey:  apiKey,
		client:  NewHTTPClient(timeout),
		limiter: NewRateLimiter(1, time.Second),
	}
}

// Name returns the adapter name.
func (t *TwelveData) Name() string { return "twelvedata" }

// Ready reports ErrNoAPIKey when the adapter is unconfigured.
func (t *TwelveData) Ready() error {
	if t.apiKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

type tdQuote struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Currency      string `json:"currency"`
	Open          string `json:"open"`
	High          string `json:"high"`
	Low           string `json:"low"`
	Close         string `json:"close"`
	Volume        string `json:"volume"`
	PreviousClose string `json:"previous_close"`
	Change        string `json:"change"`
	PercentChange string `json:"percent_change"`
	FiftyTwoWeek  struct {
		High string `json:"high"`
		Low  string `json:"low"`
	} `json:"fifty_two_week"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Fetch resolves each symbol with its own quote call.
func (t *TwelveData) Fetch(ctx context.Context, symbols []string) ([]models.Quote, error) {
	if err := t.Ready(); err != nil {
		return nil, &ProviderError{Provider: t.Name(), Err: err}
	}

	var quotes []models.Quote
	var lastErr error
	for _, sym := range symbols {
		q, err := t.fetchOne(ctx, sym)
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

func (t *TwelveData) fetchOne(ctx context.Context, sym string) (*models.Quote, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/quote?symbol=%s&exchange=%s&apikey=%s",
		twelveDataBaseURL, url.QueryEscape(symbol.Base(sym)), symbol.Exchange(sym), t.apiKey)
	data, err := Get(ctx, t.client, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, &ProviderError{Provider: t.Name(), Err: err}
	}

	var resp tdQuote
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ProviderError{Provider: t.Name(), Err: fmt.Errorf("parse quote: %w", err)}
	}
	if resp.Status == "error" {
		return nil, &ProviderError{Provider: t.Name(), Err: fmt.Errorf("api error: %s", resp.Message)}
	}

	q := &models.Quote{
		Symbol:     sym,
		ShortName:  resp.Name,
		Currency:   resp.Currency,
		Price:      ParseIndianNumber(resp.Close),
		Open:       ParseIndianNumber(resp.Open),
		High:       ParseIndianNumber(resp.High),
		Low:        ParseIndianNumber(resp.Low),
		PrevClose:  ParseIndianNumber(resp.PreviousClose),
		Change:     ParseIndianNumber(resp.Change),
		ChangePct:  ParseIndianNumber(resp.PercentChange),
		WeekHigh52: ParseIndianNumber(resp.FiftyTwoWeek.High),
		WeekLow52:  ParseIndianNumber(resp.FiftyTwoWeek.Low),
	}
	if v := ParseIndianNumber(resp.Volume); v.Valid {
		q.Volume = nzInt(int64(v.Float64))
	}
	NormalizeQuote(q, t.Name(), models.StatusDelayed)
	return q, nil
}

// DailySeries returns the daily close series, oldest-first.
func (t *TwelveData) DailySeries(ctx context.Context, sym string, lookbackDays int) ([]models.OHLCV, error) {
	if err := t.Ready(); err != nil {
		return nil, &ProviderError{Provider: t.Name(), Err: err}
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/time_series?symbol=%s&exchange=%s&interval=1day&outputsize=%d&apikey=%s",
		twelveDataBaseURL, url.QueryEscape(symbol.Base(sym)), symbol.Exchange(sym), lookbackDays, t.apiKey)
	data, err := Get(ctx, t.client, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, &ProviderError{Provider: t.Name(), Err: err}
	}

	var resp struct {
		Values []struct {
			Datetime string `json:"datetime"`
			Open     string `json:"open"`
			High     string `json:"high"`
			Low      string `json:"low"`
			Close    string `json:"close"`
			Volume   string `json:"volume"`
		} `json:"values"`
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ProviderError{Provider: t.Name(), Err: fmt.Errorf("parse time series: %w", err)}
	}
	if resp.Status == "error" {
		return nil, &ProviderError{Provider: t.Name(), Err: fmt.Errorf("api error: %s", resp.Message)}
	}

	candles := make([]models.OHLCV, 0, len(resp.Values))
	for _, v := range resp.Values {
		ts, err := time.Parse("2006-01-02", v.Datetime)
		if err != nil {
			continue
		}
		c := models.OHLCV{
			Timestamp: ts,
			Open:      ParseIndianNumber(v.Open).ValueOrZero(),
			High:      ParseIndianNumber(v.High).ValueOrZero(),
			Low:       ParseIndianNumber(v.Low).ValueOrZero(),
			Close:     ParseIndianNumber(v.Close).ValueOrZero(),
		}
		if vol := ParseIndianNumber(v.Volume); vol.Valid {
			c.Volume = int64(vol.Float64)
		}
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}
