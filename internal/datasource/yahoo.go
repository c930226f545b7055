package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avinashsk/equitydesk/pkg/models"
)

// yahooHosts are tried in order; the second is a mirror of the first.
var yahooHosts = []string{
	"https://query1.finance.yahoo.com",
	"https://query2.finance.yahoo.com",
}

// Yahoo fetches batched quotes from the Yahoo Finance v7 quote endpoint.
// Canonical BASE.NS / BASE.BO symbols are already in Yahoo's format, so no
// translation is needed.
type Yahoo struct {
	client  *http.Client
	limiter *RateLimiter
}

// NewYahoo creates the Yahoo adapter.
func NewYahoo(timeout time.Duration) *Yahoo {
	return &Yahoo{
		client:  NewHTTPClient(timeout),
		limiter: NewRateLimiter(5, time.Second),
	}
}

// Name returns the adapter name.
func (y *Yahoo) Name() string { return "yahoo" }

// Ready always succeeds; the quote endpoint needs no key.
func (y *Yahoo) Ready() error { return nil }

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []yahooQuoteResult `json:"result"`
		Error  *yahooError        `json:"error"`
	} `json:"quoteResponse"`
}

type yahooQuoteResult struct {
	Symbol                     string  `json:"symbol"`
	ShortName                  string  `json:"shortName"`
	LongName                   string  `json:"longName"`
	Currency                   string  `json:"currency"`
	RegularMarketPrice         float64 `json:"regularMarketPrice"`
	RegularMarketChange        float64 `json:"regularMarketChange"`
	RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
	RegularMarketOpen          float64 `json:"regularMarketOpen"`
	RegularMarketDayHigh       float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow        float64 `json:"regularMarketDayLow"`
	RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
	RegularMarketVolume        int64   `json:"regularMarketVolume"`
	MarketCap                  float64 `json:"marketCap"`
	FiftyTwoWeekHigh           float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow            float64 `json:"fiftyTwoWeekLow"`
	TrailingPE                 float64 `json:"trailingPE"`
	EpsTrailingTwelveMonths    float64 `json:"epsTrailingTwelveMonths"`
	PriceToBook                float64 `json:"priceToBook"`
	FiftyDayAverage            float64 `json:"fiftyDayAverage"`
	TwoHundredDayAverage       float64 `json:"twoHundredDayAverage"`
	MarketState                string  `json:"marketState"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Fetch issues one batched request for all symbols, trying the alternate
// host when the first fails.
func (y *Yahoo) Fetch(ctx context.Context, symbols []string) ([]models.Quote, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	path := "/v7/finance/quote?symbols=" + url.QueryEscape(strings.Join(symbols, ","))

	var (
		data []byte
		err  error
	)
	for _, host := range yahooHosts {
		data, err = Get(ctx, y.client, host+path, map[string]string{"Accept": "application/json"})
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, &ProviderError{Provider: y.Name(), Err: err}
	}

	var resp yahooQuoteResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ProviderError{Provider: y.Name(), Err: fmt.Errorf("parse quote response: %w", err)}
	}
	if resp.QuoteResponse.Error != nil {
		return nil, &ProviderError{Provider: y.Name(), Err: fmt.Errorf("api error: %s", resp.QuoteResponse.Error.Description)}
	}

	quotes := make([]models.Quote, 0, len(resp.QuoteResponse.Result))
	for _, r := range resp.QuoteResponse.Result {
		status := models.StatusLive
		if r.MarketState != "REGULAR" {
			status = models.StatusDelayed
		}
		q := models.Quote{
			Symbol:     r.Symbol,
			ShortName:  coalesce(r.LongName, r.ShortName),
			Currency:   r.Currency,
			Price:      nzFloat(r.RegularMarketPrice),
			Change:     nzFloat(r.RegularMarketChange),
			ChangePct:  nzFloat(r.RegularMarketChangePercent),
			Open:       nzFloat(r.RegularMarketOpen),
			High:       nzFloat(r.RegularMarketDayHigh),
			Low:        nzFloat(r.RegularMarketDayLow),
			PrevClose:  nzFloat(r.RegularMarketPreviousClose),
			Volume:     nzInt(r.RegularMarketVolume),
			MarketCap:  nzFloat(r.MarketCap),
			WeekHigh52: nzFloat(r.FiftyTwoWeekHigh),
			WeekLow52:  nzFloat(r.FiftyTwoWeekLow),
			PE:         nzFloat(r.TrailingPE),
			EPS:        nzFloat(r.EpsTrailingTwelveMonths),
			PB:         nzFloat(r.PriceToBook),
			EMA50:      nzFloat(r.FiftyDayAverage),
			EMA200:     nzFloat(r.TwoHundredDayAverage),
		}
		NormalizeQuote(&q, y.Name(), status)
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// DailySeries returns daily closes from the v8 chart endpoint, oldest-first,
// for the technical resolver.
func (y *Yahoo) DailySeries(ctx context.Context, sym string, lookbackDays int) ([]models.OHLCV, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	to := time.Now()
	from := to.AddDate(0, 0, -lookbackDays)
	path := fmt.Sprintf("/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		url.PathEscape(sym), from.Unix(), to.Unix())

	var (
		data []byte
		err  error
	)
	for _, host := range yahooHosts {
		data, err = Get(ctx, y.client, host+path, map[string]string{"Accept": "application/json"})
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, &ProviderError{Provider: y.Name(), Err: err}
	}

	var resp struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Open   []*float64 `json:"open"`
						High   []*float64 `json:"high"`
						Low    []*float64 `json:"low"`
						Close  []*float64 `json:"close"`
						Volume []*int64   `json:"volume"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
			Error *yahooError `json:"error"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ProviderError{Provider: y.Name(), Err: fmt.Errorf("parse chart response: %w", err)}
	}
	if resp.Chart.Error != nil {
		return nil, &ProviderError{Provider: y.Name(), Err: fmt.Errorf("chart error: %s", resp.Chart.Error.Description)}
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &ProviderError{Provider: y.Name(), Err: fmt.Errorf("no chart data for %s", sym)}
	}

	result := resp.Chart.Result[0]
	q := result.Indicators.Quote[0]
	candles := make([]models.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := models.OHLCV{Timestamp: time.Unix(ts, 0)}
		if i < len(q.Open) && q.Open[i] != nil {
			c.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			c.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			c.Low = *q.Low[i]
		}
		if i < len(q.Close) && q.Close[i] != nil {
			c.Close = *q.Close[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			c.Volume = *q.Volume[i]
		}
		candles = append(candles, c)
	}
	return candles, nil
}
