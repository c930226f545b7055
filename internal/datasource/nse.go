package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avinashsk/equitydesk/pkg/models"
	"github.com/avinashsk/equitydesk/pkg/symbol"
)

const (
	nseBaseURL    = "https://www.nseindia.com"
	nseAPIBase    = "https://www.nseindia.com/api"
	nseCookieTTL  = 5 * time.Minute
	nseFetchLimit = 4 // concurrent per-symbol requests
)

// NSE fetches quotes and daily history from the NSE India endpoints.
// The API requires a bootstrapped cookie session; on 401/403/429 the adapter
// refreshes the session once and retries the same request exactly once.
type NSE struct {
	client  *http.Client
	session *Session
	limiter *RateLimiter
}

// NewNSE creates the NSE adapter.
func NewNSE(timeout time.Duration) *NSE {
	jar, _ := cookiejar.New(nil)
	client := NewHTTPClient(timeout)
	client.Jar = jar
	return &NSE{
		client:  client,
		session: NewSession(client, nseBaseURL, nseCookieTTL),
		limiter: NewRateLimiter(3, time.Second),
	}
}

// Name returns the adapter name used in provider ordering and traces.
func (n *NSE) Name() string { return "nse" }

// Ready always succeeds; NSE needs no API key.
func (n *NSE) Ready() error { return nil }

// --- NSE JSON response types ---

type nseQuoteResponse struct {
	Info struct {
		Symbol      string `json:"symbol"`
		CompanyName string `json:"companyName"`
		Industry    string `json:"industry"`
	} `json:"info"`
	PriceInfo struct {
		LastPrice       float64 `json:"lastPrice"`
		Change          float64 `json:"change"`
		PChange         float64 `json:"pChange"`
		Open            float64 `json:"open"`
		PreviousClose   float64 `json:"previousClose"`
		IntraDayHighLow struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"intraDayHighLow"`
		WeekHighLow struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"weekHighLow"`
	} `json:"priceInfo"`
	SecurityWiseDP struct {
		QuantityTraded int64 `json:"quantityTraded"`
	} `json:"securityWiseDP"`
	Metadata struct {
		PdSymbolPe string `json:"pdSymbolPe"`
	} `json:"metadata"`
}

type nseHistEntry struct {
	Date   string  `json:"CH_TIMESTAMP"`
	Open   float64 `json:"CH_OPENING_PRICE"`
	High   float64 `json:"CH_TRADE_HIGH_PRICE"`
	Low    float64 `json:"CH_TRADE_LOW_PRICE"`
	Close  float64 `json:"CH_CLOSING_PRICE"`
	Volume int64   `json:"CH_TOT_TRADED_QTY"`
}

// Fetch resolves each .NS symbol with a bounded worker pool. Symbols listed
// on the other exchange are left for other providers.
func (n *NSE) Fetch(ctx context.Context, symbols []string) ([]models.Quote, error) {
	var (
		mu     sync.Mutex
		quotes []models.Quote
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(nseFetchLimit)

	served := 0
	for _, sym := range symbols {
		if symbol.Exchange(sym) != "NSE" {
			continue
		}
		served++
		g.Go(func() error {
			q, err := n.fetchOne(gctx, sym)
			if err != nil {
				return nil // per-symbol miss, not a batch failure
			}
			mu.Lock()
			quotes = append(quotes, *q)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, &ProviderError{Provider: n.Name(), Err: err}
	}
	if served > 0 && len(quotes) == 0 {
		return nil, &ProviderError{Provider: n.Name(), Err: errors.New("no symbols resolved")}
	}
	return quotes, nil
}

func (n *NSE) fetchOne(ctx context.Context, sym string) (*models.Quote, error) {
	if err := n.session.Ensure(ctx, false); err != nil {
		return nil, &ProviderError{Provider: n.Name(), Err: err}
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/quote-equity?symbol=%s&section=trade_info", nseAPIBase, symbol.Base(sym))
	data, err := n.getWithRetry(ctx, url)
	if err != nil {
		return nil, &ProviderError{Provider: n.Name(), Err: err}
	}

	var resp nseQuoteResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ProviderError{Provider: n.Name(), Err: fmt.Errorf("parse quote: %w", err)}
	}

	q := &models.Quote{
		Symbol:     sym,
		ShortName:  resp.Info.CompanyName,
		Price:      nzFloat(resp.PriceInfo.LastPrice),
		Change:     nzFloat(resp.PriceInfo.Change),
		ChangePct:  nzFloat(resp.PriceInfo.PChange),
		Open:       nzFloat(resp.PriceInfo.Open),
		High:       nzFloat(resp.PriceInfo.IntraDayHighLow.Max),
		Low:        nzFloat(resp.PriceInfo.IntraDayHighLow.Min),
		PrevClose:  nzFloat(resp.PriceInfo.PreviousClose),
		WeekHigh52: nzFloat(resp.PriceInfo.WeekHighLow.Max),
		WeekLow52:  nzFloat(resp.PriceInfo.WeekHighLow.Min),
		Volume:     nzInt(resp.SecurityWiseDP.QuantityTraded),
		PE:         ParseIndianNumber(resp.Metadata.PdSymbolPe),
	}
	NormalizeQuote(q, n.Name(), models.StatusLive)
	return q, nil
}

// DailyHistory returns up to lookbackDays of daily bars for the technical
// resolver. Bars arrive oldest-first.
func (n *NSE) DailyHistory(ctx context.Context, sym string, lookbackDays int) ([]models.OHLCV, error) {
	if symbol.Exchange(sym) != "NSE" {
		return nil, &ProviderError{Provider: n.Name(), Err: errors.New("not an NSE symbol: " + sym)}
	}
	if err := n.session.Ensure(ctx, false); err != nil {
		return nil, &ProviderError{Provider: n.Name(), Err: err}
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	to := time.Now()
	from := to.AddDate(0, 0, -lookbackDays)
	url := fmt.Sprintf(
		"%s/historical/cm/equity?symbol=%s&from=%s&to=%s",
		nseAPIBase, symbol.Base(sym),
		from.Format("02-01-2006"), to.Format("02-01-2006"),
	)
	data, err := n.getWithRetry(ctx, url)
	if err != nil {
		return nil, &ProviderError{Provider: n.Name(), Err: err}
	}

	var resp struct {
		Data []nseHistEntry `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ProviderError{Provider: n.Name(), Err: fmt.Errorf("parse historical: %w", err)}
	}

	candles := make([]models.OHLCV, 0, len(resp.Data))
	for _, e := range resp.Data {
		ts, err := time.Parse("02-Jan-2006", e.Date)
		if err != nil {
			continue
		}
		candles = append(candles, models.OHLCV{
			Timestamp: ts,
			Open:      e.Open,
			High:      e.High,
			Low:       e.Low,
			Close:     e.Close,
			Volume:    e.Volume,
		})
	}
	// NSE returns newest-first; flip to oldest-first.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// getWithRetry performs the API GET, refreshing the session and retrying
// exactly once on auth-class statuses.
func (n *NSE) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	headers := map[string]string{
		"Accept":           "application/json",
		"Referer":          nseBaseURL,
		"X-Requested-With": "XMLHttpRequest",
	}
	data, err := Get(ctx, n.client, url, headers)
	if err == nil {
		return data, nil
	}

	var httpErr *ErrHTTP
	retriable := errors.Is(err, ErrRateLimited) ||
		(errors.As(err, &httpErr) && isAuthStatus(httpErr.StatusCode))
	if !retriable {
		return nil, err
	}
	if serr := n.session.Ensure(ctx, true); serr != nil {
		return nil, serr
	}
	return Get(ctx, n.client, url, headers)
}
