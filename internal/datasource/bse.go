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
	bseBaseURL    = "https://www.bseindia.com"
	bseAPIBase    = "https://api.bseindia.com/BseIndiaAPI/api"
	bseCookieTTL  = 5 * time.Minute
	bseFetchLimit = 4
)

// BSE fetches quotes from the BSE India endpoints. Quotes are addressed by
// numeric scrip code, so only .BO symbols whose base is numeric are served
// directly; alphabetic .BO bases are left for other providers.
// Session handling mirrors NSE: refresh once and retry on 401/403/429.
type BSE struct {
	client  *http.Client
	session *Session
	limiter *RateLimiter
}

// NewBSE creates the BSE adapter.
func NewBSE(timeout time.Duration) *BSE {
	jar, _ := cookiejar.New(nil)
	client := NewHTTPClient(timeout)
	client.Jar = jar
	return &BSE{
		client:  client,
		session: NewSession(client, bseBaseURL, bseCookieTTL),
		limiter: NewRateLimiter(3, time.Second),
	}
}

// Name returns the adapter name.
func (b *BSE) Name() string { return "bse" }

// Ready always succeeds; BSE needs no API key.
func (b *BSE) Ready() error { return nil }

type bseHeaderResponse struct {
	CurrRate struct {
		LTP   string `json:"LTP"`
		Chg   string `json:"Chg"`
		PcChg string `json:"PcChg"`
	} `json:"CurrRate"`
	Header struct {
		PrevClose      string `json:"PrevClose"`
		Open           string `json:"Open"`
		High           string `json:"High"`
		Low            string `json:"Low"`
		FiftyTwoWkHigh string `json:"Fifty2WkHigh_adj"`
		FiftyTwoWkLow  string `json:"Fifty2WkLow_adj"`
		MktCapFull     string `json:"MktCapFull"`
	} `json:"Header"`
	CompanyName string `json:"CompName"`
	EPS         string `json:"EPS"`
	PE          string `json:"PE"`
	PB          string `json:"PB"`
}

type bseHistResponse struct {
	Data []struct {
		Date  string  `json:"dttm"`
		Open  float64 `json:"open"`
		High  float64 `json:"high"`
		Low   float64 `json:"low"`
		Close float64 `json:"close"`
		Vol   int64   `json:"vol"`
	} `json:"Data"`
}

// Fetch resolves servable .BO symbols with a bounded worker pool.
func (b *BSE) Fetch(ctx context.Context, symbols []string) ([]models.Quote, error) {
	var (
		mu     sync.Mutex
		quotes []models.Quote
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bseFetchLimit)

	served := 0
	for _, sym := range symbols {
		if !b.serves(sym) {
			continue
		}
		served++
		g.Go(func() error {
			q, err := b.fetchOne(gctx, sym)
			if err != nil {
				return nil
			}
			mu.Lock()
			quotes = append(quotes, *q)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, &ProviderError{Provider: b.Name(), Err: err}
	}
	if served > 0 && len(quotes) == 0 {
		return nil, &ProviderError{Provider: b.Name(), Err: errors.New("no symbols resolved")}
	}
	return quotes, nil
}

// serves reports whether the symbol is addressable on the BSE API.
func (b *BSE) serves(sym string) bool {
	if symbol.Exchange(sym) != "BSE" {
		return false
	}
	base := symbol.Base(sym)
	for _, r := range base {
		if r < '0' || r > '9' {
			return false
		}
	}
	return base != ""
}

func (b *BSE) fetchOne(ctx context.Context, sym string) (*models.Quote, error) {
	if err := b.session.Ensure(ctx, false); err != nil {
		return nil, &ProviderError{Provider: b.Name(), Err: err}
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/getScripHeaderData/w?Debtflag=&scripcode=%s&seriesid=", bseAPIBase, symbol.Base(sym))
	data, err := b.getWithRetry(ctx, url)
	if err != nil {
		return nil, &ProviderError{Provider: b.Name(), Err: err}
	}

	var resp bseHeaderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ProviderError{Provider: b.Name(), Err: fmt.Errorf("parse header data: %w", err)}
	}

	q := &models.Quote{
		Symbol:     sym,
		ShortName:  resp.CompanyName,
		Price:      ParseIndianNumber(resp.CurrRate.LTP),
		Change:     ParseIndianNumber(resp.CurrRate.Chg),
		ChangePct:  ParseIndianNumber(resp.CurrRate.PcChg),
		Open:       ParseIndianNumber(resp.Header.Open),
		High:       ParseIndianNumber(resp.Header.High),
		Low:        ParseIndianNumber(resp.Header.Low),
		PrevClose:  ParseIndianNumber(resp.Header.PrevClose),
		WeekHigh52: ParseIndianNumber(resp.Header.FiftyTwoWkHigh),
		WeekLow52:  ParseIndianNumber(resp.Header.FiftyTwoWkLow),
		MarketCap:  ParseIndianNumber(resp.Header.MktCapFull),
		EPS:        ParseIndianNumber(resp.EPS),
		PE:         ParseIndianNumber(resp.PE),
		PB:         ParseIndianNumber(resp.PB),
	}
	NormalizeQuote(q, b.Name(), models.StatusLive)
	return q, nil
}

// DailyHistory returns daily bars for the technical resolver, oldest-first.
func (b *BSE) DailyHistory(ctx context.Context, sym string, lookbackDays int) ([]models.OHLCV, error) {
	if !b.serves(sym) {
		return nil, &ProviderError{Provider: b.Name(), Err: errors.New("not a BSE scrip code: " + sym)}
	}
	if err := b.session.Ensure(ctx, false); err != nil {
		return nil, &ProviderError{Provider: b.Name(), Err: err}
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/StockPriceCSVDownload/w?pageType=0&rbType=D&Scode=%s", bseAPIBase, symbol.Base(sym))
	data, err := b.getWithRetry(ctx, url)
	if err != nil {
		return nil, &ProviderError{Provider: b.Name(), Err: err}
	}

	var resp bseHistResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ProviderError{Provider: b.Name(), Err: fmt.Errorf("parse history: %w", err)}
	}

	cutoff := time.Now().AddDate(0, 0, -lookbackDays)
	candles := make([]models.OHLCV, 0, len(resp.Data))
	for _, e := range resp.Data {
		ts, err := time.Parse("2006-01-02T15:04:05", e.Date)
		if err != nil {
			continue
		}
		if ts.Before(cutoff) {
			continue
		}
		candles = append(candles, models.OHLCV{
			Timestamp: ts,
			Open:      e.Open,
			High:      e.High,
			Low:       e.Low,
			Close:     e.Close,
			Volume:    e.Vol,
		})
	}
	return candles, nil
}

func (b *BSE) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	headers := map[string]string{
		"Accept":  "application/json",
		"Referer": bseBaseURL + "/",
	}
	data, err := Get(ctx, b.client, url, headers)
	if err == nil {
		return data, nil
	}

	var httpErr *ErrHTTP
	retriable := errors.Is(err, ErrRateLimited) ||
		(errors.As(err, &httpErr) && isAuthStatus(httpErr.StatusCode))
	if !retriable {
		return nil, err
	}
	if serr := b.session.Ensure(ctx, true); serr != nil {
		return nil, serr
	}
	return Get(ctx, b.client, url, headers)
}
