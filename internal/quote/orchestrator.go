// Package quote implements the provider-cascade orchestrator: a batch quote
// request runs a priority-ordered resolution pass (first hit wins), an
// enrichment pass that fills only missing fields, and degrades to stale cache
// or a labeled unavailable quote when every provider fails. The caller always
// gets one quote per de-duplicated input symbol, in input order.
package quote

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/avinashsk/equitydesk/internal/cache"
	"github.com/avinashsk/equitydesk/internal/datasource"
	"github.com/avinashsk/equitydesk/internal/technical"
	"github.com/avinashsk/equitydesk/pkg/models"
	"github.com/avinashsk/equitydesk/pkg/symbol"
)

// DefaultProviderOrder is the resolution priority when none is configured.
var DefaultProviderOrder = []string{"nse", "bse", "yahoo", "scanner", "alphavantage", "twelvedata", "screener"}

// Config tunes the orchestrator.
type Config struct {
	ProviderOrder []string
	QuoteTTL      time.Duration // fresh-quote window; default 3m
	Debug         bool
}

// Orchestrator resolves batches of symbols against the registered providers.
type Orchestrator struct {
	registry map[string]datasource.QuoteProvider
	order    []string
	tech     *technical.Resolver
	news     *datasource.News
	store    *cache.Store[models.Quote]
	debug    bool
}

// NewOrchestrator wires the providers. tech and news may be nil; the
// corresponding fill steps are then skipped.
func NewOrchestrator(cfg Config, providers []datasource.QuoteProvider, tech *technical.Resolver, news *datasource.News) *Orchestrator {
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = 3 * time.Minute
	}
	registry := make(map[string]datasource.QuoteProvider, len(providers))
	for _, p := range providers {
		registry[p.Name()] = p
	}
	order := cfg.ProviderOrder
	if len(order) == 0 {
		order = DefaultProviderOrder
	}
	return &Orchestrator{
		registry: registry,
		order:    order,
		tech:     tech,
		news:     news,
		store:    cache.New[models.Quote](cfg.QuoteTTL),
		debug:    cfg.Debug,
	}
}

// GetQuotes resolves a batch of raw symbols. The result always has one quote
// per de-duplicated input symbol, in input order; failures surface as stale or
// unavailable quotes, never as an error.
func (o *Orchestrator) GetQuotes(ctx context.Context, rawSymbols []string) []models.Quote {
	syms := symbol.Dedupe(rawSymbols)
	if len(syms) == 0 {
		return nil
	}

	resolved := make(map[string]*models.Quote, len(syms))
	fromCache := make(map[string]bool, len(syms))
	traces := make(map[string][]string)

	// Partition: cache-fresh symbols short-circuit the cascade.
	var pending []string
	for _, sym := range syms {
		if q, ok := o.store.Get(sym); ok {
			q.DataStatus = models.StatusCached
			resolved[sym] = &q
			fromCache[sym] = true
			continue
		}
		pending = append(pending, sym)
	}

	providers := o.effectiveProviders()

	// Resolution pass: first usable quote per symbol wins.
	for _, p := range providers {
		if len(pending) == 0 {
			break
		}
		if err := p.Ready(); err != nil {
			for _, sym := range pending {
				traces[sym] = append(traces[sym], fmt.Sprintf("%s:skip(%v)", p.Name(), err))
			}
			continue
		}

		quotes, err := p.Fetch(ctx, pending)
		if err != nil {
			o.debugf("provider %s failed: %v", p.Name(), err)
			for _, sym := range pending {
				traces[sym] = append(traces[sym], fmt.Sprintf("%s:error(%v)", p.Name(), err))
			}
			continue
		}

		bySym := make(map[string]*models.Quote, len(quotes))
		for i := range quotes {
			bySym[quotes[i].Symbol] = &quotes[i]
		}

		var still []string
		for _, sym := range pending {
			q, ok := bySym[sym]
			if !ok {
				traces[sym] = append(traces[sym], p.Name()+":miss")
				still = append(still, sym)
				continue
			}
			if !q.Usable() {
				traces[sym] = append(traces[sym], p.Name()+":unusable")
				still = append(still, sym)
				continue
			}
			q.AppendTrace(traces[sym]...)
			q.AppendTrace("hit:" + p.Name())
			resolved[sym] = q
		}
		pending = still
	}

	o.enrich(ctx, providers, resolved, fromCache)

	// Degraded paths for symbols no provider could resolve.
	for _, sym := range pending {
		if prev, ok := o.store.Stale(sym); ok {
			prev.DataStatus = models.StatusStale
			if !strings.HasSuffix(prev.Source, ":stale") {
				prev.Source += ":stale"
			}
			prev.AppendTrace(traces[sym]...)
			prev.AppendTrace("cache:stale")
			resolved[sym] = &prev
			continue
		}
		q := &models.Quote{
			Symbol:     sym,
			ShortName:  symbol.Base(sym),
			Exchange:   symbol.Exchange(sym),
			Currency:   "INR",
			DataStatus: models.StatusUnavailable,
		}
		q.AppendTrace(traces[sym]...)
		q.AppendTrace("exhausted")
		resolved[sym] = q
	}

	// Technicals fill and cache write for everything resolved this call.
	out := make([]models.Quote, 0, len(syms))
	for _, sym := range syms {
		q := resolved[sym]
		if !fromCache[sym] {
			o.fillTechnicals(ctx, q)
			if q.Usable() && isFresh(q.DataStatus) {
				o.store.Put(sym, *q)
			}
		}
		out = append(out, *q)
	}
	return out
}

// enrich re-queries providers for resolved quotes that still have null
// optional fields, merging in only what is missing.
func (o *Orchestrator) enrich(ctx context.Context, providers []datasource.QuoteProvider, resolved map[string]*models.Quote, fromCache map[string]bool) {
	for _, p := range providers {
		anyMissing := false
		for sym, q := range resolved {
			if !fromCache[sym] && q.MissingOptional() {
				anyMissing = true
				break
			}
		}
		if !anyMissing {
			return
		}

		var need []string
		for sym, q := range resolved {
			if fromCache[sym] || q.Source == p.Name() {
				continue
			}
			if q.MissingOptional() {
				need = append(need, sym)
			}
		}
		if len(need) == 0 || p.Ready() != nil {
			continue
		}

		quotes, err := p.Fetch(ctx, need)
		if err != nil {
			o.debugf("enrichment via %s failed: %v", p.Name(), err)
			continue
		}
		for i := range quotes {
			q, ok := resolved[quotes[i].Symbol]
			if !ok {
				continue
			}
			if filled := q.FillFrom(&quotes[i]); len(filled) > 0 {
				q.AppendTrace(fmt.Sprintf("enrich:%s(%s)", p.Name(), strings.Join(filled, ",")))
			}
		}
	}
}

// fillTechnicals asks the technical resolver for indicator fields still null
// on the quote. The quote's own values always take precedence.
func (o *Orchestrator) fillTechnicals(ctx context.Context, q *models.Quote) {
	if o.tech == nil {
		return
	}
	if q.EMA50.Valid && q.EMA200.Valid && q.SMA30W.Valid && q.Stage != "" {
		return
	}
	snap := o.tech.Resolve(ctx, q.Symbol, q.Price, q.ShortName)
	if snap == nil {
		return
	}
	if !q.EMA50.Valid {
		q.EMA50 = snap.EMA50
	}
	if !q.EMA200.Valid {
		q.EMA200 = snap.EMA200
	}
	if !q.SMA30W.Valid {
		q.SMA30W = snap.SMA30W
	}
	if q.Stage == "" {
		q.Stage = snap.Stage
	}
}

// effectiveProviders maps the configured name order onto registered adapters,
// auto-inserting the secondary exchange right after the primary and appending
// the scrape adapter when either is absent from the configured order.
func (o *Orchestrator) effectiveProviders() []datasource.QuoteProvider {
	names := make([]string, 0, len(o.order)+2)
	seen := make(map[string]bool, len(o.order)+2)
	for _, n := range o.order {
		if seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
		if n == "nse" && !containsName(o.order, "bse") && !seen["bse"] {
			seen["bse"] = true
			names = append(names, "bse")
		}
	}
	if !seen["screener"] {
		names = append(names, "screener")
	}

	providers := make([]datasource.QuoteProvider, 0, len(names))
	for _, n := range names {
		if p, ok := o.registry[n]; ok {
			providers = append(providers, p)
		}
	}
	return providers
}

func containsName(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

// isFresh reports whether a quote came from a live provider call this cycle.
// Stale and unavailable results are never written back, so the stale-cache
// fallback keeps serving the last good value.
func isFresh(s models.DataStatus) bool {
	return s == models.StatusLive || s == models.StatusDelayed
}

func (o *Orchestrator) debugf(format string, args ...any) {
	if o.debug {
		log.Printf("quote: "+format, args...)
	}
}

// FlushCache drops all cached quotes, including expired entries backing the
// stale fallback.
func (o *Orchestrator) FlushCache() { o.store.Flush() }
