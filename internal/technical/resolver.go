package technical

import (
	"context"
	"time"

	"github.com/guregu/null/v6"

	"github.com/avinashsk/equitydesk/internal/cache"
	"github.com/avinashsk/equitydesk/pkg/models"
	"github.com/avinashsk/equitydesk/pkg/symbol"
)

// DefaultLookbackDays covers roughly two years of trading, enough for the
// 200-day EMA and the 30-week SMA with headroom.
const DefaultLookbackDays = 720

// HistorySource provides native exchange daily price history (step 1).
type HistorySource interface {
	Name() string
	DailyHistory(ctx context.Context, sym string, lookbackDays int) ([]models.OHLCV, error)
}

// FieldSource exposes a vendor's own precomputed EMA/SMA fields (steps 3-4).
type FieldSource interface {
	Name() string
	TechnicalFields(ctx context.Context, sym string) (models.TechnicalSnapshot, error)
}

// SeriesSource provides vendor daily series for recomputation (step 5);
// conditional on an API key.
type SeriesSource interface {
	Name() string
	Ready() error
	DailySeries(ctx context.Context, sym string, lookbackDays int) ([]models.OHLCV, error)
}

// Config carries the resolver's cache TTLs and lookback window.
type Config struct {
	HitTTL       time.Duration // successful snapshots
	MissTTL      time.Duration // failed (nil) lookups; short for fast retry
	LookbackDays int
}

// Resolver computes a TechnicalSnapshot per symbol via the layered cascade,
// short-circuiting once both long EMAs are populated. Results are cached with
// asymmetric TTLs so failures retry quickly without hammering providers on
// every request.
type Resolver struct {
	histories []HistorySource
	fields    []FieldSource
	series    []SeriesSource
	lookup    symbol.Lookup
	store     *cache.Store[*models.TechnicalSnapshot]
	hitTTL    time.Duration
	missTTL   time.Duration
	lookback  int
}

// NewResolver wires the cascade. Slices are tried in the order given.
func NewResolver(cfg Config, histories []HistorySource, fields []FieldSource, series []SeriesSource, lookup symbol.Lookup) *Resolver {
	if cfg.HitTTL <= 0 {
		cfg.HitTTL = 30 * time.Minute
	}
	if cfg.MissTTL <= 0 {
		cfg.MissTTL = 2 * time.Minute
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	return &Resolver{
		histories: histories,
		fields:    fields,
		series:    series,
		lookup:    lookup,
		store:     cache.New[*models.TechnicalSnapshot](cfg.HitTTL),
		hitTTL:    cfg.HitTTL,
		missTTL:   cfg.MissTTL,
		lookback:  cfg.LookbackDays,
	}
}

// Resolve returns the snapshot for sym, or nil when every layer failed.
// priceHint seeds stage classification when no native history was available;
// nameHint feeds the symbol-master name search for alias resolution.
func (r *Resolver) Resolve(ctx context.Context, sym string, priceHint null.Float, nameHint string) *models.TechnicalSnapshot {
	if cached, ok := r.store.Get(sym); ok {
		return cached
	}

	snap := &models.TechnicalSnapshot{}
	lastClose := priceHint.ValueOrZero()

	// Step 1: native exchange history.
	if close := r.fromHistory(ctx, sym, snap); close > 0 {
		lastClose = close
	}

	// Step 2: alias tickers, merged non-destructively.
	if !snap.Complete() {
		for _, alias := range r.aliases(ctx, sym, nameHint) {
			if close := r.fromHistory(ctx, alias, snap); close > 0 && lastClose == 0 {
				lastClose = close
			}
			if snap.Complete() {
				break
			}
		}
	}

	// Steps 3-4: vendor-precomputed fields.
	if !snap.Complete() {
		for _, f := range r.fields {
			fs, err := f.TechnicalFields(ctx, sym)
			if err != nil {
				continue
			}
			snap.Merge(fs)
			if snap.Complete() {
				break
			}
		}
	}

	// Step 5: key-conditional series vendors, same EMA/SMA computation.
	if !snap.Complete() {
		for _, s := range r.series {
			if s.Ready() != nil {
				continue
			}
			candles, err := s.DailySeries(ctx, sym, r.lookback)
			if err != nil {
				continue
			}
			fs, close := snapshotFromCandles(candles, s.Name())
			snap.Merge(fs)
			if close > 0 && lastClose == 0 {
				lastClose = close
			}
			if snap.Complete() {
				break
			}
		}
	}

	if snap.Stage == "" {
		snap.Stage = classify(lastClose, snap)
	}

	if snap.Empty() {
		r.store.PutWithTTL(sym, nil, r.missTTL)
		return nil
	}
	r.store.PutWithTTL(sym, snap, r.hitTTL)
	return snap
}

// fromHistory runs step 1 for one symbol against each history source and
// merges the outcome into snap. Returns the latest close seen, 0 when none.
func (r *Resolver) fromHistory(ctx context.Context, sym string, snap *models.TechnicalSnapshot) float64 {
	for _, h := range r.histories {
		candles, err := h.DailyHistory(ctx, sym, r.lookback)
		if err != nil || len(candles) == 0 {
			continue
		}
		fs, close := snapshotFromCandles(candles, h.Name())
		snap.Merge(fs)
		return close
	}
	return 0
}

// aliases returns candidate alternate tickers: the cross-listed form, a
// symbol-master alias, and the best name-search match.
func (r *Resolver) aliases(ctx context.Context, sym, nameHint string) []string {
	seen := map[string]struct{}{sym: {}}
	var out []string
	add := func(s string) {
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	add(symbol.CrossListed(sym))

	if r.lookup != nil {
		if alias, err := r.lookup.ResolveAlias(ctx, sym); err == nil {
			add(alias)
		}
		if nameHint != "" {
			if candidates, err := r.lookup.SearchByName(ctx, nameHint); err == nil && len(candidates) > 0 {
				add(candidates[0].Symbol)
			}
		}
	}
	return out
}

// snapshotFromCandles computes EMA50/EMA200, the 30-week SMA pair, and the
// stage from a daily series. Returns the snapshot and the latest close.
func snapshotFromCandles(candles []models.OHLCV, source string) (models.TechnicalSnapshot, float64) {
	closes := make([]float64, 0, len(candles))
	for _, c := range candles {
		if c.Close > 0 {
			closes = append(closes, c.Close)
		}
	}
	if len(closes) == 0 {
		return models.TechnicalSnapshot{}, 0
	}

	snap := models.TechnicalSnapshot{
		EMA50:  EMA(closes, 50),
		EMA200: EMA(closes, 200),
		Source: source,
	}
	weekly := ResampleWeekly(candles)
	snap.SMA30W, snap.PrevSMA30W = ThirtyWeekSMA(weekly)

	lastClose := closes[len(closes)-1]
	snap.Stage = classify(lastClose, &snap)
	return snap, lastClose
}
