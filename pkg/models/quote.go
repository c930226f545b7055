// Package models defines the canonical data shapes returned by the
// aggregation engine: quotes, technical snapshots, and financial reports.
// All numeric fields that can legitimately be absent use null.Float so that
// "missing", "zero", and "present" stay distinguishable end to end.
package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// DataStatus describes the freshness of a returned result.
type DataStatus string

const (
	StatusLive        DataStatus = "live"
	StatusDelayed     DataStatus = "delayed"
	StatusCached      DataStatus = "cached"
	StatusStale       DataStatus = "stale"
	StatusUnavailable DataStatus = "unavailable"
)

// MaxTraceEntries caps the per-quote provider trace.
const MaxTraceEntries = 40

// Quote is the canonical equity quote assembled from one or more providers.
type Quote struct {
	Symbol    string `json:"symbol"` // canonical, e.g. "RELIANCE.NS"
	ShortName string `json:"short_name"`
	Exchange  string `json:"exchange"` // "NSE" or "BSE"
	Currency  string `json:"currency"`

	Price     null.Float `json:"price"` // null or > 0
	Change    null.Float `json:"change"`
	ChangePct null.Float `json:"change_pct"`
	Open      null.Float `json:"open"`
	High      null.Float `json:"high"`
	Low       null.Float `json:"low"`
	PrevClose null.Float `json:"prev_close"`
	Volume    null.Int   `json:"volume"`
	MarketCap null.Float `json:"market_cap"`

	WeekHigh52 null.Float `json:"week_high_52"`
	WeekLow52  null.Float `json:"week_low_52"`
	PE         null.Float `json:"pe"`
	EPS        null.Float `json:"eps"`
	PB         null.Float `json:"pb"`

	EMA50  null.Float `json:"ema50"`
	EMA200 null.Float `json:"ema200"`
	SMA30W null.Float `json:"sma_30w"`
	Stage  Stage      `json:"market_cycle_stage,omitempty"`

	Source     string     `json:"source"`
	DataStatus DataStatus `json:"data_status"`
	Trace      []string   `json:"provider_trace,omitempty"`
}

// Usable reports whether the quote carries a positive price.
// Quotes failing this test are discarded by the orchestrator, never cached.
func (q *Quote) Usable() bool {
	return q.Price.Valid && q.Price.Float64 > 0
}

// AppendTrace records a provider attempt outcome, capped at MaxTraceEntries.
func (q *Quote) AppendTrace(events ...string) {
	for _, ev := range events {
		if len(q.Trace) >= MaxTraceEntries {
			return
		}
		q.Trace = append(q.Trace, ev)
	}
}

// FillFrom copies every field that is null on q but present on other.
// Present values on q are never overwritten. It returns the names of the
// fields that were filled, for enrichment trace tagging.
func (q *Quote) FillFrom(other *Quote) []string {
	var filled []string

	fill := func(dst *null.Float, src null.Float, name string) {
		if !dst.Valid && src.Valid {
			*dst = src
			filled = append(filled, name)
		}
	}

	fill(&q.Change, other.Change, "change")
	fill(&q.ChangePct, other.ChangePct, "changePct")
	fill(&q.Open, other.Open, "open")
	fill(&q.High, other.High, "high")
	fill(&q.Low, other.Low, "low")
	fill(&q.PrevClose, other.PrevClose, "prevClose")
	fill(&q.MarketCap, other.MarketCap, "marketCap")
	fill(&q.WeekHigh52, other.WeekHigh52, "weekHigh52")
	fill(&q.WeekLow52, other.WeekLow52, "weekLow52")
	fill(&q.PE, other.PE, "pe")
	fill(&q.EPS, other.EPS, "eps")
	fill(&q.PB, other.PB, "pb")

	if !q.Volume.Valid && other.Volume.Valid {
		q.Volume = other.Volume
		filled = append(filled, "volume")
	}
	if q.ShortName == "" && other.ShortName != "" {
		q.ShortName = other.ShortName
		filled = append(filled, "shortName")
	}
	if q.Currency == "" && other.Currency != "" {
		q.Currency = other.Currency
		filled = append(filled, "currency")
	}

	return filled
}

// MissingOptional reports whether any enrichable field is still null.
func (q *Quote) MissingOptional() bool {
	for _, f := range []null.Float{
		q.Change, q.ChangePct, q.Open, q.High, q.Low, q.PrevClose,
		q.MarketCap, q.WeekHigh52, q.WeekLow52, q.PE, q.EPS, q.PB,
	} {
		if !f.Valid {
			return true
		}
	}
	return !q.Volume.Valid
}

// OHLCV represents a single daily (or resampled weekly) price bar.
type OHLCV struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}
