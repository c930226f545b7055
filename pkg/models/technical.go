package models

import "github.com/guregu/null/v6"

// Stage is the four-phase trend classification derived from price vs. the
// 30-week SMA trend. Empty when no classification could be made.
type Stage string

const (
	StageAccumulation Stage = "Accumulation"
	StageMarkup       Stage = "Markup"
	StageDistribution Stage = "Distribution"
	StageMarkdown     Stage = "Markdown"
)

// TechnicalSnapshot carries the moving-average indicators for one symbol.
// Source is a '+'-joined attribution when values came from more than one
// upstream ("nse+screener").
type TechnicalSnapshot struct {
	EMA50      null.Float `json:"ema50"`
	EMA200     null.Float `json:"ema200"`
	SMA30W     null.Float `json:"sma_30w"`
	PrevSMA30W null.Float `json:"prev_sma_30w"`
	Stage      Stage      `json:"stage,omitempty"`
	Source     string     `json:"source"`
}

// Complete reports whether both long EMAs are populated, which is the
// resolver's short-circuit condition.
func (s *TechnicalSnapshot) Complete() bool {
	return s.EMA50.Valid && s.EMA200.Valid
}

// Merge fills null fields of s from other. Fields already present on s are
// never overwritten. Source attributions are joined with '+'.
func (s *TechnicalSnapshot) Merge(other TechnicalSnapshot) {
	merged := false
	fill := func(dst *null.Float, src null.Float) {
		if !dst.Valid && src.Valid {
			*dst = src
			merged = true
		}
	}
	fill(&s.EMA50, other.EMA50)
	fill(&s.EMA200, other.EMA200)
	fill(&s.SMA30W, other.SMA30W)
	fill(&s.PrevSMA30W, other.PrevSMA30W)
	if s.Stage == "" && other.Stage != "" {
		s.Stage = other.Stage
		merged = true
	}
	if merged && other.Source != "" && s.Source != other.Source {
		if s.Source == "" {
			s.Source = other.Source
		} else {
			s.Source += "+" + other.Source
		}
	}
}

// Empty reports whether the snapshot carries no indicator values at all.
func (s *TechnicalSnapshot) Empty() bool {
	return !s.EMA50.Valid && !s.EMA200.Valid && !s.SMA30W.Valid && s.Stage == ""
}
