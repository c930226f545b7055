package technical

import (
	"github.com/avinashsk/equitydesk/pkg/models"
)

// slopeThresholdPct is the minimum 30-week SMA slope treated as trending.
const slopeThresholdPct = 0.05

// ClassifyStage maps close vs. the 30-week SMA and its slope to one of the
// four market-cycle stages.
func ClassifyStage(close, sma30w, prevSMA30w float64) models.Stage {
	if sma30w <= 0 || prevSMA30w <= 0 {
		return ""
	}
	slopePct := (sma30w - prevSMA30w) / prevSMA30w * 100

	switch {
	case close >= sma30w && slopePct > slopeThresholdPct:
		return models.StageMarkup
	case close < sma30w && slopePct < -slopeThresholdPct:
		return models.StageMarkdown
	case close >= sma30w:
		return models.StageAccumulation
	default:
		return models.StageDistribution
	}
}

// ClassifyStageProxy approximates the stage from the long EMAs when no
// 30-week SMA is available.
func ClassifyStageProxy(close, ema50, ema200 float64) models.Stage {
	if ema200 <= 0 {
		return ""
	}
	switch {
	case close >= ema200 && ema50 >= ema200:
		return models.StageMarkup
	case close < ema200 && ema50 < ema200:
		return models.StageMarkdown
	case close >= ema200:
		return models.StageAccumulation
	default:
		return models.StageDistribution
	}
}

// classify picks the full rule when the weekly SMA pair is present, else the
// EMA proxy, else gives up.
func classify(close float64, snap *models.TechnicalSnapshot) models.Stage {
	if close <= 0 {
		return ""
	}
	if snap.SMA30W.Valid && snap.PrevSMA30W.Valid {
		return ClassifyStage(close, snap.SMA30W.Float64, snap.PrevSMA30W.Float64)
	}
	if snap.EMA50.Valid && snap.EMA200.Valid {
		return ClassifyStageProxy(close, snap.EMA50.Float64, snap.EMA200.Float64)
	}
	return ""
}
