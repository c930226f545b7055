package datasource

import (
	"strconv"
	"strings"

	"github.com/guregu/null/v6"

	"github.com/avinashsk/equitydesk/pkg/models"
	"github.com/avinashsk/equitydesk/pkg/symbol"
)

// NormalizeQuote applies the shared post-processing every adapter runs before
// handing a quote to the orchestrator: derive change/changePct from price and
// previousClose when the vendor omitted them, default the short name to the
// base symbol, and tag source and data status.
func NormalizeQuote(q *models.Quote, source string, status models.DataStatus) {
	if q.Symbol == "" {
		return
	}
	if !q.Change.Valid && q.Price.Valid && q.PrevClose.Valid {
		q.Change = null.FloatFrom(q.Price.Float64 - q.PrevClose.Float64)
	}
	if !q.ChangePct.Valid && q.Change.Valid && q.PrevClose.Valid && q.PrevClose.Float64 != 0 {
		q.ChangePct = null.FloatFrom(q.Change.Float64 / q.PrevClose.Float64 * 100)
	}
	if q.ShortName == "" {
		q.ShortName = symbol.Base(q.Symbol)
	}
	if q.Exchange == "" {
		q.Exchange = symbol.Exchange(q.Symbol)
	}
	if q.Currency == "" {
		q.Currency = "INR"
	}
	q.Source = source
	q.DataStatus = status
}

// ParseIndianNumber parses a display number honoring Indian and western
// magnitude suffixes: Cr, Lakh/L, K, M, B. Commas, rupee signs and percent
// signs are stripped. Returns invalid for unparseable input.
func ParseIndianNumber(s string) null.Float {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, "₹", "")
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || strings.EqualFold(s, "N/A") {
		return null.Float{}
	}

	multiplier := 1.0
	switch {
	case hasAnySuffix(s, "Cr.", "Cr"):
		s = trimAnySuffix(s, "Cr.", "Cr")
		multiplier = 1e7
	case hasAnySuffix(s, "Lakh", "L"):
		s = trimAnySuffix(s, "Lakh", "L")
		multiplier = 1e5
	case hasAnySuffix(s, "K"):
		s = trimAnySuffix(s, "K")
		multiplier = 1e3
	case hasAnySuffix(s, "M"):
		s = trimAnySuffix(s, "M")
		multiplier = 1e6
	case hasAnySuffix(s, "B"):
		s = trimAnySuffix(s, "B")
		multiplier = 1e9
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return null.Float{}
	}
	return null.FloatFrom(v * multiplier)
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func trimAnySuffix(s string, suffixes ...string) string {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return strings.TrimSpace(strings.TrimSuffix(s, suf))
		}
	}
	return s
}

// nzFloat maps a vendor numeric to null.Float, treating 0 as absent.
// Vendor payloads encode missing values as 0; a true zero never occurs for
// the price-like fields this is used on.
func nzFloat(v float64) null.Float {
	if v == 0 {
		return null.Float{}
	}
	return null.FloatFrom(v)
}

// nzInt maps a vendor integer to null.Int, treating 0 as absent.
func nzInt(v int64) null.Int {
	if v == 0 {
		return null.Int{}
	}
	return null.IntFrom(v)
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
