// Package symbol canonicalizes free-form ticker input into the BASE.NS /
// BASE.BO form used throughout the engine, and defines the lookup capability
// consumed from the symbol-master service.
package symbol

import "strings"

// Common ticker aliases seen in user input.
var aliases = map[string]string{
	"RIL":           "RELIANCE",
	"INFOSYS":       "INFY",
	"HDFC BANK":     "HDFCBANK",
	"ICICI BANK":    "ICICIBANK",
	"SBI":           "SBIN",
	"AIRTEL":        "BHARTIARTL",
	"L&T":           "LT",
	"TATA MOTORS":   "TATAMOTORS",
	"TATA STEEL":    "TATASTEEL",
	"HCL TECH":      "HCLTECH",
	"KOTAK":         "KOTAKBANK",
	"AXIS BANK":     "AXISBANK",
	"SUN PHARMA":    "SUNPHARMA",
	"ASIAN PAINTS":  "ASIANPAINT",
	"NESTLE":        "NESTLEIND",
	"ULTRATECH":     "ULTRACEMCO",
	"TECH MAHINDRA": "TECHM",
	"MAHINDRA":      "M&M",
	"HUL":           "HINDUNILVR",
	"COAL INDIA":    "COALINDIA",
}

// Normalize canonicalizes a free-form symbol into BASE.NS or BASE.BO.
// Purely numeric 5-6 digit tickers are treated as BSE scrip codes and get
// the .BO suffix; everything else without an explicit suffix defaults to .NS.
func Normalize(raw string) string {
	s := strings.TrimSpace(strings.ToUpper(raw))
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return ""
	}

	if strings.HasSuffix(s, ".NS") || strings.HasSuffix(s, ".BO") {
		base := s[:len(s)-3]
		if canonical, ok := aliases[base]; ok {
			return canonical + s[len(s)-3:]
		}
		return s
	}

	if canonical, ok := aliases[s]; ok {
		s = canonical
	}

	if isNumeric(s) && len(s) >= 5 && len(s) <= 6 {
		return s + ".BO"
	}
	return s + ".NS"
}

// Base strips the exchange suffix from a canonical symbol.
func Base(sym string) string {
	sym = strings.TrimSuffix(sym, ".NS")
	return strings.TrimSuffix(sym, ".BO")
}

// Exchange returns "NSE" or "BSE" for a canonical symbol.
func Exchange(sym string) string {
	if strings.HasSuffix(sym, ".BO") {
		return "BSE"
	}
	return "NSE"
}

// CrossListed returns the same base symbol on the other exchange.
func CrossListed(sym string) string {
	base := Base(sym)
	if Exchange(sym) == "NSE" {
		return base + ".BO"
	}
	return base + ".NS"
}

// Dedupe normalizes a batch of raw symbols and removes duplicates while
// preserving first-seen order.
func Dedupe(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		sym := Normalize(r)
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
