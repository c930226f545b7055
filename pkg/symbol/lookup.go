package symbol

import (
	"context"
	"strings"
)

// Candidate is one symbol-master search result.
type Candidate struct {
	Symbol string `json:"symbol"` // canonical form
	Name   string `json:"name"`
}

// Lookup is the symbol-master capability consumed by the engine.
// ResolveAlias returns an alternate canonical symbol for the input
// (cross-listing, renamed scrip) or "" when none is known.
type Lookup interface {
	ResolveAlias(ctx context.Context, sym string) (string, error)
	SearchByName(ctx context.Context, query string) ([]Candidate, error)
}

// StaticLookup is the built-in Lookup backed by a fixed alias table.
// It stands in when no symbol-master service is wired.
type StaticLookup struct {
	byName map[string]string // lowercase company-name fragment -> base symbol
}

// NewStaticLookup builds the default static lookup.
func NewStaticLookup() *StaticLookup {
	return &StaticLookup{
		byName: map[string]string{
			"reliance industries": "RELIANCE",
			"tata consultancy":    "TCS",
			"infosys":             "INFY",
			"hdfc bank":           "HDFCBANK",
			"icici bank":          "ICICIBANK",
			"state bank of india": "SBIN",
			"bharti airtel":       "BHARTIARTL",
			"larsen":              "LT",
			"hindustan unilever":  "HINDUNILVR",
			"itc":                 "ITC",
		},
	}
}

// ResolveAlias returns the cross-listed form of the symbol. The static table
// has no renamed-scrip knowledge, so cross-listing is the only alias it knows.
func (l *StaticLookup) ResolveAlias(_ context.Context, sym string) (string, error) {
	if sym == "" {
		return "", nil
	}
	return CrossListed(sym), nil
}

// SearchByName matches a free-text query against known company names.
func (l *StaticLookup) SearchByName(_ context.Context, query string) ([]Candidate, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	var out []Candidate
	for frag, base := range l.byName {
		if strings.Contains(q, frag) || strings.Contains(frag, q) {
			out = append(out, Candidate{Symbol: base + ".NS", Name: frag})
		}
	}
	return out, nil
}
