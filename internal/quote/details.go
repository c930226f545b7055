package quote

import (
	"context"

	"github.com/avinashsk/equitydesk/internal/datasource"
	"github.com/avinashsk/equitydesk/pkg/models"
	"github.com/avinashsk/equitydesk/pkg/symbol"
)

// MarketDetails composes a quote with exchange metadata and recent headlines.
type MarketDetails struct {
	Quote     models.Quote          `json:"quote"`
	Exchange  string                `json:"exchange"`
	Currency  string                `json:"currency"`
	Headlines []datasource.Headline `json:"headlines,omitempty"`
}

// GetMarketDetails resolves one symbol and attaches profile metadata and
// recent news. News failures are silent; the quote is the primary payload.
func (o *Orchestrator) GetMarketDetails(ctx context.Context, rawSymbol string) MarketDetails {
	sym := symbol.Normalize(rawSymbol)
	quotes := o.GetQuotes(ctx, []string{sym})
	if len(quotes) == 0 {
		return MarketDetails{}
	}
	q := quotes[0]

	d := MarketDetails{
		Quote:    q,
		Exchange: q.Exchange,
		Currency: q.Currency,
	}

	if o.news != nil {
		query := q.ShortName
		if query == "" {
			query = symbol.Base(sym)
		}
		if heads, err := o.news.Headlines(ctx, query, 5); err == nil {
			d.Headlines = heads
		} else {
			o.debugf("headlines for %s: %v", sym, err)
		}
	}
	return d
}
