package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// RowKind distinguishes absolute-number rows from percentage rows.
type RowKind string

const (
	RowNumber  RowKind = "number"
	RowPercent RowKind = "percent"
)

// ReportRow is one metric series across the report's quarters.
// len(Values) always equals len(FinancialReport.QuarterLabels).
type ReportRow struct {
	Key    string       `json:"key"`   // normalized, e.g. "sales", "sales_yoy"
	Label  string       `json:"label"` // display label, e.g. "Sales YoY %"
	Kind   RowKind      `json:"kind"`
	Values []null.Float `json:"values"`
}

// FinancialReport holds quarterly results scraped for one symbol.
// A failed extraction is reported with DataStatus=unavailable and a
// human-readable Diagnostic, never as an error.
type FinancialReport struct {
	Symbol        string      `json:"symbol"`
	CompanyName   string      `json:"company_name"`
	Source        string      `json:"source"`
	SourceURL     string      `json:"source_url"`
	DataStatus    DataStatus  `json:"data_status"`
	Diagnostic    string      `json:"diagnostic,omitempty"`
	QuarterLabels []string    `json:"quarter_labels"`
	Rows          []ReportRow `json:"rows"`
	FetchedAt     time.Time   `json:"fetched_at"`
}

// Row returns the row with the given key, or nil.
func (r *FinancialReport) Row(key string) *ReportRow {
	for i := range r.Rows {
		if r.Rows[i].Key == key {
			return &r.Rows[i]
		}
	}
	return nil
}
