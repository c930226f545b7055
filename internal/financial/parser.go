// Package financial scrapes and parses quarterly results tables from
// Screener.in and derives the growth series. Parsing is best-effort against
// markup drift: an unparseable page yields an unavailable report, never an
// error.
package financial

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/guregu/null/v6"

	"github.com/avinashsk/equitydesk/internal/datasource"
	"github.com/avinashsk/equitydesk/pkg/models"
)

// rawRow is one parsed metric line before derivation.
type rawRow struct {
	key    string
	label  string
	values []null.Float
}

// parseQuarterly extracts the quarter labels and metric rows from a company
// page, capped to the last limit quarters and excluding any trailing TTM
// column.
func parseQuarterly(doc *goquery.Document, limit int) ([]string, []rawRow, error) {
	section := doc.Find("section#quarters")
	if section.Length() == 0 {
		// Fall back to a heading-text search when the anchor is missing.
		doc.Find("h2").EachWithBreak(func(_ int, h *goquery.Selection) bool {
			if strings.Contains(h.Text(), "Quarterly Results") {
				section = h.Closest("section")
				return false
			}
			return true
		})
	}
	if section.Length() == 0 {
		return nil, nil, &datasource.ParseError{Source: "screener", What: "quarterly results section"}
	}

	table := section.Find("table").First()
	if table.Length() == 0 {
		return nil, nil, &datasource.ParseError{Source: "screener", What: "quarterly results table"}
	}

	// Header row: first column is the metric label, the rest are quarters.
	var headers []string
	table.Find("thead th").Each(func(i int, th *goquery.Selection) {
		if i > 0 {
			headers = append(headers, strings.TrimSpace(th.Text()))
		}
	})
	if len(headers) == 0 {
		return nil, nil, &datasource.ParseError{Source: "screener", What: "quarter header row"}
	}

	// Drop a trailing TTM column, then keep the last limit quarters.
	if strings.EqualFold(headers[len(headers)-1], "TTM") {
		headers = headers[:len(headers)-1]
	}
	offset := 0
	if len(headers) > limit {
		offset = len(headers) - limit
		headers = headers[offset:]
	}

	var rows []rawRow
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return
		}
		label := strings.TrimSpace(cells.First().Text())
		label = strings.TrimSuffix(label, "+") // expandable-row marker
		label = strings.TrimSpace(label)
		if label == "" {
			return
		}

		values := make([]null.Float, len(headers))
		cells.Each(func(i int, td *goquery.Selection) {
			if i == 0 {
				return
			}
			col := i - 1 - offset
			if col < 0 || col >= len(values) {
				return
			}
			values[col] = datasource.ParseIndianNumber(strings.TrimSpace(td.Text()))
		})

		rows = append(rows, rawRow{
			key:    normalizeKey(label),
			label:  label,
			values: values,
		})
	})

	if len(rows) == 0 {
		return nil, nil, &datasource.ParseError{Source: "screener", What: "quarterly data rows"}
	}
	return headers, rows, nil
}

// normalizeKey lowercases a row label into a stable snake_case key.
func normalizeKey(label string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// findRaw returns the first raw row whose key contains any fragment.
func findRaw(rows []rawRow, fragments ...string) *rawRow {
	for i := range rows {
		for _, frag := range fragments {
			if strings.Contains(rows[i].key, frag) {
				return &rows[i]
			}
		}
	}
	return nil
}

// growthEpsilon guards the growth division against a near-zero base.
const growthEpsilon = 1e-9

// growthSeries computes lagged percentage growth per quarter. A value is
// null when either operand is null or the lagged base is (near) zero.
func growthSeries(values []null.Float, lag int) []null.Float {
	out := make([]null.Float, len(values))
	for i := lag; i < len(values); i++ {
		cur, prev := values[i], values[i-lag]
		if !cur.Valid || !prev.Valid {
			continue
		}
		base := prev.Float64
		if base > -growthEpsilon && base < growthEpsilon {
			continue
		}
		out[i] = null.FloatFrom((cur.Float64 - base) / base * 100)
	}
	return out
}

// hasValue reports whether at least one element is non-null.
func hasValue(values []null.Float) bool {
	for _, v := range values {
		if v.Valid {
			return true
		}
	}
	return false
}

// deriveRows builds the output rows from the parsed metrics. A row is
// emitted only when its underlying data has at least one non-null value.
func deriveRows(raw []rawRow) []models.ReportRow {
	var rows []models.ReportRow

	emit := func(key, label string, kind models.RowKind, values []null.Float) {
		if values == nil || !hasValue(values) {
			return
		}
		rows = append(rows, models.ReportRow{Key: key, Label: label, Kind: kind, Values: values})
	}

	if sales := findRaw(raw, "sales", "revenue"); sales != nil && hasValue(sales.values) {
		emit("sales", "Sales", models.RowNumber, sales.values)
		emit("sales_qoq", "Sales QoQ %", models.RowPercent, growthSeries(sales.values, 1))
		emit("sales_yoy", "Sales YoY %", models.RowPercent, growthSeries(sales.values, 4))
	}
	if op := findRaw(raw, "operating_profit"); op != nil {
		emit("operating_profit", "Operating Profit", models.RowNumber, op.values)
	}
	if pat := findRaw(raw, "net_profit", "profit_after_tax"); pat != nil && hasValue(pat.values) {
		emit("pat", "PAT", models.RowNumber, pat.values)
		emit("pat_qoq", "PAT QoQ %", models.RowPercent, growthSeries(pat.values, 1))
		emit("pat_yoy", "PAT YoY %", models.RowPercent, growthSeries(pat.values, 4))
	}
	if opm := findRaw(raw, "opm"); opm != nil {
		emit("opm", "OPM %", models.RowPercent, opm.values)
	}
	if eps := findRaw(raw, "eps"); eps != nil {
		emit("eps", "EPS", models.RowNumber, eps.values)
	}

	return rows
}
