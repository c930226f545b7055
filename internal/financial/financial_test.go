package financial

import (
	"math"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/guregu/null/v6"
)

const quarterlyPage = `
<html><body>
<h1>Demo Industries Ltd</h1>
<section id="quarters">
  <h2>Quarterly Results</h2>
  <table>
    <thead>
      <tr>
        <th></th>
        <th>Mar 2023</th><th>Jun 2023</th><th>Sep 2023</th>
        <th>Dec 2023</th><th>Mar 2024</th><th>Jun 2024</th>
        <th>TTM</th>
      </tr>
    </thead>
    <tbody>
      <tr><td>Sales +</td>
        <td>100</td><td>110</td><td>121</td><td>90</td><td>95</td><td>130</td><td>436</td></tr>
      <tr><td>Operating Profit</td>
        <td>20</td><td>22</td><td>25</td><td>15</td><td>18</td><td>28</td><td>86</td></tr>
      <tr><td>OPM %</td>
        <td>20%</td><td>20%</td><td>21%</td><td>17%</td><td>19%</td><td>22%</td><td>20%</td></tr>
      <tr><td>Net Profit +</td>
        <td>10</td><td>12</td><td>14</td><td>8</td><td>9</td><td>16</td><td>47</td></tr>
      <tr><td>EPS in Rs</td>
        <td>1.0</td><td>1.2</td><td>1.4</td><td>0.8</td><td>0.9</td><td>1.6</td><td>4.7</td></tr>
    </tbody>
  </table>
</section>
</body></html>`

func parsePage(t *testing.T, html string, limit int) ([]string, []rawRow) {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("build document: %v", err)
	}
	labels, rows, err := parseQuarterly(doc, limit)
	if err != nil {
		t.Fatalf("parseQuarterly: %v", err)
	}
	return labels, rows
}

// ── Parsing ──

func TestParseQuarterlyLabels(t *testing.T) {
	labels, _ := parsePage(t, quarterlyPage, 6)
	want := []string{"Mar 2023", "Jun 2023", "Sep 2023", "Dec 2023", "Mar 2024", "Jun 2024"}
	if len(labels) != len(want) {
		t.Fatalf("labels: got %v, want %v (TTM must be dropped)", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("labels[%d]: got %q, want %q", i, labels[i], want[i])
		}
	}
}

func TestParseQuarterlyLimitKeepsLatest(t *testing.T) {
	labels, rows := parsePage(t, quarterlyPage, 3)
	want := []string{"Dec 2023", "Mar 2024", "Jun 2024"}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("labels[%d]: got %q, want %q", i, labels[i], want[i])
		}
	}
	sales := findRaw(rows, "sales")
	if sales == nil {
		t.Fatal("sales row missing")
	}
	got := []float64{sales.values[0].Float64, sales.values[1].Float64, sales.values[2].Float64}
	if got[0] != 90 || got[1] != 95 || got[2] != 130 {
		t.Errorf("sales tail: got %v", got)
	}
}

func TestParseQuarterlyStripsExpandMarker(t *testing.T) {
	_, rows := parsePage(t, quarterlyPage, 6)
	for _, r := range rows {
		if strings.HasSuffix(r.label, "+") {
			t.Errorf("label %q kept expand marker", r.label)
		}
	}
	if findRaw(rows, "net_profit") == nil {
		t.Error("net_profit key missing")
	}
}

func TestParseQuarterlyHeadingFallback(t *testing.T) {
	noAnchor := strings.Replace(quarterlyPage, `id="quarters"`, "", 1)
	labels, _ := parsePage(t, noAnchor, 6)
	if len(labels) != 6 {
		t.Errorf("heading fallback: got %d labels", len(labels))
	}
}

func TestParseQuarterlyMissingTable(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader("<html><body><p>nothing</p></body></html>"))
	if _, _, err := parseQuarterly(doc, 6); err == nil {
		t.Fatal("expected error for a page without results")
	}
}

// ── Key normalization ──

func TestNormalizeKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Sales", "sales"},
		{"Net Profit", "net_profit"},
		{"OPM %", "opm"},
		{"EPS in Rs", "eps_in_rs"},
		{"Profit before tax", "profit_before_tax"},
	}
	for _, tt := range tests {
		if got := normalizeKey(tt.in); got != tt.want {
			t.Errorf("normalizeKey(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ── Growth derivation ──

func vals(fs ...float64) []null.Float {
	out := make([]null.Float, len(fs))
	for i, f := range fs {
		out[i] = null.FloatFrom(f)
	}
	return out
}

func TestGrowthSeriesYoYAndQoQ(t *testing.T) {
	sales := vals(100, 110, 121, 90, 95, 130)

	yoy := growthSeries(sales, 4)
	// Mar 2024 vs Mar 2023: (95-100)/100*100 = -5.00
	if !yoy[4].Valid || math.Abs(yoy[4].Float64-(-5.0)) > 1e-9 {
		t.Errorf("YoY[4]: got %+v, want -5.00", yoy[4])
	}
	for i := 0; i < 4; i++ {
		if yoy[i].Valid {
			t.Errorf("YoY[%d] should be null before one year of data", i)
		}
	}

	qoq := growthSeries(sales, 1)
	// Mar 2024 vs Dec 2023: (95-90)/90*100 = 5.5556
	if !qoq[4].Valid || math.Abs(qoq[4].Float64-5.5555555556) > 1e-6 {
		t.Errorf("QoQ[4]: got %+v, want ~5.56", qoq[4])
	}
}

func TestGrowthSeriesNullOperands(t *testing.T) {
	series := []null.Float{null.FloatFrom(100), {}, null.FloatFrom(120)}
	qoq := growthSeries(series, 1)
	if qoq[1].Valid {
		t.Error("growth with null current must be null")
	}
	if qoq[2].Valid {
		t.Error("growth with null lagged must be null")
	}
}

func TestGrowthSeriesZeroBase(t *testing.T) {
	qoq := growthSeries(vals(0, 50), 1)
	if qoq[1].Valid {
		t.Error("growth over a zero base must be null")
	}
}

// ── Derived rows ──

func TestDeriveRowsShapeAndOrder(t *testing.T) {
	labels, raw := parsePage(t, quarterlyPage, 6)
	rows := deriveRows(raw)

	wantKeys := []string{
		"sales", "sales_qoq", "sales_yoy",
		"operating_profit",
		"pat", "pat_qoq", "pat_yoy",
		"opm", "eps",
	}
	if len(rows) != len(wantKeys) {
		t.Fatalf("rows: got %d, want %d", len(rows), len(wantKeys))
	}
	for i, key := range wantKeys {
		if rows[i].Key != key {
			t.Errorf("rows[%d]: got %q, want %q", i, rows[i].Key, key)
		}
		// Row invariant: one value per quarter label.
		if len(rows[i].Values) != len(labels) {
			t.Errorf("row %q: %d values for %d labels", key, len(rows[i].Values), len(labels))
		}
	}
}

func TestDeriveRowsSkipsAllNullMetrics(t *testing.T) {
	raw := []rawRow{
		{key: "sales", label: "Sales", values: vals(100, 110)},
		{key: "eps_in_rs", label: "EPS in Rs", values: []null.Float{{}, {}}},
	}
	rows := deriveRows(raw)
	for _, r := range rows {
		if r.Key == "eps" {
			t.Error("all-null EPS row should not be emitted")
		}
	}
}
