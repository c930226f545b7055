package models

import (
	"fmt"
	"testing"

	"github.com/guregu/null/v6"
)

// ── Quote ──

func TestUsable(t *testing.T) {
	tests := []struct {
		name  string
		price null.Float
		want  bool
	}{
		{"positive price", null.FloatFrom(2500), true},
		{"null price", null.Float{}, false},
		{"zero price", null.FloatFrom(0), false},
		{"negative price", null.FloatFrom(-1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Quote{Price: tt.price}
			if got := q.Usable(); got != tt.want {
				t.Errorf("Usable: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppendTraceCap(t *testing.T) {
	var q Quote
	for i := 0; i < MaxTraceEntries+10; i++ {
		q.AppendTrace(fmt.Sprintf("event-%d", i))
	}
	if len(q.Trace) != MaxTraceEntries {
		t.Errorf("trace length: got %d, want %d", len(q.Trace), MaxTraceEntries)
	}
	if q.Trace[0] != "event-0" {
		t.Errorf("trace[0]: got %q", q.Trace[0])
	}
}

func TestFillFromOnlyMissing(t *testing.T) {
	base := Quote{
		Symbol:    "TCS.NS",
		Price:     null.FloatFrom(4000),
		PrevClose: null.FloatFrom(3950),
	}
	other := Quote{
		Symbol:    "TCS.NS",
		Price:     null.FloatFrom(9999), // must not overwrite
		PrevClose: null.FloatFrom(1),    // must not overwrite
		MarketCap: null.FloatFrom(1.4e13),
		PE:        null.FloatFrom(28.5),
		Volume:    null.IntFrom(1200000),
		ShortName: "TCS",
	}

	filled := base.FillFrom(&other)

	if base.Price.Float64 != 4000 {
		t.Errorf("Price overwritten: got %v", base.Price.Float64)
	}
	if base.PrevClose.Float64 != 3950 {
		t.Errorf("PrevClose overwritten: got %v", base.PrevClose.Float64)
	}
	if !base.MarketCap.Valid || base.MarketCap.Float64 != 1.4e13 {
		t.Errorf("MarketCap not filled: %+v", base.MarketCap)
	}
	if !base.Volume.Valid || base.Volume.Int64 != 1200000 {
		t.Errorf("Volume not filled: %+v", base.Volume)
	}
	if base.ShortName != "TCS" {
		t.Errorf("ShortName not filled: %q", base.ShortName)
	}

	want := map[string]bool{"marketCap": true, "pe": true, "volume": true, "shortName": true}
	for _, f := range filled {
		if !want[f] {
			t.Errorf("unexpected filled field %q", f)
		}
		delete(want, f)
	}
	// currency also fills from empty; only check the tracked ones were all seen
	for f := range want {
		t.Errorf("field %q not reported as filled", f)
	}
}

func TestMissingOptional(t *testing.T) {
	q := Quote{Price: null.FloatFrom(100)}
	if !q.MissingOptional() {
		t.Error("expected missing optional fields on sparse quote")
	}

	full := Quote{
		Price:      null.FloatFrom(100),
		Change:     null.FloatFrom(1),
		ChangePct:  null.FloatFrom(1),
		Open:       null.FloatFrom(99),
		High:       null.FloatFrom(101),
		Low:        null.FloatFrom(98),
		PrevClose:  null.FloatFrom(99),
		Volume:     null.IntFrom(10),
		MarketCap:  null.FloatFrom(1e12),
		WeekHigh52: null.FloatFrom(120),
		WeekLow52:  null.FloatFrom(80),
		PE:         null.FloatFrom(20),
		EPS:        null.FloatFrom(5),
		PB:         null.FloatFrom(3),
	}
	if full.MissingOptional() {
		t.Error("expected no missing optional fields on full quote")
	}
}

// ── TechnicalSnapshot ──

func TestSnapshotMergeNeverOverwrites(t *testing.T) {
	base := TechnicalSnapshot{
		EMA50:  null.FloatFrom(100),
		Source: "nse",
	}
	candidate := TechnicalSnapshot{
		EMA50:  null.FloatFrom(999),
		EMA200: null.FloatFrom(90),
		SMA30W: null.FloatFrom(95),
		Stage:  StageMarkup,
		Source: "scanner",
	}

	base.Merge(candidate)

	if base.EMA50.Float64 != 100 {
		t.Errorf("EMA50 overwritten: got %v", base.EMA50.Float64)
	}
	if !base.EMA200.Valid || base.EMA200.Float64 != 90 {
		t.Errorf("EMA200 not merged: %+v", base.EMA200)
	}
	if !base.SMA30W.Valid {
		t.Error("SMA30W not merged")
	}
	if base.Stage != StageMarkup {
		t.Errorf("Stage not merged: %q", base.Stage)
	}
	if base.Source != "nse+scanner" {
		t.Errorf("Source attribution: got %q, want nse+scanner", base.Source)
	}
}

func TestSnapshotComplete(t *testing.T) {
	s := TechnicalSnapshot{EMA50: null.FloatFrom(1)}
	if s.Complete() {
		t.Error("snapshot with one EMA reported complete")
	}
	s.EMA200 = null.FloatFrom(2)
	if !s.Complete() {
		t.Error("snapshot with both EMAs reported incomplete")
	}
}

// ── FinancialReport ──

func TestReportRowLookup(t *testing.T) {
	r := FinancialReport{
		Rows: []ReportRow{
			{Key: "sales", Label: "Sales"},
			{Key: "pat", Label: "PAT"},
		},
	}
	if row := r.Row("pat"); row == nil || row.Label != "PAT" {
		t.Errorf("Row(pat): got %+v", row)
	}
	if row := r.Row("eps"); row != nil {
		t.Errorf("Row(eps): expected nil, got %+v", row)
	}
}
