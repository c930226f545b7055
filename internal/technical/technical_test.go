package technical

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/guregu/null/v6"

	"github.com/avinashsk/equitydesk/pkg/models"
)

// ── EMA / SMA ──

func TestEMAConstantSeries(t *testing.T) {
	data := make([]float64, 250)
	for i := range data {
		data[i] = 42.0
	}
	for _, period := range []int{50, 200} {
		ema := EMA(data, period)
		if !ema.Valid {
			t.Fatalf("EMA(%d): invalid", period)
		}
		if math.Abs(ema.Float64-42.0) > 1e-9 {
			t.Errorf("EMA(%d) of constant 42: got %v", period, ema.Float64)
		}
	}
}

func TestEMARelaxedShortSeries(t *testing.T) {
	// Shorter than the period: relaxed EMA seeded from the first value.
	ema := EMA([]float64{10, 10, 10}, 50)
	if !ema.Valid || math.Abs(ema.Float64-10.0) > 1e-9 {
		t.Errorf("relaxed EMA of constant 10: got %+v", ema)
	}
}

func TestEMAEmpty(t *testing.T) {
	if ema := EMA(nil, 50); ema.Valid {
		t.Error("EMA of empty series should be null")
	}
}

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5, 6}, 3)
	if !got.Valid || got.Float64 != 5 {
		t.Errorf("SMA trailing 3 of 1..6: got %+v, want 5", got)
	}
	if short := SMA([]float64{1, 2}, 3); short.Valid {
		t.Error("SMA of too-short series should be null")
	}
}

// ── Weekly resample ──

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResampleWeeklyLastTradingDayWins(t *testing.T) {
	candles := []models.OHLCV{
		{Timestamp: day(2024, time.January, 1), Close: 100, Volume: 10}, // Mon, week 1
		{Timestamp: day(2024, time.January, 3), Close: 105, Volume: 20}, // Wed, week 1
		{Timestamp: day(2024, time.January, 5), Close: 103, Volume: 30}, // Fri, week 1
		{Timestamp: day(2024, time.January, 8), Close: 110, Volume: 40}, // Mon, week 2
	}
	weekly := ResampleWeekly(candles)
	if len(weekly) != 2 {
		t.Fatalf("weeks: got %d, want 2", len(weekly))
	}
	if weekly[0].Close != 103 {
		t.Errorf("week 1 close: got %v, want 103 (Friday)", weekly[0].Close)
	}
	if weekly[0].Volume != 60 {
		t.Errorf("week 1 volume: got %d, want 60", weekly[0].Volume)
	}
	if weekly[1].Close != 110 {
		t.Errorf("week 2 close: got %v", weekly[1].Close)
	}
}

func TestThirtyWeekSMAPair(t *testing.T) {
	var weekly []models.OHLCV
	for i := 0; i < 31; i++ {
		weekly = append(weekly, models.OHLCV{
			Timestamp: day(2024, time.January, 1).AddDate(0, 0, 7*i),
			Close:     float64(100 + i),
		})
	}
	sma, prev := ThirtyWeekSMA(weekly)
	if !sma.Valid || !prev.Valid {
		t.Fatalf("expected both SMAs valid: %+v %+v", sma, prev)
	}
	// Closes 100..130; trailing 30 average 115.5, one week prior 114.5.
	if math.Abs(sma.Float64-115.5) > 1e-9 {
		t.Errorf("sma: got %v, want 115.5", sma.Float64)
	}
	if math.Abs(prev.Float64-114.5) > 1e-9 {
		t.Errorf("prev sma: got %v, want 114.5", prev.Float64)
	}
}

// ── Stage classification ──

func TestClassifyStage(t *testing.T) {
	tests := []struct {
		name             string
		close, sma, prev float64
		want             models.Stage
	}{
		{"rising above", 110, 100, 95, models.StageMarkup},      // slope ~ +5.26%
		{"falling below", 90, 100, 105, models.StageMarkdown},   // slope ~ -4.76%
		{"flat above", 105, 100, 100, models.StageAccumulation}, // slope 0
		{"flat below", 95, 100, 100, models.StageDistribution},  // slope 0
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyStage(tt.close, tt.sma, tt.prev); got != tt.want {
				t.Errorf("ClassifyStage(%v, %v, %v): got %q, want %q",
					tt.close, tt.sma, tt.prev, got, tt.want)
			}
		})
	}
}

func TestClassifyStageProxy(t *testing.T) {
	tests := []struct {
		name                 string
		close, ema50, ema200 float64
		want                 models.Stage
	}{
		{"above both", 110, 105, 100, models.StageMarkup},
		{"below both", 90, 95, 100, models.StageMarkdown},
		{"above long only", 110, 95, 100, models.StageAccumulation},
		{"below long, short above", 95, 105, 100, models.StageDistribution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyStageProxy(tt.close, tt.ema50, tt.ema200); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// ── Resolver cascade ──

type fakeHistory struct {
	name    string
	candles []models.OHLCV
	err     error
	calls   int
}

func (f *fakeHistory) Name() string { return f.name }
func (f *fakeHistory) DailyHistory(_ context.Context, _ string, _ int) ([]models.OHLCV, error) {
	f.calls++
	return f.candles, f.err
}

type fakeFields struct {
	name  string
	snap  models.TechnicalSnapshot
	err   error
	calls int
}

func (f *fakeFields) Name() string { return f.name }
func (f *fakeFields) TechnicalFields(_ context.Context, _ string) (models.TechnicalSnapshot, error) {
	f.calls++
	return f.snap, f.err
}

func constantCandles(n int, price float64) []models.OHLCV {
	candles := make([]models.OHLCV, n)
	start := day(2022, time.January, 3)
	for i := range candles {
		candles[i] = models.OHLCV{Timestamp: start.AddDate(0, 0, i), Close: price}
	}
	return candles
}

func TestResolveFromNativeHistory(t *testing.T) {
	hist := &fakeHistory{name: "nse", candles: constantCandles(300, 50)}
	r := NewResolver(Config{}, []HistorySource{hist}, nil, nil, nil)

	snap := r.Resolve(context.Background(), "TCS.NS", null.Float{}, "")
	if snap == nil {
		t.Fatal("expected a snapshot")
	}
	if !snap.Complete() {
		t.Errorf("expected both EMAs: %+v", snap)
	}
	if math.Abs(snap.EMA50.Float64-50) > 1e-9 || math.Abs(snap.EMA200.Float64-50) > 1e-9 {
		t.Errorf("EMAs of constant 50: got %v / %v", snap.EMA50.Float64, snap.EMA200.Float64)
	}
	if snap.Source != "nse" {
		t.Errorf("source: got %q", snap.Source)
	}
}

func TestResolveFallsBackToFields(t *testing.T) {
	hist := &fakeHistory{name: "nse", err: errors.New("boom")}
	fields := &fakeFields{name: "scanner", snap: models.TechnicalSnapshot{
		EMA50:  null.FloatFrom(101),
		EMA200: null.FloatFrom(99),
		Source: "scanner",
	}}
	r := NewResolver(Config{}, []HistorySource{hist}, []FieldSource{fields}, nil, nil)

	snap := r.Resolve(context.Background(), "TCS.NS", null.FloatFrom(105), "")
	if snap == nil {
		t.Fatal("expected a snapshot from the field source")
	}
	if snap.EMA50.Float64 != 101 || snap.EMA200.Float64 != 99 {
		t.Errorf("field values: got %v / %v", snap.EMA50.Float64, snap.EMA200.Float64)
	}
	// Price hint 105 above EMA200 99 with EMA50 above EMA200: proxy Markup.
	if snap.Stage != models.StageMarkup {
		t.Errorf("proxy stage: got %q", snap.Stage)
	}
}

func TestResolveCachesHits(t *testing.T) {
	hist := &fakeHistory{name: "nse", candles: constantCandles(300, 50)}
	r := NewResolver(Config{HitTTL: time.Hour}, []HistorySource{hist}, nil, nil, nil)

	r.Resolve(context.Background(), "TCS.NS", null.Float{}, "")
	r.Resolve(context.Background(), "TCS.NS", null.Float{}, "")

	if hist.calls != 1 {
		t.Errorf("history calls within TTL: got %d, want 1", hist.calls)
	}
}

func TestResolveCachesMissesWithShortTTL(t *testing.T) {
	hist := &fakeHistory{name: "nse", err: errors.New("down")}
	r := NewResolver(Config{HitTTL: time.Hour, MissTTL: 30 * time.Millisecond},
		[]HistorySource{hist}, nil, nil, nil)

	if snap := r.Resolve(context.Background(), "TCS.NS", null.Float{}, ""); snap != nil {
		t.Fatalf("expected nil snapshot, got %+v", snap)
	}
	calls := hist.calls

	// Within the miss TTL: served from cache, no new provider calls.
	r.Resolve(context.Background(), "TCS.NS", null.Float{}, "")
	if hist.calls != calls {
		t.Errorf("miss not cached: %d extra calls", hist.calls-calls)
	}

	// After the miss TTL the lookup is retried.
	time.Sleep(40 * time.Millisecond)
	r.Resolve(context.Background(), "TCS.NS", null.Float{}, "")
	if hist.calls <= calls {
		t.Error("miss cache never expired")
	}
}
