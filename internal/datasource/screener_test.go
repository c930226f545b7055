package datasource

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const ratiosPage = `
<html><body>
<h1>Demo Industries Ltd</h1>
<ul id="top-ratios">
  <li><span class="name">Market Cap</span><span class="value">₹ 1,20,000 Cr.</span></li>
  <li><span class="name">Current Price</span><span class="value">₹ 2,500</span></li>
  <li><span class="name">High / Low</span><span class="value">₹ 3,100 / 1,900</span></li>
  <li><span class="name">Stock P/E</span><span class="value">24.5</span></li>
  <li><span class="name">EPS</span><span class="value">102</span></li>
  <li><span class="name">Price to book value</span><span class="value">3.8</span></li>
  <li><span class="name">50 DMA</span><span class="value">₹ 2,410</span></li>
  <li><span class="name">200 DMA</span><span class="value">₹ 2,280</span></li>
</ul>
</body></html>`

func ratiosDoc(t *testing.T) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(ratiosPage))
	if err != nil {
		t.Fatalf("build document: %v", err)
	}
	return doc
}

func TestTopRatioFieldsMatch(t *testing.T) {
	fields := topRatioFields(ratiosDoc(t))

	if price := fields.match("Current Price"); !price.Valid || price.Float64 != 2500 {
		t.Errorf("Current Price: got %+v", price)
	}
	if mcap := fields.match("Market Cap"); !mcap.Valid || mcap.Float64 != 1.2e12 {
		t.Errorf("Market Cap: got %+v, want 1.2e12 (Cr expansion)", mcap)
	}
	if pe := fields.match("Stock P/E", "P/E"); !pe.Valid || pe.Float64 != 24.5 {
		t.Errorf("Stock P/E: got %+v", pe)
	}
	if missing := fields.match("Dividend Yield"); missing.Valid {
		t.Errorf("absent field should be null: %+v", missing)
	}
}

func TestTopRatioFieldsMatchPair(t *testing.T) {
	fields := topRatioFields(ratiosDoc(t))

	high := fields.matchPair("High / Low", 0)
	low := fields.matchPair("High / Low", 1)
	if !high.Valid || high.Float64 != 3100 {
		t.Errorf("52w high: got %+v", high)
	}
	if !low.Valid || low.Float64 != 1900 {
		t.Errorf("52w low: got %+v", low)
	}
	if oob := fields.matchPair("High / Low", 5); oob.Valid {
		t.Errorf("out-of-range pair index should be null: %+v", oob)
	}
}

func TestTopRatioFieldsDMA(t *testing.T) {
	fields := topRatioFields(ratiosDoc(t))
	if dma50 := fields.match("50 DMA", "DMA 50"); !dma50.Valid || dma50.Float64 != 2410 {
		t.Errorf("50 DMA: got %+v", dma50)
	}
	if dma200 := fields.match("200 DMA", "DMA 200"); !dma200.Valid || dma200.Float64 != 2280 {
		t.Errorf("200 DMA: got %+v", dma200)
	}
}
