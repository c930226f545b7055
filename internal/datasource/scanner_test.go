package datasource

import "testing"

func TestSiteTicker(t *testing.T) {
	tests := []struct{ in, want string }{
		{"RELIANCE.NS", "NSE:RELIANCE"},
		{"500325.BO", "BSE:500325"},
	}
	for _, tt := range tests {
		if got := siteTicker(tt.in); got != tt.want {
			t.Errorf("siteTicker(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScanValuesDefensiveReads(t *testing.T) {
	vals := scanValues{"RELIANCE", "Reliance Industries", 2500.5, nil, 0.0}

	if name := vals.str(1); name != "Reliance Industries" {
		t.Errorf("str(1): got %q", name)
	}
	if price := vals.num(2); !price.Valid || price.Float64 != 2500.5 {
		t.Errorf("num(2): got %+v", price)
	}
	if v := vals.num(3); v.Valid {
		t.Errorf("null cell should be invalid: %+v", v)
	}
	if v := vals.num(4); v.Valid {
		t.Errorf("zero cell should be invalid: %+v", v)
	}
	if v := vals.num(99); v.Valid {
		t.Errorf("out-of-range cell should be invalid: %+v", v)
	}
	if s := vals.str(99); s != "" {
		t.Errorf("out-of-range str: got %q", s)
	}
	if i := vals.intNum(2); !i.Valid || i.Int64 != 2500 {
		t.Errorf("intNum(2): got %+v", i)
	}
}
