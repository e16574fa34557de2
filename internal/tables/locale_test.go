package tables

import (
	"strings"
	"testing"
)

func TestNumberFormat_Parse(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"100,00", 100, true},
		{"1.234,5", 1234.5, true},
		{"150,00 lei", 150, true},
		{"€ -12,30", -12.3, true},
		{"7", 7, true},
		{"", 0, false},
		{"n/a", 0, false},
	}
	f := DefaultNumberFormat()
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := f.Parse(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Parse(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNumberFormat_Format(t *testing.T) {
	tests := []struct {
		f    NumberFormat
		in   float64
		want string
	}{
		{DefaultNumberFormat(), 150, "150,00"},
		{DefaultNumberFormat(), 1234567.891, "1.234.567,89"},
		{DefaultNumberFormat(), -0.001, "0,00"},
		{DefaultNumberFormat(), -1000, "-1.000,00"},
		{NumberFormat{Decimal: ".", Thousands: ","}, 9876.5, "9,876.50"},
		{NumberFormat{Decimal: ",", Places: 3}, 1000.25, "1000,250"},
	}
	for _, tt := range tests {
		if got := tt.f.Format(tt.in); got != tt.want {
			t.Errorf("Format(%v) with %+v = %q, want %q", tt.in, tt.f, got, tt.want)
		}
	}
}

func TestNumberFormat_RoundTrip(t *testing.T) {
	f := DefaultNumberFormat()
	for _, s := range []string{"0,00", "12,34", "1.000.000,01"} {
		v, ok := f.Parse(s)
		if !ok || f.Format(v) != s {
			t.Errorf("round trip %q -> %v -> %q", s, v, f.Format(v))
		}
	}
}

func TestReadCSV(t *testing.T) {
	in := "name, qty, amount\n\"Widget, large\",2,\"100,00\"\nBolt,1\n"
	rows, err := ReadCSV(strings.NewReader(in), true)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(rows) != 2 || rows[0][0] != "Widget, large" || rows[0][2] != "100,00" || len(rows[1]) != 2 {
		t.Errorf("rows = %q", rows)
	}

	rows, err = ReadCSV(strings.NewReader(""), true)
	if err != nil || rows == nil || len(rows) != 0 {
		t.Errorf("empty input = %q, %v", rows, err)
	}
}
