package tables

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// NumberFormat describes how amounts are written in table cells.
type NumberFormat struct {
	Decimal   string `yaml:"decimal" json:"decimal"`
	Thousands string `yaml:"thousands" json:"thousands"`
	Places    int    `yaml:"places" json:"places"`
}

// DefaultNumberFormat is comma decimals, dot thousands, two places.
func DefaultNumberFormat() NumberFormat {
	return NumberFormat{Decimal: ",", Thousands: ".", Places: 2}
}

func (f NumberFormat) withDefaults() NumberFormat {
	d := DefaultNumberFormat()
	if f.Decimal == "" {
		f.Decimal = d.Decimal
		if f.Thousands == "" {
			f.Thousands = d.Thousands
		}
	}
	if f.Places <= 0 {
		f.Places = d.Places
	}
	return f
}

// Parse reads an amount such as "1.234,50 lei". Letters and currency
// symbols around the number are ignored. ok is false when no number is
// present.
func (f NumberFormat) Parse(s string) (v float64, ok bool) {
	f = f.withDefaults()
	s = strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '-' && r != '+'
	})
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if f.Thousands != "" {
		s = strings.ReplaceAll(s, f.Thousands, "")
	}
	s = strings.Replace(s, f.Decimal, ".", 1)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Format writes v with f's separators and precision.
func (f NumberFormat) Format(v float64) string {
	f = f.withDefaults()
	s := strconv.FormatFloat(math.Abs(v), 'f', f.Places, 64)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if v < 0 && strings.Trim(s, "0.") != "" {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(f.Thousands)
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteString(f.Decimal)
		b.WriteString(frac)
	}
	return b.String()
}
