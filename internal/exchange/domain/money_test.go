package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestQuantize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"exact two decimals", "10.25", "10.25"},
		{"truncates extra precision", "10.259", "10.25"},
		{"never rounds up", "0.999999", "0.99"},
		{"integer untouched", "100", "100"},
		{"negative truncates toward zero", "-3.129", "-3.12"},
		{"zero", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := decimal.RequireFromString(tt.in)
			want := decimal.RequireFromString(tt.want)
			if got := Quantize(in); !got.Equal(want) {
				t.Errorf("Quantize(%s) = %s, want %s", tt.in, got, want)
			}
		})
	}
}

func TestFeeFactor(t *testing.T) {
	tests := []struct {
		name string
		bps  int64
		want string
	}{
		{"default 100 bps", 100, "0.99"},
		{"zero fee", 0, "1"},
		{"25 bps", 25, "0.9975"},
		{"full fee", 10000, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := decimal.RequireFromString(tt.want)
			if got := FeeFactor(tt.bps); !got.Equal(want) {
				t.Errorf("FeeFactor(%d) = %s, want %s", tt.bps, got, want)
			}
		})
	}
}

func TestParseCurrency(t *testing.T) {
	for _, c := range SupportedCurrencies {
		got, err := ParseCurrency(string(c))
		if err != nil {
			t.Fatalf("ParseCurrency(%s) unexpected error: %v", c, err)
		}
		if got != c {
			t.Errorf("ParseCurrency(%s) = %s", c, got)
		}
	}
	if _, err := ParseCurrency("EUR"); err == nil {
		t.Error("ParseCurrency(EUR) expected error, got nil")
	}
}
