package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormat(t *testing.T) {
	cases := map[int64]string{0: "0.00", 5: "0.05", 2500: "25.00", 123456: "1234.56"}
	for cents, want := range cases {
		if got := Format(cents); got != want {
			t.Fatalf("Format(%d)=%q want %q", cents, got, want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "12.50", want: 1250},
		{raw: " 3 ", want: 300},
		{raw: "0.01", want: 1},
		{raw: "1.005", wantErr: true},
		{raw: "-1", wantErr: true},
		{raw: "abc", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.raw)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseAmount(%q)=%d,%v want %d", tc.raw, got, err, tc.want)
		}
	}
}

func TestToCentsRoundTrip(t *testing.T) {
	cents, err := ToCents(FromCents(98765))
	if err != nil || cents != 98765 {
		t.Fatalf("round trip failed: %d %v", cents, err)
	}
	if _, err := ToCents(decimal.RequireFromString("0.001")); err == nil {
		t.Fatal("expected fractional cent error")
	}
}

func TestNewAmountAndSum(t *testing.T) {
	a := NewAmount(1999, "USD")
	if a.Display != "19.99" || a.Currency != "usd" {
		t.Fatalf("unexpected amount %+v", a)
	}
	if Sum(100, 250, 50) != 400 {
		t.Fatal("unexpected sum")
	}
}
