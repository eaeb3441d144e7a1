package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func price(currency, amount string) Price {
	return Price{Currency: currency, Amount: decimal.RequireFromString(amount)}
}

func TestMergePrices(t *testing.T) {
	current := []Price{price("EUR", "10"), price("USD", "11")}
	updates := []Price{price("USD", "12.5"), price("GBP", "9")}

	merged := MergePrices(current, updates)

	want := []Price{price("EUR", "10"), price("USD", "12.5"), price("GBP", "9")}
	if len(merged) != len(want) {
		t.Fatalf("expected %d prices, got %+v", len(want), merged)
	}
	for i := range want {
		if merged[i].Currency != want[i].Currency || !merged[i].Amount.Equal(want[i].Amount) {
			t.Errorf("price %d: expected %+v, got %+v", i, want[i], merged[i])
		}
	}

	if !current[1].Amount.Equal(decimal.NewFromInt(11)) {
		t.Error("MergePrices modified its input")
	}
}

// Feature: catalog, Property 16: Price merge keeps one entry per currency
func TestProperty_MergePricesOneEntryPerCurrency(t *testing.T) {
	properties := gopter.NewProperties(nil)
	currencies := gen.OneConstOf("EUR", "USD", "GBP", "CHF", "JPY")

	properties.Property("every currency appears once with the latest amount", prop.ForAll(
		func(current, updates []string, cents int64) bool {
			toPrices := func(codes []string, amount int64) []Price {
				seen := map[string]bool{}
				out := []Price{}
				for _, c := range codes {
					if seen[c] {
						continue
					}
					seen[c] = true
					out = append(out, Price{Currency: c, Amount: decimal.New(amount, -2)})
				}
				return out
			}

			merged := MergePrices(toPrices(current, 100), toPrices(updates, cents))

			seen := map[string]bool{}
			for _, p := range merged {
				if seen[p.Currency] {
					return false
				}
				seen[p.Currency] = true
			}
			for _, c := range updates {
				for _, p := range merged {
					if p.Currency == c && !p.Amount.Equal(decimal.New(cents, -2)) {
						return false
					}
				}
			}
			for _, c := range current {
				if !seen[c] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(currencies),
		gen.SliceOf(currencies),
		gen.Int64Range(1, 100000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestValidAmount(t *testing.T) {
	tests := []struct {
		amount string
		want   bool
	}{
		{"9.50", true},
		{"0.0001", true},
		{"1.50000", true},
		{"999999999999999.9999", true},
		{"0", false},
		{"-1", false},
		{"0.00001", false},
		{"12.34567", false},
		{"1000000000000000", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			if got := ValidAmount(decimal.RequireFromString(tt.amount)); got != tt.want {
				t.Errorf("ValidAmount(%s) = %v, want %v", tt.amount, got, tt.want)
			}
		})
	}
}
