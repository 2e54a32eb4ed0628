package cart

import (
	"math"
	"testing"
)

func TestTotals(t *testing.T) {
	items := []LineItem{
		{Price: 100, Quantity: 2},
		{Price: 49.5, Quantity: 1},
	}
	total, count := Totals(items)
	if total != 249.5 {
		t.Fatalf("expected total 249.5, got %v", total)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
}

func TestTotalsEmpty(t *testing.T) {
	total, count := Totals(nil)
	if total != 0 || count != 0 {
		t.Fatalf("expected zeros, got %v %d", total, count)
	}
}

func TestTotalsMalformedNumbers(t *testing.T) {
	items := []LineItem{
		{Price: math.NaN(), Quantity: 3},
		{Price: math.Inf(1), Quantity: 1},
		{Price: -5, Quantity: 2},
		{Price: 10, Quantity: -1},
		{Price: 10, Quantity: 2},
	}
	total, count := Totals(items)
	if total != 20 {
		t.Fatalf("malformed fields must contribute zero, got total %v", total)
	}
	if count != 6 {
		t.Fatalf("expected count 6, got %d", count)
	}
}
