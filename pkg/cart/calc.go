package cart

import "math"

// Totals derives the aggregate amount and item count for a set of line
// items. It is the single source of truth for both numbers: every state
// transition that touches items recomputes through here, so the stored
// totals can never drift from the items themselves.
//
// Malformed numeric fields (NaN, infinities, negatives) contribute zero
// instead of propagating; the caller always gets a displayable number.
func Totals(items []LineItem) (total float64, count int) {
	for _, it := range items {
		price := it.Price
		if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
			price = 0
		}
		qty := it.Quantity
		if qty < 0 {
			qty = 0
		}
		total += price * float64(qty)
		count += qty
	}
	return total, count
}
