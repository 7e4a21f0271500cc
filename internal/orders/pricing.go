package orders

import (
	"sort"

	"github.com/safar/go-pdv/internal/models"
	"github.com/shopspring/decimal"
)

// priceLines builds one line item per requested entry, in request order,
// priced from the snapshot. Every product must be present in snapshot.
func priceLines(items []Item, snapshot map[int64]models.Product) ([]models.OrderLineItem, decimal.Decimal) {
	lines := make([]models.OrderLineItem, 0, len(items))
	total := decimal.Zero

	for _, item := range items {
		amount := snapshot[item.ProductID].UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		lines = append(lines, models.OrderLineItem{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			LineAmount: amount,
		})
		total = total.Add(amount)
	}

	return lines, total
}

type reservation struct {
	productID int64
	quantity  int
}

// reservations sums quantities per product and orders them by product id.
// A fixed lock order keeps concurrent orders over the same products from
// deadlocking on each other's row locks.
func reservations(items []Item) []reservation {
	totals := make(map[int64]int, len(items))
	for _, item := range items {
		totals[item.ProductID] += item.Quantity
	}

	out := make([]reservation, 0, len(totals))
	for id, qty := range totals {
		out = append(out, reservation{productID: id, quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].productID < out[j].productID })

	return out
}
