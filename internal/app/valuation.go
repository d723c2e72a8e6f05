package app

import (
	"fmt"
	"slices"
	"time"
)

// PriceQuote holds the current trading post prices of one item in copper.
//
// HasMarket is false for items without a tradable listing
// (e.g. account bound tokens). Such quotes carry no meaningful prices
// and must not be read as "worth zero".
type PriceQuote struct {
	ItemID        ItemID
	BuyUnitPrice  int // highest buy order
	SellUnitPrice int // lowest sell offer
	HasMarket     bool
}

// ItemValuation is the valued quantity change of one item.
type ItemValuation struct {
	ItemID        ItemID
	Name          string // empty when no metadata was available
	VendorValue   int    // merchant unit price, for display only
	Delta         int
	UnitPriceUsed int
	Value         int
	Unpriced      bool // true when the item has no market listing; Value is then 0
}

// CurrencyValuation is the valued balance change of one wallet currency.
type CurrencyValuation struct {
	CurrencyID CurrencyID
	Delta      int
	Value      int
}

// ValuationReport is the gold equivalent result of comparing two snapshots.
type ValuationReport struct {
	Start      time.Time
	End        time.Time
	Items      []ItemValuation
	Currencies []CurrencyValuation
	Total      int
}

// Valuate converts a diff into a valuation report using current market prices.
// It is a pure function.
//
// Items gained are valued at the sell offer price (what selling them
// would realize) and items consumed at the buy order price (what
// replacing them would cost). Currency deltas count at face value.
// Items without a market listing contribute zero to the total but are
// kept in the breakdown flagged as unpriced.
//
// names may be nil; it only provides display names for report entries.
func Valuate(diff *Diff, prices map[ItemID]PriceQuote, names map[ItemID]ItemInfo) *ValuationReport {
	r := &ValuationReport{
		Items:      make([]ItemValuation, 0, len(diff.itemDeltas)),
		Currencies: make([]CurrencyValuation, 0, len(diff.currencyDeltas)),
	}
	for id, delta := range diff.itemDeltas {
		v := ItemValuation{ItemID: id, Delta: delta, Name: names[id].Name, VendorValue: names[id].VendorValue}
		q, ok := prices[id]
		if !ok || !q.HasMarket {
			v.Unpriced = true
		} else if delta > 0 {
			v.UnitPriceUsed = q.SellUnitPrice
			v.Value = delta * q.SellUnitPrice
		} else {
			v.UnitPriceUsed = q.BuyUnitPrice
			v.Value = delta * q.BuyUnitPrice
		}
		r.Items = append(r.Items, v)
		r.Total += v.Value
	}
	for id, delta := range diff.currencyDeltas {
		v := CurrencyValuation{CurrencyID: id, Delta: delta, Value: delta}
		r.Currencies = append(r.Currencies, v)
		r.Total += v.Value
	}
	slices.SortFunc(r.Items, func(a, b ItemValuation) int {
		return int(a.ItemID) - int(b.ItemID)
	})
	slices.SortFunc(r.Currencies, func(a, b CurrencyValuation) int {
		return int(a.CurrencyID) - int(b.CurrencyID)
	})
	return r
}

// ItemGains returns the part of the total contributed by item changes.
func (r *ValuationReport) ItemGains() int {
	var total int
	for _, v := range r.Items {
		total += v.Value
	}
	return total
}

// CoinDelta returns the raw coin change between the two snapshots.
func (r *ValuationReport) CoinDelta() int {
	for _, v := range r.Currencies {
		if v.CurrencyID == CoinCurrencyID {
			return v.Delta
		}
	}
	return 0
}

func (r *ValuationReport) String() string {
	return fmt.Sprintf(
		"ValuationReport{%s..%s, %d items, %d currencies, total %s}",
		r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339),
		len(r.Items), len(r.Currencies), FormatCoins(r.Total),
	)
}
