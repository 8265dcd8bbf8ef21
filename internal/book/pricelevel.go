// Package book implements the order-book replica: two ordered price->qty
// maps (bids descending, asks ascending) synchronized from an exchange
// snapshot plus a depth-diff stream, with the continuity and
// crossed-book invariants from the replica's spec.
package book

import "github.com/tidwall/btree"

// PriceLevel is a single aggregated price/quantity pair on one side of the
// book. Qty is always > 0 for a level present in the tree; a zero-qty
// delta removes the level instead of storing it.
type PriceLevel struct {
	Price float64
	Qty   float64
}

// Levels is an ordered map from price to aggregated quantity, kept sorted
// by the side's comparator (descending for bids, ascending for asks) so
// the best price is always the tree minimum.
type Levels = btree.BTreeG[*PriceLevel]

func newBidLevels() *Levels {
	return btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price > b.Price
	})
}

func newAskLevels() *Levels {
	return btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price < b.Price
	})
}

// applyDelta upserts or removes a single [price, qty] delta on one side.
// qty == 0 means "remove the level" per the wire format (spec §3, §4.1.3).
func applyDelta(levels *Levels, price, qty float64) {
	if qty <= 0 {
		levels.Delete(&PriceLevel{Price: price})
		return
	}
	levels.Set(&PriceLevel{Price: price, Qty: qty})
}

// topLevels returns up to depth levels in best-to-worst order as
// [price, qty] pairs, suitable for the ladder payload.
func topLevels(levels *Levels, depth int) [][2]float64 {
	items := levels.Items()
	if depth > 0 && depth < len(items) {
		items = items[:depth]
	}
	out := make([][2]float64, len(items))
	for i, lvl := range items {
		out[i] = [2]float64{lvl.Price, lvl.Qty}
	}
	return out
}
