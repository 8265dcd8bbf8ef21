// Package metrics implements the pure microstructure metric functions
// (spread, mid, microprice, imbalance, per-step OFI) and the stateful
// pipeline that turns a stream of book/trade events into a running
// metric vector (OFI window, CVD accumulator).
package metrics

// Spread is best_ask - best_bid, or 0 if either side is empty.
func Spread(bestBid, bestAsk float64, haveBid, haveAsk bool) float64 {
	if !haveBid || !haveAsk {
		return 0
	}
	return bestAsk - bestBid
}

// Mid is the arithmetic mean of best bid and best ask, or 0 if either
// side is empty.
func Mid(bestBid, bestAsk float64, haveBid, haveAsk bool) float64 {
	if !haveBid || !haveAsk {
		return 0
	}
	return (bestBid + bestAsk) / 2
}

// Imbalance is the normalized difference of summed top-N bid vs ask
// volume, in [-1, 1]; 0 if there is no volume on either side. bidLevels
// and askLevels are [price, qty] pairs, best-first, already capped to
// depth by the caller.
func Imbalance(bidLevels, askLevels [][2]float64) float64 {
	var bidVol, askVol float64
	for _, lvl := range bidLevels {
		bidVol += lvl[1]
	}
	for _, lvl := range askLevels {
		askVol += lvl[1]
	}
	total := bidVol + askVol
	if total == 0 {
		return 0
	}
	return (bidVol - askVol) / total
}

// Microprice is the opposite-side-volume-weighted mid:
// (bid*askQty + ask*bidQty) / (bidQty + askQty), falling back to Mid
// when there is no quantity on either side. The opposite-side weighting
// is deliberate: a thick bid implies likely upward drift, pulling the
// weighted price toward the ask.
func Microprice(bestBid, bestAsk, bidQty, askQty float64, haveBid, haveAsk bool) float64 {
	if !haveBid || !haveAsk {
		return 0
	}
	totalQty := bidQty + askQty
	if totalQty == 0 {
		return Mid(bestBid, bestAsk, haveBid, haveAsk)
	}
	return (bestBid*askQty + bestAsk*bidQty) / totalQty
}

// OFIStep computes the per-step Order Flow Imbalance contribution for one
// top-of-book transition, following Cont et al. (2014): a bid-side term
// plus an ask-side term subtracted, case-split on whether each side's
// best price rose, fell, or held.
func OFIStep(currBid, currBidQty, prevBid, prevBidQty, currAsk, currAskQty, prevAsk, prevAskQty float64) float64 {
	var eBid float64
	switch {
	case currBid > prevBid:
		eBid = currBidQty
	case currBid < prevBid:
		eBid = -prevBidQty
	default:
		eBid = currBidQty - prevBidQty
	}

	var eAsk float64
	switch {
	case currAsk < prevAsk:
		eAsk = currAskQty
	case currAsk > prevAsk:
		eAsk = -prevAskQty
	default:
		eAsk = currAskQty - prevAskQty
	}

	return eBid - eAsk
}

// VolumeBucketImbalance is the VPIN-style volume-synchronized imbalance
// measure kept from the original implementation (original_source/
// orderbook/metrics.py:calculate_vpin): the sum of each bucket's absolute
// buy/sell imbalance divided by the total volume of all buckets. Not part of the closed ladder
// metric vector; exposed for callers that want a toxicity proxy.
func VolumeBucketImbalance(buckets [][2]float64) float64 {
	var numerator, denominator float64
	for _, bucket := range buckets {
		buy, sell := bucket[0], bucket[1]
		diff := buy - sell
		if diff < 0 {
			diff = -diff
		}
		numerator += diff
		denominator += buy + sell
	}
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}
