// Package portfolio implements the paper account's balance mutations,
// realized PnL, and mark-to-market equity (spec §4.4 "Fills and fees",
// §6 Portfolio snapshot). Balances are kept as decimal.Decimal to avoid
// float accumulation drift across many fills; callers cross the
// float64/Decimal boundary only at this package's edge, since the book
// and trade tape themselves are pinned to float64 (spec §9).
package portfolio

import "github.com/shopspring/decimal"

// Portfolio is the paper account: quote (USD) and base (BTC) balances,
// cumulative traded notional, realized PnL, and the fee model.
type Portfolio struct {
	initialQuote decimal.Decimal

	quoteBalance decimal.Decimal
	baseBalance  decimal.Decimal

	tradedNotional decimal.Decimal
	realizedPnL    decimal.Decimal

	feesEnabled bool
	makerFee    decimal.Decimal
	takerFee    decimal.Decimal
}

// New creates a portfolio seeded with initialQuoteUSD and zero base
// balance, fees enabled by default (spec §3 Portfolio, §4.4).
func New(initialQuoteUSD, makerFee, takerFee float64) *Portfolio {
	initial := decimal.NewFromFloat(initialQuoteUSD)
	return &Portfolio{
		initialQuote: initial,
		quoteBalance: initial,
		makerFee:     decimal.NewFromFloat(makerFee),
		takerFee:     decimal.NewFromFloat(takerFee),
		feesEnabled:  true,
	}
}

// SetFeesEnabled toggles the fee model without touching balances.
func (p *Portfolio) SetFeesEnabled(enabled bool) { p.feesEnabled = enabled }

// FeesEnabled reports whether fees currently apply to fills.
func (p *Portfolio) FeesEnabled() bool { return p.feesEnabled }

// ApplyBuyFill mutates balances for a BUY fill (spec §4.4
// finalize_fill): balance_usd -= cost + fee, balance_btc += qty. fee is
// always expressed and deducted in USD, independent of side — the pinned
// resolution of the source's mixed fee-deduction convention (spec §9).
func (p *Portfolio) ApplyBuyFill(qty, price float64, isMaker bool) (fee float64) {
	q, pr := decimal.NewFromFloat(qty), decimal.NewFromFloat(price)
	cost := q.Mul(pr)
	feeDec := p.feeFor(cost, isMaker)

	p.quoteBalance = p.quoteBalance.Sub(cost).Sub(feeDec)
	p.baseBalance = p.baseBalance.Add(q)
	p.tradedNotional = p.tradedNotional.Add(cost)
	p.realizedPnL = p.realizedPnL.Sub(feeDec)

	return feeDec.InexactFloat64()
}

// ApplySellFill mutates balances for a SELL fill: balance_usd += cost -
// fee, balance_btc -= qty.
func (p *Portfolio) ApplySellFill(qty, price float64, isMaker bool) (fee float64) {
	q, pr := decimal.NewFromFloat(qty), decimal.NewFromFloat(price)
	cost := q.Mul(pr)
	feeDec := p.feeFor(cost, isMaker)

	p.quoteBalance = p.quoteBalance.Add(cost).Sub(feeDec)
	p.baseBalance = p.baseBalance.Sub(q)
	p.tradedNotional = p.tradedNotional.Add(cost)
	p.realizedPnL = p.realizedPnL.Sub(feeDec)

	return feeDec.InexactFloat64()
}

func (p *Portfolio) feeFor(cost decimal.Decimal, isMaker bool) decimal.Decimal {
	if !p.feesEnabled {
		return decimal.Zero
	}
	rate := p.takerFee
	if isMaker {
		rate = p.makerFee
	}
	return cost.Mul(rate)
}

// Reset restores initial balances and counters in place, preserving the
// Portfolio's identity so other components referencing it observe the
// new state (spec §4.4 Reset, §9 "preserve the instance identity").
func (p *Portfolio) Reset() {
	p.quoteBalance = p.initialQuote
	p.baseBalance = decimal.Zero
	p.tradedNotional = decimal.Zero
	p.realizedPnL = decimal.Zero
	p.feesEnabled = true
}

// Snapshot is the downstream portfolio payload shape (spec §6).
type Snapshot struct {
	QuoteBalance float64 `json:"usd"`
	BaseBalance  float64 `json:"btc"`
	Equity       float64 `json:"equity"`
	FeesEnabled  bool    `json:"fees_enabled"`
	OpenOrders   int     `json:"open_orders"`
}

// TakeSnapshot computes equity at markPrice (balance_usd + balance_btc *
// mark) and reports the given open-order count (spec §6).
func (p *Portfolio) TakeSnapshot(markPrice float64, openOrders int) Snapshot {
	mark := decimal.NewFromFloat(markPrice)
	equity := p.quoteBalance.Add(p.baseBalance.Mul(mark))

	return Snapshot{
		QuoteBalance: p.quoteBalance.InexactFloat64(),
		BaseBalance:  p.baseBalance.InexactFloat64(),
		Equity:       equity.InexactFloat64(),
		FeesEnabled:  p.feesEnabled,
		OpenOrders:   openOrders,
	}
}

// QuoteBalance is the current USD balance.
func (p *Portfolio) QuoteBalance() float64 { return p.quoteBalance.InexactFloat64() }

// BaseBalance is the current BTC balance.
func (p *Portfolio) BaseBalance() float64 { return p.baseBalance.InexactFloat64() }

// RealizedPnL is the cumulative realized profit/loss from fees paid so
// far (fills themselves are balance-neutral at the traded price; only
// fees move PnL, per spec §8 invariant 6).
func (p *Portfolio) RealizedPnL() float64 { return p.realizedPnL.InexactFloat64() }

// TradedNotional is the cumulative traded notional across all fills.
func (p *Portfolio) TradedNotional() float64 { return p.tradedNotional.InexactFloat64() }
