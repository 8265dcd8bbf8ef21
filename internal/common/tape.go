package common

// TapeEvent is one trade from the exchange's public trade stream (spec
// §6): p/q/m in the wire format. BuyerIsMaker mirrors the exchange's `m`
// flag: true means the buyer rested and the seller crossed (a sell
// trade), false means the buyer crossed (a buy trade).
type TapeEvent struct {
	Price        float64
	Quantity     float64
	BuyerIsMaker bool
}
