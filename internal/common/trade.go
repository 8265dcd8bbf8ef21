package common

import (
	"fmt"
	"time"
)

// Fill accounts for a single execution of a paper order, either a market
// order sweeping the live book or a limit order advanced past by the trade
// tape. IsMaker decides which fee rate applies.
type Fill struct {
	Order     *Order
	Timestamp time.Time
	Quantity  float64
	Price     float64
	IsMaker   bool
	Fee       float64
}

func (f Fill) String() string {
	return fmt.Sprintf(
		"Fill{order=%s qty=%g price=%g maker=%v fee=%g at=%v}",
		f.Order.ID, f.Quantity, f.Price, f.IsMaker, f.Fee, f.Timestamp.Format(time.RFC3339),
	)
}
