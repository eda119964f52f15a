// Package portfolio implements the Portfolio component of spec.md §4.2:
// cash and position bookkeeping, BUY/SELL/dividend/split application, and
// wash-sale attribution. It emits TradeRecord and RealizedGain events that
// internal/tax consumes to build the year's tax ledger.
package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action identifies the kind of portfolio event a TradeRecord describes.
type Action string

const (
	ActionBuy      Action = "BUY"
	ActionSell     Action = "SELL"
	ActionDividend Action = "DIVIDEND"
	ActionSplit    Action = "SPLIT"
	ActionDeposit  Action = "DEPOSIT"
)

// TradeRecord is an immutable log entry for one portfolio event. ID is a
// monotonic per-portfolio sequence, not a UUID, so that trade order is
// recoverable by sort even after serialization.
type TradeRecord struct {
	ID       int64
	Date     time.Time
	Symbol   string
	Action   Action
	Quantity decimal.Decimal
	Price    decimal.Decimal
	CashFlow decimal.Decimal // signed: negative for cash leaving the account
}

