package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction sides as persisted in the transactions table.
const (
	SideBuy     = "buy"
	SideSell    = "sell"
	SideDeposit = "deposit"
)

type Quote struct {
	Symbol string
	Price  decimal.Decimal
}

// Lot is an open purchase position. LotID is monotonic and doubles as the
// FIFO tie-break: the smaller the id, the earlier the purchase.
type Lot struct {
	LotID     int64
	AccountID int64
	Symbol    string
	Quantity  int
	UnitCost  decimal.Decimal
	CreatedAt time.Time
}

// Position is a per-symbol aggregate across lots.
type Position struct {
	Symbol      string
	Quantity    int
	AvgCost     decimal.Decimal
	Price       decimal.Decimal
	MarketValue decimal.Decimal
}

type TransactionRecord struct {
	Symbol    string
	Side      string
	Quantity  int
	Price     decimal.Decimal
	Total     decimal.Decimal
	CreatedAt time.Time
}

// SaleReceipt reports a committed settlement back to the caller.
// RealizedGain is proceeds minus the cost basis of the consumed lots;
// proceeds themselves are always priced at the captured live quote.
type SaleReceipt struct {
	Symbol       string
	Quantity     int
	Price        decimal.Decimal
	Proceeds     decimal.Decimal
	RealizedGain decimal.Decimal
}

type AccountStatement struct {
	ChatID       int64
	Cash         decimal.Decimal
	Positions    []Position
	Transactions []TransactionRecord
}
