package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	AccountID int64           `db:"account_id"`
	ChatID    int64           `db:"chat_id"`
	Cash      decimal.Decimal `db:"cash"`
	CreatedAt time.Time       `db:"dt_create"`
}

type Lot struct {
	LotID     int64           `db:"lot_id"`
	AccountID int64           `db:"account_id"`
	Symbol    string          `db:"symbol"`
	Quantity  int             `db:"quantity"`
	UnitCost  decimal.Decimal `db:"unit_cost"`
	CreatedAt time.Time       `db:"dt_create"`
}

type Position struct {
	Symbol   string          `db:"symbol"`
	Quantity int             `db:"quantity"`
	AvgCost  decimal.Decimal `db:"avg_cost"`
}

type Transaction struct {
	TransactionID int64           `db:"transaction_id"`
	AccountID     int64           `db:"account_id"`
	Symbol        string          `db:"symbol"`
	Side          string          `db:"side"`
	Quantity      int             `db:"quantity"`
	Price         decimal.Decimal `db:"price"`
	Total         decimal.Decimal `db:"total"`
	CreatedAt     time.Time       `db:"dt_create"`
}
