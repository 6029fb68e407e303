package model

type State int

const (
	DefaultState State = iota
	ExpectingQuoteTicker
	ExpectingBuyTicker
	ExpectingBuyQuantity
	ExpectingSellTicker
	ExpectingSellQuantity
	ExpectingDepositAmount
)

// Session keeps the chat dialog position between updates: which input we are
// waiting for and the ticker collected on the previous step.
type Session struct {
	State  State
	Ticker string
}
