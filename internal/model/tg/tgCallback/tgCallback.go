package tgCallback

// Callback button prefixes.
const (
	Quote     string = "quote"
	Buy       string = "buy"
	Sell      string = "sell"
	Deposit   string = "deposit"
	Portfolio string = "portfolio"
	History   string = "history"
	Report    string = "report"

	SellTickerPrefix string = "sell_ticker:"
)
