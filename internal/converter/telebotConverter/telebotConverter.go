package telebotConverter

import (
	"fmt"
	"strings"

	"github.com/KotFed0t/paper_trading_bot/internal/model"
	"github.com/KotFed0t/paper_trading_bot/internal/model/tg/tgCallback"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

func MainMenu() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	quoteBtn := markup.Data("💹 Quote", tgCallback.Quote)
	buyBtn := markup.Data("🛒 Buy", tgCallback.Buy)
	sellBtn := markup.Data("💸 Sell", tgCallback.Sell)
	depositBtn := markup.Data("💵 Deposit", tgCallback.Deposit)
	portfolioBtn := markup.Data("📊 Portfolio", tgCallback.Portfolio)
	historyBtn := markup.Data("📜 History", tgCallback.History)
	reportBtn := markup.Data("📄 Report", tgCallback.Report)

	markup.Inline(
		markup.Row(quoteBtn, portfolioBtn),
		markup.Row(buyBtn, sellBtn),
		markup.Row(depositBtn, historyBtn),
		markup.Row(reportBtn),
	)

	return markup
}

func QuoteResponse(quote model.Quote) string {
	return fmt.Sprintf("💹 %s: $%s", quote.Symbol, quote.Price.StringFixed(2))
}

func BuyConfirmationResponse(symbol string, quantity int, price, cash decimal.Decimal) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ Bought %d %s at $%s\n", quantity, symbol, price.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("💰 Cash balance: $%s", cash.StringFixed(2)))
	return sb.String()
}

func SaleReceiptResponse(receipt model.SaleReceipt, cash decimal.Decimal) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ Sold %d %s at $%s\n", receipt.Quantity, receipt.Symbol, receipt.Price.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("💵 Proceeds: $%s\n", receipt.Proceeds.StringFixed(2)))

	if receipt.RealizedGain.IsNegative() {
		sb.WriteString(fmt.Sprintf("📉 Realized loss: $%s\n", receipt.RealizedGain.Abs().StringFixed(2)))
	} else {
		sb.WriteString(fmt.Sprintf("📈 Realized gain: $%s\n", receipt.RealizedGain.StringFixed(2)))
	}

	sb.WriteString(fmt.Sprintf("💰 Cash balance: $%s", cash.StringFixed(2)))
	return sb.String()
}

func PortfolioResponse(positions []model.Position, cash decimal.Decimal) string {
	var sb strings.Builder
	sb.WriteString("📊 Portfolio\n\n")

	if len(positions) == 0 {
		sb.WriteString("No open positions.\n")
	}

	totalValue := cash
	for _, position := range positions {
		sb.WriteString(fmt.Sprintf("**%s**\n", position.Symbol))
		sb.WriteString(fmt.Sprintf("   ▸ Quantity: %d\n", position.Quantity))
		sb.WriteString(fmt.Sprintf("   ▸ Avg cost: $%s\n", position.AvgCost.StringFixed(2)))
		if !position.Price.IsZero() {
			sb.WriteString(fmt.Sprintf("   ▸ Price: $%s\n", position.Price.StringFixed(2)))
			sb.WriteString(fmt.Sprintf("   ▸ Market value: $%s\n", position.MarketValue.StringFixed(2)))
			totalValue = totalValue.Add(position.MarketValue)
		} else {
			sb.WriteString("   ▸ Price: unavailable\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("💰 Cash: $%s\n", cash.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("💼 Total value: $%s", totalValue.StringFixed(2)))
	return sb.String()
}

func BalanceResponse(cash decimal.Decimal) string {
	return fmt.Sprintf("💰 Cash balance: $%s", cash.StringFixed(2))
}

func DepositResponse(amount, newBalance decimal.Decimal) string {
	return fmt.Sprintf("✅ Deposited $%s\n💰 Cash balance: $%s", amount.StringFixed(2), newBalance.StringFixed(2))
}

func HistoryResponse(records []model.TransactionRecord) string {
	if len(records) == 0 {
		return "📜 No transactions yet."
	}

	var sb strings.Builder
	sb.WriteString("📜 Transaction history\n\n")
	for _, record := range records {
		date := record.CreatedAt.Format("2006-01-02 15:04")
		switch record.Side {
		case model.SideDeposit:
			sb.WriteString(fmt.Sprintf("%s  deposit  $%s\n", date, record.Total.StringFixed(2)))
		default:
			sb.WriteString(fmt.Sprintf(
				"%s  %s  %d %s @ $%s = $%s\n",
				date, record.Side, record.Quantity, record.Symbol,
				record.Price.StringFixed(2), record.Total.StringFixed(2),
			))
		}
	}
	return sb.String()
}

// SellTickerKeyboard offers the held symbols as buttons so the user doesn't
// have to type the ticker when selling.
func SellTickerKeyboard(positions []model.Position) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	rows := make([]tele.Row, 0, len(positions))
	for _, position := range positions {
		btn := markup.Data(
			fmt.Sprintf("%s (%d)", position.Symbol, position.Quantity),
			tgCallback.SellTickerPrefix+position.Symbol,
		)
		rows = append(rows, markup.Row(btn))
	}

	markup.Inline(rows...)
	return markup
}
