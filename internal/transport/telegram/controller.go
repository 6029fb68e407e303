package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/KotFed0t/paper_trading_bot/config"
	"github.com/KotFed0t/paper_trading_bot/data/session"
	"github.com/KotFed0t/paper_trading_bot/internal/converter/telebotConverter"
	"github.com/KotFed0t/paper_trading_bot/internal/model"
	"github.com/KotFed0t/paper_trading_bot/internal/service"
	"github.com/KotFed0t/paper_trading_bot/utils"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

const internalErrMsg = "something went wrong, try again later..."

type TradingService interface {
	RegAccount(ctx context.Context, chatID int64) error
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
	Buy(ctx context.Context, chatID int64, symbol string, quantity int) error
	Sell(ctx context.Context, chatID int64, symbol string, quantity int) (model.SaleReceipt, error)
	Deposit(ctx context.Context, chatID int64, amount decimal.Decimal) (decimal.Decimal, error)
	GetCashBalance(ctx context.Context, chatID int64) (decimal.Decimal, error)
	GetPortfolioSummary(ctx context.Context, chatID int64) ([]model.Position, error)
	GetTransactionHistory(ctx context.Context, chatID int64) ([]model.TransactionRecord, error)
	GenerateStatement(ctx context.Context, chatID int64) (downloadLink string, err error)
}

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
}

type Controller struct {
	cfg            *config.Config
	tradingService TradingService
	session        Session
}

func NewController(cfg *config.Config, tradingService TradingService, session Session) *Controller {
	return &Controller{
		cfg:            cfg,
		tradingService: tradingService,
		session:        session,
	}
}

func (ctrl *Controller) Start(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	if err := ctrl.tradingService.RegAccount(ctx, c.Chat().ID); err != nil {
		slog.Error("got error from tradingService.RegAccount", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(
		"Welcome to the paper trading desk! You start with $10,000 of virtual cash.\nPick an action:",
		telebotConverter.MainMenu(),
	)
}

func (ctrl *Controller) InitQuote(c tele.Context) error {
	return ctrl.expectInput(c, model.ExpectingQuoteTicker, "Enter ticker:")
}

func (ctrl *Controller) ProcessQuote(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	defer ctrl.resetSessionState(ctx, c)

	quote, err := ctrl.tradingService.GetQuote(ctx, c.Message().Text)
	if err != nil {
		return c.Send(ctrl.userErrMsg(err))
	}

	return c.Send(telebotConverter.QuoteResponse(quote))
}

func (ctrl *Controller) InitBuy(c tele.Context) error {
	return ctrl.expectInput(c, model.ExpectingBuyTicker, "Enter ticker to buy:")
}

func (ctrl *Controller) ProcessBuyTicker(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	ticker := strings.ToUpper(strings.TrimSpace(c.Message().Text))

	quote, err := ctrl.tradingService.GetQuote(ctx, ticker)
	if err != nil {
		return c.Send(ctrl.userErrMsg(err))
	}

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.ExpectingBuyQuantity
	chatSession.Ticker = ticker
	if err := ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.QuoteResponse(quote) + "\nEnter quantity:")
}

func (ctrl *Controller) ProcessBuyQuantity(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	quantity, err := strconv.Atoi(strings.TrimSpace(c.Message().Text))
	if err != nil || quantity <= 0 {
		return c.Send("Enter a whole number of shares greater than zero:")
	}

	defer ctrl.resetSessionState(ctx, c)

	if err := ctrl.tradingService.Buy(ctx, c.Chat().ID, chatSession.Ticker, quantity); err != nil {
		return c.Send(ctrl.userErrMsg(err))
	}

	quote, err := ctrl.tradingService.GetQuote(ctx, chatSession.Ticker)
	if err != nil {
		slog.Warn("can't get quote for confirmation", slog.String("rqID", rqID), slog.String("err", err.Error()))
	}

	cash, err := ctrl.tradingService.GetCashBalance(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from tradingService.GetCashBalance", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.BuyConfirmationResponse(chatSession.Ticker, quantity, quote.Price, cash))
}

func (ctrl *Controller) InitSell(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	positions, err := ctrl.tradingService.GetPortfolioSummary(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from tradingService.GetPortfolioSummary", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	if len(positions) == 0 {
		return c.Send("You have no open positions to sell.")
	}

	if err := ctrl.expectInput(c, model.ExpectingSellTicker, ""); err != nil {
		return err
	}

	return c.Send("Pick a position or enter a ticker:", telebotConverter.SellTickerKeyboard(positions))
}

func (ctrl *Controller) ProcessSellTicker(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	return ctrl.collectSellTicker(ctx, c, c.Message().Text)
}

// ProcessSellTickerCallback handles a tap on one of the position buttons.
func (ctrl *Controller) ProcessSellTickerCallback(c tele.Context, ticker string) error {
	ctx := utils.CreateCtxWithRqID(c)
	return ctrl.collectSellTicker(ctx, c, ticker)
}

func (ctrl *Controller) collectSellTicker(ctx context.Context, c tele.Context, ticker string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.ExpectingSellQuantity
	chatSession.Ticker = ticker
	if err := ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send("Enter quantity to sell:")
}

func (ctrl *Controller) ProcessSellQuantity(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	quantity, err := strconv.Atoi(strings.TrimSpace(c.Message().Text))
	if err != nil || quantity <= 0 {
		return c.Send("Enter a whole number of shares greater than zero:")
	}

	defer ctrl.resetSessionState(ctx, c)

	receipt, err := ctrl.tradingService.Sell(ctx, c.Chat().ID, chatSession.Ticker, quantity)
	if err != nil {
		return c.Send(ctrl.userErrMsg(err))
	}

	cash, err := ctrl.tradingService.GetCashBalance(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from tradingService.GetCashBalance", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.SaleReceiptResponse(receipt, cash))
}

func (ctrl *Controller) InitDeposit(c tele.Context) error {
	return ctrl.expectInput(c, model.ExpectingDepositAmount, "Enter deposit amount:")
}

func (ctrl *Controller) ProcessDeposit(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	amount, err := decimal.NewFromString(strings.TrimSpace(c.Message().Text))
	if err != nil {
		return c.Send("Enter a valid amount, e.g. 500 or 99.95:")
	}

	defer ctrl.resetSessionState(ctx, c)

	newBalance, err := ctrl.tradingService.Deposit(ctx, c.Chat().ID, amount)
	if err != nil {
		return c.Send(ctrl.userErrMsg(err))
	}

	return c.Send(telebotConverter.DepositResponse(amount.Round(2), newBalance))
}

func (ctrl *Controller) Portfolio(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	positions, err := ctrl.tradingService.GetPortfolioSummary(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from tradingService.GetPortfolioSummary", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	cash, err := ctrl.tradingService.GetCashBalance(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from tradingService.GetCashBalance", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.PortfolioResponse(positions, cash))
}

func (ctrl *Controller) Balance(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	cash, err := ctrl.tradingService.GetCashBalance(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from tradingService.GetCashBalance", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.BalanceResponse(cash))
}

func (ctrl *Controller) History(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	records, err := ctrl.tradingService.GetTransactionHistory(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from tradingService.GetTransactionHistory", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.HistoryResponse(records))
}

func (ctrl *Controller) Report(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	if err := c.Send("Generating statement..."); err != nil {
		return err
	}

	link, err := ctrl.tradingService.GenerateStatement(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from tradingService.GenerateStatement", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send("📄 Your statement: " + link)
}

// expectInput moves the dialog into a waiting state and optionally prompts.
func (ctrl *Controller) expectInput(c tele.Context, state model.State, prompt string) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.State = state
	chatSession.Ticker = ""
	if err := ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	if prompt == "" {
		return nil
	}
	return c.Send(prompt)
}

func (ctrl *Controller) getSessionFromTeleCtxOrStorage(ctx context.Context, c tele.Context) (model.Session, error) {
	chatSession, ok := c.Get("session").(model.Session)
	if ok {
		return chatSession, nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	chatSession, err := ctrl.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return model.Session{}, nil
		}
		slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.Session{}, err
	}
	return chatSession, nil
}

func (ctrl *Controller) setSession(ctx context.Context, c tele.Context, chatSession model.Session) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	err := ctrl.session.SetSession(ctx, strconv.FormatInt(c.Chat().ID, 10), chatSession)
	if err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
	}
	return err
}

func (ctrl *Controller) resetSessionState(ctx context.Context, c tele.Context) {
	_ = ctrl.session.SetSession(ctx, strconv.FormatInt(c.Chat().ID, 10), model.Session{})
}

// userErrMsg maps service errors to user-facing replies. Anything not in the
// taxonomy falls through to the generic message.
func (ctrl *Controller) userErrMsg(err error) string {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return "Ticker not found. Check the symbol and try again."
	case errors.Is(err, service.ErrQuoteUnavailable):
		return "Can't get a price for that ticker right now, try again later."
	case errors.Is(err, service.ErrInvalidQuantity):
		return "Quantity must be a whole number greater than zero."
	case errors.Is(err, service.ErrInvalidAmount):
		return "Amount must be greater than zero."
	case errors.Is(err, service.ErrInsufficientFunds):
		return "Not enough cash for this purchase."
	case errors.Is(err, service.ErrSymbolNotHeld):
		return "You don't hold this ticker."
	case errors.Is(err, service.ErrInsufficientHoldings):
		return "You don't hold that many shares."
	case errors.Is(err, service.ErrStorageConflict):
		return "The account is busy with another operation, try again."
	default:
		return internalErrMsg
	}
}
