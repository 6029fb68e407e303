package tradingService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/KotFed0t/paper_trading_bot/config"
	"github.com/KotFed0t/paper_trading_bot/data/repository"
	"github.com/KotFed0t/paper_trading_bot/internal/externalApi"
	"github.com/KotFed0t/paper_trading_bot/internal/model"
	"github.com/KotFed0t/paper_trading_bot/internal/service"
	"github.com/KotFed0t/paper_trading_bot/utils"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type QuoteApi interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
}

type Cache interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
	SetQuote(ctx context.Context, quote model.Quote) error
	SetQuotes(ctx context.Context, quotes []model.Quote) error
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
	DeleteOldFiles(ctx context.Context) error
}

type ReportGenerator interface {
	Generate(ctx context.Context, statement model.AccountStatement) (fileBytes []byte, fileExtension string, err error)
}

type Repository interface {
	InsertAccount(ctx context.Context, chatID int64, startingCash decimal.Decimal) (accountID int64, err error)
	GetAccountID(ctx context.Context, chatID int64) (accountID int64, err error)
	GetCashBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	GetCashBalanceForUpdate(ctx context.Context, accountID int64) (decimal.Decimal, error)
	AddToCashBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error
	GetLotsForUpdate(ctx context.Context, accountID int64, symbol string) ([]model.Lot, error)
	InsertLot(ctx context.Context, accountID int64, symbol string, quantity int, unitCost decimal.Decimal) error
	UpdateLot(ctx context.Context, lotID int64, quantity int, unitCost decimal.Decimal) error
	DeleteLots(ctx context.Context, lotIDs []int64) error
	GetPositions(ctx context.Context, accountID int64) ([]model.Position, error)
	GetTransactions(ctx context.Context, accountID int64, limit int) ([]model.TransactionRecord, error)
	InsertTransaction(ctx context.Context, accountID int64, record model.TransactionRecord) error
	GetHeldSymbols(ctx context.Context) ([]string, error)
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
}

var validate = validator.New()

type tradeRequest struct {
	Symbol   string `validate:"required,alpha,uppercase,max=10"`
	Quantity int    `validate:"gt=0"`
}

type TradingService struct {
	cfg             *config.Config
	repo            Repository
	cache           Cache
	quoteApi        QuoteApi
	reportGenerator ReportGenerator
	cloudStorage    CloudStorage
	startingCash    decimal.Decimal
}

func New(
	cfg *config.Config,
	repo Repository,
	cache Cache,
	quoteApi QuoteApi,
	reportGenerator ReportGenerator,
	cloudStorage CloudStorage,
) *TradingService {
	startingCash, err := decimal.NewFromString(cfg.Trading.StartingCash)
	if err != nil {
		panic(fmt.Sprintf("invalid TRADING_STARTING_CASH: %s", err))
	}

	return &TradingService{
		cfg:             cfg,
		repo:            repo,
		cache:           cache,
		quoteApi:        quoteApi,
		reportGenerator: reportGenerator,
		cloudStorage:    cloudStorage,
		startingCash:    startingCash,
	}
}

func (s *TradingService) RegAccount(ctx context.Context, chatID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.RegAccount"

	slog.Debug("RegAccount start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("RegAccount finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	_, err := s.repo.InsertAccount(ctx, chatID, s.startingCash)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil
		}
		slog.Error("got error from repo.InsertAccount", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

// GetQuote returns the current price for a symbol, cache first. The symbol is
// case-normalized here so every downstream lookup and storage key agrees.
func (s *TradingService) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.GetQuote"
	symbol = normalizeSymbol(symbol)

	slog.Debug("GetQuote start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("GetQuote finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	quote, err := s.cache.GetQuote(ctx, symbol)
	if err == nil {
		return quote, nil
	}

	quote, err = s.quoteApi.GetQuote(ctx, symbol)
	if err != nil {
		if errors.Is(err, externalApi.ErrNotFound) {
			slog.Warn("symbol not found in quoteApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
			return model.Quote{}, service.ErrNotFound
		}
		slog.Error("can't get quote from quoteApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Quote{}, service.ErrQuoteUnavailable
	}

	if quote.Price.IsZero() {
		return model.Quote{}, service.ErrQuoteUnavailable
	}

	go s.cache.SetQuote(context.WithoutCancel(ctx), quote)

	return quote, nil
}

// Buy debits cash and creates or merges a purchase lot, all inside one
// transaction. The quote is captured before the transaction begins and is
// never re-fetched mid-flight.
func (s *TradingService) Buy(ctx context.Context, chatID int64, symbol string, quantity int) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.Buy"
	symbol = normalizeSymbol(symbol)

	slog.Debug("Buy start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.Int("quantity", quantity))
	defer func() {
		slog.Debug("Buy finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	if err := validateTradeRequest(symbol, quantity); err != nil {
		return err
	}

	accountID, err := s.repo.GetAccountID(ctx, chatID)
	if err != nil {
		slog.Error("got error from repo.GetAccountID", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	quote, err := s.GetQuote(ctx, symbol)
	if err != nil {
		return err
	}

	cost := quote.Price.Mul(decimal.NewFromInt(int64(quantity)))

	err = s.withTxRetry(ctx, func(ctx context.Context) error {
		cash, err := s.repo.GetCashBalanceForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		if cash.LessThan(cost) {
			return service.ErrInsufficientFunds
		}

		if err := s.repo.AddToCashBalance(ctx, accountID, cost.Neg()); err != nil {
			return err
		}

		lots, err := s.repo.GetLotsForUpdate(ctx, accountID, symbol)
		if err != nil {
			return err
		}

		if len(lots) > 0 {
			merged := mergeLot(lots[0], quantity, quote.Price)
			if err := s.repo.UpdateLot(ctx, merged.LotID, merged.Quantity, merged.UnitCost); err != nil {
				return err
			}
		} else {
			if err := s.repo.InsertLot(ctx, accountID, symbol, quantity, quote.Price); err != nil {
				return err
			}
		}

		return s.repo.InsertTransaction(ctx, accountID, model.TransactionRecord{
			Symbol:   symbol,
			Side:     model.SideBuy,
			Quantity: quantity,
			Price:    quote.Price,
			Total:    cost,
		})
	})

	if err != nil {
		if !isPreconditionErr(err) {
			slog.Error("Buy transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
		return err
	}

	return nil
}

// Sell settles a sale against held lots, oldest lot first. Proceeds are
// credited at the captured live quote; per-lot cost basis only feeds the
// realized gain on the receipt.
func (s *TradingService) Sell(ctx context.Context, chatID int64, symbol string, quantity int) (receipt model.SaleReceipt, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.Sell"
	symbol = normalizeSymbol(symbol)

	slog.Debug("Sell start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.Int("quantity", quantity))
	defer func() {
		slog.Debug("Sell finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	if err := validateTradeRequest(symbol, quantity); err != nil {
		return model.SaleReceipt{}, err
	}

	accountID, err := s.repo.GetAccountID(ctx, chatID)
	if err != nil {
		slog.Error("got error from repo.GetAccountID", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.SaleReceipt{}, err
	}

	quote, err := s.GetQuote(ctx, symbol)
	if err != nil {
		return model.SaleReceipt{}, err
	}

	proceeds := quote.Price.Mul(decimal.NewFromInt(int64(quantity)))

	err = s.withTxRetry(ctx, func(ctx context.Context) error {
		// account row lock comes first so concurrent sells serialize before
		// reading lots
		if _, err := s.repo.GetCashBalanceForUpdate(ctx, accountID); err != nil {
			return err
		}

		lots, err := s.repo.GetLotsForUpdate(ctx, accountID, symbol)
		if err != nil {
			return err
		}

		plan, err := planFifoSale(lots, quantity)
		if err != nil {
			return err
		}

		if len(plan.fullyConsumed) > 0 {
			if err := s.repo.DeleteLots(ctx, plan.fullyConsumed); err != nil {
				return err
			}
		}

		if plan.partial != nil {
			if err := s.repo.UpdateLot(ctx, plan.partial.LotID, plan.partial.Quantity, plan.partial.UnitCost); err != nil {
				return err
			}
		}

		if err := s.repo.AddToCashBalance(ctx, accountID, proceeds); err != nil {
			return err
		}

		if err := s.repo.InsertTransaction(ctx, accountID, model.TransactionRecord{
			Symbol:   symbol,
			Side:     model.SideSell,
			Quantity: quantity,
			Price:    quote.Price,
			Total:    proceeds,
		}); err != nil {
			return err
		}

		receipt = model.SaleReceipt{
			Symbol:       symbol,
			Quantity:     quantity,
			Price:        quote.Price,
			Proceeds:     proceeds,
			RealizedGain: plan.realizedGain(quote.Price, quantity),
		}
		return nil
	})

	if err != nil {
		if !isPreconditionErr(err) {
			slog.Error("Sell transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
		return model.SaleReceipt{}, err
	}

	return receipt, nil
}

// Deposit credits cash and appends a deposit record to the history.
func (s *TradingService) Deposit(ctx context.Context, chatID int64, amount decimal.Decimal) (newBalance decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.Deposit"

	slog.Debug("Deposit start", slog.String("rqID", rqID), slog.String("op", op), slog.String("amount", amount.String()))
	defer func() {
		slog.Debug("Deposit finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	if !amount.IsPositive() {
		return decimal.Decimal{}, service.ErrInvalidAmount
	}
	amount = amount.Round(2)

	accountID, err := s.repo.GetAccountID(ctx, chatID)
	if err != nil {
		slog.Error("got error from repo.GetAccountID", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return decimal.Decimal{}, err
	}

	err = s.withTxRetry(ctx, func(ctx context.Context) error {
		cash, err := s.repo.GetCashBalanceForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		if err := s.repo.AddToCashBalance(ctx, accountID, amount); err != nil {
			return err
		}

		if err := s.repo.InsertTransaction(ctx, accountID, model.TransactionRecord{
			Side:  model.SideDeposit,
			Total: amount,
		}); err != nil {
			return err
		}

		newBalance = cash.Add(amount)
		return nil
	})

	if err != nil {
		slog.Error("Deposit transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return decimal.Decimal{}, err
	}

	return newBalance, nil
}

func (s *TradingService) GetCashBalance(ctx context.Context, chatID int64) (decimal.Decimal, error) {
	accountID, err := s.repo.GetAccountID(ctx, chatID)
	if err != nil {
		return decimal.Decimal{}, err
	}

	return s.repo.GetCashBalance(ctx, accountID)
}

// GetPortfolioSummary aggregates lots per symbol and enriches positions with
// current prices. A symbol the provider can't price right now is returned
// with a zero price rather than failing the whole summary.
func (s *TradingService) GetPortfolioSummary(ctx context.Context, chatID int64) ([]model.Position, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.GetPortfolioSummary"

	slog.Debug("GetPortfolioSummary start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("GetPortfolioSummary finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	accountID, err := s.repo.GetAccountID(ctx, chatID)
	if err != nil {
		slog.Error("got error from repo.GetAccountID", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	positions, err := s.repo.GetPositions(ctx, accountID)
	if err != nil {
		slog.Error("got error from repo.GetPositions", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	for i, position := range positions {
		quote, err := s.GetQuote(ctx, position.Symbol)
		if err != nil {
			slog.Warn("can't price position", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", position.Symbol), slog.String("err", err.Error()))
			continue
		}
		positions[i].Price = quote.Price
		positions[i].MarketValue = quote.Price.Mul(decimal.NewFromInt(int64(position.Quantity)))
	}

	return positions, nil
}

func (s *TradingService) GetTransactionHistory(ctx context.Context, chatID int64) ([]model.TransactionRecord, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.GetTransactionHistory"

	slog.Debug("GetTransactionHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("GetTransactionHistory finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	accountID, err := s.repo.GetAccountID(ctx, chatID)
	if err != nil {
		slog.Error("got error from repo.GetAccountID", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	return s.repo.GetTransactions(ctx, accountID, s.cfg.Trading.HistoryLimit)
}

// GenerateStatement builds an xlsx statement and uploads it to cloud storage,
// returning the download link.
func (s *TradingService) GenerateStatement(ctx context.Context, chatID int64) (downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.GenerateStatement"

	slog.Debug("GenerateStatement start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("GenerateStatement finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	positions, err := s.GetPortfolioSummary(ctx, chatID)
	if err != nil {
		return "", err
	}

	cash, err := s.GetCashBalance(ctx, chatID)
	if err != nil {
		return "", err
	}

	transactions, err := s.GetTransactionHistory(ctx, chatID)
	if err != nil {
		return "", err
	}

	statement := model.AccountStatement{
		ChatID:       chatID,
		Cash:         cash,
		Positions:    positions,
		Transactions: transactions,
	}

	fileBytes, fileExtension, err := s.reportGenerator.Generate(ctx, statement)
	if err != nil {
		slog.Error("got error from reportGenerator.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	filename := fmt.Sprintf("statement_%d_%s%s", chatID, time.Now().Format("2006-01-02_15-04-05"), fileExtension)

	downloadLink, err = s.cloudStorage.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
	if err != nil {
		slog.Error("got error from cloudStorage.UploadFile", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	return downloadLink, nil
}

// RefreshQuotes re-fetches prices for every held symbol and refills the
// cache. Runs as a scheduler job.
func (s *TradingService) RefreshQuotes(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.RefreshQuotes"

	symbols, err := s.repo.GetHeldSymbols(ctx)
	if err != nil {
		slog.Error("got error from repo.GetHeldSymbols", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	quotes := make([]model.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		quote, err := s.quoteApi.GetQuote(ctx, symbol)
		if err != nil {
			slog.Warn("can't refresh quote", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
			continue
		}
		quotes = append(quotes, quote)
	}

	if len(quotes) == 0 {
		return nil
	}

	return s.cache.SetQuotes(ctx, quotes)
}

// CleanupReports drops expired statement files from cloud storage. Runs as a
// scheduler job.
func (s *TradingService) CleanupReports(ctx context.Context) error {
	return s.cloudStorage.DeleteOldFiles(ctx)
}

// withTxRetry repeats the whole read-compute-write cycle on serialization
// conflicts, never a part of it.
func (s *TradingService) withTxRetry(ctx context.Context, tFunc func(ctx context.Context) error) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	var err error
	for attempt := 1; attempt <= s.cfg.Trading.TxRetryCount; attempt++ {
		err = s.repo.WithinTransaction(ctx, tFunc)
		if !errors.Is(err, repository.ErrSerialization) {
			return err
		}
		slog.Warn("serialization conflict, retrying transaction", slog.String("rqID", rqID), slog.Int("attempt", attempt))
	}

	return service.ErrStorageConflict
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func validateTradeRequest(symbol string, quantity int) error {
	req := tradeRequest{Symbol: symbol, Quantity: quantity}

	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		for _, fieldErr := range vErrs {
			if fieldErr.Field() == "Quantity" {
				return service.ErrInvalidQuantity
			}
		}
	}

	return service.ErrNotFound
}

// isPreconditionErr reports whether the error is an expected precondition
// failure that the caller renders as a user-facing message.
func isPreconditionErr(err error) bool {
	return errors.Is(err, service.ErrInsufficientFunds) ||
		errors.Is(err, service.ErrInsufficientHoldings) ||
		errors.Is(err, service.ErrSymbolNotHeld) ||
		errors.Is(err, service.ErrInvalidQuantity)
}
