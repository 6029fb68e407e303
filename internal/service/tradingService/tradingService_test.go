package tradingService

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"

	"github.com/KotFed0t/paper_trading_bot/config"
	"github.com/KotFed0t/paper_trading_bot/data/repository"
	"github.com/KotFed0t/paper_trading_bot/internal/externalApi"
	"github.com/KotFed0t/paper_trading_bot/internal/model"
	"github.com/KotFed0t/paper_trading_bot/internal/service"
	"github.com/shopspring/decimal"
)

// fakeRepo is an in-memory Repository. WithinTransaction snapshots the state
// and rolls it back when the wrapped function fails, so atomicity bugs in the
// service show up as leaked partial writes.
type fakeRepo struct {
	nextAccountID int64
	nextLotID     int64
	accounts      map[int64]int64 // chatID -> accountID
	cash          map[int64]decimal.Decimal
	lots          []model.Lot
	transactions  map[int64][]model.TransactionRecord

	// when > 0, WithinTransaction fails that many times with ErrSerialization
	// before letting a transaction through
	serializationFailures int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		accounts:     make(map[int64]int64),
		cash:         make(map[int64]decimal.Decimal),
		transactions: make(map[int64][]model.TransactionRecord),
	}
}

func (r *fakeRepo) InsertAccount(_ context.Context, chatID int64, startingCash decimal.Decimal) (int64, error) {
	if _, ok := r.accounts[chatID]; ok {
		return 0, repository.ErrAlreadyExists
	}
	r.nextAccountID++
	r.accounts[chatID] = r.nextAccountID
	r.cash[r.nextAccountID] = startingCash
	return r.nextAccountID, nil
}

func (r *fakeRepo) GetAccountID(_ context.Context, chatID int64) (int64, error) {
	accountID, ok := r.accounts[chatID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return accountID, nil
}

func (r *fakeRepo) GetCashBalance(_ context.Context, accountID int64) (decimal.Decimal, error) {
	return r.cash[accountID], nil
}

func (r *fakeRepo) GetCashBalanceForUpdate(_ context.Context, accountID int64) (decimal.Decimal, error) {
	return r.cash[accountID], nil
}

func (r *fakeRepo) AddToCashBalance(_ context.Context, accountID int64, delta decimal.Decimal) error {
	r.cash[accountID] = r.cash[accountID].Add(delta)
	return nil
}

func (r *fakeRepo) GetLotsForUpdate(_ context.Context, accountID int64, symbol string) ([]model.Lot, error) {
	var lots []model.Lot
	for _, l := range r.lots {
		if l.AccountID == accountID && l.Symbol == symbol {
			lots = append(lots, l)
		}
	}
	sort.Slice(lots, func(i, j int) bool { return lots[i].LotID < lots[j].LotID })
	return lots, nil
}

func (r *fakeRepo) InsertLot(_ context.Context, accountID int64, symbol string, quantity int, unitCost decimal.Decimal) error {
	r.nextLotID++
	r.lots = append(r.lots, model.Lot{
		LotID:     r.nextLotID,
		AccountID: accountID,
		Symbol:    symbol,
		Quantity:  quantity,
		UnitCost:  unitCost,
	})
	return nil
}

func (r *fakeRepo) UpdateLot(_ context.Context, lotID int64, quantity int, unitCost decimal.Decimal) error {
	for i := range r.lots {
		if r.lots[i].LotID == lotID {
			r.lots[i].Quantity = quantity
			r.lots[i].UnitCost = unitCost
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeRepo) DeleteLots(_ context.Context, lotIDs []int64) error {
	ids := make(map[int64]bool, len(lotIDs))
	for _, id := range lotIDs {
		ids[id] = true
	}
	kept := r.lots[:0]
	for _, l := range r.lots {
		if !ids[l.LotID] {
			kept = append(kept, l)
		}
	}
	r.lots = kept
	return nil
}

func (r *fakeRepo) GetPositions(_ context.Context, accountID int64) ([]model.Position, error) {
	bySymbol := make(map[string]*model.Position)
	totalCost := make(map[string]decimal.Decimal)
	for _, l := range r.lots {
		if l.AccountID != accountID {
			continue
		}
		p, ok := bySymbol[l.Symbol]
		if !ok {
			p = &model.Position{Symbol: l.Symbol}
			bySymbol[l.Symbol] = p
		}
		p.Quantity += l.Quantity
		totalCost[l.Symbol] = totalCost[l.Symbol].Add(l.UnitCost.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	positions := make([]model.Position, 0, len(bySymbol))
	for symbol, p := range bySymbol {
		p.AvgCost = totalCost[symbol].Div(decimal.NewFromInt(int64(p.Quantity))).Round(2)
		positions = append(positions, *p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return positions, nil
}

func (r *fakeRepo) GetTransactions(_ context.Context, accountID int64, limit int) ([]model.TransactionRecord, error) {
	records := r.transactions[accountID]
	if len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

func (r *fakeRepo) InsertTransaction(_ context.Context, accountID int64, record model.TransactionRecord) error {
	r.transactions[accountID] = append(r.transactions[accountID], record)
	return nil
}

func (r *fakeRepo) GetHeldSymbols(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var symbols []string
	for _, l := range r.lots {
		if !seen[l.Symbol] {
			seen[l.Symbol] = true
			symbols = append(symbols, l.Symbol)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (r *fakeRepo) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	if r.serializationFailures > 0 {
		r.serializationFailures--
		return repository.ErrSerialization
	}

	snapshot := r.snapshot()
	if err := tFunc(ctx); err != nil {
		r.restore(snapshot)
		return err
	}
	return nil
}

type repoState struct {
	cash         map[int64]decimal.Decimal
	lots         []model.Lot
	transactions map[int64][]model.TransactionRecord
	nextLotID    int64
}

func (r *fakeRepo) snapshot() repoState {
	s := repoState{
		cash:         make(map[int64]decimal.Decimal, len(r.cash)),
		lots:         append([]model.Lot(nil), r.lots...),
		transactions: make(map[int64][]model.TransactionRecord, len(r.transactions)),
		nextLotID:    r.nextLotID,
	}
	for k, v := range r.cash {
		s.cash[k] = v
	}
	for k, v := range r.transactions {
		s.transactions[k] = append([]model.TransactionRecord(nil), v...)
	}
	return s
}

func (r *fakeRepo) restore(s repoState) {
	r.cash = s.cash
	r.lots = s.lots
	r.transactions = s.transactions
	r.nextLotID = s.nextLotID
}

// fakeCache always misses so the service hits the quote provider directly.
type fakeCache struct {
	mu sync.Mutex
}

func (c *fakeCache) GetQuote(_ context.Context, _ string) (model.Quote, error) {
	return model.Quote{}, errors.New("cache miss")
}

func (c *fakeCache) SetQuote(_ context.Context, _ model.Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return nil
}

func (c *fakeCache) SetQuotes(_ context.Context, _ []model.Quote) error {
	return nil
}

type fakeQuoteApi struct {
	prices map[string]string
	err    error
}

func (q *fakeQuoteApi) GetQuote(_ context.Context, symbol string) (model.Quote, error) {
	if q.err != nil {
		return model.Quote{}, q.err
	}
	price, ok := q.prices[symbol]
	if !ok {
		return model.Quote{}, externalApi.ErrNotFound
	}
	return model.Quote{Symbol: symbol, Price: decimal.RequireFromString(price)}, nil
}

type fakeReportGenerator struct{}

func (g *fakeReportGenerator) Generate(_ context.Context, _ model.AccountStatement) ([]byte, string, error) {
	return []byte("xlsx"), ".xlsx", nil
}

type fakeCloudStorage struct {
	uploaded []string
}

func (s *fakeCloudStorage) UploadFile(_ context.Context, _ io.Reader, filename string) (string, error) {
	s.uploaded = append(s.uploaded, filename)
	return fmt.Sprintf("https://example.com/%s", filename), nil
}

func (s *fakeCloudStorage) DeleteOldFiles(_ context.Context) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Trading: config.Trading{
			StartingCash: "10000",
			TxRetryCount: 3,
			HistoryLimit: 50,
		},
	}
}

func newTestService(repo *fakeRepo, quoteApi *fakeQuoteApi) *TradingService {
	return New(testConfig(), repo, &fakeCache{}, quoteApi, &fakeReportGenerator{}, &fakeCloudStorage{})
}

func mustEqual(t *testing.T, got decimal.Decimal, want string, label string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", label, got, want)
	}
}

const testChatID = int64(101)

func TestRegAccount(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeQuoteApi{})
	ctx := context.Background()

	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("RegAccount: %v", err)
	}

	accountID := repo.accounts[testChatID]
	mustEqual(t, repo.cash[accountID], "10000", "starting cash")

	// second registration is a no-op
	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("repeat RegAccount: %v", err)
	}
	if len(repo.accounts) != 1 {
		t.Errorf("accounts = %d, want 1", len(repo.accounts))
	}
}

func TestBuy(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeQuoteApi{prices: map[string]string{"AAPL": "50"}})
	ctx := context.Background()

	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("RegAccount: %v", err)
	}

	if err := svc.Buy(ctx, testChatID, "aapl", 10); err != nil {
		t.Fatalf("Buy: %v", err)
	}

	accountID := repo.accounts[testChatID]
	mustEqual(t, repo.cash[accountID], "9500", "cash after buy")

	if len(repo.lots) != 1 {
		t.Fatalf("lots = %d, want 1", len(repo.lots))
	}
	if repo.lots[0].Symbol != "AAPL" || repo.lots[0].Quantity != 10 {
		t.Errorf("lot = %+v, want 10 AAPL", repo.lots[0])
	}
	mustEqual(t, repo.lots[0].UnitCost, "50", "lot unit cost")

	records := repo.transactions[accountID]
	if len(records) != 1 {
		t.Fatalf("transactions = %d, want 1", len(records))
	}
	if records[0].Side != model.SideBuy || records[0].Quantity != 10 {
		t.Errorf("record = %+v, want buy of 10", records[0])
	}
	mustEqual(t, records[0].Total, "500", "record total")
}

func TestBuyMergesIntoExistingLot(t *testing.T) {
	repo := newFakeRepo()
	quoteApi := &fakeQuoteApi{prices: map[string]string{"AAPL": "100"}}
	svc := newTestService(repo, quoteApi)
	ctx := context.Background()

	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("RegAccount: %v", err)
	}
	if err := svc.Buy(ctx, testChatID, "AAPL", 10); err != nil {
		t.Fatalf("first Buy: %v", err)
	}

	quoteApi.prices["AAPL"] = "120"
	if err := svc.Buy(ctx, testChatID, "AAPL", 10); err != nil {
		t.Fatalf("second Buy: %v", err)
	}

	if len(repo.lots) != 1 {
		t.Fatalf("lots = %d, want a single merged lot", len(repo.lots))
	}
	if repo.lots[0].Quantity != 20 {
		t.Errorf("merged quantity = %d, want 20", repo.lots[0].Quantity)
	}
	mustEqual(t, repo.lots[0].UnitCost, "110", "merged unit cost")

	accountID := repo.accounts[testChatID]
	mustEqual(t, repo.cash[accountID], "7800", "cash after two buys")
	if len(repo.transactions[accountID]) != 2 {
		t.Errorf("transactions = %d, want 2", len(repo.transactions[accountID]))
	}
}

func TestBuyInsufficientFunds(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeQuoteApi{prices: map[string]string{"AAPL": "2000"}})
	ctx := context.Background()

	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("RegAccount: %v", err)
	}

	err := svc.Buy(ctx, testChatID, "AAPL", 10)
	if !errors.Is(err, service.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}

	accountID := repo.accounts[testChatID]
	mustEqual(t, repo.cash[accountID], "10000", "cash after failed buy")
	if len(repo.lots) != 0 {
		t.Errorf("lots = %d, want 0", len(repo.lots))
	}
	if len(repo.transactions[accountID]) != 0 {
		t.Errorf("transactions = %d, want 0", len(repo.transactions[accountID]))
	}
}

func TestBuyValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeQuoteApi{prices: map[string]string{"AAPL": "50"}})
	ctx := context.Background()

	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("RegAccount: %v", err)
	}

	if err := svc.Buy(ctx, testChatID, "AAPL", 0); !errors.Is(err, service.ErrInvalidQuantity) {
		t.Errorf("zero quantity: want ErrInvalidQuantity, got %v", err)
	}
	if err := svc.Buy(ctx, testChatID, "AAPL", -5); !errors.Is(err, service.ErrInvalidQuantity) {
		t.Errorf("negative quantity: want ErrInvalidQuantity, got %v", err)
	}
	if err := svc.Buy(ctx, testChatID, "", 1); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("empty symbol: want ErrNotFound, got %v", err)
	}
	if err := svc.Buy(ctx, testChatID, "ZZZZ", 1); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("unknown symbol: want ErrNotFound, got %v", err)
	}
}

func TestBuyQuoteUnavailable(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeQuoteApi{err: errors.New("upstream timeout")})
	ctx := context.Background()

	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("RegAccount: %v", err)
	}

	if err := svc.Buy(ctx, testChatID, "AAPL", 1); !errors.Is(err, service.ErrQuoteUnavailable) {
		t.Fatalf("want ErrQuoteUnavailable, got %v", err)
	}
}

func TestSellFifo(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeQuoteApi{prices: map[string]string{"AAPL": "15"}})
	ctx := context.Background()

	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("RegAccount: %v", err)
	}
	accountID := repo.accounts[testChatID]
	_ = repo.InsertLot(ctx, accountID, "AAPL", 3, decimal.RequireFromString("10"))
	_ = repo.InsertLot(ctx, accountID, "AAPL", 5, decimal.RequireFromString("12"))

	receipt, err := svc.Sell(ctx, testChatID, "AAPL", 4)
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}

	mustEqual(t, receipt.Proceeds, "60", "proceeds")
	mustEqual(t, receipt.RealizedGain, "18", "realized gain") // 60 - (3*10 + 1*12)

	// oldest lot gone, newer lot shrunk to 4
	if len(repo.lots) != 1 {
		t.Fatalf("lots = %d, want 1", len(repo.lots))
	}
	if repo.lots[0].Quantity != 4 {
		t.Errorf("remaining quantity = %d, want 4", repo.lots[0].Quantity)
	}
	mustEqual(t, repo.lots[0].UnitCost, "12", "remaining unit cost")

	mustEqual(t, repo.cash[accountID], "10060", "cash after sale")

	records := repo.transactions[accountID]
	if len(records) != 1 {
		t.Fatalf("transactions = %d, want 1", len(records))
	}
	if records[0].Side != model.SideSell {
		t.Errorf("record side = %s, want sell", records[0].Side)
	}
}

func TestBuySellRoundTrip(t *testing.T) {
	repo := newFakeRepo()
	quoteApi := &fakeQuoteApi{prices: map[string]string{"AAPL": "50"}}
	svc := newTestService(repo, quoteApi)
	ctx := context.Background()

	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("RegAccount: %v", err)
	}
	if err := svc.Buy(ctx, testChatID, "AAPL", 10); err != nil {
		t.Fatalf("Buy: %v", err)
	}

	quoteApi.prices["AAPL"] = "60"
	receipt, err := svc.Sell(ctx, testChatID, "AAPL", 10)
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}

	mustEqual(t, receipt.RealizedGain, "100", "realized gain")

	accountID := repo.accounts[testChatID]
	mustEqual(t, repo.cash[accountID], "10100", "cash after round trip")
	if len(repo.lots) != 0 {
		t.Errorf("lots = %d, want 0 after selling everything", len(repo.lots))
	}
	if len(repo.transactions[accountID]) != 2 {
		t.Errorf("transactions = %d, want 2", len(repo.transactions[accountID]))
	}
}

func TestSellInsufficientHoldings(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeQuoteApi{prices: map[string]string{"AAPL": "15"}})
	ctx := context.Background()

	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("RegAccount: %v", err)
	}
	accountID := repo.accounts[testChatID]
	_ = repo.InsertLot(ctx, accountID, "AAPL", 3, decimal.RequireFromString("10"))

	_, err := svc.Sell(ctx, testChatID, "AAPL", 5)
	if !errors.Is(err, service.ErrInsufficientHoldings) {
		t.Fatalf("want ErrInsufficientHoldings, got %v", err)
	}

	mustEqual(t, repo.cash[accountID], "10000", "cash after failed sale")
	if len(repo.lots) != 1 || repo.lots[0].Quantity != 3 {
		t.Errorf("lots mutated by failed sale: %+v", repo.lots)
	}
	if len(repo.transactions[accountID]) != 0 {
		t.Errorf("transactions = %d, want 0", len(repo.transactions[accountID]))
	}
}

func TestSellSymbolNotHeld(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeQuoteApi{prices: map[string]string{"AAPL": "15"}})
	ctx := context.Background()

	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("RegAccount: %v", err)
	}

	_, err := svc.Sell(ctx, testChatID, "AAPL", 1)
	if !errors.Is(err, service.ErrSymbolNotHeld) {
		t.Fatalf("want ErrSymbolNotHeld, got %v", err)
	}
}

func TestDeposit(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeQuoteApi{})
	ctx := context.Background()

	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("RegAccount: %v", err)
	}

	newBalance, err := svc.Deposit(ctx, testChatID, decimal.RequireFromString("250.50"))
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	mustEqual(t, newBalance, "10250.50", "new balance")

	accountID := repo.accounts[testChatID]
	records := repo.transactions[accountID]
	if len(records) != 1 {
		t.Fatalf("transactions = %d, want 1", len(records))
	}
	if records[0].Side != model.SideDeposit || records[0].Quantity != 0 {
		t.Errorf("record = %+v, want deposit with zero quantity", records[0])
	}
	mustEqual(t, records[0].Total, "250.50", "record total")
}

func TestDepositInvalidAmount(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeQuoteApi{})
	ctx := context.Background()

	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("RegAccount: %v", err)
	}

	if _, err := svc.Deposit(ctx, testChatID, decimal.Zero); !errors.Is(err, service.ErrInvalidAmount) {
		t.Errorf("zero amount: want ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Deposit(ctx, testChatID, decimal.RequireFromString("-10")); !errors.Is(err, service.ErrInvalidAmount) {
		t.Errorf("negative amount: want ErrInvalidAmount, got %v", err)
	}
}

func TestTxRetryOnSerializationConflict(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeQuoteApi{prices: map[string]string{"AAPL": "50"}})
	ctx := context.Background()

	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("RegAccount: %v", err)
	}

	repo.serializationFailures = 2
	if err := svc.Buy(ctx, testChatID, "AAPL", 1); err != nil {
		t.Fatalf("Buy should succeed after retries, got %v", err)
	}

	accountID := repo.accounts[testChatID]
	mustEqual(t, repo.cash[accountID], "9950", "cash after retried buy")
}

func TestTxRetryExhausted(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeQuoteApi{prices: map[string]string{"AAPL": "50"}})
	ctx := context.Background()

	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("RegAccount: %v", err)
	}

	repo.serializationFailures = 3
	err := svc.Buy(ctx, testChatID, "AAPL", 1)
	if !errors.Is(err, service.ErrStorageConflict) {
		t.Fatalf("want ErrStorageConflict, got %v", err)
	}

	accountID := repo.accounts[testChatID]
	mustEqual(t, repo.cash[accountID], "10000", "cash after exhausted retries")
	if len(repo.transactions[accountID]) != 0 {
		t.Errorf("transactions = %d, want 0", len(repo.transactions[accountID]))
	}
}

func TestGetPortfolioSummary(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeQuoteApi{prices: map[string]string{"AAPL": "60", "MSFT": "300"}})
	ctx := context.Background()

	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("RegAccount: %v", err)
	}
	accountID := repo.accounts[testChatID]
	_ = repo.InsertLot(ctx, accountID, "AAPL", 10, decimal.RequireFromString("50"))
	_ = repo.InsertLot(ctx, accountID, "MSFT", 2, decimal.RequireFromString("280"))

	positions, err := svc.GetPortfolioSummary(ctx, testChatID)
	if err != nil {
		t.Fatalf("GetPortfolioSummary: %v", err)
	}

	if len(positions) != 2 {
		t.Fatalf("positions = %d, want 2", len(positions))
	}
	mustEqual(t, positions[0].MarketValue, "600", "AAPL market value")
	mustEqual(t, positions[1].MarketValue, "600", "MSFT market value")
	mustEqual(t, positions[1].AvgCost, "280", "MSFT avg cost")
}

func TestRefreshQuotes(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeQuoteApi{prices: map[string]string{"AAPL": "60"}})
	ctx := context.Background()

	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("RegAccount: %v", err)
	}
	accountID := repo.accounts[testChatID]
	_ = repo.InsertLot(ctx, accountID, "AAPL", 10, decimal.RequireFromString("50"))
	_ = repo.InsertLot(ctx, accountID, "GONE", 1, decimal.RequireFromString("5"))

	// a symbol the provider can't price anymore must not fail the job
	if err := svc.RefreshQuotes(ctx); err != nil {
		t.Fatalf("RefreshQuotes: %v", err)
	}
}

func TestGenerateStatement(t *testing.T) {
	repo := newFakeRepo()
	storage := &fakeCloudStorage{}
	svc := New(testConfig(), repo, &fakeCache{}, &fakeQuoteApi{prices: map[string]string{"AAPL": "60"}}, &fakeReportGenerator{}, storage)
	ctx := context.Background()

	if err := svc.RegAccount(ctx, testChatID); err != nil {
		t.Fatalf("RegAccount: %v", err)
	}
	accountID := repo.accounts[testChatID]
	_ = repo.InsertLot(ctx, accountID, "AAPL", 10, decimal.RequireFromString("50"))

	link, err := svc.GenerateStatement(ctx, testChatID)
	if err != nil {
		t.Fatalf("GenerateStatement: %v", err)
	}
	if link == "" {
		t.Error("empty download link")
	}
	if len(storage.uploaded) != 1 {
		t.Fatalf("uploads = %d, want 1", len(storage.uploaded))
	}
}
