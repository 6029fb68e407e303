package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/KotFed0t/paper_trading_bot/data/repository"
	"github.com/KotFed0t/paper_trading_bot/internal/converter/dbConverter"
	"github.com/KotFed0t/paper_trading_bot/internal/model"
	"github.com/KotFed0t/paper_trading_bot/internal/model/dbModel"
	"github.com/KotFed0t/paper_trading_bot/utils"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/shopspring/decimal"
)

func (r *Postgres) InsertAccount(ctx context.Context, chatID int64, startingCash decimal.Decimal) (accountID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `INSERT INTO accounts(chat_id, cash) VALUES($1, $2) RETURNING account_id`

	slog.Debug("InsertAccount start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertAccount failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertAccount completed", slog.String("rqID", rqID))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, chatID, startingCash).Scan(&accountID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return 0, repository.ErrAlreadyExists
			}
		}
		return 0, err
	}

	return accountID, nil
}

func (r *Postgres) GetAccountID(ctx context.Context, chatID int64) (accountID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT account_id FROM accounts WHERE chat_id = $1`

	slog.Debug("GetAccountID start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetAccountID failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetAccountID completed", slog.String("rqID", rqID))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, chatID).Scan(&accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, err
	}

	return accountID, nil
}

func (r *Postgres) getCashBalance(ctx context.Context, accountID int64, query string) (cash decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("getCashBalance start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("getCashBalance failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("getCashBalance completed", slog.String("rqID", rqID))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, accountID).Scan(&cash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Decimal{}, repository.ErrNotFound
		}
		return decimal.Decimal{}, mapWriteErr(err)
	}

	return cash, nil
}

func (r *Postgres) GetCashBalance(ctx context.Context, accountID int64) (cash decimal.Decimal, err error) {
	query := `SELECT cash FROM accounts WHERE account_id = $1`

	return r.getCashBalance(ctx, accountID, query)
}

// GetCashBalanceForUpdate locks the account row for the rest of the
// surrounding transaction. Every mutating operation takes this lock first, so
// per-account check-then-mutate cycles never interleave.
func (r *Postgres) GetCashBalanceForUpdate(ctx context.Context, accountID int64) (cash decimal.Decimal, err error) {
	query := `SELECT cash FROM accounts WHERE account_id = $1 FOR UPDATE`

	return r.getCashBalance(ctx, accountID, query)
}

func (r *Postgres) AddToCashBalance(ctx context.Context, accountID int64, delta decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.AddToCashBalance"
	query := `UPDATE accounts SET cash = cash + $1 WHERE account_id = $2`

	slog.Debug("AddToCashBalance start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.String("delta", delta.String()))
	defer func() {
		if err != nil {
			slog.Error("AddToCashBalance failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("AddToCashBalance completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, delta, accountID)
	if err != nil {
		return mapWriteErr(err)
	}

	return nil
}

// GetLotsForUpdate returns the open lots for (account, symbol) in creation
// order, locked for the rest of the surrounding transaction.
func (r *Postgres) GetLotsForUpdate(ctx context.Context, accountID int64, symbol string) (lots []model.Lot, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetLotsForUpdate"
	query := `
		SELECT lot_id, account_id, symbol, quantity, unit_cost, dt_create
		FROM lots
		WHERE account_id = $1
		AND symbol = $2
		ORDER BY lot_id
		FOR UPDATE
		`

	slog.Debug("GetLotsForUpdate start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetLotsForUpdate failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetLotsForUpdate completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, accountID, symbol)
	if err != nil {
		return nil, mapWriteErr(err)
	}

	defer rows.Close()

	for rows.Next() {
		var lot dbModel.Lot
		err = rows.StructScan(&lot)
		if err != nil {
			return nil, err
		}
		lots = append(lots, dbConverter.ConvertLot(lot))
	}

	return lots, nil
}

func (r *Postgres) InsertLot(ctx context.Context, accountID int64, symbol string, quantity int, unitCost decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertLot"
	query := `INSERT INTO lots(account_id, symbol, quantity, unit_cost) VALUES($1, $2, $3, $4)`

	slog.Debug("InsertLot start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertLot failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertLot completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, accountID, symbol, quantity, unitCost)
	if err != nil {
		return mapWriteErr(err)
	}

	return nil
}

func (r *Postgres) UpdateLot(ctx context.Context, lotID int64, quantity int, unitCost decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdateLot"
	query := `
		UPDATE lots
		SET
			quantity = $1,
			unit_cost = $2
		WHERE lot_id = $3
	`

	slog.Debug("UpdateLot start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("lotID", lotID))
	defer func() {
		if err != nil {
			slog.Error("UpdateLot failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateLot completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, quantity, unitCost, lotID)
	if err != nil {
		return mapWriteErr(err)
	}

	return nil
}

func (r *Postgres) DeleteLots(ctx context.Context, lotIDs []int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteLots"
	query := `DELETE FROM lots WHERE lot_id = ANY($1::bigint[])`

	slog.Debug("DeleteLots start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("lotIDs", lotIDs))
	defer func() {
		if err != nil {
			slog.Error("DeleteLots failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteLots completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, lotIDs)
	if err != nil {
		return mapWriteErr(err)
	}

	return nil
}

func (r *Postgres) GetPositions(ctx context.Context, accountID int64) (positions []model.Position, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPositions"
	query := `
		SELECT
			symbol,
			SUM(quantity) AS quantity,
			SUM(quantity * unit_cost) / SUM(quantity) AS avg_cost
		FROM lots
		WHERE account_id = $1
		GROUP BY symbol
		ORDER BY symbol
		`

	slog.Debug("GetPositions start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetPositions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPositions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var position dbModel.Position
		err = rows.StructScan(&position)
		if err != nil {
			return nil, err
		}
		positions = append(positions, dbConverter.ConvertPosition(position))
	}

	return positions, nil
}

func (r *Postgres) GetTransactions(ctx context.Context, accountID int64, limit int) (transactions []model.TransactionRecord, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTransactions"
	params := map[string]any{
		"accountID": accountID,
		"limit":     limit,
	}
	query := `
		SELECT transaction_id, account_id, symbol, side, quantity, price, total, dt_create
		FROM transactions
		WHERE account_id = $1
		ORDER BY dt_create DESC, transaction_id DESC
		LIMIT $2
		`

	slog.Debug("GetTransactions start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("GetTransactions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTransactions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	transactions = make([]model.TransactionRecord, 0, limit)
	for rows.Next() {
		var transaction dbModel.Transaction
		err = rows.StructScan(&transaction)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, dbConverter.ConvertTransaction(transaction))
	}

	return transactions, nil
}

func (r *Postgres) InsertTransaction(ctx context.Context, accountID int64, record model.TransactionRecord) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertTransaction"
	query := `
		INSERT INTO transactions(account_id, symbol, side, quantity, price, total)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	slog.Debug(
		"InsertTransaction start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int64("accountID", accountID),
		slog.Any("record", record),
		slog.String("query", query),
	)
	defer func() {
		if err != nil {
			slog.Error("InsertTransaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertTransaction completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(
		ctx,
		query,
		accountID,
		record.Symbol,
		record.Side,
		record.Quantity,
		record.Price,
		record.Total,
	)

	if err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (r *Postgres) GetHeldSymbols(ctx context.Context) (symbols []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetHeldSymbols"
	query := `SELECT DISTINCT symbol FROM lots ORDER BY symbol`

	slog.Debug("GetHeldSymbols start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetHeldSymbols failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetHeldSymbols completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).SelectContext(ctx, &symbols, query)
	if err != nil {
		return nil, err
	}

	return symbols, nil
}

func mapWriteErr(err error) error {
	if isSerializationErr(err) {
		return repository.ErrSerialization
	}
	return err
}
