package dbConverter

import (
	"github.com/KotFed0t/paper_trading_bot/internal/model"
	"github.com/KotFed0t/paper_trading_bot/internal/model/dbModel"
)

func ConvertLot(dbLot dbModel.Lot) model.Lot {
	return model.Lot{
		LotID:     dbLot.LotID,
		AccountID: dbLot.AccountID,
		Symbol:    dbLot.Symbol,
		Quantity:  dbLot.Quantity,
		UnitCost:  dbLot.UnitCost,
		CreatedAt: dbLot.CreatedAt,
	}
}

func ConvertPosition(dbPosition dbModel.Position) model.Position {
	return model.Position{
		Symbol:   dbPosition.Symbol,
		Quantity: dbPosition.Quantity,
		AvgCost:  dbPosition.AvgCost,
	}
}

func ConvertTransaction(dbTransaction dbModel.Transaction) model.TransactionRecord {
	return model.TransactionRecord{
		Symbol:    dbTransaction.Symbol,
		Side:      dbTransaction.Side,
		Quantity:  dbTransaction.Quantity,
		Price:     dbTransaction.Price,
		Total:     dbTransaction.Total,
		CreatedAt: dbTransaction.CreatedAt,
	}
}
