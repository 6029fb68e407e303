package xlsxGenerator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/paper_trading_bot/internal/model"
	"github.com/KotFed0t/paper_trading_bot/utils"
	"github.com/xuri/excelize/v2"
)

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

// Generate builds an account statement workbook: current positions with cash
// balance on top, transaction history below.
func (g *XLSXGenerator) Generate(ctx context.Context, statement model.AccountStatement) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	sheetName := "Statement"
	_, err = f.NewSheet(sheetName)
	if err != nil {
		slog.Error("got error while creating NewSheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err = g.fillSheet(f, sheetName, statement); err != nil {
		slog.Error("got error while filling sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) fillSheet(f *excelize.File, sheetName string, statement model.AccountStatement) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#cfe2f3"},
		},
	})
	if err != nil {
		return err
	}

	// positions
	if err := f.MergeCell(sheetName, "A1", "E1"); err != nil {
		return err
	}
	f.SetCellValue(sheetName, "A1", "Positions")
	if err := f.SetCellStyle(sheetName, "A1", "A1", headerStyle); err != nil {
		return fmt.Errorf("apply style: %w", err)
	}

	_ = f.SetCellStr(sheetName, "A2", "symbol")
	_ = f.SetCellStr(sheetName, "B2", "quantity")
	_ = f.SetCellStr(sheetName, "C2", "avg cost")
	_ = f.SetCellStr(sheetName, "D2", "price")
	_ = f.SetCellStr(sheetName, "E2", "market value")

	for i, position := range statement.Positions {
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", i+3), position.Symbol)
		_ = f.SetCellInt(sheetName, fmt.Sprintf("B%d", i+3), int64(position.Quantity))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", i+3), position.AvgCost.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", i+3), position.Price.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", i+3), position.MarketValue.InexactFloat64())
	}

	rowNum := len(statement.Positions) + 4
	_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), "cash")
	_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNum), statement.Cash.InexactFloat64())

	// transaction history
	rowNum += 2

	if err := f.MergeCell(sheetName, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("F%d", rowNum)); err != nil {
		return err
	}
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowNum), "Transaction history")
	if err := f.SetCellStyle(sheetName, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("A%d", rowNum), headerStyle); err != nil {
		return fmt.Errorf("apply style: %w", err)
	}

	rowNum++
	_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), "symbol")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", rowNum), "side")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("C%d", rowNum), "quantity")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("D%d", rowNum), "price")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("E%d", rowNum), "total")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("F%d", rowNum), "date")

	for _, record := range statement.Transactions {
		rowNum++
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), record.Symbol)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", rowNum), record.Side)
		_ = f.SetCellInt(sheetName, fmt.Sprintf("C%d", rowNum), int64(record.Quantity))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", rowNum), record.Price.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", rowNum), record.Total.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", rowNum), record.CreatedAt)
	}

	return nil
}
