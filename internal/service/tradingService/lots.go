package tradingService

import (
	"github.com/KotFed0t/paper_trading_bot/internal/model"
	"github.com/KotFed0t/paper_trading_bot/internal/service"
	"github.com/shopspring/decimal"
)

// fifoPlan is the outcome of matching a sell quantity against open lots in
// creation order.
type fifoPlan struct {
	fullyConsumed []int64    // lot ids to delete
	partial       *model.Lot // lot left with a reduced quantity, nil when the sale ends on a lot boundary
	costBasis     decimal.Decimal
}

// planFifoSale consumes lots oldest first: full lots are marked for deletion,
// at most one lot ends up shrunk. Lots must be ordered by creation
// (lot_id ascending). The plan only describes the mutation, nothing is
// applied here.
func planFifoSale(lots []model.Lot, quantity int) (fifoPlan, error) {
	if quantity <= 0 {
		return fifoPlan{}, service.ErrInvalidQuantity
	}

	if len(lots) == 0 {
		return fifoPlan{}, service.ErrSymbolNotHeld
	}

	available := 0
	for _, lot := range lots {
		available += lot.Quantity
	}

	if available < quantity {
		return fifoPlan{}, service.ErrInsufficientHoldings
	}

	plan := fifoPlan{costBasis: decimal.Zero}
	remaining := quantity
	for _, lot := range lots {
		if remaining == 0 {
			break
		}

		if lot.Quantity <= remaining {
			plan.fullyConsumed = append(plan.fullyConsumed, lot.LotID)
			plan.costBasis = plan.costBasis.Add(lot.UnitCost.Mul(decimal.NewFromInt(int64(lot.Quantity))))
			remaining -= lot.Quantity
			continue
		}

		plan.costBasis = plan.costBasis.Add(lot.UnitCost.Mul(decimal.NewFromInt(int64(remaining))))
		shrunk := lot
		shrunk.Quantity = lot.Quantity - remaining
		plan.partial = &shrunk
		remaining = 0
	}

	return plan, nil
}

// realizedGain is proceeds at the sale price minus the cost basis of the
// consumed lots. Negative for a loss.
func (p fifoPlan) realizedGain(salePrice decimal.Decimal, quantity int) decimal.Decimal {
	return salePrice.Mul(decimal.NewFromInt(int64(quantity))).Sub(p.costBasis)
}

// mergeLot folds a purchase into an existing lot, recomputing the unit cost
// as a quantity-weighted average.
func mergeLot(lot model.Lot, quantity int, unitPrice decimal.Decimal) model.Lot {
	oldQty := decimal.NewFromInt(int64(lot.Quantity))
	addQty := decimal.NewFromInt(int64(quantity))
	totalCost := lot.UnitCost.Mul(oldQty).Add(unitPrice.Mul(addQty))

	merged := lot
	merged.Quantity = lot.Quantity + quantity
	merged.UnitCost = totalCost.Div(oldQty.Add(addQty)).Round(2)
	return merged
}
