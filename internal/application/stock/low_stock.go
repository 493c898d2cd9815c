package stock

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/unit"
)

// LowStockStatus clasificación de un producto bajo el mínimo.
type LowStockStatus string

const (
	LowStockNegative LowStockStatus = "negative"
	LowStockZero     LowStockStatus = "zero"
	LowStockLow      LowStockStatus = "low"
)

// LowStockItem producto en o por debajo del mínimo. Deficit = Balance - Threshold (<= 0).
type LowStockItem struct {
	ProductID  string
	Name       string
	UnitPolicy unit.Policy
	Balance    decimal.Decimal
	Threshold  decimal.Decimal
	Deficit    decimal.Decimal
	Status     LowStockStatus
}

// ListLowStock productos del tenant con mínimo habilitado y mayor que cero cuyo saldo no lo supera.
// Ordenados por déficit (los más críticos primero).
func (s *LedgerService) ListLowStock(ctx context.Context, tenantID string) ([]LowStockItem, error) {
	profiles, err := s.profiles.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	items := make([]LowStockItem, 0)
	for _, p := range profiles {
		if !p.HasThreshold() {
			continue
		}
		balance, err := s.balanceOf(ctx, p)
		if err != nil {
			return nil, err
		}
		if !p.IsLowStock(balance) {
			continue
		}
		items = append(items, LowStockItem{
			ProductID:  p.ProductID,
			Name:       p.Name,
			UnitPolicy: p.UnitPolicy,
			Balance:    balance,
			Threshold:  p.MinimumThreshold,
			Deficit:    balance.Sub(p.MinimumThreshold),
			Status:     classifyLowStock(balance),
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if c := items[i].Deficit.Cmp(items[j].Deficit); c != 0 {
			return c < 0
		}
		return items[i].ProductID < items[j].ProductID
	})
	return items, nil
}

func classifyLowStock(balance decimal.Decimal) LowStockStatus {
	switch {
	case balance.IsNegative():
		return LowStockNegative
	case balance.IsZero():
		return LowStockZero
	}
	return LowStockLow
}
