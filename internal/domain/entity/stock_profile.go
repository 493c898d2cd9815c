package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/unit"
)

// ProductStockProfile agrupa los campos de stock de un producto.
// UnitPolicy y MinimumThreshold vienen del catálogo; CurrentBalance es un índice
// derivado de los movimientos y nunca es la fuente de verdad.
type ProductStockProfile struct {
	TenantID         string
	ProductID        string
	Name             string
	UnitPolicy       unit.Policy
	MinimumThreshold decimal.Decimal
	ThresholdEnabled bool
	CurrentBalance   *decimal.Decimal // nil = ausente o invalidado, requiere replay
	BalanceVersion   int64            // token de concurrencia optimista
	MovementCount    int64
	UpdatedAt        time.Time
}

// HasThreshold indica si el producto tiene un mínimo que vigilar: habilitado y mayor que cero.
func (p *ProductStockProfile) HasThreshold() bool {
	return p.ThresholdEnabled && p.MinimumThreshold.IsPositive()
}

// IsLowStock indica si el saldo está en o por debajo del mínimo. Un mínimo de cero no alerta.
func (p *ProductStockProfile) IsLowStock(balance decimal.Decimal) bool {
	return p.HasThreshold() && balance.LessThanOrEqual(p.MinimumThreshold)
}

// Clone devuelve una copia profunda (CurrentBalance incluido).
func (p *ProductStockProfile) Clone() *ProductStockProfile {
	c := *p
	if p.CurrentBalance != nil {
		b := *p.CurrentBalance
		c.CurrentBalance = &b
	}
	return &c
}
