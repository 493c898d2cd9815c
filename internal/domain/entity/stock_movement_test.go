package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStockMovement_Signed(t *testing.T) {
	q := decimal.RequireFromString("2.5")
	in := &StockMovement{Kind: MovementInflow, Quantity: q}
	out := &StockMovement{Kind: MovementOutflow, Quantity: q}

	assert.True(t, q.Equal(in.Signed()))
	assert.True(t, q.Neg().Equal(out.Signed()))
}

func TestProductStockProfile_IsLowStock(t *testing.T) {
	p := &ProductStockProfile{ThresholdEnabled: true, MinimumThreshold: decimal.NewFromInt(5)}
	assert.True(t, p.IsLowStock(decimal.NewFromInt(5)))
	assert.False(t, p.IsLowStock(decimal.NewFromInt(6)))

	p.ThresholdEnabled = false
	assert.False(t, p.IsLowStock(decimal.Zero))

	zero := &ProductStockProfile{ThresholdEnabled: true, MinimumThreshold: decimal.Zero}
	assert.False(t, zero.HasThreshold())
	assert.False(t, zero.IsLowStock(decimal.NewFromInt(-3)), "un mínimo de cero no alerta")
}
