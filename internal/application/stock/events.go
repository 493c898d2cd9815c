package stock

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tópicos lógicos de los eventos del ledger.
const (
	EventMovementRecorded = "stock.movement.recorded"
	EventLowStock         = "stock.low_stock"
)

// MovementRecordedEvent se emite por cada movimiento confirmado.
type MovementRecordedEvent struct {
	MovementID string          `json:"movement_id"`
	TenantID   string          `json:"tenant_id"`
	ProductID  string          `json:"product_id"`
	Kind       string          `json:"kind"`
	Quantity   decimal.Decimal `json:"quantity"`
	NewBalance decimal.Decimal `json:"new_balance"`
	Actor      string          `json:"actor"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// LowStockEvent se emite cuando un movimiento deja el producto en o por debajo del mínimo.
type LowStockEvent struct {
	TenantID   string          `json:"tenant_id"`
	ProductID  string          `json:"product_id"`
	Balance    decimal.Decimal `json:"balance"`
	Threshold  decimal.Decimal `json:"threshold"`
	DetectedAt time.Time       `json:"detected_at"`
}
