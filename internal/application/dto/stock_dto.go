package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordMovementRequest body para POST /api/stock/movements.
// kind acepta inflow/outflow (o in/out).
type RecordMovementRequest struct {
	ProductID string          `json:"product_id" validate:"required,max=64"`
	Kind      string          `json:"kind" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Note      string          `json:"note,omitempty" validate:"max=500"`
}

// RecordMovementResponse movimiento confirmado.
type RecordMovementResponse struct {
	MovementID string          `json:"movement_id"`
	ProductID  string          `json:"product_id"`
	Kind       string          `json:"kind"`
	Quantity   decimal.Decimal `json:"quantity"`
	NewBalance decimal.Decimal `json:"new_balance"`
	OccurredAt time.Time       `json:"occurred_at"`
	LowStock   bool            `json:"low_stock"`
}

// BalanceResponse saldo actual.
type BalanceResponse struct {
	ProductID string          `json:"product_id"`
	Balance   decimal.Decimal `json:"balance"`
}

// HistoryEntryResponse movimiento con el saldo al cierre de ese movimiento.
type HistoryEntryResponse struct {
	MovementID        string          `json:"movement_id"`
	Kind              string          `json:"kind"`
	Quantity          decimal.Decimal `json:"quantity"`
	OccurredAt        time.Time       `json:"occurred_at"`
	Note              string          `json:"note,omitempty"`
	Actor             string          `json:"actor"`
	HistoricalBalance decimal.Decimal `json:"historical_balance"`
}

// HistoryResponse historial del más reciente al más antiguo. Page solo viaja si se pidió limit.
type HistoryResponse struct {
	ProductID string                 `json:"product_id"`
	Items     []HistoryEntryResponse `json:"items"`
	Page      *PageResponse          `json:"page,omitempty"`
}

// AvailabilityResponse saldo frente a lo comprometido en pedidos abiertos.
type AvailabilityResponse struct {
	ProductID            string          `json:"product_id"`
	Balance              decimal.Decimal `json:"balance"`
	Committed            decimal.Decimal `json:"committed"`
	EffectivelyAvailable decimal.Decimal `json:"effectively_available"`
}

// LowStockCheckResponse resultado de IsLowStock para un producto.
type LowStockCheckResponse struct {
	ProductID string `json:"product_id"`
	LowStock  bool   `json:"low_stock"`
}

// LowStockItemResponse producto en o por debajo del mínimo.
type LowStockItemResponse struct {
	ProductID  string          `json:"product_id"`
	Name       string          `json:"name,omitempty"`
	UnitPolicy string          `json:"unit_policy"`
	Balance    decimal.Decimal `json:"balance"`
	Threshold  decimal.Decimal `json:"minimum_threshold"`
	Deficit    decimal.Decimal `json:"deficit"`
	Status     string          `json:"status"` // negative | zero | low
}

// ReconcileResponse resultado de reconciliar un producto.
type ReconcileResponse struct {
	ProductID string           `json:"product_id"`
	Previous  *decimal.Decimal `json:"previous_balance"`
	Replayed  decimal.Decimal  `json:"replayed_balance"`
	Movements int              `json:"movements"`
	Drifted   bool             `json:"drifted"`
}

// TenantReconcileResponse resumen de la reconciliación del tenant.
type TenantReconcileResponse struct {
	Checked        int      `json:"checked"`
	Corrected      int      `json:"corrected"`
	Failed         int      `json:"failed"`
	FailedProducts []string `json:"failed_products"`
}

// OrderLineRequest línea de pedido a descontar o reingresar.
type OrderLineRequest struct {
	ProductID string          `json:"product_id" validate:"required,max=64"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// OrderMovementsRequest body para POST /api/stock/order-movements.
type OrderMovementsRequest struct {
	OrderID string             `json:"order_id" validate:"max=64"`
	Kind    string             `json:"kind" validate:"required"`
	Origin  string             `json:"origin" validate:"omitempty,oneof=order invoicing"`
	Lines   []OrderLineRequest `json:"lines" validate:"required,min=1,max=500,dive"`
}

// LineWarningResponse línea no aplicada.
type LineWarningResponse struct {
	Line      int    `json:"line"`
	ProductID string `json:"product_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// OrderMovementsResponse movimientos aplicados y advertencias.
type OrderMovementsResponse struct {
	Applied  []RecordMovementResponse `json:"applied"`
	Warnings []LineWarningResponse    `json:"warnings"`
}

// StockConfigRequest body para PUT /api/stock/config.
type StockConfigRequest struct {
	StrictMode  bool   `json:"strict_mode"`
	ControlMode string `json:"control_mode" validate:"omitempty,oneof=orders invoicing pos"`
}

// StockConfigResponse configuración de control de stock del tenant.
type StockConfigResponse struct {
	StrictMode  bool       `json:"strict_mode"`
	ControlMode string     `json:"control_mode"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// StockProfileRequest body para PUT /api/stock/products/:id/profile.
type StockProfileRequest struct {
	Name             string           `json:"name" validate:"max=200"`
	UnitPolicy       string           `json:"unit_policy" validate:"omitempty,oneof=integer fractional_3dp"`
	MinimumThreshold decimal.Decimal  `json:"minimum_threshold"`
	ThresholdEnabled bool             `json:"threshold_enabled"`
	InitialStock     *decimal.Decimal `json:"initial_stock,omitempty"`
}

// StockProfileResponse campos de stock del producto.
type StockProfileResponse struct {
	ProductID        string           `json:"product_id"`
	Name             string           `json:"name,omitempty"`
	UnitPolicy       string           `json:"unit_policy"`
	MinimumThreshold decimal.Decimal  `json:"minimum_threshold"`
	ThresholdEnabled bool             `json:"threshold_enabled"`
	CurrentBalance   *decimal.Decimal `json:"current_balance"`
	BalanceVersion   int64            `json:"balance_version"`
	MovementCount    int64            `json:"movement_count"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
