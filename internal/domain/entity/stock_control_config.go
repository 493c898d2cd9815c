package entity

import "time"

// ControlMode indica qué evento del negocio descuenta stock en el tenant.
type ControlMode string

const (
	ControlModeOrders    ControlMode = "orders"    // al confirmar pedidos
	ControlModeInvoicing ControlMode = "invoicing" // al facturar
	ControlModePOS       ControlMode = "pos"       // en el punto de venta
)

// Valid indica si el modo es conocido.
func (m ControlMode) Valid() bool {
	switch m {
	case ControlModeOrders, ControlModeInvoicing, ControlModePOS:
		return true
	}
	return false
}

// StockControlConfig política de control de stock por tenant.
// StrictMode bloquea salidas que dejarían el saldo negativo.
type StockControlConfig struct {
	TenantID    string
	StrictMode  bool
	ControlMode ControlMode
	UpdatedAt   time.Time
}
