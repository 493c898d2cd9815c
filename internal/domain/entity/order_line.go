package entity

import "github.com/shopspring/decimal"

// OrderLine línea de pedido tal como la expone el subsistema de pedidos (solo lectura).
type OrderLine struct {
	OrderID     string
	ProductID   string
	Quantity    decimal.Decimal
	OrderStatus string
}
