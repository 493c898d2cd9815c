package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// OrderLineRepository lectura de líneas de pedido del subsistema de pedidos.
type OrderLineRepository interface {
	// ListByProduct devuelve las líneas del producto con el estado de su pedido, sin filtrar.
	ListByProduct(ctx context.Context, tenantID, productID string) ([]entity.OrderLine, error)
}
