package postgres

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.OrderLineRepository = (*OrderLineRepo)(nil)

// OrderLineRepo lectura de order_items + orders (tablas del subsistema de pedidos).
type OrderLineRepo struct {
	q Querier
}

// NewOrderLineRepository construye el adaptador.
func NewOrderLineRepository(q Querier) *OrderLineRepo {
	return &OrderLineRepo{q: q}
}

// ListByProduct líneas del producto con el estado de su pedido.
func (r *OrderLineRepo) ListByProduct(ctx context.Context, tenantID, productID string) ([]entity.OrderLine, error) {
	query := `
		SELECT oi.order_id, oi.product_id, oi.quantity, o.status
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.tenant_id = $1 AND oi.product_id = $2`
	rows, err := r.q.Query(ctx, query, tenantID, productID)
	if err != nil {
		return nil, storeErr("list order lines", err)
	}
	defer rows.Close()

	out := make([]entity.OrderLine, 0)
	for rows.Next() {
		var l entity.OrderLine
		if err := rows.Scan(&l.OrderID, &l.ProductID, &l.Quantity, &l.OrderStatus); err != nil {
			return nil, storeErr("scan order line", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list order lines", err)
	}
	return out, nil
}
