package stock

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// DefaultInvoicedStatuses estados terminales de pedido por defecto.
var DefaultInvoicedStatuses = []string{"invoiced", "faturado"}

var _ CommitmentSource = (*CommitmentTracker)(nil)

// CommitmentTracker suma las cantidades de líneas de pedidos que aún no están facturados.
// Es informativo: no reserva stock ni genera movimientos.
type CommitmentTracker struct {
	orders   repository.OrderLineRepository
	terminal map[string]struct{}
}

// NewCommitmentTracker construye el tracker. Sin estados usa DefaultInvoicedStatuses.
func NewCommitmentTracker(orders repository.OrderLineRepository, invoicedStatuses []string) *CommitmentTracker {
	if len(invoicedStatuses) == 0 {
		invoicedStatuses = DefaultInvoicedStatuses
	}
	terminal := make(map[string]struct{}, len(invoicedStatuses))
	for _, s := range invoicedStatuses {
		terminal[normalizeStatus(s)] = struct{}{}
	}
	return &CommitmentTracker{orders: orders, terminal: terminal}
}

// CommittedQuantity cantidad comprometida por pedidos abiertos del producto.
func (t *CommitmentTracker) CommittedQuantity(ctx context.Context, tenantID, productID string) (decimal.Decimal, error) {
	lines, err := t.orders.ListByProduct(ctx, tenantID, productID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, l := range lines {
		if _, done := t.terminal[normalizeStatus(l.OrderStatus)]; done {
			continue
		}
		total = total.Add(l.Quantity)
	}
	return total, nil
}

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
