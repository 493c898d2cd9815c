package stock

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Origen de los movimientos generados por pedidos.
const (
	OriginOrder     = "order"
	OriginInvoicing = "invoicing"
)

// OrderMovementLine una línea de pedido a convertir en movimiento.
type OrderMovementLine struct {
	ProductID string
	Quantity  decimal.Decimal
}

// OrderMovementsInput entrada de RecordOrderLines.
type OrderMovementsInput struct {
	TenantID string
	OrderID  string
	Actor    string
	Kind     entity.MovementKind
	Origin   string // OriginOrder | OriginInvoicing
	Lines    []OrderMovementLine
}

// LineWarning línea que no se pudo aplicar (modo no estricto).
type LineWarning struct {
	Line      int // base 1
	ProductID string
	Err       error
}

// OrderMovementsResult movimientos aplicados y advertencias.
type OrderMovementsResult struct {
	Applied  []*RecordMovementResult
	Warnings []LineWarning
}

// RecordOrderLines aplica un movimiento por línea; cada uno es atómico por separado.
// En modo estricto el primer fallo detiene el resto y se devuelve junto con lo ya aplicado;
// si no, los fallos quedan como advertencias.
func (s *LedgerService) RecordOrderLines(ctx context.Context, in OrderMovementsInput) (*OrderMovementsResult, error) {
	if in.Origin == "" {
		in.Origin = OriginOrder
	}
	if in.Origin != OriginOrder && in.Origin != OriginInvoicing {
		return nil, fmt.Errorf("%w: origen %q", domain.ErrInvalidInput, in.Origin)
	}
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: tipo de movimiento %q", domain.ErrInvalidInput, in.Kind)
	}
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%w: el pedido no tiene líneas", domain.ErrInvalidInput)
	}
	strict, err := s.strictMode(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}

	note := in.Origin
	if id := strings.TrimSpace(in.OrderID); id != "" {
		note = in.Origin + " " + id
	}
	out := &OrderMovementsResult{Applied: []*RecordMovementResult{}, Warnings: []LineWarning{}}
	for i, l := range in.Lines {
		res, err := s.RecordMovement(ctx, RecordMovementInput{
			TenantID:  in.TenantID,
			ProductID: l.ProductID,
			Kind:      in.Kind,
			Quantity:  l.Quantity,
			Note:      note,
			Actor:     in.Actor,
		})
		if err != nil {
			if strict {
				return out, fmt.Errorf("línea %d (%s): %w", i+1, l.ProductID, err)
			}
			out.Warnings = append(out.Warnings, LineWarning{Line: i + 1, ProductID: l.ProductID, Err: err})
			continue
		}
		out.Applied = append(out.Applied, res)
	}
	return out, nil
}
